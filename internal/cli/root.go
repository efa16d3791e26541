// Package cli команды оператора хоста: ручная очистка, просмотр пользователей и заказов,
// выдача учетных записей и сервисных токенов.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/ssh-subscription/internal/app/engine"
	"github.com/magabrotheeeer/ssh-subscription/internal/config"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/sl"
)

type options struct {
	configPath string
	verbose    bool

	deps *engine.Deps
}

// Execute разбирает аргументы командной строки и выполняет команду.
func Execute(ctx context.Context) error {
	opts := &options{}
	defer opts.close()

	rootCmd := newRootCmd(opts)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sshsubctl",
		Short:         "Operator tool for the ssh subscription engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("CONFIG_PATH"), "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr")

	rootCmd.AddCommand(
		newSweepCmd(opts),
		newUserCmd(opts),
		newOrderCmd(opts),
		newCatalogCmd(opts),
		newTokenCmd(opts),
	)
	return rootCmd
}

// open загружает конфиг и собирает компоненты движка при первом обращении.
func (o *options) open(ctx context.Context, cmd *cobra.Command) (*engine.Deps, error) {
	if o.deps != nil {
		return o.deps, nil
	}
	if o.configPath == "" {
		return nil, fmt.Errorf("config path is not set: use --config or CONFIG_PATH")
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	var w io.Writer = io.Discard
	if o.verbose {
		w = cmd.ErrOrStderr()
	}
	logger := sl.NewLogger(cfg.Env, w).With(slog.String("component", "sshsubctl"))

	deps, err := engine.NewDeps(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	o.deps = deps
	return deps, nil
}

func (o *options) close() {
	if o.deps != nil {
		o.deps.Close()
		o.deps = nil
	}
}
