// Package engine собирает HTTP-сервер движка подписок, фоновую очистку истекших
// доступов и перезагрузку каталога.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/magabrotheeeer/ssh-subscription/internal/config"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/sl"
)

const shutdownTimeout = 15 * time.Second

// App процесс движка.
type App struct {
	server *http.Server
	deps   *Deps
	logger *slog.Logger
}

// New собирает зависимости и HTTP-сервер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	deps, err := NewDeps(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      NewRouter(cfg.HTTPServer, logger, deps),
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		deps:   deps,
		logger: logger,
	}, nil
}

// Run запускает сервер, очистку и обработчик SIGHUP и блокируется до отмены ctx
// или ошибки сервера.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.deps.Sweeper.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.reloadOnHangup(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
		if runErr != nil {
			a.logger.Error("HTTP server failed", sl.Err(runErr))
		}
	case <-ctx.Done():
		timeoutCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		a.logger.Info("shutting down HTTP server gracefully")
		runErr = a.server.Shutdown(timeoutCtx)
	}

	cancel()
	wg.Wait()
	a.deps.Close()
	return runErr
}

// reloadOnHangup перечитывает каталог по SIGHUP.
func (a *App) reloadOnHangup(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := a.deps.Catalog.Reload(ctx); err != nil {
				a.logger.Error("failed to reload catalog", sl.Err(err))
			}
		}
	}
}
