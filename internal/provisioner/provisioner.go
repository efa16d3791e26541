// Package provisioner отзывает ssh-доступ на хосте: блокирует пароль учетной записи
// и переносит домашний каталог в архив вместе с описанием пользователя.
package provisioner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"syscall"
	"time"

	"github.com/magabrotheeeer/ssh-subscription/internal/config"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/password"
	"github.com/magabrotheeeer/ssh-subscription/internal/models"
)

// exitUserMissing код выхода usermod, когда учетной записи нет.
const exitUserMissing = 6

const userInfoFile = "user_info.json"

var accountName = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// ErrInvalidAccountName имя учетной записи нельзя передавать системным утилитам.
var ErrInvalidAccountName = errors.New("invalid account name")

// ValidAccountName сообщает, можно ли использовать name как имя учетной записи.
func ValidAccountName(name string) bool {
	return accountName.MatchString(name)
}

// Provisioner отзывает доступ пользователя. Повторный вызов для того же пользователя безопасен.
type Provisioner interface {
	RevokeAndArchive(ctx context.Context, user models.User) error
}

// Runner запускает внешнюю команду и возвращает ее код выхода.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (exitCode int, output []byte, err error)
}

// ExecRunner запускает команды через os/exec.
type ExecRunner struct{}

// Run реализует Runner. Ненулевой код выхода не считается ошибкой запуска.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (int, []byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), out.Bytes(), nil
	}
	if err != nil {
		return -1, out.Bytes(), err
	}
	return 0, out.Bytes(), nil
}

// System отзывает доступ на локальном хосте.
type System struct {
	cfg    config.Provisioner
	runner Runner
	log    *slog.Logger
	now    func() time.Time
}

// NewSystem создает System. Если runner равен nil, используется ExecRunner.
func NewSystem(cfg config.Provisioner, runner Runner, log *slog.Logger) *System {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &System{cfg: cfg, runner: runner, log: log, now: time.Now}
}

// RevokeAndArchive блокирует пароль учетной записи user.SSHName, переносит ее домашний каталог
// в архив и сохраняет рядом user_info.json с хешем пароля вместо самого пароля.
func (s *System) RevokeAndArchive(ctx context.Context, user models.User) error {
	const op = "provisioner.RevokeAndArchive"
	name := user.SSHName
	if !ValidAccountName(name) {
		return fmt.Errorf("%s: %w: %q", op, ErrInvalidAccountName, name)
	}
	log := s.log.With(slog.String("op", op), slog.String("ssh_name", name))

	if err := s.lockPassword(ctx, name); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	archiveDir := filepath.Join(s.cfg.ArchiveRoot, name)
	infoDir := archiveDir
	home := filepath.Join(s.cfg.HomeRoot, name)
	if _, err := os.Stat(home); err == nil {
		if err := os.MkdirAll(s.cfg.ArchiveRoot, 0o750); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		target := archiveDir
		if _, err := os.Stat(target); err == nil {
			target = archiveDir + "." + strconv.FormatInt(s.now().Unix(), 10)
		}
		if err := s.move(ctx, home, target); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		infoDir = target
		log.Info("home directory archived", slog.String("archive", target))
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.writeUserInfo(infoDir, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("access revoked")
	return nil
}

func (s *System) lockPassword(ctx context.Context, name string) error {
	code, out, err := s.run(ctx, s.usermodPath(), "-p", "!", name)
	if err != nil {
		return fmt.Errorf("usermod: %w", err)
	}
	switch code {
	case 0:
		return nil
	case exitUserMissing:
		s.log.Info("account does not exist, treating as revoked", slog.String("ssh_name", name))
		return nil
	default:
		return fmt.Errorf("usermod exited with %d: %s", code, bytes.TrimSpace(out))
	}
}

func (s *System) move(ctx context.Context, src, dst string) error {
	if !s.cfg.UseSudo {
		err := os.Rename(src, dst)
		if err == nil || !errors.Is(err, syscall.EXDEV) {
			return err
		}
	}
	code, out, err := s.run(ctx, "mv", src, dst)
	if err != nil {
		return fmt.Errorf("mv: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("mv exited with %d: %s", code, bytes.TrimSpace(out))
	}
	return nil
}

func (s *System) writeUserInfo(dir string, user models.User) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	if user.SSHPassword != "" {
		hash, err := password.GetHash(user.SSHPassword)
		if err != nil {
			return err
		}
		user.SSHPassword = hash
	}
	data, err := json.MarshalIndent(user, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, userInfoFile), data, 0o600)
}

func (s *System) run(ctx context.Context, name string, args ...string) (int, []byte, error) {
	if s.cfg.UseSudo {
		return s.runner.Run(ctx, "sudo", append([]string{"-n", name}, args...)...)
	}
	return s.runner.Run(ctx, name, args...)
}

func (s *System) usermodPath() string {
	if s.cfg.UsermodPath != "" {
		return s.cfg.UsermodPath
	}
	return "usermod"
}
