// Package sweeper периодически отзывает доступ пользователей с истекшей подпиской.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/ssh-subscription/internal/cache"
	"github.com/magabrotheeeer/ssh-subscription/internal/config"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/ssh-subscription/internal/metrics"
	"github.com/magabrotheeeer/ssh-subscription/internal/models"
)

const leaseKey = "lock:sweep"

// Repository хранилище пользователей.
type Repository interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteExpiredUsers(ctx context.Context, ids []string, now time.Time) ([]models.User, error)
}

// Provisioner отзывает доступ на хосте.
type Provisioner interface {
	RevokeAndArchive(ctx context.Context, user models.User) error
}

// Lease межпроцессная аренда прохода очистки.
type Lease interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// Publisher публикует события доступа.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

// Report итог одного прохода.
type Report struct {
	Checked int  `json:"checked"`
	Revoked int  `json:"revoked"`
	Failed  int  `json:"failed"`
	Skipped bool `json:"skipped"`
	// Renewed пользователи, которые продлили доступ уже после отзыва учетной записи.
	// Их учетную запись нужно восстановить вручную.
	Renewed []string `json:"renewed,omitempty"`
}

// Sweeper проход очистки и его расписание.
type Sweeper struct {
	repo        Repository
	provisioner Provisioner
	lease       Lease
	publisher   Publisher
	cfg         config.Sweep
	log         *slog.Logger
	now         func() time.Time

	running sync.Mutex
}

// NewSweeper создает Sweeper. lease и publisher могут быть nil.
func NewSweeper(repo Repository, prov Provisioner, lease Lease, pub Publisher, cfg config.Sweep, log *slog.Logger) *Sweeper {
	return &Sweeper{
		repo:        repo,
		provisioner: prov,
		lease:       lease,
		publisher:   pub,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// Run выполняет первый проход через FirstRunDelay, затем каждые Interval, пока не отменен ctx.
func (s *Sweeper) Run(ctx context.Context) {
	const op = "sweeper.Run"
	log := s.log.With(slog.String("op", op))
	log.Info("expiry sweep scheduled",
		slog.Duration("first_run_delay", s.cfg.FirstRunDelay),
		slog.Duration("interval", s.cfg.Interval),
	)

	timer := time.NewTimer(s.cfg.FirstRunDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	s.runSweep(ctx)

	interval := s.cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("expiry sweep stopped")
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *Sweeper) runSweep(ctx context.Context) {
	if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("expiry sweep failed", slog.String("op", "sweeper.runSweep"), sl.Err(err))
	}
}

// Expired возвращает пользователей с выданной учетной записью, чей срок истек на момент now.
func (s *Sweeper) Expired(ctx context.Context) ([]models.User, int, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	var expired []models.User
	for _, u := range users {
		if u.HasAccount() && u.IsExpired(now) {
			expired = append(expired, u)
		}
	}
	return expired, len(users), nil
}

// SweepOnce отзывает доступ всех истекших пользователей и удаляет их записи одной транзакцией.
// Пользователь, у которого отзыв не удался, остается до следующего прохода.
func (s *Sweeper) SweepOnce(ctx context.Context) (*Report, error) {
	const op = "sweeper.SweepOnce"
	log := s.log.With(slog.String("op", op))

	if !s.running.TryLock() {
		log.Info("sweep already running in this process, skipping")
		metrics.SweepRuns.WithLabelValues("skipped").Inc()
		return &Report{Skipped: true}, nil
	}
	defer s.running.Unlock()

	if s.lease != nil {
		ttl := s.cfg.LockTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		release, err := s.lease.TryLock(ctx, leaseKey, ttl)
		switch {
		case errors.Is(err, cache.ErrLockHeld):
			log.Info("sweep lease held by another process, skipping")
			metrics.SweepRuns.WithLabelValues("skipped").Inc()
			return &Report{Skipped: true}, nil
		case err != nil:
			log.Warn("sweep lease is unavailable, continuing without it", sl.Err(err))
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.Warn("failed to release sweep lease", sl.Err(err))
				}
			}()
		}
	}

	report, err := s.sweep(ctx, log)
	if err != nil {
		metrics.SweepRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.SweepRuns.WithLabelValues("completed").Inc()
	metrics.SweepRevoked.Add(float64(report.Revoked))
	return report, nil
}

func (s *Sweeper) sweep(ctx context.Context, log *slog.Logger) (*Report, error) {
	expired, checked, err := s.Expired(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{Checked: checked}
	if len(expired) == 0 {
		log.Info("no expired users found", slog.Int("checked", checked))
		return report, nil
	}
	log.Info("found expired users", slog.Int("count", len(expired)))

	revoked := make([]string, 0, len(expired))
	sshNames := make(map[string]string, len(expired))
	for _, u := range expired {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.provisioner.RevokeAndArchive(ctx, u); err != nil {
			report.Failed++
			metrics.ProvisioningFailures.Inc()
			log.Error("failed to revoke access",
				slog.String("user_id", u.UserID),
				slog.String("ssh_name", u.SSHName),
				sl.Err(err),
			)
			continue
		}
		revoked = append(revoked, u.UserID)
		sshNames[u.UserID] = u.SSHName
	}

	now := s.now()
	removed, err := s.repo.DeleteExpiredUsers(ctx, revoked, now)
	if err != nil {
		return nil, err
	}
	report.Revoked = len(removed)
	gone := make(map[string]struct{}, len(removed))
	for _, u := range removed {
		gone[u.UserID] = struct{}{}
	}
	for _, id := range revoked {
		if _, ok := gone[id]; ok {
			continue
		}
		report.Renewed = append(report.Renewed, id)
		log.Error("user renewed after access was revoked, account must be restored",
			slog.String("user_id", id),
			slog.String("ssh_name", sshNames[id]),
		)
	}

	for _, u := range removed {
		s.publish(ctx, models.AccessRevoked{
			UserID:    u.UserID,
			SSHName:   u.SSHName,
			Reason:    models.RevokeReasonExpired,
			RevokedAt: now,
		})
	}
	log.Info("expiry sweep finished",
		slog.Int("checked", report.Checked),
		slog.Int("revoked", report.Revoked),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Sweeper) publish(ctx context.Context, ev models.AccessRevoked) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, models.EventAccessRevoked, ev); err != nil {
		s.log.Error("failed to publish event", slog.String("user_id", ev.UserID), sl.Err(err))
	}
}
