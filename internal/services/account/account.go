// Package account реализует команды пользователя чата: регистрацию, статус подписки,
// данные для подключения и отказ от доступа.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/ssh-subscription/internal/config"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/ssh-subscription/internal/models"
	"github.com/magabrotheeeer/ssh-subscription/internal/provisioner"
	"github.com/magabrotheeeer/ssh-subscription/internal/storage/repository"
)

var (
	// ErrNoAccount у пользователя нет учетной записи на хосте.
	ErrNoAccount = errors.New("no account")
	// ErrNoActiveSubscription подписка пользователя не активна.
	ErrNoActiveSubscription = errors.New("no active subscription")
	// ErrProvisioning не удалось отозвать доступ на хосте.
	ErrProvisioning = errors.New("failed to revoke access")
	// ErrInvalidLanguage язык не поддерживается.
	ErrInvalidLanguage = errors.New("unsupported language")
)

// Repository хранилище пользователей.
type Repository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	DeleteUser(ctx context.Context, userID string) (bool, error)
	Update(ctx context.Context, fn func(doc *models.Document) error) error
}

// Provisioner отзывает доступ на хосте.
type Provisioner interface {
	RevokeAndArchive(ctx context.Context, user models.User) error
}

// Publisher публикует события доступа.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

// Status состояние подписки пользователя.
type Status struct {
	Found    bool       `json:"found"`
	Active   bool       `json:"active"`
	ExpireAt *time.Time `json:"expire_at,omitempty"`
	SSHName  string     `json:"ssh_name,omitempty"`
	Language string     `json:"language,omitempty"`
}

// ServerInfo данные для подключения к хосту.
type ServerInfo struct {
	Host     string     `json:"host"`
	Port     int        `json:"port"`
	SSHName  string     `json:"ssh_name"`
	ExpireAt *time.Time `json:"expire_at"`
}

// Service реализует операции над учетными записями.
type Service struct {
	repo        Repository
	provisioner Provisioner
	publisher   Publisher
	server      config.ServerInfo
	log         *slog.Logger
	now         func() time.Time
}

// NewService создает Service. publisher может быть nil.
func NewService(repo Repository, prov Provisioner, pub Publisher, server config.ServerInfo, log *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		provisioner: prov,
		publisher:   pub,
		server:      server,
		log:         log,
		now:         time.Now,
	}
}

// Register заводит пользователя при первом обращении или обновляет имя и язык.
// Пустой язык означает en для нового пользователя и не меняет язык существующего.
func (s *Service) Register(ctx context.Context, userID, displayName, language string) (*models.User, bool, error) {
	const op = "account.Register"
	if language != "" && language != models.LanguageEN && language != models.LanguageRU {
		return nil, false, fmt.Errorf("%s: %w: %q", op, ErrInvalidLanguage, language)
	}

	var (
		result  models.User
		created bool
	)
	err := s.repo.Update(ctx, func(doc *models.Document) error {
		u, ok := doc.User(userID)
		created = !ok
		if !ok {
			u = models.User{UserID: userID, Language: models.LanguageEN}
		}
		changed := created
		if displayName != "" && u.DisplayName != displayName {
			u.DisplayName = displayName
			changed = true
		}
		if language != "" && u.Language != language {
			u.Language = language
			changed = true
		}
		result = u
		if !changed {
			return repository.ErrNothingToSave
		}
		doc.UpsertUser(u)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if created {
		s.log.Info("user registered", slog.String("op", op), slog.String("user_id", userID))
	}
	return &result, created, nil
}

// Status возвращает состояние подписки. Неизвестный пользователь дает Found=false.
func (s *Service) Status(ctx context.Context, userID string) (*Status, error) {
	const op = "account.Status"
	u, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return &Status{Found: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Status{
		Found:    true,
		Active:   u.IsActive(s.now()),
		ExpireAt: u.ExpireAt,
		SSHName:  u.SSHName,
		Language: u.Language,
	}, nil
}

// ServerInfo возвращает адрес хоста и имя учетной записи активному пользователю.
func (s *Service) ServerInfo(ctx context.Context, userID string) (*ServerInfo, error) {
	const op = "account.ServerInfo"
	u, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrNoActiveSubscription)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !u.IsActive(s.now()) {
		return nil, fmt.Errorf("%s: %w", op, ErrNoActiveSubscription)
	}
	return &ServerInfo{
		Host:     s.server.SSHHost,
		Port:     s.server.SSHPort,
		SSHName:  u.SSHName,
		ExpireAt: u.ExpireAt,
	}, nil
}

// Cancel отзывает доступ пользователя по его просьбе и удаляет запись.
// Если отзыв на хосте не удался, запись остается.
func (s *Service) Cancel(ctx context.Context, userID string) error {
	const op = "account.Cancel"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	u, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNoAccount)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !u.HasAccount() {
		return fmt.Errorf("%s: %w", op, ErrNoAccount)
	}

	if err := s.provisioner.RevokeAndArchive(ctx, *u); err != nil {
		log.Error("failed to revoke access", sl.Err(err))
		return fmt.Errorf("%s: %w: %w", op, ErrProvisioning, err)
	}
	if _, err := s.repo.DeleteUser(ctx, userID); err != nil {
		log.Error("access revoked but user record was not deleted", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("access cancelled by user", slog.String("ssh_name", u.SSHName))

	if s.publisher != nil {
		ev := models.AccessRevoked{
			UserID:    u.UserID,
			SSHName:   u.SSHName,
			Reason:    models.RevokeReasonCancelled,
			RevokedAt: s.now(),
		}
		if err := s.publisher.Publish(ctx, models.EventAccessRevoked, ev); err != nil {
			log.Error("failed to publish event", sl.Err(err))
		}
	}
	return nil
}

// AssignAccess записывает пользователю учетную запись, созданную оператором на хосте.
func (s *Service) AssignAccess(ctx context.Context, userID, sshName, sshPassword string) (*models.User, error) {
	const op = "account.AssignAccess"
	if !provisioner.ValidAccountName(sshName) {
		return nil, fmt.Errorf("%s: %w: %q", op, provisioner.ErrInvalidAccountName, sshName)
	}
	var result models.User
	err := s.repo.Update(ctx, func(doc *models.Document) error {
		u, ok := doc.User(userID)
		if !ok {
			return repository.ErrUserNotFound
		}
		u.SSHName = sshName
		u.SSHPassword = sshPassword
		doc.UpsertUser(u)
		result = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("account assigned", slog.String("op", op), slog.String("user_id", userID), slog.String("ssh_name", sshName))
	return &result, nil
}
