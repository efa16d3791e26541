// Package repository реализует операции над документом хранилища поверх storage.Backend:
// чтение с откатом к документу по умолчанию и изменение с повтором при конфликте версий.
//
// Каждая изменяющая операция перечитывает весь документ, применяет изменение и заменяет
// документ целиком. Внутри процесса писатели сериализуются мьютексом, между процессами
// бэкенд отклоняет устаревшую версию, и изменение повторяется на свежем документе.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/magabrotheeeer/ssh-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/ssh-subscription/internal/metrics"
	"github.com/magabrotheeeer/ssh-subscription/internal/models"
	"github.com/magabrotheeeer/ssh-subscription/internal/storage"
)

var (
	// ErrUserNotFound пользователя нет в документе.
	ErrUserNotFound = errors.New("user not found")
	// ErrOrderNotFound заказа нет в документе.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists заказ с таким идентификатором уже сохранен.
	ErrOrderExists = errors.New("order already exists")
	// ErrNothingToSave возвращается из функции изменения, когда документ менять не нужно.
	ErrNothingToSave = errors.New("nothing to save")
)

// DefaultMaxRetries сколько раз Update повторяет изменение после конфликта версий.
const DefaultMaxRetries = 5

// Storage инкапсулирует бэкенд и реализует операции над пользователями и заказами.
type Storage struct {
	backend    storage.Backend
	log        *slog.Logger
	maxRetries int
	mu         sync.Mutex
}

// New создает Storage поверх backend.
func New(backend storage.Backend, log *slog.Logger, maxRetries int) *Storage {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Storage{
		backend:    backend,
		log:        log,
		maxRetries: maxRetries,
	}
}

// Load возвращает текущий документ. Если документа нет или его не удалось прочитать,
// возвращается документ по умолчанию, ошибка чтения только логируется.
func (s *Storage) Load(ctx context.Context) (*models.Document, error) {
	const op = "storage.Load"

	doc, err := s.backend.Load(ctx)
	if err == nil {
		return doc, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s: %w", op, ctxErr)
	}

	def := models.DefaultDocument()
	var corrupt *storage.CorruptError
	switch {
	case errors.Is(err, storage.ErrDocumentNotFound):
	case errors.As(err, &corrupt):
		s.log.Error("document is unreadable, starting from defaults", slog.String("op", op), sl.Err(err))
		def.Version = corrupt.Version
	default:
		s.log.Error("failed to read document, starting from defaults", slog.String("op", op), sl.Err(err))
	}
	return def, nil
}

// Update применяет fn к свежему документу и сохраняет результат.
//
// При конфликте версий fn вызывается повторно на перечитанном документе, поэтому fn не должна
// иметь побочных эффектов вне doc. Если fn возвращает ErrNothingToSave, запись пропускается и
// Update возвращает nil; любую другую ошибку fn Update возвращает без изменений.
func (s *Storage) Update(ctx context.Context, fn func(doc *models.Document) error) error {
	const op = "storage.Update"

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; ; attempt++ {
		doc, err := s.Load(ctx)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			if errors.Is(err, ErrNothingToSave) {
				return nil
			}
			return err
		}

		err = s.backend.Save(ctx, doc)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrVersionConflict) {
			s.log.Error("failed to write document", slog.String("op", op), sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}

		metrics.StoreConflicts.Inc()
		if attempt+1 >= s.maxRetries {
			return fmt.Errorf("%s: gave up after %d attempts: %w", op, attempt+1, err)
		}
		s.log.Warn("document changed concurrently, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt+1),
		)
	}
}
