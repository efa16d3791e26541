package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/ssh-subscription/internal/models"
)

// ListUsers возвращает всех пользователей в порядке документа.
func (s *Storage) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.ListUsers"
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc.Users, nil
}

// GetUser возвращает пользователя по идентификатору или ErrUserNotFound.
func (s *Storage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.GetUser"
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u, ok := doc.User(userID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return &u, nil
}

// UpsertUser заменяет запись пользователя целиком или добавляет новую.
func (s *Storage) UpsertUser(ctx context.Context, u models.User) error {
	const op = "storage.UpsertUser"
	err := s.Update(ctx, func(doc *models.Document) error {
		doc.UpsertUser(u)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteUser удаляет пользователя. Отсутствующий пользователь не считается ошибкой,
// результат сообщает, был ли кто-то удален.
func (s *Storage) DeleteUser(ctx context.Context, userID string) (bool, error) {
	const op = "storage.DeleteUser"
	var removed bool
	err := s.Update(ctx, func(doc *models.Document) error {
		gone := doc.RemoveUsers(func(u models.User) bool { return u.UserID == userID })
		removed = len(gone) > 0
		if !removed {
			return ErrNothingToSave
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return removed, nil
}

// DeleteExpiredUsers одной записью удаляет пользователей из ids, у которых на момент now
// срок доступа по-прежнему истек. Пользователь, продливший доступ после выборки, остается.
func (s *Storage) DeleteExpiredUsers(ctx context.Context, ids []string, now time.Time) ([]models.User, error) {
	const op = "storage.DeleteExpiredUsers"
	if len(ids) == 0 {
		return nil, nil
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var removed []models.User
	err := s.Update(ctx, func(doc *models.Document) error {
		removed = doc.RemoveUsers(func(u models.User) bool {
			_, ok := wanted[u.UserID]
			return ok && u.HasAccount() && u.IsExpired(now)
		})
		if len(removed) == 0 {
			return ErrNothingToSave
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return removed, nil
}
