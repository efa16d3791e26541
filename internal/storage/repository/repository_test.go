package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/ssh-subscription/internal/models"
	"github.com/magabrotheeeer/ssh-subscription/internal/storage"
	"github.com/magabrotheeeer/ssh-subscription/internal/storage/filestore"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "DB.json")
	return New(filestore.New(path, newNoopLogger()), newNoopLogger(), 0), path
}

// conflictingBackend отдает конфликт версий первые conflicts вызовов Save.
type conflictingBackend struct {
	storage.Backend
	conflicts int
	saves     int
}

func (b *conflictingBackend) Save(ctx context.Context, doc *models.Document) error {
	b.saves++
	if b.saves <= b.conflicts {
		return storage.ErrVersionConflict
	}
	return b.Backend.Save(ctx, doc)
}

func TestStorage_LoadDefaultsWhenEmpty(t *testing.T) {
	s, _ := newTestStorage(t)

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), doc.Version)
	assert.Empty(t, doc.Users)
	assert.Equal(t, []string{"1m", "1y", "2m", "3m", "5y", "6m"}, doc.PlanCodes())
}

func TestStorage_LoadDefaultsWhenCorrupt(t *testing.T) {
	s, path := newTestStorage(t)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Users)
	assert.NotEmpty(t, doc.PurchaseOptions)
}

func TestStorage_UpsertAndGetUser(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	expire := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	u := models.User{UserID: "42", SSHName: "bob", SSHPassword: "pw", Language: models.LanguageRU}
	u.SetExpireAt(expire)
	require.NoError(t, s.UpsertUser(ctx, u))

	got, err := s.GetUser(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "bob", got.SSHName)
	require.NotNil(t, got.ExpireAt)
	assert.True(t, expire.Equal(*got.ExpireAt))

	u.SSHName = "bob2"
	require.NoError(t, s.UpsertUser(ctx, u))
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob2", users[0].SSHName)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStorage_DeleteUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	require.NoError(t, s.UpsertUser(ctx, models.User{UserID: "1"}))

	removed, err := s.DeleteUser(ctx, "1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.DeleteUser(ctx, "1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStorage_DeleteExpiredUsersRechecksExpiry(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	now := time.Now()

	expired := models.User{UserID: "old", SSHName: "old"}
	expired.SetExpireAt(now.Add(-time.Hour))
	renewed := models.User{UserID: "renewed", SSHName: "renewed"}
	renewed.SetExpireAt(now.Add(time.Hour))
	require.NoError(t, s.UpsertUser(ctx, expired))
	require.NoError(t, s.UpsertUser(ctx, renewed))

	removed, err := s.DeleteExpiredUsers(ctx, []string{"old", "renewed", "ghost"}, now)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "old", removed[0].UserID)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "renewed", users[0].UserID)
}

func TestStorage_Orders(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	o := models.PaymentOrder{
		OrderID:     "ORDER-1",
		UserID:      "1",
		PlanCode:    "1m",
		AmountMinor: 200,
		Currency:    "EUR",
		Status:      models.StatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.AddOrder(ctx, o))
	assert.ErrorIs(t, s.AddOrder(ctx, o), ErrOrderExists)

	status, accepted, err := s.UpdateOrderStatus(ctx, "ORDER-1", models.StatusApproved, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, models.StatusApproved, status)

	status, accepted, err = s.UpdateOrderStatus(ctx, "ORDER-1", models.StatusCreated, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, models.StatusApproved, status)

	got, err := s.GetOrder(ctx, "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.True(t, now.Add(time.Minute).Equal(got.UpdatedAt))

	_, _, err = s.UpdateOrderStatus(ctx, "ORDER-2", models.StatusApproved, now)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = s.GetOrder(ctx, "ORDER-2")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestStorage_UpdateRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "DB.json")
	backend := &conflictingBackend{Backend: filestore.New(path, newNoopLogger()), conflicts: 2}
	s := New(backend, newNoopLogger(), 3)

	calls := 0
	err := s.Update(ctx, func(doc *models.Document) error {
		calls++
		doc.UpsertUser(models.User{UserID: "1"})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	_, err = s.GetUser(ctx, "1")
	assert.NoError(t, err)
}

func TestStorage_UpdateGivesUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "DB.json")
	backend := &conflictingBackend{Backend: filestore.New(path, newNoopLogger()), conflicts: 10}
	s := New(backend, newNoopLogger(), 2)

	err := s.Update(context.Background(), func(doc *models.Document) error { return nil })
	assert.ErrorIs(t, err, storage.ErrVersionConflict)
	assert.Equal(t, 2, backend.saves)
}

func TestStorage_UpdatePassesThroughCallbackError(t *testing.T) {
	s, path := newTestStorage(t)
	boom := errors.New("boom")

	err := s.Update(context.Background(), func(doc *models.Document) error { return boom })
	assert.ErrorIs(t, err, boom)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStorage_ConcurrentUpsertsLoseNothing(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "DB.json")
	// Два экземпляра над одним файлом ведут себя как два процесса.
	a := New(filestore.New(path, newNoopLogger()), newNoopLogger(), 50)
	b := New(filestore.New(path, newNoopLogger()), newNoopLogger(), 50)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		id := string(rune('a' + i))
		go func() {
			defer wg.Done()
			assert.NoError(t, a.UpsertUser(ctx, models.User{UserID: "a-" + id}))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, b.UpsertUser(ctx, models.User{UserID: "b-" + id}))
		}()
	}
	wg.Wait()

	users, err := a.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 20)
}

func TestStorage_SeedCatalog(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStorage(t)

	require.NoError(t, s.SeedCatalog(ctx))
	_, err := os.Stat(path)
	require.NoError(t, err)

	plans, coupons, err := s.Catalog(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 6)
	assert.Contains(t, coupons, "freeweek")
}
