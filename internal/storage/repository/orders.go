package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/ssh-subscription/internal/models"
)

// AddOrder сохраняет новый заказ. Повторный OrderID дает ErrOrderExists.
func (s *Storage) AddOrder(ctx context.Context, o models.PaymentOrder) error {
	const op = "storage.AddOrder"
	err := s.Update(ctx, func(doc *models.Document) error {
		if _, ok := doc.Order(o.OrderID); ok {
			return ErrOrderExists
		}
		doc.PutOrder(o)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetOrder возвращает заказ по идентификатору или ErrOrderNotFound.
func (s *Storage) GetOrder(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	const op = "storage.GetOrder"
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	o, ok := doc.Order(orderID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
	}
	return &o, nil
}

// UpdateOrderStatus применяет к заказу статус reported по правилу монотонности и
// возвращает статус, который остался в хранилище, и признак того, что reported принят.
func (s *Storage) UpdateOrderStatus(ctx context.Context, orderID string, reported models.OrderStatus, now time.Time) (models.OrderStatus, bool, error) {
	const op = "storage.UpdateOrderStatus"
	var (
		stored   models.OrderStatus
		accepted bool
	)
	err := s.Update(ctx, func(doc *models.Document) error {
		o, ok := doc.Order(orderID)
		if !ok {
			return ErrOrderNotFound
		}
		stored, accepted = models.MergeStatus(o.Status, reported)
		if !accepted || stored == o.Status {
			return ErrNothingToSave
		}
		o.Touch(stored, now)
		doc.PutOrder(o)
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return stored, accepted, nil
}

// Catalog возвращает тарифы и промокоды из документа.
func (s *Storage) Catalog(ctx context.Context) (map[string]models.PurchaseOption, map[string]models.Coupon, error) {
	const op = "storage.Catalog"
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc.PurchaseOptions, doc.Coupons, nil
}

// SeedCatalog записывает каталог по умолчанию, если хранилище еще пустое.
func (s *Storage) SeedCatalog(ctx context.Context) error {
	const op = "storage.SeedCatalog"
	err := s.Update(ctx, func(doc *models.Document) error {
		if doc.Version > 0 {
			return ErrNothingToSave
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
