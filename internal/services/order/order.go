// Package order создает платежные заказы и сверяет их статус со шлюзом,
// продлевая доступ пользователя после оплаты.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/ssh-subscription/internal/cache"
	"github.com/magabrotheeeer/ssh-subscription/internal/catalog"
	"github.com/magabrotheeeer/ssh-subscription/internal/config"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/ssh-subscription/internal/metrics"
	"github.com/magabrotheeeer/ssh-subscription/internal/models"
	"github.com/magabrotheeeer/ssh-subscription/internal/paymentprovider"
	"github.com/magabrotheeeer/ssh-subscription/internal/storage/repository"
)

var (
	// ErrInvalidPlan тарифа нет в каталоге или для него не задан срок.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrServiceUnavailable платежный шлюз недоступен.
	ErrServiceUnavailable = errors.New("payment service is unavailable")
	// ErrOrderNotFound заказ неизвестен.
	ErrOrderNotFound = errors.New("order not found")
	// ErrUnauthorized заказ принадлежит другому пользователю.
	ErrUnauthorized = errors.New("order belongs to another user")
	// ErrReconcileInProgress заказ уже сверяется другим запросом.
	ErrReconcileInProgress = errors.New("order check is already in progress")
)

const defaultLockTTL = 30 * time.Second

// Outcome итог сверки заказа.
type Outcome string

// Возможные итоги сверки.
const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeAlreadyCompleted Outcome = "already_completed"
	OutcomeCaptureFailed    Outcome = "capture_failed"
	OutcomePending          Outcome = "pending"
)

// Gateway платежный шлюз.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, description string) (*paymentprovider.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*paymentprovider.Order, error)
	GetOrderDetails(ctx context.Context, orderID string) (*paymentprovider.Order, error)
}

// Repository хранилище заказов и пользователей.
type Repository interface {
	AddOrder(ctx context.Context, o models.PaymentOrder) error
	GetOrder(ctx context.Context, orderID string) (*models.PaymentOrder, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdateOrderStatus(ctx context.Context, orderID string, reported models.OrderStatus, now time.Time) (models.OrderStatus, bool, error)
	Update(ctx context.Context, fn func(doc *models.Document) error) error
}

// Catalog источник тарифов.
type Catalog interface {
	Plan(code string) (models.PurchaseOption, bool)
}

// Cache общий кэш и блокировки между экземплярами.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// Publisher публикует события доступа.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

// InitiateResult созданный заказ и ссылка на оплату.
type InitiateResult struct {
	OrderID    string             `json:"order_id"`
	ApproveURL string             `json:"approve_url"`
	Status     models.OrderStatus `json:"status"`
}

// ReconcileResult итог сверки заказа.
type ReconcileResult struct {
	OrderID  string             `json:"order_id"`
	Outcome  Outcome            `json:"outcome"`
	Status   models.OrderStatus `json:"status"`
	ExpireAt *time.Time         `json:"expire_at,omitempty"`
	Warning  string             `json:"warning,omitempty"`
}

// Service реализует создание и сверку заказов.
type Service struct {
	repo      Repository
	gateway   Gateway
	catalog   Catalog
	cache     Cache
	publisher Publisher
	cfg       config.Order
	log       *slog.Logger
	now       func() time.Time

	inflight sync.Map
}

// NewService создает Service. cache и publisher могут быть nil: тогда повторные запросы
// не дедуплицируются между экземплярами, а события не публикуются.
func NewService(repo Repository, gateway Gateway, cat Catalog, c Cache, pub Publisher, cfg config.Order, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		gateway:   gateway,
		catalog:   cat,
		cache:     c,
		publisher: pub,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Initiate создает у шлюза заказ на тариф planCode и сохраняет его со статусом CREATED.
// Повтор того же запроса в течение DedupeTTL возвращает уже созданный заказ.
func (s *Service) Initiate(ctx context.Context, userID, planCode string) (*InitiateResult, error) {
	const op = "order.Initiate"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID), slog.String("plan", planCode))

	plan, ok := s.catalog.Plan(planCode)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidPlan)
	}
	if _, ok := catalog.Duration(planCode); !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidPlan)
	}

	dedupeKey := "order:initiate:" + userID + ":" + planCode
	if s.cache != nil && s.cfg.DedupeTTL > 0 {
		var cached InitiateResult
		found, err := s.cache.Get(ctx, dedupeKey, &cached)
		if err != nil {
			log.Warn("dedupe cache is unavailable", sl.Err(err))
		} else if found {
			if status, ok := s.awaitingPayment(ctx, cached.OrderID); ok {
				log.Info("returning recently created order", slog.String("order_id", cached.OrderID))
				cached.Status = status
				return &cached, nil
			}
			log.Info("recently created order is no longer awaiting payment", slog.String("order_id", cached.OrderID))
		}
	}

	currency := plan.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}
	created, err := s.gateway.CreateOrder(ctx, plan.PriceMinor, currency, plan.Description)
	if err != nil {
		log.Error("failed to create gateway order", sl.Err(err))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrServiceUnavailable, err)
	}

	now := s.now()
	err = s.repo.AddOrder(ctx, models.PaymentOrder{
		OrderID:     created.ID,
		UserID:      userID,
		PlanCode:    planCode,
		AmountMinor: plan.PriceMinor,
		Currency:    currency,
		Status:      models.StatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		log.Error("failed to save order", slog.String("order_id", created.ID), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &InitiateResult{OrderID: created.ID, ApproveURL: created.ApproveURL, Status: models.StatusCreated}
	if s.cache != nil && s.cfg.DedupeTTL > 0 {
		if err := s.cache.Set(ctx, dedupeKey, res, s.cfg.DedupeTTL); err != nil {
			log.Warn("failed to cache created order", sl.Err(err))
		}
	}
	metrics.OrdersInitiated.WithLabelValues(planCode).Inc()
	log.Info("order created", slog.String("order_id", created.ID), slog.String("gateway_status", string(created.Status)))
	return res, nil
}

// awaitingPayment возвращает сохраненный статус заказа, если покупатель его еще не оплатил.
func (s *Service) awaitingPayment(ctx context.Context, orderID string) (models.OrderStatus, bool) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		if !errors.Is(err, repository.ErrOrderNotFound) {
			s.log.Warn("failed to check cached order", slog.String("order_id", orderID), sl.Err(err))
		}
		return "", false
	}
	if o.Status.Rank() != models.StatusCreated.Rank() {
		return "", false
	}
	return o.Status, true
}

// Reconcile сверяет заказ со шлюзом от имени userID и при оплате продлевает доступ.
func (s *Service) Reconcile(ctx context.Context, userID, orderID string) (*ReconcileResult, error) {
	const op = "order.Reconcile"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID), slog.String("order_id", orderID))

	stored, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if stored.UserID != userID {
		log.Warn("order owner mismatch")
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	unlock, err := s.lock(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	// заказ мог измениться, пока ждали блокировку
	stored, err = s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var res *ReconcileResult
	if stored.Status == models.StatusCompleted {
		res, err = s.alreadyCompleted(ctx, stored)
	} else {
		details, gwErr := s.gateway.GetOrderDetails(ctx, orderID)
		if gwErr != nil {
			log.Error("failed to get order details", sl.Err(gwErr))
			return nil, fmt.Errorf("%s: %w: %w", op, ErrServiceUnavailable, gwErr)
		}
		log.Info("gateway reported order status", slog.String("status", string(details.Status)))

		switch details.Status {
		case models.StatusCompleted:
			res, err = s.complete(ctx, stored)
		case models.StatusApproved:
			res, err = s.capture(ctx, stored)
		default:
			res, err = s.pending(ctx, stored, details.Status)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.OrdersReconciled.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

func (s *Service) capture(ctx context.Context, o *models.PaymentOrder) (*ReconcileResult, error) {
	log := s.log.With(slog.String("op", "order.capture"), slog.String("order_id", o.OrderID))

	stored, accepted, err := s.repo.UpdateOrderStatus(ctx, o.OrderID, models.StatusApproved, s.now())
	if err != nil {
		return nil, err
	}
	if stored == models.StatusCompleted {
		return s.alreadyCompleted(ctx, o)
	}
	if !accepted {
		log.Warn("order is closed, not capturing", slog.String("stored", string(stored)))
		return &ReconcileResult{
			OrderID: o.OrderID,
			Outcome: OutcomePending,
			Status:  models.StatusApproved,
			Warning: fmt.Sprintf("gateway reported %s, keeping %s", models.StatusApproved, stored),
		}, nil
	}

	captured, err := s.gateway.CaptureOrder(ctx, o.OrderID)
	if err != nil {
		log.Error("capture failed", sl.Err(err))
		return &ReconcileResult{OrderID: o.OrderID, Outcome: OutcomeCaptureFailed, Status: stored}, nil
	}
	if captured.Status != models.StatusCompleted {
		log.Warn("capture did not complete the order", slog.String("status", string(captured.Status)))
		return &ReconcileResult{OrderID: o.OrderID, Outcome: OutcomeCaptureFailed, Status: stored}, nil
	}
	return s.complete(ctx, o)
}

func (s *Service) pending(ctx context.Context, o *models.PaymentOrder, reported models.OrderStatus) (*ReconcileResult, error) {
	stored, accepted, err := s.repo.UpdateOrderStatus(ctx, o.OrderID, reported, s.now())
	if err != nil {
		return nil, err
	}
	res := &ReconcileResult{OrderID: o.OrderID, Outcome: OutcomePending, Status: reported}
	switch {
	case accepted:
	case !reported.IsKnown():
		res.Warning = fmt.Sprintf("gateway reported unrecognised status %s, keeping %s", reported, stored)
		s.log.Warn("ignoring unrecognised status",
			slog.String("order_id", o.OrderID),
			slog.String("stored", string(stored)),
			slog.String("reported", string(reported)),
		)
	default:
		res.Warning = fmt.Sprintf("gateway reported %s, keeping %s", reported, stored)
		s.log.Warn("ignoring status regression",
			slog.String("order_id", o.OrderID),
			slog.String("stored", string(stored)),
			slog.String("reported", string(reported)),
		)
	}
	return res, nil
}

// complete в одной транзакции отмечает заказ оплаченным и продлевает доступ.
// Заказ, который уже оплачен, повторно доступ не продлевает.
func (s *Service) complete(ctx context.Context, o *models.PaymentOrder) (*ReconcileResult, error) {
	log := s.log.With(slog.String("op", "order.complete"), slog.String("order_id", o.OrderID))

	var (
		res     *ReconcileResult
		granted *models.EntitlementGranted
	)
	err := s.repo.Update(ctx, func(doc *models.Document) error {
		res, granted = nil, nil
		now := s.now()

		cur, ok := doc.Order(o.OrderID)
		if !ok {
			return ErrOrderNotFound
		}
		user, hasUser := doc.User(cur.UserID)

		if cur.Status == models.StatusCompleted {
			res = &ReconcileResult{OrderID: cur.OrderID, Outcome: OutcomeAlreadyCompleted, Status: cur.Status}
			if hasUser {
				res.ExpireAt = user.ExpireAt
			}
			return repository.ErrNothingToSave
		}
		if _, accepted := models.MergeStatus(cur.Status, models.StatusCompleted); !accepted {
			res = &ReconcileResult{
				OrderID: cur.OrderID,
				Outcome: OutcomePending,
				Status:  cur.Status,
				Warning: fmt.Sprintf("gateway reported %s, keeping %s", models.StatusCompleted, cur.Status),
			}
			return repository.ErrNothingToSave
		}

		d, known := catalog.Duration(cur.PlanCode)
		if !known {
			log.Warn("unknown plan on order, granting default duration", slog.String("plan", cur.PlanCode))
			d = catalog.DefaultDuration
		}
		if !hasUser {
			user = models.User{UserID: cur.UserID, Language: models.LanguageEN}
		}
		user.SetExpireAt(now.Add(d))
		doc.UpsertUser(user)

		cur.Touch(models.StatusCompleted, now)
		doc.PutOrder(cur)

		res = &ReconcileResult{
			OrderID:  cur.OrderID,
			Outcome:  OutcomeCompleted,
			Status:   models.StatusCompleted,
			ExpireAt: user.ExpireAt,
		}
		granted = &models.EntitlementGranted{
			UserID:   cur.UserID,
			OrderID:  cur.OrderID,
			PlanCode: cur.PlanCode,
			ExpireAt: *user.ExpireAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if granted != nil {
		log.Info("access extended", slog.String("user_id", granted.UserID), slog.Time("expire_at", granted.ExpireAt))
		s.publish(ctx, models.EventEntitlementGranted, granted)
	}
	return res, nil
}

func (s *Service) alreadyCompleted(ctx context.Context, o *models.PaymentOrder) (*ReconcileResult, error) {
	res := &ReconcileResult{OrderID: o.OrderID, Outcome: OutcomeAlreadyCompleted, Status: models.StatusCompleted}
	u, err := s.repo.GetUser(ctx, o.UserID)
	switch {
	case err == nil:
		res.ExpireAt = u.ExpireAt
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, err
	}
	return res, nil
}

// lock захватывает блокировку сверки заказа внутри процесса и, если есть redis, между процессами.
func (s *Service) lock(ctx context.Context, orderID string) (func(), error) {
	if _, busy := s.inflight.LoadOrStore(orderID, struct{}{}); busy {
		return nil, ErrReconcileInProgress
	}
	release := func() { s.inflight.Delete(orderID) }
	if s.cache == nil {
		return release, nil
	}

	ttl := s.cfg.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	unlock, err := s.cache.TryLock(ctx, "lock:order:"+orderID, ttl)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			release()
			return nil, ErrReconcileInProgress
		}
		s.log.Warn("order lock is unavailable, checking without it", slog.String("order_id", orderID), sl.Err(err))
		return release, nil
	}
	return func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("failed to release order lock", slog.String("order_id", orderID), sl.Err(err))
		}
		release()
	}, nil
}

func (s *Service) publish(ctx context.Context, key string, msg any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, key, msg); err != nil {
		s.log.Error("failed to publish event", slog.String("event", key), sl.Err(err))
	}
}
