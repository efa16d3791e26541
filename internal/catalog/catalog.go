// Package catalog хранит неизменяемый снимок тарифов и промокодов, загруженный из хранилища.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/magabrotheeeer/ssh-subscription/internal/models"
)

const day = 24 * time.Hour

// DefaultDuration срок, который выдается по заказу с тарифом, которого нет в таблице сроков.
const DefaultDuration = 30 * day

var durations = map[string]time.Duration{
	"1m": 30 * day,
	"2m": 60 * day,
	"3m": 90 * day,
	"6m": 180 * day,
	"1y": 365 * day,
	"5y": 1825 * day,
}

// Duration возвращает срок доступа, который дает тариф code.
func Duration(code string) (time.Duration, bool) {
	d, ok := durations[code]
	return d, ok
}

// Source источник каталога.
type Source interface {
	Catalog(ctx context.Context) (map[string]models.PurchaseOption, map[string]models.Coupon, error)
}

type snapshot struct {
	plans   map[string]models.PurchaseOption
	coupons map[string]models.Coupon
}

// Catalog потокобезопасный доступ к текущему снимку.
type Catalog struct {
	src  Source
	log  *slog.Logger
	snap atomic.Pointer[snapshot]
}

// New загружает первый снимок из src.
func New(ctx context.Context, src Source, log *slog.Logger) (*Catalog, error) {
	c := &Catalog{src: src, log: log}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload перечитывает каталог и атомарно подменяет снимок.
func (c *Catalog) Reload(ctx context.Context) error {
	const op = "catalog.Reload"
	plans, coupons, err := c.src.Catalog(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s := &snapshot{
		plans:   make(map[string]models.PurchaseOption, len(plans)),
		coupons: make(map[string]models.Coupon, len(coupons)),
	}
	for code, p := range plans {
		p.PlanCode = code
		s.plans[code] = p
	}
	for code, cp := range coupons {
		cp.Code = code
		s.coupons[code] = cp
	}
	c.snap.Store(s)
	c.log.Info("catalog loaded",
		slog.String("op", op),
		slog.Int("plans", len(s.plans)),
		slog.Int("coupons", len(s.coupons)),
	)
	return nil
}

// Plan возвращает тариф по коду.
func (c *Catalog) Plan(code string) (models.PurchaseOption, bool) {
	p, ok := c.snap.Load().plans[code]
	return p, ok
}

// Plans возвращает тарифы по возрастанию срока.
func (c *Catalog) Plans() []models.PurchaseOption {
	s := c.snap.Load()
	out := make([]models.PurchaseOption, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := planOrder(out[i].PlanCode), planOrder(out[j].PlanCode)
		if di != dj {
			return di < dj
		}
		return out[i].PlanCode < out[j].PlanCode
	})
	return out
}

// Coupons возвращает промокоды по алфавиту.
func (c *Catalog) Coupons() []models.Coupon {
	s := c.snap.Load()
	out := make([]models.Coupon, 0, len(s.coupons))
	for _, cp := range s.coupons {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// planOrder ставит тарифы без известного срока в конец.
func planOrder(code string) time.Duration {
	if d, ok := durations[code]; ok {
		return d
	}
	return time.Duration(1<<63 - 1)
}
