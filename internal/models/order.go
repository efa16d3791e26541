package models

import (
	"encoding/json"
	"time"

	"github.com/magabrotheeeer/ssh-subscription/internal/lib/money"
)

// PaymentOrder заказ, созданный у платежного шлюза для покупки тарифа.
type PaymentOrder struct {
	OrderID     string      // Идентификатор заказа у шлюза, ключ в payments
	UserID      string      // Владелец заказа
	PlanCode    string      // Купленный тариф
	AmountMinor int64       // Сумма в минимальных единицах валюты
	Currency    string      // Код валюты
	Status      OrderStatus // Последний принятый статус
	CreatedAt   time.Time
	UpdatedAt   time.Time

	rawCreated string
	rawUpdated string
	extra      map[string]json.RawMessage
}

type paymentOrderWire struct {
	UserID      string      `json:"user_id"`
	PlanCode    string      `json:"plan"`
	Amount      float64     `json:"amount"`
	AmountMinor *int64      `json:"amount_minor,omitempty"`
	Currency    string      `json:"currency"`
	Status      OrderStatus `json:"status"`
	CreatedAt   string      `json:"created_at"`
	UpdatedAt   string      `json:"updated_at"`
}

var paymentOrderKeys = []string{"user_id", "plan", "amount", "amount_minor", "currency", "status", "created_at", "updated_at"}

// Touch выставляет новый статус и время обновления.
func (o *PaymentOrder) Touch(status OrderStatus, now time.Time) {
	o.Status = status
	o.UpdatedAt = now.Truncate(time.Microsecond)
	o.rawUpdated = ""
}

// MarshalJSON реализует json.Marshaler. Сумма пишется и в основных единицах (amount),
// как ее читает бот, и в минимальных (amount_minor).
func (o PaymentOrder) MarshalJSON() ([]byte, error) {
	minor := o.AmountMinor
	return mergeExtra(paymentOrderWire{
		UserID:      o.UserID,
		PlanCode:    o.PlanCode,
		Amount:      money.ToMajor(o.AmountMinor, o.Currency),
		AmountMinor: &minor,
		Currency:    o.Currency,
		Status:      o.Status,
		CreatedAt:   encodeTime(o.CreatedAt, o.rawCreated),
		UpdatedAt:   encodeTime(o.UpdatedAt, o.rawUpdated),
	}, o.extra)
}

// UnmarshalJSON реализует json.Unmarshaler.
func (o *PaymentOrder) UnmarshalJSON(data []byte) error {
	var w paymentOrderWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	extra, err := splitExtra(data, paymentOrderKeys...)
	if err != nil {
		return err
	}
	if w.Currency == "" {
		w.Currency = DefaultCurrency
	}
	created, updated := decodeStamp(w.CreatedAt), decodeStamp(w.UpdatedAt)
	*o = PaymentOrder{
		UserID:     w.UserID,
		PlanCode:   w.PlanCode,
		Currency:   w.Currency,
		Status:     w.Status,
		rawCreated: created.raw,
		rawUpdated: updated.raw,
		extra:      extra,
	}
	if w.AmountMinor != nil {
		o.AmountMinor = *w.AmountMinor
	} else {
		o.AmountMinor = money.FromMajor(w.Amount, w.Currency)
	}
	if created.t != nil {
		o.CreatedAt = *created.t
	}
	if updated.t != nil {
		o.UpdatedAt = *updated.t
	}
	return nil
}

func encodeTime(t time.Time, raw string) string {
	if t.IsZero() {
		return raw
	}
	return FormatTimestamp(&t)
}
