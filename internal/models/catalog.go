package models

import (
	"encoding/json"
	"strconv"

	"github.com/magabrotheeeer/ssh-subscription/internal/lib/money"
)

// DefaultCurrency валюта, в которой исторически заданы цены каталога.
const DefaultCurrency = "EUR"

// PurchaseOption описывает тариф каталога.
type PurchaseOption struct {
	PlanCode       string // Ключ тарифа: 1m, 2m, 3m, 6m, 1y, 5y
	PriceMinor     int64  // Цена в минимальных единицах валюты
	Currency       string // Код валюты ISO-4217
	AlternatePrice string // Цена в альтернативной валюте, только для отображения
	Description    string // Описание, уходит в заказ шлюза

	extra map[string]json.RawMessage
}

type purchaseOptionWire struct {
	PriceMinor     int64  `json:"price_minor"`
	Currency       string `json:"currency"`
	AlternatePrice string `json:"alternate_price,omitempty"`
	Description    string `json:"comment"`
}

var purchaseOptionKeys = []string{"price_minor", "currency", "alternate_price", "comment"}

// Поля, в которых бот хранил цены до появления price_minor.
const (
	legacyPriceKey     = "Stripe_EUR"
	legacyAlternateKey = "Litecoin_LTC"
)

// MarshalJSON реализует json.Marshaler.
func (p PurchaseOption) MarshalJSON() ([]byte, error) {
	return mergeExtra(purchaseOptionWire{
		PriceMinor:     p.PriceMinor,
		Currency:       p.Currency,
		AlternatePrice: p.AlternatePrice,
		Description:    p.Description,
	}, p.extra)
}

// UnmarshalJSON реализует json.Unmarshaler. Старые записи вида
// {"Stripe_EUR": 2, "Litecoin_LTC": 0.004} переводятся в price_minor и alternate_price,
// исходные поля сохраняются как есть.
func (p *PurchaseOption) UnmarshalJSON(data []byte) error {
	var w struct {
		PriceMinor     *int64 `json:"price_minor"`
		Currency       string `json:"currency"`
		AlternatePrice string `json:"alternate_price"`
		Description    string `json:"comment"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	extra, err := splitExtra(data, purchaseOptionKeys...)
	if err != nil {
		return err
	}
	*p = PurchaseOption{
		Currency:       w.Currency,
		AlternatePrice: w.AlternatePrice,
		Description:    w.Description,
		extra:          extra,
	}
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	if w.PriceMinor != nil {
		p.PriceMinor = *w.PriceMinor
	} else if raw, ok := extra[legacyPriceKey]; ok {
		var major float64
		if err := json.Unmarshal(raw, &major); err != nil {
			return err
		}
		p.PriceMinor = money.FromMajor(major, p.Currency)
	}
	if p.AlternatePrice == "" {
		if raw, ok := extra[legacyAlternateKey]; ok {
			var ltc float64
			if err := json.Unmarshal(raw, &ltc); err == nil {
				p.AlternatePrice = strconv.FormatFloat(ltc, 'f', -1, 64) + " LTC"
			}
		}
	}
	return nil
}

// Coupon промокод каталога. Погашение промокодов не реализовано, каталог только показывает их.
type Coupon struct {
	Code              string // Ключ промокода
	RemainingQuantity int    // Сколько раз еще можно применить
	GrantedDuration   string // Длительность, например 1w или 1m

	extra map[string]json.RawMessage
}

type couponWire struct {
	RemainingQuantity int    `json:"quantity"`
	GrantedDuration   string `json:"TimeLength"`
}

// MarshalJSON реализует json.Marshaler.
func (c Coupon) MarshalJSON() ([]byte, error) {
	return mergeExtra(couponWire{
		RemainingQuantity: c.RemainingQuantity,
		GrantedDuration:   c.GrantedDuration,
	}, c.extra)
}

// UnmarshalJSON реализует json.Unmarshaler.
func (c *Coupon) UnmarshalJSON(data []byte) error {
	var w couponWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	extra, err := splitExtra(data, "quantity", "TimeLength")
	if err != nil {
		return err
	}
	*c = Coupon{
		RemainingQuantity: w.RemainingQuantity,
		GrantedDuration:   w.GrantedDuration,
		extra:             extra,
	}
	return nil
}

// DefaultPurchaseOptions каталог, которым засевается пустое хранилище.
func DefaultPurchaseOptions() map[string]PurchaseOption {
	option := func(code string, priceMinor int64, alt, comment string) PurchaseOption {
		return PurchaseOption{
			PlanCode:       code,
			PriceMinor:     priceMinor,
			Currency:       DefaultCurrency,
			AlternatePrice: alt,
			Description:    comment,
		}
	}
	return map[string]PurchaseOption{
		"1m": option("1m", 200, "0.004 LTC", "1month subscription"),
		"2m": option("2m", 400, "0.008 LTC", "2month subscription"),
		"3m": option("3m", 500, "0.01 LTC", "3month subscription"),
		"6m": option("6m", 800, "0.016 LTC", "6month subscription"),
		"1y": option("1y", 1000, "0.02 LTC", "1year subscription"),
		"5y": option("5y", 4000, "0.08 LTC", "5year subscription"),
	}
}

// DefaultCoupons промокоды, которыми засевается пустое хранилище.
func DefaultCoupons() map[string]Coupon {
	return map[string]Coupon{
		"freeweek":  {Code: "freeweek", RemainingQuantity: 2, GrantedDuration: "1w"},
		"freemonth": {Code: "freemonth", RemainingQuantity: 2, GrantedDuration: "1m"},
	}
}
