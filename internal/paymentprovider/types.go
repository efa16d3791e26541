package paymentprovider

import "github.com/magabrotheeeer/ssh-subscription/internal/models"

// Order заказ в том виде, в каком его вернул шлюз.
type Order struct {
	ID         string
	Status     models.OrderStatus
	ApproveURL string // Ссылка для подтверждения оплаты покупателем, только у нового заказа
}

// Запрос на создание заказа с немедленным списанием
type createOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type purchaseUnit struct {
	Amount      amount `json:"amount"`
	Description string `json:"description,omitempty"`
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// Ответ шлюза на создание, списание и чтение заказа
type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []link `json:"links"`
}

type link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

func (r orderResponse) order() *Order {
	o := &Order{ID: r.ID, Status: models.OrderStatus(r.Status)}
	for _, l := range r.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			o.ApproveURL = l.Href
			break
		}
	}
	return o
}
