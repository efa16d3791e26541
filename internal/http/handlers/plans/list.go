// Package plans отдает тарифы и промокоды каталога.
package plans

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/ssh-subscription/internal/catalog"
	"github.com/magabrotheeeer/ssh-subscription/internal/http/response"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/money"
	"github.com/magabrotheeeer/ssh-subscription/internal/models"
)

// Catalog источник тарифов.
type Catalog interface {
	Plans() []models.PurchaseOption
	Coupons() []models.Coupon
}

// Plan тариф в ответе API.
type Plan struct {
	Code           string `json:"code" example:"1m"`
	PriceMinor     int64  `json:"price_minor" example:"200"`
	Price          string `json:"price" example:"2.00"`
	Currency       string `json:"currency" example:"EUR"`
	AlternatePrice string `json:"alternate_price,omitempty"`
	Description    string `json:"description,omitempty"`
	DurationDays   int    `json:"duration_days" example:"30"`
}

// Coupon промокод в ответе API.
type Coupon struct {
	Code      string `json:"code"`
	Remaining int    `json:"remaining"`
	Duration  string `json:"duration"`
}

// ListResponse тело успешного ответа.
type ListResponse struct {
	Plans   []Plan   `json:"plans"`
	Coupons []Coupon `json:"coupons"`
}

// Handler обрабатывает запрос списка тарифов.
type Handler struct {
	log     *slog.Logger
	catalog Catalog
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, c Catalog) *Handler {
	return &Handler{
		log:     log,
		catalog: c,
	}
}

// ServeHTTP godoc
// @Summary Список тарифов
// @Description Возвращает тарифы каталога, отсортированные по сроку, и промокоды
// @Tags Plans
// @Produce json
// @Success 200 {object} response.Response{data=ListResponse}
// @Failure 401 {object} response.ErrorResponse
// @Router /plans [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	options := h.catalog.Plans()
	resp := ListResponse{
		Plans:   make([]Plan, 0, len(options)),
		Coupons: make([]Coupon, 0),
	}
	for _, p := range options {
		d, ok := catalog.Duration(p.PlanCode)
		if !ok {
			continue
		}
		resp.Plans = append(resp.Plans, Plan{
			Code:           p.PlanCode,
			PriceMinor:     p.PriceMinor,
			Price:          money.Format(p.PriceMinor, p.Currency),
			Currency:       p.Currency,
			AlternatePrice: p.AlternatePrice,
			Description:    p.Description,
			DurationDays:   int(d / (24 * time.Hour)),
		})
	}
	for _, c := range h.catalog.Coupons() {
		resp.Coupons = append(resp.Coupons, Coupon{
			Code:      c.Code,
			Remaining: c.RemainingQuantity,
			Duration:  c.GrantedDuration,
		})
	}
	render.JSON(w, r, response.StatusOKWithData(resp))
}
