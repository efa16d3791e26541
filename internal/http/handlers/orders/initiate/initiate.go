// Package initiate создает заказ у платежного шлюза и отдает ссылку на оплату.
package initiate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/ssh-subscription/internal/http/response"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/ssh-subscription/internal/services/order"
)

// Request тело запроса создания заказа.
type Request struct {
	UserID   string `json:"user_id" validate:"required,max=32" example:"123456789"`
	PlanCode string `json:"plan" validate:"required,alphanum,max=8" example:"1m"`
}

// Service создает заказы.
type Service interface {
	Initiate(ctx context.Context, userID, planCode string) (*order.InitiateResult, error)
}

// Handler обрабатывает создание заказа.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, s Service) *Handler {
	return &Handler{
		log:      log,
		service:  s,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать заказ
// @Description Создает заказ у PayPal на цену тарифа и возвращает ссылку на оплату
// @Tags Orders
// @Accept json
// @Produce json
// @Param request body Request true "Пользователь и тариф"
// @Success 201 {object} response.Response{data=order.InitiateResult}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Неизвестный тариф"
// @Failure 503 {object} response.ErrorResponse "Платежный шлюз недоступен"
// @Failure 500 {object} response.ErrorResponse
// @Router /orders [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.orders.initiate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	res, err := h.service.Initiate(r.Context(), req.UserID, req.PlanCode)
	switch {
	case errors.Is(err, order.ErrInvalidPlan):
		response.WriteError(w, r, http.StatusUnprocessableEntity, "unknown plan")
		return
	case errors.Is(err, order.ErrServiceUnavailable):
		log.Error("payment gateway unavailable", sl.Err(err))
		response.WriteError(w, r, http.StatusServiceUnavailable, order.ErrServiceUnavailable.Error())
		return
	case err != nil:
		log.Error("failed to initiate order", sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	log.Info("order initiated", slog.String("user_id", req.UserID), slog.String("order_id", res.OrderID))
	w.WriteHeader(http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(res))
}
