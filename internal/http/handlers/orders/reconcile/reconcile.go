// Package reconcile сверяет заказ со шлюзом и продлевает доступ после оплаты.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/ssh-subscription/internal/http/response"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/ssh-subscription/internal/services/order"
)

// Request тело запроса сверки: пользователь, от имени которого идет проверка.
type Request struct {
	UserID string `json:"user_id" validate:"required,max=32" example:"123456789"`
}

// Service сверяет заказы.
type Service interface {
	Reconcile(ctx context.Context, userID, orderID string) (*order.ReconcileResult, error)
}

// Handler обрабатывает сверку заказа.
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
// @Summary Проверить оплату
// @Description Запрашивает статус заказа у PayPal, при необходимости списывает средства
// @Description и продлевает доступ на срок тарифа
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "ID заказа"
// @Param request body Request true "Владелец заказа"
// @Success 200 {object} response.Response{data=order.ReconcileResult}
// @Failure 403 {object} response.ErrorResponse "Заказ принадлежит другому пользователю"
// @Failure 404 {object} response.ErrorResponse "Заказ не найден"
// @Failure 409 {object} response.ErrorResponse "Заказ уже проверяется"
// @Failure 503 {object} response.ErrorResponse "Платежный шлюз недоступен"
// @Failure 500 {object} response.ErrorResponse
// @Router /orders/{id}/reconcile [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.orders.reconcile"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		response.WriteError(w, r, http.StatusBadRequest, "order id is required")
		return
	}

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

	log = log.With(slog.String("order_id", orderID), slog.String("user_id", req.UserID))
	res, err := h.service.Reconcile(r.Context(), req.UserID, orderID)
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		response.WriteError(w, r, http.StatusNotFound, "order not found")
		return
	case errors.Is(err, order.ErrUnauthorized):
		log.Warn("order owner mismatch")
		response.WriteError(w, r, http.StatusForbidden, "unauthorized")
		return
	case errors.Is(err, order.ErrReconcileInProgress):
		response.WriteError(w, r, http.StatusConflict, "order check is already in progress")
		return
	case errors.Is(err, order.ErrServiceUnavailable):
		log.Error("payment gateway unavailable", sl.Err(err))
		response.WriteError(w, r, http.StatusServiceUnavailable, order.ErrServiceUnavailable.Error())
		return
	case err != nil:
		log.Error("failed to reconcile order", sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	log.Info("order reconciled", slog.String("outcome", string(res.Outcome)))
	render.JSON(w, r, response.StatusOKWithData(res))
}
