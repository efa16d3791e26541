// Package status отдает состояние подписки пользователя.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/ssh-subscription/internal/http/response"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/ssh-subscription/internal/services/account"
)

// Service читает состояние подписки.
type Service interface {
	Status(ctx context.Context, userID string) (*account.Status, error)
}

// Handler обрабатывает запрос состояния.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, s Service) *Handler {
	return &Handler{
		log:     log,
		service: s,
	}
}

// ServeHTTP godoc
// @Summary Состояние подписки
// @Description found=false означает, что у пользователя нет учетной записи
// @Tags Users
// @Produce json
// @Param id path string true "ID пользователя"
// @Success 200 {object} response.Response{data=account.Status}
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /users/{id}/status [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.status"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := chi.URLParam(r, "id")
	if userID == "" {
		response.WriteError(w, r, http.StatusBadRequest, "user id is required")
		return
	}

	st, err := h.service.Status(r.Context(), userID)
	if err != nil {
		log.Error("failed to read subscription status", slog.String("user_id", userID), sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(st))
}
