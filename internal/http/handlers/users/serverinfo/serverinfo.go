// Package serverinfo отдает активному пользователю адрес хоста и имя учетной записи.
package serverinfo

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/ssh-subscription/internal/http/response"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/ssh-subscription/internal/services/account"
)

// Service возвращает данные для подключения.
type Service interface {
	ServerInfo(ctx context.Context, userID string) (*account.ServerInfo, error)
}

// Handler обрабатывает запрос данных для подключения.
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
// @Summary Данные для подключения
// @Tags Users
// @Produce json
// @Param id path string true "ID пользователя"
// @Success 200 {object} response.Response{data=account.ServerInfo}
// @Failure 404 {object} response.ErrorResponse "Нет активной подписки"
// @Failure 500 {object} response.ErrorResponse
// @Router /users/{id}/serverinfo [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.serverinfo"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := chi.URLParam(r, "id")
	if userID == "" {
		response.WriteError(w, r, http.StatusBadRequest, "user id is required")
		return
	}

	info, err := h.service.ServerInfo(r.Context(), userID)
	switch {
	case errors.Is(err, account.ErrNoActiveSubscription):
		response.WriteError(w, r, http.StatusNotFound, "no active subscription")
		return
	case err != nil:
		log.Error("failed to read server info", slog.String("user_id", userID), sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(info))
}
