// Package cancel отзывает доступ по просьбе пользователя.
package cancel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/ssh-subscription/internal/http/response"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/ssh-subscription/internal/services/account"
)

// Confirmation фраза, которую пользователь вводит, чтобы подтвердить отказ от доступа.
const Confirmation = "iKnowWhatIamDoing"

// Request тело запроса отмены.
type Request struct {
	Confirmation string `json:"confirmation" example:"iKnowWhatIamDoing"`
}

// Service отменяет доступ.
type Service interface {
	Cancel(ctx context.Context, userID string) error
}

// Handler обрабатывает отмену доступа.
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
// @Summary Отказ от доступа
// @Description Отзывает ssh-доступ, архивирует домашний каталог и удаляет пользователя.
// @Description Поле confirmation должно совпадать с iKnowWhatIamDoing без учета регистра.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "ID пользователя"
// @Param request body Request true "Подтверждение"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Нет учетной записи"
// @Failure 422 {object} response.ErrorResponse "Нет подтверждения"
// @Failure 500 {object} response.ErrorResponse
// @Router /users/{id}/cancel [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.cancel"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := chi.URLParam(r, "id")
	if userID == "" {
		response.WriteError(w, r, http.StatusBadRequest, "user id is required")
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if !strings.EqualFold(strings.TrimSpace(req.Confirmation), Confirmation) {
		log.Info("cancel not confirmed", slog.String("user_id", userID))
		response.WriteError(w, r, http.StatusUnprocessableEntity, "confirmation phrase does not match")
		return
	}

	err := h.service.Cancel(r.Context(), userID)
	switch {
	case errors.Is(err, account.ErrNoAccount):
		response.WriteError(w, r, http.StatusNotFound, "no account")
		return
	case errors.Is(err, account.ErrProvisioning):
		log.Error("failed to revoke access", slog.String("user_id", userID), sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, "failed to revoke access")
		return
	case err != nil:
		log.Error("failed to cancel access", slog.String("user_id", userID), sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	log.Info("access cancelled", slog.String("user_id", userID))
	render.JSON(w, r, response.StatusOKWithData(map[string]string{"user_id": userID}))
}
