// Package register заводит пользователя при первом обращении к боту.
package register

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/ssh-subscription/internal/http/response"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/ssh-subscription/internal/models"
	"github.com/magabrotheeeer/ssh-subscription/internal/services/account"
)

// Request тело запроса регистрации.
type Request struct {
	UserID      string `json:"user_id" validate:"required,numeric,max=32" example:"123456789"`
	DisplayName string `json:"display_name" validate:"max=64" example:"alice"`
	Language    string `json:"language" validate:"omitempty,oneof=en ru" example:"en"`
}

// UserResponse пользователь в ответе API. Пароль не отдается.
type UserResponse struct {
	UserID      string     `json:"user_id"`
	DisplayName string     `json:"display_name,omitempty"`
	Language    string     `json:"language"`
	SSHName     string     `json:"ssh_name,omitempty"`
	ExpireAt    *time.Time `json:"expire_at,omitempty"`
	Created     bool       `json:"created"`
}

// Service регистрирует пользователей.
type Service interface {
	Register(ctx context.Context, userID, displayName, language string) (*models.User, bool, error)
}

// Handler обрабатывает регистрацию.
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
// @Summary Регистрация пользователя
// @Description Создает пользователя, если его нет, иначе обновляет имя и язык
// @Tags Users
// @Accept json
// @Produce json
// @Param request body Request true "Пользователь чата"
// @Success 200 {object} response.Response{data=UserResponse} "Пользователь обновлен"
// @Success 201 {object} response.Response{data=UserResponse} "Пользователь создан"
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /users [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.register"
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

	u, created, err := h.service.Register(r.Context(), req.UserID, req.DisplayName, req.Language)
	if err != nil {
		if errors.Is(err, account.ErrInvalidLanguage) {
			response.WriteError(w, r, http.StatusUnprocessableEntity, "unsupported language")
			return
		}
		log.Error("failed to register user", sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	if created {
		w.WriteHeader(http.StatusCreated)
	}
	render.JSON(w, r, response.StatusOKWithData(UserResponse{
		UserID:      u.UserID,
		DisplayName: u.DisplayName,
		Language:    u.Language,
		SSHName:     u.SSHName,
		ExpireAt:    u.ExpireAt,
		Created:     created,
	}))
}
