package status

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/ssh-subscription/internal/services/account"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Status(ctx context.Context, userID string) (*account.Status, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Status), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestStatusHandler_ServeHTTP(t *testing.T) {
	expire := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		userID         string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "active user",
			userID: "42",
			setupMock: func(s *MockService) {
				s.On("Status", mock.Anything, "42").Return(&account.Status{
					Found: true, Active: true, ExpireAt: &expire, SSHName: "alice", Language: "en",
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"found":true,"active":true,"expire_at":"2026-03-01T12:00:00Z","ssh_name":"alice","language":"en"}}`,
		},
		{
			name:   "no account",
			userID: "7",
			setupMock: func(s *MockService) {
				s.On("Status", mock.Anything, "7").Return(&account.Status{}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"found":false,"active":false}}`,
		},
		{
			name:           "missing id",
			userID:         "",
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"user id is required"}`,
		},
		{
			name:   "service error",
			userID: "42",
			setupMock: func(s *MockService) {
				s.On("Status", mock.Anything, "42").Return(nil, errors.New("boom")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := new(MockService)
			tt.setupMock(s)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+tt.userID+"/status", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.userID)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
			w := httptest.NewRecorder()

			New(newNoopLogger(), s).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			s.AssertExpectations(t)
		})
	}
}
