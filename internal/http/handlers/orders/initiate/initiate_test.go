package initiate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/ssh-subscription/internal/models"
	"github.com/magabrotheeeer/ssh-subscription/internal/services/order"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Initiate(ctx context.Context, userID, planCode string) (*order.InitiateResult, error) {
	args := m.Called(ctx, userID, planCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.InitiateResult), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestInitiateHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "success",
			requestBody: Request{UserID: "42", PlanCode: "1m"},
			setupMock: func(s *MockService) {
				s.On("Initiate", mock.Anything, "42", "1m").Return(&order.InitiateResult{
					OrderID:    "5O190127TN364715T",
					ApproveURL: "https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T",
					Status:     models.StatusCreated,
				}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
			expectedBody: `{"status":"OK","data":{"order_id":"5O190127TN364715T",` +
				`"approve_url":"https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T","status":"CREATED"}}`,
		},
		{
			name:           "invalid JSON",
			requestBody:    "{",
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name:           "missing plan",
			requestBody:    Request{UserID: "42"},
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"status":"Error","error":"field PlanCode is a required field"}`,
		},
		{
			name:        "unknown plan",
			requestBody: Request{UserID: "42", PlanCode: "7d"},
			setupMock: func(s *MockService) {
				s.On("Initiate", mock.Anything, "42", "7d").Return(nil, fmt.Errorf("order.Initiate: %w", order.ErrInvalidPlan)).Once()
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"status":"Error","error":"unknown plan"}`,
		},
		{
			name:        "gateway down",
			requestBody: Request{UserID: "42", PlanCode: "1m"},
			setupMock: func(s *MockService) {
				s.On("Initiate", mock.Anything, "42", "1m").
					Return(nil, fmt.Errorf("order.Initiate: %w: %w", order.ErrServiceUnavailable, errors.New("timeout"))).Once()
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"status":"Error","error":"payment service is unavailable"}`,
		},
		{
			name:        "store failure",
			requestBody: Request{UserID: "42", PlanCode: "1m"},
			setupMock: func(s *MockService) {
				s.On("Initiate", mock.Anything, "42", "1m").Return(nil, errors.New("disk full")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := new(MockService)
			tt.setupMock(s)

			var body []byte
			if str, ok := tt.requestBody.(string); ok {
				body = []byte(str)
			} else {
				var err error
				body, err = json.Marshal(tt.requestBody)
				assert.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-id"))
			w := httptest.NewRecorder()

			New(newNoopLogger(), s).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			s.AssertExpectations(t)
		})
	}
}
