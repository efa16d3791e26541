package paymentprovider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/ssh-subscription/internal/config"
	"github.com/magabrotheeeer/ssh-subscription/internal/models"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type fakePayPal struct {
	t           *testing.T
	tokenStatus int
	orderStatus int
	tokens      atomic.Int32

	mu         sync.Mutex
	requestIDs []string
	lastCreate createOrderRequest
}

func (f *fakePayPal) created() ([]string, createOrderRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requestIDs...), f.lastCreate
}

func (f *fakePayPal) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokens.Add(1)
		user, pass, ok := r.BasicAuth()
		assert.True(f.t, ok)
		assert.Equal(f.t, "client", user)
		assert.Equal(f.t, "secret", pass)
		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"A21","token_type":"Bearer","expires_in":32400}`))
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, http.MethodPost, r.Method)
		assert.Equal(f.t, "Bearer A21", r.Header.Get("Authorization"))
		var req createOrderRequest
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.requestIDs = append(f.requestIDs, r.Header.Get("PayPal-Request-Id"))
		f.lastCreate = req
		f.mu.Unlock()
		if f.orderStatus != 0 {
			w.WriteHeader(f.orderStatus)
			_, _ = w.Write([]byte(`{"name":"INTERNAL_SERVER_ERROR"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"5O190127TN364715T","status":"CREATED","links":[
			{"href":"https://api-m.sandbox.paypal.com/v2/checkout/orders/5O190127TN364715T","rel":"self","method":"GET"},
			{"href":"https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T","rel":"approve","method":"GET"}]}`))
	})
	mux.HandleFunc("/v2/checkout/orders/5O190127TN364715T", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"id":"5O190127TN364715T","status":"APPROVED"}`))
	})
	mux.HandleFunc("/v2/checkout/orders/5O190127TN364715T/capture", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"5O190127TN364715T","status":"COMPLETED"}`))
	})
	mux.HandleFunc("/v2/checkout/orders/MISSING", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"name":"RESOURCE_NOT_FOUND"}`))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakePayPal) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewClient(config.Gateway{
		Mode:            "sandbox",
		BaseURL:         srv.URL,
		ClientID:        "client",
		ClientSecret:    "secret",
		TimeoutGateway:  2 * time.Second,
		BreakerFailures: 3,
		BreakerTimeout:  time.Minute,
	}, newNoopLogger())
}

func TestNewClient_SelectsURLByMode(t *testing.T) {
	sandbox := NewClient(config.Gateway{Mode: "sandbox"}, newNoopLogger())
	live := NewClient(config.Gateway{Mode: "live"}, newNoopLogger())

	assert.Equal(t, SandboxURL, sandbox.apiURL)
	assert.Equal(t, LiveURL, live.apiURL)
	assert.Equal(t, LiveURL+"/v1/oauth2/token", live.creds.TokenURL)
}

func TestAuthenticate(t *testing.T) {
	f := &fakePayPal{t: t}
	c := newTestClient(t, f)

	token, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A21", token)
}

func TestAuthenticate_Rejected(t *testing.T) {
	f := &fakePayPal{t: t, tokenStatus: http.StatusUnauthorized}
	c := newTestClient(t, f)

	_, err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthFailure)

	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusUnauthorized, gwErr.StatusCode)
	assert.Contains(t, gwErr.Body, "invalid_client")
}

func TestCreateOrder(t *testing.T) {
	f := &fakePayPal{t: t}
	c := newTestClient(t, f)
	ctx := context.Background()

	o, err := c.CreateOrder(ctx, 200, "EUR", "1month subscription")
	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", o.ID)
	assert.Equal(t, models.StatusCreated, o.Status)
	assert.Equal(t, "https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T", o.ApproveURL)

	_, sent := f.created()
	assert.Equal(t, "CAPTURE", sent.Intent)
	require.Len(t, sent.PurchaseUnits, 1)
	assert.Equal(t, "2.00", sent.PurchaseUnits[0].Amount.Value)
	assert.Equal(t, "EUR", sent.PurchaseUnits[0].Amount.CurrencyCode)
	assert.Equal(t, "1month subscription", sent.PurchaseUnits[0].Description)

	_, err = c.CreateOrder(ctx, 200, "EUR", "1month subscription")
	require.NoError(t, err)
	ids, _ := f.created()
	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.NotEqual(t, ids[0], ids[1])
	assert.Equal(t, int32(2), f.tokens.Load())
}

func TestGetOrderDetailsAndCapture(t *testing.T) {
	f := &fakePayPal{t: t}
	c := newTestClient(t, f)
	ctx := context.Background()

	o, err := c.GetOrderDetails(ctx, "5O190127TN364715T")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, o.Status)

	o, err = c.CaptureOrder(ctx, "5O190127TN364715T")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, o.Status)
}

func TestGetOrderDetails_NotFound(t *testing.T) {
	f := &fakePayPal{t: t}
	c := newTestClient(t, f)

	_, err := c.GetOrderDetails(context.Background(), "MISSING")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailure)

	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusNotFound, gwErr.StatusCode)
}

func TestBreaker_OpensOnServerErrors(t *testing.T) {
	f := &fakePayPal{t: t, orderStatus: http.StatusInternalServerError}
	c := newTestClient(t, f)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.CreateOrder(ctx, 200, "EUR", "x")
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	_, err := c.CreateOrder(ctx, 200, "EUR", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, err, ErrRequestFailure)
	ids, _ := f.created()
	assert.Len(t, ids, 3)
}

func TestBreaker_IgnoresClientErrors(t *testing.T) {
	f := &fakePayPal{t: t}
	c := newTestClient(t, f)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := c.GetOrderDetails(ctx, "MISSING")
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	_, err := c.GetOrderDetails(ctx, "5O190127TN364715T")
	assert.NoError(t, err)
}
