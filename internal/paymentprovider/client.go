// Package paymentprovider клиент REST API PayPal v2: получение токена, создание заказа,
// списание и чтение статуса заказа.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/magabrotheeeer/ssh-subscription/internal/config"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/money"
	"github.com/magabrotheeeer/ssh-subscription/internal/metrics"
)

// Адреса API для режимов sandbox и live.
const (
	SandboxURL = "https://api-m.sandbox.paypal.com"
	LiveURL    = "https://api-m.paypal.com"
)

const maxErrorBody = 2048

// Client клиент PayPal.
type Client struct {
	apiURL     string
	creds      *clientcredentials.Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	log        *slog.Logger
}

// NewClient создает клиент по настройкам шлюза.
func NewClient(cfg config.Gateway, log *slog.Logger) *Client {
	apiURL := cfg.BaseURL
	if apiURL == "" {
		apiURL = SandboxURL
		if cfg.Mode == "live" {
			apiURL = LiveURL
		}
	}
	apiURL = strings.TrimRight(apiURL, "/")

	timeout := cfg.TimeoutGateway
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	c := &Client{
		apiURL: apiURL,
		creds: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     apiURL + "/v1/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "paypal",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || clientSide(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return c
}

// Authenticate получает новый токен доступа по client credentials.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	const op = "authenticate"
	start := time.Now()

	body, err := c.breaker.Execute(func() ([]byte, error) {
		token, err := c.token(ctx)
		return []byte(token), err
	})
	c.observe(op, start, err)
	if err != nil {
		return "", c.breakerError(op, ErrAuthFailure, err)
	}
	return string(body), nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	const op = "authenticate"
	tok, err := c.creds.Token(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))
	if err != nil {
		gwErr := &Error{Op: op, Kind: ErrAuthFailure, Cause: err}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			gwErr.StatusCode = re.Response.StatusCode
			gwErr.Body = truncate(string(re.Body))
			gwErr.Cause = nil
		}
		c.log.Error("failed to obtain gateway token", slog.String("op", op), slog.Int("status", gwErr.StatusCode))
		return "", gwErr
	}
	return tok.AccessToken, nil
}

// CreateOrder создает заказ на сумму amountMinor в минимальных единицах currency.
// Каждый вызов получает новый ключ идемпотентности.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, description string) (*Order, error) {
	const op = "create_order"
	payload := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			Amount: amount{
				CurrencyCode: currency,
				Value:        money.Format(amountMinor, currency),
			},
			Description: description,
		}},
	}
	headers := map[string]string{"PayPal-Request-Id": uuid.NewString()}
	return c.orderCall(ctx, op, http.MethodPost, "/v2/checkout/orders", payload, headers)
}

// CaptureOrder списывает оплату по подтвержденному заказу.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Order, error) {
	const op = "capture_order"
	return c.orderCall(ctx, op, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", nil, nil)
}

// GetOrderDetails читает текущий статус заказа.
func (c *Client) GetOrderDetails(ctx context.Context, orderID string) (*Order, error) {
	const op = "get_order"
	return c.orderCall(ctx, op, http.MethodGet, "/v2/checkout/orders/"+orderID, nil, nil)
}

func (c *Client) orderCall(ctx context.Context, op, method, path string, payload any, headers map[string]string) (*Order, error) {
	start := time.Now()
	// Токен и сам запрос идут одним вызовом автомата, чтобы успешная авторизация
	// не сбрасывала счетчик отказов.
	body, err := c.breaker.Execute(func() ([]byte, error) {
		token, err := c.token(ctx)
		if err != nil {
			return nil, err
		}
		return c.do(ctx, op, method, path, token, payload, headers)
	})
	c.observe(op, start, err)
	if err != nil {
		return nil, c.breakerError(op, ErrRequestFailure, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Op: op, Kind: ErrRequestFailure, Cause: err}
	}
	if resp.ID == "" {
		return nil, &Error{Op: op, Kind: ErrRequestFailure, Body: truncate(string(body))}
	}
	return resp.order(), nil
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, payload any, headers map[string]string) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, token, payload)
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrRequestFailure, Cause: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrRequestFailure, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrRequestFailure, StatusCode: resp.StatusCode, Cause: err}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.log.Error("unexpected gateway response",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
		)
		return nil, &Error{Op: op, Kind: ErrRequestFailure, StatusCode: resp.StatusCode, Body: truncate(string(body))}
	}
	return body, nil
}

// breakerError приводит отказ автомата к ошибке шлюза.
func (c *Client) breakerError(op string, kind, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &Error{Op: op, Kind: kind, Cause: err}
	}
	return err
}

func (c *Client) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.GatewayRequests.WithLabelValues(op, outcome).Inc()
	metrics.GatewayDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}

// String описывает клиент для логов без секретов.
func (c *Client) String() string {
	return fmt.Sprintf("paypal(%s)", c.apiURL)
}
