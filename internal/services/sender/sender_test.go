package sender

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/ssh-subscription/internal/lib/smtp"
	"github.com/magabrotheeeer/ssh-subscription/internal/models"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) GetSMTPUser() string {
	args := m.Called()
	return args.String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	args := m.Called(from)
	return args.Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	args := m.Called(to)
	return args.Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSMTPClient) Quit() error {
	args := m.Called()
	return args.Error(0)
}

type bufferWriter struct {
	bytes.Buffer
	closed bool
}

func (w *bufferWriter) Close() error {
	w.closed = true
	return nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func setupSuccessfulClient(t *testing.T) (*MockTransport, *MockSMTPClient, *bufferWriter) {
	t.Helper()
	transport := new(MockTransport)
	client := new(MockSMTPClient)
	writer := &bufferWriter{}

	transport.On("GetSMTPUser").Return("bot@example.com")
	transport.On("Connect").Return(client, nil)
	client.On("Mail", "bot@example.com").Return(nil)
	client.On("Rcpt", "admin@example.com").Return(nil)
	client.On("Data").Return(writer, nil)
	client.On("Quit").Return(nil)
	client.On("Close").Return(nil)
	return transport, client, writer
}

func TestSendAccessRevoked_Success(t *testing.T) {
	transport, client, writer := setupSuccessfulClient(t)
	s := NewSenderService("admin@example.com", newNoopLogger(), transport)

	body, err := json.Marshal(models.AccessRevoked{
		UserID:    "42",
		SSHName:   "alice",
		Reason:    models.RevokeReasonExpired,
		RevokedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NoError(t, s.SendAccessRevoked(body))

	msg := writer.String()
	assert.Contains(t, msg, "From: bot@example.com\r\n")
	assert.Contains(t, msg, "To: admin@example.com\r\n")
	assert.Contains(t, msg, "Subject: SSH access revoked: alice\r\n")
	assert.Contains(t, msg, "Reason: expired")
	assert.Contains(t, msg, "2026-01-02T03:04:05Z")
	assert.True(t, writer.closed)
	transport.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestSendEntitlementGranted_Success(t *testing.T) {
	transport, client, writer := setupSuccessfulClient(t)
	s := NewSenderService("admin@example.com", newNoopLogger(), transport)

	body, err := json.Marshal(models.EntitlementGranted{
		UserID:   "42",
		OrderID:  "ORDER-1",
		PlanCode: "3m",
		ExpireAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NoError(t, s.SendEntitlementGranted(body))

	msg := writer.String()
	assert.Contains(t, msg, "Subject: Subscription paid: 42\r\n")
	assert.Contains(t, msg, "order ORDER-1 for plan 3m")
	client.AssertExpectations(t)
}

func TestSend_InvalidBody(t *testing.T) {
	transport := new(MockTransport)
	s := NewSenderService("admin@example.com", newNoopLogger(), transport)

	assert.Error(t, s.SendAccessRevoked([]byte("{broken")))
	assert.Error(t, s.SendEntitlementGranted([]byte("[]")))
	transport.AssertNotCalled(t, "Connect")
}

func TestSend_NoAdminEmailIsDropped(t *testing.T) {
	transport := new(MockTransport)
	s := NewSenderService("", newNoopLogger(), transport)

	body, _ := json.Marshal(models.AccessRevoked{UserID: "1", SSHName: "bob"})
	assert.NoError(t, s.SendAccessRevoked(body))
	transport.AssertNotCalled(t, "Connect")
}

func TestSend_ConnectError(t *testing.T) {
	transport := new(MockTransport)
	transport.On("GetSMTPUser").Return("bot@example.com")
	transport.On("Connect").Return(nil, errors.New("connection refused"))
	s := NewSenderService("admin@example.com", newNoopLogger(), transport)

	body, _ := json.Marshal(models.AccessRevoked{UserID: "1", SSHName: "bob"})
	err := s.SendAccessRevoked(body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSend_RcptError(t *testing.T) {
	transport := new(MockTransport)
	client := new(MockSMTPClient)
	transport.On("GetSMTPUser").Return("bot@example.com")
	transport.On("Connect").Return(client, nil)
	client.On("Mail", "bot@example.com").Return(nil)
	client.On("Rcpt", "admin@example.com").Return(errors.New("mailbox unavailable"))
	client.On("Close").Return(nil)
	s := NewSenderService("admin@example.com", newNoopLogger(), transport)

	body, _ := json.Marshal(models.EntitlementGranted{UserID: "1", OrderID: "O", PlanCode: "1m"})
	err := s.SendEntitlementGranted(body)
	require.Error(t, err)
	client.AssertNotCalled(t, "Data")
	client.AssertCalled(t, "Close")
}
