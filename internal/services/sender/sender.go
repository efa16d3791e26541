// Package sender отправляет администратору письма о событиях жизненного цикла доступа.
package sender

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/ssh-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/smtp"
	"github.com/magabrotheeeer/ssh-subscription/internal/models"
)

// ErrNoRecipient возвращается, когда адрес администратора не настроен.
var ErrNoRecipient = errors.New("admin email is not configured")

// SenderService формирует и отправляет письма через SMTP транспорт.
type SenderService struct {
	transport  smtp.TransportInterface
	adminEmail string
	log        *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(adminEmail string, log *slog.Logger, transport smtp.TransportInterface) *SenderService {
	return &SenderService{
		transport:  transport,
		adminEmail: adminEmail,
		log:        log,
	}
}

// SendAccessRevoked уведомляет администратора об отзыве доступа.
func (s *SenderService) SendAccessRevoked(body []byte) error {
	const op = "sender.SendAccessRevoked"
	var event models.AccessRevoked
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal message body", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}

	subject := fmt.Sprintf("SSH access revoked: %s", event.SSHName)
	bodyText := fmt.Sprintf("User %s lost ssh access.\n\nAccount: %s\nReason: %s\nRevoked at: %s\n",
		event.UserID, event.SSHName, event.Reason, event.RevokedAt.UTC().Format(time.RFC3339))

	return s.sendEmail(subject, bodyText)
}

// SendEntitlementGranted уведомляет администратора об оплаченном заказе.
func (s *SenderService) SendEntitlementGranted(body []byte) error {
	const op = "sender.SendEntitlementGranted"
	var event models.EntitlementGranted
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal message body", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}

	subject := fmt.Sprintf("Subscription paid: %s", event.UserID)
	bodyText := fmt.Sprintf("User %s paid order %s for plan %s.\n\nAccess is valid until %s.\n",
		event.UserID, event.OrderID, event.PlanCode, event.ExpireAt.UTC().Format(time.RFC3339))

	return s.sendEmail(subject, bodyText)
}

func (s *SenderService) sendEmail(subject, bodyText string) error {
	const op = "sender.sendEmail"
	if s.adminEmail == "" {
		s.log.Warn("dropping notification", slog.String("subject", subject), sl.Err(ErrNoRecipient))
		return nil
	}
	to := []string{s.adminEmail}
	from := s.transport.GetSMTPUser()

	msg := strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(from); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		_ = wc.Close()
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("email sent successfully", slog.Any("to", to), slog.String("subject", subject))
	return nil
}
