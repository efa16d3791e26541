package paymentprovider

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthFailure шлюз не выдал токен доступа.
	ErrAuthFailure = errors.New("payment gateway authentication failed")
	// ErrRequestFailure запрос к шлюзу не выполнен или вернул неожиданный ответ.
	ErrRequestFailure = errors.New("payment gateway request failed")
)

// Error ошибка вызова шлюза. Kind равен ErrAuthFailure или ErrRequestFailure,
// Cause хранит исходную ошибку транспорта, если она была.
type Error struct {
	Op         string
	StatusCode int
	Body       string
	Kind       error
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("paymentprovider.%s: %v", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// clientSide сообщает, что шлюз отклонил запрос ответом 4xx. Такие ошибки не размыкают автомат.
func clientSide(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.StatusCode >= 400 && gwErr.StatusCode < 500
}
