// Package email реализует провайдеров отправки email нотификаций.
package email

import (
	"context"

	"freightwatch/internal/adapters"
	"freightwatch/pkg/apperror"
)

// Input письмо для отправки
type Input struct {
	To         string
	Subject    string
	Body       string
	DeliveryID string
}

// Result результат успешной отправки
type Result struct {
	MessageID string
}

// Notifier способность отправлять email
type Notifier interface {
	adapters.Provider
	Send(ctx context.Context, input *Input) (*Result, error)
}

// validate проверяет входные данные перед отправкой
func validate(input *Input) error {
	if input == nil {
		return apperror.New(apperror.CodeNilInput, "email input is nil")
	}
	if input.To == "" {
		return apperror.NewWithField(apperror.CodeInvalidArgument,
			"recipient is required", "to")
	}
	if input.Body == "" {
		return apperror.NewWithField(apperror.CodeInvalidArgument,
			"message body is required", "body")
	}
	return nil
}
