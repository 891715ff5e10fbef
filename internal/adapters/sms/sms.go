// Package sms реализует провайдеров отправки SMS нотификаций.
package sms

import (
	"context"
	"fmt"
	"strings"

	"freightwatch/internal/adapters"
	"freightwatch/pkg/apperror"
)

// MaxLength максимальная длина SMS сообщения
const MaxLength = 160

// Input сообщение для отправки
type Input struct {
	To         string
	Message    string
	DeliveryID string
}

// Result результат успешной отправки
type Result struct {
	MessageID string
}

// Notifier способность отправлять SMS
type Notifier interface {
	adapters.Provider
	Send(ctx context.Context, input *Input) (*Result, error)
}

// validate проверяет входные данные перед отправкой
func validate(input *Input) error {
	if input == nil {
		return apperror.New(apperror.CodeNilInput, "sms input is nil")
	}
	if input.To == "" {
		return apperror.NewWithField(apperror.CodeInvalidArgument,
			"recipient phone is required", "to")
	}
	if input.Message == "" {
		return apperror.NewWithField(apperror.CodeInvalidArgument,
			"message is required", "message")
	}
	return nil
}

// FormatMessage приводит сообщение к SMS формату: префикс
// "Delivery {id} Update: ", первые две содержательные строки текста,
// обрезка до maxLen символов с многоточием.
func FormatMessage(deliveryID, message string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = MaxLength
	}

	prefix := fmt.Sprintf("Delivery %s Update: ", deliveryID)

	var lines []string
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == 2 {
			break
		}
	}

	text := prefix + strings.Join(lines, " ")

	runes := []rune(text)
	if len(runes) > maxLen {
		cut := maxLen - 3
		if cut < 0 {
			cut = 0
		}
		text = string(runes[:cut]) + "…"
	}

	return text
}
