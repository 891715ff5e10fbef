package sms

import (
	"context"
	"fmt"
	"sync"

	"freightwatch/internal/adapters"
)

// Mock провайдер SMS для тестов и dev режима. Всегда доступен,
// запоминает отправленные сообщения в усечённом виде.
type Mock struct {
	// Fail заставляет провайдера возвращать ошибку
	Fail bool

	mu   sync.Mutex
	sent []string
}

// NewMock создаёт mock провайдер
func NewMock() *Mock { return &Mock{} }

func (m *Mock) ProviderName() string { return "mock-sms" }
func (m *Mock) Priority() int        { return adapters.MockPriority }
func (m *Mock) IsAvailable() bool    { return true }

func (m *Mock) Send(ctx context.Context, input *Input) (*Result, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	if m.Fail {
		return nil, fmt.Errorf("mock sms provider forced failure")
	}

	m.mu.Lock()
	m.sent = append(m.sent, FormatMessage(input.DeliveryID, input.Message, MaxLength))
	n := len(m.sent)
	m.mu.Unlock()

	return &Result{MessageID: fmt.Sprintf("mock-sms-%d", n)}, nil
}

// Sent возвращает копию списка отправленных сообщений
func (m *Mock) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.sent...)
}
