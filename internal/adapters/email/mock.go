package email

import (
	"context"
	"fmt"
	"sync"

	"freightwatch/internal/adapters"
)

// Mock провайдер email для тестов и dev режима. Всегда доступен,
// запоминает отправленные письма.
type Mock struct {
	// Fail заставляет провайдера возвращать ошибку
	Fail bool

	mu   sync.Mutex
	sent []*Input
}

// NewMock создаёт mock провайдер
func NewMock() *Mock { return &Mock{} }

func (m *Mock) ProviderName() string { return "mock-email" }
func (m *Mock) Priority() int        { return adapters.MockPriority }
func (m *Mock) IsAvailable() bool    { return true }

func (m *Mock) Send(ctx context.Context, input *Input) (*Result, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	if m.Fail {
		return nil, fmt.Errorf("mock email provider forced failure")
	}

	m.mu.Lock()
	m.sent = append(m.sent, input)
	n := len(m.sent)
	m.mu.Unlock()

	return &Result{MessageID: fmt.Sprintf("mock-email-%d", n)}, nil
}

// Sent возвращает копию списка отправленных писем
func (m *Mock) Sent() []*Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Input{}, m.sent...)
}
