package ai

import (
	"context"
	"fmt"

	"freightwatch/internal/adapters"
)

// Mock детерминированный генератор для тестов и dev режима.
// Всегда доступен.
type Mock struct {
	// Fail заставляет генератор возвращать ошибку
	Fail bool
	// Model подменяет имя модели в ответе
	Model string
}

// NewMock создаёт mock генератор
func NewMock() *Mock {
	return &Mock{Model: "mock-model"}
}

func (m *Mock) ProviderName() string { return "mock-ai" }
func (m *Mock) Priority() int        { return adapters.MockPriority }
func (m *Mock) IsAvailable() bool    { return true }

func (m *Mock) Generate(ctx context.Context, req *Request) (*Message, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if m.Fail {
		return nil, fmt.Errorf("mock ai generator forced failure")
	}

	model := m.Model
	if model == "" {
		model = "mock-model"
	}

	template := TemplateMessage(req)
	return &Message{
		Subject:    template.Subject,
		Body:       template.Body,
		ModelName:  model,
		TokenCount: len(template.Body) / 4,
	}, nil
}
