// internal/report/json.go
package report

import (
	"context"
	"encoding/json"
	"fmt"
)

// JSONGenerator генератор JSON отчётов
type JSONGenerator struct {
	BaseGenerator
}

// NewJSONGenerator создаёт новый генератор
func NewJSONGenerator() *JSONGenerator {
	return &JSONGenerator{}
}

// Format возвращает формат генератора
func (g *JSONGenerator) Format() Format {
	return FormatJSON
}

// jsonReport сериализуемая форма отчёта
type jsonReport struct {
	Title       string `json:"title"`
	GeneratedAt string `json:"generated_at"`
	Delivery    any    `json:"delivery"`
	Customer    any    `json:"customer"`
	Route       any    `json:"route"`
	Snapshots   any    `json:"snapshots"`
	Sent        any    `json:"notifications"`
	Executions  any    `json:"workflow_executions"`
}

// Generate генерирует JSON отчёт
func (g *JSONGenerator) Generate(ctx context.Context, data *ReportData) ([]byte, error) {
	payload := jsonReport{
		Title:       g.Title(data),
		GeneratedAt: g.FormatTime(data.GeneratedAt),
		Delivery:    data.Delivery,
		Customer:    data.Customer,
		Route:       data.Route,
		Snapshots:   data.Snapshots,
		Sent:        data.Notifications,
		Executions:  data.Executions,
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json marshal error: %w", err)
	}
	return out, nil
}
