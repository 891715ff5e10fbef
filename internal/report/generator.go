// internal/report/generator.go
package report

import (
	"context"
	"fmt"
	"time"

	"freightwatch/internal/domain"
	"freightwatch/internal/repository"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/telemetry"
)

// Format формат отчёта
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatExcel Format = "xlsx"
	FormatPDF   Format = "pdf"
)

// ParseFormat разбирает формат из запроса
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case FormatCSV, FormatJSON, FormatExcel, FormatPDF:
		return Format(value), nil
	case "":
		return FormatJSON, nil
	default:
		return "", apperror.Newf(apperror.CodeInvalidArgument, "unknown report format %q", value)
	}
}

// ContentType возвращает MIME тип формата
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// ReportData данные для отчёта по истории задержек доставки
type ReportData struct {
	Delivery      *domain.Delivery
	Customer      *domain.Customer
	Route         *domain.Route
	Snapshots     []*domain.TrafficSnapshot
	Notifications []*domain.Notification
	Executions    []*domain.WorkflowExecution
	GeneratedAt   time.Time
}

// Generator интерфейс генератора отчётов
type Generator interface {
	Generate(ctx context.Context, data *ReportData) ([]byte, error)
	Format() Format
}

// BaseGenerator базовые утилиты для генераторов
type BaseGenerator struct{}

// Title возвращает заголовок отчёта
func (b *BaseGenerator) Title(data *ReportData) string {
	return fmt.Sprintf("Delay Report - %s", data.Delivery.TrackingNumber)
}

// FormatTime форматирует момент времени
func (b *BaseGenerator) FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// FormatOptionalTime форматирует опциональный момент времени
func (b *BaseGenerator) FormatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return b.FormatTime(*t)
}

// Service собирает данные и выбирает генератор
type Service struct {
	repos      *repository.Repositories
	generators map[Format]Generator
}

// NewService создаёт сервис отчётов со всеми генераторами
func NewService(repos *repository.Repositories) *Service {
	s := &Service{
		repos:      repos,
		generators: make(map[Format]Generator),
	}
	for _, g := range []Generator{
		NewCSVGenerator(),
		NewJSONGenerator(),
		NewExcelGenerator(),
		NewPDFGenerator(),
	} {
		s.generators[g.Format()] = g
	}
	return s
}

// Build собирает данные отчёта из хранилища
func (s *Service) Build(ctx context.Context, deliveryID string, now time.Time) (*ReportData, error) {
	ctx, span := telemetry.StartSpan(ctx, "report.Service.Build",
		telemetry.WithAttributes(telemetry.DeliveryID(deliveryID)))
	defer span.End()

	delivery, err := s.repos.Deliveries.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	customer, err := s.repos.Customers.GetByID(ctx, delivery.CustomerID)
	if err != nil {
		return nil, err
	}
	route, err := s.repos.Routes.GetByID(ctx, delivery.RouteID)
	if err != nil {
		return nil, err
	}

	snapshots, _, err := s.repos.Snapshots.ListByRoute(ctx, route.ID, &repository.ListOptions{Limit: 200})
	if err != nil {
		return nil, err
	}
	notifications, _, err := s.repos.Notifications.ListByDelivery(ctx, deliveryID, &repository.ListOptions{Limit: 200})
	if err != nil {
		return nil, err
	}
	executions, _, err := s.repos.Executions.ListByDelivery(ctx, deliveryID, &repository.ListOptions{Limit: 100})
	if err != nil {
		return nil, err
	}

	return &ReportData{
		Delivery:      delivery,
		Customer:      customer,
		Route:         route,
		Snapshots:     snapshots,
		Notifications: notifications,
		Executions:    executions,
		GeneratedAt:   now,
	}, nil
}

// Generate собирает данные и генерирует отчёт в указанном формате
func (s *Service) Generate(ctx context.Context, deliveryID string, format Format, now time.Time) ([]byte, error) {
	generator, ok := s.generators[format]
	if !ok {
		return nil, apperror.Newf(apperror.CodeInvalidArgument, "unknown report format %q", format)
	}

	data, err := s.Build(ctx, deliveryID, now)
	if err != nil {
		return nil, err
	}

	return generator.Generate(ctx, data)
}
