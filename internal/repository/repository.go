// internal/repository/repository.go
package repository

import (
	"context"
	"time"

	"freightwatch/internal/domain"
)

// ListOptions опции пагинации
type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize приводит опции к допустимым границам
func (o *ListOptions) Normalize(maxLimit int) {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if maxLimit > 0 && o.Limit > maxLimit {
		o.Limit = maxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// CustomerRepository хранилище клиентов
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	List(ctx context.Context, opts *ListOptions) ([]*domain.Customer, int64, error)
	Update(ctx context.Context, customer *domain.Customer) error
	Delete(ctx context.Context, id string) error
}

// RouteRepository хранилище маршрутов
type RouteRepository interface {
	Create(ctx context.Context, route *domain.Route) error
	GetByID(ctx context.Context, id string) (*domain.Route, error)
	List(ctx context.Context, opts *ListOptions) ([]*domain.Route, int64, error)
	Update(ctx context.Context, route *domain.Route) error
	// UpdateTraffic записывает результат замера трафика.
	// Последняя запись побеждает, блокировки не используются.
	UpdateTraffic(ctx context.Context, routeID string, distanceMeters, normalSec, currentSec int, condition domain.TrafficCondition) error
	Delete(ctx context.Context, id string) error
}

// DeliveryRepository хранилище доставок
type DeliveryRepository interface {
	Create(ctx context.Context, delivery *domain.Delivery) error
	GetByID(ctx context.Context, id string) (*domain.Delivery, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Delivery, error)
	List(ctx context.Context, opts *ListOptions) ([]*domain.Delivery, int64, error)
	ListByStatus(ctx context.Context, status domain.DeliveryStatus, opts *ListOptions) ([]*domain.Delivery, int64, error)
	Update(ctx context.Context, delivery *domain.Delivery) error
	// UpdateStatus выполняет условный переход статуса: строка меняется
	// только если текущий статус равен from. Несостоявшийся переход
	// возвращает доменную ошибку.
	UpdateStatus(ctx context.Context, id string, from, to domain.DeliveryStatus) error
	// IncrementChecks атомарно увеличивает счётчик проверок и обновляет
	// отметку последней проверки
	IncrementChecks(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
}

// ThresholdRepository хранилище порогов задержки
type ThresholdRepository interface {
	Create(ctx context.Context, threshold *domain.Threshold) error
	GetByID(ctx context.Context, id string) (*domain.Threshold, error)
	List(ctx context.Context) ([]*domain.Threshold, error)
	GetDefault(ctx context.Context) (*domain.Threshold, error)
	// SetDefault атомарно назначает новый порог по умолчанию,
	// снимая флаг с предыдущего
	SetDefault(ctx context.Context, id string) error
	Update(ctx context.Context, threshold *domain.Threshold) error
	// Delete отклоняет удаление порога по умолчанию и системных порогов
	Delete(ctx context.Context, id string) error
}

// SnapshotRepository журнал снапшотов трафика (только добавление)
type SnapshotRepository interface {
	Create(ctx context.Context, snapshot *domain.TrafficSnapshot) error
	ListByRoute(ctx context.Context, routeID string, opts *ListOptions) ([]*domain.TrafficSnapshot, int64, error)
	LatestByRoute(ctx context.Context, routeID string) (*domain.TrafficSnapshot, error)
}

// NotificationRepository журнал нотификаций (только добавление)
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	ListByDelivery(ctx context.Context, deliveryID string, opts *ListOptions) ([]*domain.Notification, int64, error)
	// LatestSentByDelivery возвращает последнюю успешно отправленную
	// нотификацию для dedup фильтров; nil если отправок не было
	LatestSentByDelivery(ctx context.Context, deliveryID string) (*domain.Notification, error)
}

// ExecutionRepository хранилище записей о запусках workflow
type ExecutionRepository interface {
	Create(ctx context.Context, execution *domain.WorkflowExecution) error
	GetByWorkflowID(ctx context.Context, workflowID string) (*domain.WorkflowExecution, error)
	GetByWorkflowAndRun(ctx context.Context, workflowID, runID string) (*domain.WorkflowExecution, error)
	ListRunning(ctx context.Context) ([]*domain.WorkflowExecution, error)
	ListByDelivery(ctx context.Context, deliveryID string, opts *ListOptions) ([]*domain.WorkflowExecution, int64, error)
	// UpdateStatus переводит запись в терминальный статус
	UpdateStatus(ctx context.Context, workflowID, runID string, status domain.ExecutionStatus, completedAt *time.Time, errMsg string) error
	// UpdateSteps обновляет прогресс шагов пайплайна
	UpdateSteps(ctx context.Context, workflowID, runID string, steps domain.ExecutionSteps) error
}

// Repositories собирает все хранилища в одну точку внедрения
type Repositories struct {
	Customers     CustomerRepository
	Routes        RouteRepository
	Deliveries    DeliveryRepository
	Thresholds    ThresholdRepository
	Snapshots     SnapshotRepository
	Notifications NotificationRepository
	Executions    ExecutionRepository
}
