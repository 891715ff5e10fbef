// Package workflow defines the durable-execution contract the delivery
// workflows run on, and provides an in-process engine implementing it.
// Workflow bodies must reach wall-clock time and timers only through the
// workflow Context, never directly.
package workflow

import (
	"context"
	"errors"
	"time"
)

// Status статус запуска workflow
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusTimedOut  Status = "timed_out"
)

// Terminal проверяет, является ли статус терминальным
func (s Status) Terminal() bool {
	return s != StatusRunning
}

// IDReusePolicy политика переиспользования workflow id
type IDReusePolicy int

const (
	// ReuseAllowDuplicate разрешает новый запуск, если нет активного.
	// При наличии активного запуска возвращается его handle.
	ReuseAllowDuplicate IDReusePolicy = iota
	// ReuseAllowDuplicateFailedOnly разрешает новый запуск только после
	// неуспешного завершения предыдущего.
	ReuseAllowDuplicateFailedOnly
	// ReuseRejectDuplicate запрещает повторные запуски с тем же id.
	ReuseRejectDuplicate
)

// Стандартные ошибки движка
var (
	// ErrNotFound - workflow с таким id не известен движку
	ErrNotFound = errors.New("workflow not found")
	// ErrDuplicateWorkflow - запуск отклонён политикой переиспользования id
	ErrDuplicateWorkflow = errors.New("workflow id already used")
	// ErrCancelled - workflow получил сигнал отмены
	ErrCancelled = errors.New("workflow cancelled")
	// ErrTerminated - workflow был принудительно остановлен
	ErrTerminated = errors.New("workflow terminated")
	// ErrNotRunning - операция требует активного запуска
	ErrNotRunning = errors.New("workflow is not running")
	// ErrUnknownWorkflow - имя workflow не зарегистрировано
	ErrUnknownWorkflow = errors.New("workflow type not registered")
	// ErrUnknownQuery - query handler не зарегистрирован
	ErrUnknownQuery = errors.New("query handler not registered")
	// ErrEngineClosed - движок остановлен
	ErrEngineClosed = errors.New("engine is shut down")
)

// Description описание запуска workflow
type Description struct {
	WorkflowID string
	RunID      string
	Name       string
	TaskQueue  string
	Status     Status
	StartTime  time.Time
	CloseTime  time.Time
	Error      string
	// ForceCancelled выставляется при принудительной остановке
	ForceCancelled bool
}

// StartOptions параметры запуска workflow
type StartOptions struct {
	Name        string
	ID          string
	TaskQueue   string
	ReusePolicy IDReusePolicy
}

// Handle ссылка на запуск workflow
type Handle interface {
	// ID возвращает стабильный workflow id
	ID() string
	// RunID возвращает идентификатор конкретного запуска
	RunID() string
	// Describe возвращает текущее описание запуска
	Describe(ctx context.Context) (*Description, error)
	// Query выполняет зарегистрированный query handler
	Query(ctx context.Context, name string) (any, error)
	// Cancel запрашивает мягкую отмену; workflow завершится на
	// ближайшей точке приостановки
	Cancel(ctx context.Context) error
	// Terminate немедленно останавливает запуск
	Terminate(ctx context.Context, reason string) error
	// Await блокируется до терминального статуса и возвращает
	// ошибку workflow, если она была
	Await(ctx context.Context) error
}

// ActivityFunc побочный эффект, выполняемый из workflow.
// Движок применяет к нему таймаут и retry-политику.
type ActivityFunc func(ctx context.Context) error

// QueryFunc обработчик query запросов к запущенному workflow
type QueryFunc func() any

// Context контекст выполнения workflow.
// Время и таймеры доступны только через него.
type Context interface {
	context.Context

	// WorkflowID возвращает стабильный идентификатор
	WorkflowID() string
	// RunID возвращает идентификатор запуска
	RunID() string
	// Input возвращает аргумент запуска
	Input() any

	// Now возвращает текущее время движка
	Now() time.Time
	// Sleep приостанавливает workflow; возвращает ErrCancelled или
	// ErrTerminated, если запуск остановлен во время ожидания
	Sleep(d time.Duration) error
	// Execute выполняет activity с таймаутом и ретраями движка.
	// Перед запуском проверяется сигнал отмены.
	Execute(name string, fn ActivityFunc) error
	// Cancelled сообщает, запрошена ли мягкая отмена
	Cancelled() bool
	// SetQueryHandler регистрирует query handler для этого запуска
	SetQueryHandler(name string, fn QueryFunc)
}

// Func тело workflow
type Func func(ctx Context, input any) error

// Client контракт движка для запускающего кода
type Client interface {
	// Register регистрирует workflow по имени
	Register(name string, fn Func)
	// Execute запускает workflow согласно политике переиспользования id.
	// Если запуск с этим id уже активен, возвращается его handle.
	Execute(ctx context.Context, opts StartOptions, input any) (Handle, error)
	// Handle возвращает handle существующего запуска (активного или
	// последнего завершённого)
	Handle(ctx context.Context, workflowID string) (Handle, error)
	// Shutdown останавливает все активные запуски и освобождает ресурсы
	Shutdown(ctx context.Context) error
}

// ActivityPolicy политика выполнения activity
type ActivityPolicy struct {
	Timeout     time.Duration
	MaxAttempts int
	RetryBase   time.Duration
	RetryCap    time.Duration
}

// DefaultActivityPolicy возвращает политику по умолчанию
func DefaultActivityPolicy() ActivityPolicy {
	return ActivityPolicy{
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
		RetryBase:   1 * time.Second,
		RetryCap:    30 * time.Second,
	}
}
