package domain

import "time"

// ExecutionStatus статус запуска workflow в хранилище
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
	ExecutionTimedOut  ExecutionStatus = "timed_out"
)

// Terminal проверяет, является ли статус терминальным
func (s ExecutionStatus) Terminal() bool {
	return s != ExecutionRunning
}

// WorkflowKind вид workflow для доставки
type WorkflowKind string

const (
	KindDelayNotification WorkflowKind = "delay-notification"
	KindRecurringCheck    WorkflowKind = "recurring-check"
)

// WorkflowIDFor строит стабильный workflow id из вида и доставки
func WorkflowIDFor(kind WorkflowKind, deliveryID string) string {
	return string(kind) + "-" + deliveryID
}

// StepState состояние одного шага пайплайна
type StepState struct {
	Started   bool `json:"started"`
	Completed bool `json:"completed"`
}

// ExecutionSteps прогресс четырёх шагов пайплайна, хранится на записи
// запуска, чтобы UI мог показывать статус по polling'у.
type ExecutionSteps struct {
	TrafficCheck         StepState `json:"trafficCheck"`
	DelayEvaluation      StepState `json:"delayEvaluation"`
	MessageGeneration    StepState `json:"messageGeneration"`
	NotificationDelivery StepState `json:"notificationDelivery"`
}

// WorkflowExecution запись о запуске workflow.
// Уникальный ключ - пара (workflow_id, run_id).
type WorkflowExecution struct {
	ID          string
	WorkflowID  string
	RunID       string
	DeliveryID  string
	Kind        WorkflowKind
	Status      ExecutionStatus
	Steps       ExecutionSteps
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}
