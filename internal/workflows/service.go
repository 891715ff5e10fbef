package workflows

import (
	"context"
	"errors"
	"sync"
	"time"

	"freightwatch/internal/domain"
	"freightwatch/internal/pipeline"
	"freightwatch/internal/repository"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/config"
	"freightwatch/pkg/logger"
	"freightwatch/pkg/metrics"
	"freightwatch/pkg/telemetry"
	"freightwatch/pkg/workflow"
)

// Service управляет запуском, статусом и остановкой workflow доставок
type Service struct {
	engine   workflow.Client
	repos    *repository.Repositories
	pipeline *pipeline.Pipeline
	cfg      config.WorkflowConfig

	mu       sync.Mutex
	watchers map[string]struct{} // ключ workflow_id/run_id
}

// NewService создаёт сервис и регистрирует workflow в движке
func NewService(
	engine workflow.Client,
	repos *repository.Repositories,
	p *pipeline.Pipeline,
	cfg config.WorkflowConfig,
) *Service {
	s := &Service{
		engine:   engine,
		repos:    repos,
		pipeline: p,
		cfg:      cfg,
		watchers: make(map[string]struct{}),
	}

	engine.Register(NameDelayNotification, s.delayNotificationWorkflow)
	engine.Register(NameRecurringCheck, s.recurringCheckWorkflow)

	return s
}

// StartResult результат запуска workflow
type StartResult struct {
	WorkflowID string              `json:"workflow_id"`
	RunID      string              `json:"run_id"`
	Kind       domain.WorkflowKind `json:"kind"`
}

// StartForDelivery запускает workflow для доставки: recurring при
// включённых периодических проверках, иначе одноразовый. Повторный
// вызов при активном запуске идемпотентно возвращает текущий handle.
func (s *Service) StartForDelivery(ctx context.Context, deliveryID string) (*StartResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "workflows.Service.StartForDelivery",
		telemetry.WithAttributes(telemetry.DeliveryID(deliveryID)))
	defer span.End()

	delivery, err := s.repos.Deliveries.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	// Маршрут и клиент обязаны существовать до запуска
	if _, err := s.repos.Routes.GetByID(ctx, delivery.RouteID); err != nil {
		return nil, err
	}
	if _, err := s.repos.Customers.GetByID(ctx, delivery.CustomerID); err != nil {
		return nil, err
	}

	kind := domain.KindDelayNotification
	name := NameDelayNotification
	if delivery.EnableRecurringChecks {
		kind = domain.KindRecurringCheck
		name = NameRecurringCheck
	}

	workflowID := domain.WorkflowIDFor(kind, delivery.ID)

	handle, err := s.engine.Execute(ctx, workflow.StartOptions{
		Name:        name,
		ID:          workflowID,
		TaskQueue:   s.cfg.TaskQueue,
		ReusePolicy: workflow.ReuseAllowDuplicate,
	}, delivery.ID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeEngineFailed, "failed to start workflow")
	}

	// Запись запуска создаёт первая activity самого workflow; сервис
	// лишь вешает наблюдателя за терминальным статусом
	s.ensureWatcher(handle, kind)

	return &StartResult{
		WorkflowID: handle.ID(),
		RunID:      handle.RunID(),
		Kind:       kind,
	}, nil
}

// ensureWatcher вешает наблюдателя на запуск ровно один раз.
// Идемпотентный повторный старт возвращает существующий handle и
// второго наблюдателя не создаёт.
func (s *Service) ensureWatcher(handle workflow.Handle, kind domain.WorkflowKind) {
	key := handle.ID() + "/" + handle.RunID()

	s.mu.Lock()
	if _, exists := s.watchers[key]; exists {
		s.mu.Unlock()
		return
	}
	s.watchers[key] = struct{}{}
	s.mu.Unlock()

	metrics.Get().WorkflowsActive.Inc()
	go s.watch(handle, kind)
}

// watch дожидается терминального статуса и обновляет запись запуска
func (s *Service) watch(handle workflow.Handle, kind domain.WorkflowKind) {
	ctx := context.Background()

	defer func() {
		s.mu.Lock()
		delete(s.watchers, handle.ID()+"/"+handle.RunID())
		s.mu.Unlock()
	}()

	_ = handle.Await(ctx)

	desc, err := handle.Describe(ctx)
	if err != nil {
		logger.Error("Failed to describe closed workflow",
			"workflow_id", handle.ID(), "error", err)
		return
	}

	status := mapStatus(desc.Status)
	errMsg := desc.Error
	completedAt := desc.CloseTime

	m := metrics.Get()
	m.WorkflowsActive.Dec()
	m.WorkflowRunsTotal.WithLabelValues(string(kind), string(status)).Inc()

	if err := s.repos.Executions.UpdateStatus(ctx,
		handle.ID(), handle.RunID(), status, &completedAt, errMsg); err != nil {
		logger.Error("Failed to update workflow execution record",
			"workflow_id", handle.ID(), "run_id", handle.RunID(), "error", err)
	}
}

// mapStatus переводит статус движка в статус записи
func mapStatus(status workflow.Status) domain.ExecutionStatus {
	switch status {
	case workflow.StatusRunning:
		return domain.ExecutionRunning
	case workflow.StatusCompleted:
		return domain.ExecutionCompleted
	case workflow.StatusCancelled:
		return domain.ExecutionCancelled
	case workflow.StatusTimedOut:
		return domain.ExecutionTimedOut
	default:
		return domain.ExecutionFailed
	}
}

// StatusResult объединённый статус workflow
type StatusResult struct {
	WorkflowID  string                `json:"workflow_id"`
	RunID       string                `json:"run_id"`
	Status      string                `json:"status"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	Error       string                `json:"error,omitempty"`
	Steps       domain.ExecutionSteps `json:"steps"`
	Source      string                `json:"source"` // engine или store
}

// Status возвращает статус из движка, а для забытых движком запусков -
// из последней сохранённой записи.
func (s *Service) Status(ctx context.Context, workflowID string) (*StatusResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "workflows.Service.Status",
		telemetry.WithAttributes(telemetry.WorkflowID(workflowID)))
	defer span.End()

	handle, err := s.engine.Handle(ctx, workflowID)
	if err == nil {
		desc, describeErr := handle.Describe(ctx)
		if describeErr == nil {
			result := &StatusResult{
				WorkflowID:  desc.WorkflowID,
				RunID:       desc.RunID,
				Status:      string(mapStatus(desc.Status)),
				StartedAt:   desc.StartTime,
				Error:       desc.Error,
				Source:      "engine",
			}
			if !desc.CloseTime.IsZero() {
				closeTime := desc.CloseTime
				result.CompletedAt = &closeTime
			}
			// Прогресс шагов хранится в записи запуска
			if execution, execErr := s.repos.Executions.GetByWorkflowAndRun(ctx, desc.WorkflowID, desc.RunID); execErr == nil {
				result.Steps = execution.Steps
			}
			return result, nil
		}
	}

	execution, err := s.repos.Executions.GetByWorkflowID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return &StatusResult{
		WorkflowID:  execution.WorkflowID,
		RunID:       execution.RunID,
		Status:      string(execution.Status),
		StartedAt:   execution.StartedAt,
		CompletedAt: execution.CompletedAt,
		Error:       execution.Error,
		Steps:       execution.Steps,
		Source:      "store",
	}, nil
}

// Cancel останавливает запуск: мягко либо принудительно
func (s *Service) Cancel(ctx context.Context, workflowID string, force bool) error {
	ctx, span := telemetry.StartSpan(ctx, "workflows.Service.Cancel",
		telemetry.WithAttributes(telemetry.WorkflowID(workflowID)))
	defer span.End()

	handle, err := s.engine.Handle(ctx, workflowID)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return apperror.ErrWorkflowNotFound
		}
		return apperror.Wrap(err, apperror.CodeEngineFailed, "failed to resolve workflow handle")
	}

	if force {
		err = handle.Terminate(ctx, "force")
	} else {
		err = handle.Cancel(ctx)
	}

	if err != nil {
		if errors.Is(err, workflow.ErrNotRunning) {
			return apperror.New(apperror.CodeWorkflowNotRunning, "workflow is not running")
		}
		return apperror.Wrap(err, apperror.CodeEngineFailed, "failed to cancel workflow")
	}

	logger.Info("Workflow cancellation requested",
		"workflow_id", workflowID, "force", force)
	return nil
}

// RecoverInterrupted обрабатывает записи, оставшиеся в running после
// рестарта процесса: помечает их failed и перезапускает recurring
// проверки для доставок, которым они ещё положены.
func (s *Service) RecoverInterrupted(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "workflows.Service.RecoverInterrupted")
	defer span.End()

	running, err := s.repos.Executions.ListRunning(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, execution := range running {
		// Движок пуст после рестарта: активная запись устарела
		if _, err := s.engine.Handle(ctx, execution.WorkflowID); err == nil {
			continue
		}

		if err := s.repos.Executions.UpdateStatus(ctx,
			execution.WorkflowID, execution.RunID,
			domain.ExecutionFailed, &now, "interrupted by restart"); err != nil {
			logger.Error("Failed to mark interrupted execution",
				"workflow_id", execution.WorkflowID, "error", err)
			continue
		}

		if execution.Kind != domain.KindRecurringCheck {
			continue
		}

		delivery, err := s.repos.Deliveries.GetByID(ctx, execution.DeliveryID)
		if err != nil {
			continue
		}
		if !delivery.EnableRecurringChecks || delivery.Status.Terminal() || delivery.ChecksExhausted() {
			continue
		}

		if _, err := s.StartForDelivery(ctx, delivery.ID); err != nil {
			logger.Error("Failed to restart recurring workflow after restart",
				"delivery_id", delivery.ID, "error", err)
		} else {
			logger.Info("Restarted recurring workflow after restart",
				"delivery_id", delivery.ID)
		}
	}

	return nil
}

// minutes переводит минуты в Duration
func minutes(m int) time.Duration {
	return time.Duration(m) * time.Minute
}
