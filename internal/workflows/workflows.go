// Package workflows определяет два вида workflow для доставки и
// сервис управления их жизненным циклом.
package workflows

import (
	"context"
	"errors"
	"fmt"

	"freightwatch/internal/domain"
	"freightwatch/internal/pipeline"
	"freightwatch/pkg/logger"
	"freightwatch/pkg/workflow"
)

// Имена workflow в движке
const (
	NameDelayNotification = "delay-notification"
	NameRecurringCheck    = "recurring-traffic-check"
)

// maxConsecutivePipelineFailures число подряд неуспешных прогонов
// пайплайна, после которого recurring workflow завершается failed.
// Одиночные сбои переживаются до следующего тика.
const maxConsecutivePipelineFailures = 3

// recordExecution первой activity создаёт запись запуска, чтобы шаги
// пайплайна было куда записывать. Повторный запуск с тем же run id
// записи не дублирует.
func (s *Service) recordExecution(ctx workflow.Context, deliveryID string, kind domain.WorkflowKind) error {
	return ctx.Execute("record_execution", func(actCtx context.Context) error {
		if _, err := s.repos.Executions.GetByWorkflowAndRun(actCtx, ctx.WorkflowID(), ctx.RunID()); err == nil {
			return nil
		}
		return s.repos.Executions.Create(actCtx, &domain.WorkflowExecution{
			WorkflowID: ctx.WorkflowID(),
			RunID:      ctx.RunID(),
			DeliveryID: deliveryID,
			Kind:       kind,
			Status:     domain.ExecutionRunning,
			StartedAt:  ctx.Now(),
		})
	})
}

// delayNotificationWorkflow одноразовый workflow: один прогон пайплайна
// и завершение.
func (s *Service) delayNotificationWorkflow(ctx workflow.Context, input any) error {
	deliveryID, ok := input.(string)
	if !ok {
		return fmt.Errorf("delay notification workflow expects delivery id, got %T", input)
	}

	if err := s.recordExecution(ctx, deliveryID, domain.KindDelayNotification); err != nil {
		return err
	}

	return ctx.Execute("delay_notification_pipeline", func(actCtx context.Context) error {
		_, err := s.pipeline.Run(actCtx, &pipeline.Input{
			DeliveryID: deliveryID,
			WorkflowID: ctx.WorkflowID(),
			RunID:      ctx.RunID(),
			Now:        ctx.Now(),
		})
		return err
	})
}

// recurringCheckWorkflow долгоживущий workflow: прогон пайплайна по
// расписанию до исчерпания лимита проверок, закрытия окна до доставки
// или сигнала отмены.
func (s *Service) recurringCheckWorkflow(ctx workflow.Context, input any) error {
	deliveryID, ok := input.(string)
	if !ok {
		return fmt.Errorf("recurring check workflow expects delivery id, got %T", input)
	}

	log := logger.WithWorkflow(ctx.WorkflowID(), ctx.RunID())

	if err := s.recordExecution(ctx, deliveryID, domain.KindRecurringCheck); err != nil {
		return err
	}

	checksPerformed := 0
	ctx.SetQueryHandler("checks_performed", func() any {
		return checksPerformed
	})

	consecutiveFailures := 0

	for {
		if ctx.Cancelled() {
			return workflow.ErrCancelled
		}

		// Перечитываем настройки доставки каждый тик: лимиты и интервал
		// могли поменяться через внешние правки
		var delivery *domain.Delivery
		err := ctx.Execute("load_delivery", func(actCtx context.Context) error {
			var loadErr error
			delivery, loadErr = s.repos.Deliveries.GetByID(actCtx, deliveryID)
			return loadErr
		})
		if err != nil {
			return err
		}

		checksPerformed = delivery.ChecksPerformed

		if delivery.Status.Terminal() {
			log.Info("Delivery reached terminal status, stopping recurring checks",
				"status", string(delivery.Status))
			return nil
		}

		if delivery.ChecksExhausted() {
			log.Info("Check limit reached, completing recurring workflow",
				"checks_performed", delivery.ChecksPerformed, "max_checks", delivery.MaxChecks)
			return nil
		}

		if !delivery.WithinCutoff(ctx.Now(), s.cfg.CutoffHours) {
			log.Info("Delivery window within cutoff, completing recurring workflow",
				"scheduled_delivery", delivery.ScheduledDelivery)
			return nil
		}

		err = ctx.Execute("traffic_check_pipeline", func(actCtx context.Context) error {
			_, runErr := s.pipeline.Run(actCtx, &pipeline.Input{
				DeliveryID: deliveryID,
				WorkflowID: ctx.WorkflowID(),
				RunID:      ctx.RunID(),
				Now:        ctx.Now(),
			})
			return runErr
		})
		if err != nil {
			if errors.Is(err, workflow.ErrCancelled) || errors.Is(err, workflow.ErrTerminated) {
				return err
			}
			consecutiveFailures++
			log.Warn("Pipeline run failed",
				"consecutive_failures", consecutiveFailures, "error", err)
			if consecutiveFailures >= maxConsecutivePipelineFailures {
				return fmt.Errorf("pipeline failed %d times in a row: %w",
					consecutiveFailures, err)
			}
		} else {
			consecutiveFailures = 0
		}

		// Счётчик проверок и отметка последней проверки
		err = ctx.Execute("increment_checks", func(actCtx context.Context) error {
			checks, incErr := s.repos.Deliveries.IncrementChecks(actCtx, deliveryID)
			if incErr == nil {
				checksPerformed = checks
			}
			return incErr
		})
		if err != nil {
			return err
		}

		interval := delivery.CheckIntervalMinutes
		if interval <= 0 {
			interval = 30
		}

		if err := ctx.Sleep(minutes(interval)); err != nil {
			return err
		}
	}
}
