// Package pipeline реализует четыре упорядоченных шага обработки
// задержки: проверка трафика, оценка задержки, генерация сообщения,
// доставка нотификаций.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"freightwatch/internal/adapters/ai"
	"freightwatch/internal/adapters/sms"
	"freightwatch/internal/adapters/traffic"
	"freightwatch/internal/domain"
	"freightwatch/internal/notify"
	"freightwatch/internal/repository"
	"freightwatch/internal/threshold"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/logger"
	"freightwatch/pkg/metrics"
	"freightwatch/pkg/telemetry"
)

// Outcome итог прогона пайплайна
type Outcome string

const (
	// OutcomeNotified нотификация отправлена хотя бы по одному каналу
	OutcomeNotified Outcome = "notified"
	// OutcomeNoDelay задержка не превысила порог, нотификация не нужна
	OutcomeNoDelay Outcome = "no_delay"
	// OutcomeDeduped нотификация подавлена dedup фильтром
	OutcomeDeduped Outcome = "dedup"
)

// Input параметры прогона
type Input struct {
	DeliveryID string
	WorkflowID string
	RunID      string
	// Now время движка: пайплайн не читает wall-clock сам
	Now time.Time
}

// Result итог прогона
type Result struct {
	Outcome       Outcome
	Reason        string
	DelayMinutes  int
	Threshold     int
	Message       *ai.Message
	Notifications []*domain.Notification
}

// Pipeline связывает адаптеры, репозитории и resolver в четыре шага
type Pipeline struct {
	repos    *repository.Repositories
	traffic  *traffic.Chain
	ai       *ai.Chain
	notifier *notify.Service
	resolver *threshold.Resolver
}

// New создаёт пайплайн
func New(
	repos *repository.Repositories,
	trafficChain *traffic.Chain,
	aiChain *ai.Chain,
	notifier *notify.Service,
	resolver *threshold.Resolver,
) *Pipeline {
	return &Pipeline{
		repos:    repos,
		traffic:  trafficChain,
		ai:       aiChain,
		notifier: notifier,
		resolver: resolver,
	}
}

// Run выполняет шаги строго по порядку. Прогресс шагов фиксируется на
// записи запуска workflow, чтобы UI видел статус по polling'у.
func (p *Pipeline) Run(ctx context.Context, in *Input) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.Run",
		telemetry.WithAttributes(
			telemetry.DeliveryID(in.DeliveryID),
			telemetry.WorkflowID(in.WorkflowID),
		))
	defer span.End()

	m := metrics.Get()
	log := logger.WithWorkflow(in.WorkflowID, in.RunID)

	delivery, err := p.repos.Deliveries.GetByID(ctx, in.DeliveryID)
	if err != nil {
		return nil, err
	}
	route, err := p.repos.Routes.GetByID(ctx, delivery.RouteID)
	if err != nil {
		return nil, err
	}
	customer, err := p.repos.Customers.GetByID(ctx, delivery.CustomerID)
	if err != nil {
		return nil, err
	}

	steps := domain.ExecutionSteps{}

	// ========== Шаг 1: проверка трафика ==========

	steps.TrafficCheck.Started = true
	p.recordSteps(ctx, in, steps)

	trafficResult, err := p.traffic.GetTraffic(ctx, route.OriginCoords, route.DestinationCoords)
	if err != nil {
		m.PipelineStepsTotal.WithLabelValues("traffic_check", "failed").Inc()
		m.PipelineRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	if err := p.repos.Routes.UpdateTraffic(ctx, route.ID,
		trafficResult.DistanceMeters,
		trafficResult.NormalDurationSec,
		trafficResult.EstimatedDurationSec,
		trafficResult.Condition,
	); err != nil {
		m.PipelineStepsTotal.WithLabelValues("traffic_check", "failed").Inc()
		m.PipelineRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	route.ApplyTraffic(trafficResult.DistanceMeters, trafficResult.NormalDurationSec,
		trafficResult.EstimatedDurationSec, trafficResult.Condition)

	snapshot := domain.NewTrafficSnapshot(route, trafficResult.DelayMinutes,
		trafficResult.EstimatedDurationSec, trafficResult.Condition, in.Now)
	if err := p.repos.Snapshots.Create(ctx, snapshot); err != nil {
		m.PipelineStepsTotal.WithLabelValues("traffic_check", "failed").Inc()
		m.PipelineRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	steps.TrafficCheck.Completed = true
	p.recordSteps(ctx, in, steps)
	m.PipelineStepsTotal.WithLabelValues("traffic_check", "completed").Inc()

	// ========== Шаг 2: оценка задержки ==========

	steps.DelayEvaluation.Started = true
	p.recordSteps(ctx, in, steps)

	resolved := p.resolver.Resolve(ctx, delivery)
	delay := trafficResult.DelayMinutes

	result := &Result{
		DelayMinutes: delay,
		Threshold:    resolved.DelayMinutes,
	}

	if delay <= resolved.DelayMinutes {
		steps.DelayEvaluation.Completed = true
		p.recordSteps(ctx, in, steps)
		m.PipelineStepsTotal.WithLabelValues("delay_evaluation", "completed").Inc()
		m.PipelineRunsTotal.WithLabelValues("no_delay").Inc()

		log.Info("Delay below threshold, no notification needed",
			"delay_minutes", delay, "threshold", resolved.DelayMinutes)

		result.Outcome = OutcomeNoDelay
		return result, nil
	}

	lastSent, err := p.repos.Notifications.LatestSentByDelivery(ctx, delivery.ID)
	if err != nil {
		m.PipelineStepsTotal.WithLabelValues("delay_evaluation", "failed").Inc()
		m.PipelineRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	decision := domain.CheckDedup(lastSent, in.Now, delay,
		delivery.MinDelayChangeThreshold, delivery.MinHoursBetweenNotifications)

	steps.DelayEvaluation.Completed = true
	p.recordSteps(ctx, in, steps)
	m.PipelineStepsTotal.WithLabelValues("delay_evaluation", "completed").Inc()

	if decision.Skip {
		m.PipelineRunsTotal.WithLabelValues("dedup").Inc()
		log.Info("Notification suppressed by dedup gate",
			"reason", decision.Reason, "delay_minutes", delay)

		result.Outcome = OutcomeDeduped
		result.Reason = decision.Reason
		return result, nil
	}

	// ========== Шаг 3: генерация сообщения ==========

	steps.MessageGeneration.Started = true
	p.recordSteps(ctx, in, steps)

	estimatedArrival := delivery.ScheduledDelivery.Add(time.Duration(delay) * time.Minute)
	message, err := p.ai.Generate(ctx, &ai.Request{
		TrackingNumber:   delivery.TrackingNumber,
		CustomerName:     customer.Name,
		Origin:           route.OriginAddress,
		Destination:      route.DestinationAddress,
		DelayMinutes:     delay,
		Condition:        trafficResult.Condition,
		OriginalArrival:  delivery.ScheduledDelivery,
		EstimatedArrival: estimatedArrival,
	})
	if err != nil {
		// Цепочка AI с шаблонным фолбэком не должна падать вовсе
		m.PipelineStepsTotal.WithLabelValues("message_generation", "failed").Inc()
		m.PipelineRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	result.Message = message

	steps.MessageGeneration.Completed = true
	p.recordSteps(ctx, in, steps)
	m.PipelineStepsTotal.WithLabelValues("message_generation", "completed").Inc()

	// ========== Шаг 4: доставка нотификаций ==========

	steps.NotificationDelivery.Started = true
	p.recordSteps(ctx, in, steps)

	sentCount := 0
	for _, channel := range resolved.NotificationChannels {
		notification := p.deliverChannel(ctx, channel, delivery, customer, message, delay, in.Now)
		if err := p.repos.Notifications.Create(ctx, notification); err != nil {
			log.Error("Failed to persist notification row", "error", err)
		}
		result.Notifications = append(result.Notifications, notification)
		if notification.Status == domain.NotificationSent {
			sentCount++
		}
	}

	if sentCount == 0 {
		m.PipelineStepsTotal.WithLabelValues("notification_delivery", "failed").Inc()
		m.PipelineRunsTotal.WithLabelValues("failed").Inc()
		return result, apperror.Newf(apperror.CodeProviderFailed,
			"all notification channels failed for delivery %s", delivery.ID)
	}

	// Первая успешная нотификация переводит доставку в delayed
	if err := p.markDelayed(ctx, delivery); err != nil {
		log.Warn("Failed to mark delivery delayed", "error", err)
	}

	steps.NotificationDelivery.Completed = true
	p.recordSteps(ctx, in, steps)
	m.PipelineStepsTotal.WithLabelValues("notification_delivery", "completed").Inc()
	m.PipelineRunsTotal.WithLabelValues("notified").Inc()

	log.Info("Delay notification delivered",
		"delay_minutes", delay, "channels_sent", sentCount)

	result.Outcome = OutcomeNotified
	return result, nil
}

// deliverChannel отправляет сообщение по одному каналу и собирает
// строку нотификации с результатом попытки.
func (p *Pipeline) deliverChannel(
	ctx context.Context,
	channel domain.Channel,
	delivery *domain.Delivery,
	customer *domain.Customer,
	message *ai.Message,
	delay int,
	now time.Time,
) *domain.Notification {
	notification := &domain.Notification{
		DeliveryID:         delivery.ID,
		Channel:            channel,
		Subject:            message.Subject,
		DelayMinutesAtSend: delay,
	}

	switch channel {
	case domain.ChannelEmail:
		notification.Recipient = customer.Email
		notification.Message = message.Body
	case domain.ChannelSMS:
		if !customer.HasPhone() {
			notification.Status = domain.NotificationSkipped
			notification.ErrorMessage = "customer has no phone number"
			return notification
		}
		notification.Recipient = customer.Phone
		notification.Message = sms.FormatMessage(delivery.ID, message.Body, sms.MaxLength)
	default:
		notification.Status = domain.NotificationFailed
		notification.ErrorMessage = fmt.Sprintf("unknown channel %q", channel)
		return notification
	}

	sendResult, err := p.notifier.Send(ctx, &notify.Request{
		Channel:    channel,
		To:         notification.Recipient,
		Subject:    message.Subject,
		Message:    message.Body,
		DeliveryID: delivery.ID,
	})
	if err != nil {
		if apperror.Is(err, apperror.CodeRecipientBlocked) {
			notification.Status = domain.NotificationSkipped
		} else {
			notification.Status = domain.NotificationFailed
		}
		notification.ErrorMessage = err.Error()
		return notification
	}

	notification.Status = domain.NotificationSent
	notification.ExternalID = sendResult.MessageID
	notification.SentAt = &now
	return notification
}

// markDelayed переводит доставку в delayed условными переходами,
// уважая машину состояний. Уже задержанная доставка - no-op.
func (p *Pipeline) markDelayed(ctx context.Context, delivery *domain.Delivery) error {
	current, err := p.repos.Deliveries.GetByID(ctx, delivery.ID)
	if err != nil {
		return err
	}

	switch current.Status {
	case domain.StatusDelayed:
		return nil
	case domain.StatusPending:
		if err := p.repos.Deliveries.UpdateStatus(ctx, delivery.ID,
			domain.StatusPending, domain.StatusInTransit); err != nil {
			return err
		}
		return p.repos.Deliveries.UpdateStatus(ctx, delivery.ID,
			domain.StatusInTransit, domain.StatusDelayed)
	case domain.StatusInTransit:
		return p.repos.Deliveries.UpdateStatus(ctx, delivery.ID,
			domain.StatusInTransit, domain.StatusDelayed)
	default:
		return apperror.Newf(apperror.CodeInvalidTransition,
			"cannot mark delivery delayed from status %s", current.Status)
	}
}

// recordSteps сохраняет прогресс шагов; ошибки записи не прерывают
// пайплайн.
func (p *Pipeline) recordSteps(ctx context.Context, in *Input, steps domain.ExecutionSteps) {
	if in.WorkflowID == "" || in.RunID == "" {
		return
	}
	if err := p.repos.Executions.UpdateSteps(ctx, in.WorkflowID, in.RunID, steps); err != nil {
		logger.Debug("Failed to record pipeline steps", "error", err)
	}
}
