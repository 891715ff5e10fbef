// Package threshold выбирает применимый порог задержки для доставки.
package threshold

import (
	"context"

	"freightwatch/internal/domain"
	"freightwatch/internal/repository"
	"freightwatch/pkg/logger"
	"freightwatch/pkg/telemetry"
)

// Resolver выбирает порог по цепочке:
//  1. персональный порог доставки, если задан и положителен;
//  2. системный порог по умолчанию из хранилища;
//  3. компилируемый фолбэк.
type Resolver struct {
	thresholds      repository.ThresholdRepository
	fallbackMinutes int
}

// NewResolver создаёт resolver. fallbackMinutes используется, когда в
// хранилище нет порога по умолчанию.
func NewResolver(thresholds repository.ThresholdRepository, fallbackMinutes int) *Resolver {
	if fallbackMinutes <= 0 {
		fallbackMinutes = domain.FallbackThresholdMinutes
	}
	return &Resolver{
		thresholds:      thresholds,
		fallbackMinutes: fallbackMinutes,
	}
}

// Resolve возвращает применимый порог для доставки.
// Метод не возвращает ошибку: недоступность хранилища деградирует до
// фолбэка, workflow не должен падать из-за отсутствия настроек.
func (r *Resolver) Resolve(ctx context.Context, delivery *domain.Delivery) *domain.Threshold {
	ctx, span := telemetry.StartSpan(ctx, "threshold.Resolver.Resolve",
		telemetry.WithAttributes(telemetry.DeliveryID(delivery.ID)))
	defer span.End()

	defaultThreshold, err := r.thresholds.GetDefault(ctx)
	if err != nil {
		logger.Warn("Failed to load default threshold, using fallback", "error", err)
		defaultThreshold = nil
	}

	// Персональный порог перекрывает только величину задержки;
	// каналы берутся из порога по умолчанию.
	if delivery.DelayThresholdMinutes > 0 {
		channels := []domain.Channel{domain.ChannelEmail}
		if defaultThreshold != nil {
			channels = defaultThreshold.NotificationChannels
		}
		return &domain.Threshold{
			Name:                 "delivery-override",
			DelayMinutes:         delivery.DelayThresholdMinutes,
			NotificationChannels: channels,
		}
	}

	if defaultThreshold != nil {
		return defaultThreshold
	}

	return domain.FallbackThreshold(r.fallbackMinutes)
}
