// Package traffic реализует провайдеров данных о дорожной обстановке.
package traffic

import (
	"context"
	"encoding/json"
	"time"

	"freightwatch/internal/adapters"
	"freightwatch/internal/domain"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/cache"
	"freightwatch/pkg/logger"
	"freightwatch/pkg/metrics"
	"freightwatch/pkg/telemetry"
)

// Result результат замера трафика между двумя точками
type Result struct {
	DistanceMeters       int                     `json:"distance_meters"`
	NormalDurationSec    int                     `json:"normal_duration_seconds"`
	EstimatedDurationSec int                     `json:"estimated_duration_seconds"`
	DelayMinutes         int                     `json:"delay_minutes"`
	Condition            domain.TrafficCondition `json:"traffic_condition"`
	ProviderName         string                  `json:"provider_name"`
}

// Provider способность получать данные о трафике
type Provider interface {
	adapters.Provider
	GetTraffic(ctx context.Context, origin, destination domain.Coordinates) (*Result, error)
}

// Chain цепочка провайдеров с фолбэком и кэшем замеров.
// Провайдеры опрашиваются в порядке приоритета; первый успешный
// результат кэшируется на короткий TTL, чтобы workflow и fleet sweep
// не дёргали провайдера по одному маршруту одновременно.
type Chain struct {
	providers []Provider
	cache     cache.Cache
	ttl       time.Duration
}

// NewChain создаёт цепочку. cache может быть nil - тогда кэширование
// отключено.
func NewChain(providers []Provider, trafficCache cache.Cache, ttl time.Duration) *Chain {
	return &Chain{
		providers: providers,
		cache:     trafficCache,
		ttl:       ttl,
	}
}

func cacheKey(origin, destination domain.Coordinates) string {
	return "traffic:" + origin.String() + ":" + destination.String()
}

// GetTraffic опрашивает провайдеров в порядке приоритета и возвращает
// первый успешный результат. Если доступных провайдеров нет,
// возвращается ошибка CodeProviderUnavailable; если все доступные
// ответили ошибкой - агрегированная ошибка со списком попыток.
func (c *Chain) GetTraffic(ctx context.Context, origin, destination domain.Coordinates) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "traffic.Chain.GetTraffic")
	defer span.End()

	if c.cache != nil {
		if data, err := c.cache.Get(ctx, cacheKey(origin, destination)); err == nil {
			var cached Result
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	available := adapters.Available(c.providers)
	if len(available) == 0 {
		return nil, apperror.New(apperror.CodeProviderUnavailable, "no traffic providers available")
	}

	aggregate := &apperror.AggregateError{Operation: "traffic lookup"}
	m := metrics.Get()

	for _, provider := range available {
		started := time.Now()
		result, err := provider.GetTraffic(ctx, origin, destination)
		m.TrafficCheckDuration.WithLabelValues(provider.ProviderName()).Observe(time.Since(started).Seconds())

		if err != nil {
			m.TrafficChecksTotal.WithLabelValues(provider.ProviderName(), "error").Inc()
			logger.Warn("Traffic provider failed",
				"provider", provider.ProviderName(), "error", err)
			aggregate.Add(provider.ProviderName(), err)
			continue
		}

		m.TrafficChecksTotal.WithLabelValues(provider.ProviderName(), "success").Inc()
		m.DelayMinutes.WithLabelValues("traffic_check").Observe(float64(result.DelayMinutes))

		if c.cache != nil {
			if data, err := json.Marshal(result); err == nil {
				_ = c.cache.Set(ctx, cacheKey(origin, destination), data, c.ttl)
			}
		}

		return result, nil
	}

	telemetry.SetError(ctx, aggregate)
	return nil, aggregate.AsAppError()
}

// buildResult собирает результат из длительностей, вычисляя задержку
// и классификацию загруженности единым способом для всех провайдеров.
func buildResult(providerName string, distanceMeters, normalSec, estimatedSec int) *Result {
	delay := domain.RoundedDelayMinutes(estimatedSec, normalSec)
	return &Result{
		DistanceMeters:       distanceMeters,
		NormalDurationSec:    normalSec,
		EstimatedDurationSec: estimatedSec,
		DelayMinutes:         delay,
		Condition:            domain.ClassifyCondition(delay),
		ProviderName:         providerName,
	}
}
