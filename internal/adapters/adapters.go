// Package adapters содержит общий контракт провайдеров: имя, приоритет
// и доступность. Конкретные способности (трафик, геокодинг, AI, каналы
// нотификаций) живут в подпакетах.
package adapters

import (
	"sort"
	"time"

	"github.com/sony/gobreaker"

	"freightwatch/pkg/logger"
)

// MockPriority приоритет mock адаптеров: всегда последние в цепочке
const MockPriority = 999

// Provider общий контракт адаптера. Меньший приоритет - предпочтительнее.
// Адаптер с незаполненной конфигурацией обязан сообщать IsAvailable=false.
type Provider interface {
	ProviderName() string
	Priority() int
	IsAvailable() bool
}

// SortByPriority возвращает копию списка, отсортированную по возрастанию
// приоритета. Сортировка стабильная.
func SortByPriority[T Provider](providers []T) []T {
	sorted := make([]T, len(providers))
	copy(sorted, providers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return sorted
}

// Available фильтрует список, оставляя только доступные адаптеры,
// в порядке приоритета.
func Available[T Provider](providers []T) []T {
	sorted := SortByPriority(providers)
	result := make([]T, 0, len(sorted))
	for _, p := range sorted {
		if p.IsAvailable() {
			result = append(result, p)
		} else {
			logger.Debug("Skipping unavailable provider", "provider", p.ProviderName())
		}
	}
	return result
}

// NewBreaker создаёт circuit breaker для удалённого провайдера.
// После пяти подряд неудач цепь размыкается на 30 секунд, и адаптер
// отвечает ошибкой сразу, не дожидаясь таймаутов.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				"provider", name, "from", from.String(), "to", to.String())
		},
	})
}
