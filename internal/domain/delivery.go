package domain

import (
	"time"

	"freightwatch/pkg/apperror"
)

// DeliveryStatus статус доставки
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusInTransit DeliveryStatus = "in_transit"
	StatusDelayed   DeliveryStatus = "delayed"
	StatusDelivered DeliveryStatus = "delivered"
	StatusCancelled DeliveryStatus = "cancelled"
	StatusFailed    DeliveryStatus = "failed"
)

// Valid проверяет корректность статуса
func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInTransit, StatusDelayed,
		StatusDelivered, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Terminal проверяет, является ли статус терминальным
func (s DeliveryStatus) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// allowedTransitions таблица допустимых переходов статусов
var allowedTransitions = map[DeliveryStatus][]DeliveryStatus{
	StatusPending:   {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusDelayed, StatusDelivered, StatusFailed},
	StatusDelayed:   {StatusDelivered, StatusFailed, StatusCancelled},
	StatusDelivered: {},
	StatusCancelled: {},
	StatusFailed:    {},
}

// CanTransition проверяет допустимость перехода между статусами
func CanTransition(from, to DeliveryStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// UnlimitedChecks значение max_checks, снимающее ограничение на число проверок
const UnlimitedChecks = -1

// Delivery доставка груза с настройками мониторинга
type Delivery struct {
	ID                string
	TrackingNumber    string
	CustomerID        string
	RouteID           string
	Status            DeliveryStatus
	ScheduledDelivery time.Time
	ActualDelivery    *time.Time

	// Настройки детектирования задержек
	DelayThresholdMinutes int
	AutoCheckTraffic      bool
	EnableRecurringChecks bool
	CheckIntervalMinutes  int
	MaxChecks             int // UnlimitedChecks = без ограничения
	ChecksPerformed       int

	// Dedup фильтры нотификаций
	MinDelayChangeThreshold      int // минуты
	MinHoursBetweenNotifications float64

	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TransitionTo переводит доставку в новый статус.
// Недопустимый переход возвращает доменную ошибку и не меняет состояние.
func (d *Delivery) TransitionTo(to DeliveryStatus) error {
	if !to.Valid() {
		return apperror.Newf(apperror.CodeInvalidArgument, "unknown delivery status %q", to)
	}
	if !CanTransition(d.Status, to) {
		return apperror.Newf(apperror.CodeInvalidTransition,
			"cannot transition delivery from %s to %s", d.Status, to).
			WithDetails("delivery_id", d.ID)
	}
	d.Status = to
	return nil
}

// MarkDelayed помечает доставку задержанной. Допустимо только из
// pending или in_transit; из pending переход идёт через in_transit.
// Для уже задержанной доставки вызов ничего не меняет и не возвращает
// ошибку.
func (d *Delivery) MarkDelayed() error {
	switch d.Status {
	case StatusDelayed:
		return nil
	case StatusPending:
		if err := d.TransitionTo(StatusInTransit); err != nil {
			return err
		}
		return d.TransitionTo(StatusDelayed)
	case StatusInTransit:
		return d.TransitionTo(StatusDelayed)
	default:
		return apperror.Newf(apperror.CodeInvalidTransition,
			"cannot mark delivery delayed from status %s", d.Status).
			WithDetails("delivery_id", d.ID)
	}
}

// ChecksExhausted проверяет, исчерпан ли лимит проверок
func (d *Delivery) ChecksExhausted() bool {
	if d.MaxChecks < 0 {
		return false
	}
	return d.ChecksPerformed >= d.MaxChecks
}

// WithinCutoff проверяет, что до планового времени доставки осталось
// больше cutoff часов. Когда окно закрылось, проверки прекращаются.
func (d *Delivery) WithinCutoff(now time.Time, cutoffHours float64) bool {
	remaining := d.ScheduledDelivery.Sub(now)
	return remaining.Hours() > cutoffHours
}
