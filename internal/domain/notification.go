package domain

import "time"

// NotificationStatus статус попытки отправки нотификации
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
	NotificationSkipped NotificationStatus = "skipped"
)

// Notification запись об отправке (или попытке отправки) уведомления
// клиенту. Строки только добавляются.
type Notification struct {
	ID                string
	DeliveryID        string
	Channel           Channel
	Recipient         string
	Subject           string
	Message           string
	Status            NotificationStatus
	ExternalID        string // id сообщения у провайдера
	SentAt            *time.Time
	DelayMinutesAtSend int
	ErrorMessage      string
	CreatedAt         time.Time
}

// DedupDecision результат проверки dedup фильтров
type DedupDecision struct {
	Skip   bool
	Reason string
}

// CheckDedup применяет dedup фильтры к новой задержке относительно
// последней успешной нотификации:
//   - cooldown: с момента последней отправки прошло меньше
//     minHoursBetween часов;
//   - delta: задержка изменилась меньше чем на minDelayChange минут.
func CheckDedup(last *Notification, now time.Time, delayMinutes int, minDelayChange int, minHoursBetween float64) DedupDecision {
	if last == nil || last.SentAt == nil {
		return DedupDecision{}
	}

	if minHoursBetween > 0 {
		elapsed := now.Sub(*last.SentAt)
		if elapsed.Hours() < minHoursBetween {
			return DedupDecision{Skip: true, Reason: "cooldown"}
		}
	}

	if minDelayChange > 0 {
		diff := delayMinutes - last.DelayMinutesAtSend
		if diff < 0 {
			diff = -diff
		}
		if diff < minDelayChange {
			return DedupDecision{Skip: true, Reason: "delta"}
		}
	}

	return DedupDecision{}
}
