package domain

import (
	"time"

	"freightwatch/pkg/apperror"
)

// Channel канал доставки нотификаций
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Valid проверяет корректность канала
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// FallbackThresholdMinutes запасной порог задержки, когда в хранилище
// нет ни одного порога по умолчанию.
const FallbackThresholdMinutes = 30

// Threshold порог задержки с набором каналов нотификации.
// Среди всех порогов ровно один имеет IsDefault = true.
type Threshold struct {
	ID                   string
	Name                 string
	DelayMinutes         int
	NotificationChannels []Channel
	IsDefault            bool
	IsSystem             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Validate проверяет инварианты порога
func (t *Threshold) Validate() error {
	if t.Name == "" {
		return apperror.NewWithField(apperror.CodeInvalidArgument, "threshold name is required", "name")
	}
	if t.DelayMinutes <= 0 {
		return apperror.NewWithField(apperror.CodeInvalidThreshold,
			"delay_minutes must be positive", "delay_minutes")
	}
	if len(t.NotificationChannels) == 0 {
		return apperror.NewWithField(apperror.CodeInvalidChannel,
			"at least one notification channel is required", "notification_channels")
	}
	for _, ch := range t.NotificationChannels {
		if !ch.Valid() {
			return apperror.Newf(apperror.CodeInvalidChannel, "unknown channel %q", ch).
				WithField("notification_channels")
		}
	}
	return nil
}

// HasChannel проверяет, включён ли канал
func (t *Threshold) HasChannel(ch Channel) bool {
	for _, c := range t.NotificationChannels {
		if c == ch {
			return true
		}
	}
	return false
}

// FallbackThreshold возвращает порог, используемый когда хранилище
// недоступно или пусто.
func FallbackThreshold(minutes int) *Threshold {
	if minutes <= 0 {
		minutes = FallbackThresholdMinutes
	}
	return &Threshold{
		Name:                 "fallback",
		DelayMinutes:         minutes,
		NotificationChannels: []Channel{ChannelEmail},
	}
}
