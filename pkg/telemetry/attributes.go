package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Атрибуты доменных сущностей для span'ов.

// DeliveryID атрибут идентификатора доставки
func DeliveryID(id string) attribute.KeyValue {
	return attribute.String("delivery.id", id)
}

// TrackingNumber атрибут трек-номера
func TrackingNumber(tn string) attribute.KeyValue {
	return attribute.String("delivery.tracking_number", tn)
}

// RouteID атрибут идентификатора маршрута
func RouteID(id string) attribute.KeyValue {
	return attribute.String("route.id", id)
}

// WorkflowID атрибут идентификатора workflow
func WorkflowID(id string) attribute.KeyValue {
	return attribute.String("workflow.id", id)
}

// RunID атрибут идентификатора запуска workflow
func RunID(id string) attribute.KeyValue {
	return attribute.String("workflow.run_id", id)
}

// Channel атрибут канала нотификации
func Channel(channel string) attribute.KeyValue {
	return attribute.String("notification.channel", channel)
}

// Provider атрибут имени провайдера
func Provider(name string) attribute.KeyValue {
	return attribute.String("provider.name", name)
}

// DelayMinutes атрибут задержки в минутах
func DelayMinutes(minutes int) attribute.KeyValue {
	return attribute.Int("traffic.delay_minutes", minutes)
}
