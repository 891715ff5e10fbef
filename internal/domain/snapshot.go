package domain

import "time"

// TrafficSnapshot неизменяемая запись состояния трафика на маршруте.
// Снапшоты только добавляются и никогда не обновляются.
type TrafficSnapshot struct {
	ID               string
	RouteID          string
	TrafficCondition TrafficCondition
	DelayMinutes     int
	DurationSec      int
	Severity         Severity
	IncidentType     IncidentType
	Description      string
	AffectedArea     string
	IncidentLocation *Coordinates
	SnapshotAt       time.Time
}

// NewTrafficSnapshot собирает снапшот из замера трафика, выводя
// severity и incident_type из величины задержки.
func NewTrafficSnapshot(route *Route, delayMinutes, durationSec int, condition TrafficCondition, at time.Time) *TrafficSnapshot {
	snapshot := &TrafficSnapshot{
		RouteID:          route.ID,
		TrafficCondition: condition,
		DelayMinutes:     delayMinutes,
		DurationSec:      durationSec,
		Severity:         ClassifySeverity(delayMinutes),
		IncidentType:     ClassifyIncident(delayMinutes),
		Description:      describeTraffic(delayMinutes, condition),
		AffectedArea:     route.OriginAddress + " - " + route.DestinationAddress,
		SnapshotAt:       at,
	}

	if route.HasCoordinates() {
		mid := Midpoint(route.OriginCoords, route.DestinationCoords)
		snapshot.IncidentLocation = &mid
	}

	return snapshot
}

func describeTraffic(delayMinutes int, condition TrafficCondition) string {
	if delayMinutes <= 0 {
		return "Traffic is flowing normally"
	}
	switch condition {
	case ConditionSevere:
		return "Severe congestion, expect significant delays"
	case ConditionHeavy:
		return "Heavy traffic on the route"
	case ConditionModerate:
		return "Moderate traffic, minor delays possible"
	default:
		return "Light traffic"
	}
}
