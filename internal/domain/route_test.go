package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoute() *Route {
	return &Route{
		ID:                 "route-1",
		OriginAddress:      "10 Warehouse Way, Rotterdam",
		OriginCoords:       Coordinates{Lat: 51.9244, Lng: 4.4777},
		DestinationAddress: "22 Market St, Amsterdam",
		DestinationCoords:  Coordinates{Lat: 52.3676, Lng: 4.9041},
		NormalDurationSec:  3600,
	}
}

func TestRoute_DelayMinutes(t *testing.T) {
	r := testRoute()

	// До первой проверки трафика задержки нет
	assert.Equal(t, 0, r.DelayMinutes())

	current := 3600 + 35*60
	r.CurrentDurationSec = &current
	assert.Equal(t, 35, r.DelayMinutes())

	faster := 3000
	r.CurrentDurationSec = &faster
	assert.Equal(t, 0, r.DelayMinutes())
}

func TestRoute_ApplyTraffic(t *testing.T) {
	r := testRoute()

	r.ApplyTraffic(72000, 3500, 4400, ConditionModerate)

	assert.Equal(t, 72000, r.DistanceMeters)
	assert.Equal(t, 3500, r.NormalDurationSec)
	require.NotNil(t, r.CurrentDurationSec)
	assert.Equal(t, 4400, *r.CurrentDurationSec)
	require.NotNil(t, r.TrafficCondition)
	assert.Equal(t, ConditionModerate, *r.TrafficCondition)
	assert.Equal(t, 15, r.DelayMinutes())
}

func TestRoute_HasCoordinates(t *testing.T) {
	r := testRoute()
	assert.True(t, r.HasCoordinates())

	r.DestinationCoords = Coordinates{}
	assert.False(t, r.HasCoordinates())
}

func TestCoordinates(t *testing.T) {
	c := Coordinates{Lat: 51.9244, Lng: 4.4777}
	assert.False(t, c.IsZero())
	assert.Equal(t, "51.924400,4.477700", c.String())
	assert.True(t, Coordinates{}.IsZero())

	mid := Midpoint(Coordinates{Lat: 50, Lng: 4}, Coordinates{Lat: 52, Lng: 6})
	assert.Equal(t, Coordinates{Lat: 51, Lng: 5}, mid)
}

func TestNewTrafficSnapshot(t *testing.T) {
	r := testRoute()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	snap := NewTrafficSnapshot(r, 50, 6600, ConditionSevere, at)

	assert.Equal(t, "route-1", snap.RouteID)
	assert.Equal(t, 50, snap.DelayMinutes)
	assert.Equal(t, SeverityMajor, snap.Severity)
	assert.Equal(t, IncidentAccident, snap.IncidentType)
	assert.Equal(t, ConditionSevere, snap.TrafficCondition)
	assert.Contains(t, snap.AffectedArea, "Rotterdam")
	assert.Contains(t, snap.AffectedArea, "Amsterdam")
	require.NotNil(t, snap.IncidentLocation)
	assert.InDelta(t, 52.146, snap.IncidentLocation.Lat, 0.001)
	assert.Equal(t, at, snap.SnapshotAt)

	// Без координат точка инцидента отсутствует
	r.OriginCoords = Coordinates{}
	snap = NewTrafficSnapshot(r, 5, 3700, ConditionLight, at)
	assert.Nil(t, snap.IncidentLocation)
	assert.Equal(t, SeverityMinor, snap.Severity)
	assert.Equal(t, IncidentCongestion, snap.IncidentType)
}

func TestWorkflowIDFor(t *testing.T) {
	assert.Equal(t, "delay-notification-dlv-1", WorkflowIDFor(KindDelayNotification, "dlv-1"))
	assert.Equal(t, "recurring-check-dlv-1", WorkflowIDFor(KindRecurringCheck, "dlv-1"))
}

func TestExecutionStatus_Terminal(t *testing.T) {
	assert.False(t, ExecutionRunning.Terminal())
	assert.True(t, ExecutionCompleted.Terminal())
	assert.True(t, ExecutionCancelled.Terminal())
	assert.True(t, ExecutionFailed.Terminal())
	assert.True(t, ExecutionTimedOut.Terminal())
}
