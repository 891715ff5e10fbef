package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freightwatch/pkg/apperror"
)

func TestCanTransition_Table(t *testing.T) {
	tests := []struct {
		from    DeliveryStatus
		to      DeliveryStatus
		allowed bool
	}{
		{StatusPending, StatusInTransit, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusDelivered, false},
		{StatusPending, StatusDelayed, false},
		{StatusPending, StatusFailed, false},

		{StatusInTransit, StatusDelayed, true},
		{StatusInTransit, StatusDelivered, true},
		{StatusInTransit, StatusFailed, true},
		{StatusInTransit, StatusCancelled, false},
		{StatusInTransit, StatusPending, false},

		{StatusDelayed, StatusDelivered, true},
		{StatusDelayed, StatusFailed, true},
		{StatusDelayed, StatusCancelled, true},
		{StatusDelayed, StatusInTransit, false},

		{StatusDelivered, StatusInTransit, false},
		{StatusDelivered, StatusFailed, false},
		{StatusCancelled, StatusPending, false},
		{StatusFailed, StatusDelayed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestDelivery_TransitionTo(t *testing.T) {
	d := &Delivery{ID: "dlv-1", Status: StatusPending}

	require.NoError(t, d.TransitionTo(StatusInTransit))
	assert.Equal(t, StatusInTransit, d.Status)

	require.NoError(t, d.TransitionTo(StatusDelayed))
	require.NoError(t, d.TransitionTo(StatusDelivered))

	// Терминальный статус: любые переходы отклоняются, статус не меняется
	err := d.TransitionTo(StatusFailed)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidTransition))
	assert.Equal(t, StatusDelivered, d.Status)
}

func TestDelivery_TransitionTo_UnknownStatus(t *testing.T) {
	d := &Delivery{Status: StatusPending}
	err := d.TransitionTo(DeliveryStatus("teleported"))
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidArgument))
	assert.Equal(t, StatusPending, d.Status)
}

func TestDelivery_MarkDelayed(t *testing.T) {
	t.Run("from in_transit", func(t *testing.T) {
		d := &Delivery{Status: StatusInTransit}
		require.NoError(t, d.MarkDelayed())
		assert.Equal(t, StatusDelayed, d.Status)
	})

	t.Run("from pending", func(t *testing.T) {
		d := &Delivery{Status: StatusPending}
		require.NoError(t, d.MarkDelayed())
		assert.Equal(t, StatusDelayed, d.Status)
	})

	t.Run("already delayed is a no-op", func(t *testing.T) {
		d := &Delivery{Status: StatusDelayed}
		require.NoError(t, d.MarkDelayed())
		assert.Equal(t, StatusDelayed, d.Status)
	})

	t.Run("from terminal status fails", func(t *testing.T) {
		for _, status := range []DeliveryStatus{StatusDelivered, StatusCancelled, StatusFailed} {
			d := &Delivery{Status: status}
			err := d.MarkDelayed()
			require.Error(t, err, "status %s", status)
			assert.True(t, apperror.Is(err, apperror.CodeInvalidTransition))
			assert.Equal(t, status, d.Status)
		}
	})
}

func TestDeliveryStatus_Helpers(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.False(t, DeliveryStatus("bogus").Valid())

	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusDelayed.Terminal())
	assert.False(t, StatusInTransit.Terminal())
}

func TestDelivery_ChecksExhausted(t *testing.T) {
	d := &Delivery{MaxChecks: 3, ChecksPerformed: 2}
	assert.False(t, d.ChecksExhausted())

	d.ChecksPerformed = 3
	assert.True(t, d.ChecksExhausted())

	// Безлимит
	d = &Delivery{MaxChecks: UnlimitedChecks, ChecksPerformed: 1000}
	assert.False(t, d.ChecksExhausted())

	// max_checks = 0 запрещает проверки сразу
	d = &Delivery{MaxChecks: 0, ChecksPerformed: 0}
	assert.True(t, d.ChecksExhausted())
}

func TestDelivery_WithinCutoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	d := &Delivery{ScheduledDelivery: now.Add(3 * time.Hour)}
	assert.True(t, d.WithinCutoff(now, 1))

	d.ScheduledDelivery = now.Add(45 * time.Minute)
	assert.False(t, d.WithinCutoff(now, 1))

	// Ровно на границе окно считается закрытым
	d.ScheduledDelivery = now.Add(time.Hour)
	assert.False(t, d.WithinCutoff(now, 1))

	// Просроченная доставка
	d.ScheduledDelivery = now.Add(-time.Hour)
	assert.False(t, d.WithinCutoff(now, 1))
}
