package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClock(t *testing.T) {
	c := NewRealClock()
	before := time.Now()
	now := c.Now()
	assert.False(t, now.Before(before.Add(-time.Second)))

	select {
	case <-c.After(time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("real clock timer did not fire")
	}
}

func TestFakeClock_Now(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)

	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), c.Now())
}

func TestFakeClock_After(t *testing.T) {
	c := NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	ch := c.After(10 * time.Minute)
	require.Equal(t, 1, c.WaiterCount())

	// Недостаточное продвижение не будит таймер
	c.Advance(5 * time.Minute)
	select {
	case <-ch:
		t.Fatal("timer fired too early")
	default:
	}

	c.Advance(5 * time.Minute)
	select {
	case now := <-ch:
		assert.Equal(t, c.Now(), now)
	default:
		t.Fatal("timer should have fired")
	}
	assert.Equal(t, 0, c.WaiterCount())
}

func TestFakeClock_AfterZero(t *testing.T) {
	c := NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	select {
	case <-c.After(0):
	default:
		t.Fatal("zero duration timer must fire immediately")
	}
}
