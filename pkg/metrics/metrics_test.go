package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_Singleton(t *testing.T) {
	m1 := Get()
	m2 := Get()
	require.Same(t, m1, m2)
}

func TestObserveHTTP(t *testing.T) {
	m := Get()

	m.ObserveHTTP("GET", "/api/v1/workflows/status", "200", 25*time.Millisecond)
	m.ObserveHTTP("GET", "/api/v1/workflows/status", "200", 10*time.Millisecond)

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/workflows/status", "200"))
	assert.Equal(t, float64(2), got)
}

func TestBusinessCounters(t *testing.T) {
	m := Get()

	m.TrafficChecksTotal.WithLabelValues("google-maps", "success").Inc()
	m.NotificationsTotal.WithLabelValues("email", "sent").Inc()
	m.NotificationsTotal.WithLabelValues("sms", "failed").Inc()
	m.WorkflowRunsTotal.WithLabelValues("recurring-check", "completed").Inc()
	m.PipelineStepsTotal.WithLabelValues("traffic_check", "completed").Inc()
	m.SweepErrorsTotal.Inc()

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.TrafficChecksTotal.WithLabelValues("google-maps", "success")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("email", "sent")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.WorkflowRunsTotal.WithLabelValues("recurring-check", "completed")))
}

func TestWorkflowsActiveGauge(t *testing.T) {
	m := Get()

	before := testutil.ToFloat64(m.WorkflowsActive)
	m.WorkflowsActive.Inc()
	m.WorkflowsActive.Inc()
	m.WorkflowsActive.Dec()

	assert.Equal(t, before+1, testutil.ToFloat64(m.WorkflowsActive))
}

func TestHandler(t *testing.T) {
	assert.NotNil(t, Handler())
}
