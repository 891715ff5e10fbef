package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInit_Disabled(t *testing.T) {
	provider, err := Init(context.Background(), Config{
		Enabled:     false,
		ServiceName: "freightwatch-test",
	})
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.NotNil(t, provider.Tracer())
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestStartSpan(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: false, ServiceName: "test"})
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "Repository.GetDelivery",
		WithAttributes(DeliveryID("dlv-1"), DelayMinutes(25)),
	)
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.End()
}

func TestSetError(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test-op")
	defer span.End()

	// Не должно паниковать ни с ошибкой, ни без
	SetError(ctx, errors.New("provider timeout"))
	SetError(ctx, nil)
	AddEvent(ctx, "retry", attribute.Int("attempt", 2))
}

func TestDomainAttributes(t *testing.T) {
	assert.Equal(t, "delivery.id", string(DeliveryID("d").Key))
	assert.Equal(t, "route.id", string(RouteID("r").Key))
	assert.Equal(t, "workflow.id", string(WorkflowID("w").Key))
	assert.Equal(t, "workflow.run_id", string(RunID("run").Key))
	assert.Equal(t, "notification.channel", string(Channel("email").Key))
	assert.Equal(t, "provider.name", string(Provider("google-maps").Key))
	assert.Equal(t, "delivery.tracking_number", string(TrackingNumber("TRK-1").Key))
}

func TestGet_Fallback(t *testing.T) {
	globalProvider = nil
	p := Get()
	require.NotNil(t, p)
	assert.NotNil(t, p.Tracer())
}
