package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	err := New(CodeDeliveryNotFound, "delivery not found")
	assert.Equal(t, "[DELIVERY_NOT_FOUND] delivery not found", err.Error())

	withField := NewWithField(CodeInvalidArgument, "must be positive", "delay_threshold_minutes")
	assert.Contains(t, withField.Error(), "field: delay_threshold_minutes")
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeRepository, "failed to load delivery")

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, err.Unwrap())
}

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{CodeInvalidArgument, http.StatusBadRequest},
		{CodeNilInput, http.StatusBadRequest},
		{CodeDeliveryNotFound, http.StatusNotFound},
		{CodeWorkflowNotFound, http.StatusNotFound},
		{CodeUnauthenticated, http.StatusUnauthorized},
		{CodePermissionDenied, http.StatusForbidden},
		{CodeInvalidTransition, http.StatusConflict},
		{CodeDefaultThreshold, http.StatusConflict},
		{CodeRecipientBlocked, http.StatusConflict},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeProviderFailed, http.StatusBadGateway},
		{CodeInternal, http.StatusInternalServerError},
		{CodeRepository, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.code, "msg").HTTPStatus())
		})
	}
}

func TestHTTPStatus_PlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrRouteNotFound))
}

func TestIs_And_Code(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeInvalidTransition, "cannot deliver a cancelled delivery"))

	assert.True(t, Is(err, CodeInvalidTransition))
	assert.False(t, Is(err, CodeNotFound))
	assert.Equal(t, CodeInvalidTransition, Code(err))
	assert.Equal(t, CodeInternal, Code(errors.New("plain")))
}

func TestFrom(t *testing.T) {
	assert.Nil(t, From(nil))

	app := New(CodeEngineFailed, "engine down")
	assert.Same(t, app, From(app))

	converted := From(errors.New("plain"))
	require.NotNil(t, converted)
	assert.Equal(t, CodeInternal, converted.Code)
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "error", SeverityError.String())
	assert.Equal(t, "critical", SeverityCritical.String())

	warn := NewWarning(CodeNotificationSkipped, "cooldown active")
	assert.True(t, IsWarning(warn))
	assert.False(t, IsCritical(warn))

	crit := NewCritical(CodeRepository, "database unreachable")
	assert.True(t, IsCritical(crit))
}

func TestWithDetails(t *testing.T) {
	err := New(CodeProviderFailed, "all providers failed").
		WithDetails("providers", []string{"google-maps", "mock"}).
		WithField("route_id")

	assert.Equal(t, "route_id", err.Field)
	assert.Len(t, err.Details, 1)
}

func TestAggregateError(t *testing.T) {
	agg := &AggregateError{Operation: "traffic lookup"}
	assert.Contains(t, agg.Error(), "no providers available")

	agg.Add("google-maps", errors.New("timeout"))
	agg.Add("mock", errors.New("disabled"))

	msg := agg.Error()
	assert.Contains(t, msg, "2 attempts")
	assert.Contains(t, msg, "google-maps: timeout")

	app := agg.AsAppError()
	assert.Equal(t, CodeProviderFailed, app.Code)
	assert.True(t, errors.Is(app, agg))
}
