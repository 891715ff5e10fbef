package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freightwatch/internal/adapters/ai"
	"freightwatch/internal/adapters/email"
	"freightwatch/internal/adapters/sms"
	"freightwatch/internal/adapters/traffic"
	"freightwatch/internal/domain"
	"freightwatch/internal/notify"
	"freightwatch/internal/pipeline"
	"freightwatch/internal/report"
	"freightwatch/internal/repository"
	"freightwatch/internal/sweep"
	"freightwatch/internal/testutil"
	"freightwatch/internal/threshold"
	"freightwatch/internal/workflows"
	"freightwatch/pkg/config"
	"freightwatch/pkg/ratelimit"
	"freightwatch/pkg/workflow"
)

const testCronSecret = "test-cron-secret"

type serverEnv struct {
	handler  http.Handler
	repos    *repository.Repositories
	delivery *domain.Delivery
	engine   *workflow.LocalEngine
}

func newServerEnv(t *testing.T, delayMinutes int) *serverEnv {
	t.Helper()

	repos := testutil.NewRepositories()
	ctx := context.Background()

	customer := &domain.Customer{Name: "Alex", Email: "alex@example.com", Phone: "+31611111111"}
	require.NoError(t, repos.Customers.Create(ctx, customer))

	route := &domain.Route{
		OriginAddress:      "10 Warehouse Way, Rotterdam",
		OriginCoords:       domain.Coordinates{Lat: 51.92, Lng: 4.47},
		DestinationAddress: "22 Market St, Amsterdam",
		DestinationCoords:  domain.Coordinates{Lat: 52.36, Lng: 4.90},
		NormalDurationSec:  3600,
	}
	require.NoError(t, repos.Routes.Create(ctx, route))

	delivery := &domain.Delivery{
		TrackingNumber:    "TRK-1001",
		CustomerID:        customer.ID,
		RouteID:           route.ID,
		Status:            domain.StatusInTransit,
		ScheduledDelivery: time.Now().Add(6 * time.Hour),
	}
	require.NoError(t, repos.Deliveries.Create(ctx, delivery))

	require.NoError(t, repos.Thresholds.Create(ctx, &domain.Threshold{
		Name:                 "Standard delay",
		DelayMinutes:         20,
		NotificationChannels: []domain.Channel{domain.ChannelEmail},
		IsDefault:            true,
	}))

	engine := workflow.NewLocalEngine("freight-delay-queue",
		workflow.WithActivityPolicy(workflow.ActivityPolicy{
			Timeout: 5 * time.Second, MaxAttempts: 1,
			RetryBase: time.Millisecond, RetryCap: time.Millisecond,
		}))
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = engine.Shutdown(shutdownCtx)
	})

	trafficChain := traffic.NewChain([]traffic.Provider{traffic.NewMockWithDelay(delayMinutes)}, nil, 0)

	p := pipeline.New(
		repos,
		trafficChain,
		ai.NewChain([]ai.Generator{ai.NewMock()}),
		notify.NewService([]email.Notifier{email.NewMock()}, []sms.Notifier{sms.NewMock()}, nil),
		threshold.NewResolver(repos.Thresholds, 30),
	)

	workflowService := workflows.NewService(engine, repos, p, config.WorkflowConfig{
		TaskQueue:   "freight-delay-queue",
		CutoffHours: 1,
	})

	sweeper := sweep.New(repos, trafficChain, 1000, 2)

	limiter := ratelimit.NewMemoryLimiter(&ratelimit.Config{Requests: 100, Window: time.Minute})
	t.Cleanup(func() { _ = limiter.Close() })

	handlers := NewHandlers(workflowService, sweeper, report.NewService(repos),
		nil, limiter, testCronSecret, "test")

	return &serverEnv{
		handler:  handlers.Router("/metrics"),
		repos:    repos,
		delivery: delivery,
		engine:   engine,
	}
}

func TestHealth(t *testing.T) {
	e := newServerEnv(t, 0)

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestReady_NoDB(t *testing.T) {
	e := newServerEnv(t, 0)

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTrafficSweep_Unauthorized(t *testing.T) {
	e := newServerEnv(t, 0)

	// Без заголовка
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cron/traffic-sweep", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// С неверным секретом
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cron/traffic-sweep", nil)
	req.Header.Set("Authorization", "Bearer wrong-secret")
	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTrafficSweep_Success(t *testing.T) {
	e := newServerEnv(t, 25)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cron/traffic-sweep", nil)
	req.Header.Set("Authorization", "Bearer "+testCronSecret)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var summary sweep.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.RoutesChecked)
	assert.Equal(t, 1, summary.SnapshotsSaved)
	assert.Equal(t, 1, summary.DelaysDetected)
	assert.Empty(t, summary.Errors)
}

func TestStartWorkflow(t *testing.T) {
	e := newServerEnv(t, 0)

	body, _ := json.Marshal(map[string]string{"delivery_id": e.delivery.ID})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result workflows.StartResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "delay-notification-"+e.delivery.ID, result.WorkflowID)
	assert.NotEmpty(t, result.RunID)
}

func TestStartWorkflow_Validation(t *testing.T) {
	e := newServerEnv(t, 0)

	// Пустое тело
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/start", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Некорректный JSON
	req = httptest.NewRequest(http.MethodPost, "/api/v1/workflows/start", bytes.NewReader([]byte(`{`)))
	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartWorkflow_UnknownDelivery(t *testing.T) {
	e := newServerEnv(t, 0)

	body, _ := json.Marshal(map[string]string{"delivery_id": "ghost"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "DELIVERY_NOT_FOUND")
}

func TestWorkflowStatus(t *testing.T) {
	e := newServerEnv(t, 0)

	// Запускаем и ждём завершения
	body, _ := json.Marshal(map[string]string{"delivery_id": e.delivery.ID})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var started workflows.StartResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/workflows/status?workflow_id="+started.WorkflowID, nil)
		rec := httptest.NewRecorder()
		e.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return false
		}
		var status workflows.StatusResult
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.Status == string(domain.ExecutionCompleted)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWorkflowStatus_MissingParam(t *testing.T) {
	e := newServerEnv(t, 0)

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/workflows/status", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkflowStatus_NotFound(t *testing.T) {
	e := newServerEnv(t, 0)

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/v1/workflows/status?workflow_id=ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelWorkflow_NotFound(t *testing.T) {
	e := newServerEnv(t, 0)

	body, _ := json.Marshal(map[string]any{"workflow_id": "ghost", "force": true})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/cancel", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeliveryReport(t *testing.T) {
	e := newServerEnv(t, 0)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/deliveries/"+e.delivery.ID+"/report?format=csv", nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "TRK-1001")
}

func TestDeliveryReport_BadFormat(t *testing.T) {
	e := newServerEnv(t, 0)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/deliveries/"+e.delivery.ID+"/report?format=docx", nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartWorkflow_RateLimited(t *testing.T) {
	e := newServerEnv(t, 0)

	// Отдельный handler с лимитом в 1 запрос
	limiter := ratelimit.NewMemoryLimiter(&ratelimit.Config{Requests: 1, Window: time.Minute})
	t.Cleanup(func() { _ = limiter.Close() })

	trafficChain := traffic.NewChain([]traffic.Provider{traffic.NewMock()}, nil, 0)
	p := pipeline.New(e.repos, trafficChain,
		ai.NewChain([]ai.Generator{ai.NewMock()}),
		notify.NewService([]email.Notifier{email.NewMock()}, nil, nil),
		threshold.NewResolver(e.repos.Thresholds, 30))

	workflowService := workflows.NewService(e.engine, e.repos, p, config.WorkflowConfig{
		TaskQueue: "freight-delay-queue", CutoffHours: 1,
	})
	handlers := NewHandlers(workflowService, sweep.New(e.repos, trafficChain, 10, 1),
		report.NewService(e.repos), nil, limiter, testCronSecret, "test")
	handler := handlers.Router("/metrics")

	body, _ := json.Marshal(map[string]string{"delivery_id": e.delivery.ID})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/start", bytes.NewReader(body))
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/workflows/start", bytes.NewReader(body))
	req.RemoteAddr = "10.1.2.3:5556"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
