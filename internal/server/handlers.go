package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"freightwatch/internal/report"
	"freightwatch/internal/sweep"
	"freightwatch/internal/workflows"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/metrics"
	"freightwatch/pkg/ratelimit"
)

// Pinger проверка живости зависимости (пул БД)
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers обработчики HTTP поверхности
type Handlers struct {
	workflows  *workflows.Service
	sweeper    *sweep.Sweeper
	reports    *report.Service
	db         Pinger
	limiter    ratelimit.Limiter
	cronSecret string
	validate   *validator.Validate
	version    string
	startedAt  time.Time
}

// NewHandlers создаёт обработчики
func NewHandlers(
	workflowService *workflows.Service,
	sweeper *sweep.Sweeper,
	reports *report.Service,
	db Pinger,
	limiter ratelimit.Limiter,
	cronSecret string,
	version string,
) *Handlers {
	return &Handlers{
		workflows:  workflowService,
		sweeper:    sweeper,
		reports:    reports,
		db:         db,
		limiter:    limiter,
		cronSecret: cronSecret,
		validate:   validator.New(),
		version:    version,
		startedAt:  time.Now(),
	}
}

// Router собирает маршруты с middleware
func (h *Handlers) Router(metricsPath string) http.Handler {
	mux := http.NewServeMux()

	route := func(pattern string, handler http.Handler) {
		mux.Handle(pattern, withObservability(pattern, handler))
	}

	route("GET /healthz", http.HandlerFunc(h.health))
	route("GET /readyz", http.HandlerFunc(h.ready))

	route("GET /api/v1/cron/traffic-sweep",
		withCronAuth(h.cronSecret, http.HandlerFunc(h.trafficSweep)))

	route("POST /api/v1/workflows/start",
		withRateLimit(h.limiter, http.HandlerFunc(h.startWorkflow)))
	route("GET /api/v1/workflows/status", http.HandlerFunc(h.workflowStatus))
	route("POST /api/v1/workflows/cancel", http.HandlerFunc(h.cancelWorkflow))

	route("GET /api/v1/deliveries/{id}/report", http.HandlerFunc(h.deliveryReport))

	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	mux.Handle("GET "+metricsPath, metrics.Handler())

	return withRecovery(mux)
}

// ==================== Служебные ручки ====================

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

func (h *Handlers) ready(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ready": false,
				"error": err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

// ==================== Fleet sweep ====================

func (h *Handlers) trafficSweep(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sweeper.Run(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ==================== Workflows ====================

type startWorkflowRequest struct {
	DeliveryID string `json:"delivery_id" validate:"required"`
}

func (h *Handlers) startWorkflow(w http.ResponseWriter, r *http.Request) {
	var req startWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.Wrap(err, apperror.CodeInvalidArgument, "invalid request body"))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, apperror.Wrap(err, apperror.CodeInvalidArgument, "delivery_id is required"))
		return
	}

	result, err := h.workflows.StartForDelivery(r.Context(), req.DeliveryID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) workflowStatus(w http.ResponseWriter, r *http.Request) {
	workflowID := r.URL.Query().Get("workflow_id")
	if workflowID == "" {
		writeError(w, apperror.NewWithField(apperror.CodeInvalidArgument,
			"workflow_id query parameter is required", "workflow_id"))
		return
	}

	status, err := h.workflows.Status(r.Context(), workflowID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

type cancelWorkflowRequest struct {
	WorkflowID string `json:"workflow_id" validate:"required"`
	Force      bool   `json:"force"`
}

func (h *Handlers) cancelWorkflow(w http.ResponseWriter, r *http.Request) {
	var req cancelWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.Wrap(err, apperror.CodeInvalidArgument, "invalid request body"))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, apperror.Wrap(err, apperror.CodeInvalidArgument, "workflow_id is required"))
		return
	}

	if err := h.workflows.Cancel(r.Context(), req.WorkflowID, req.Force); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"workflow_id": req.WorkflowID,
		"cancelled":   true,
		"force":       req.Force,
	})
}

// ==================== Отчёты ====================

func (h *Handlers) deliveryReport(w http.ResponseWriter, r *http.Request) {
	deliveryID := r.PathValue("id")

	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := h.reports.Generate(r.Context(), deliveryID, format, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=delay-report-%s.%s", deliveryID, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
