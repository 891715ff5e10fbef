// Package sweep реализует периодический обход всех маршрутов:
// обновление живых условий и запись снапшотов независимо от workflow.
package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"freightwatch/internal/adapters/traffic"
	"freightwatch/internal/domain"
	"freightwatch/internal/repository"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/logger"
	"freightwatch/pkg/metrics"
	"freightwatch/pkg/telemetry"
)

// Summary итог одного обхода
type Summary struct {
	RoutesChecked          int      `json:"routes_checked"`
	SnapshotsSaved         int      `json:"snapshots_saved"`
	DelaysDetected         int      `json:"delays_detected"`
	NotificationsTriggered int      `json:"notifications_triggered"`
	Errors                 []string `json:"errors"`
	DurationMs             int64    `json:"duration_ms"`
}

// Sweeper обходит маршруты и обновляет их состояние
type Sweeper struct {
	repos       *repository.Repositories
	traffic     *traffic.Chain
	maxRoutes   int
	concurrency int
	now         func() time.Time
}

// Option опция конфигурации
type Option func(*Sweeper)

// WithNow подменяет источник времени (для тестов)
func WithNow(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// New создаёт sweeper. maxRoutes ограничивает размер обхода,
// concurrency - число параллельных проверок.
func New(repos *repository.Repositories, trafficChain *traffic.Chain, maxRoutes, concurrency int, opts ...Option) *Sweeper {
	if maxRoutes <= 0 {
		maxRoutes = 1000
	}
	if concurrency <= 0 {
		concurrency = 8
	}

	s := &Sweeper{
		repos:       repos,
		traffic:     trafficChain,
		maxRoutes:   maxRoutes,
		concurrency: concurrency,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run выполняет обход. Ошибки отдельных маршрутов изолируются и
// попадают в итог; фатальной считается только недоступность хранилища.
func (s *Sweeper) Run(ctx context.Context) (*Summary, error) {
	ctx, span := telemetry.StartSpan(ctx, "sweep.Run")
	defer span.End()

	m := metrics.Get()
	started := s.now()

	routes, _, err := s.repos.Routes.List(ctx, &repository.ListOptions{Limit: s.maxRoutes})
	if err != nil {
		m.SweepRunsTotal.WithLabelValues("failed").Inc()
		return nil, apperror.Wrap(err, apperror.CodeRepository, "failed to list routes for sweep")
	}

	summary := &Summary{Errors: []string{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, route := range routes {
		g.Go(func() error {
			outcome := s.checkRoute(gctx, route)

			mu.Lock()
			defer mu.Unlock()

			summary.RoutesChecked++
			if outcome.skipped {
				return nil
			}
			if outcome.err != nil {
				summary.Errors = append(summary.Errors,
					fmt.Sprintf("route_%s: %v", route.ID, outcome.err))
				m.SweepErrorsTotal.Inc()
				return nil // ошибка маршрута не валит обход
			}
			summary.SnapshotsSaved++
			if outcome.delayMinutes > 0 {
				summary.DelaysDetected++
			}
			return nil
		})
	}

	_ = g.Wait()

	duration := s.now().Sub(started)
	summary.DurationMs = duration.Milliseconds()

	m.SweepRunsTotal.WithLabelValues("success").Inc()
	m.SweepDuration.Observe(duration.Seconds())
	m.SweepRoutesTotal.Add(float64(summary.RoutesChecked))

	logger.Info("Fleet sweep finished",
		"routes_checked", summary.RoutesChecked,
		"snapshots_saved", summary.SnapshotsSaved,
		"delays_detected", summary.DelaysDetected,
		"errors", len(summary.Errors),
		"duration_ms", summary.DurationMs,
	)

	return summary, nil
}

type routeOutcome struct {
	delayMinutes int
	skipped      bool
	err          error
}

// checkRoute обновляет один маршрут и пишет снапшот
func (s *Sweeper) checkRoute(ctx context.Context, route *domain.Route) routeOutcome {
	ctx, span := telemetry.StartSpan(ctx, "sweep.checkRoute",
		telemetry.WithAttributes(telemetry.RouteID(route.ID)))
	defer span.End()

	// Маршруты без координат пропускаются без ошибки
	if !route.HasCoordinates() {
		logger.Debug("Skipping route without coordinates", "route_id", route.ID)
		return routeOutcome{skipped: true}
	}

	result, err := s.traffic.GetTraffic(ctx, route.OriginCoords, route.DestinationCoords)
	if err != nil {
		telemetry.SetError(ctx, err)
		return routeOutcome{err: err}
	}

	if err := s.repos.Routes.UpdateTraffic(ctx, route.ID,
		result.DistanceMeters,
		result.NormalDurationSec,
		result.EstimatedDurationSec,
		result.Condition,
	); err != nil {
		telemetry.SetError(ctx, err)
		return routeOutcome{err: err}
	}
	route.ApplyTraffic(result.DistanceMeters, result.NormalDurationSec,
		result.EstimatedDurationSec, result.Condition)

	snapshot := domain.NewTrafficSnapshot(route, result.DelayMinutes,
		result.EstimatedDurationSec, result.Condition, s.now())
	if err := s.repos.Snapshots.Create(ctx, snapshot); err != nil {
		telemetry.SetError(ctx, err)
		return routeOutcome{err: err}
	}

	return routeOutcome{delayMinutes: result.DelayMinutes}
}
