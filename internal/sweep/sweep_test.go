package sweep

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freightwatch/internal/adapters/traffic"
	"freightwatch/internal/domain"
	"freightwatch/internal/repository"
	"freightwatch/internal/testutil"
)

func seedRoutes(t *testing.T, repos *repository.Repositories, n int) []*domain.Route {
	t.Helper()
	ctx := context.Background()

	routes := make([]*domain.Route, 0, n)
	for i := 0; i < n; i++ {
		route := &domain.Route{
			OriginAddress:      fmt.Sprintf("Warehouse %d", i),
			OriginCoords:       domain.Coordinates{Lat: 51.0 + float64(i)*0.01, Lng: 4.0},
			DestinationAddress: fmt.Sprintf("Market %d", i),
			DestinationCoords:  domain.Coordinates{Lat: 52.0 + float64(i)*0.01, Lng: 5.0},
			NormalDurationSec:  3600,
		}
		require.NoError(t, repos.Routes.Create(ctx, route))
		routes = append(routes, route)
	}
	return routes
}

func fixedNow() func() time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func TestRun_AllRoutesHealthy(t *testing.T) {
	repos := testutil.NewRepositories()
	seedRoutes(t, repos, 5)

	chain := traffic.NewChain([]traffic.Provider{traffic.NewMockWithDelay(20)}, nil, 0)
	sweeper := New(repos, chain, 1000, 4, WithNow(fixedNow()))

	summary, err := sweeper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, summary.RoutesChecked)
	assert.Equal(t, 5, summary.SnapshotsSaved)
	assert.Equal(t, 5, summary.DelaysDetected)
	assert.Empty(t, summary.Errors)

	// Маршруты обновлены замером
	routes, _, err := repos.Routes.List(context.Background(), nil)
	require.NoError(t, err)
	for _, route := range routes {
		require.NotNil(t, route.CurrentDurationSec, "route %s", route.ID)
		require.NotNil(t, route.TrafficCondition)
		assert.Equal(t, 20, route.DelayMinutes())
	}

	// По снапшоту на маршрут
	snapRepo := repos.Snapshots.(*testutil.SnapshotRepo)
	assert.Len(t, snapRepo.All(), 5)
}

func TestRun_PartialFailureIsIsolated(t *testing.T) {
	repos := testutil.NewRepositories()
	routes := seedRoutes(t, repos, 10)

	// Провайдер падает ровно для одного маршрута
	failing := &selectiveProvider{
		inner:   traffic.NewMockWithDelay(10),
		failFor: routes[3].OriginCoords,
	}
	chain := traffic.NewChain([]traffic.Provider{failing}, nil, 0)
	sweeper := New(repos, chain, 1000, 1, WithNow(fixedNow()))

	summary, err := sweeper.Run(context.Background())
	require.NoError(t, err, "per-route failure must not fail the sweep")

	assert.Equal(t, 10, summary.RoutesChecked)
	assert.Equal(t, 9, summary.SnapshotsSaved)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "route_"+routes[3].ID)
}

type selectiveProvider struct {
	inner   traffic.Provider
	failFor domain.Coordinates
}

func (p *selectiveProvider) ProviderName() string { return "selective" }
func (p *selectiveProvider) Priority() int        { return 1 }
func (p *selectiveProvider) IsAvailable() bool    { return true }

func (p *selectiveProvider) GetTraffic(ctx context.Context, origin, destination domain.Coordinates) (*traffic.Result, error) {
	if origin == p.failFor {
		return nil, fmt.Errorf("provider exploded")
	}
	return p.inner.GetTraffic(ctx, origin, destination)
}

func TestRun_SkipsRoutesWithoutCoordinates(t *testing.T) {
	repos := testutil.NewRepositories()
	ctx := context.Background()

	require.NoError(t, repos.Routes.Create(ctx, &domain.Route{
		OriginAddress:      "No coords",
		DestinationAddress: "Nowhere",
		NormalDurationSec:  3600,
	}))
	seedRoutes(t, repos, 2)

	chain := traffic.NewChain([]traffic.Provider{traffic.NewMockWithDelay(0)}, nil, 0)
	sweeper := New(repos, chain, 1000, 2, WithNow(fixedNow()))

	summary, err := sweeper.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.RoutesChecked)
	assert.Equal(t, 2, summary.SnapshotsSaved)
	assert.Empty(t, summary.Errors)
}

func TestRun_SnapshotDerivation(t *testing.T) {
	repos := testutil.NewRepositories()
	seedRoutes(t, repos, 1)

	// Задержка 50 минут: severity major, incident accident
	chain := traffic.NewChain([]traffic.Provider{traffic.NewMockWithDelay(50)}, nil, 0)
	sweeper := New(repos, chain, 1000, 1, WithNow(fixedNow()))

	_, err := sweeper.Run(context.Background())
	require.NoError(t, err)

	snapshots := repos.Snapshots.(*testutil.SnapshotRepo).All()
	require.Len(t, snapshots, 1)

	snapshot := snapshots[0]
	assert.Equal(t, domain.SeverityMajor, snapshot.Severity)
	assert.Equal(t, domain.IncidentAccident, snapshot.IncidentType)
	assert.Equal(t, 50, snapshot.DelayMinutes)
	require.NotNil(t, snapshot.IncidentLocation)
	assert.NotEmpty(t, snapshot.Description)
	assert.NotEmpty(t, snapshot.AffectedArea)
	assert.Equal(t, fixedNow()(), snapshot.SnapshotAt)
}

func TestRun_CapsRouteCount(t *testing.T) {
	repos := testutil.NewRepositories()
	seedRoutes(t, repos, 6)

	chain := traffic.NewChain([]traffic.Provider{traffic.NewMockWithDelay(0)}, nil, 0)
	sweeper := New(repos, chain, 4, 2, WithNow(fixedNow()))

	summary, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.RoutesChecked)
}

func TestRun_SnapshotRepoFailure(t *testing.T) {
	repos := testutil.NewRepositories()
	seedRoutes(t, repos, 2)
	repos.Snapshots.(*testutil.SnapshotRepo).FailCreate = true

	chain := traffic.NewChain([]traffic.Provider{traffic.NewMockWithDelay(5)}, nil, 0)
	sweeper := New(repos, chain, 1000, 1, WithNow(fixedNow()))

	summary, err := sweeper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.RoutesChecked)
	assert.Equal(t, 0, summary.SnapshotsSaved)
	assert.Len(t, summary.Errors, 2)
}

func TestRun_NoDelayNotCounted(t *testing.T) {
	repos := testutil.NewRepositories()
	seedRoutes(t, repos, 3)

	chain := traffic.NewChain([]traffic.Provider{traffic.NewMockWithDelay(0)}, nil, 0)
	sweeper := New(repos, chain, 1000, 3, WithNow(fixedNow()))

	summary, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.DelaysDetected)
	assert.Equal(t, 3, summary.SnapshotsSaved)
}

// Разные инварианты идемпотентности: повторный обход добавляет по
// одному снапшоту на маршрут и не ломает состояние маршрутов
func TestRun_Idempotent(t *testing.T) {
	repos := testutil.NewRepositories()
	seedRoutes(t, repos, 2)

	chain := traffic.NewChain([]traffic.Provider{traffic.NewMockWithDelay(10)}, nil, 0)
	sweeper := New(repos, chain, 1000, 2, WithNow(fixedNow()))

	_, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	_, err = sweeper.Run(context.Background())
	require.NoError(t, err)

	snapRepo := repos.Snapshots.(*testutil.SnapshotRepo)
	assert.Len(t, snapRepo.All(), 4)

	routes, _, err := repos.Routes.List(context.Background(), nil)
	require.NoError(t, err)
	for _, route := range routes {
		assert.Equal(t, 10, route.DelayMinutes())
	}
}
