package traffic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freightwatch/internal/domain"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/cache"
	"freightwatch/pkg/config"
)

var (
	rotterdam = domain.Coordinates{Lat: 51.9244, Lng: 4.4777}
	amsterdam = domain.Coordinates{Lat: 52.3676, Lng: 4.9041}
)

func TestMock_Deterministic(t *testing.T) {
	m := NewMock()

	first, err := m.GetTraffic(context.Background(), rotterdam, amsterdam)
	require.NoError(t, err)
	second, err := m.GetTraffic(context.Background(), rotterdam, amsterdam)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "mock-traffic", first.ProviderName)
	assert.True(t, first.DelayMinutes >= 0 && first.DelayMinutes < 45)
	assert.Equal(t, domain.ClassifyCondition(first.DelayMinutes), first.Condition)
	assert.Greater(t, first.DistanceMeters, 40000, "Rotterdam-Amsterdam is ~57km")
}

func TestMock_FixedDelay(t *testing.T) {
	m := NewMockWithDelay(35)

	result, err := m.GetTraffic(context.Background(), rotterdam, amsterdam)
	require.NoError(t, err)

	assert.Equal(t, 35, result.DelayMinutes)
	assert.Equal(t, domain.ConditionSevere, result.Condition)
	assert.Equal(t, result.NormalDurationSec+35*60, result.EstimatedDurationSec)
}

func TestChain_FallsThroughToMock(t *testing.T) {
	failing := &Mock{Fail: true}
	backup := NewMockWithDelay(10)

	chain := NewChain([]Provider{failing, backup}, nil, 0)

	result, err := chain.GetTraffic(context.Background(), rotterdam, amsterdam)
	require.NoError(t, err)
	assert.Equal(t, 10, result.DelayMinutes)
}

func TestChain_AllFail(t *testing.T) {
	chain := NewChain([]Provider{&Mock{Fail: true}}, nil, 0)

	_, err := chain.GetTraffic(context.Background(), rotterdam, amsterdam)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeProviderFailed))
	assert.Contains(t, err.Error(), "mock-traffic")
}

func TestChain_NoProviders(t *testing.T) {
	unavailable := NewGoogleMaps(config.GoogleMapsConfig{}) // без ключа

	chain := NewChain([]Provider{unavailable}, nil, 0)
	_, err := chain.GetTraffic(context.Background(), rotterdam, amsterdam)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeProviderUnavailable))
}

func TestChain_CachesResult(t *testing.T) {
	c := cache.NewMemoryCache(nil)
	t.Cleanup(func() { _ = c.Close() })

	counting := &countingProvider{inner: NewMockWithDelay(12)}
	chain := NewChain([]Provider{counting}, c, time.Minute)

	ctx := context.Background()
	first, err := chain.GetTraffic(ctx, rotterdam, amsterdam)
	require.NoError(t, err)

	second, err := chain.GetTraffic(ctx, rotterdam, amsterdam)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, counting.calls, "second lookup must come from cache")
}

type countingProvider struct {
	inner Provider
	calls int
}

func (p *countingProvider) ProviderName() string { return p.inner.ProviderName() }
func (p *countingProvider) Priority() int        { return p.inner.Priority() }
func (p *countingProvider) IsAvailable() bool    { return p.inner.IsAvailable() }

func (p *countingProvider) GetTraffic(ctx context.Context, origin, destination domain.Coordinates) (*Result, error) {
	p.calls++
	return p.inner.GetTraffic(ctx, origin, destination)
}

func TestGoogleMaps_Unavailable(t *testing.T) {
	g := NewGoogleMaps(config.GoogleMapsConfig{})
	assert.False(t, g.IsAvailable())

	g = NewGoogleMaps(config.GoogleMapsConfig{APIKey: "key"})
	assert.True(t, g.IsAvailable())
	assert.Equal(t, "google-maps", g.ProviderName())
	assert.Equal(t, 1, g.Priority())
}

func TestGoogleMaps_GetTraffic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "now", r.URL.Query().Get("departure_time"))
		assert.NotEmpty(t, r.URL.Query().Get("origins"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"rows": [{
				"elements": [{
					"status": "OK",
					"distance": {"value": 57000},
					"duration": {"value": 3600},
					"duration_in_traffic": {"value": 5700}
				}]
			}]
		}`))
	}))
	defer server.Close()

	g := NewGoogleMaps(config.GoogleMapsConfig{APIKey: "key"})
	g.baseURL = server.URL

	result, err := g.GetTraffic(context.Background(), rotterdam, amsterdam)
	require.NoError(t, err)

	assert.Equal(t, 57000, result.DistanceMeters)
	assert.Equal(t, 3600, result.NormalDurationSec)
	assert.Equal(t, 5700, result.EstimatedDurationSec)
	assert.Equal(t, 35, result.DelayMinutes)
	assert.Equal(t, domain.ConditionSevere, result.Condition)
	assert.Equal(t, "google-maps", result.ProviderName)
}

func TestGoogleMaps_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "REQUEST_DENIED", "error_message": "bad key"}`))
	}))
	defer server.Close()

	g := NewGoogleMaps(config.GoogleMapsConfig{APIKey: "key"})
	g.baseURL = server.URL

	_, err := g.GetTraffic(context.Background(), rotterdam, amsterdam)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeProviderFailed))
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
}

func TestBuildResult(t *testing.T) {
	r := buildResult("test", 1000, 600, 610)
	assert.Equal(t, 0, r.DelayMinutes) // 10 секунд округляются вниз
	assert.Equal(t, domain.ConditionLight, r.Condition)

	r = buildResult("test", 1000, 600, 2700)
	assert.Equal(t, 35, r.DelayMinutes)
	assert.Equal(t, domain.ConditionSevere, r.Condition)
}
