// Package geocode реализует провайдеров геокодинга адресов.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"freightwatch/internal/adapters"
	"freightwatch/internal/domain"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/config"
	"freightwatch/pkg/logger"
	"freightwatch/pkg/telemetry"
)

// Geocoder способность превращать адрес в координаты
type Geocoder interface {
	adapters.Provider
	Geocode(ctx context.Context, address string) (domain.Coordinates, error)
}

// Chain цепочка геокодеров с фолбэком
type Chain struct {
	providers []Geocoder
}

// NewChain создаёт цепочку геокодеров
func NewChain(providers []Geocoder) *Chain {
	return &Chain{providers: providers}
}

// Geocode возвращает координаты первого успешного провайдера
func (c *Chain) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	ctx, span := telemetry.StartSpan(ctx, "geocode.Chain.Geocode")
	defer span.End()

	if strings.TrimSpace(address) == "" {
		return domain.Coordinates{}, apperror.NewWithField(apperror.CodeInvalidAddress,
			"address is empty", "address")
	}

	available := adapters.Available(c.providers)
	if len(available) == 0 {
		return domain.Coordinates{}, apperror.New(apperror.CodeProviderUnavailable, "no geocoders available")
	}

	aggregate := &apperror.AggregateError{Operation: "geocoding"}
	for _, provider := range available {
		coords, err := provider.Geocode(ctx, address)
		if err != nil {
			logger.Warn("Geocoder failed", "provider", provider.ProviderName(), "error", err)
			aggregate.Add(provider.ProviderName(), err)
			continue
		}
		return coords, nil
	}

	telemetry.SetError(ctx, aggregate)
	return domain.Coordinates{}, aggregate.AsAppError()
}

const geocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleMaps геокодер поверх Geocoding API
type GoogleMaps struct {
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	baseURL string
}

// NewGoogleMaps создаёт геокодер Google Maps
func NewGoogleMaps(cfg config.GoogleMapsConfig) *GoogleMaps {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &GoogleMaps{
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		breaker: adapters.NewBreaker("google-maps-geocode"),
		baseURL: geocodeURL,
	}
}

func (g *GoogleMaps) ProviderName() string { return "google-maps" }
func (g *GoogleMaps) Priority() int        { return 1 }

func (g *GoogleMaps) IsAvailable() bool {
	return g.apiKey != "" && g.breaker.State() != gobreaker.StateOpen
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

func (g *GoogleMaps) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	value, err := g.breaker.Execute(func() (any, error) {
		return g.fetch(ctx, address)
	})
	if err != nil {
		return domain.Coordinates{}, apperror.Wrap(err, apperror.CodeProviderFailed, "google maps geocoding failed")
	}
	return value.(domain.Coordinates), nil
}

func (g *GoogleMaps) fetch(ctx context.Context, address string) (domain.Coordinates, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Coordinates{}, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return domain.Coordinates{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Coordinates{}, fmt.Errorf("geocoding returned status %d", resp.StatusCode)
	}

	var payload geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Coordinates{}, fmt.Errorf("failed to decode geocoding response: %w", err)
	}

	if payload.Status != "OK" || len(payload.Results) == 0 {
		return domain.Coordinates{}, fmt.Errorf("address not resolved: status %s %s", payload.Status, payload.ErrorMessage)
	}

	location := payload.Results[0].Geometry.Location
	return domain.Coordinates{Lat: location.Lat, Lng: location.Lng}, nil
}

// Mock детерминированный геокодер: координаты выводятся из хэша адреса.
// Всегда доступен.
type Mock struct{}

// NewMock создаёт mock геокодер
func NewMock() *Mock { return &Mock{} }

func (m *Mock) ProviderName() string { return "mock-geocoder" }
func (m *Mock) Priority() int        { return adapters.MockPriority }
func (m *Mock) IsAvailable() bool    { return true }

func (m *Mock) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return domain.Coordinates{}, apperror.NewWithField(apperror.CodeInvalidAddress,
			"address is empty", "address")
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(trimmed)))
	sum := h.Sum64()

	// Детерминированная точка в разумных пределах Европы
	lat := 35.0 + float64(sum%2000)/100.0       // 35..55
	lng := -10.0 + float64((sum/2000)%4000)/100.0 // -10..30

	return domain.Coordinates{Lat: lat, Lng: lng}, nil
}
