package traffic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"freightwatch/internal/adapters"
	"freightwatch/internal/domain"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/config"
)

const distanceMatrixURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

// GoogleMaps провайдер трафика поверх Distance Matrix API
type GoogleMaps struct {
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	baseURL string
}

// NewGoogleMaps создаёт адаптер Google Maps
func NewGoogleMaps(cfg config.GoogleMapsConfig) *GoogleMaps {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &GoogleMaps{
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		breaker: adapters.NewBreaker("google-maps-traffic"),
		baseURL: distanceMatrixURL,
	}
}

func (g *GoogleMaps) ProviderName() string { return "google-maps" }
func (g *GoogleMaps) Priority() int        { return 1 }

// IsAvailable сообщает false при незаполненном API ключе
func (g *GoogleMaps) IsAvailable() bool {
	return g.apiKey != "" && g.breaker.State() != gobreaker.StateOpen
}

// distanceMatrixResponse усечённый ответ Distance Matrix API
type distanceMatrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value int `json:"value"`
			} `json:"duration"`
			DurationInTraffic struct {
				Value int `json:"value"`
			} `json:"duration_in_traffic"`
		} `json:"elements"`
	} `json:"rows"`
	ErrorMessage string `json:"error_message"`
}

func (g *GoogleMaps) GetTraffic(ctx context.Context, origin, destination domain.Coordinates) (*Result, error) {
	value, err := g.breaker.Execute(func() (any, error) {
		return g.fetch(ctx, origin, destination)
	})
	if err != nil {
		return nil, apperror.Wrapf(err, apperror.CodeProviderFailed, "google maps traffic lookup failed: %v", err)
	}
	return value.(*Result), nil
}

func (g *GoogleMaps) fetch(ctx context.Context, origin, destination domain.Coordinates) (*Result, error) {
	params := url.Values{}
	params.Set("origins", origin.String())
	params.Set("destinations", destination.String())
	params.Set("departure_time", "now")
	params.Set("traffic_model", "best_guess")
	params.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("distance matrix returned status %d", resp.StatusCode)
	}

	var payload distanceMatrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode distance matrix response: %w", err)
	}

	if payload.Status != "OK" {
		return nil, fmt.Errorf("distance matrix status %s: %s", payload.Status, payload.ErrorMessage)
	}
	if len(payload.Rows) == 0 || len(payload.Rows[0].Elements) == 0 {
		return nil, fmt.Errorf("distance matrix returned no elements")
	}

	element := payload.Rows[0].Elements[0]
	if element.Status != "OK" {
		return nil, fmt.Errorf("distance matrix element status %s", element.Status)
	}

	estimated := element.DurationInTraffic.Value
	if estimated == 0 {
		estimated = element.Duration.Value
	}

	return buildResult(g.ProviderName(), element.Distance.Value, element.Duration.Value, estimated), nil
}
