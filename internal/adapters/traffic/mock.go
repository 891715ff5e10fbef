package traffic

import (
	"context"
	"hash/fnv"
	"math"

	"freightwatch/internal/adapters"
	"freightwatch/internal/domain"
)

// Mock детерминированный провайдер трафика для тестов и dev режима.
// Всегда доступен, идёт последним в цепочке.
type Mock struct {
	// FixedDelayMinutes при неотрицательном значении подменяет
	// вычисленную задержку
	FixedDelayMinutes int
	// Fail заставляет провайдера возвращать ошибку
	Fail bool
}

// NewMock создаёт mock без фиксированной задержки
func NewMock() *Mock {
	return &Mock{FixedDelayMinutes: -1}
}

// NewMockWithDelay создаёт mock с фиксированной задержкой
func NewMockWithDelay(delayMinutes int) *Mock {
	return &Mock{FixedDelayMinutes: delayMinutes}
}

func (m *Mock) ProviderName() string { return "mock-traffic" }
func (m *Mock) Priority() int        { return adapters.MockPriority }
func (m *Mock) IsAvailable() bool    { return true }

func (m *Mock) GetTraffic(ctx context.Context, origin, destination domain.Coordinates) (*Result, error) {
	if m.Fail {
		return nil, errMockFailure
	}

	// Дистанция по прямой, скорость 60 км/ч для нормальной длительности
	distance := haversineMeters(origin, destination)
	normalSec := distance / 60 * 3600 / 1000
	if normalSec < 300 {
		normalSec = 300
	}

	delay := m.FixedDelayMinutes
	if delay < 0 {
		// Детерминированная "пробка" из хэша координат
		h := fnv.New32a()
		_, _ = h.Write([]byte(origin.String() + destination.String()))
		delay = int(h.Sum32() % 45)
	}

	estimated := normalSec + delay*60
	return buildResult(m.ProviderName(), distance, normalSec, estimated), nil
}

type mockError string

func (e mockError) Error() string { return string(e) }

const errMockFailure = mockError("mock traffic provider forced failure")

// haversineMeters расстояние между точками по большой окружности
func haversineMeters(a, b domain.Coordinates) int {
	const earthRadiusM = 6371000

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return int(earthRadiusM * c)
}
