package domain

import "fmt"

// Coordinates географические координаты точки маршрута.
// Каноническое представление - пара lat/lng.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero проверяет, заданы ли координаты
func (c Coordinates) IsZero() bool {
	return c.Lat == 0 && c.Lng == 0
}

// String возвращает строковое представление "lat,lng"
func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Midpoint возвращает середину отрезка между двумя точками.
// Для коротких маршрутов линейная аппроксимация достаточна.
func Midpoint(a, b Coordinates) Coordinates {
	return Coordinates{
		Lat: (a.Lat + b.Lat) / 2,
		Lng: (a.Lng + b.Lng) / 2,
	}
}
