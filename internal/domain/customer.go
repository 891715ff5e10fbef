package domain

import "time"

// Customer получатель доставки. Создаётся при первом упоминании
// в доставке и никогда не удаляется автоматически.
type Customer struct {
	ID        string
	Name      string
	Email     string // уникален
	Phone     string // опционален, нужен для SMS
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPhone проверяет наличие телефона для SMS канала
func (c *Customer) HasPhone() bool {
	return c.Phone != ""
}
