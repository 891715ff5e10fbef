// internal/repository/postgres.go
package repository

import (
	"freightwatch/pkg/database"
)

// NewPostgres создаёт все postgres репозитории поверх одного пула
func NewPostgres(db database.DB) *Repositories {
	return &Repositories{
		Customers:     NewPostgresCustomerRepository(db),
		Routes:        NewPostgresRouteRepository(db),
		Deliveries:    NewPostgresDeliveryRepository(db),
		Thresholds:    NewPostgresThresholdRepository(db),
		Snapshots:     NewPostgresSnapshotRepository(db),
		Notifications: NewPostgresNotificationRepository(db),
		Executions:    NewPostgresExecutionRepository(db),
	}
}
