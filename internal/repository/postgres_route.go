package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"freightwatch/internal/domain"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/database"
	"freightwatch/pkg/telemetry"
)

// PostgresRouteRepository PostgreSQL реализация
type PostgresRouteRepository struct {
	db database.DB
}

// NewPostgresRouteRepository создаёт новый репозиторий
func NewPostgresRouteRepository(db database.DB) *PostgresRouteRepository {
	return &PostgresRouteRepository{db: db}
}

const routeColumns = `
	id, origin_address, origin_lat, origin_lng,
	destination_address, destination_lat, destination_lng,
	distance_meters, normal_duration_seconds, current_duration_seconds,
	traffic_condition, created_at, updated_at
`

func (r *PostgresRouteRepository) Create(ctx context.Context, route *domain.Route) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRouteRepository.Create")
	defer span.End()

	query := `
		INSERT INTO routes (
			origin_address, origin_lat, origin_lng,
			destination_address, destination_lat, destination_lng,
			distance_meters, normal_duration_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		route.OriginAddress,
		route.OriginCoords.Lat,
		route.OriginCoords.Lng,
		route.DestinationAddress,
		route.DestinationCoords.Lat,
		route.DestinationCoords.Lng,
		route.DistanceMeters,
		route.NormalDurationSec,
	).Scan(&route.ID, &route.CreatedAt, &route.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create route: %w", err)
	}

	return nil
}

func (r *PostgresRouteRepository) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRouteRepository.GetByID",
		telemetry.WithAttributes(telemetry.RouteID(id)))
	defer span.End()

	query := `SELECT ` + routeColumns + ` FROM routes WHERE id = $1`

	route, err := scanRoute(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.ErrRouteNotFound
		}
		return nil, fmt.Errorf("failed to get route: %w", err)
	}
	return route, nil
}

func scanRoute(row pgx.Row) (*domain.Route, error) {
	route := &domain.Route{}
	var (
		currentDuration pgtype.Int4
		condition       pgtype.Text
	)

	err := row.Scan(
		&route.ID,
		&route.OriginAddress,
		&route.OriginCoords.Lat,
		&route.OriginCoords.Lng,
		&route.DestinationAddress,
		&route.DestinationCoords.Lat,
		&route.DestinationCoords.Lng,
		&route.DistanceMeters,
		&route.NormalDurationSec,
		&currentDuration,
		&condition,
		&route.CreatedAt,
		&route.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if currentDuration.Valid {
		v := int(currentDuration.Int32)
		route.CurrentDurationSec = &v
	}
	if condition.Valid {
		c := domain.TrafficCondition(condition.String)
		route.TrafficCondition = &c
	}

	return route, nil
}

func (r *PostgresRouteRepository) List(ctx context.Context, opts *ListOptions) ([]*domain.Route, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRouteRepository.List")
	defer span.End()

	if opts == nil {
		opts = &ListOptions{}
	}
	opts.Normalize(1000)

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM routes`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count routes: %w", err)
	}

	query := `SELECT ` + routeColumns + `
		FROM routes
		ORDER BY created_at
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list routes: %w", err)
	}
	defer rows.Close()

	var routes []*domain.Route
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan route: %w", err)
		}
		routes = append(routes, route)
	}

	return routes, total, rows.Err()
}

func (r *PostgresRouteRepository) Update(ctx context.Context, route *domain.Route) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRouteRepository.Update",
		telemetry.WithAttributes(telemetry.RouteID(route.ID)))
	defer span.End()

	query := `
		UPDATE routes
		SET origin_address = $2, origin_lat = $3, origin_lng = $4,
			destination_address = $5, destination_lat = $6, destination_lng = $7,
			distance_meters = $8, normal_duration_seconds = $9,
			current_duration_seconds = $10, traffic_condition = $11,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	var currentDuration pgtype.Int4
	if route.CurrentDurationSec != nil {
		currentDuration = pgtype.Int4{Int32: int32(*route.CurrentDurationSec), Valid: true}
	}
	var condition pgtype.Text
	if route.TrafficCondition != nil {
		condition = pgtype.Text{String: string(*route.TrafficCondition), Valid: true}
	}

	err := r.db.QueryRow(ctx, query,
		route.ID,
		route.OriginAddress,
		route.OriginCoords.Lat,
		route.OriginCoords.Lng,
		route.DestinationAddress,
		route.DestinationCoords.Lat,
		route.DestinationCoords.Lng,
		route.DistanceMeters,
		route.NormalDurationSec,
		currentDuration,
		condition,
	).Scan(&route.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.ErrRouteNotFound
		}
		return fmt.Errorf("failed to update route: %w", err)
	}

	return nil
}

func (r *PostgresRouteRepository) UpdateTraffic(ctx context.Context, routeID string, distanceMeters, normalSec, currentSec int, condition domain.TrafficCondition) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRouteRepository.UpdateTraffic",
		telemetry.WithAttributes(telemetry.RouteID(routeID)))
	defer span.End()

	query := `
		UPDATE routes
		SET distance_meters = $2, normal_duration_seconds = $3,
			current_duration_seconds = $4, traffic_condition = $5,
			updated_at = now()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		routeID, distanceMeters, normalSec, currentSec, string(condition))
	if err != nil {
		return fmt.Errorf("failed to update route traffic: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.ErrRouteNotFound
	}

	return nil
}

func (r *PostgresRouteRepository) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRouteRepository.Delete")
	defer span.End()

	result, err := r.db.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete route: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.ErrRouteNotFound
	}

	return nil
}
