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

// PostgresSnapshotRepository PostgreSQL реализация append-only журнала
type PostgresSnapshotRepository struct {
	db database.DB
}

// NewPostgresSnapshotRepository создаёт новый репозиторий
func NewPostgresSnapshotRepository(db database.DB) *PostgresSnapshotRepository {
	return &PostgresSnapshotRepository{db: db}
}

const snapshotColumns = `
	id, route_id, traffic_condition, delay_minutes, duration_seconds,
	severity, incident_type, description, affected_area,
	incident_lat, incident_lng, snapshot_at
`

func (r *PostgresSnapshotRepository) Create(ctx context.Context, snapshot *domain.TrafficSnapshot) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresSnapshotRepository.Create",
		telemetry.WithAttributes(telemetry.RouteID(snapshot.RouteID)))
	defer span.End()

	var lat, lng pgtype.Float8
	if snapshot.IncidentLocation != nil {
		lat = pgtype.Float8{Float64: snapshot.IncidentLocation.Lat, Valid: true}
		lng = pgtype.Float8{Float64: snapshot.IncidentLocation.Lng, Valid: true}
	}

	query := `
		INSERT INTO traffic_snapshots (
			route_id, traffic_condition, delay_minutes, duration_seconds,
			severity, incident_type, description, affected_area,
			incident_lat, incident_lng, snapshot_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		snapshot.RouteID,
		string(snapshot.TrafficCondition),
		snapshot.DelayMinutes,
		snapshot.DurationSec,
		string(snapshot.Severity),
		string(snapshot.IncidentType),
		snapshot.Description,
		snapshot.AffectedArea,
		lat,
		lng,
		snapshot.SnapshotAt,
	).Scan(&snapshot.ID)

	if err != nil {
		return fmt.Errorf("failed to create traffic snapshot: %w", err)
	}

	return nil
}

func scanSnapshot(row pgx.Row) (*domain.TrafficSnapshot, error) {
	snapshot := &domain.TrafficSnapshot{}
	var (
		condition, severity, incidentType string
		lat, lng                          pgtype.Float8
	)

	err := row.Scan(
		&snapshot.ID,
		&snapshot.RouteID,
		&condition,
		&snapshot.DelayMinutes,
		&snapshot.DurationSec,
		&severity,
		&incidentType,
		&snapshot.Description,
		&snapshot.AffectedArea,
		&lat,
		&lng,
		&snapshot.SnapshotAt,
	)
	if err != nil {
		return nil, err
	}

	snapshot.TrafficCondition = domain.TrafficCondition(condition)
	snapshot.Severity = domain.Severity(severity)
	snapshot.IncidentType = domain.IncidentType(incidentType)
	if lat.Valid && lng.Valid {
		snapshot.IncidentLocation = &domain.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}

	return snapshot, nil
}

func (r *PostgresSnapshotRepository) ListByRoute(ctx context.Context, routeID string, opts *ListOptions) ([]*domain.TrafficSnapshot, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresSnapshotRepository.ListByRoute",
		telemetry.WithAttributes(telemetry.RouteID(routeID)))
	defer span.End()

	if opts == nil {
		opts = &ListOptions{}
	}
	opts.Normalize(500)

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM traffic_snapshots WHERE route_id = $1`, routeID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count snapshots: %w", err)
	}

	query := `SELECT ` + snapshotColumns + `
		FROM traffic_snapshots
		WHERE route_id = $1
		ORDER BY snapshot_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, routeID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.TrafficSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}

	return snapshots, total, rows.Err()
}

func (r *PostgresSnapshotRepository) LatestByRoute(ctx context.Context, routeID string) (*domain.TrafficSnapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresSnapshotRepository.LatestByRoute",
		telemetry.WithAttributes(telemetry.RouteID(routeID)))
	defer span.End()

	query := `SELECT ` + snapshotColumns + `
		FROM traffic_snapshots
		WHERE route_id = $1
		ORDER BY snapshot_at DESC
		LIMIT 1
	`

	snapshot, err := scanSnapshot(r.db.QueryRow(ctx, query, routeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.New(apperror.CodeNotFound, "no snapshots for route")
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return snapshot, nil
}
