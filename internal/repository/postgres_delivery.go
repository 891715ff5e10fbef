package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"freightwatch/internal/domain"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/database"
	"freightwatch/pkg/telemetry"
)

// PostgresDeliveryRepository PostgreSQL реализация
type PostgresDeliveryRepository struct {
	db database.DB
}

// NewPostgresDeliveryRepository создаёт новый репозиторий
func NewPostgresDeliveryRepository(db database.DB) *PostgresDeliveryRepository {
	return &PostgresDeliveryRepository{db: db}
}

const deliveryColumns = `
	id, tracking_number, customer_id, route_id, status,
	scheduled_delivery, actual_delivery, delay_threshold_minutes,
	auto_check_traffic, enable_recurring_checks, check_interval_minutes,
	max_checks, checks_performed, min_delay_change_threshold,
	min_hours_between_notifications, metadata, created_at, updated_at
`

func (r *PostgresDeliveryRepository) Create(ctx context.Context, delivery *domain.Delivery) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresDeliveryRepository.Create",
		telemetry.WithAttributes(telemetry.TrackingNumber(delivery.TrackingNumber)))
	defer span.End()

	metadata, err := json.Marshal(delivery.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO deliveries (
			tracking_number, customer_id, route_id, status,
			scheduled_delivery, delay_threshold_minutes,
			auto_check_traffic, enable_recurring_checks, check_interval_minutes,
			max_checks, checks_performed, min_delay_change_threshold,
			min_hours_between_notifications, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		delivery.TrackingNumber,
		delivery.CustomerID,
		delivery.RouteID,
		string(delivery.Status),
		delivery.ScheduledDelivery,
		delivery.DelayThresholdMinutes,
		delivery.AutoCheckTraffic,
		delivery.EnableRecurringChecks,
		delivery.CheckIntervalMinutes,
		delivery.MaxChecks,
		delivery.ChecksPerformed,
		delivery.MinDelayChangeThreshold,
		delivery.MinHoursBetweenNotifications,
		metadata,
	).Scan(&delivery.ID, &delivery.CreatedAt, &delivery.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create delivery: %w", err)
	}

	return nil
}

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	delivery := &domain.Delivery{}
	var (
		status         string
		actualDelivery pgtype.Timestamptz
		metadata       []byte
	)

	err := row.Scan(
		&delivery.ID,
		&delivery.TrackingNumber,
		&delivery.CustomerID,
		&delivery.RouteID,
		&status,
		&delivery.ScheduledDelivery,
		&actualDelivery,
		&delivery.DelayThresholdMinutes,
		&delivery.AutoCheckTraffic,
		&delivery.EnableRecurringChecks,
		&delivery.CheckIntervalMinutes,
		&delivery.MaxChecks,
		&delivery.ChecksPerformed,
		&delivery.MinDelayChangeThreshold,
		&delivery.MinHoursBetweenNotifications,
		&metadata,
		&delivery.CreatedAt,
		&delivery.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	delivery.Status = domain.DeliveryStatus(status)
	if actualDelivery.Valid {
		delivery.ActualDelivery = &actualDelivery.Time
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &delivery.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return delivery, nil
}

func (r *PostgresDeliveryRepository) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresDeliveryRepository.GetByID",
		telemetry.WithAttributes(telemetry.DeliveryID(id)))
	defer span.End()

	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`

	delivery, err := scanDelivery(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}
	return delivery, nil
}

func (r *PostgresDeliveryRepository) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Delivery, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresDeliveryRepository.GetByTrackingNumber",
		telemetry.WithAttributes(telemetry.TrackingNumber(trackingNumber)))
	defer span.End()

	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE tracking_number = $1`

	delivery, err := scanDelivery(r.db.QueryRow(ctx, query, trackingNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}
	return delivery, nil
}

func (r *PostgresDeliveryRepository) List(ctx context.Context, opts *ListOptions) ([]*domain.Delivery, int64, error) {
	return r.list(ctx, "", opts)
}

func (r *PostgresDeliveryRepository) ListByStatus(ctx context.Context, status domain.DeliveryStatus, opts *ListOptions) ([]*domain.Delivery, int64, error) {
	return r.list(ctx, status, opts)
}

func (r *PostgresDeliveryRepository) list(ctx context.Context, status domain.DeliveryStatus, opts *ListOptions) ([]*domain.Delivery, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresDeliveryRepository.List")
	defer span.End()

	if opts == nil {
		opts = &ListOptions{}
	}
	opts.Normalize(100)

	where := ""
	countArgs := []any{}
	listArgs := []any{opts.Limit, opts.Offset}
	if status != "" {
		where = " WHERE status = $1"
		countArgs = append(countArgs, string(status))
		listArgs = []any{string(status), opts.Limit, opts.Offset}
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM deliveries`+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count deliveries: %w", err)
	}

	query := `SELECT ` + deliveryColumns + ` FROM deliveries` + where + ` ORDER BY created_at DESC`
	if status != "" {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}

	rows, err := r.db.Query(ctx, query, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*domain.Delivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, delivery)
	}

	return deliveries, total, rows.Err()
}

func (r *PostgresDeliveryRepository) Update(ctx context.Context, delivery *domain.Delivery) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresDeliveryRepository.Update",
		telemetry.WithAttributes(telemetry.DeliveryID(delivery.ID)))
	defer span.End()

	metadata, err := json.Marshal(delivery.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var actualDelivery pgtype.Timestamptz
	if delivery.ActualDelivery != nil {
		actualDelivery = pgtype.Timestamptz{Time: *delivery.ActualDelivery, Valid: true}
	}

	query := `
		UPDATE deliveries
		SET tracking_number = $2, status = $3, scheduled_delivery = $4,
			actual_delivery = $5, delay_threshold_minutes = $6,
			auto_check_traffic = $7, enable_recurring_checks = $8,
			check_interval_minutes = $9, max_checks = $10,
			min_delay_change_threshold = $11, min_hours_between_notifications = $12,
			metadata = $13, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.db.QueryRow(ctx, query,
		delivery.ID,
		delivery.TrackingNumber,
		string(delivery.Status),
		delivery.ScheduledDelivery,
		actualDelivery,
		delivery.DelayThresholdMinutes,
		delivery.AutoCheckTraffic,
		delivery.EnableRecurringChecks,
		delivery.CheckIntervalMinutes,
		delivery.MaxChecks,
		delivery.MinDelayChangeThreshold,
		delivery.MinHoursBetweenNotifications,
		metadata,
	).Scan(&delivery.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.ErrDeliveryNotFound
		}
		return fmt.Errorf("failed to update delivery: %w", err)
	}

	return nil
}

// UpdateStatus условный переход статуса. Строка обновляется только при
// совпадении текущего статуса, что атомарно защищает машину состояний
// от гонок между workflow и внешними правками.
func (r *PostgresDeliveryRepository) UpdateStatus(ctx context.Context, id string, from, to domain.DeliveryStatus) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresDeliveryRepository.UpdateStatus",
		telemetry.WithAttributes(telemetry.DeliveryID(id)))
	defer span.End()

	if !domain.CanTransition(from, to) {
		return apperror.Newf(apperror.CodeInvalidTransition,
			"cannot transition delivery from %s to %s", from, to).
			WithDetails("delivery_id", id)
	}

	query := `
		UPDATE deliveries
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("failed to update delivery status: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Либо доставки нет, либо статус успел измениться
		current, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		return apperror.Newf(apperror.CodeInvalidTransition,
			"delivery status changed concurrently: expected %s, found %s", from, current.Status).
			WithDetails("delivery_id", id)
	}

	return nil
}

// IncrementChecks атомарно увеличивает счётчик проверок
func (r *PostgresDeliveryRepository) IncrementChecks(ctx context.Context, id string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresDeliveryRepository.IncrementChecks",
		telemetry.WithAttributes(telemetry.DeliveryID(id)))
	defer span.End()

	query := `
		UPDATE deliveries
		SET checks_performed = checks_performed + 1, updated_at = now()
		WHERE id = $1
		RETURNING checks_performed
	`

	var checks int
	err := r.db.QueryRow(ctx, query, id).Scan(&checks)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperror.ErrDeliveryNotFound
		}
		return 0, fmt.Errorf("failed to increment checks: %w", err)
	}

	return checks, nil
}

func (r *PostgresDeliveryRepository) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresDeliveryRepository.Delete")
	defer span.End()

	result, err := r.db.Exec(ctx, `DELETE FROM deliveries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete delivery: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.ErrDeliveryNotFound
	}

	return nil
}
