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

// PostgresThresholdRepository PostgreSQL реализация
type PostgresThresholdRepository struct {
	db database.DB
}

// NewPostgresThresholdRepository создаёт новый репозиторий
func NewPostgresThresholdRepository(db database.DB) *PostgresThresholdRepository {
	return &PostgresThresholdRepository{db: db}
}

const thresholdColumns = `
	id, name, delay_minutes, notification_channels,
	is_default, is_system, created_at, updated_at
`

func (r *PostgresThresholdRepository) Create(ctx context.Context, threshold *domain.Threshold) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresThresholdRepository.Create")
	defer span.End()

	if err := threshold.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO thresholds (name, delay_minutes, notification_channels, is_default, is_system)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		threshold.Name,
		threshold.DelayMinutes,
		channelsToStrings(threshold.NotificationChannels),
		threshold.IsDefault,
		threshold.IsSystem,
	).Scan(&threshold.ID, &threshold.CreatedAt, &threshold.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create threshold: %w", err)
	}

	return nil
}

func scanThreshold(row pgx.Row) (*domain.Threshold, error) {
	threshold := &domain.Threshold{}
	var channels pgtype.Array[string]

	err := row.Scan(
		&threshold.ID,
		&threshold.Name,
		&threshold.DelayMinutes,
		&channels,
		&threshold.IsDefault,
		&threshold.IsSystem,
		&threshold.CreatedAt,
		&threshold.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	threshold.NotificationChannels = stringsToChannels(channels.Elements)
	return threshold, nil
}

func (r *PostgresThresholdRepository) GetByID(ctx context.Context, id string) (*domain.Threshold, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresThresholdRepository.GetByID")
	defer span.End()

	query := `SELECT ` + thresholdColumns + ` FROM thresholds WHERE id = $1`

	threshold, err := scanThreshold(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.ErrThresholdNotFound
		}
		return nil, fmt.Errorf("failed to get threshold: %w", err)
	}
	return threshold, nil
}

func (r *PostgresThresholdRepository) List(ctx context.Context) ([]*domain.Threshold, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresThresholdRepository.List")
	defer span.End()

	query := `SELECT ` + thresholdColumns + ` FROM thresholds ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list thresholds: %w", err)
	}
	defer rows.Close()

	var thresholds []*domain.Threshold
	for rows.Next() {
		threshold, err := scanThreshold(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan threshold: %w", err)
		}
		thresholds = append(thresholds, threshold)
	}

	return thresholds, rows.Err()
}

func (r *PostgresThresholdRepository) GetDefault(ctx context.Context) (*domain.Threshold, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresThresholdRepository.GetDefault")
	defer span.End()

	query := `SELECT ` + thresholdColumns + ` FROM thresholds WHERE is_default = true`

	threshold, err := scanThreshold(r.db.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.ErrThresholdNotFound
		}
		return nil, fmt.Errorf("failed to get default threshold: %w", err)
	}
	return threshold, nil
}

// SetDefault атомарно переназначает порог по умолчанию: в одной
// транзакции снимает флаг со старого и выставляет на новый.
func (r *PostgresThresholdRepository) SetDefault(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresThresholdRepository.SetDefault")
	defer span.End()

	return database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE thresholds SET is_default = false, updated_at = now() WHERE is_default = true`); err != nil {
			return fmt.Errorf("failed to clear default threshold: %w", err)
		}

		result, err := tx.Exec(ctx, `UPDATE thresholds SET is_default = true, updated_at = now() WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to set default threshold: %w", err)
		}
		if result.RowsAffected() == 0 {
			return apperror.ErrThresholdNotFound
		}
		return nil
	})
}

func (r *PostgresThresholdRepository) Update(ctx context.Context, threshold *domain.Threshold) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresThresholdRepository.Update")
	defer span.End()

	if err := threshold.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE thresholds
		SET name = $2, delay_minutes = $3, notification_channels = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		threshold.ID,
		threshold.Name,
		threshold.DelayMinutes,
		channelsToStrings(threshold.NotificationChannels),
	).Scan(&threshold.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.ErrThresholdNotFound
		}
		return fmt.Errorf("failed to update threshold: %w", err)
	}

	return nil
}

// Delete отклоняет удаление порога по умолчанию и системных порогов
func (r *PostgresThresholdRepository) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresThresholdRepository.Delete")
	defer span.End()

	threshold, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if threshold.IsDefault {
		return apperror.New(apperror.CodeDefaultThreshold, "cannot delete the default threshold")
	}
	if threshold.IsSystem {
		return apperror.New(apperror.CodeSystemThreshold, "cannot delete a system threshold")
	}

	result, err := r.db.Exec(ctx, `DELETE FROM thresholds WHERE id = $1 AND is_default = false AND is_system = false`, id)
	if err != nil {
		return fmt.Errorf("failed to delete threshold: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.ErrThresholdNotFound
	}

	return nil
}

func channelsToStrings(channels []domain.Channel) []string {
	result := make([]string, len(channels))
	for i, ch := range channels {
		result[i] = string(ch)
	}
	return result
}

func stringsToChannels(values []string) []domain.Channel {
	result := make([]domain.Channel, len(values))
	for i, v := range values {
		result[i] = domain.Channel(v)
	}
	return result
}
