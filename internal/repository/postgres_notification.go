package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"freightwatch/internal/domain"
	"freightwatch/pkg/database"
	"freightwatch/pkg/telemetry"
)

// PostgresNotificationRepository PostgreSQL реализация append-only журнала
type PostgresNotificationRepository struct {
	db database.DB
}

// NewPostgresNotificationRepository создаёт новый репозиторий
func NewPostgresNotificationRepository(db database.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

const notificationColumns = `
	id, delivery_id, channel, recipient, subject, message, status,
	external_id, sent_at, delay_minutes_at_send, error_message, created_at
`

func (r *PostgresNotificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresNotificationRepository.Create",
		telemetry.WithAttributes(
			telemetry.DeliveryID(notification.DeliveryID),
			telemetry.Channel(string(notification.Channel)),
		))
	defer span.End()

	var sentAt pgtype.Timestamptz
	if notification.SentAt != nil {
		sentAt = pgtype.Timestamptz{Time: *notification.SentAt, Valid: true}
	}

	query := `
		INSERT INTO notifications (
			delivery_id, channel, recipient, subject, message, status,
			external_id, sent_at, delay_minutes_at_send, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		notification.DeliveryID,
		string(notification.Channel),
		notification.Recipient,
		notification.Subject,
		notification.Message,
		string(notification.Status),
		nullableText(notification.ExternalID),
		sentAt,
		notification.DelayMinutesAtSend,
		nullableText(notification.ErrorMessage),
	).Scan(&notification.ID, &notification.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	notification := &domain.Notification{}
	var (
		channel, status        string
		externalID, errMessage pgtype.Text
		sentAt                 pgtype.Timestamptz
	)

	err := row.Scan(
		&notification.ID,
		&notification.DeliveryID,
		&channel,
		&notification.Recipient,
		&notification.Subject,
		&notification.Message,
		&status,
		&externalID,
		&sentAt,
		&notification.DelayMinutesAtSend,
		&errMessage,
		&notification.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	notification.Channel = domain.Channel(channel)
	notification.Status = domain.NotificationStatus(status)
	notification.ExternalID = externalID.String
	notification.ErrorMessage = errMessage.String
	if sentAt.Valid {
		notification.SentAt = &sentAt.Time
	}

	return notification, nil
}

func (r *PostgresNotificationRepository) ListByDelivery(ctx context.Context, deliveryID string, opts *ListOptions) ([]*domain.Notification, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresNotificationRepository.ListByDelivery",
		telemetry.WithAttributes(telemetry.DeliveryID(deliveryID)))
	defer span.End()

	if opts == nil {
		opts = &ListOptions{}
	}
	opts.Normalize(200)

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE delivery_id = $1`, deliveryID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE delivery_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, deliveryID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, notification)
	}

	return notifications, total, rows.Err()
}

// LatestSentByDelivery возвращает последнюю успешную отправку для
// dedup фильтров; nil без ошибки, если отправок ещё не было.
func (r *PostgresNotificationRepository) LatestSentByDelivery(ctx context.Context, deliveryID string) (*domain.Notification, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresNotificationRepository.LatestSentByDelivery",
		telemetry.WithAttributes(telemetry.DeliveryID(deliveryID)))
	defer span.End()

	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE delivery_id = $1 AND status = 'sent'
		ORDER BY sent_at DESC
		LIMIT 1
	`

	notification, err := scanNotification(r.db.QueryRow(ctx, query, deliveryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest notification: %w", err)
	}
	return notification, nil
}
