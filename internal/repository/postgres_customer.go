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

// PostgresCustomerRepository PostgreSQL реализация
type PostgresCustomerRepository struct {
	db database.DB
}

// NewPostgresCustomerRepository создаёт новый репозиторий
func NewPostgresCustomerRepository(db database.DB) *PostgresCustomerRepository {
	return &PostgresCustomerRepository{db: db}
}

func (r *PostgresCustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresCustomerRepository.Create")
	defer span.End()

	query := `
		INSERT INTO customers (name, email, phone)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		customer.Name,
		customer.Email,
		nullableText(customer.Phone),
	).Scan(&customer.ID, &customer.CreatedAt, &customer.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}

	return nil
}

func (r *PostgresCustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresCustomerRepository.GetByID")
	defer span.End()

	query := `
		SELECT id, name, email, phone, created_at, updated_at
		FROM customers
		WHERE id = $1
	`
	return r.scanCustomer(r.db.QueryRow(ctx, query, id))
}

func (r *PostgresCustomerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresCustomerRepository.GetByEmail")
	defer span.End()

	query := `
		SELECT id, name, email, phone, created_at, updated_at
		FROM customers
		WHERE email = $1
	`
	return r.scanCustomer(r.db.QueryRow(ctx, query, email))
}

func (r *PostgresCustomerRepository) scanCustomer(row pgx.Row) (*domain.Customer, error) {
	customer := &domain.Customer{}
	var phone pgtype.Text

	err := row.Scan(
		&customer.ID,
		&customer.Name,
		&customer.Email,
		&phone,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	customer.Phone = phone.String
	return customer, nil
}

func (r *PostgresCustomerRepository) List(ctx context.Context, opts *ListOptions) ([]*domain.Customer, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresCustomerRepository.List")
	defer span.End()

	if opts == nil {
		opts = &ListOptions{}
	}
	opts.Normalize(100)

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM customers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	query := `
		SELECT id, name, email, phone, created_at, updated_at
		FROM customers
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []*domain.Customer
	for rows.Next() {
		customer := &domain.Customer{}
		var phone pgtype.Text

		if err := rows.Scan(
			&customer.ID,
			&customer.Name,
			&customer.Email,
			&phone,
			&customer.CreatedAt,
			&customer.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan customer: %w", err)
		}

		customer.Phone = phone.String
		customers = append(customers, customer)
	}

	return customers, total, rows.Err()
}

func (r *PostgresCustomerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresCustomerRepository.Update")
	defer span.End()

	query := `
		UPDATE customers
		SET name = $2, email = $3, phone = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		customer.ID,
		customer.Name,
		customer.Email,
		nullableText(customer.Phone),
	).Scan(&customer.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.ErrCustomerNotFound
		}
		return fmt.Errorf("failed to update customer: %w", err)
	}

	return nil
}

func (r *PostgresCustomerRepository) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresCustomerRepository.Delete")
	defer span.End()

	result, err := r.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.ErrCustomerNotFound
	}

	return nil
}

// nullableText конвертирует пустую строку в NULL
func nullableText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
