package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"freightwatch/internal/domain"
	"freightwatch/pkg/apperror"
	"freightwatch/pkg/database"
	"freightwatch/pkg/telemetry"
)

// PostgresExecutionRepository PostgreSQL реализация
type PostgresExecutionRepository struct {
	db database.DB
}

// NewPostgresExecutionRepository создаёт новый репозиторий
func NewPostgresExecutionRepository(db database.DB) *PostgresExecutionRepository {
	return &PostgresExecutionRepository{db: db}
}

const executionColumns = `
	id, workflow_id, run_id, delivery_id, kind, status, steps,
	started_at, completed_at, error
`

func (r *PostgresExecutionRepository) Create(ctx context.Context, execution *domain.WorkflowExecution) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresExecutionRepository.Create",
		telemetry.WithAttributes(
			telemetry.WorkflowID(execution.WorkflowID),
			telemetry.RunID(execution.RunID),
		))
	defer span.End()

	steps, err := json.Marshal(execution.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	query := `
		INSERT INTO workflow_executions (
			workflow_id, run_id, delivery_id, kind, status, steps, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err = r.db.QueryRow(ctx, query,
		execution.WorkflowID,
		execution.RunID,
		execution.DeliveryID,
		string(execution.Kind),
		string(execution.Status),
		steps,
		execution.StartedAt,
	).Scan(&execution.ID)

	if err != nil {
		return fmt.Errorf("failed to create workflow execution: %w", err)
	}

	return nil
}

func scanExecution(row pgx.Row) (*domain.WorkflowExecution, error) {
	execution := &domain.WorkflowExecution{}
	var (
		kind, status string
		steps        []byte
		completedAt  pgtype.Timestamptz
		errMessage   pgtype.Text
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.RunID,
		&execution.DeliveryID,
		&kind,
		&status,
		&steps,
		&execution.StartedAt,
		&completedAt,
		&errMessage,
	)
	if err != nil {
		return nil, err
	}

	execution.Kind = domain.WorkflowKind(kind)
	execution.Status = domain.ExecutionStatus(status)
	execution.Error = errMessage.String
	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &execution.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
		}
	}

	return execution, nil
}

// GetByWorkflowID возвращает последний запуск для workflow id
func (r *PostgresExecutionRepository) GetByWorkflowID(ctx context.Context, workflowID string) (*domain.WorkflowExecution, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresExecutionRepository.GetByWorkflowID",
		telemetry.WithAttributes(telemetry.WorkflowID(workflowID)))
	defer span.End()

	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE workflow_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`

	execution, err := scanExecution(r.db.QueryRow(ctx, query, workflowID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to get workflow execution: %w", err)
	}
	return execution, nil
}

func (r *PostgresExecutionRepository) GetByWorkflowAndRun(ctx context.Context, workflowID, runID string) (*domain.WorkflowExecution, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresExecutionRepository.GetByWorkflowAndRun",
		telemetry.WithAttributes(telemetry.WorkflowID(workflowID), telemetry.RunID(runID)))
	defer span.End()

	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE workflow_id = $1 AND run_id = $2
	`

	execution, err := scanExecution(r.db.QueryRow(ctx, query, workflowID, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to get workflow execution: %w", err)
	}
	return execution, nil
}

func (r *PostgresExecutionRepository) ListRunning(ctx context.Context) ([]*domain.WorkflowExecution, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresExecutionRepository.ListRunning")
	defer span.End()

	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE status = 'running'
		ORDER BY started_at
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list running executions: %w", err)
	}
	defer rows.Close()

	var executions []*domain.WorkflowExecution
	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, execution)
	}

	return executions, rows.Err()
}

func (r *PostgresExecutionRepository) ListByDelivery(ctx context.Context, deliveryID string, opts *ListOptions) ([]*domain.WorkflowExecution, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresExecutionRepository.ListByDelivery",
		telemetry.WithAttributes(telemetry.DeliveryID(deliveryID)))
	defer span.End()

	if opts == nil {
		opts = &ListOptions{}
	}
	opts.Normalize(100)

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM workflow_executions WHERE delivery_id = $1`, deliveryID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count executions: %w", err)
	}

	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE delivery_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, deliveryID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var executions []*domain.WorkflowExecution
	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, execution)
	}

	return executions, total, rows.Err()
}

func (r *PostgresExecutionRepository) UpdateStatus(ctx context.Context, workflowID, runID string, status domain.ExecutionStatus, completedAt *time.Time, errMsg string) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresExecutionRepository.UpdateStatus",
		telemetry.WithAttributes(telemetry.WorkflowID(workflowID), telemetry.RunID(runID)))
	defer span.End()

	var completed pgtype.Timestamptz
	if completedAt != nil {
		completed = pgtype.Timestamptz{Time: *completedAt, Valid: true}
	}

	query := `
		UPDATE workflow_executions
		SET status = $3, completed_at = $4, error = $5
		WHERE workflow_id = $1 AND run_id = $2
	`

	result, err := r.db.Exec(ctx, query,
		workflowID, runID, string(status), completed, nullableText(errMsg))
	if err != nil {
		return fmt.Errorf("failed to update execution status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.ErrWorkflowNotFound
	}

	return nil
}

func (r *PostgresExecutionRepository) UpdateSteps(ctx context.Context, workflowID, runID string, steps domain.ExecutionSteps) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresExecutionRepository.UpdateSteps",
		telemetry.WithAttributes(telemetry.WorkflowID(workflowID), telemetry.RunID(runID)))
	defer span.End()

	payload, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	query := `
		UPDATE workflow_executions
		SET steps = $3
		WHERE workflow_id = $1 AND run_id = $2
	`

	result, err := r.db.Exec(ctx, query, workflowID, runID, payload)
	if err != nil {
		return fmt.Errorf("failed to update execution steps: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.ErrWorkflowNotFound
	}

	return nil
}
