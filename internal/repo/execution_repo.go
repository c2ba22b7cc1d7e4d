package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Conveyor/internal/domain"
)

// ExecutionRepo — репозиторий для работы с executions (run records).
// Записи никогда не удаляются — только создаются и обновляются.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

const executionColumns = `
	id, pipeline_id, workflow_id, organization_id, status,
	execution_mode, execution_method, attempts, total_files, processed_files,
	error_message, started_at, finished_at, created_at, modified_at
`

// Create создаёт новый execution record.
func (r *ExecutionRepo) Create(ctx context.Context, e *domain.Execution) error {
	query := `
		INSERT INTO executions (id, pipeline_id, workflow_id, organization_id, status,
		                        execution_mode, execution_method, attempts, total_files,
		                        processed_files, error_message, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		e.ID,
		nullUUID(e.PipelineID),
		e.WorkflowID,
		e.OrganizationID,
		e.Status,
		e.Mode,
		e.Method,
		e.Attempts,
		e.TotalFiles,
		e.ProcessedFiles,
		nullString(e.ErrorMessage),
		e.CreatedAt,
		e.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// GetByID возвращает execution по ID.
func (r *ExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`
	return scanExecution(r.pool.QueryRow(ctx, query, id))
}

// Update обновляет изменяемые поля execution.
func (r *ExecutionRepo) Update(ctx context.Context, e *domain.Execution) error {
	query := `
		UPDATE executions
		SET status = $2, attempts = $3, total_files = $4, processed_files = $5,
		    error_message = $6, started_at = $7, finished_at = $8, modified_at = now()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		e.ID,
		e.Status,
		e.Attempts,
		e.TotalFiles,
		e.ProcessedFiles,
		nullString(e.ErrorMessage),
		e.StartedAt,
		e.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus переводит execution в новый статус, если текущий не финальный.
// Запись в финальный статус — no-op (updated=false), не ошибка:
// результаты задач, пришедшие после остановки run, отбрасываются.
func (r *ExecutionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus) (bool, error) {
	query := `
		UPDATE executions
		SET status = $2, modified_at = now()
		WHERE id = $1
		  AND status NOT IN ('COMPLETED', 'ERROR', 'STOPPED')
	`
	result, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return false, fmt.Errorf("update execution status: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListUnfinished возвращает executions в нефинальных статусах
// (для polling fallback оркестратора).
func (r *ExecutionRepo) ListUnfinished(ctx context.Context, limit int) ([]domain.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE status NOT IN ('COMPLETED', 'ERROR', 'STOPPED')
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unfinished executions: %w", err)
	}
	defer rows.Close()

	var executions []domain.Execution
	for rows.Next() {
		e, err := scanExecutionRow(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *e)
	}
	return executions, rows.Err()
}

// ListRecent возвращает последние executions по времени создания.
func (r *ExecutionRepo) ListRecent(ctx context.Context, limit int) ([]domain.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent executions: %w", err)
	}
	defer rows.Close()

	var executions []domain.Execution
	for rows.Next() {
		e, err := scanExecutionRow(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *e)
	}
	return executions, rows.Err()
}

// --- Helpers ---

func scanExecution(row pgx.Row) (*domain.Execution, error) {
	e, err := scanExecutionRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func scanExecutionRow(row pgx.Row) (*domain.Execution, error) {
	var e domain.Execution
	var pipelineID *uuid.UUID
	var errMsg *string

	err := row.Scan(
		&e.ID,
		&pipelineID,
		&e.WorkflowID,
		&e.OrganizationID,
		&e.Status,
		&e.Mode,
		&e.Method,
		&e.Attempts,
		&e.TotalFiles,
		&e.ProcessedFiles,
		&errMsg,
		&e.StartedAt,
		&e.FinishedAt,
		&e.CreatedAt,
		&e.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	e.PipelineID = pipelineID
	if errMsg != nil {
		e.ErrorMessage = *errMsg
	}

	return &e, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
