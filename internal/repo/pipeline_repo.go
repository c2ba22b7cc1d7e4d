package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Conveyor/internal/domain"
)

// PipelineRepo — репозиторий для работы с pipelines.
type PipelineRepo struct {
	pool *pgxpool.Pool
}

// NewPipelineRepo создаёт PipelineRepo.
func NewPipelineRepo(pool *pgxpool.Pool) *PipelineRepo {
	return &PipelineRepo{pool: pool}
}

const pipelineColumns = `
	id, workflow_id, organization_id, name, cron_expr, enabled, next_due_at,
	last_run_time, last_run_status, run_count, error_message, created_at
`

// Create создаёт pipeline.
func (r *PipelineRepo) Create(ctx context.Context, p *domain.Pipeline) error {
	query := `
		INSERT INTO pipelines (id, workflow_id, organization_id, name, cron_expr,
		                       enabled, next_due_at, run_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.WorkflowID,
		p.OrganizationID,
		p.Name,
		nullString(p.CronExpr),
		p.Enabled,
		p.NextDueAt,
		p.RunCount,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline: %w", err)
	}
	return nil
}

// GetByID возвращает pipeline по ID.
func (r *PipelineRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Pipeline, error) {
	query := `SELECT ` + pipelineColumns + ` FROM pipelines WHERE id = $1`
	p, err := scanPipeline(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// UpdateLastRun записывает итог завершённого run на pipeline:
// статус, ошибку, время и инкремент счётчика запусков.
// Возвращает ErrNotFound, если pipeline не существует —
// ожидаемая ситуация для runs без владельца.
func (r *PipelineRepo) UpdateLastRun(ctx context.Context, id uuid.UUID, status domain.PipelineRunStatus, errMsg string) error {
	query := `
		UPDATE pipelines
		SET last_run_status = $2,
		    last_run_time = now(),
		    run_count = run_count + 1,
		    error_message = $3
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, status, nullString(errMsg))
	if err != nil {
		return fmt.Errorf("update pipeline last run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDue возвращает включённые pipelines с наступившим расписанием.
func (r *PipelineRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Pipeline, error) {
	query := `
		SELECT ` + pipelineColumns + `
		FROM pipelines
		WHERE enabled = true
		  AND cron_expr IS NOT NULL
		  AND next_due_at IS NOT NULL
		  AND next_due_at <= $1
		ORDER BY next_due_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []domain.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, *p)
	}
	return pipelines, rows.Err()
}

// UpdateNextDue обновляет время следующего запуска по расписанию.
func (r *PipelineRepo) UpdateNextDue(ctx context.Context, id uuid.UUID, nextDue time.Time) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE pipelines SET next_due_at = $2 WHERE id = $1`, id, nextDue)
	if err != nil {
		return fmt.Errorf("update pipeline next due: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanPipeline сканирует строку в Pipeline.
func scanPipeline(row pgx.Row) (*domain.Pipeline, error) {
	var p domain.Pipeline
	var cronExpr *string
	var lastRunStatus *string
	var errMsg *string

	err := row.Scan(
		&p.ID,
		&p.WorkflowID,
		&p.OrganizationID,
		&p.Name,
		&cronExpr,
		&p.Enabled,
		&p.NextDueAt,
		&p.LastRunTime,
		&lastRunStatus,
		&p.RunCount,
		&errMsg,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan pipeline: %w", err)
	}

	if cronExpr != nil {
		p.CronExpr = *cronExpr
	}
	if lastRunStatus != nil {
		p.LastRunStatus = domain.PipelineRunStatus(*lastRunStatus)
	}
	if errMsg != nil {
		p.ErrorMessage = *errMsg
	}

	return &p, nil
}
