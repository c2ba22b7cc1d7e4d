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

// HistoryRepo — репозиторий истории обработки файлов.
//
// Инвариант уникальности (workflow_id, cache_key) обеспечивается
// на уровне БД; гонка одновременных вставок разрешается через
// ON CONFLICT DO NOTHING + повторное чтение, а не через ошибку
// уникальности, всплывающую к вызывающему.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

// NewHistoryRepo создаёт HistoryRepo.
func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

const historyColumns = `
	id, workflow_id, cache_key, file_name, status, result, metadata,
	error, reprocessing_interval_days, created_at, modified_at
`

// Get возвращает запись истории по паре (workflow_id, cache_key).
func (r *HistoryRepo) Get(ctx context.Context, workflowID uuid.UUID, cacheKey string) (*domain.FileHistory, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM file_execution_history
		WHERE workflow_id = $1 AND cache_key = $2
	`
	h, err := scanHistory(r.pool.QueryRow(ctx, query, workflowID, cacheKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return h, err
}

// Insert вставляет запись истории.
//
// created=false означает, что запись для (workflow_id, cache_key)
// уже существует: проигравший гонку вызов читает победителя через Get.
// Один дополнительный round trip, не retry-цикл.
func (r *HistoryRepo) Insert(ctx context.Context, h *domain.FileHistory) (created bool, err error) {
	query := `
		INSERT INTO file_execution_history
			(id, workflow_id, cache_key, file_name, status, result, metadata,
			 error, reprocessing_interval_days, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (workflow_id, cache_key) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		h.ID,
		h.WorkflowID,
		h.CacheKey,
		nullString(h.FileName),
		h.Status,
		nullString(h.Result),
		nullString(h.Metadata),
		nullString(h.Error),
		h.ReprocessingIntervalDays,
		h.CreatedAt,
		h.ModifiedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert file history: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Supersede перезаписывает истёкшую запись результатом новой обработки.
//
// Guard по истечению повторяет domain.FileHistory.ExpiredAt и выполняется
// атомарно в БД: действующую запись конкурирующее вытеснение не перепишет.
// created_at обновляется на время новой обработки — запись снова действует.
// Интервал переобработки не трогается: этой колонкой владеет SyncInterval.
// superseded=false — запись ещё действует или отсутствует.
func (r *HistoryRepo) Supersede(ctx context.Context, h *domain.FileHistory) (superseded bool, err error) {
	query := `
		UPDATE file_execution_history
		SET file_name = $3, status = $4, result = $5, metadata = $6,
		    error = $7, created_at = $8, modified_at = $9
		WHERE workflow_id = $1 AND cache_key = $2
		  AND reprocessing_interval_days IS NOT NULL
		  AND reprocessing_interval_days > 0
		  AND created_at + make_interval(days => reprocessing_interval_days) < $8
	`
	result, err := r.pool.Exec(ctx, query,
		h.WorkflowID,
		h.CacheKey,
		nullString(h.FileName),
		h.Status,
		nullString(h.Result),
		nullString(h.Metadata),
		nullString(h.Error),
		h.CreatedAt,
		h.ModifiedAt,
	)
	if err != nil {
		return false, fmt.Errorf("supersede file history: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// DeleteForWorkflow удаляет всю историю workflow (bulk).
// Возвращает количество удалённых записей.
func (r *HistoryRepo) DeleteForWorkflow(ctx context.Context, workflowID uuid.UUID) (int64, error) {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM file_execution_history WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return 0, fmt.Errorf("delete file history: %w", err)
	}
	return result.RowsAffected(), nil
}

// SyncInterval синхронизирует интервал переобработки на все записи workflow.
// Вызывается по change-notification при изменении настроек endpoint'а.
func (r *HistoryRepo) SyncInterval(ctx context.Context, workflowID uuid.UUID, intervalDays *int) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE file_execution_history
		SET reprocessing_interval_days = $2, modified_at = now()
		WHERE workflow_id = $1
	`, workflowID, intervalDays)
	if err != nil {
		return 0, fmt.Errorf("sync reprocessing interval: %w", err)
	}
	return result.RowsAffected(), nil
}

// scanHistory сканирует строку в FileHistory.
func scanHistory(row pgx.Row) (*domain.FileHistory, error) {
	var h domain.FileHistory
	var fileName, result, metadata, errText *string

	err := row.Scan(
		&h.ID,
		&h.WorkflowID,
		&h.CacheKey,
		&fileName,
		&h.Status,
		&result,
		&metadata,
		&errText,
		&h.ReprocessingIntervalDays,
		&h.CreatedAt,
		&h.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan file history: %w", err)
	}

	if fileName != nil {
		h.FileName = *fileName
	}
	if result != nil {
		h.Result = *result
	}
	if metadata != nil {
		h.Metadata = *metadata
	}
	if errText != nil {
		h.Error = *errText
	}

	return &h, nil
}
