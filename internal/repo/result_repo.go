package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Conveyor/internal/domain"
)

// ResultRepo — result backend: durable хранилище сериализованных
// ExecutionResult, адресуемое request id.
//
// Протокол single-consumer: результат пишется воркером ровно один раз
// и читается исходным отправителем. TTL/retention — внешняя забота.
type ResultRepo struct {
	pool *pgxpool.Pool
}

// NewResultRepo создаёт ResultRepo.
func NewResultRepo(pool *pgxpool.Pool) *ResultRepo {
	return &ResultRepo{pool: pool}
}

// Save записывает результат. Повторная запись того же request id
// игнорируется: результат производится ровно один раз на ExecutionContext,
// дубликат возможен только при повторной доставке из очереди.
func (r *ResultRepo) Save(ctx context.Context, requestID string, result *domain.ExecutionResult) error {
	if err := result.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO execution_results (request_id, body, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (request_id) DO NOTHING
	`, requestID, body)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// Get читает результат по request id.
// found=false — результата ещё нет; это не ошибка (mq.ResultStore contract).
func (r *ResultRepo) Get(ctx context.Context, requestID string) (*domain.ExecutionResult, bool, error) {
	var body []byte
	err := r.pool.QueryRow(ctx,
		`SELECT body FROM execution_results WHERE request_id = $1`, requestID).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select result: %w", err)
	}

	var result domain.ExecutionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, false, fmt.Errorf("unmarshal result: %w", err)
	}
	return &result, true, nil
}
