package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Conveyor/internal/domain"
)

// RateLimitRepo — источник истины для лимитов одновременных запросов.
// Счётчик текущего использования живёт в кэше (internal/limiter),
// здесь только настроенные потолки.
type RateLimitRepo struct {
	pool *pgxpool.Pool
}

// NewRateLimitRepo создаёт RateLimitRepo.
func NewRateLimitRepo(pool *pgxpool.Pool) *RateLimitRepo {
	return &RateLimitRepo{pool: pool}
}

// Get возвращает конфигурацию лимита организации.
func (r *RateLimitRepo) Get(ctx context.Context, organizationID string) (*domain.RateLimitConfig, error) {
	var cfg domain.RateLimitConfig
	err := r.pool.QueryRow(ctx, `
		SELECT organization_id, concurrent_request_limit, modified_at
		FROM organization_rate_limits
		WHERE organization_id = $1
	`, organizationID).Scan(&cfg.OrganizationID, &cfg.ConcurrentLimit, &cfg.ModifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select rate limit: %w", err)
	}
	return &cfg, nil
}

// Upsert создаёт или обновляет лимит организации.
func (r *RateLimitRepo) Upsert(ctx context.Context, organizationID string, limit int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO organization_rate_limits (organization_id, concurrent_request_limit, modified_at)
		VALUES ($1, $2, now())
		ON CONFLICT (organization_id)
		DO UPDATE SET concurrent_request_limit = $2, modified_at = now()
	`, organizationID, limit)
	if err != nil {
		return fmt.Errorf("upsert rate limit: %w", err)
	}
	return nil
}
