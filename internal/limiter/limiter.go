package limiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/repo"
)

// TTL кэша лимита: после него лимит перечитывается из источника истины.
const limitCacheTTL = 5 * time.Minute

// ConfigStore — источник истины настроенных лимитов.
// Реализация: repo.RateLimitRepo.
type ConfigStore interface {
	Get(ctx context.Context, organizationID string) (*domain.RateLimitConfig, error)
	Upsert(ctx context.Context, organizationID string, limit int) error
}

// Limiter ограничивает количество одновременных запросов организации.
//
// Инвариант: при лимите N никогда не больше N одновременных допусков
// на организацию. Счётчик в полёте живёт в Counter (Redis) и эфемерен;
// настроенный потолок — в ConfigStore (Postgres) и кэшируется
// с инвалидацией при SetLimit.
//
// Admission-протокол: INCR, затем сравнение с лимитом; превышение
// откатывается DECR. Два конкурирующих запроса на последний слот
// оба инкрементируют, но лишь один пройдёт проверку.
type Limiter struct {
	counter Counter
	config  ConfigStore
	logger  *slog.Logger
}

// New создаёт Limiter.
func New(counter Counter, config ConfigStore, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		counter: counter,
		config:  config,
		logger:  logger,
	}
}

// TryAcquire пытается занять слот для организации.
//
// allowed=false означает, что лимит исчерпан — запрос должен быть
// отклонён, слот не занят. Ошибка означает недоступность
// инфраструктуры счётчика, не отказ по лимиту.
func (l *Limiter) TryAcquire(ctx context.Context, organizationID string) (allowed bool, err error) {
	if organizationID == "" {
		return false, ErrMissingOrganization
	}

	limit, err := l.limitFor(ctx, organizationID)
	if err != nil {
		return false, err
	}

	count, err := l.counter.Incr(ctx, countKey(organizationID))
	if err != nil {
		return false, fmt.Errorf("acquire slot: %w", err)
	}

	if count > int64(limit) {
		// Превышение — откатываем свой инкремент
		if _, err := l.counter.Decr(ctx, countKey(organizationID)); err != nil {
			l.logger.Warn("failed to roll back admission counter",
				"organization_id", organizationID,
				"error", err,
			)
		}
		l.logger.Info("admission refused",
			"organization_id", organizationID,
			"count", count,
			"limit", limit,
		)
		return false, nil
	}

	return true, nil
}

// Release освобождает ранее занятый слот.
//
// Счётчик не уходит ниже нуля: лишний Release (или Release после
// потери счётчика) выравнивается обратно к нулю.
func (l *Limiter) Release(ctx context.Context, organizationID string) error {
	if organizationID == "" {
		return ErrMissingOrganization
	}

	count, err := l.counter.Decr(ctx, countKey(organizationID))
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}

	if count < 0 {
		if err := l.counter.Set(ctx, countKey(organizationID), 0, 0); err != nil {
			l.logger.Warn("failed to floor admission counter",
				"organization_id", organizationID,
				"error", err,
			)
		}
	}
	return nil
}

// GetCurrentUsage возвращает текущее использование против лимита.
func (l *Limiter) GetCurrentUsage(ctx context.Context, organizationID string) (*domain.RateLimitUsage, error) {
	if organizationID == "" {
		return nil, ErrMissingOrganization
	}

	limit, err := l.limitFor(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	count, _, err := l.counter.Get(ctx, countKey(organizationID))
	if err != nil {
		return nil, fmt.Errorf("read admission counter: %w", err)
	}
	if count < 0 {
		count = 0
	}

	return &domain.RateLimitUsage{Count: int(count), Limit: limit}, nil
}

// SetLimit устанавливает новый лимит организации.
//
// Лимит записывается в источник истины и инвалидируется в кэше;
// действует только на новые запросы — уже находящиеся в полёте
// не вытесняются.
func (l *Limiter) SetLimit(ctx context.Context, organizationID string, limit int) error {
	if organizationID == "" {
		return ErrMissingOrganization
	}
	if limit <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	if err := l.config.Upsert(ctx, organizationID, limit); err != nil {
		return fmt.Errorf("persist limit: %w", err)
	}

	if err := l.counter.Del(ctx, limitKey(organizationID)); err != nil {
		l.logger.Warn("failed to invalidate cached limit",
			"organization_id", organizationID,
			"error", err,
		)
	}

	l.logger.Info("concurrent limit updated",
		"organization_id", organizationID,
		"limit", limit,
	)
	return nil
}

// limitFor возвращает действующий лимит организации:
// кэш → источник истины → default.
func (l *Limiter) limitFor(ctx context.Context, organizationID string) (int, error) {
	cached, found, err := l.counter.Get(ctx, limitKey(organizationID))
	if err != nil {
		return 0, fmt.Errorf("read cached limit: %w", err)
	}
	if found && cached > 0 {
		return int(cached), nil
	}

	limit := domain.DefaultConcurrentLimit
	cfg, err := l.config.Get(ctx, organizationID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return 0, fmt.Errorf("read configured limit: %w", err)
	}
	if err == nil && cfg.ConcurrentLimit > 0 {
		limit = cfg.ConcurrentLimit
	}

	if err := l.counter.Set(ctx, limitKey(organizationID), int64(limit), limitCacheTTL); err != nil {
		l.logger.Warn("failed to cache limit",
			"organization_id", organizationID,
			"error", err,
		)
	}
	return limit, nil
}

func countKey(organizationID string) string {
	return "admission:" + organizationID + ":count"
}

func limitKey(organizationID string) string {
	return "admission:" + organizationID + ":limit"
}
