package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/history"
	"github.com/shaiso/Conveyor/internal/limiter"
	"github.com/shaiso/Conveyor/internal/repo"
)

// Deps — подключения операторского CLI.
//
// CLI работает напрямую с Postgres и Redis: API-сервера в системе нет,
// административные операции выполняются против хранилищ.
type Deps struct {
	Executions *repo.ExecutionRepo
	History    *history.Service
	Limiter    *limiter.Limiter

	pool *pgxpool.Pool
}

// Connect устанавливает соединения по переменным окружения
// (DB_URL обязателен, REDIS_URL нужен командам ratelimit).
func Connect(ctx context.Context) (*Deps, error) {
	pool, err := repo.NewPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	deps := &Deps{
		Executions: repo.NewExecutionRepo(pool),
		History:    history.NewService(repo.NewHistoryRepo(pool), nil),
		pool:       pool,
	}

	// Redis опционален: без него доступны команды history и run
	if addr := os.Getenv("REDIS_URL"); addr != "" {
		client, err := limiter.NewRedisClient(ctx, addr)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		deps.Limiter = limiter.New(limiter.NewRedisCounter(client), repo.NewRateLimitRepo(pool), nil)
	}

	return deps, nil
}

// Close закрывает соединения.
func (d *Deps) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

// requireLimiter возвращает Limiter или ошибку, если REDIS_URL не задан.
func (d *Deps) requireLimiter() (*limiter.Limiter, error) {
	if d.Limiter == nil {
		return nil, fmt.Errorf("REDIS_URL is not set: ratelimit commands need redis")
	}
	return d.Limiter, nil
}
