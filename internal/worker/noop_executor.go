package worker

import (
	"context"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

// NoopExecutor — диагностический executor стратегии "noop".
//
// Возвращает payload без изменений. Используется для проверки
// сквозного пути dispatch → worker → result backend.
type NoopExecutor struct{}

// Execute возвращает payload как data результата.
func (e *NoopExecutor) Execute(_ context.Context, ec *domain.ExecutionContext) (*domain.ExecutionResult, error) {
	result := domain.SuccessResult(ec.Payload)
	result.Metadata = map[string]any{
		"executor":    "noop",
		"executed_at": time.Now().UTC().Format(time.RFC3339),
	}
	return result, nil
}
