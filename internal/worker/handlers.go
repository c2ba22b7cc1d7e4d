package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// handleWork обрабатывает одну единицу работы из очереди executor.
func (w *Worker) handleWork(ctx context.Context, delivery *mq.Delivery) error {
	ec, err := mq.ParsePayload[domain.ExecutionContext](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse work payload", "error", err)
		return err
	}

	if err := ec.Validate(); err != nil {
		// Невалидный контекст не станет валидным при redelivery — ack
		w.logger.Error("invalid execution context",
			"request_id", ec.RequestID,
			"error", err,
		)
		return nil
	}

	result, err := w.processContext(ctx, &ec)
	if err != nil {
		// Инфраструктурная ошибка — nack, брокер доставит повторно
		w.logger.Error("failed to process work",
			"request_id", ec.RequestID,
			"executor", ec.ExecutorName,
			"error", err,
		)
		return err
	}

	return w.finishWork(ctx, &ec, result)
}

// processContext выбирает executor и выполняет работу.
//
// Неизвестное имя executor'а — не инфраструктурная ошибка: retry не поможет,
// задача завершается неуспешным результатом сразу.
func (w *Worker) processContext(ctx context.Context, ec *domain.ExecutionContext) (*domain.ExecutionResult, error) {
	executor, err := w.registry.Get(ec.ExecutorName)
	if err != nil {
		if errors.Is(err, ErrUnknownExecutor) {
			w.logger.Warn("unknown executor requested",
				"request_id", ec.RequestID,
				"executor", ec.ExecutorName,
			)
			return domain.FailedResult(err.Error()), nil
		}
		return nil, err
	}

	w.logger.Info("work started",
		"request_id", ec.RequestID,
		"executor", ec.ExecutorName,
		"operation", ec.Operation,
		"organization_id", ec.OrganizationID,
	)

	result, execErr := executor.Execute(ctx, ec)
	if execErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Executor упал инфраструктурно — фиксируем как неуспешный результат:
		// повторный прогон той же работы решает оркестратор, не брокер
		result = domain.FailedResult(execErr.Error())
	}

	if result == nil {
		result = domain.FailedResult("executor returned no result")
	}
	if err := result.Validate(); err != nil {
		w.logger.Warn("executor produced invalid result",
			"request_id", ec.RequestID,
			"executor", ec.ExecutorName,
			"error", err,
		)
		result = domain.FailedResult(err.Error())
	}

	// Неуспех помечается стабильным кодом класса ошибки:
	// читателю результата он задаёт retry-стратегию
	if !result.Success {
		if result.Metadata == nil {
			result.Metadata = make(map[string]any)
		}
		if _, ok := result.Metadata[domain.MetadataErrorKind]; !ok {
			result.Metadata[domain.MetadataErrorKind] = string(domain.ErrorKindExecutorFailed)
		}
	}

	outcome := "error"
	if result.Success {
		outcome = "success"
	}
	telemetry.TasksExecuted.WithLabelValues(ec.ExecutorName, outcome).Inc()

	return result, nil
}

// finishWork записывает результат и публикует callback.
func (w *Worker) finishWork(ctx context.Context, ec *domain.ExecutionContext, result *domain.ExecutionResult) error {
	if err := w.results.Save(ctx, ec.RequestID, result); err != nil {
		return fmt.Errorf("save result %s: %w", ec.RequestID, err)
	}

	if result.Success {
		w.logger.Info("work succeeded",
			"request_id", ec.RequestID,
			"executor", ec.ExecutorName,
		)
	} else {
		w.logger.Warn("work failed",
			"request_id", ec.RequestID,
			"executor", ec.ExecutorName,
			"error", result.Error,
		)
	}

	return w.publishCallback(ctx, ec, result)
}

// publishCallback публикует callback-событие для оркестратора.
//
// Standalone-задачи (без execution_id в payload) callback не публикуют:
// их результат забирается отправителем через GetResult.
func (w *Worker) publishCallback(ctx context.Context, ec *domain.ExecutionContext, result *domain.ExecutionResult) error {
	if w.dispatcher == nil {
		return nil
	}

	executionID, ok := payloadUUID(ec.Payload, "execution_id")
	if !ok {
		return nil
	}
	workflowID, _ := payloadUUID(ec.Payload, "workflow_id")

	status := string(domain.FileStatusSuccess)
	if !result.Success {
		status = string(domain.FileStatusError)
	}

	payload := mq.CallbackPayload{
		RequestID:   ec.RequestID,
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		FileName:    getString(ec.Payload, "file_name", ""),
		CacheKey:    getString(ec.Payload, "cache_key", ""),
		Status:      status,
		Error:       result.Error,
	}

	if err := w.dispatcher.PublishCallback(ctx, payload); err != nil {
		w.logger.Warn("failed to publish callback",
			"request_id", ec.RequestID,
			"execution_id", executionID,
			"error", err,
		)
		// Не возвращаем ошибку — результат уже записан,
		// оркестратор подхватит через polling fallback
	}

	return nil
}

// payloadUUID извлекает uuid из строкового поля payload.
func payloadUUID(payload map[string]any, key string) (uuid.UUID, bool) {
	s := getString(payload, key, "")
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
