package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/plugin"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// defaultExecutor — стратегия обработки файла, если не указана явно.
const defaultExecutor = "webhook"

// StartRequest — запрос на запуск run.
type StartRequest struct {
	// PipelineID — владеющий pipeline. Nil для standalone deployment.
	PipelineID *uuid.UUID

	// WorkflowID — выполняемый workflow (обязательно).
	WorkflowID uuid.UUID

	// OrganizationID — организация-владелец.
	OrganizationID string

	// Mode — INSTANT (синхронно) или QUEUE (через очередь).
	Mode domain.ExecutionMode

	// Method — DIRECT или SCHEDULED.
	Method domain.ExecutionMethod

	// Executor — имя стратегии обработки (default: webhook).
	Executor string

	// Files — файлы run.
	Files []FileInput

	// AuthToken — токен для обращений executor'а к внешним сервисам.
	AuthToken string
}

// StartRun создаёт execution и запускает его.
//
// QUEUE-режим: запись создаётся в PENDING и запрос публикуется
// в очередь router; метод возвращается сразу.
// INSTANT-режим: run выполняется синхронно, метод возвращается
// после финализации.
func (o *Orchestrator) StartRun(ctx context.Context, req StartRequest) (*domain.Execution, error) {
	if req.WorkflowID == uuid.Nil {
		return nil, ErrMissingWorkflow
	}
	if len(req.Files) == 0 {
		return nil, ErrNoFiles
	}

	mode := req.Mode
	if mode == "" {
		mode = domain.ExecutionModeQueue
	}
	method := req.Method
	if method == "" {
		method = domain.ExecutionMethodDirect
	}

	now := time.Now()
	e := &domain.Execution{
		ID:             uuid.New(),
		PipelineID:     req.PipelineID,
		WorkflowID:     req.WorkflowID,
		OrganizationID: req.OrganizationID,
		Status:         domain.ExecutionStatusPending,
		Mode:           mode,
		Method:         method,
		TotalFiles:     len(req.Files),
		CreatedAt:      now,
		ModifiedAt:     now,
	}

	if err := o.executions.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}

	tracker := newRunTracker(e, req.Files)
	tracker.executor = executorName(req.Executor)
	tracker.authToken = req.AuthToken
	if err := o.addActiveRun(tracker); err != nil {
		return nil, err
	}

	telemetry.RunsStarted.Inc()
	o.logger.Info("run accepted",
		"execution_id", e.ID,
		"workflow_id", e.WorkflowID,
		"organization_id", e.OrganizationID,
		"mode", mode,
		"method", method,
		"files", len(req.Files),
	)

	if mode == domain.ExecutionModeInstant {
		if err := o.processRun(ctx, e.ID); err != nil {
			return e, err
		}
		return e, nil
	}

	if err := o.dispatcher.PublishRunRequest(ctx, e.ID); err != nil {
		// Запись создана — poll fallback подхватит run без события
		o.logger.Warn("failed to publish run request",
			"execution_id", e.ID,
			"error", err,
		)
	}
	return e, nil
}

// StopRun останавливает run.
//
// Для уже завершённого run — no-op (ErrRunFinished). Результаты задач,
// пришедшие после остановки, поглощаются финальным статусом.
// Остановка идёт через tracker: run, остановленный ещё в PENDING,
// слот допуска не занимал и при финализации его не освобождает.
func (o *Orchestrator) StopRun(ctx context.Context, executionID uuid.UUID) error {
	tracker := o.getActiveRun(executionID)
	if tracker == nil {
		var err error
		tracker, err = o.restoreTracker(ctx, executionID)
		if err != nil {
			return err
		}
	}
	e := tracker.execution

	advanced, err := o.machine.Advance(ctx, e, domain.ExecutionStatusStopped)
	if err != nil {
		return err
	}
	if !advanced {
		return ErrRunFinished
	}

	e.MarkStopped()
	if err := o.executions.Update(ctx, e); err != nil {
		o.logger.Warn("failed to persist stopped execution",
			"execution_id", executionID,
			"error", err,
		)
	}

	o.finishRun(ctx, tracker)
	o.logger.Info("run stopped", "execution_id", executionID)
	return nil
}

// handleRunRequest обрабатывает запрос на выполнение run из очереди router.
func (o *Orchestrator) handleRunRequest(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunRequestPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse run request payload", "error", err)
		return err
	}

	o.logger.Debug("received run request", "execution_id", payload.ExecutionID)

	if err := o.processRun(ctx, payload.ExecutionID); err != nil {
		// Ожидаемые ситуации — ack; отказ по лимиту догоняется polling'ом
		switch {
		case errors.Is(err, ErrRunNotFound),
			errors.Is(err, ErrRunFinished),
			errors.Is(err, ErrRunAlreadyActive):
			o.logger.Debug("run not processed",
				"execution_id", payload.ExecutionID,
				"reason", err,
			)
			return nil
		case errors.Is(err, ErrAdmissionRefused):
			telemetry.AdmissionRefused.Inc()
			o.logger.Info("run deferred by admission limit",
				"execution_id", payload.ExecutionID,
			)
			return nil
		}
		o.logger.Error("failed to process run",
			"execution_id", payload.ExecutionID,
			"error", err,
		)
		return err
	}

	return nil
}

// handleCallback обрабатывает результат завершённой задачи.
func (o *Orchestrator) handleCallback(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.CallbackPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse callback payload", "error", err)
		return err
	}

	o.logger.Debug("received callback",
		"request_id", payload.RequestID,
		"execution_id", payload.ExecutionID,
		"status", payload.Status,
	)

	if err := o.processCallback(ctx, payload); err != nil {
		o.logger.Error("failed to process callback",
			"request_id", payload.RequestID,
			"execution_id", payload.ExecutionID,
			"error", err,
		)
		return err
	}
	return nil
}

// processRun запускает обработку run: допуск, история, диспетчеризация.
func (o *Orchestrator) processRun(ctx context.Context, executionID uuid.UUID) error {
	tracker := o.getActiveRun(executionID)
	if tracker == nil {
		var err error
		tracker, err = o.restoreTracker(ctx, executionID)
		if err != nil {
			return err
		}
	}
	e := tracker.execution

	if e.IsFinished() {
		return ErrRunFinished
	}
	if e.Status != domain.ExecutionStatusPending {
		// Run уже стартовал (например, подхвачен из poll до события)
		return nil
	}

	// Допуск по лимиту организации: отказ оставляет run в PENDING,
	// polling попробует снова после освобождения слотов
	allowed, err := o.limiter.TryAcquire(ctx, e.OrganizationID)
	if err != nil {
		return fmt.Errorf("admission check: %w", err)
	}
	if !allowed {
		return fmt.Errorf("%w: organization %s", ErrAdmissionRefused, e.OrganizationID)
	}
	tracker.markAdmitted()

	if _, err := o.machine.Advance(ctx, e, domain.ExecutionStatusInitiated); err != nil {
		if tracker.takeAdmitted() {
			o.releaseSlot(ctx, e)
		}
		return err
	}

	o.logger.Info("run started",
		"execution_id", e.ID,
		"workflow_id", e.WorkflowID,
		"files", e.TotalFiles,
	)

	handles, done, err := o.dispatchFiles(ctx, tracker)
	if err != nil {
		o.failRun(ctx, tracker, fmt.Sprintf("dispatch failed: %v", err))
		return err
	}

	if _, err := o.machine.Advance(ctx, e, domain.ExecutionStatusQueued); err != nil {
		o.logger.Warn("failed to advance run to queued",
			"execution_id", e.ID,
			"error", err,
		)
	}
	if err := o.executions.Update(ctx, e); err != nil {
		o.logger.Warn("failed to persist run counters",
			"execution_id", e.ID,
			"error", err,
		)
	}

	if done {
		// Все файлы закрыты историей — run завершён без единой задачи
		o.completeRun(ctx, tracker)
		return nil
	}

	if e.Mode == domain.ExecutionModeInstant {
		return o.collectInstantResults(ctx, tracker, handles)
	}
	return nil
}

// fileDispatch — отправленный файл и его handle.
type fileDispatch struct {
	handle mq.TaskHandle
	file   FileInput
}

// dispatchFiles ставит файлы run в очередь executor.
//
// Файлы с действующей записью истории пропускаются и учитываются
// как обработанные. done=true, если пропущены все.
func (o *Orchestrator) dispatchFiles(ctx context.Context, tracker *runTracker) ([]fileDispatch, bool, error) {
	e := tracker.execution
	var handles []fileDispatch
	done := false

	for _, file := range tracker.files {
		cacheKey := domain.FileCacheKey(file.ContentHash, file.ProcessingConfig)

		if cacheKey != "" {
			prior, err := o.history.Lookup(ctx, e.WorkflowID, cacheKey)
			if err != nil {
				return handles, false, fmt.Errorf("consult history for %s: %w", file.Name, err)
			}
			if prior != nil {
				o.logger.Info("file skipped by history",
					"execution_id", e.ID,
					"file_name", file.Name,
					"prior_status", prior.Status,
				)
				telemetry.FilesSkipped.Inc()
				done = tracker.MarkSkipped()
				continue
			}
		}

		ec, err := o.buildContext(ctx, tracker, file, cacheKey)
		if err != nil {
			return handles, false, err
		}

		handle, err := o.dispatcher.Dispatch(ctx, ec, mq.QueueExecutor)
		if err != nil {
			return handles, false, fmt.Errorf("dispatch %s: %w", file.Name, err)
		}

		o.logger.Debug("file dispatched",
			"execution_id", e.ID,
			"request_id", handle.RequestID,
			"file_name", file.Name,
		)
		handles = append(handles, fileDispatch{handle: handle, file: file})
	}

	return handles, done, nil
}

// buildContext строит ExecutionContext для файла,
// прогоняя payload через активные modifier-стратегии.
func (o *Orchestrator) buildContext(ctx context.Context, tracker *runTracker, file FileInput, cacheKey string) (*domain.ExecutionContext, error) {
	e := tracker.execution

	payload := make(map[string]any, len(file.Payload)+6)
	for k, v := range file.Payload {
		payload[k] = v
	}
	payload["execution_id"] = e.ID.String()
	payload["workflow_id"] = e.WorkflowID.String()
	payload["file_name"] = file.Name
	if cacheKey != "" {
		payload["cache_key"] = cacheKey
	}
	if len(file.ProcessingConfig) > 0 {
		payload["processing_config"] = file.ProcessingConfig
	}

	payload, err := o.applyModifiers(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("apply modifiers for %s: %w", file.Name, err)
	}

	return &domain.ExecutionContext{
		RequestID:      uuid.New().String(),
		ExecutorName:   tracker.executor,
		Operation:      domain.OperationExecute,
		OrganizationID: e.OrganizationID,
		Payload:        payload,
		AuthToken:      tracker.authToken,
	}, nil
}

// applyModifiers прогоняет payload через активные modifier-стратегии
// в порядке имени модуля.
func (o *Orchestrator) applyModifiers(ctx context.Context, payload map[string]any) (map[string]any, error) {
	if o.plugins == nil {
		return payload, nil
	}

	for _, p := range o.plugins.GetAll(plugin.CategoryModifier) {
		modifier, ok := p.(plugin.Modifier)
		if !ok {
			continue
		}
		modified, err := modifier.Modify(ctx, payload)
		if err != nil {
			return nil, fmt.Errorf("modifier %s: %w", p.Descriptor().ModuleName, err)
		}
		payload = modified
	}
	return payload, nil
}

// collectInstantResults синхронно дожидается результатов INSTANT-run.
func (o *Orchestrator) collectInstantResults(ctx context.Context, tracker *runTracker, handles []fileDispatch) error {
	e := tracker.execution

	if _, err := o.machine.Advance(ctx, e, domain.ExecutionStatusExecuting); err != nil {
		o.logger.Warn("failed to advance run to executing",
			"execution_id", e.ID,
			"error", err,
		)
	}

	for _, d := range handles {
		result, err := o.dispatcher.GetResult(ctx, d.handle, o.resultTimeout)

		success := err == nil && result.Success
		errMsg := ""
		switch {
		case err != nil:
			errMsg = err.Error()
		case !result.Success:
			errMsg = result.Error
		}

		o.recordFileResult(ctx, tracker, d.handle.RequestID, d.file.Name, cacheKeyFor(d.file), success, errMsg)
	}

	o.completeRun(ctx, tracker)
	return nil
}

// processCallback учитывает результат одного файла QUEUE-run.
func (o *Orchestrator) processCallback(ctx context.Context, payload mq.CallbackPayload) error {
	tracker := o.getActiveRun(payload.ExecutionID)
	if tracker == nil {
		var err error
		tracker, err = o.restoreTracker(ctx, payload.ExecutionID)
		if err != nil {
			if errors.Is(err, ErrRunNotFound) || errors.Is(err, ErrRunFinished) {
				// Run завершён или остановлен — поздний callback поглощается
				o.logger.Debug("callback for inactive run absorbed",
					"execution_id", payload.ExecutionID,
				)
				return nil
			}
			return err
		}
	}
	e := tracker.execution

	if e.IsFinished() {
		o.logger.Debug("callback absorbed by terminal status",
			"execution_id", e.ID,
			"request_id", payload.RequestID,
		)
		return nil
	}

	if _, err := o.machine.Advance(ctx, e, domain.ExecutionStatusExecuting); err != nil {
		o.logger.Warn("failed to advance run to executing",
			"execution_id", e.ID,
			"error", err,
		)
	}

	success := payload.Status == string(domain.FileStatusSuccess)
	done := o.recordFileResult(ctx, tracker, payload.RequestID, payload.FileName, payload.CacheKey, success, payload.Error)

	if err := o.executions.Update(ctx, e); err != nil {
		o.logger.Warn("failed to persist run counters",
			"execution_id", e.ID,
			"error", err,
		)
	}

	if done {
		o.completeRun(ctx, tracker)
	}
	return nil
}

// recordFileResult учитывает результат файла в истории и в tracker.
func (o *Orchestrator) recordFileResult(ctx context.Context, tracker *runTracker, requestID, fileName, cacheKey string, success bool, errMsg string) (done bool) {
	e := tracker.execution

	done, duplicate := tracker.RecordResult(requestID, fileName, success)
	if duplicate {
		o.logger.Debug("duplicate file result absorbed",
			"execution_id", e.ID,
			"request_id", requestID,
		)
		return false
	}

	status := domain.FileStatusSuccess
	if !success {
		status = domain.FileStatusError
	}

	if cacheKey != "" {
		if _, err := o.history.Record(ctx, &domain.FileHistory{
			WorkflowID: e.WorkflowID,
			CacheKey:   cacheKey,
			FileName:   fileName,
			Status:     status,
			Error:      errMsg,
		}); err != nil {
			// История — оптимизация: её сбой не должен валить run
			o.logger.Warn("failed to record file history",
				"execution_id", e.ID,
				"file_name", fileName,
				"error", err,
			)
		}
	}

	if success {
		o.logger.Debug("file processed",
			"execution_id", e.ID,
			"file_name", fileName,
		)
	} else {
		o.logger.Warn("file failed",
			"execution_id", e.ID,
			"file_name", fileName,
			"error", errMsg,
		)
	}
	return done
}

// completeRun финализирует run по итогам всех файлов.
func (o *Orchestrator) completeRun(ctx context.Context, tracker *runTracker) {
	e := tracker.execution
	failed := tracker.FailedFiles()

	if len(failed) == 0 {
		if _, err := o.machine.Advance(ctx, e, domain.ExecutionStatusCompleted); err != nil {
			o.logger.Warn("failed to advance run to completed",
				"execution_id", e.ID,
				"error", err,
			)
		}
		e.MarkCompleted()
		o.logger.Info("run completed",
			"execution_id", e.ID,
			"files", e.TotalFiles,
			"duration", e.Duration(),
		)
	} else {
		errMsg := fmt.Sprintf("files failed: %s", strings.Join(failed, ", "))
		if _, err := o.machine.Advance(ctx, e, domain.ExecutionStatusError); err != nil {
			o.logger.Warn("failed to advance run to error",
				"execution_id", e.ID,
				"error", err,
			)
		}
		e.MarkError(errMsg)
		o.logger.Warn("run failed",
			"execution_id", e.ID,
			"failed_files", failed,
			"duration", e.Duration(),
		)
	}

	if err := o.executions.Update(ctx, e); err != nil {
		o.logger.Warn("failed to persist finished execution",
			"execution_id", e.ID,
			"error", err,
		)
	}

	o.finishRun(ctx, tracker)
}

// finishRun — общий хвост финализации: владелец, слот, tracker.
// Слот допуска освобождается только если этот run его занимал.
func (o *Orchestrator) finishRun(ctx context.Context, tracker *runTracker) {
	e := tracker.execution
	telemetry.RunsFinished.WithLabelValues(string(e.Status)).Inc()
	if err := o.finalizer.Finalize(ctx, e); err != nil {
		o.logger.Warn("failed to finalize run",
			"execution_id", e.ID,
			"error", err,
		)
	}
	if tracker.takeAdmitted() {
		o.releaseSlot(ctx, e)
	}
	o.removeActiveRun(e.ID)
}

// failRun переводит run в ERROR с сообщением.
func (o *Orchestrator) failRun(ctx context.Context, tracker *runTracker, errMsg string) {
	e := tracker.execution
	if _, err := o.machine.Advance(ctx, e, domain.ExecutionStatusError); err != nil {
		o.logger.Warn("failed to advance run to error",
			"execution_id", e.ID,
			"error", err,
		)
	}
	e.MarkError(errMsg)
	if err := o.executions.Update(ctx, e); err != nil {
		o.logger.Warn("failed to persist failed execution",
			"execution_id", e.ID,
			"error", err,
		)
	}

	o.logger.Warn("run failed early",
		"execution_id", e.ID,
		"error", errMsg,
	)
	o.finishRun(ctx, tracker)
}

// releaseSlot освобождает слот допуска организации.
func (o *Orchestrator) releaseSlot(ctx context.Context, e *domain.Execution) {
	if err := o.limiter.Release(ctx, e.OrganizationID); err != nil {
		o.logger.Warn("failed to release admission slot",
			"execution_id", e.ID,
			"organization_id", e.OrganizationID,
			"error", err,
		)
	}
}

// loadExecution загружает execution из tracker или БД.
func (o *Orchestrator) loadExecution(ctx context.Context, executionID uuid.UUID) (*domain.Execution, error) {
	if tracker := o.getActiveRun(executionID); tracker != nil {
		return tracker.execution, nil
	}

	e, err := o.executions.GetByID(ctx, executionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, executionID)
		}
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return e, nil
}

// restoreTracker восстанавливает tracker из БД.
//
// Используется, когда событие приходит для run, которого нет в памяти
// (после рестарта оркестратора). Список файлов не восстанавливается —
// счётчики продолжаются от значений в строке executions.
func (o *Orchestrator) restoreTracker(ctx context.Context, executionID uuid.UUID) (*runTracker, error) {
	e, err := o.loadExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if e.IsFinished() {
		return nil, ErrRunFinished
	}

	tracker := newRunTracker(e, nil)
	tracker.executor = defaultExecutor
	// Run, ушедший дальше PENDING, прошёл допуск до рестарта
	// и продолжает занимать слот организации
	tracker.admitted = e.Status != domain.ExecutionStatusPending
	if err := o.addActiveRun(tracker); err != nil {
		if errors.Is(err, ErrRunAlreadyActive) {
			// Кто-то уже восстановил — возвращаем его
			return o.getActiveRun(executionID), nil
		}
		return nil, err
	}

	o.logger.Info("run tracker restored",
		"execution_id", executionID,
		"processed", e.ProcessedFiles,
		"total", e.TotalFiles,
	)
	return tracker, nil
}

// executorName нормализует имя стратегии.
func executorName(name string) string {
	if name == "" {
		return defaultExecutor
	}
	return name
}

// cacheKeyFor строит cache key файла.
func cacheKeyFor(file FileInput) string {
	return domain.FileCacheKey(file.ContentHash, file.ProcessingConfig)
}
