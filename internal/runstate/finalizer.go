package runstate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
)

// PipelineStore — запись итога run на владеющий pipeline.
// Реализация: repo.PipelineRepo.
type PipelineStore interface {
	UpdateLastRun(ctx context.Context, id uuid.UUID, status domain.PipelineRunStatus, errMsg string) error
}

// Notifier — notification path для runs без pipeline (API deployment).
// Реализация: mq.Dispatcher.
type Notifier interface {
	PublishDeploymentNotice(ctx context.Context, payload mq.DeploymentNoticePayload) error
}

// Finalizer поднимает итог завершённого run на его владельца.
//
// Владелец — sum type: pipeline-owned run обновляет pipeline
// (статус, ошибку, счётчик и время последнего запуска); run без
// владельца уходит в notification path. Обе ветки — запланированные
// исходы, ни одна не моделируется через ошибку.
//
// Сбой propagation никогда не проваливает вызывающего: run уже
// в финальном статусе, это источник правды; agregат на pipeline —
// best-effort и чинится следующим завершённым run.
type Finalizer struct {
	pipelines PipelineStore
	notifier  Notifier
	logger    *slog.Logger
}

// NewFinalizer создаёт Finalizer.
func NewFinalizer(pipelines PipelineStore, notifier Notifier, logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finalizer{
		pipelines: pipelines,
		notifier:  notifier,
		logger:    logger,
	}
}

// Finalize распространяет финальный статус run на владельца.
//
// Возвращает ErrNotTerminal, если run ещё не завершён —
// единственная ошибка, которую Finalize может вернуть.
func (f *Finalizer) Finalize(ctx context.Context, e *domain.Execution) error {
	if !e.Status.IsTerminal() {
		return ErrNotTerminal
	}

	runStatus := pipelineRunStatus(e.Status)

	switch owner := e.Owner(); owner.Kind {
	case OwnerPipeline:
		f.propagateToPipeline(ctx, e, owner.PipelineID, runStatus)
	case OwnerStandalone:
		f.notifyDeployment(ctx, e)
	}

	return nil
}

// Алиасы вида владельца для switch в Finalize.
const (
	OwnerPipeline   = domain.OwnerPipeline
	OwnerStandalone = domain.OwnerStandalone
)

// propagateToPipeline записывает итог run на pipeline.
//
// Pipeline, исчезнувший между стартом и завершением run
// (repo.ErrNotFound) — это run, ставший ownerless: итог уходит
// в notification path, как для standalone deployment.
func (f *Finalizer) propagateToPipeline(ctx context.Context, e *domain.Execution, pipelineID uuid.UUID, status domain.PipelineRunStatus) {
	err := f.pipelines.UpdateLastRun(ctx, pipelineID, status, e.ErrorMessage)
	if err == nil {
		f.logger.Info("pipeline run finalized",
			"execution_id", e.ID,
			"pipeline_id", pipelineID,
			"status", status,
		)
		return
	}

	if errors.Is(err, repo.ErrNotFound) {
		f.logger.Info("pipeline gone, routing to notification path",
			"execution_id", e.ID,
			"pipeline_id", pipelineID,
		)
		f.notifyDeployment(ctx, e)
		return
	}

	f.logger.Warn("failed to propagate run result to pipeline",
		"execution_id", e.ID,
		"pipeline_id", pipelineID,
		"status", status,
		"error", err,
	)
}

// notifyDeployment публикует уведомление о завершении ownerless run.
func (f *Finalizer) notifyDeployment(ctx context.Context, e *domain.Execution) {
	if f.notifier == nil {
		return
	}

	payload := mq.DeploymentNoticePayload{
		ExecutionID: e.ID,
		WorkflowID:  e.WorkflowID,
		Status:      string(e.Status),
		Error:       e.ErrorMessage,
	}

	if err := f.notifier.PublishDeploymentNotice(ctx, payload); err != nil {
		f.logger.Warn("failed to publish deployment notice",
			"execution_id", e.ID,
			"workflow_id", e.WorkflowID,
			"error", err,
		)
		return
	}

	f.logger.Info("deployment notice published",
		"execution_id", e.ID,
		"workflow_id", e.WorkflowID,
		"status", e.Status,
	)
}

// pipelineRunStatus сворачивает финальный статус run в статус pipeline:
// COMPLETED → SUCCESS, ERROR и STOPPED → FAILURE.
func pipelineRunStatus(s domain.ExecutionStatus) domain.PipelineRunStatus {
	if s == domain.ExecutionStatusCompleted {
		return domain.PipelineRunStatusSuccess
	}
	return domain.PipelineRunStatusFailure
}
