package domain

import (
	"time"

	"github.com/google/uuid"
)

// Execution — экземпляр выполнения workflow/pipeline run.
//
// Execution создаётся когда:
// - Пользователь запускает pipeline вручную (через API/CLI)
// - Scheduler создаёт run по расписанию
// - Внешний вызов API deployment запускает workflow без pipeline
//
// Записи никогда не удаляются — хранятся для аудита и истории.
type Execution struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// PipelineID — ссылка на владеющий pipeline.
	// Nil для ad-hoc запусков workflow и API deployment'ов.
	PipelineID *uuid.UUID `json:"pipeline_id,omitempty"`

	// WorkflowID — workflow, который выполняется.
	WorkflowID uuid.UUID `json:"workflow_id"`

	// OrganizationID — организация-владелец (tenant).
	OrganizationID string `json:"organization_id"`

	// Status — текущий статус выполнения.
	Status ExecutionStatus `json:"status"`

	// Mode — INSTANT (синхронно) или QUEUE (через очередь).
	Mode ExecutionMode `json:"execution_mode"`

	// Method — DIRECT (ручной запуск) или SCHEDULED (планировщик).
	Method ExecutionMethod `json:"execution_method"`

	// Attempts — количество попыток выполнения run.
	Attempts int `json:"attempts"`

	// TotalFiles — общее количество файлов в run.
	TotalFiles int `json:"total_files"`

	// ProcessedFiles — количество уже завершённых файлов (включая skip по истории).
	ProcessedFiles int `json:"processed_files"`

	// ErrorMessage — текст ошибки, если run завершился с ERROR.
	ErrorMessage string `json:"error_message,omitempty"`

	// StartedAt — время перехода в EXECUTING.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время перехода в финальный статус.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания run (статус PENDING присваивается сразу).
	CreatedAt time.Time `json:"created_at"`

	// ModifiedAt — время последнего обновления.
	ModifiedAt time.Time `json:"modified_at"`
}

// OwnerKind — вид владельца execution.
type OwnerKind int

const (
	// OwnerPipeline — run принадлежит pipeline, статус поднимается на него.
	OwnerPipeline OwnerKind = iota

	// OwnerStandalone — run без pipeline (API deployment);
	// завершение уходит в notification path, а не в pipeline.
	OwnerStandalone
)

// ExecutionOwner — владелец run как sum type: Pipeline или StandaloneDeployment.
// Ветка fallback при финализации — обычный branch, а не пойманное исключение.
type ExecutionOwner struct {
	Kind       OwnerKind
	PipelineID uuid.UUID // заполнен только для OwnerPipeline
}

// Owner возвращает владельца run.
func (e *Execution) Owner() ExecutionOwner {
	if e.PipelineID == nil || *e.PipelineID == uuid.Nil {
		return ExecutionOwner{Kind: OwnerStandalone}
	}
	return ExecutionOwner{Kind: OwnerPipeline, PipelineID: *e.PipelineID}
}

// IsFinished возвращает true, если run завершён (в любом финальном статусе).
func (e *Execution) IsFinished() bool {
	return e.Status.IsTerminal()
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (e *Execution) Duration() time.Duration {
	if e.StartedAt == nil || e.FinishedAt == nil {
		return 0
	}
	return e.FinishedAt.Sub(*e.StartedAt)
}

// MarkExecuting переводит run в статус EXECUTING.
func (e *Execution) MarkExecuting() {
	now := time.Now()
	e.Status = ExecutionStatusExecuting
	e.StartedAt = &now
	e.ModifiedAt = now
	e.Attempts++
}

// MarkCompleted переводит run в статус COMPLETED.
func (e *Execution) MarkCompleted() {
	now := time.Now()
	e.Status = ExecutionStatusCompleted
	e.FinishedAt = &now
	e.ModifiedAt = now
}

// MarkError переводит run в статус ERROR с ошибкой.
func (e *Execution) MarkError(errMsg string) {
	now := time.Now()
	e.Status = ExecutionStatusError
	e.FinishedAt = &now
	e.ModifiedAt = now
	e.ErrorMessage = errMsg
}

// MarkStopped переводит run в статус STOPPED.
func (e *Execution) MarkStopped() {
	now := time.Now()
	e.Status = ExecutionStatusStopped
	e.FinishedAt = &now
	e.ModifiedAt = now
}

// Pipeline — конфигурация регулярной обработки документов.
//
// Pipeline агрегирует результаты своих runs: счётчик запусков,
// время и статус последнего запуска.
type Pipeline struct {
	// ID — уникальный идентификатор pipeline.
	ID uuid.UUID `json:"id"`

	// WorkflowID — workflow, который pipeline выполняет.
	WorkflowID uuid.UUID `json:"workflow_id"`

	// OrganizationID — организация-владелец.
	OrganizationID string `json:"organization_id"`

	// Name — человекочитаемое имя pipeline.
	Name string `json:"name"`

	// CronExpr — расписание запусков (пусто для pipeline без расписания).
	CronExpr string `json:"cron_expr,omitempty"`

	// Enabled — участвует ли pipeline в планировании.
	Enabled bool `json:"enabled"`

	// NextDueAt — время следующего запуска по расписанию.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastRunTime — время завершения последнего run.
	LastRunTime *time.Time `json:"last_run_time,omitempty"`

	// LastRunStatus — статус последнего run (SUCCESS/FAILURE/INPROGRESS).
	LastRunStatus PipelineRunStatus `json:"last_run_status,omitempty"`

	// RunCount — общее количество завершённых runs.
	RunCount int `json:"run_count"`

	// ErrorMessage — ошибка последнего неудачного run.
	ErrorMessage string `json:"error_message,omitempty"`

	// CreatedAt — время создания pipeline.
	CreatedAt time.Time `json:"created_at"`
}
