package domain

// ExecutionStatus — статус выполнения workflow/pipeline run.
//
// Жизненный цикл:
//
//	PENDING → INITIATED → QUEUED → READY → EXECUTING → COMPLETED
//	                                                 ↘ ERROR
//	                                                 ↘ STOPPED
//
// Промежуточные статусы могут быть пропущены с точки зрения наблюдателя:
// статус гарантированно виден только после записи в БД, быстрый run
// может перейти из PENDING сразу в COMPLETED.
type ExecutionStatus string

const (
	// ExecutionStatusPending — run создан, но ещё не начал выполняться.
	ExecutionStatusPending ExecutionStatus = "PENDING"

	// ExecutionStatusInitiated — run принят оркестратором, создаётся контекст.
	ExecutionStatusInitiated ExecutionStatus = "INITIATED"

	// ExecutionStatusQueued — задачи run поставлены в очередь воркеров.
	ExecutionStatusQueued ExecutionStatus = "QUEUED"

	// ExecutionStatusReady — все задачи приняты воркерами.
	ExecutionStatusReady ExecutionStatus = "READY"

	// ExecutionStatusExecuting — файлы run обрабатываются.
	ExecutionStatusExecuting ExecutionStatus = "EXECUTING"

	// ExecutionStatusCompleted — run успешно завершён.
	ExecutionStatusCompleted ExecutionStatus = "COMPLETED"

	// ExecutionStatusError — run завершился с ошибкой.
	ExecutionStatusError ExecutionStatus = "ERROR"

	// ExecutionStatusStopped — run остановлен пользователем.
	ExecutionStatusStopped ExecutionStatus = "STOPPED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
// Запись в финальный статус — no-op, переход из него невозможен.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusError, ExecutionStatusStopped:
		return true
	default:
		return false
	}
}

// rank — порядковый номер статуса для защиты от обратных переходов.
var executionStatusRank = map[ExecutionStatus]int{
	ExecutionStatusPending:   0,
	ExecutionStatusInitiated: 1,
	ExecutionStatusQueued:    2,
	ExecutionStatusReady:     3,
	ExecutionStatusExecuting: 4,
	ExecutionStatusCompleted: 5,
	ExecutionStatusError:     5,
	ExecutionStatusStopped:   5,
}

// Rank возвращает порядковый номер статуса в жизненном цикле.
// Финальные статусы равнозначны.
func (s ExecutionStatus) Rank() int {
	return executionStatusRank[s]
}

// PipelineRunStatus — статус последнего запуска pipeline.
type PipelineRunStatus string

const (
	// PipelineRunStatusSuccess — последний run завершился COMPLETED.
	PipelineRunStatusSuccess PipelineRunStatus = "SUCCESS"

	// PipelineRunStatusFailure — последний run завершился ERROR или STOPPED.
	PipelineRunStatusFailure PipelineRunStatus = "FAILURE"

	// PipelineRunStatusInProgress — run ещё выполняется.
	PipelineRunStatusInProgress PipelineRunStatus = "INPROGRESS"
)

// FileStatus — результат обработки одного файла внутри workflow run.
type FileStatus string

const (
	// FileStatusSuccess — файл обработан успешно.
	FileStatusSuccess FileStatus = "SUCCESS"

	// FileStatusError — обработка файла завершилась ошибкой.
	FileStatusError FileStatus = "ERROR"

	// FileStatusPartial — файл обработан частично (часть страниц/листов упала).
	FileStatusPartial FileStatus = "PARTIAL"
)

// ExecutionMode — способ выполнения run.
type ExecutionMode string

const (
	// ExecutionModeInstant — run выполняется синхронно в процессе оркестратора.
	ExecutionModeInstant ExecutionMode = "INSTANT"

	// ExecutionModeQueue — run ставится в очередь и выполняется асинхронно.
	ExecutionModeQueue ExecutionMode = "QUEUE"
)

// ExecutionMethod — источник запуска run.
type ExecutionMethod string

const (
	// ExecutionMethodDirect — запуск напрямую (API или CLI).
	ExecutionMethodDirect ExecutionMethod = "DIRECT"

	// ExecutionMethodScheduled — запуск планировщиком по расписанию.
	ExecutionMethodScheduled ExecutionMethod = "SCHEDULED"
)
