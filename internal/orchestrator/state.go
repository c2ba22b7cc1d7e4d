package orchestrator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
)

// FileInput — один файл run, подлежащий обработке.
type FileInput struct {
	// Name — имя файла.
	Name string

	// ContentHash — хэш содержимого для дедупликации.
	// Пустой хэш означает "дедупликация невозможна".
	ContentHash string

	// ProcessingConfig — конфигурация обработки (участвует в cache key).
	ProcessingConfig map[string]any

	// Payload — дополнительные данные для executor'а (url, headers...).
	Payload map[string]any
}

// runTracker — состояние выполнения одного run в памяти.
//
// Создаётся при старте обработки run и удаляется при финализации.
// Счётчики дублируются в строку executions при каждом callback —
// после рестарта оркестратора tracker восстанавливается из БД
// с пустым списком файлов, но корректными счётчиками.
type runTracker struct {
	execution *domain.Execution
	files     []FileInput

	// executor — имя стратегии обработки файлов run.
	executor string

	// authToken — токен для обращений executor'а к внешним сервисам.
	authToken string

	mu       sync.Mutex
	seen     map[string]bool // requestID → учтён (защита от дубликатов доставки)
	failed   []string        // имена файлов, завершившихся ошибкой
	admitted bool            // run занимает слот допуска организации
}

// newRunTracker создаёт tracker для run.
func newRunTracker(e *domain.Execution, files []FileInput) *runTracker {
	return &runTracker{
		execution: e,
		files:     files,
		seen:      make(map[string]bool),
	}
}

// ExecutionID возвращает ID run.
func (t *runTracker) ExecutionID() uuid.UUID {
	return t.execution.ID
}

// markAdmitted отмечает, что run прошёл допуск и занимает слот организации.
func (t *runTracker) markAdmitted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.admitted = true
}

// takeAdmitted снимает отметку о занятом слоте и сообщает, была ли она.
// Снятие одноразовое: слот не может быть освобождён дважды, а run,
// не прошедший допуск (остановлен в PENDING), чужой слот не трогает.
func (t *runTracker) takeAdmitted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.admitted
	t.admitted = false
	return was
}

// RecordResult учитывает результат обработки одного файла.
//
// Повторная доставка того же request id — no-op (duplicate=true):
// брокер гарантирует at-least-once, счётчик не должен уехать.
// done=true, когда учтены все файлы run.
func (t *runTracker) RecordResult(requestID, fileName string, success bool) (done, duplicate bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.seen[requestID] {
		return false, true
	}
	t.seen[requestID] = true

	t.execution.ProcessedFiles++
	if !success {
		t.failed = append(t.failed, fileName)
	}

	return t.execution.ProcessedFiles >= t.execution.TotalFiles, false
}

// MarkSkipped учитывает файл, пропущенный по истории, без request id.
func (t *runTracker) MarkSkipped() (done bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.execution.ProcessedFiles++
	return t.execution.ProcessedFiles >= t.execution.TotalFiles
}

// FailedFiles возвращает имена файлов, завершившихся ошибкой.
func (t *runTracker) FailedFiles() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, len(t.failed))
	copy(out, t.failed)
	return out
}

// Stats возвращает счётчики run.
func (t *runTracker) Stats() RunStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return RunStats{
		TotalFiles:     t.execution.TotalFiles,
		ProcessedFiles: t.execution.ProcessedFiles,
		FailedFiles:    len(t.failed),
	}
}

// RunStats — счётчики выполнения run.
type RunStats struct {
	TotalFiles     int
	ProcessedFiles int
	FailedFiles    int
}
