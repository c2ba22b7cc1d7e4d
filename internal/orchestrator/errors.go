package orchestrator

import (
	"errors"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/limiter"
	"github.com/shaiso/Conveyor/internal/repo"
)

// Ошибки оркестратора.
var (
	// ErrRunNotFound — execution не найден в БД.
	ErrRunNotFound = errors.New("execution not found")

	// ErrRunAlreadyActive — execution уже обрабатывается.
	ErrRunAlreadyActive = errors.New("execution already active")

	// ErrRunFinished — execution уже в финальном статусе.
	ErrRunFinished = errors.New("execution already finished")

	// ErrAdmissionRefused — лимит одновременных запросов организации исчерпан.
	ErrAdmissionRefused = errors.New("admission refused: concurrent limit reached")

	// ErrNoFiles — у run нет файлов для обработки.
	ErrNoFiles = errors.New("execution has no files")

	// ErrMissingWorkflow — не указан workflow id.
	ErrMissingWorkflow = errors.New("workflow id is required")
)

// ClassifyError возвращает стабильный код класса ошибки для внешних
// поверхностей. Класс определяет retry-стратегию клиента: отказ допуска
// повторяется позже, ошибка конфигурации — после исправления, никогда
// автоматически.
func ClassifyError(err error) domain.ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAdmissionRefused):
		return domain.ErrorKindAdmissionRefused
	case errors.Is(err, ErrRunNotFound),
		errors.Is(err, repo.ErrNotFound):
		return domain.ErrorKindNotFound
	case errors.Is(err, ErrMissingWorkflow),
		errors.Is(err, ErrNoFiles),
		errors.Is(err, limiter.ErrInvalidLimit),
		errors.Is(err, limiter.ErrMissingOrganization):
		return domain.ErrorKindConfiguration
	default:
		return domain.ErrorKindInternal
	}
}
