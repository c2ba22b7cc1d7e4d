package domain

// ErrorKind — стабильный код класса ошибки для внешних поверхностей
// (CLI, result backend, callbacks).
//
// Каждый класс требует своей retry-стратегии на стороне клиента:
// отказ допуска ретраится позже, ошибка executor'а не ретраится,
// ошибка конфигурации требует вмешательства оператора.
type ErrorKind string

const (
	// ErrorKindAdmissionRefused — запуск отклонён лимитом организации.
	// Клиент повторяет после освобождения слотов.
	ErrorKindAdmissionRefused ErrorKind = "ADMISSION_REFUSED"

	// ErrorKindExecutorFailed — executor завершился с ошибкой.
	// Бизнес-ошибка, не ретраится автоматически.
	ErrorKindExecutorFailed ErrorKind = "EXECUTOR_FAILED"

	// ErrorKindConfiguration — некорректная конфигурация запроса или системы.
	// Требует исправления, ретрай бессмыслен.
	ErrorKindConfiguration ErrorKind = "CONFIGURATION"

	// ErrorKindNotFound — запрошенная сущность не существует.
	ErrorKindNotFound ErrorKind = "NOT_FOUND"

	// ErrorKindInternal — прочие внутренние ошибки.
	ErrorKindInternal ErrorKind = "INTERNAL"
)

// MetadataErrorKind — ключ класса ошибки в metadata результата.
const MetadataErrorKind = "error_kind"
