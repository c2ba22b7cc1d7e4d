package history

import "errors"

// Ошибки сервиса истории.
var (
	// ErrInvalidInterval — интервал переобработки должен быть положительным.
	ErrInvalidInterval = errors.New("reprocessing interval must be positive")

	// ErrMissingWorkflow — не указан workflow id.
	ErrMissingWorkflow = errors.New("workflow id is required")
)
