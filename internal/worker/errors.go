package worker

import "errors"

// Ошибки воркера.
var (
	// ErrUnknownExecutor — нет executor'а с таким именем в реестре.
	ErrUnknownExecutor = errors.New("unknown executor")

	// ErrDuplicateExecutor — executor с таким именем уже зарегистрирован.
	ErrDuplicateExecutor = errors.New("executor already registered")

	// ErrInvalidContext — ExecutionContext не прошёл валидацию.
	ErrInvalidContext = errors.New("invalid execution context")

	// ErrWebhookRequest — webhook-запрос завершился ошибкой.
	ErrWebhookRequest = errors.New("webhook request failed")

	// ErrWorkerStopped — воркер остановлен.
	ErrWorkerStopped = errors.New("worker stopped")
)
