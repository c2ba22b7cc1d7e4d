package domain

import (
	"errors"
	"fmt"
)

// Ошибки валидации конвертов исполнения.
var (
	// ErrMissingExecutor — в контексте не указан executor.
	ErrMissingExecutor = errors.New("executor name is required")

	// ErrMissingRequestID — в контексте не указан request id.
	ErrMissingRequestID = errors.New("request id is required")

	// ErrResultWithoutError — результат помечен неуспешным, но ошибка не заполнена.
	ErrResultWithoutError = errors.New("failed result must carry an error")

	// ErrResultUnexpectedError — успешный результат не может содержать ошибку.
	ErrResultUnexpectedError = errors.New("successful result must not carry an error")
)

// Operation — вид работы, которую выполняет executor.
type Operation string

const (
	// OperationExecute — основная обработка файла/батча.
	OperationExecute Operation = "EXECUTE"

	// OperationCallback — обработка результата завершённой задачи.
	OperationCallback Operation = "CALLBACK"

	// OperationStatus — запрос статуса выполнения.
	OperationStatus Operation = "STATUS"
)

// ExecutionContext — входной конверт одной единицы работы executor'а.
//
// Принадлежит вызывающему до передачи диспетчеру; после сериализации
// в очередь логически принадлежит воркеру-потребителю и неизменяем.
type ExecutionContext struct {
	// RequestID — уникальный идентификатор запроса.
	// Под ним результат записывается в result backend.
	RequestID string `json:"request_id"`

	// ExecutorName — имя стратегии из реестра executor'ов.
	ExecutorName string `json:"executor_name"`

	// Operation — вид работы.
	Operation Operation `json:"operation"`

	// OrganizationID — организация, от имени которой выполняется работа.
	OrganizationID string `json:"organization_id"`

	// Payload — входные данные executor'а (файл, конфигурация обработки).
	Payload map[string]any `json:"payload,omitempty"`

	// AuthToken — токен для обращений executor'а к внешним сервисам.
	AuthToken string `json:"auth_token,omitempty"`
}

// Validate проверяет обязательные поля контекста.
func (c *ExecutionContext) Validate() error {
	if c.RequestID == "" {
		return ErrMissingRequestID
	}
	if c.ExecutorName == "" {
		return ErrMissingExecutor
	}
	return nil
}

// ExecutionResult — выходной конверт executor'а.
//
// Производится ровно один раз на ExecutionContext, записывается
// в result backend и читается исходным отправителем.
type ExecutionResult struct {
	// Success — завершилась ли работа успешно.
	Success bool `json:"success"`

	// Data — данные результата.
	Data map[string]any `json:"data,omitempty"`

	// Metadata — служебные данные выполнения (тайминги, версии).
	Metadata map[string]any `json:"metadata,omitempty"`

	// Error — текст ошибки. Обязателен при Success=false,
	// запрещён при Success=true.
	Error string `json:"error,omitempty"`
}

// Validate проверяет инвариант success/error.
func (r *ExecutionResult) Validate() error {
	if !r.Success && r.Error == "" {
		return ErrResultWithoutError
	}
	if r.Success && r.Error != "" {
		return fmt.Errorf("%w: %s", ErrResultUnexpectedError, r.Error)
	}
	return nil
}

// FailedResult строит валидный неуспешный результат.
func FailedResult(errMsg string) *ExecutionResult {
	if errMsg == "" {
		errMsg = "unknown error"
	}
	return &ExecutionResult{Success: false, Error: errMsg}
}

// SuccessResult строит валидный успешный результат.
func SuccessResult(data map[string]any) *ExecutionResult {
	if data == nil {
		data = make(map[string]any)
	}
	return &ExecutionResult{Success: true, Data: data}
}
