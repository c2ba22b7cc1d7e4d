package mq

import "errors"

// Ошибки диспетчеризации.
var (
	// ErrBrokerURLRequired — не задан явный URL брокера для диспетчера.
	// Диспетчер никогда не читает URL из окружения сам: брокер воркеров
	// конфигурируется отдельно от брокера хост-приложения.
	ErrBrokerURLRequired = errors.New("dispatch broker url is required")

	// ErrUnknownQueue — имя очереди не привязано к топологии.
	// Задача никогда не уходит в очередь по умолчанию.
	ErrUnknownQueue = errors.New("unknown queue")

	// ErrResultNotReady — результат ещё не появился в result backend
	// за отведённый timeout.
	ErrResultNotReady = errors.New("result not ready")

	// ErrNoChannel — нет открытого AMQP канала.
	ErrNoChannel = errors.New("no channel available")

	// ErrPublishExhausted — все попытки публикации исчерпаны.
	ErrPublishExhausted = errors.New("publish retries exhausted")
)
