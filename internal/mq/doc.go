// Package mq предоставляет диспетчеризацию задач через выделенный брокер.
//
// Брокер воркер-пулов конфигурируется явным URL и никогда не наследует
// конфигурацию брокера хост-приложения (dual-broker dispatch).
//
// Структура:
//   - connection.go — выделенное соединение (reconnect, graceful shutdown)
//   - topology.go   — exchanges, queues, bindings и таблица маршрутизации
//   - dispatcher.go — публикация работы с bounded retry, чтение результатов
//   - consumer.go   — потребление сообщений воркерами
//   - message.go    — конверты сообщений
//
// Очереди специализированных воркер-пулов:
//   - executor      — обработка файлов executor-стратегиями
//   - callback      — результаты задач для оркестратора
//   - router        — запросы на выполнение runs
//   - notification  — уведомления (включая API deployment fallback)
package mq
