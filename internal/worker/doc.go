// Package worker выполняет отдельные единицы работы.
//
// # Обзор
//
// Worker — stateless компонент системы Conveyor, который выполняет
// единицы работы (ExecutionContext), поставленные диспетчером в очередь
// executor. Worker отвечает за:
//
//   - Получение ExecutionContext из очереди RabbitMQ
//   - Выбор executor'а по имени стратегии из реестра
//   - Запись ExecutionResult в result backend (ровно один раз на request id)
//   - Публикацию callback-события для оркестратора
//
// Workers масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди executor.
//
// # Executor
//
// Интерфейс стратегии обработки:
//
//	type Executor interface {
//	    Execute(ctx context.Context, ec *domain.ExecutionContext) (*domain.ExecutionResult, error)
//	}
//
// Реализации:
//   - WebhookExecutor — HTTP-запрос к внешнему сервису обработки
//   - TransformExecutor — перекладка полей payload по mapping
//   - NoopExecutor — диагностический pass-through
//
// # Registry
//
// Реестр хранит фабрики (func() Executor): каждая единица работы получает
// свежий экземпляр executor'а и не делит состояние с соседними задачами.
// Регистрация дубликата имени — ошибка; Get по неизвестному имени —
// ErrUnknownExecutor.
//
// # Обработка
//
//  1. Получение сообщения из очереди executor
//  2. Парсинг и валидация ExecutionContext (невалидный — ack, не redelivery)
//  3. Выбор executor'а (неизвестный — неуспешный результат сразу, без retry)
//  4. Выполнение
//  5. Запись результата в result backend
//  6. Публикация callback (только для задач с execution_id в payload)
//
// # Ошибки
//
// Пакет различает два уровня ошибок:
//   - Инфраструктурные (запись результата не удалась) — nack, redelivery
//   - Логические (HTTP 500 от сервиса, неизвестный executor) — неуспешный
//     ExecutionResult, retry не выполняется
package worker
