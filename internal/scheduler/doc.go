// Package scheduler реализует планировщик запусков pipelines.
//
// Scheduler периодически проверяет pipelines с истекшим next_due_at
// и создаёт для них новые runs (SCHEDULED, QUEUE).
//
// Структура:
//   - scheduler.go — основная логика (Tick, processPipeline)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Pipelines:  pipelineRepo,
//	    Executions: executionRepo,
//	    Notifier:   dispatcher, // опционально
//	    Logger:     logger,
//	})
//
//	// Вызывается каждый тик (обычно раз в секунду)
//	if err := sched.Tick(ctx); err != nil {
//	    logger.Error("scheduler tick failed", "error", err)
//	}
//
// Leader Election:
//
// Scheduler не реализует leader election самостоятельно.
// Это делается в main через pg_try_advisory_lock.
// Метод Tick вызывается только лидером.
package scheduler
