// Package orchestrator управляет выполнением runs.
//
// Путь run:
//
//	StartRun / очередь router → допуск по лимиту организации →
//	INITIATED → консультация с историей по каждому файлу →
//	диспетчеризация в очередь executor → QUEUED →
//	callback-события → EXECUTING → все файлы учтены →
//	COMPLETED/ERROR → финализация владельца → освобождение слота
//
// Отказ по лимиту оставляет run в PENDING: polling fallback повторит
// попытку после освобождения слотов, событие подтверждается без retry.
//
// Счётчики run живут в runTracker (память) и дублируются в строку
// executions при каждом событии; после рестарта tracker восстанавливается
// из БД. Дубликаты callback-доставок поглощаются по request id.
package orchestrator
