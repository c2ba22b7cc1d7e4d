// Package telemetry — наблюдаемость для всех процессов Conveyor.
//
//   - logging.go — structured logging через slog (формат задаётся LOG_FORMAT)
//   - metrics.go — Prometheus счётчики запусков, admission-отказов и задач
//
// Каждый бинарь поднимает /metrics и /healthz на своём HTTP-порту.
package telemetry
