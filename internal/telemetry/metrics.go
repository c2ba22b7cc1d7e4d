package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Счётчики Prometheus. Регистрируются в default registry,
// отдаются процессами через /metrics.
var (
	// RunsStarted — принятые к выполнению runs.
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_runs_started_total",
		Help: "Total workflow runs accepted for execution",
	})

	// RunsFinished — завершённые runs по финальному статусу.
	RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_runs_finished_total",
		Help: "Total workflow runs finished, by terminal status",
	}, []string{"status"})

	// AdmissionRefused — отказы допуска по лимиту организации.
	AdmissionRefused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_admission_refused_total",
		Help: "Total run admissions refused by the organization limit",
	})

	// TasksExecuted — выполненные воркером задачи по executor и исходу.
	TasksExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_tasks_executed_total",
		Help: "Total tasks executed by the worker, by executor and outcome",
	}, []string{"executor", "outcome"})

	// FilesSkipped — файлы, пропущенные по истории обработки.
	FilesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_files_skipped_total",
		Help: "Total files skipped because of an active history entry",
	})
)
