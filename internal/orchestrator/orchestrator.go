package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/plugin"
	"github.com/shaiso/Conveyor/internal/runstate"
)

// Default configuration values.
const (
	defaultPollInterval  = 10 * time.Second
	defaultBatchSize     = 100
	defaultResultTimeout = 2 * time.Minute
)

// ExecutionStore — персистентность executions.
// Реализация: repo.ExecutionRepo.
type ExecutionStore interface {
	Create(ctx context.Context, e *domain.Execution) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error)
	Update(ctx context.Context, e *domain.Execution) error
	ListUnfinished(ctx context.Context, limit int) ([]domain.Execution, error)
}

// HistoryService — дедупликация файлов.
// Реализация: history.Service.
type HistoryService interface {
	Lookup(ctx context.Context, workflowID uuid.UUID, cacheKey string) (*domain.FileHistory, error)
	Record(ctx context.Context, h *domain.FileHistory) (*domain.FileHistory, error)
}

// AdmissionLimiter — допуск по лимиту одновременных запросов организации.
// Реализация: limiter.Limiter.
type AdmissionLimiter interface {
	TryAcquire(ctx context.Context, organizationID string) (bool, error)
	Release(ctx context.Context, organizationID string) error
}

// WorkDispatcher — постановка работы и чтение результатов.
// Реализация: mq.Dispatcher.
type WorkDispatcher interface {
	Dispatch(ctx context.Context, ec *domain.ExecutionContext, queue mq.Queue) (mq.TaskHandle, error)
	GetResult(ctx context.Context, handle mq.TaskHandle, timeout time.Duration) (*domain.ExecutionResult, error)
	PublishRunRequest(ctx context.Context, executionID uuid.UUID) error
}

// Orchestrator управляет выполнением runs.
//
// Orchestrator — центральный компонент системы, который:
//   - Принимает runs напрямую (StartRun) и из очереди router (event-driven)
//   - Периодически проверяет незавершённые runs в БД (polling fallback)
//   - Проверяет допуск по лимиту организации перед стартом
//   - Консультируется с историей обработки по каждому файлу
//   - Ставит работу в очередь executor через диспетчер
//   - Отслеживает callback-события и финализирует runs
type Orchestrator struct {
	executions ExecutionStore
	history    HistoryService
	limiter    AdmissionLimiter
	dispatcher WorkDispatcher

	machine   *runstate.Machine
	finalizer *runstate.Finalizer
	plugins   *plugin.Registry

	conn *mq.Connection

	// Active runs — runs в процессе выполнения (executionID → tracker)
	activeRuns map[uuid.UUID]*runTracker
	mu         sync.RWMutex

	// Consumers
	runConsumer      *mq.Consumer
	callbackConsumer *mq.Consumer

	// Configuration
	pollInterval  time.Duration
	batchSize     int
	resultTimeout time.Duration

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Stores and services
	Executions ExecutionStore
	History    HistoryService
	Limiter    AdmissionLimiter
	Dispatcher WorkDispatcher

	// State machine и финализация
	Machine   *runstate.Machine
	Finalizer *runstate.Finalizer

	// Plugins — реестр стратегий (modifier применяются к payload).
	// Опционально.
	Plugins *plugin.Registry

	// Conn — соединение с брокером задач (для consumers).
	Conn *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество runs за один poll (default: 100)

	// ResultTimeout — ожидание результата файла в INSTANT-режиме (default: 2m).
	ResultTimeout time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	resultTimeout := cfg.ResultTimeout
	if resultTimeout <= 0 {
		resultTimeout = defaultResultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		executions:    cfg.Executions,
		history:       cfg.History,
		limiter:       cfg.Limiter,
		dispatcher:    cfg.Dispatcher,
		machine:       cfg.Machine,
		finalizer:     cfg.Finalizer,
		plugins:       cfg.Plugins,
		conn:          cfg.Conn,
		activeRuns:    make(map[uuid.UUID]*runTracker),
		pollInterval:  pollInterval,
		batchSize:     batchSize,
		resultTimeout: resultTimeout,
		logger:        logger,
	}
}

// Start запускает Orchestrator.
//
// Запускает:
//   - Consumer очереди router (запросы на выполнение runs)
//   - Consumer очереди callback (результаты задач)
//   - Polling горутину для fallback
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"batch_size", o.batchSize,
	)

	o.runConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
		Queue:    mq.QueueRouter,
		Handler:  o.handleRunRequest,
		Prefetch: 10,
	})

	o.callbackConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
		Queue:    mq.QueueCallback,
		Handler:  o.handleCallback,
		Prefetch: 10,
	})

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.runConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("run consumer error", "error", err)
		}
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.callbackConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("callback consumer error", "error", err)
		}
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}

	if o.runConsumer != nil {
		o.runConsumer.Stop()
	}
	if o.callbackConsumer != nil {
		o.callbackConsumer.Stop()
	}

	o.wg.Wait()

	o.logger.Info("orchestrator stopped",
		"active_runs", len(o.activeRuns),
	)
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

// pollLoop — цикл polling для fallback.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем runs, созданные пока были выключены)
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (o *Orchestrator) poll(ctx context.Context) {
	runs, err := o.executions.ListUnfinished(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list unfinished executions", "error", err)
		return
	}

	if len(runs) == 0 {
		return
	}

	o.logger.Debug("poll found unfinished executions", "count", len(runs))

	for i := range runs {
		run := &runs[i]

		if o.isRunActive(run.ID) {
			continue
		}

		// Подхватываем только ещё не стартовавшие runs:
		// run в полёте без tracker'а дорабатывается через callbacks
		if run.Status != domain.ExecutionStatusPending {
			continue
		}

		if err := o.processRun(ctx, run.ID); err != nil {
			o.logger.Error("failed to process execution from poll",
				"execution_id", run.ID,
				"error", err,
			)
		}
	}
}

// isRunActive проверяет, находится ли run в обработке.
func (o *Orchestrator) isRunActive(executionID uuid.UUID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, exists := o.activeRuns[executionID]
	return exists
}

// getActiveRun возвращает активный tracker.
func (o *Orchestrator) getActiveRun(executionID uuid.UUID) *runTracker {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.activeRuns[executionID]
}

// addActiveRun добавляет run в активные.
func (o *Orchestrator) addActiveRun(tracker *runTracker) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.activeRuns[tracker.ExecutionID()]; exists {
		return ErrRunAlreadyActive
	}

	o.activeRuns[tracker.ExecutionID()] = tracker
	return nil
}

// removeActiveRun удаляет run из активных.
func (o *Orchestrator) removeActiveRun(executionID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeRuns, executionID)
}

// ActiveRunsCount возвращает количество активных runs.
func (o *Orchestrator) ActiveRunsCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.activeRuns)
}

// GetActiveRunStats возвращает счётчики активного run.
func (o *Orchestrator) GetActiveRunStats(executionID uuid.UUID) (RunStats, bool) {
	o.mu.RLock()
	tracker, exists := o.activeRuns[executionID]
	o.mu.RUnlock()

	if !exists {
		return RunStats{}, false
	}
	return tracker.Stats(), true
}
