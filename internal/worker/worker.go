package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/mq"
)

const defaultPrefetch = 5

// ResultSaver — запись результата в result backend.
// Реализация: repo.ResultRepo.
type ResultSaver interface {
	Save(ctx context.Context, requestID string, result *domain.ExecutionResult) error
}

// CallbackPublisher — публикация callback-события о завершённой задаче.
// Реализация: mq.Dispatcher.
type CallbackPublisher interface {
	PublishCallback(ctx context.Context, payload mq.CallbackPayload) error
}

// Worker выполняет отдельные единицы работы из очереди executor.
//
// Worker — stateless компонент системы, который:
//   - Получает ExecutionContext из очереди executor
//   - Выполняет работу через executor, выбранный по имени из реестра
//   - Записывает ExecutionResult в result backend (ровно один раз)
//   - Публикует callback-событие для оркестратора
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	results    ResultSaver
	dispatcher CallbackPublisher
	conn       *mq.Connection
	registry   *Registry

	consumer *mq.Consumer
	prefetch int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// Results — result backend (обязательно).
	Results ResultSaver

	// Dispatcher — публикация callback-событий.
	Dispatcher CallbackPublisher

	// Conn — соединение с брокером задач.
	Conn *mq.Connection

	// Registry — реестр executor'ов (опционально; если nil — NewRegistry()).
	Registry *Registry

	// Prefetch — количество сообщений предзагрузки (default: 5).
	Prefetch int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		results:    cfg.Results,
		dispatcher: cfg.Dispatcher,
		conn:       cfg.Conn,
		registry:   registry,
		prefetch:   prefetch,
		logger:     logger,
	}
}

// Start запускает Worker: consumer очереди executor.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"executors", w.registry.List(),
		"prefetch", w.prefetch,
	)

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    mq.QueueExecutor,
		Handler:  w.handleWork,
		Prefetch: w.prefetch,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("work consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}
