// Conveyor Orchestrator — управляет выполнением workflow runs.
//
// Orchestrator:
//   - Принимает запросы на запуск из очереди router
//   - Проверяет допуск по лимиту организации
//   - Сверяет файлы с историей обработки
//   - Ставит работу специализированным воркер-пулам
//   - Собирает callback-события и финализирует runs
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Conveyor/internal/history"
	"github.com/shaiso/Conveyor/internal/limiter"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/orchestrator"
	"github.com/shaiso/Conveyor/internal/plugin"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/runstate"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-orchestrator")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Репозитории
	executionRepo := repo.NewExecutionRepo(pool)
	pipelineRepo := repo.NewPipelineRepo(pool)
	historyRepo := repo.NewHistoryRepo(pool)
	resultRepo := repo.NewResultRepo(pool)
	rateLimitRepo := repo.NewRateLimitRepo(pool)

	// Выделенный брокер задач — обязателен: без него система
	// не диспетчеризует работу
	brokerURL := os.Getenv("DISPATCH_BROKER_URL")
	if brokerURL == "" {
		logger.Error("DISPATCH_BROKER_URL is required")
		os.Exit(1)
	}

	conn, err := mq.NewConnection(brokerURL, logger)
	if err != nil {
		logger.Error("failed to connect to task broker", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	logger.Info("task broker connected")

	if err := mq.SetupTopology(conn); err != nil {
		logger.Error("failed to setup broker topology", "error", err)
		os.Exit(1)
	}

	dispatcher := mq.NewDispatcher(mq.DispatcherConfig{
		Conn:    conn,
		Results: resultRepo,
		Logger:  logger,
	})

	// Redis — счётчики допуска
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "localhost:6379"
	}
	redisClient, err := limiter.NewRedisClient(ctx, redisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("redis connected")

	admission := limiter.New(limiter.NewRedisCounter(redisClient), rateLimitRepo, logger)

	// Реестр стратегий: встроенный stamp-модификатор
	plugins := plugin.NewRegistry(logger)
	if err := plugins.Register(plugin.CategoryModifier, &plugin.StampModifier{Active: false}); err != nil {
		logger.Error("failed to register plugin", "error", err)
		os.Exit(1)
	}
	if _, err := plugins.Load(); err != nil {
		logger.Error("failed to load plugin registry", "error", err)
		os.Exit(1)
	}

	// Создаём orchestrator
	orch := orchestrator.New(orchestrator.Config{
		Executions: executionRepo,
		History:    history.NewService(historyRepo, logger),
		Limiter:    admission,
		Dispatcher: dispatcher,
		Machine:    runstate.NewMachine(executionRepo, logger),
		Finalizer:  runstate.NewFinalizer(pipelineRepo, dispatcher, logger),
		Plugins:    plugins,
		Conn:       conn,
		Logger:     logger,
	})

	// Запускаем orchestrator
	if err := orch.Start(ctx); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("ORCH_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	orch.Stop()
	logger.Info("conveyor-orchestrator stopped")
}
