// Conveyor Worker — выполняет задачи обработки файлов.
//
// Worker:
//   - Получает задачи из очереди executor
//   - Выполняет их выбранной executor-стратегией (webhook, transform, noop)
//   - Сохраняет результат в result backend
//   - Публикует callback-событие для оркестратора
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
	"github.com/shaiso/Conveyor/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-worker")

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

	resultRepo := repo.NewResultRepo(pool)

	// Выделенный брокер задач — обязателен
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

	// Создаём worker
	w := worker.New(worker.Config{
		Results:    resultRepo,
		Dispatcher: dispatcher,
		Conn:       conn,
		Logger:     logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
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

	w.Stop()
	logger.Info("conveyor-worker stopped")
}
