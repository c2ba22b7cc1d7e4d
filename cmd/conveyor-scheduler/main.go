// Conveyor Scheduler — запускает pipelines по расписанию.
//
// Scheduler периодически проверяет pipelines с истекшим next_due_at
// и создаёт runs. Допускается несколько реплик: лидер выбирается
// через pg_try_advisory_lock, тики выполняет только лидер.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/scheduler"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

const schedLockKey int64 = 730301

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-scheduler")

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

	// Брокер задач опционален: без него созданные runs
	// подхватывает polling оркестратора
	var notifier scheduler.RunNotifier
	if brokerURL := os.Getenv("DISPATCH_BROKER_URL"); brokerURL != "" {
		conn, err := mq.NewConnection(brokerURL, logger)
		if err != nil {
			logger.Warn("task broker not available, runs will rely on polling", "error", err)
		} else {
			defer conn.Close()
			logger.Info("task broker connected")

			if err := mq.SetupTopology(conn); err != nil {
				logger.Warn("failed to setup broker topology", "error", err)
			}
			notifier = mq.NewDispatcher(mq.DispatcherConfig{Conn: conn, Logger: logger})
		}
	}

	sched := scheduler.New(scheduler.Config{
		Pipelines:  repo.NewPipelineRepo(pool),
		Executions: repo.NewExecutionRepo(pool),
		Notifier:   notifier,
		Logger:     logger,
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// scheduler loop
	go func() {
		tk := time.NewTicker(1 * time.Second)
		defer tk.Stop()

		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", schedLockKey)
			}
		}()

		for {
			select {
			case <-tk.C:
				// пытаемся стать лидером (или подтвердить лидерство)
				if !hasLock {
					var ok bool
					if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", schedLockKey).Scan(&ok); err != nil {
						logger.Error("advisory lock failed", "error", err)
						continue
					}
					hasLock = ok
				}

				if !hasLock {
					// не лидер — пропускаем тик
					continue
				}

				if err := sched.Tick(ctx); err != nil {
					logger.Error("scheduler tick failed", "error", err)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// serve
	port := ":8081"
	if v := os.Getenv("SCHED_PORT"); v != "" {
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
	logger.Info("conveyor-scheduler stopped")
}
