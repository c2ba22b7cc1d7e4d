package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"syscall"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Параметры retry по умолчанию.
const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 60 * time.Second
	resultPollInterval  = 200 * time.Millisecond
)

// ResultStore — result backend: durable key-value хранилище результатов,
// адресуемое request id. Воркер пишет результат ровно один раз,
// исходный отправитель читает его через GetResult.
// found=false означает "результата ещё нет" и не является ошибкой.
type ResultStore interface {
	Get(ctx context.Context, requestID string) (result *domain.ExecutionResult, found bool, err error)
}

// TaskHandle — ссылка на поставленную задачу для последующего
// получения результата.
type TaskHandle struct {
	// RequestID — идентификатор запроса в result backend.
	RequestID string `json:"request_id"`

	// Queue — очередь, в которую задача была поставлена.
	Queue Queue `json:"queue"`
}

// Dispatcher публикует работу в очереди специализированных воркер-пулов
// через выделенное соединение с брокером задач.
//
// Retry применяется только к транзиентным инфраструктурным ошибкам
// (разрыв соединения, таймаут): экспоненциальная задержка с jitter,
// ограниченное число попыток. Ошибки бизнес-логики executor'а диспетчер
// не ретраит никогда — они возвращаются как неуспешный ExecutionResult.
type Dispatcher struct {
	conn    *Connection
	results ResultStore
	logger  *slog.Logger

	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

// DispatcherConfig — конфигурация Dispatcher.
type DispatcherConfig struct {
	// Conn — выделенное соединение с брокером задач (обязательно).
	Conn *Connection

	// Results — result backend для GetResult.
	Results ResultStore

	// MaxAttempts — максимум попыток публикации (default: 3).
	MaxAttempts int

	// InitialDelay — начальная задержка retry (default: 1s).
	InitialDelay time.Duration

	// MaxDelay — потолок задержки retry (default: 60s).
	MaxDelay time.Duration

	// Logger
	Logger *slog.Logger
}

// NewDispatcher создаёт Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	initialDelay := cfg.InitialDelay
	if initialDelay <= 0 {
		initialDelay = defaultInitialDelay
	}

	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		conn:         cfg.Conn,
		results:      cfg.Results,
		logger:       logger,
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
	}
}

// Dispatch ставит единицу работы в указанную очередь.
//
// Блокируется только на публикации, не на выполнении задачи.
// Неизвестное имя очереди отклоняется до публикации.
func (d *Dispatcher) Dispatch(ctx context.Context, ec *domain.ExecutionContext, queue Queue) (TaskHandle, error) {
	if err := ec.Validate(); err != nil {
		return TaskHandle{}, err
	}

	msg := NewMessage(MessageTypeWork, ec)
	msg.ID = ec.RequestID

	if err := d.publish(ctx, queue, msg); err != nil {
		return TaskHandle{}, err
	}

	return TaskHandle{RequestID: ec.RequestID, Queue: queue}, nil
}

// GetResult читает результат задачи из result backend,
// опрашивая его до истечения timeout.
//
// Возвращает ErrResultNotReady вместо бесконечного ожидания.
func (d *Dispatcher) GetResult(ctx context.Context, handle TaskHandle, timeout time.Duration) (*domain.ExecutionResult, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(resultPollInterval)
	defer ticker.Stop()

	for {
		result, found, err := d.results.Get(ctx, handle.RequestID)
		if err != nil {
			return nil, fmt.Errorf("read result %s: %w", handle.RequestID, err)
		}
		if found {
			return result, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrResultNotReady, handle.RequestID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// PublishRunRequest публикует запрос на выполнение run. Очередь: router.
func (d *Dispatcher) PublishRunRequest(ctx context.Context, executionID uuid.UUID) error {
	return d.publish(ctx, QueueRouter, NewMessage(MessageTypeRunRequest, RunRequestPayload{ExecutionID: executionID}))
}

// PublishCallback публикует результат завершённой задачи. Очередь: callback.
func (d *Dispatcher) PublishCallback(ctx context.Context, payload CallbackPayload) error {
	return d.publish(ctx, QueueCallback, NewMessage(MessageTypeCallback, payload))
}

// PublishDeploymentNotice публикует уведомление для run без pipeline.
// Очередь: notification.
func (d *Dispatcher) PublishDeploymentNotice(ctx context.Context, payload DeploymentNoticePayload) error {
	return d.publish(ctx, QueueNotification, NewMessage(MessageTypeNotification, payload))
}

// publish сериализует и публикует сообщение с retry на транзиентных ошибках.
func (d *Dispatcher) publish(ctx context.Context, queue Queue, msg *Message) error {
	exchange, routingKey, err := Route(queue)
	if err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		lastErr = d.conn.WithChannel(func(ch *amqp.Channel) error {
			return ch.PublishWithContext(
				ctx,
				string(exchange),
				string(routingKey),
				false,
				false,
				amqp.Publishing{
					ContentType:  "application/json",
					DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт брокера
					MessageId:    msg.ID,
					Timestamp:    msg.Timestamp,
					Body:         body,
				},
			)
		})

		if lastErr == nil {
			d.logger.Debug("dispatched message",
				"queue", queue,
				"message_id", msg.ID,
				"type", msg.Type,
				"attempt", attempt,
			)
			return nil
		}

		if !IsTransient(lastErr) || attempt == d.maxAttempts {
			break
		}

		delay := Backoff(attempt, d.initialDelay, d.maxDelay)
		d.logger.Warn("publish failed, retrying",
			"queue", queue,
			"message_id", msg.ID,
			"attempt", attempt,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if IsTransient(lastErr) {
		return fmt.Errorf("%w: publish to %s: %v", ErrPublishExhausted, queue, lastErr)
	}
	return fmt.Errorf("publish to %s: %w", queue, lastErr)
}

// Backoff вычисляет задержку перед попыткой attempt:
// экспоненциальный рост от initial с jitter ±25%, ограничен max.
func Backoff(attempt int, initial, max time.Duration) time.Duration {
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > max {
			delay = max
			break
		}
	}
	if delay > max {
		delay = max
	}

	// jitter: [0.75; 1.25) от базовой задержки
	jitter := 0.75 + rand.Float64()*0.5
	delay = time.Duration(float64(delay) * jitter)
	if delay > max {
		delay = max
	}
	return delay
}

// IsTransient определяет, является ли ошибка транзиентной инфраструктурной
// (connection refused, таймаут, разрыв соединения, I/O).
// Только такие ошибки ретраятся.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrNoChannel) {
		return true
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		// Серверные и connection-level ошибки брокера
		return amqpErr.Code >= 500 || !amqpErr.Recover
	}
	if errors.Is(err, amqp.ErrClosed) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}

	return false
}
