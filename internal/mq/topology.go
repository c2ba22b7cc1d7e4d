package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — логическое имя очереди воркер-пула.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeWork Exchange = "conveyor.work"
	ExchangeDLQ  Exchange = "conveyor.dlq"
)

// Queues — специализированные пулы воркеров.
const (
	// QueueExecutor — обработка файлов executor-стратегиями.
	QueueExecutor Queue = "executor"

	// QueueCallback — результаты завершённых задач для оркестратора.
	QueueCallback Queue = "callback"

	// QueueRouter — запросы на выполнение pipeline/workflow runs.
	QueueRouter Queue = "router"

	// QueueNotification — уведомления (включая API deployment fallback).
	QueueNotification Queue = "notification"

	// QueueDLQ — dead letter queue для необработанных сообщений.
	QueueDLQ Queue = "dlq.work"
)

// route — привязка логической очереди к физической топологии.
type route struct {
	exchange   Exchange
	routingKey RoutingKey
	dlq        bool // сообщения уходят в DLQ после исчерпания retry
}

// routes — таблица маршрутизации. Имя очереди, отсутствующее здесь,
// отклоняется сразу: молчаливый fallback на очередь по умолчанию запрещён.
var routes = map[Queue]route{
	QueueExecutor:     {exchange: ExchangeWork, routingKey: "executor", dlq: true},
	QueueCallback:     {exchange: ExchangeWork, routingKey: "callback"},
	QueueRouter:       {exchange: ExchangeWork, routingKey: "router"},
	QueueNotification: {exchange: ExchangeWork, routingKey: "notification"},
}

// Route возвращает exchange и routing key для логической очереди.
// Неизвестное имя — ErrUnknownQueue.
func Route(q Queue) (Exchange, RoutingKey, error) {
	r, ok := routes[q]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownQueue, q)
	}
	return r.exchange, r.routingKey, nil
}

// KnownQueues возвращает все логические очереди из таблицы маршрутизации.
func KnownQueues() []Queue {
	qs := make([]Queue, 0, len(routes))
	for q := range routes {
		qs = append(qs, q)
	}
	return qs
}

// SetupTopology объявляет exchanges, queues и bindings.
// Идемпотентно: повторный вызов на существующей топологии безопасен.
func SetupTopology(conn *Connection) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []Exchange{ExchangeWork, ExchangeDLQ}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex), // name
			"direct",   // type
			true,       // durable
			false,      // auto-deleted
			false,      // internal
			false,      // no-wait
			nil,        // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(QueueDLQ),
	}

	for q, r := range routes {
		var args amqp.Table
		if r.dlq {
			args = dlqArgs
		}

		_, err := ch.QueueDeclare(
			string(q), // name
			true,      // durable
			false,     // delete when unused
			false,     // exclusive
			false,     // no-wait
			args,      // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	// Сама DLQ очередь
	if _, err := ch.QueueDeclare(string(QueueDLQ), true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", QueueDLQ, err)
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	for q, r := range routes {
		err := ch.QueueBind(
			string(q),            // queue name
			string(r.routingKey), // routing key
			string(r.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", q, r.exchange, err)
		}
	}

	if err := ch.QueueBind(string(QueueDLQ), string(QueueDLQ), string(ExchangeDLQ), false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", QueueDLQ, ExchangeDLQ, err)
	}

	return nil
}
