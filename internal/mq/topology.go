package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	ExchangeConductor Exchange = "courier.conductor"
	ExchangeEvents    Exchange = "courier.events"
	ExchangeNotify    Exchange = "courier.notify"
	ExchangeDLQ       Exchange = "courier.dlq"
)

const (
	QueueConductorInbound Queue = "conductor.inbound"
	QueueNotifyOutbound   Queue = "notify.outbound"
	QueueDLQConductor     Queue = "dlq.conductor"
)

const (
	RoutingKeyInbound      RoutingKey = "inbound"
	RoutingKeyNotify       RoutingKey = "notify"
	RoutingKeyDLQConductor RoutingKey = "conductor"
)

// SetupTopology объявляет exchanges, очереди и привязки.
// Идемпотентна: безопасно вызывать из каждого процесса при старте.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeConductor, amqp.ExchangeDirect},
		{ExchangeEvents, amqp.ExchangeFanout},
		{ExchangeNotify, amqp.ExchangeDirect},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}
	return nil
}

func declareQueues(ch *amqp.Channel) error {
	// Неизвестные типы и битые конверты conductor'а уходят в DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQConductor),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		{QueueConductorInbound, dlqArgs},
		{QueueNotifyOutbound, nil},
		{QueueDLQConductor, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueConductorInbound, RoutingKeyInbound, ExchangeConductor},
		{QueueNotifyOutbound, RoutingKeyNotify, ExchangeNotify},
		{QueueDLQConductor, RoutingKeyDLQConductor, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// DeclareReplicaQueue объявляет эксклюзивную очередь реплики,
// привязанную к fanout-обменнику событий. Каждая реплика
// планировщика получает все события; лишние отбрасывает не-лидер.
func DeclareReplicaQueue(ch *amqp.Channel) (string, error) {
	q, err := ch.QueueDeclare(
		"",    // имя генерирует сервер
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare replica queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", string(ExchangeEvents), false, nil); err != nil {
		return "", fmt.Errorf("bind replica queue: %w", err)
	}
	return q.Name, nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Courier RabbitMQ Topology:

    courier.conductor (direct)
    └── conductor.inbound [routing: inbound]
            Consumer: Conductor
            DLQ: dlq.conductor

    courier.events (fanout)
    └── amq.gen-* (exclusive, per replica)
            Consumer: Scheduler

    courier.notify (direct)
    └── notify.outbound [routing: notify]
            Consumer: content delivery

    courier.dlq (direct)
    └── dlq.conductor [routing: conductor]
            Manual processing
  `
}
