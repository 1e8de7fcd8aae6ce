package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Courier/internal/domain"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует конверт в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,              // mandatory
			false,              // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishJSON оборачивает payload в конверт и публикует его.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, exchange, routingKey, msg)
}

// Notify публикует notify-событие планировщика.
// Потребитель: сервис доставки контента (вне этого репозитория).
func (p *Publisher) Notify(ctx context.Context, event domain.NotifyEvent) error {
	return p.PublishJSON(ctx, ExchangeNotify, RoutingKeyNotify, TypeNotify, event)
}

// PublishConductor публикует команду conductor'у.
func (p *Publisher) PublishConductor(ctx context.Context, msgType MessageType, payload any) error {
	return p.PublishJSON(ctx, ExchangeConductor, RoutingKeyInbound, msgType, payload)
}

// PublishEvent публикует доменное событие всем репликам планировщика.
func (p *Publisher) PublishEvent(ctx context.Context, msgType MessageType, payload any) error {
	return p.PublishJSON(ctx, ExchangeEvents, "", msgType, payload)
}
