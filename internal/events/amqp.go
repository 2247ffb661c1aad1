package events

import (
	"context"
	"fmt"

	"github.com/isdelr/ender-accounts/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// AMQPBus publishes events to a fanout exchange; every instance binds its own
// exclusive queue to receive all of them.
type AMQPBus struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	sink     Sink
}

// NewAMQPBus dials url and declares the exchange.
func NewAMQPBus(url, exchange string, sink Sink) (*AMQPBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("error establishing connection with rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("error opening channel for rabbitmq: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error declaring exchange %s: %w", exchange, err)
	}
	return &AMQPBus{conn: conn, ch: ch, exchange: exchange, sink: sink}, nil
}

func (b *AMQPBus) Publish(ctx context.Context, event models.Event) error {
	body, err := encode(event)
	if err != nil {
		return err
	}
	return b.ch.PublishWithContext(ctx, b.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   event.ID.String(),
		Type:        event.Type,
		Timestamp:   event.CreatedAt,
		Body:        body,
	})
}

func (b *AMQPBus) Run(ctx context.Context) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("error opening consumer channel: %w", err)
	}
	defer ch.Close()

	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("error declaring queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, "", b.exchange, false, nil); err != nil {
		return fmt.Errorf("error binding queue to %s: %w", b.exchange, err)
	}
	deliveries, err := ch.Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("error consuming from %s: %w", queue.Name, err)
	}
	log.Info().Str("exchange", b.exchange).Str("queue", queue.Name).Msg("Consuming graph events from rabbitmq")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("rabbitmq delivery channel closed")
			}
			forward(b.sink, d.Body, "amqp")
		}
	}
}

func (b *AMQPBus) Close() error {
	b.ch.Close()
	return b.conn.Close()
}
