package events

import (
	"context"
	"fmt"

	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBus fans events out over a Redis pub/sub channel.
type RedisBus struct {
	client  *redis.Client
	channel string
	sink    Sink
}

// NewRedisBus connects to addr and checks the server answers.
func NewRedisBus(ctx context.Context, addr, channel string, sink Sink) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0, // use default DB
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error connecting to redis at %s: %w", addr, err)
	}
	return &RedisBus{client: client, channel: channel, sink: sink}, nil
}

func (b *RedisBus) Publish(ctx context.Context, event models.Event) error {
	body, err := encode(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, body).Err()
}

func (b *RedisBus) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("error subscribing to %s: %w", b.channel, err)
	}
	log.Info().Str("channel", b.channel).Msg("Subscribed to graph events on redis")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			forward(b.sink, []byte(msg.Payload), "redis")
		}
	}
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
