// Package events carries graph events from the service layer to the
// websocket hub, either in process or through a shared broker so that every
// instance can reach its own connected clients.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/rs/zerolog/log"
)

// Publisher accepts graph events.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// Sink receives events that came off the bus.
type Sink interface {
	Deliver(event models.Event)
}

// Bus is a Publisher whose deliveries are pumped to a Sink by Run.
type Bus interface {
	Publisher
	// Run blocks until ctx is cancelled.
	Run(ctx context.Context) error
	Close() error
}

// LocalBus hands events straight to the sink.
type LocalBus struct {
	sink Sink
}

func NewLocalBus(sink Sink) *LocalBus {
	return &LocalBus{sink: sink}
}

func (b *LocalBus) Publish(_ context.Context, event models.Event) error {
	b.sink.Deliver(event)
	return nil
}

func (b *LocalBus) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (b *LocalBus) Close() error { return nil }

func encode(event models.Event) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return body, nil
}

// forward decodes a broker payload and hands it to the sink.
func forward(sink Sink, payload []byte, source string) {
	var event models.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Error().Err(err).Str("source", source).Msg("Dropping undecodable graph event")
		return
	}
	sink.Deliver(event)
}
