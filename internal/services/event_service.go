package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/events"
	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	RecordEvent(ctx context.Context, eventType, level string, actorID, targetID uuid.UUID, message string)
}

// ActivityProvider serves the recent events that involve a user.
type ActivityProvider interface {
	GetRecentEvents(userID uuid.UUID, limit int) []models.Event
}

// recentCapacity bounds the in-process activity ring.
const recentCapacity = 512

// EventService logs graph events, keeps the most recent ones for the activity
// feed and publishes them to the bus.
type EventService struct {
	publisher events.Publisher

	mu     sync.Mutex
	recent []models.Event // ring buffer, next is the oldest slot once full
	next   int
}

// NewEventService creates a new EventService.
func NewEventService(publisher events.Publisher) *EventService {
	return &EventService{publisher: publisher, recent: make([]models.Event, 0, recentCapacity)}
}

// RecordEvent never fails the calling operation; a publish error is logged.
func (s *EventService) RecordEvent(ctx context.Context, eventType, level string, actorID, targetID uuid.UUID, message string) {
	event := models.Event{
		ID:        uuid.New(),
		Type:      eventType,
		Level:     level,
		ActorID:   actorID,
		TargetID:  targetID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.WithLevel(lvl).
		Str("type", eventType).
		Str("actor_id", actorID.String()).
		Str("target_id", targetID.String()).
		Msg(message)

	s.remember(event)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("Failed to publish graph event")
	}
}

// GetRecentEvents returns up to limit events, newest first, in which userID
// is the actor or the target.
func (s *EventService) GetRecentEvents(userID uuid.UUID, limit int) []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Event{}
	n := len(s.recent)
	for i := 0; i < n && len(out) < limit; i++ {
		// Walk backwards from the newest entry.
		e := s.recent[(s.next-1-i+n)%n]
		if e.ActorID == userID || e.TargetID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (s *EventService) remember(event models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.recent) < recentCapacity {
		s.recent = append(s.recent, event)
		s.next = len(s.recent) % recentCapacity
		return
	}
	s.recent[s.next] = event
	s.next = (s.next + 1) % recentCapacity
}
