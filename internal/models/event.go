package models

import (
	"time"

	"github.com/google/uuid"
)

// Graph event types.
const (
	EventFollow        = "graph.follow"
	EventUnfollow      = "graph.unfollow"
	EventInconsistency = "graph.inconsistency"
)

// Event represents a change in the follow graph, delivered to the users it concerns.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`  // e.g., "graph.follow", "graph.inconsistency"
	Level     string    `json:"level"` // e.g., "info", "error"
	ActorID   uuid.UUID `json:"actorId"`
	TargetID  uuid.UUID `json:"targetId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
