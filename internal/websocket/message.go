package websocket

import (
	"encoding/json"

	"github.com/isdelr/ender-accounts/internal/models"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// NewEventMessage wraps a graph event for delivery to a client.
func NewEventMessage(event models.Event) []byte {
	return mustEncode(Message{Action: event.Type, Payload: event})
}

func mustEncode(msg Message) []byte {
	b, err := json.Marshal(msg)
	if err != nil {
		// Only reachable with unmarshalable payloads, which this package never builds.
		panic(err)
	}
	return b
}
