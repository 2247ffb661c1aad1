package websocket

import (
	"context"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/rs/zerolog/log"
)

// Hub maintains the set of active clients and routes graph events to the
// users they concern. All map access happens on the Run goroutine.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// A map of user IDs to the connections that user has open.
	subscriptions map[uuid.UUID]map[*Client]bool

	// Events waiting to be routed.
	notify chan models.Event

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Closed once Run has returned.
	done chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[uuid.UUID]map[*Client]bool),
		notify:        make(chan models.Event, 256),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		done:          make(chan struct{}),
	}
}

// Deliver queues an event for routing. It never blocks the caller; when the
// queue is full the event is dropped.
func (h *Hub) Deliver(event models.Event) {
	select {
	case h.notify <- event:
	default:
		log.Warn().Str("type", event.Type).Str("event_id", event.ID.String()).Msg("Hub queue full, dropping event")
	}
}

// Run starts the Hub's message processing loop.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.Send)
			}
			h.clients = make(map[*Client]bool)
			h.subscriptions = make(map[uuid.UUID]map[*Client]bool)
			return
		case client := <-h.Register:
			h.clients[client] = true
			h.addSubscription(client)
			log.Info().Int("total_clients", len(h.clients)).Str("user_id", client.UserID.String()).Msg("Client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case event := <-h.notify:
			message := NewEventMessage(event)
			h.sendTo(event.TargetID, message)
			if event.ActorID != event.TargetID {
				h.sendTo(event.ActorID, message)
			}
		}
	}
}

// sendTo writes message to every connection of userID, dropping clients that
// cannot keep up.
func (h *Hub) sendTo(userID uuid.UUID, message []byte) {
	for client := range h.subscriptions[userID] {
		select {
		case client.Send <- message:
		default:
			h.drop(client)
		}
	}
}

// Connect attaches client to the hub. It reports false once the hub has
// stopped, in which case the caller owns the connection and must close it.
func (h *Hub) Connect(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// unregister detaches client unless the hub has already stopped.
func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addSubscription(client *Client) {
	if h.subscriptions[client.UserID] == nil {
		h.subscriptions[client.UserID] = make(map[*Client]bool)
	}
	h.subscriptions[client.UserID][client] = true
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	if subs, ok := h.subscriptions[client.UserID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscriptions, client.UserID)
		}
	}
	close(client.Send)
}
