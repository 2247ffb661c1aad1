package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected message %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_RoutesEventsToActorAndTarget(t *testing.T) {
	hub, _ := startHub(t)
	actor, target, bystander := uuid.New(), uuid.New(), uuid.New()

	actorClient := NewClient(hub, nil, actor)
	targetClient := NewClient(hub, nil, target)
	otherClient := NewClient(hub, nil, bystander)
	hub.Register <- actorClient
	hub.Register <- targetClient
	hub.Register <- otherClient

	hub.Deliver(models.Event{ID: uuid.New(), Type: models.EventFollow, ActorID: actor, TargetID: target})

	msg := receive(t, targetClient)
	assert.Equal(t, models.EventFollow, msg.Action)
	receive(t, actorClient)
	assertNothing(t, otherClient)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub, _ := startHub(t)
	user := uuid.New()
	c := NewClient(hub, nil, user)
	hub.Register <- c
	hub.Unregister <- c

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("send channel was not closed")
	}

	// Events for a user with no connections are dropped quietly.
	hub.Deliver(models.Event{ID: uuid.New(), Type: models.EventUnfollow, ActorID: uuid.New(), TargetID: user})
}

func TestHub_ShutdownClosesClientsAndReleasesUnregister(t *testing.T) {
	hub, cancel := startHub(t)
	c := NewClient(hub, nil, uuid.New())
	hub.Register <- c
	cancel()

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("send channel was not closed on shutdown")
	}

	done := make(chan struct{})
	go func() {
		hub.unregister(c)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("unregister blocked after shutdown")
	}
}

func TestHub_ConnectAfterShutdownDoesNotBlock(t *testing.T) {
	hub, cancel := startHub(t)
	live := NewClient(hub, nil, uuid.New())
	require.True(t, hub.Connect(live))
	cancel()
	<-hub.done

	result := make(chan bool, 1)
	go func() {
		result <- hub.Connect(NewClient(hub, nil, uuid.New()))
	}()
	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Connect blocked after shutdown")
	}
}
