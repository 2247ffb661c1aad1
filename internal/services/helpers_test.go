package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/isdelr/ender-accounts/internal/store"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected store failure")

// faultyStore wraps a real store and fails the set writes selected by failOn.
type faultyStore struct {
	store.UserStore
	mu     sync.Mutex
	failOn func(op string, id uuid.UUID, field store.Field) bool
	getErr error
}

func (s *faultyStore) shouldFail(op string, id uuid.UUID, field store.Field) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failOn != nil && s.failOn(op, id, field)
}

func (s *faultyStore) AddToSet(ctx context.Context, id uuid.UUID, field store.Field, member uuid.UUID) error {
	if s.shouldFail("add", id, field) {
		return errInjected
	}
	return s.UserStore.AddToSet(ctx, id, field, member)
}

func (s *faultyStore) RemoveFromSet(ctx context.Context, id uuid.UUID, field store.Field, member uuid.UUID) error {
	if s.shouldFail("remove", id, field) {
		return errInjected
	}
	return s.UserStore.RemoveFromSet(ctx, id, field, member)
}

func (s *faultyStore) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.UserStore.GetByIDs(ctx, ids)
}

type recordedEvent struct {
	Type     string
	Level    string
	ActorID  uuid.UUID
	TargetID uuid.UUID
}

// recordingEvents captures RecordEvent calls.
type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEvents) RecordEvent(_ context.Context, eventType, level string, actorID, targetID uuid.UUID, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Type: eventType, Level: level, ActorID: actorID, TargetID: targetID})
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func seedUser(t *testing.T, st store.UserStore, username string) models.User {
	t.Helper()
	u := models.User{ID: uuid.New(), Username: username, DisplayName: username, PasswordHash: "hash"}
	require.NoError(t, st.Create(context.Background(), u))
	return u
}

// follow writes both sides of a relation directly.
func follow(t *testing.T, st store.UserStore, actor, target models.User) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.AddToSet(ctx, target.ID, store.FieldFollowers, actor.ID))
	require.NoError(t, st.AddToSet(ctx, actor.ID, store.FieldFollowing, target.ID))
}

func mustGet(t *testing.T, st store.UserStore, id uuid.UUID) models.User {
	t.Helper()
	u, err := st.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}
