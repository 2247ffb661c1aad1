package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/apperrors"
	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/isdelr/ender-accounts/internal/store"
	"github.com/rs/zerolog/log"
)

// PartialInconsistencyError reports a toggle that left exactly one of the two
// relation sets changed because both the second write and its compensation failed.
type PartialInconsistencyError struct {
	Err      *apperrors.Error
	ActorID  uuid.UUID
	TargetID uuid.UUID
	Follow   bool // direction the toggle was heading
}

func (e *PartialInconsistencyError) Error() string { return e.Err.Error() }

func (e *PartialInconsistencyError) Unwrap() error { return e.Err }

func newPartialInconsistency(actorID, targetID uuid.UUID, follow bool, writeErr, rollbackErr error) *PartialInconsistencyError {
	return &PartialInconsistencyError{
		Err: apperrors.New(apperrors.KindPartialInconsistency,
			fmt.Sprintf("%s's followers changed but %s's following did not", targetID, actorID),
			errors.Join(writeErr, rollbackErr)),
		ActorID:  actorID,
		TargetID: targetID,
		Follow:   follow,
	}
}

// RelationToggle flips the follow relation between an actor and a target.
type RelationToggle struct {
	store  store.UserStore
	events EventServiceProvider
	locks  *EdgeLocks
}

// NewRelationToggle creates a new RelationToggle.
func NewRelationToggle(st store.UserStore, events EventServiceProvider) *RelationToggle {
	return &RelationToggle{store: st, events: events, locks: &EdgeLocks{}}
}

// Locks returns the per-pair locks toggles hold while writing. Other writers of
// relation sets in this process share them.
func (t *RelationToggle) Locks() *EdgeLocks {
	return t.locks
}

// setOp is one single-record set mutation.
type setOp func(ctx context.Context, id uuid.UUID, field store.Field, member uuid.UUID) error

// Toggle follows target when actor does not follow it yet and unfollows
// otherwise, returning the resulting follow state. The target's followers set
// is written first and the actor's following set second; if the second write
// fails the first is reversed.
func (t *RelationToggle) Toggle(ctx context.Context, actorID, targetID uuid.UUID) (bool, error) {
	if actorID == targetID {
		return false, apperrors.Validation("users cannot follow themselves")
	}

	follow, err := t.flip(ctx, actorID, targetID)

	// Events go out after the pair lock is released; a slow broker must not
	// stall other toggles on the same stripe.
	var pi *PartialInconsistencyError
	switch {
	case errors.As(err, &pi):
		t.events.RecordEvent(ctx, models.EventInconsistency, "error", actorID, targetID, pi.Err.Message)
	case err != nil:
	case follow:
		t.events.RecordEvent(ctx, models.EventFollow, "info", actorID, targetID, "user followed")
	default:
		t.events.RecordEvent(ctx, models.EventUnfollow, "info", actorID, targetID, "user unfollowed")
	}
	return follow, err
}

// flip performs the paired writes under the pair lock.
func (t *RelationToggle) flip(ctx context.Context, actorID, targetID uuid.UUID) (bool, error) {
	unlock := t.locks.Lock(actorID, targetID)
	defer unlock()

	target, err := t.store.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, apperrors.NotFound("user not found")
		}
		return false, apperrors.StoreFailure("failed to load target user", err)
	}

	isFollowed := target.HasFollower(actorID)
	apply, undo := setOp(t.store.AddToSet), setOp(t.store.RemoveFromSet)
	if isFollowed {
		apply, undo = undo, apply
	}
	follow := !isFollowed

	if err := apply(ctx, targetID, store.FieldFollowers, actorID); err != nil {
		return false, apperrors.StoreFailure("failed to update followers", err)
	}

	if err := apply(ctx, actorID, store.FieldFollowing, targetID); err != nil {
		// The compensation must run even if the request was abandoned.
		rollbackErr := undo(context.WithoutCancel(ctx), targetID, store.FieldFollowers, actorID)
		if rollbackErr == nil {
			log.Warn().Err(err).
				Str("actor_id", actorID.String()).
				Str("target_id", targetID.String()).
				Msg("Following update failed, followers update rolled back")
			return false, apperrors.StoreFailure("failed to update following", err)
		}

		pi := newPartialInconsistency(actorID, targetID, follow, err, rollbackErr)
		log.Error().Err(pi).
			Str("actor_id", actorID.String()).
			Str("target_id", targetID.String()).
			Bool("follow", follow).
			Msg("Follow relation left half-applied")
		return false, pi
	}
	return follow, nil
}

// EdgeLocks serializes writes to the same unordered user pair within this
// process using a fixed set of striped mutexes.
type EdgeLocks struct {
	stripes [64]sync.Mutex
}

// Lock blocks until the stripe of the pair {a, b} is held.
func (l *EdgeLocks) Lock(a, b uuid.UUID) (unlock func()) {
	if bytesLess(b, a) {
		a, b = b, a
	}
	h := fnv.New32a()
	h.Write(a[:])
	h.Write(b[:])
	m := &l.stripes[h.Sum32()%uint32(len(l.stripes))]
	m.Lock()
	return m.Unlock
}

func bytesLess(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
