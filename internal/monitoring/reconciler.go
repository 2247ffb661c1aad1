package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/isdelr/ender-accounts/internal/services"
	"github.com/isdelr/ender-accounts/internal/store"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const reconcileBatchSize = 500

// Report summarizes one reconciliation pass.
type Report struct {
	Scanned int
	Added   int
	Removed int
}

// Reconciler periodically repairs follow edges that are visible from only
// one side. A followers entry is authoritative: the matching following
// entry is added when missing, and following entries without a matching
// followers entry are removed. A scan only nominates suspect edges; each one
// is re-read under its pair lock before anything is written.
type Reconciler struct {
	store  store.UserStore
	events services.EventServiceProvider
	locks  *services.EdgeLocks
	cron   *cron.Cron
}

// NewReconciler creates a new reconciler instance. locks must be the set the
// process's RelationToggle holds; nil gives the reconciler a private set.
func NewReconciler(st store.UserStore, events services.EventServiceProvider, locks *services.EdgeLocks) *Reconciler {
	if locks == nil {
		locks = &services.EdgeLocks{}
	}
	return &Reconciler{store: st, events: events, locks: locks}
}

// repair is the outcome of re-checking one edge.
type repair int

const (
	repairNone repair = iota
	repairAddedFollowing
	repairDroppedFollowing
	repairDroppedFollower
)

func (r repair) message() string {
	switch r {
	case repairAddedFollowing:
		return "added missing following entry"
	case repairDroppedFollowing:
		return "removed following entry without matching follower"
	case repairDroppedFollower:
		return "removed follower without a user record"
	}
	return ""
}

// Start schedules Reconcile on spec (standard cron syntax or descriptors such
// as "@every 15m"). A run that is still going when the next one is due is skipped.
func (r *Reconciler) Start(spec string) error {
	logger := cronLogger{}
	r.cron = cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	_, err := r.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := r.Reconcile(ctx); err != nil {
			log.Error().Err(err).Msg("Reconciler: pass failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	log.Info().Str("schedule", spec).Msg("Starting follow-set reconciler...")
	r.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
	log.Info().Msg("Stopping follow-set reconciler.")
}

// Reconcile scans every user once and repairs one-sided edges.
func (r *Reconciler) Reconcile(ctx context.Context) (Report, error) {
	var report Report

	ids, err := r.store.ListIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list users: %w", err)
	}

	users := make(map[uuid.UUID]models.User, len(ids))
	for start := 0; start < len(ids); start += reconcileBatchSize {
		end := min(start+reconcileBatchSize, len(ids))
		batch, err := r.store.GetByIDs(ctx, ids[start:end])
		if err != nil {
			return report, fmt.Errorf("failed to load users: %w", err)
		}
		for _, u := range batch {
			users[u.ID] = u
		}
	}
	report.Scanned = len(users)

	for _, user := range users {
		for _, followeeID := range user.Following {
			if followee, ok := users[followeeID]; ok && followee.HasFollower(user.ID) {
				continue
			}
			if err := r.settle(ctx, &report, user.ID, followeeID); err != nil {
				return report, err
			}
		}
		for _, followerID := range user.Followers {
			if follower, ok := users[followerID]; ok && follower.IsFollowing(user.ID) {
				continue
			}
			if err := r.settle(ctx, &report, followerID, user.ID); err != nil {
				return report, err
			}
		}
	}

	log.Info().
		Int("scanned", report.Scanned).
		Int("added", report.Added).
		Int("removed", report.Removed).
		Msg("Reconciler: pass complete")
	return report, nil
}

// settle repairs the edge follower -> followee if it is still one-sided and
// records the outcome after the pair lock is released.
func (r *Reconciler) settle(ctx context.Context, report *Report, followerID, followeeID uuid.UUID) error {
	outcome, err := r.repairEdge(ctx, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("failed to repair %s -> %s: %w", followerID, followeeID, err)
	}
	switch outcome {
	case repairNone:
		return nil
	case repairAddedFollowing:
		report.Added++
	default:
		report.Removed++
	}
	r.events.RecordEvent(ctx, models.EventInconsistency, "warn", followerID, followeeID, "reconciler "+outcome.message())
	return nil
}

// repairEdge re-reads both endpoints under the pair lock and fixes whichever
// half disagrees with the followers side.
func (r *Reconciler) repairEdge(ctx context.Context, followerID, followeeID uuid.UUID) (repair, error) {
	unlock := r.locks.Lock(followerID, followeeID)
	defer unlock()

	follower, followerFound, err := r.lookup(ctx, followerID)
	if err != nil {
		return repairNone, err
	}
	followee, followeeFound, err := r.lookup(ctx, followeeID)
	if err != nil {
		return repairNone, err
	}

	hasFollower := followeeFound && followee.HasFollower(followerID)
	isFollowing := followerFound && follower.IsFollowing(followeeID)

	switch {
	case hasFollower && !followerFound:
		return repairDroppedFollower, r.store.RemoveFromSet(ctx, followeeID, store.FieldFollowers, followerID)
	case hasFollower && !isFollowing:
		return repairAddedFollowing, r.store.AddToSet(ctx, followerID, store.FieldFollowing, followeeID)
	case isFollowing && !hasFollower:
		return repairDroppedFollowing, r.store.RemoveFromSet(ctx, followerID, store.FieldFollowing, followeeID)
	}
	return repairNone, nil
}

// lookup reads one user fresh. Only store.ErrNotFound counts as absent.
func (r *Reconciler) lookup(ctx context.Context, id uuid.UUID) (models.User, bool, error) {
	user, err := r.store.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, err
	}
	return user, true, nil
}

// cronLogger routes cron's own logging through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
