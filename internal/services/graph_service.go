package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/apperrors"
	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/isdelr/ender-accounts/internal/store"
)

// GraphServiceProvider defines the interface for social graph services.
type GraphServiceProvider interface {
	GetFollowing(ctx context.Context, targetID, callerID uuid.UUID) (models.FollowList, error)
	GetFollowers(ctx context.Context, targetID, callerID uuid.UUID) (models.FollowList, error)
	ToggleFollow(ctx context.Context, callerID, targetID uuid.UUID) (bool, error)
	GetProfile(ctx context.Context, username string, callerID *uuid.UUID) (models.Profile, error)
	GetProfileByID(ctx context.Context, targetID uuid.UUID, callerID *uuid.UUID) (models.Profile, error)
}

// GraphService answers follower/following queries and flips follow state.
type GraphService struct {
	store  store.UserStore
	toggle *RelationToggle
}

// NewGraphService creates a new GraphService.
func NewGraphService(st store.UserStore, toggle *RelationToggle) *GraphService {
	return &GraphService{store: st, toggle: toggle}
}

// GetFollowing lists whom target follows and which of them the caller follows too.
func (s *GraphService) GetFollowing(ctx context.Context, targetID, callerID uuid.UUID) (models.FollowList, error) {
	return s.listRelation(ctx, targetID, callerID, func(u models.User) []uuid.UUID { return u.Following })
}

// GetFollowers lists who follows target and which of them the caller follows.
func (s *GraphService) GetFollowers(ctx context.Context, targetID, callerID uuid.UUID) (models.FollowList, error) {
	return s.listRelation(ctx, targetID, callerID, func(u models.User) []uuid.UUID { return u.Followers })
}

// ToggleFollow follows or unfollows target on behalf of the caller.
func (s *GraphService) ToggleFollow(ctx context.Context, callerID, targetID uuid.UUID) (bool, error) {
	return s.toggle.Toggle(ctx, callerID, targetID)
}

// GetProfile resolves a user by username. callerID is nil for anonymous requests.
func (s *GraphService) GetProfile(ctx context.Context, username string, callerID *uuid.UUID) (models.Profile, error) {
	user, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return models.Profile{}, translateLookup(err)
	}
	return buildProfile(user, callerID), nil
}

// GetProfileByID resolves a user by identity. callerID is nil for anonymous requests.
func (s *GraphService) GetProfileByID(ctx context.Context, targetID uuid.UUID, callerID *uuid.UUID) (models.Profile, error) {
	user, err := s.store.GetByID(ctx, targetID)
	if err != nil {
		return models.Profile{}, translateLookup(err)
	}
	return buildProfile(user, callerID), nil
}

func (s *GraphService) listRelation(ctx context.Context, targetID, callerID uuid.UUID, side func(models.User) []uuid.UUID) (models.FollowList, error) {
	target, err := s.store.GetByID(ctx, targetID)
	if err != nil {
		return models.FollowList{}, translateLookup(err)
	}

	ids := side(target)
	list := models.FollowList{Users: []models.UserSummary{}, Mutuals: []uuid.UUID{}}
	if len(ids) == 0 {
		return list, nil
	}

	related, err := s.store.GetByIDs(ctx, ids)
	if err != nil {
		return models.FollowList{}, apperrors.StoreFailure("failed to load related users", err)
	}
	// Mutuals are drawn from resolved users only so they never name an id missing from Users.
	relatedIDs := make([]uuid.UUID, 0, len(related))
	for _, u := range related {
		list.Users = append(list.Users, u.Summary())
		relatedIDs = append(relatedIDs, u.ID)
	}

	callerFollowing, err := s.followingOf(ctx, callerID, target)
	if err != nil {
		return models.FollowList{}, err
	}
	list.Mutuals = Mutuals(relatedIDs, callerFollowing)
	return list, nil
}

// followingOf returns the caller's following set; a caller without a record follows nobody.
func (s *GraphService) followingOf(ctx context.Context, callerID uuid.UUID, loaded models.User) ([]uuid.UUID, error) {
	if callerID == loaded.ID {
		return loaded.Following, nil
	}
	caller, err := s.store.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.StoreFailure("failed to load caller", err)
	}
	return caller.Following, nil
}

func buildProfile(user models.User, callerID *uuid.UUID) models.Profile {
	return models.Profile{
		UserSummary: user.Summary(),
		Followers:   len(user.Followers),
		Following:   len(user.Following),
		Followed:    callerID != nil && user.HasFollower(*callerID),
	}
}

func translateLookup(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("user not found")
	}
	return apperrors.StoreFailure("failed to load user", err)
}
