package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user account together with its denormalized relation sets.
type User struct {
	ID           uuid.UUID   `json:"id"`
	Username     string      `json:"username"`
	DisplayName  string      `json:"displayName"`
	PasswordHash string      `json:"-"` // Never expose this to the client
	Followers    []uuid.UUID `json:"-"` // Who follows this user
	Following    []uuid.UUID `json:"-"` // Whom this user follows
	CreatedAt    time.Time   `json:"createdAt"`
}

// Summary projects the user onto the fields used in list responses.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName}
}

// HasFollower reports whether id is in the followers set.
func (u User) HasFollower(id uuid.UUID) bool {
	return contains(u.Followers, id)
}

// IsFollowing reports whether id is in the following set.
func (u User) IsFollowing(id uuid.UUID) bool {
	return contains(u.Following, id)
}

func contains(set []uuid.UUID, id uuid.UUID) bool {
	for _, member := range set {
		if member == id {
			return true
		}
	}
	return false
}

// UserSummary is the minimal projection of a user.
type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
}

// Profile is a user summary annotated with relation counts and the caller's follow state.
type Profile struct {
	UserSummary
	Followers int  `json:"followers"`
	Following int  `json:"following"`
	Followed  bool `json:"followed"`
}

// FollowList is one side of a user's relations plus the entries the caller also follows.
type FollowList struct {
	Users   []UserSummary `json:"users"`
	Mutuals []uuid.UUID   `json:"mutuals"`
}
