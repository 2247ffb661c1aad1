// Package store persists user records and their followers/following sets.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/models"
)

var (
	// ErrNotFound is returned when no record matches the key.
	ErrNotFound = errors.New("user not found")
	// ErrConflict is returned when a username is already taken.
	ErrConflict = errors.New("username already exists")
)

// Field names a set-valued attribute of a user record.
type Field string

const (
	FieldFollowers Field = "followers"
	FieldFollowing Field = "following"
)

// Validate rejects anything other than the two relation sets.
func (f Field) Validate() error {
	switch f {
	case FieldFollowers, FieldFollowing:
		return nil
	}
	return fmt.Errorf("unknown set field %q", string(f))
}

// UserStore is the persistence contract for user records. Every mutation is
// an independent write against a single record.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	SearchByUsername(ctx context.Context, fragment string) ([]models.User, error)
	AddToSet(ctx context.Context, id uuid.UUID, field Field, member uuid.UUID) error
	RemoveFromSet(ctx context.Context, id uuid.UUID, field Field, member uuid.UUID) error
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	Create(ctx context.Context, user models.User) error
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
	Close() error
}
