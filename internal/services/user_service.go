package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/apperrors"
	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/isdelr/ender-accounts/internal/store"
	"golang.org/x/crypto/bcrypt"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{4,16}$`)

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	Register(ctx context.Context, username, displayName, password string) (models.User, error)
	Authenticate(ctx context.Context, username, password string) (models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
	Search(ctx context.Context, fragment string) ([]models.UserSummary, error)
}

// UserService provides business logic for account management.
type UserService struct {
	store      store.UserStore
	bcryptCost int
}

// NewUserService creates a new UserService hashing passwords at the given bcrypt cost.
func NewUserService(st store.UserStore, bcryptCost int) *UserService {
	return &UserService{store: st, bcryptCost: bcryptCost}
}

// Register creates a new user with empty relation sets, hashing their password.
func (s *UserService) Register(ctx context.Context, username, displayName, password string) (models.User, error) {
	if !usernamePattern.MatchString(username) {
		return models.User{}, apperrors.Validation(
			"username must be between 4 and 16 characters and contain only lowercase letters, numbers, underscores and periods")
	}
	if password == "" {
		return models.User{}, apperrors.Validation("password is required")
	}
	if len(password) > maxPasswordBytes {
		return models.User{}, apperrors.Validation(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = username
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hashedPassword),
		Followers:    []uuid.UUID{},
		Following:    []uuid.UUID{},
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return models.User{}, apperrors.Conflict("username already exists")
		}
		return models.User{}, apperrors.StoreFailure("failed to create user", err)
	}

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// Authenticate verifies a user's credentials. Unknown users and wrong
// passwords produce the same error.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	if username == "" || password == "" {
		return models.User{}, apperrors.Validation("username or password is empty")
	}
	user, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, apperrors.Unauthenticated("username or password is incorrect", nil)
		}
		return models.User{}, apperrors.StoreFailure("failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, apperrors.Unauthenticated("username or password is incorrect", err)
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		return models.User{}, translateLookup(err)
	}
	user.PasswordHash = ""
	return user, nil
}

// Search returns users whose username contains fragment. Usernames are
// lowercase, so the fragment is lowered before matching.
func (s *UserService) Search(ctx context.Context, fragment string) ([]models.UserSummary, error) {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if fragment == "" {
		return nil, apperrors.Validation("search fragment is required")
	}
	users, err := s.store.SearchByUsername(ctx, fragment)
	if err != nil {
		return nil, apperrors.StoreFailure("failed to search users", err)
	}
	summaries := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	return summaries, nil
}
