package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/database"
	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSQLiteStore opens a migrated database file under t.TempDir. A file is
// used instead of :memory: so every pooled connection sees the same data.
func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	st := NewSQLiteStore(db)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteStore(t *testing.T) {
	runContract(t, func(t *testing.T) UserStore {
		return newTestSQLiteStore(t)
	})
}

func TestSQLiteStore_CreateWithInitialSets(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLiteStore(t)

	friend := uuid.New()
	user := models.User{
		ID:        uuid.New(),
		Username:  "alice",
		Followers: []uuid.UUID{friend},
		Following: []uuid.UUID{friend},
	}
	require.NoError(t, st.Create(ctx, user))

	got, err := st.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{friend}, got.Followers)
	assert.Equal(t, []uuid.UUID{friend}, got.Following)
}

func TestSQLiteStore_CreateRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLiteStore(t)

	id := uuid.New()
	require.NoError(t, st.Create(ctx, models.User{ID: id, Username: "alice"}))
	assert.ErrorIs(t, st.Create(ctx, models.User{ID: id, Username: "bobby"}), ErrConflict)
}
