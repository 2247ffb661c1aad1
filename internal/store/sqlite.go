package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore keeps users in the users table and their relation sets in
// user_relations, one row per member.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over a migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const userColumns = "id, username, display_name, password_hash, created_at"

func (s *SQLiteStore) GetByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id[:])
	return s.getOne(ctx, row)
}

func (s *SQLiteStore) GetByUsername(ctx context.Context, username string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
	return s.getOne(ctx, row)
}

func (s *SQLiteStore) SearchByUsername(ctx context.Context, fragment string) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE instr(username, ?) > 0 ORDER BY username", fragment)
	if err != nil {
		return nil, err
	}
	return s.scanUsers(ctx, rows)
}

func (s *SQLiteStore) AddToSet(ctx context.Context, id uuid.UUID, field Field, member uuid.UUID) error {
	if err := field.Validate(); err != nil {
		return err
	}
	if err := s.ensureExists(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_relations (user_id, field, member) VALUES (?, ?, ?)",
		id[:], string(field), member[:])
	return err
}

func (s *SQLiteStore) RemoveFromSet(ctx context.Context, id uuid.UUID, field Field, member uuid.UUID) error {
	if err := field.Validate(); err != nil {
		return err
	}
	if err := s.ensureExists(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM user_relations WHERE user_id = ? AND field = ? AND member = ?",
		id[:], string(field), member[:])
	return err
}

func (s *SQLiteStore) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	placeholders, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id IN ("+placeholders+") ORDER BY username", args...)
	if err != nil {
		return nil, err
	}
	return s.scanUsers(ctx, rows)
}

func (s *SQLiteStore) Create(ctx context.Context, user models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO users (id, username, display_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID[:], user.Username, user.DisplayName, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}

	insert := func(field Field, members []uuid.UUID) error {
		for _, m := range members {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO user_relations (user_id, field, member) VALUES (?, ?, ?)",
				user.ID[:], string(field), m[:]); err != nil {
				return err
			}
		}
		return nil
	}
	if err := insert(FieldFollowers, user.Followers); err != nil {
		return err
	}
	if err := insert(FieldFollowing, user.Following); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM users")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.FromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureExists(ctx context.Context, id uuid.UUID) error {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", id[:]).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *SQLiteStore) getOne(ctx context.Context, row *sql.Row) (models.User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	users := []models.User{user}
	if err := s.loadRelations(ctx, users); err != nil {
		return models.User{}, err
	}
	return users[0], nil
}

func (s *SQLiteStore) scanUsers(ctx context.Context, rows *sql.Rows) ([]models.User, error) {
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadRelations(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

// loadRelations fills the followers/following sets of users in one query.
func (s *SQLiteStore) loadRelations(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	index := make(map[uuid.UUID]int, len(users))
	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		index[u.ID] = i
		ids[i] = u.ID
		users[i].Followers = []uuid.UUID{}
		users[i].Following = []uuid.UUID{}
	}

	placeholders, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, field, member FROM user_relations WHERE user_id IN ("+placeholders+")", args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var rawUser, rawMember []byte
		var field string
		if err := rows.Scan(&rawUser, &field, &rawMember); err != nil {
			return err
		}
		owner, err := uuid.FromBytes(rawUser)
		if err != nil {
			return fmt.Errorf("corrupt relation owner: %w", err)
		}
		member, err := uuid.FromBytes(rawMember)
		if err != nil {
			return fmt.Errorf("corrupt relation member: %w", err)
		}
		u := &users[index[owner]]
		switch Field(field) {
		case FieldFollowers:
			u.Followers = append(u.Followers, member)
		case FieldFollowing:
			u.Following = append(u.Following, member)
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (models.User, error) {
	var user models.User
	var rawID []byte
	if err := row.Scan(&rawID, &user.Username, &user.DisplayName, &user.PasswordHash, &user.CreatedAt); err != nil {
		return models.User{}, err
	}
	id, err := uuid.FromBytes(rawID)
	if err != nil {
		return models.User{}, fmt.Errorf("corrupt user id: %w", err)
	}
	user.ID = id
	return user, nil
}

func inClause(ids []uuid.UUID) (string, []any) {
	args := make([]any, len(ids))
	for i := range ids {
		args[i] = ids[i][:]
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
