package database

import (
	"database/sql"

	_ "modernc.org/sqlite" // SQLite driver
)

// New creates a new database connection pool.
func New(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dataSourceName+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS users (
		id BLOB NOT NULL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- One row per set member; field is either "followers" or "following".
	CREATE TABLE IF NOT EXISTS user_relations (
		user_id BLOB NOT NULL REFERENCES users(id),
		field TEXT NOT NULL CHECK (field IN ('followers', 'following')),
		member BLOB NOT NULL,
		PRIMARY KEY (user_id, field, member)
	);
	`
	_, err := db.Exec(sqlStmt)
	return err
}
