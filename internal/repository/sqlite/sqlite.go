// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no CGo and no C compiler, so it
// cross-compiles everywhere Go does. It registers itself with database/sql as "sqlite".
//
// A single *DB satisfies every repository interface (users, groups, posts,
// comments, follows). Method names carry the entity (CreatePost, ListGroups…)
// so one type can implement them all without collisions.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/yatube.db" → file-based database (persistent)
//   - ":memory:"       → in-memory database (tests)
//
// PRAGMAs ARE PER CONNECTION:
// database/sql keeps a pool, and PRAGMA foreign_keys only affects the
// connection it ran on. We pass it through the DSN (_pragma=...) so every
// pooled connection gets it. An in-memory database exists only inside one
// connection, so the pool is pinned to a single connection in that case.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if !isMemory(dbPath) {
		// WAL lets readers proceed while a write is in progress.
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
		}
	}

	// Repeated here for DSNs that drop the _pragma parameters.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn, now: time.Now}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func isMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// timestamp normalises times before they are written. Everything is stored in
// UTC so the text representation sorts the same way the instants do.
func (db *DB) timestamp() time.Time {
	return db.now().UTC()
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
// modernc.org/sqlite surfaces constraint failures as errors whose text
// contains "UNIQUE constraint failed".
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// checkAffected turns "0 rows affected" into notFound.
func checkAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func limitOffset(limit, offset int) (int, int) {
	// SQLite treats a negative LIMIT as "no limit".
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
//
// post_groups rather than "groups": GROUPS is a keyword in SQLite window
// frames, and quoting it everywhere is error-prone.
func (db *DB) migrate() error {
	statements := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				username      TEXT NOT NULL UNIQUE,
				email         TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL DEFAULT '',
				github_id     INTEGER UNIQUE,
				created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
		{"post_groups", `
			CREATE TABLE IF NOT EXISTS post_groups (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				title       TEXT NOT NULL,
				slug        TEXT NOT NULL UNIQUE,
				description TEXT NOT NULL DEFAULT ''
			);`},
		{"posts", `
			CREATE TABLE IF NOT EXISTS posts (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				text       TEXT NOT NULL CHECK (text <> ''),
				created_at DATETIME NOT NULL,
				author_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				group_id   INTEGER REFERENCES post_groups(id) ON DELETE SET NULL,
				image      TEXT NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
			CREATE INDEX IF NOT EXISTS idx_posts_author_id ON posts(author_id);
			CREATE INDEX IF NOT EXISTS idx_posts_group_id ON posts(group_id);`},
		{"comments", `
			CREATE TABLE IF NOT EXISTS comments (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				post_id    INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				author_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				text       TEXT NOT NULL CHECK (text <> ''),
				created_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);`},
		{"follows", `
			CREATE TABLE IF NOT EXISTS follows (
				id        INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id   INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				CONSTRAINT unique_follow UNIQUE (user_id, author_id),
				CONSTRAINT no_self_follow CHECK (user_id <> author_id)
			);
			CREATE INDEX IF NOT EXISTS idx_follows_author_id ON follows(author_id);`},
	}

	for _, st := range statements {
		if _, err := db.conn.Exec(st.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", st.name, err)
		}
	}
	return nil
}

// nullableInt64 converts a *int64 into something database/sql can bind.
func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

// notFoundOr maps sql.ErrNoRows to notFound and wraps everything else.
func notFoundOr(err error, notFound error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
