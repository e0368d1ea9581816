package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password_hash, github_id, created_at`

func scanUser(row interface{ Scan(...any) error }, u *model.User) error {
	var githubID sql.NullInt64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &githubID, &u.CreatedAt); err != nil {
		return err
	}
	u.GitHubID = int64Ptr(githubID)
	return nil
}

// Create inserts a new user. The username must be unique; a clash is
// reported as apperror.ErrConflict rather than a raw driver error.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	user.CreatedAt = db.timestamp()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, github_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.PasswordHash,
		nullableInt64(user.GitHubID),
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading user id: %w", err)
	}
	user.ID = id
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err := scanUser(row, &u); err != nil {
		return nil, notFoundOr(err, apperror.NotFound("user", strconv.FormatInt(id, 10)),
			"sqlite: getting user %d", id)
	}
	return &u, nil
}

func (db *DB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	if err := scanUser(row, &u); err != nil {
		return nil, notFoundOr(err, apperror.NotFound("user", username),
			"sqlite: getting user %q", username)
	}
	return &u, nil
}

// UpsertGitHub inserts or refreshes a user keyed by GitHub ID.
//
// The internal ID and username are kept on subsequent logins: a GitHub login
// rename must not break existing /profile/{username}/ links. Only the email
// is refreshed.
func (db *DB) UpsertGitHub(ctx context.Context, user *model.User) error {
	if user.GitHubID == nil {
		return fmt.Errorf("sqlite: upserting user %q: github id is required", user.Username)
	}

	var existing model.User
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE github_id = ?`, *user.GitHubID)
	err := scanUser(row, &existing)
	switch {
	case err == sql.ErrNoRows:
		return db.Create(ctx, user)
	case err != nil:
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", *user.GitHubID, err)
	}

	if _, err := db.conn.ExecContext(ctx,
		`UPDATE users SET email = ? WHERE id = ?`, user.Email, existing.ID,
	); err != nil {
		return fmt.Errorf("sqlite: updating user %d: %w", existing.ID, err)
	}

	existing.Email = user.Email
	*user = existing
	return nil
}

// DeleteUser removes a user. Their posts, comments and follow edges (in both
// directions) go with them through ON DELETE CASCADE.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %d: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("user", strconv.FormatInt(id, 10)))
}
