package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/repository"
)

var _ repository.FollowRepository = (*DB)(nil)

// CreateFollow inserts the edge user → author.
//
// IDEMPOTENCE UNDER CONCURRENCY:
// There is no "SELECT then INSERT" here: two requests could both see "not
// following" and both insert. Instead the UNIQUE (user_id, author_id)
// constraint decides, and ON CONFLICT DO NOTHING turns the loser into a
// no-op. RowsAffected tells us which writer we were.
func (db *DB) CreateFollow(ctx context.Context, userID, authorID int64) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO follows (user_id, author_id) VALUES (?, ?)
		 ON CONFLICT (user_id, author_id) DO NOTHING`,
		userID, authorID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("sqlite: following %d -> %d: %w", userID, authorID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n == 1, nil
}

func (db *DB) DeleteFollow(ctx context.Context, userID, authorID int64) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM follows WHERE user_id = ? AND author_id = ?`, userID, authorID)
	if err != nil {
		return fmt.Errorf("sqlite: unfollowing %d -> %d: %w", userID, authorID, err)
	}
	return checkAffected(result, apperror.NotFound("follow", fmt.Sprintf("%d->%d", userID, authorID)))
}

func (db *DB) IsFollowing(ctx context.Context, userID, authorID int64) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM follows WHERE user_id = ? AND author_id = ?)`,
		userID, authorID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking follow %d -> %d: %w", userID, authorID, err)
	}
	return exists, nil
}

func (db *DB) CountFollowers(ctx context.Context, authorID int64) (int, error) {
	return db.count(ctx, "followers", `SELECT COUNT(*) FROM follows WHERE author_id = ?`, authorID)
}

func (db *DB) CountFollowing(ctx context.Context, userID int64) (int, error) {
	return db.count(ctx, "following", `SELECT COUNT(*) FROM follows WHERE user_id = ?`, userID)
}
