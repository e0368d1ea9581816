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

var _ repository.PostRepository = (*DB)(nil)

// postSelect is shared by every post read. The JOINs denormalise the author
// name and group title/slug into each row.
//
// ORDER BY is spelled out on every list query (postOrder). Ties on
// created_at are broken by id so pagination is stable.
const postSelect = `
	SELECT p.id, p.text, p.created_at, p.author_id, u.username,
	       p.group_id, COALESCE(g.title, ''), COALESCE(g.slug, ''), p.image
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN post_groups g ON g.id = p.group_id`

const postOrder = ` ORDER BY p.created_at DESC, p.id DESC`

func scanPost(row interface{ Scan(...any) error }, p *model.Post) error {
	var groupID sql.NullInt64
	if err := row.Scan(
		&p.ID, &p.Text, &p.CreatedAt, &p.AuthorID, &p.AuthorUsername,
		&groupID, &p.GroupTitle, &p.GroupSlug, &p.Image,
	); err != nil {
		return err
	}
	p.GroupID = int64Ptr(groupID)
	return nil
}

// CreatePost inserts a post. created_at is assigned here and never updated.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	post.CreatedAt = db.timestamp()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (text, created_at, author_id, group_id, image)
		 VALUES (?, ?, ?, ?, ?)`,
		post.Text,
		post.CreatedAt,
		post.AuthorID,
		nullableInt64(post.GroupID),
		post.Image,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("group", "select a valid group")
		}
		return fmt.Errorf("sqlite: creating post: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading post id: %w", err)
	}
	post.ID = id
	return nil
}

func (db *DB) GetPostByID(ctx context.Context, id int64) (*model.Post, error) {
	var p model.Post
	row := db.conn.QueryRowContext(ctx, postSelect+` WHERE p.id = ?`, id)
	if err := scanPost(row, &p); err != nil {
		return nil, notFoundOr(err, apperror.NotFound("post", strconv.FormatInt(id, 10)),
			"sqlite: getting post %d", id)
	}
	return &p, nil
}

// UpdatePost writes the mutable fields: text, group and image. id,
// created_at and author_id are never touched.
func (db *DB) UpdatePost(ctx context.Context, post *model.Post) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE posts SET text = ?, group_id = ?, image = ? WHERE id = ?`,
		post.Text,
		nullableInt64(post.GroupID),
		post.Image,
		post.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("group", "select a valid group")
		}
		return fmt.Errorf("sqlite: updating post %d: %w", post.ID, err)
	}
	return checkAffected(result, apperror.NotFound("post", strconv.FormatInt(post.ID, 10)))
}

// DeletePost removes a post and, through the cascade, its comments.
func (db *DB) DeletePost(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %d: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("post", strconv.FormatInt(id, 10)))
}

func (db *DB) ListPosts(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	return db.listPosts(ctx, "all", "", opts)
}

func (db *DB) CountPosts(ctx context.Context) (int, error) {
	return db.count(ctx, "posts", `SELECT COUNT(*) FROM posts`)
}

func (db *DB) ListPostsByGroup(ctx context.Context, groupID int64, opts repository.ListOptions) ([]model.Post, error) {
	return db.listPosts(ctx, "group", ` WHERE p.group_id = ?`, opts, groupID)
}

func (db *DB) CountPostsByGroup(ctx context.Context, groupID int64) (int, error) {
	return db.count(ctx, "group posts", `SELECT COUNT(*) FROM posts WHERE group_id = ?`, groupID)
}

func (db *DB) ListPostsByAuthor(ctx context.Context, authorID int64, opts repository.ListOptions) ([]model.Post, error) {
	return db.listPosts(ctx, "author", ` WHERE p.author_id = ?`, opts, authorID)
}

func (db *DB) CountPostsByAuthor(ctx context.Context, authorID int64) (int, error) {
	return db.count(ctx, "author posts", `SELECT COUNT(*) FROM posts WHERE author_id = ?`, authorID)
}

// ListFeed returns posts written by anyone userID follows.
func (db *DB) ListFeed(ctx context.Context, userID int64, opts repository.ListOptions) ([]model.Post, error) {
	return db.listPosts(ctx, "feed",
		` WHERE p.author_id IN (SELECT f.author_id FROM follows f WHERE f.user_id = ?)`,
		opts, userID)
}

func (db *DB) CountFeed(ctx context.Context, userID int64) (int, error) {
	return db.count(ctx, "feed posts",
		`SELECT COUNT(*) FROM posts
		 WHERE author_id IN (SELECT author_id FROM follows WHERE user_id = ?)`, userID)
}

// listPosts runs postSelect + where + postOrder with a LIMIT/OFFSET window.
// args bind the placeholders in where; the window is appended after them.
func (db *DB) listPosts(ctx context.Context, what, where string, opts repository.ListOptions, args ...any) ([]model.Post, error) {
	limit, offset := limitOffset(opts.Limit, opts.Offset)

	rows, err := db.conn.QueryContext(ctx,
		postSelect+where+postOrder+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s posts: %w", what, err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0, max(opts.Limit, 0))
	for rows.Next() {
		var p model.Post
		if err := scanPost(rows, &p); err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating %s posts: %w", what, err)
	}
	return posts, nil
}

func (db *DB) count(ctx context.Context, what, query string, args ...any) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting %s: %w", what, err)
	}
	return n, nil
}
