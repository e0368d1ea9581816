package sqlite

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/repository"
)

var _ repository.GroupRepository = (*DB)(nil)

func (db *DB) CreateGroup(ctx context.Context, group *model.Group) error {
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO post_groups (title, slug, description) VALUES (?, ?, ?)`,
		group.Title, group.Slug, group.Description,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("group", group.Slug)
		}
		return fmt.Errorf("sqlite: creating group %q: %w", group.Slug, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading group id: %w", err)
	}
	group.ID = id
	return nil
}

func (db *DB) GetGroupByID(ctx context.Context, id int64) (*model.Group, error) {
	var g model.Group
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, slug, description FROM post_groups WHERE id = ?`, id,
	).Scan(&g.ID, &g.Title, &g.Slug, &g.Description)
	if err != nil {
		return nil, notFoundOr(err, apperror.NotFound("group", strconv.FormatInt(id, 10)),
			"sqlite: getting group %d", id)
	}
	return &g, nil
}

func (db *DB) GetGroupBySlug(ctx context.Context, slug string) (*model.Group, error) {
	var g model.Group
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, slug, description FROM post_groups WHERE slug = ?`, slug,
	).Scan(&g.ID, &g.Title, &g.Slug, &g.Description)
	if err != nil {
		return nil, notFoundOr(err, apperror.NotFound("group", slug),
			"sqlite: getting group %q", slug)
	}
	return &g, nil
}

// ListGroups returns every group ordered by id, the order the post form
// offers them in.
func (db *DB) ListGroups(ctx context.Context) ([]model.Group, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, slug, description FROM post_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing groups: %w", err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Title, &g.Slug, &g.Description); err != nil {
			return nil, fmt.Errorf("sqlite: scanning group row: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating groups: %w", err)
	}
	return groups, nil
}

// DeleteGroup removes a group. Posts that referenced it keep existing with
// group_id cleared (ON DELETE SET NULL).
func (db *DB) DeleteGroup(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM post_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting group %d: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("group", strconv.FormatInt(id, 10)))
}
