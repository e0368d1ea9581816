// Package repository declares the storage contracts the service layer depends on.
//
// The sqlite sub-package provides the only implementation; services and
// their tests only ever see these interfaces.
package repository

import (
	"context"

	"github.com/sakif/yatube/internal/model"
)

// ListOptions is a LIMIT/OFFSET window. Limit <= 0 means "no limit".
type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpsertGitHub(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id int64) error
}

type GroupRepository interface {
	CreateGroup(ctx context.Context, group *model.Group) error
	GetGroupByID(ctx context.Context, id int64) (*model.Group, error)
	GetGroupBySlug(ctx context.Context, slug string) (*model.Group, error)
	ListGroups(ctx context.Context) ([]model.Group, error)
	DeleteGroup(ctx context.Context, id int64) error
}

// PostRepository lists are always ordered newest first.
type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPostByID(ctx context.Context, id int64) (*model.Post, error)
	UpdatePost(ctx context.Context, post *model.Post) error
	DeletePost(ctx context.Context, id int64) error

	ListPosts(ctx context.Context, opts ListOptions) ([]model.Post, error)
	CountPosts(ctx context.Context) (int, error)
	ListPostsByGroup(ctx context.Context, groupID int64, opts ListOptions) ([]model.Post, error)
	CountPostsByGroup(ctx context.Context, groupID int64) (int, error)
	ListPostsByAuthor(ctx context.Context, authorID int64, opts ListOptions) ([]model.Post, error)
	CountPostsByAuthor(ctx context.Context, authorID int64) (int, error)
	ListFeed(ctx context.Context, userID int64, opts ListOptions) ([]model.Post, error)
	CountFeed(ctx context.Context, userID int64) (int, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	ListCommentsByPost(ctx context.Context, postID int64) ([]model.Comment, error)
}

type FollowRepository interface {
	// CreateFollow inserts the edge and reports whether a new row was written.
	// An existing edge is not an error: created is false.
	CreateFollow(ctx context.Context, userID, authorID int64) (created bool, err error)
	DeleteFollow(ctx context.Context, userID, authorID int64) error
	IsFollowing(ctx context.Context, userID, authorID int64) (bool, error)
	CountFollowers(ctx context.Context, authorID int64) (int, error)
	CountFollowing(ctx context.Context, userID int64) (int, error)
}
