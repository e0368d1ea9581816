// Package service holds the business rules of the blog.
//
// LAYERING:
//
//	Handler (HTTP)      → parses forms, renders pages, maps errors to responses
//	Service (rules)     → validates input, checks authorship, paginates
//	Repository (SQLite) → reads and writes rows
//
// Services take repository interfaces, never *sqlite.DB, so their tests run
// against in-memory fakes. They return apperror values; deciding whether a
// rule violation is an inline form error, a 404 or a redirect is the
// handler's job.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/paginate"
	"github.com/sakif/yatube/internal/repository"
)

// PageSize is the number of posts on every paginated listing.
const PageSize = paginate.DefaultSize

// PostInput is the editable part of a post, as submitted by a form.
type PostInput struct {
	Text    string
	GroupID *int64 // nil for "no group"
	// Image is the stored media path of a new upload. Empty keeps the
	// current image on edit.
	Image string
}

// PostService creates, edits and lists posts.
type PostService struct {
	posts  repository.PostRepository
	groups repository.GroupRepository
	users  repository.UserRepository
	logger *slog.Logger
}

func NewPostService(
	posts repository.PostRepository,
	groups repository.GroupRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *PostService {
	return &PostService{posts: posts, groups: groups, users: users, logger: logger}
}

// validate normalises in and checks the rules shared by Create and Update:
// the text must be non-blank and the group, if any, must exist.
func (s *PostService) validate(ctx context.Context, in *PostInput) error {
	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" {
		return apperror.ValidationFailed("text", "this field is required")
	}

	if in.GroupID == nil {
		return nil
	}
	if _, err := s.groups.GetGroupByID(ctx, *in.GroupID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("group", "select a valid group")
		}
		return fmt.Errorf("checking group %d: %w", *in.GroupID, err)
	}
	return nil
}

// Create validates in and stores a new post by authorID.
func (s *PostService) Create(ctx context.Context, authorID int64, in PostInput) (*model.Post, error) {
	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}

	post := &model.Post{
		Text:     in.Text,
		AuthorID: authorID,
		GroupID:  in.GroupID,
		Image:    in.Image,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.Int64("post_id", post.ID),
		slog.Int64("author_id", authorID),
	)
	return post, nil
}

// GetByID returns apperror.ErrNotFound for an unknown id.
func (s *PostService) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	return s.posts.GetPostByID(ctx, id)
}

// Update edits post id on behalf of requesterID.
//
// Only the author may edit. Anyone else gets apperror.ErrForbidden and the
// stored post is left untouched; the handler turns that into a redirect.
// Author and creation time never change.
func (s *PostService) Update(ctx context.Context, id, requesterID int64, in PostInput) (*model.Post, error) {
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != requesterID {
		s.logger.Warn("post edit refused",
			slog.Int64("post_id", id),
			slog.Int64("requester_id", requesterID),
		)
		return nil, apperror.Forbidden("only the author can edit this post")
	}

	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}

	post.Text = in.Text
	post.GroupID = in.GroupID
	if in.Image != "" {
		post.Image = in.Image
	}
	if err := s.posts.UpdatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("updating post %d: %w", id, err)
	}

	s.logger.Info("post updated", slog.Int64("post_id", id))
	return s.posts.GetPostByID(ctx, id)
}

// CanEdit reports whether viewerID may edit post.
func CanEdit(post *model.Post, viewerID int64) bool {
	return post != nil && post.AuthorID == viewerID
}

// Delete removes a post and its comments. Used by the admin CLI.
func (s *PostService) Delete(ctx context.Context, id int64) error {
	if err := s.posts.DeletePost(ctx, id); err != nil {
		return err
	}
	s.logger.Info("post deleted", slog.Int64("post_id", id))
	return nil
}

// ListAll is the home listing: every post, newest first.
func (s *PostService) ListAll(ctx context.Context, page int) (paginate.Page[model.Post], error) {
	return fetchPage(page,
		func() (int, error) { return s.posts.CountPosts(ctx) },
		func(opts repository.ListOptions) ([]model.Post, error) { return s.posts.ListPosts(ctx, opts) },
	)
}

// ListByGroup returns the group named by slug and one page of its posts.
func (s *PostService) ListByGroup(ctx context.Context, slug string, page int) (*model.Group, paginate.Page[model.Post], error) {
	group, err := s.groups.GetGroupBySlug(ctx, slug)
	if err != nil {
		return nil, paginate.Page[model.Post]{}, err
	}

	p, err := fetchPage(page,
		func() (int, error) { return s.posts.CountPostsByGroup(ctx, group.ID) },
		func(opts repository.ListOptions) ([]model.Post, error) {
			return s.posts.ListPostsByGroup(ctx, group.ID, opts)
		},
	)
	return group, p, err
}

// ListByAuthor returns the user named by username and one page of their
// posts. page.TotalItems is the author's post count.
func (s *PostService) ListByAuthor(ctx context.Context, username string, page int) (*model.User, paginate.Page[model.Post], error) {
	author, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, paginate.Page[model.Post]{}, err
	}

	p, err := fetchPage(page,
		func() (int, error) { return s.posts.CountPostsByAuthor(ctx, author.ID) },
		func(opts repository.ListOptions) ([]model.Post, error) {
			return s.posts.ListPostsByAuthor(ctx, author.ID, opts)
		},
	)
	return author, p, err
}

// CountByAuthor is the author's total post count, shown on the post page.
func (s *PostService) CountByAuthor(ctx context.Context, authorID int64) (int, error) {
	n, err := s.posts.CountPostsByAuthor(ctx, authorID)
	if err != nil {
		return 0, fmt.Errorf("counting posts by author %d: %w", authorID, err)
	}
	return n, nil
}

// fetchPage counts first so the requested number can be clamped before the
// window query runs.
func fetchPage(
	number int,
	count func() (int, error),
	list func(repository.ListOptions) ([]model.Post, error),
) (paginate.Page[model.Post], error) {
	total, err := count()
	if err != nil {
		return paginate.Page[model.Post]{}, fmt.Errorf("counting posts: %w", err)
	}

	w := paginate.NewWindow(total, number, PageSize)
	posts, err := list(repository.ListOptions{Limit: w.Limit(), Offset: w.Offset()})
	if err != nil {
		return paginate.Page[model.Post]{}, fmt.Errorf("listing posts: %w", err)
	}
	return paginate.FromWindow(posts, w), nil
}

// ParseID parses a path id. Anything that is not a positive integer is
// reported as not found, the same as an id that does not exist.
func ParseID(resource, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NotFound(resource, raw)
	}
	return id, nil
}
