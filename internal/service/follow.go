package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/paginate"
	"github.com/sakif/yatube/internal/repository"
)

// FollowService maintains the follow graph and derives the feed.
type FollowService struct {
	follows repository.FollowRepository
	users   repository.UserRepository
	posts   repository.PostRepository
	logger  *slog.Logger
}

func NewFollowService(
	follows repository.FollowRepository,
	users repository.UserRepository,
	posts repository.PostRepository,
	logger *slog.Logger,
) *FollowService {
	return &FollowService{follows: follows, users: users, posts: posts, logger: logger}
}

// ErrSelfFollow is the validation error for following oneself.
var ErrSelfFollow = apperror.ValidationFailed("author", "you cannot follow yourself")

// Follow makes userID follow the author named username.
//
// Following yourself returns ErrSelfFollow and writes nothing. Following an
// author twice is not an error: created is false and no second edge exists.
// The UNIQUE (user_id, author_id) constraint settles concurrent requests.
func (s *FollowService) Follow(ctx context.Context, userID int64, username string) (author *model.User, created bool, err error) {
	author, err = s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, false, err
	}
	if author.ID == userID {
		return author, false, ErrSelfFollow
	}

	created, err = s.follows.CreateFollow(ctx, userID, author.ID)
	if err != nil {
		return author, false, fmt.Errorf("following %q: %w", username, err)
	}

	if created {
		s.logger.Info("follow created",
			slog.Int64("user_id", userID),
			slog.Int64("author_id", author.ID),
		)
	}
	return author, created, nil
}

// Unfollow removes the edge userID → username. A missing edge is
// apperror.ErrNotFound.
func (s *FollowService) Unfollow(ctx context.Context, userID int64, username string) (*model.User, error) {
	author, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.follows.DeleteFollow(ctx, userID, author.ID); err != nil {
		return author, err
	}

	s.logger.Info("follow removed",
		slog.Int64("user_id", userID),
		slog.Int64("author_id", author.ID),
	)
	return author, nil
}

func (s *FollowService) IsFollowing(ctx context.Context, userID, authorID int64) (bool, error) {
	ok, err := s.follows.IsFollowing(ctx, userID, authorID)
	if err != nil {
		return false, fmt.Errorf("checking follow %d -> %d: %w", userID, authorID, err)
	}
	return ok, nil
}

// Stats is what the profile page shows about the follow graph.
type Stats struct {
	Followers int
	Following int
}

func (s *FollowService) Stats(ctx context.Context, userID int64) (Stats, error) {
	followers, err := s.follows.CountFollowers(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("counting followers of %d: %w", userID, err)
	}
	following, err := s.follows.CountFollowing(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("counting follows of %d: %w", userID, err)
	}
	return Stats{Followers: followers, Following: following}, nil
}

// Feed is one page of posts by the authors userID follows, newest first.
func (s *FollowService) Feed(ctx context.Context, userID int64, page int) (paginate.Page[model.Post], error) {
	return fetchPage(page,
		func() (int, error) { return s.posts.CountFeed(ctx, userID) },
		func(opts repository.ListOptions) ([]model.Post, error) { return s.posts.ListFeed(ctx, userID, opts) },
	)
}
