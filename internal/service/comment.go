package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/repository"
)

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	logger   *slog.Logger
}

func NewCommentService(comments repository.CommentRepository, posts repository.PostRepository, logger *slog.Logger) *CommentService {
	return &CommentService{comments: comments, posts: posts, logger: logger}
}

// Add attaches a comment by authorID to post postID. Blank text is a
// validation error; an unknown post is apperror.ErrNotFound.
func (s *CommentService) Add(ctx context.Context, postID, authorID int64, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("text", "this field is required")
	}

	if _, err := s.posts.GetPostByID(ctx, postID); err != nil {
		return nil, err
	}

	comment := &model.Comment{PostID: postID, AuthorID: authorID, Text: text}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("adding comment to post %d: %w", postID, err)
	}

	s.logger.Info("comment added",
		slog.Int64("comment_id", comment.ID),
		slog.Int64("post_id", postID),
		slog.Int64("author_id", authorID),
	)
	return comment, nil
}

// List returns the comments of postID, newest first.
func (s *CommentService) List(ctx context.Context, postID int64) ([]model.Comment, error) {
	comments, err := s.comments.ListCommentsByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("listing comments for post %d: %w", postID, err)
	}
	return comments, nil
}
