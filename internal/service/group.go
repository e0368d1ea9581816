package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/repository"
)

const (
	MaxGroupTitleLength = 200
	MaxGroupSlugLength  = 50
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// GroupService manages groups. Groups are created and deleted by an
// administrator (yatubectl); the web UI only reads them.
type GroupService struct {
	groups repository.GroupRepository
	logger *slog.Logger
}

func NewGroupService(groups repository.GroupRepository, logger *slog.Logger) *GroupService {
	return &GroupService{groups: groups, logger: logger}
}

func (s *GroupService) Create(ctx context.Context, title, slug, description string) (*model.Group, error) {
	title = strings.TrimSpace(title)
	slug = strings.TrimSpace(slug)

	switch {
	case title == "":
		return nil, apperror.ValidationFailed("title", "group title is required")
	case len(title) > MaxGroupTitleLength:
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("group title must be %d characters or less", MaxGroupTitleLength))
	case !slugPattern.MatchString(slug):
		return nil, apperror.ValidationFailed("slug",
			"slug may contain only letters, numbers, underscores and hyphens")
	case len(slug) > MaxGroupSlugLength:
		return nil, apperror.ValidationFailed("slug",
			fmt.Sprintf("slug must be %d characters or less", MaxGroupSlugLength))
	}

	group := &model.Group{Title: title, Slug: slug, Description: strings.TrimSpace(description)}
	if err := s.groups.CreateGroup(ctx, group); err != nil {
		return nil, err
	}

	s.logger.Info("group created", slog.Int64("group_id", group.ID), slog.String("slug", slug))
	return group, nil
}

func (s *GroupService) GetBySlug(ctx context.Context, slug string) (*model.Group, error) {
	return s.groups.GetGroupBySlug(ctx, slug)
}

func (s *GroupService) List(ctx context.Context) ([]model.Group, error) {
	groups, err := s.groups.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	return groups, nil
}

// Delete removes the group named by slug. Its posts stay, without a group.
func (s *GroupService) Delete(ctx context.Context, slug string) error {
	group, err := s.groups.GetGroupBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.groups.DeleteGroup(ctx, group.ID); err != nil {
		return err
	}

	s.logger.Info("group deleted", slog.Int64("group_id", group.ID), slog.String("slug", slug))
	return nil
}
