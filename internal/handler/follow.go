package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/auth"
	"github.com/sakif/yatube/internal/service"
)

// FollowHandler serves follow/unfollow and the personal feed.
type FollowHandler struct {
	follows *service.FollowService
	views   *Renderer
	logger  *slog.Logger
}

func NewFollowHandler(follows *service.FollowService, views *Renderer, logger *slog.Logger) *FollowHandler {
	return &FollowHandler{follows: follows, views: views, logger: logger}
}

// HandleFollow follows the author and returns to their profile. Following
// yourself or someone already followed changes nothing.
//
// HTTP: GET /profile/{username}/follow/ (auth required)
func (h *FollowHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	viewer, _ := auth.UserFromContext(r.Context())

	_, _, err := h.follows.Follow(r.Context(), viewer.ID, username)
	if err != nil && !errors.Is(err, apperror.ErrValidation) {
		h.views.Error(w, r, err)
		return
	}

	http.Redirect(w, r, profileURL(username), http.StatusFound)
}

// HandleUnfollow removes the follow edge. There is nothing to undo when the
// viewer does not follow the author, so that is a 404.
//
// HTTP: GET /profile/{username}/unfollow/ (auth required)
func (h *FollowHandler) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	viewer, _ := auth.UserFromContext(r.Context())

	if _, err := h.follows.Unfollow(r.Context(), viewer.ID, username); err != nil {
		h.views.Error(w, r, err)
		return
	}

	http.Redirect(w, r, profileURL(username), http.StatusFound)
}

// HandleFeed lists posts by the authors the viewer follows.
//
// HTTP: GET /follow/?page=N (auth required)
func (h *FollowHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserFromContext(r.Context())

	page, err := h.follows.Feed(r.Context(), viewer.ID, pageNumber(r))
	if err != nil {
		h.views.Error(w, r, err)
		return
	}
	h.views.Render(w, r, http.StatusOK, "follow.html", map[string]any{"Page": page})
}
