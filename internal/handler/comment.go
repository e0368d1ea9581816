package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/yatube/internal/auth"
	"github.com/sakif/yatube/internal/service"
)

// CommentHandler accepts new comments.
type CommentHandler struct {
	comments *service.CommentService
	views    *Renderer
	logger   *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, views *Renderer, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, views: views, logger: logger}
}

// HandleAdd stores a comment and returns to the post. A blank comment is
// dropped and the viewer lands back on the post all the same.
//
// HTTP: POST /posts/{id}/comment/ (auth required)
func (h *CommentHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	id, err := service.ParseID("post", chi.URLParam(r, "id"))
	if err != nil {
		h.views.Error(w, r, err)
		return
	}
	viewer, _ := auth.UserFromContext(r.Context())

	if _, err := h.comments.Add(r.Context(), id, viewer.ID, r.PostFormValue("text")); err != nil {
		if _, invalid := formErrors(err); !invalid {
			h.views.Error(w, r, err)
			return
		}
		h.logger.Debug("comment rejected", slog.Int64("post_id", id), slog.String("error", err.Error()))
	}

	http.Redirect(w, r, postURL(id), http.StatusFound)
}
