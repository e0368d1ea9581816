package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/auth"
	"github.com/sakif/yatube/internal/media"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/paginate"
	"github.com/sakif/yatube/internal/service"
)

// maxFormMemory is how much of a multipart form is held in memory; the rest
// of an upload spills to temporary files.
const maxFormMemory = 8 << 20

// PostHandler serves the listings, the post detail page and the post form.
type PostHandler struct {
	posts    *service.PostService
	comments *service.CommentService
	follows  *service.FollowService
	groups   *service.GroupService
	media    *media.Store
	views    *Renderer
	logger   *slog.Logger
}

func NewPostHandler(
	posts *service.PostService,
	comments *service.CommentService,
	follows *service.FollowService,
	groups *service.GroupService,
	mediaStore *media.Store,
	views *Renderer,
	logger *slog.Logger,
) *PostHandler {
	return &PostHandler{
		posts:    posts,
		comments: comments,
		follows:  follows,
		groups:   groups,
		media:    mediaStore,
		views:    views,
		logger:   logger,
	}
}

func pageNumber(r *http.Request) int {
	return paginate.ParseNumber(r.URL.Query().Get("page"))
}

// =========================================================================
// LISTINGS
// =========================================================================

// HandleIndex lists every post, newest first.
//
// HTTP: GET /?page=N
func (h *PostHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := h.posts.ListAll(r.Context(), pageNumber(r))
	if err != nil {
		h.views.Error(w, r, err)
		return
	}
	h.views.Render(w, r, http.StatusOK, "index.html", map[string]any{"Page": page})
}

// HandleGroup lists the posts of one group.
//
// HTTP: GET /group/{slug}/?page=N
func (h *PostHandler) HandleGroup(w http.ResponseWriter, r *http.Request) {
	group, page, err := h.posts.ListByGroup(r.Context(), chi.URLParam(r, "slug"), pageNumber(r))
	if err != nil {
		h.views.Error(w, r, err)
		return
	}
	h.views.Render(w, r, http.StatusOK, "group.html", map[string]any{
		"Group": group,
		"Page":  page,
	})
}

// HandleProfile lists an author's posts with their follower counts. An
// authenticated viewer looking at someone else also gets a follow button.
//
// HTTP: GET /profile/{username}/?page=N
func (h *PostHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	author, page, err := h.posts.ListByAuthor(ctx, chi.URLParam(r, "username"), pageNumber(r))
	if err != nil {
		h.views.Error(w, r, err)
		return
	}

	stats, err := h.follows.Stats(ctx, author.ID)
	if err != nil {
		h.views.Error(w, r, err)
		return
	}

	var canFollow, following bool
	if viewer, ok := auth.UserFromContext(ctx); ok && viewer.ID != author.ID {
		canFollow = true
		if following, err = h.follows.IsFollowing(ctx, viewer.ID, author.ID); err != nil {
			h.views.Error(w, r, err)
			return
		}
	}

	h.views.Render(w, r, http.StatusOK, "profile.html", map[string]any{
		"Author":    author,
		"Page":      page,
		"Stats":     stats,
		"CanFollow": canFollow,
		"Following": following,
	})
}

// HandleDetail shows one post and its comments, newest first.
//
// HTTP: GET /posts/{id}/
func (h *PostHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := service.ParseID("post", chi.URLParam(r, "id"))
	if err != nil {
		h.views.Error(w, r, err)
		return
	}

	post, err := h.posts.GetByID(ctx, id)
	if err != nil {
		h.views.Error(w, r, err)
		return
	}
	comments, err := h.comments.List(ctx, post.ID)
	if err != nil {
		h.views.Error(w, r, err)
		return
	}
	authorPosts, err := h.posts.CountByAuthor(ctx, post.AuthorID)
	if err != nil {
		h.views.Error(w, r, err)
		return
	}

	var canEdit bool
	if viewer, ok := auth.UserFromContext(ctx); ok {
		canEdit = service.CanEdit(post, viewer.ID)
	}

	h.views.Render(w, r, http.StatusOK, "post_detail.html", map[string]any{
		"Post":        post,
		"Comments":    comments,
		"AuthorPosts": authorPosts,
		"CanEdit":     canEdit,
	})
}

// =========================================================================
// CREATE / EDIT
// =========================================================================

// postForm is what the form template shows back to the author.
type postForm struct {
	Text  string
	Group string
	Image string
}

// readPostForm parses a urlencoded or multipart post form.
func readPostForm(r *http.Request) (postForm, service.PostInput, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return postForm{}, service.PostInput{}, apperror.ValidationFailed("", "the form could not be read")
	}

	form := postForm{Text: r.PostFormValue("text"), Group: r.PostFormValue("group")}
	in := service.PostInput{Text: form.Text}
	if form.Group != "" {
		id, err := strconv.ParseInt(form.Group, 10, 64)
		if err != nil {
			return form, in, apperror.ValidationFailed("group", "select a valid group")
		}
		in.GroupID = &id
	}
	return form, in, nil
}

// saveImage stores the uploaded image, if the form carries one, and returns
// its media path.
func (h *PostHandler) saveImage(r *http.Request) (string, error) {
	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", apperror.ValidationFailed("image", "the upload could not be read")
	}
	defer file.Close()
	return h.media.Save(file)
}

// discardImage removes an image saved for a post that was then not stored.
func (h *PostHandler) discardImage(rel string) {
	if err := h.media.Delete(rel); err != nil {
		h.logger.Warn("failed to remove unused upload", slog.String("path", rel), slog.String("error", err.Error()))
	}
}

func (h *PostHandler) renderForm(w http.ResponseWriter, r *http.Request, form postForm, postID int64, errs map[string]string) {
	groups, err := h.groups.List(r.Context())
	if err != nil {
		h.views.Error(w, r, err)
		return
	}
	if errs == nil {
		errs = map[string]string{}
	}
	h.views.Render(w, r, http.StatusOK, "post_form.html", map[string]any{
		"Form":   form,
		"Groups": groups,
		"Errors": errs,
		"IsEdit": postID != 0,
		"PostID": postID,
	})
}

// HandleCreateForm shows an empty post form.
//
// HTTP: GET /create/ (auth required)
func (h *PostHandler) HandleCreateForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, postForm{}, 0, nil)
}

// HandleCreate publishes a post and sends the author to their profile. An
// invalid form is shown again with the error and nothing is stored.
//
// HTTP: POST /create/ (auth required)
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserFromContext(r.Context())

	form, in, err := readPostForm(r)
	if err == nil {
		in.Image, err = h.saveImage(r)
	}
	if err == nil {
		if _, err = h.posts.Create(r.Context(), viewer.ID, in); err != nil && in.Image != "" {
			h.discardImage(in.Image)
		}
	}
	if err != nil {
		if errs, ok := formErrors(err); ok {
			h.renderForm(w, r, form, 0, errs)
			return
		}
		h.views.Error(w, r, err)
		return
	}

	http.Redirect(w, r, profileURL(viewer.Username), http.StatusFound)
}

// loadEditable fetches the post for the edit routes. A viewer who is not the
// author is sent to the detail page; ok is false whenever a response has
// already been written.
func (h *PostHandler) loadEditable(w http.ResponseWriter, r *http.Request) (post *model.Post, ok bool) {
	id, err := service.ParseID("post", chi.URLParam(r, "id"))
	if err != nil {
		h.views.Error(w, r, err)
		return nil, false
	}
	post, err = h.posts.GetByID(r.Context(), id)
	if err != nil {
		h.views.Error(w, r, err)
		return nil, false
	}

	viewer, _ := auth.UserFromContext(r.Context())
	if !service.CanEdit(post, viewer.ID) {
		http.Redirect(w, r, postURL(post.ID), http.StatusFound)
		return nil, false
	}
	return post, true
}

// HandleEditForm shows the post form filled with the current values.
//
// HTTP: GET /posts/{id}/edit/ (author only)
func (h *PostHandler) HandleEditForm(w http.ResponseWriter, r *http.Request) {
	post, ok := h.loadEditable(w, r)
	if !ok {
		return
	}
	form := postForm{Text: post.Text, Image: post.Image}
	if post.GroupID != nil {
		form.Group = strconv.FormatInt(*post.GroupID, 10)
	}
	h.renderForm(w, r, form, post.ID, nil)
}

// HandleEdit saves the author's changes and returns to the detail page. An
// edit without a new upload keeps the current image.
//
// HTTP: POST /posts/{id}/edit/ (author only)
func (h *PostHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	post, ok := h.loadEditable(w, r)
	if !ok {
		return
	}
	viewer, _ := auth.UserFromContext(r.Context())

	form, in, err := readPostForm(r)
	form.Image = post.Image
	if err == nil {
		in.Image, err = h.saveImage(r)
	}
	var updated *model.Post
	if err == nil {
		if updated, err = h.posts.Update(r.Context(), post.ID, viewer.ID, in); err != nil && in.Image != "" {
			h.discardImage(in.Image)
		}
	}
	if err != nil {
		if errors.Is(err, apperror.ErrForbidden) {
			http.Redirect(w, r, postURL(post.ID), http.StatusFound)
			return
		}
		if errs, ok := formErrors(err); ok {
			h.renderForm(w, r, form, post.ID, errs)
			return
		}
		h.views.Error(w, r, err)
		return
	}

	if post.Image != "" && updated.Image != post.Image {
		h.discardImage(post.Image)
	}
	http.Redirect(w, r, postURL(post.ID), http.StatusFound)
}
