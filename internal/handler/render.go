// Package handler contains the HTTP handlers of the blog.
//
// Handlers parse the request, call a service and render a page. They never
// touch the database and hold no business rules: ownership, self-follow and
// validation all live in the service layer. Domain errors come back as
// apperror sentinels and are translated here into one of three responses:
//
//	ErrValidation → the form is re-rendered (200) with the message inline
//	ErrNotFound   → the custom 404 page
//	anything else → the custom 500 page; the details go to the log only
package handler

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/auth"
)

// Renderer executes the page templates. Each page is parsed once at startup
// together with the base layout and the shared partials.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Format("2 January 2006 15:04")
	},
	"mediaURL": func(rel string) string {
		return "/media/" + rel
	},
	"linebreaks": func(s string) template.HTML {
		return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>"))
	},
	"truncate": func(s string, n int) string {
		if utf8.RuneCountInString(s) <= n {
			return s
		}
		return string([]rune(s)[:n]) + "…"
	},
}

// NewRenderer parses every templates/*.html page in fsys.
func NewRenderer(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	files, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("handler: listing templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		name := path.Base(file)
		if name == "base.html" {
			continue
		}
		tmpl, err := template.New(name).
			Funcs(funcs).
			Option("missingkey=zero").
			ParseFS(fsys, "templates/base.html", "templates/partials/*.html", file)
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages, logger: logger}, nil
}

// Render writes page with the given status. The viewer, if any, is added to
// data as "Viewer" for the navigation bar.
//
// The page is rendered into a buffer first so a template error can still
// become a clean 500 instead of a half-written page.
func (v *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, page string, data map[string]any) {
	tmpl, ok := v.pages[page]
	if !ok {
		v.logger.Error("unknown template", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = map[string]any{}
	}
	if viewer, ok := auth.UserFromContext(r.Context()); ok {
		data["Viewer"] = viewer
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		v.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// NotFound renders the custom 404 page.
func (v *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	v.Render(w, r, http.StatusNotFound, "404.html", map[string]any{"Path": r.URL.Path})
}

// Error maps a service error to the 404 or 500 page.
func (v *Renderer) Error(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, apperror.ErrNotFound) {
		v.NotFound(w, r)
		return
	}

	// Never show the raw error: it may carry SQL or file paths.
	v.logger.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	v.Render(w, r, http.StatusInternalServerError, "500.html", nil)
}

// formErrors turns a validation error into the per-field messages a form
// template shows. Errors without a field go under "form". ok is false for
// any other kind of error.
func formErrors(err error) (errs map[string]string, ok bool) {
	if !errors.Is(err, apperror.ErrValidation) {
		return nil, false
	}
	field := apperror.FieldOf(err)
	if field == "" {
		field = "form"
	}
	var appErr *apperror.AppError
	msg := err.Error()
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	return map[string]string{field: msg}, true
}

func profileURL(username string) string {
	return "/profile/" + username + "/"
}

func postURL(id int64) string {
	return fmt.Sprintf("/posts/%d/", id)
}
