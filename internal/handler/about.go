package handler

import "net/http"

// StaticPage renders a page that needs no data, such as /about/author/.
func StaticPage(views *Renderer, page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views.Render(w, r, http.StatusOK, page, nil)
	}
}
