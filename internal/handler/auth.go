package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/yatube/internal/auth"
	"github.com/sakif/yatube/internal/service"
)

const stateCookie = "oauth_state"

// AuthHandler serves the login and sign-up forms, logout and the GitHub
// OAuth flow.
//
//   - HandleLogin / HandleSignup   → username + password accounts
//   - HandleGitHubLogin            → redirect to GitHub's consent page
//   - HandleGitHubCallback         → exchange the code, log the user in
//   - HandleLogout                 → clear the session cookie
//
// github is nil when no OAuth app is configured; the GitHub routes then 404.
type AuthHandler struct {
	accounts *service.AuthService
	github   auth.OAuthProvider
	views    *Renderer
	logger   *slog.Logger
}

func NewAuthHandler(
	accounts *service.AuthService,
	github auth.OAuthProvider,
	views *Renderer,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		github:   github,
		views:    views,
		logger:   logger,
	}
}

type loginForm struct {
	Username string
	Email    string
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, form loginForm, next string, errs map[string]string) {
	if errs == nil {
		errs = map[string]string{}
	}
	h.views.Render(w, r, http.StatusOK, "login.html", map[string]any{
		"Form":          form,
		"Next":          next,
		"Errors":        errs,
		"GitHubEnabled": h.github != nil,
	})
}

// HandleLoginForm shows the login form. "next" is carried through a hidden
// field so the viewer lands where RequireAuth stopped them.
//
// HTTP: GET /auth/login/?next=/create/
func (h *AuthHandler) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, loginForm{}, r.URL.Query().Get("next"), nil)
}

// HandleLogin checks the credentials, sets the session cookie and follows
// "next" when it is a local path.
//
// HTTP: POST /auth/login/
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	form := loginForm{Username: r.PostFormValue("username")}
	next := r.PostFormValue("next")

	res, err := h.accounts.Login(r.Context(), form.Username, r.PostFormValue("password"))
	if err != nil {
		if errs, ok := formErrors(err); ok {
			h.renderLogin(w, r, form, next, errs)
			return
		}
		h.views.Error(w, r, err)
		return
	}

	auth.SetSessionCookie(w, r, res.Token)
	http.Redirect(w, r, auth.SafeNext(next, "/"), http.StatusFound)
}

func (h *AuthHandler) renderSignup(w http.ResponseWriter, r *http.Request, form loginForm, errs map[string]string) {
	if errs == nil {
		errs = map[string]string{}
	}
	h.views.Render(w, r, http.StatusOK, "signup.html", map[string]any{
		"Form":   form,
		"Errors": errs,
	})
}

// HandleSignupForm shows the sign-up form.
//
// HTTP: GET /auth/signup/
func (h *AuthHandler) HandleSignupForm(w http.ResponseWriter, r *http.Request) {
	h.renderSignup(w, r, loginForm{}, nil)
}

// HandleSignup creates a password account and logs it in.
//
// HTTP: POST /auth/signup/
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	form := loginForm{Username: r.PostFormValue("username"), Email: r.PostFormValue("email")}

	res, err := h.accounts.Register(r.Context(), form.Username, form.Email, r.PostFormValue("password"))
	if err != nil {
		if errs, ok := formErrors(err); ok {
			h.renderSignup(w, r, form, errs)
			return
		}
		h.views.Error(w, r, err)
		return
	}

	auth.SetSessionCookie(w, r, res.Token)
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleLogout clears the session cookie. POST only, so a prefetch or a
// cross-site link cannot log the viewer out.
//
// HTTP: POST /auth/logout/
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleGitHubLogin redirects the browser to GitHub.
//
// A random state value is stored in a short-lived HttpOnly cookie and must
// come back unchanged on the callback (CSRF check).
//
// HTTP: GET /auth/github/login
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		h.views.NotFound(w, r)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		h.views.NotFound(w, r)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/auth/login/", http.StatusFound)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.views.Error(w, r, err)
		return
	}

	res, err := h.accounts.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.views.Error(w, r, err)
		return
	}

	auth.SetSessionCookie(w, r, res.Token)
	http.Redirect(w, r, "/", http.StatusFound)
}
