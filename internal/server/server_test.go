package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/yatube/internal/auth"
	"github.com/sakif/yatube/internal/config"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/repository"
)

// =========================================================================
// HELPERS
// =========================================================================

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Config{
		Port:         0,
		DBPath:       ":memory:",
		MediaRoot:    t.TempDir(),
		JWTSecret:    "test-secret-0123456789abcdef",
		CacheBackend: config.CacheMemory,
		PageCacheTTL: time.Hour,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// browser is one visitor. It replays the session cookie it was given.
type browser struct {
	t        *testing.T
	h        http.Handler
	cookie   *http.Cookie
	username string
}

func anonymous(t *testing.T, s *Server) *browser {
	return &browser{t: t, h: s.Handler()}
}

// signUp registers username and returns a logged-in browser.
func signUp(t *testing.T, s *Server, username string) *browser {
	t.Helper()
	b := anonymous(t, s)
	rr := b.post("/auth/signup/", url.Values{
		"username": {username},
		"email":    {username + "@example.com"},
		"password": {"correct-horse"},
	})
	require.Equal(t, http.StatusFound, rr.Code, "sign-up of %s failed: %s", username, rr.Body.String())
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			b.cookie = c
		}
	}
	require.NotNil(t, b.cookie, "sign-up did not set a session cookie")
	b.username = username
	return b
}

func (b *browser) send(req *http.Request) *httptest.ResponseRecorder {
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	rr := httptest.NewRecorder()
	b.h.ServeHTTP(rr, req)
	return rr
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.send(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.send(req)
}

func (b *browser) upload(target string, fields map[string]string, filename string, content []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(b.t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("image", filename)
	require.NoError(b.t, err)
	_, err = fw.Write(content)
	require.NoError(b.t, err)
	require.NoError(b.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.send(req)
}

// publish creates a post through the form and returns its id.
func publish(t *testing.T, s *Server, b *browser, text string) int64 {
	t.Helper()
	rr := b.post("/create/", url.Values{"text": {text}})
	require.Equal(t, http.StatusFound, rr.Code, rr.Body.String())
	return newestPostID(t, s, b.username)
}

func newestPostID(t *testing.T, s *Server, username string) int64 {
	t.Helper()
	ctx := context.Background()
	user, err := s.db.GetByUsername(ctx, username)
	require.NoError(t, err)
	posts, err := s.db.ListPostsByAuthor(ctx, user.ID, repository.ListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	return posts[0].ID
}

func createGroup(t *testing.T, s *Server, slug string) *model.Group {
	t.Helper()
	g := &model.Group{Title: "Group " + slug, Slug: slug}
	require.NoError(t, s.db.CreateGroup(context.Background(), g))
	return g
}

func postCount(body string) int {
	return strings.Count(body, `<article class="post">`)
}

var smallGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00,
	0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02,
	0x44, 0x01, 0x00, 0x3b,
}

// =========================================================================
// AUTHORIZATION
// =========================================================================

func TestProtectedRoutesRedirectAnonymous(t *testing.T) {
	s := newTestServer(t)
	anon := anonymous(t, s)

	tests := []struct {
		method, target, wantLocation string
	}{
		{http.MethodGet, "/create/", "/auth/login/?next=/create/"},
		{http.MethodPost, "/create/", "/auth/login/?next=/create/"},
		{http.MethodGet, "/follow/", "/auth/login/?next=/follow/"},
		{http.MethodGet, "/posts/1/edit/", "/auth/login/?next=/posts/1/edit/"},
		{http.MethodPost, "/posts/1/comment/", "/auth/login/?next=/posts/1/comment/"},
		{http.MethodGet, "/profile/author/follow/", "/auth/login/?next=/profile/author/follow/"},
		{http.MethodGet, "/profile/author/unfollow/", "/auth/login/?next=/profile/author/unfollow/"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rr := anon.send(httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, tt.wantLocation, rr.Header().Get("Location"))
		})
	}
}

func TestAnonymousFollowCreatesNoEdge(t *testing.T) {
	s := newTestServer(t)
	author := signUp(t, s, "author")

	rr := anonymous(t, s).get("/profile/author/follow/")
	require.Equal(t, http.StatusFound, rr.Code)

	user, err := s.db.GetByUsername(context.Background(), author.username)
	require.NoError(t, err)
	n, err := s.db.CountFollowers(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoginHonoursNext(t *testing.T) {
	s := newTestServer(t)
	signUp(t, s, "leo")
	anon := anonymous(t, s)

	rr := anon.get("/auth/login/?next=/create/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="next" value="/create/"`)

	rr = anon.post("/auth/login/", url.Values{
		"username": {"leo"},
		"password": {"correct-horse"},
		"next":     {"/create/"},
	})
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/create/", rr.Header().Get("Location"))

	rr = anon.post("/auth/login/", url.Values{
		"username": {"leo"},
		"password": {"correct-horse"},
		"next":     {"https://evil.example/"},
	})
	assert.Equal(t, "/", rr.Header().Get("Location"))
}

func TestLoginBadCredentialsRerendersForm(t *testing.T) {
	s := newTestServer(t)
	signUp(t, s, "leo")

	rr := anonymous(t, s).post("/auth/login/", url.Values{"username": {"leo"}, "password": {"wrong-password"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "please enter a correct username and password")
	assert.Empty(t, rr.Result().Cookies())
}

func TestSignupValidation(t *testing.T) {
	s := newTestServer(t)
	signUp(t, s, "leo")

	rr := anonymous(t, s).post("/auth/signup/", url.Values{"username": {"leo"}, "password": {"another-pass"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "a user with that username already exists")
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	leo := signUp(t, s, "leo")

	rr := leo.post("/auth/logout/", nil)
	assert.Equal(t, http.StatusFound, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestGitHubRoutesDisabled(t *testing.T) {
	s := newTestServer(t)

	rr := anonymous(t, s).get("/auth/github/login")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// =========================================================================
// POSTS
// =========================================================================

func TestCreatePost(t *testing.T) {
	s := newTestServer(t)
	leo := signUp(t, s, "leo")
	cats := createGroup(t, s, "cats")

	rr := leo.post("/create/", url.Values{"text": {"Hello"}, "group": {fmt.Sprint(cats.ID)}})
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/profile/leo/", rr.Header().Get("Location"))

	profile := leo.get("/profile/leo/")
	require.Equal(t, http.StatusOK, profile.Code)
	assert.Contains(t, profile.Body.String(), "Hello")
	assert.Equal(t, 1, postCount(profile.Body.String()))

	group := leo.get("/group/cats/")
	require.Equal(t, http.StatusOK, group.Code)
	assert.Contains(t, group.Body.String(), "Hello")
}

func TestCreatePost_EmptyTextShowsError(t *testing.T) {
	s := newTestServer(t)
	leo := signUp(t, s, "leo")

	rr := leo.post("/create/", url.Values{"text": {"   "}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "this field is required")

	n, err := s.db.CountPosts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreatePost_UnknownGroupShowsError(t *testing.T) {
	s := newTestServer(t)
	leo := signUp(t, s, "leo")

	rr := leo.post("/create/", url.Values{"text": {"hi"}, "group": {"999"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "select a valid group")
}

func TestCreatePost_WithImage(t *testing.T) {
	s := newTestServer(t)
	leo := signUp(t, s, "leo")

	rr := leo.upload("/create/", map[string]string{"text": "picture"}, "pixel.gif", smallGIF)
	require.Equal(t, http.StatusFound, rr.Code, rr.Body.String())

	id := newestPostID(t, s, "leo")
	post, err := s.db.GetPostByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(post.Image, "posts/"), "image path %q", post.Image)

	detail := leo.get(fmt.Sprintf("/posts/%d/", id))
	assert.Contains(t, detail.Body.String(), `src="/media/`+post.Image+`"`)

	file := anonymous(t, s).get("/media/" + post.Image)
	assert.Equal(t, http.StatusOK, file.Code)
	assert.Equal(t, smallGIF, file.Body.Bytes())
}

func TestCreatePost_RejectsNonImage(t *testing.T) {
	s := newTestServer(t)
	leo := signUp(t, s, "leo")

	rr := leo.upload("/create/", map[string]string{"text": "not a picture"}, "notes.txt", []byte("plain text"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "upload a valid image")

	n, err := s.db.CountPosts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEditPost_ByAuthor(t *testing.T) {
	s := newTestServer(t)
	leo := signUp(t, s, "leo")
	id := publish(t, s, leo, "first draft")

	form := leo.get(fmt.Sprintf("/posts/%d/edit/", id))
	require.Equal(t, http.StatusOK, form.Code)
	assert.Contains(t, form.Body.String(), "first draft")

	rr := leo.post(fmt.Sprintf("/posts/%d/edit/", id), url.Values{"text": {"final"}})
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", id), rr.Header().Get("Location"))

	post, err := s.db.GetPostByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "final", post.Text)
}

// A non-author is sent to the detail page and the text never changes.
func TestEditPost_NonAuthorRedirected(t *testing.T) {
	s := newTestServer(t)
	leo := signUp(t, s, "leo")
	mallory := signUp(t, s, "mallory")
	id := publish(t, s, leo, "original")
	detail := fmt.Sprintf("/posts/%d/", id)

	rr := mallory.get(detail + "edit/")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, detail, rr.Header().Get("Location"))

	rr = mallory.post(detail+"edit/", url.Values{"text": {"defaced"}})
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, detail, rr.Header().Get("Location"))

	post, err := s.db.GetPostByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "original", post.Text)
}

func TestPostDetail_NotFound(t *testing.T) {
	s := newTestServer(t)
	anon := anonymous(t, s)

	for _, target := range []string{"/posts/999/", "/posts/abc/", "/group/nope/", "/profile/ghost/", "/no/such/page/"} {
		rr := anon.get(target)
		assert.Equal(t, http.StatusNotFound, rr.Code, target)
		assert.Contains(t, rr.Body.String(), "Page not found", target)
	}
}

// =========================================================================
// PAGINATION
// =========================================================================

func TestIndexPagination(t *testing.T) {
	s := newTestServer(t)
	leo := signUp(t, s, "leo")
	for i := 0; i < 12; i++ {
		publish(t, s, leo, fmt.Sprintf("post number %d", i))
	}
	anon := anonymous(t, s)

	tests := []struct {
		target string
		want   int
	}{
		{"/", 10},
		{"/?page=1", 10},
		{"/?page=2", 2},
		{"/?page=99", 2},
		{"/?page=abc", 10},
		{"/?page=-3", 10},
	}
	for _, tt := range tests {
		rr := anon.get(tt.target)
		require.Equal(t, http.StatusOK, rr.Code, tt.target)
		assert.Equal(t, tt.want, postCount(rr.Body.String()), tt.target)
	}

	first := anon.get("/").Body.String()
	assert.Contains(t, first, "post number 11", "newest post should be on page 1")
	assert.NotContains(t, first, "post number 0<", "oldest post should be on page 2")
}

func TestIndexEmpty(t *testing.T) {
	s := newTestServer(t)

	rr := anonymous(t, s).get("/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, postCount(rr.Body.String()))
}

// =========================================================================
// COMMENTS
// =========================================================================

func TestCommentFlow(t *testing.T) {
	s := newTestServer(t)
	a := signUp(t, s, "A")
	b := signUp(t, s, "B")
	id := publish(t, s, a, "Hello")
	detail := fmt.Sprintf("/posts/%d/", id)

	assert.NotContains(t, a.get(detail).Body.String(), `class="comment"`)

	rr := b.post(detail+"comment/", url.Values{"text": {"Nice"}})
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, detail, rr.Header().Get("Location"))

	body := a.get(detail).Body.String()
	assert.Equal(t, 1, strings.Count(body, `class="comment"`))
	assert.Contains(t, body, "Nice")

	rr = b.post(detail+"comment/", url.Values{"text": {""}})
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, 1, strings.Count(a.get(detail).Body.String(), `class="comment"`))

	rr = b.post("/posts/999/comment/", url.Values{"text": {"lost"}})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// =========================================================================
// FOLLOW / FEED
// =========================================================================

// A follows C. C's new post is in A's feed and not in B's.
func TestFollowFeed(t *testing.T) {
	s := newTestServer(t)
	a := signUp(t, s, "A")
	b := signUp(t, s, "B")
	c := signUp(t, s, "C")

	rr := a.get("/profile/C/follow/")
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/profile/C/", rr.Header().Get("Location"))

	publish(t, s, c, "fresh from C")

	feedA := a.get("/follow/")
	require.Equal(t, http.StatusOK, feedA.Code)
	assert.Contains(t, feedA.Body.String(), "fresh from C")

	feedB := b.get("/follow/")
	require.Equal(t, http.StatusOK, feedB.Code)
	assert.NotContains(t, feedB.Body.String(), "fresh from C")
	assert.Zero(t, postCount(feedB.Body.String()))
}

func TestFollowTwiceIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	a := signUp(t, s, "A")
	signUp(t, s, "C")

	for i := 0; i < 2; i++ {
		rr := a.get("/profile/C/follow/")
		require.Equal(t, http.StatusFound, rr.Code)
	}

	profile := a.get("/profile/C/").Body.String()
	assert.Contains(t, profile, "Followers: 1")
	assert.Contains(t, profile, "/profile/C/unfollow/")
}

func TestFollowSelfCreatesNoEdge(t *testing.T) {
	s := newTestServer(t)
	a := signUp(t, s, "A")

	rr := a.get("/profile/A/follow/")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/profile/A/", rr.Header().Get("Location"))

	profile := a.get("/profile/A/").Body.String()
	assert.Contains(t, profile, "Followers: 0")
	assert.NotContains(t, profile, "/profile/A/follow/", "no follow button on your own profile")
}

func TestUnfollow(t *testing.T) {
	s := newTestServer(t)
	a := signUp(t, s, "A")
	signUp(t, s, "C")

	rr := a.get("/profile/C/unfollow/")
	assert.Equal(t, http.StatusNotFound, rr.Code, "unfollow without an edge")

	a.get("/profile/C/follow/")
	rr = a.get("/profile/C/unfollow/")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/profile/C/", rr.Header().Get("Location"))
	assert.Contains(t, a.get("/profile/C/").Body.String(), "Followers: 0")

	assert.Equal(t, http.StatusNotFound, a.get("/profile/ghost/follow/").Code)
}

// =========================================================================
// PAGE CACHE
// =========================================================================

func TestIndexCache(t *testing.T) {
	s := newTestServer(t)
	leo := signUp(t, s, "leo")
	publish(t, s, leo, "before caching")
	anon := anonymous(t, s)

	first := anon.get("/")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	publish(t, s, leo, "written while cached")

	second := anon.get("/")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes(), "cached body must be byte-identical within the TTL")
	assert.NotContains(t, second.Body.String(), "written while cached")

	require.NoError(t, s.PageCache().Clear(context.Background()))

	third := anon.get("/")
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Contains(t, third.Body.String(), "written while cached")
}

func TestIndexCache_SkipsLoggedInViewers(t *testing.T) {
	s := newTestServer(t)
	leo := signUp(t, s, "leo")

	anonymous(t, s).get("/")
	rr := leo.get("/")
	assert.Empty(t, rr.Header().Get("X-Cache"))
	assert.Contains(t, rr.Body.String(), "/profile/leo/", "logged-in page shows the viewer's own nav")
}

// =========================================================================
// STATIC
// =========================================================================

func TestStaticAndAboutPages(t *testing.T) {
	s := newTestServer(t)
	anon := anonymous(t, s)

	css := anon.get("/static/css/style.css")
	assert.Equal(t, http.StatusOK, css.Code)
	assert.Contains(t, css.Header().Get("Content-Type"), "text/css")

	for _, target := range []string{"/about/author/", "/about/tech/"} {
		assert.Equal(t, http.StatusOK, anon.get(target).Code, target)
	}
}

func TestOpenCacheStore(t *testing.T) {
	store, closer, err := OpenCacheStore(context.Background(), config.Config{CacheBackend: config.CacheMemory})
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.Nil(t, closer)

	_, _, err = OpenCacheStore(context.Background(), config.Config{CacheBackend: "memcached"})
	assert.Error(t, err)
}
