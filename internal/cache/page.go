package cache

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sakif/yatube/internal/paginate"
)

// IndexKey is the key prefix for cached home listing pages.
const IndexKey = "index_page"

// PageCache caches full rendered GET responses for a fixed TTL.
//
// CACHED VARIANT:
// The listing is cached once per page number and served to everyone the
// Skip func lets through. The server skips authenticated requests, since
// their page carries per-user navigation.
//
// Concurrent misses may both render and store the page; the last write wins
// and both bodies are equivalent.
type PageCache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger

	// Skip reports requests that must bypass the cache entirely.
	Skip func(r *http.Request) bool
}

func NewPageCache(store Store, ttl time.Duration, logger *slog.Logger) *PageCache {
	return &PageCache{store: store, ttl: ttl, logger: logger}
}

// Key is the cache key for page number n of the listing under prefix.
func Key(prefix string, n int) string {
	return prefix + ":" + strconv.Itoa(n)
}

// Clear drops every cached page.
func (c *PageCache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Middleware caches the wrapped handler's 200 responses under prefix.
func (c *PageCache) Middleware(prefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || (c.Skip != nil && c.Skip(r)) {
				next.ServeHTTP(w, r)
				return
			}

			key := Key(prefix, paginate.ParseNumber(r.URL.Query().Get("page")))

			body, ok, err := c.store.Get(r.Context(), key)
			if err != nil {
				// A broken cache degrades to rendering every time.
				c.logger.Warn("page cache read failed", slog.String("key", key), slog.String("error", err.Error()))
			}
			if ok {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Header().Set("X-Cache", "HIT")
				w.Write(body)
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			w.Header().Set("X-Cache", "MISS")
			next.ServeHTTP(rec, r)

			if rec.status != http.StatusOK {
				return
			}
			if err := c.store.Set(r.Context(), key, rec.body.Bytes(), c.ttl); err != nil {
				c.logger.Warn("page cache write failed", slog.String("key", key), slog.String("error", err.Error()))
			}
		})
	}
}

// recorder passes the response through while keeping a copy of the body.
type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
