// Package server wires the application together and runs the HTTP server.
//
// New is the composition root: it opens the database, picks the page cache
// backend, builds every service and handler, and mounts the routes. Nothing
// else in the codebase constructs a dependency for another package.
//
//	config.Config → sqlite.DB → services → handlers → chi routes
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/yatube/internal/auth"
	"github.com/sakif/yatube/internal/cache"
	"github.com/sakif/yatube/internal/config"
	"github.com/sakif/yatube/internal/handler"
	"github.com/sakif/yatube/internal/media"
	"github.com/sakif/yatube/internal/middleware"
	sqliteRepo "github.com/sakif/yatube/internal/repository/sqlite"
	"github.com/sakif/yatube/internal/service"
	"github.com/sakif/yatube/internal/web"
)

// Server owns the router and the resources closed on shutdown.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	cache   *cache.PageCache
	closers []io.Closer
}

// New builds a ready-to-serve Server from cfg.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		closers: []io.Closer{db},
	}

	store, closer, err := OpenCacheStore(context.Background(), cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
	s.cache = cache.NewPageCache(store, cfg.PageCacheTTL, logger)
	// Logged-in viewers see their own navigation bar; only the anonymous
	// page is shared.
	s.cache.Skip = auth.IsAuthenticated

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// OpenCacheStore returns the page cache backend cfg selects. The closer is
// nil for the in-memory store.
func OpenCacheStore(ctx context.Context, cfg config.Config) (cache.Store, io.Closer, error) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		store, err := cache.NewRedisStore(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return store, store, nil
	case config.CacheMemory, "":
		return cache.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// setupRoutes mounts middleware and routes.
//
// MIDDLEWARE ORDER:
//  1. RequestID    tags the request for the log line
//  2. RealIP       trusts X-Forwarded-For from the proxy
//  3. Recoverer    turns a panic into a 500
//  4. Logger       one structured line per request
//  5. OptionalAuth loads the viewer from the session cookie
//
// Routes that need a viewer sit in a group behind RequireAuth, which sends
// anonymous requests to /auth/login/?next=<uri>.
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	mediaStore, err := media.NewStore(s.config.MediaRoot)
	if err != nil {
		return err
	}

	views, err := handler.NewRenderer(web.FS, s.logger)
	if err != nil {
		return err
	}

	// === Services ===
	// s.db implements every repository interface.
	accounts := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.logger)
	posts := service.NewPostService(s.db, s.db, s.db, s.logger)
	comments := service.NewCommentService(s.db, s.db, s.logger)
	follows := service.NewFollowService(s.db, s.db, s.db, s.logger)
	groups := service.NewGroupService(s.db, s.logger)

	// === Handlers ===
	var github auth.OAuthProvider
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	}
	authHandler := handler.NewAuthHandler(accounts, github, views, s.logger)
	postHandler := handler.NewPostHandler(posts, comments, follows, groups, mediaStore, views, s.logger)
	commentHandler := handler.NewCommentHandler(comments, views, s.logger)
	followHandler := handler.NewFollowHandler(follows, views, s.logger)

	// === Global middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(auth.OptionalAuth(tokens, accounts, s.logger))

	s.router.NotFound(views.NotFound)

	// === Files ===
	// web.FS already holds the static/ prefix, so no StripPrefix is needed.
	s.router.Handle("/static/*", http.FileServer(http.FS(web.FS)))
	s.router.Handle("/media/*", http.StripPrefix("/media/", mediaStore.Handler()))

	// === Public pages ===
	s.router.With(s.cache.Middleware(cache.IndexKey)).Get("/", postHandler.HandleIndex)
	s.router.Get("/group/{slug}/", postHandler.HandleGroup)
	s.router.Get("/profile/{username}/", postHandler.HandleProfile)
	s.router.Get("/posts/{id}/", postHandler.HandleDetail)
	s.router.Get("/about/author/", handler.StaticPage(views, "about_author.html"))
	s.router.Get("/about/tech/", handler.StaticPage(views, "about_tech.html"))

	// === Pages that need a viewer ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Get("/create/", postHandler.HandleCreateForm)
		r.Post("/create/", postHandler.HandleCreate)
		r.Get("/posts/{id}/edit/", postHandler.HandleEditForm)
		r.Post("/posts/{id}/edit/", postHandler.HandleEdit)
		r.Post("/posts/{id}/comment/", commentHandler.HandleAdd)

		r.Get("/follow/", followHandler.HandleFeed)
		r.Get("/profile/{username}/follow/", followHandler.HandleFollow)
		r.Get("/profile/{username}/unfollow/", followHandler.HandleUnfollow)
	})

	// === Accounts ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/login/", authHandler.HandleLoginForm)
		r.Post("/login/", authHandler.HandleLogin)
		r.Get("/signup/", authHandler.HandleSignupForm)
		r.Post("/signup/", authHandler.HandleSignup)
		r.Post("/logout/", authHandler.HandleLogout)
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
	})

	return nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// PageCache returns the cache in front of the home listing.
func (s *Server) PageCache() *cache.PageCache {
	return s.cache
}

// Close releases the database and the cache connection.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("cache", s.config.CacheBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
