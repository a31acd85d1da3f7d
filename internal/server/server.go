// Package server exposes graph sessions over an HTTP JSON API.
//
// Every session is a paginated commit graph over one repository below the
// server root. Mutating endpoints answer with the Replace that describes the
// rows they rewrote, so clients can patch their own row caches instead of
// reloading.
//
//	POST   /api/sessions                     {path, page_size}
//	GET    /api/sessions
//	GET    /api/sessions/{id}
//	GET    /api/sessions/{id}/rows?from=&to=
//	POST   /api/sessions/{id}/more
//	POST   /api/sessions/{id}/toggle         {row, col}
//	POST   /api/sessions/{id}/collapse-all
//	POST   /api/sessions/{id}/expand-all
//	DELETE /api/sessions/{id}
package server

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/lanegraph/pkg/cache"
	"github.com/matzehuels/lanegraph/pkg/details"
	"github.com/matzehuels/lanegraph/pkg/errors"
	"github.com/matzehuels/lanegraph/pkg/session"
	"github.com/matzehuels/lanegraph/pkg/source"
	"github.com/matzehuels/lanegraph/pkg/source/gitrepo"
)

// Defaults for [Config].
const (
	DefaultAddr     = "127.0.0.1:8080"
	CleanupInterval = time.Minute
	MaxRowsPerFetch = 5000
)

// Opener opens the commit source for a repository path. The returned source
// usually also implements [details.Loader].
type Opener func(ctx context.Context, path string) (source.Source, error)

// Config configures a [Server].
type Config struct {
	Addr string
	// Root is the directory session paths are resolved against.
	Root string
	// Session holds the defaults for new sessions.
	Session session.Options
	// Cache backs the commit details of every session. Nil disables caching.
	Cache      cache.Cache
	DetailsTTL time.Duration
	// Open opens the repository at a resolved path. Nil opens git
	// repositories from disk.
	Open   Opener
	Logger *log.Logger
}

// Server serves the session API.
type Server struct {
	cfg      Config
	sessions *session.Manager
	logger   *log.Logger
	router   chi.Router
}

// New returns a server for cfg.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Open == nil {
		cfg.Open = func(_ context.Context, path string) (source.Source, error) {
			return gitrepo.Open(path, gitrepo.Options{})
		}
	}
	s := &Server{
		cfg:      cfg,
		sessions: session.NewManager(cfg.Logger),
		logger:   cfg.Logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler { return s.router }

// Sessions returns the session manager.
func (s *Server) Sessions() *session.Manager { return s.sessions }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sessions.Run(ctx, CleanupInterval)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr, "root", s.cfg.Root)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/api/health", s.handleHealth)
	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.withSession(s.handleSummary))
			r.Delete("/", s.handleDelete)
			r.Get("/rows", s.withSession(s.handleRows))
			r.Post("/more", s.withSession(s.handleMore))
			r.Post("/toggle", s.withSession(s.handleToggle))
			r.Post("/collapse-all", s.withSession(s.handleCollapseAll))
			r.Post("/expand-all", s.withSession(s.handleExpandAll))
		})
	})
	return r
}

// resolve maps a client path to a directory below the root.
func (s *Server) resolve(path string) (string, error) {
	if path == "" || path == "." {
		return filepath.Clean(s.cfg.Root), nil
	}
	if err := errors.ValidatePath(path); err != nil {
		return "", err
	}
	return filepath.Join(s.cfg.Root, filepath.FromSlash(path)), nil
}

func (s *Server) createSession(ctx context.Context, path string, pageSize int) (*session.Session, error) {
	dir, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	src, err := s.cfg.Open(ctx, dir)
	if err != nil {
		return nil, err
	}

	opts := s.cfg.Session
	if pageSize > 0 {
		opts.PageSize = pageSize
	}
	if loader, ok := src.(details.Loader); ok {
		keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), cache.RepoScope(dir))
		opts.Details = details.NewCache(s.cfg.Cache, loader, details.Options{Keyer: keyer, TTL: s.cfg.DetailsTTL, Logger: s.logger})
	}
	return s.sessions.Create(ctx, src, opts)
}
