// Package web provides the HTTP server, pages and JSON API for dataset
// sessions.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/dataprep/internal/config"
	"github.com/JonMunkholm/dataprep/internal/core"
	"github.com/JonMunkholm/dataprep/internal/web/middleware"
)

//go:embed static
var staticFiles embed.FS

// Server is the HTTP server for dataset sessions.
type Server struct {
	service  *core.Service
	cfg      *config.Config
	router   *chi.Mux
	sessions *sessions.CookieStore
	limiter  *rateLimiter
	uploads  *rateLimiter
	server   *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service:  service,
		cfg:      cfg,
		router:   chi.NewRouter(),
		sessions: newCookieStore(cfg.Session),
	}
	if cfg.Rate.Enabled {
		s.limiter = newRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		if cfg.Rate.UploadLimit > 0 {
			s.uploads = newRateLimiter(cfg.Rate.UploadLimit, time.Minute)
		}
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func newCookieStore(cfg config.SessionConfig) *sessions.CookieStore {
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		slog.Warn("SESSION_SECRET not set, generating a random key; browser sessions will not survive a restart")
		secret = securecookie.GenerateRandomKey(32)
	}

	store := sessions.NewCookieStore(secret)
	store.MaxAge(int(cfg.TTL / time.Second))
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.SecureCookie
	store.Options.SameSite = http.SameSiteLaxMode
	return store
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.RequestMeta(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}

	// Security hardening
	s.router.Use(s.securityHeaders)

	if s.limiter != nil {
		s.router.Use(s.limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", s.service.Metrics().Handler())

	// Pages
	s.router.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))
		r.Get("/", s.handleIndex)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/transform", s.handleTransform)
		r.Post("/cleaning", s.handleCleaning)
		r.Post("/visualize", s.handleVisualize)
		r.Get("/download", s.handleDownload)
		r.Post("/reset", s.handleReset)
		r.With(s.uploadLimit).Post("/upload", s.handleUpload)
	})

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/operations", s.handleListOperations)
		r.Get("/charts", s.handleListCharts)

		r.With(s.uploadLimit).Post("/datasets", s.handleAPIUpload)
		r.Route("/datasets/{id}", func(r chi.Router) {
			r.Get("/", s.handleAPIDataset)
			r.Delete("/", s.handleAPIDelete)
			r.Post("/operations", s.handleAPIApply)
			r.Post("/charts", s.handleAPIChart)
			r.Get("/export", s.handleAPIExport)
			r.Get("/history", s.handleAPIHistory)
			r.Get("/columns/{column}/values", s.handleAPIValues)
		})
	})
}

// uploadLimit applies the stricter upload rate when one is configured.
func (s *Server) uploadLimit(next http.Handler) http.Handler {
	if s.uploads == nil {
		return next
	}
	return s.uploads.middleware(next)
}

// Serve listens on the configured address until ctx is cancelled, then shuts
// down gracefully within Server.ShutdownTimeout.
func (s *Server) Serve(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return egctx
		},
	}

	if s.limiter != nil {
		eg.Go(func() error { s.limiter.cleanup(egctx); return nil })
	}
	if s.uploads != nil {
		eg.Go(func() error { s.uploads.cleanup(egctx); return nil })
	}

	eg.Go(func() error {
		slog.Info("starting server", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		slog.Info("shutting down server")
		return s.server.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self'; img-src 'self' data:")
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
