// ABOUTME: HTTP server wiring: chi router, middleware stack, route table
// ABOUTME: Owns the handler dependencies shared by REST and websocket endpoints

package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helplane/helplane/internal/auth"
	"github.com/helplane/helplane/internal/conversation"
	"github.com/helplane/helplane/internal/session"
	"github.com/helplane/helplane/internal/store"
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	TokenTTL       time.Duration
	MetricsEnabled bool
	MetricsPath    string
	// RateLimit is requests per client IP per minute on the API routes.
	// Zero disables rate limiting (tests).
	RateLimit int
}

// Server holds the handler dependencies and builds the router.
type Server struct {
	store      store.Store
	convs      *conversation.Service
	dispatcher *session.Dispatcher
	verifier   *auth.JWTVerifier
	tokenTTL   time.Duration
	opts       Options
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewServer wires the HTTP surface. Pass nil logger for the default.
func NewServer(st store.Store, convs *conversation.Service, dispatcher *session.Dispatcher, verifier *auth.JWTVerifier, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:      st,
		convs:      convs,
		dispatcher: dispatcher,
		verifier:   verifier,
		tokenTTL:   opts.TokenTTL,
		opts:       opts,
		logger:     logger.With("component", "httpapi"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Router builds the complete route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(instrument(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	if s.opts.MetricsEnabled {
		r.Handle(s.opts.MetricsPath, promhttp.Handler())
	}

	// Websocket admission does its own token check before the upgrade.
	r.Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.opts.RateLimit, time.Minute))
		}

		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.verifier))

			r.Get("/auth/me", s.handleMe)

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", s.handleCreateConversation)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetConversation)
					r.Post("/assign", s.handleAssignConversation)
					r.Post("/close", s.handleCloseConversation)
				})
			})

			r.Get("/admin/analytics", s.handleAnalytics)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// corsOrigins returns the configured origins, defaulting to any.
func (s *Server) corsOrigins() []string {
	if len(s.opts.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.opts.AllowedOrigins
}

// checkOrigin mirrors the CORS policy for websocket upgrades. gorilla's
// default rejects cross-origin upgrades outright, which would break browser
// clients served from a different host.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
