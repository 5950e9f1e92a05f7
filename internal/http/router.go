package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"pecportal/internal/config"
	"pecportal/internal/platform/metrics"
)

// RouterDeps carries the collaborators the HTTP layer needs.
type RouterDeps struct {
	Clients clientSource
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// Google is nil when campus sign-in is not configured.
	Google googleAuthenticator
	// Ready reports whether the backing store is reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter wires application routes and middleware using chi.
func NewRouter(cfg config.Config, deps RouterDeps) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSlogMiddleware(logger))
	r.Use(newMetricsMiddleware(deps.Metrics))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				logger.Warn("readiness check failed", "error", err)
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		writeJSON(w, code, map[string]any{
			"status":      status,
			"environment": cfg.Environment,
			"dataStore":   cfg.DataStore,
		})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	secure := !strings.EqualFold(cfg.Environment, "development")
	sessionHandler := NewSessionHandler(cfg.Environment, logger)
	portalHandler := NewPortalHandler(logger)
	authLimit := newRateLimitMiddleware(cfg.AuthRatePerSecond, cfg.AuthRateBurst)

	r.Route("/api", func(r chi.Router) {
		r.Use(newClientMiddleware(deps.Clients, secure, logger))

		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessionHandler.Status)
			r.Delete("/", sessionHandler.Logout)
			r.With(authLimit).Post("/", sessionHandler.Login)
			r.With(authLimit).Post("/signup", sessionHandler.SignUp)
		})

		if deps.Google != nil {
			oauthHandler := NewOAuthHandler(deps.Google, cfg.FrontendURL, cfg.Environment, logger)
			r.Route("/auth/google", func(r chi.Router) {
				r.Use(authLimit)
				r.Get("/", oauthHandler.InitiateGoogle)
				r.Get("/callback", oauthHandler.CallbackGoogle)
			})
		} else {
			logger.Info("campus Google sign-in disabled")
		}

		r.Post("/navigate", portalHandler.Navigate)
		r.Get("/notices", portalHandler.ListNotices)
		r.Get("/events", portalHandler.ListEvents)
		r.Post("/feedback", portalHandler.Feedback)

		requireUser := newRequireUserMiddleware()

		r.Route("/clubs", func(r chi.Router) {
			r.Get("/", portalHandler.ListClubs)
			r.Get("/{id}", portalHandler.OpenClub)
			r.With(requireUser).Post("/{id}/join", portalHandler.JoinClub)
			r.With(requireUser).Post("/{id}/mentor", portalHandler.MentorClub)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/notices", portalHandler.PostNotice)
			r.Post("/events", portalHandler.PostEvent)

			r.Route("/my-club", func(r chi.Router) {
				r.Get("/", portalHandler.MyClub)
				r.Put("/", portalHandler.UpdateMyClub)
				r.Post("/members", portalHandler.AddMember)
				r.Get("/roster.csv", portalHandler.ExportRoster)
				r.Post("/roster.csv", portalHandler.ImportRoster)
			})

			r.Get("/dashboard/students", portalHandler.Students)
			r.Get("/dashboard/students.csv", portalHandler.ExportStudents)
		})
	})

	if static := newStaticHandler(cfg.StaticDir); static != nil {
		r.NotFound(static.ServeHTTP)
	} else {
		r.NotFound(http.NotFoundHandler().ServeHTTP)
	}

	return r
}
