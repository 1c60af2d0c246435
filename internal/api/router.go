package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/acquisitions-api/internal/api/handlers"
	"github.com/isdelr/acquisitions-api/internal/auth"
	"github.com/isdelr/acquisitions-api/internal/models"
	"github.com/isdelr/acquisitions-api/internal/monitoring"
	"github.com/isdelr/acquisitions-api/internal/services"
	"github.com/isdelr/acquisitions-api/internal/throttle"
)

// TokenService signs and verifies the credentials carried in the token cookie.
type TokenService interface {
	auth.Verifier
	handlers.TokenSigner
}

// Options are the HTTP-level settings of the router.
type Options struct {
	CORSOrigins       []string
	TrustProxy        bool
	SecureCookie      bool
	AllowRoleOnSignup bool
}

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Users   services.UserServiceProvider
	Tokens  TokenService
	Gate    *throttle.Gate
	Health  *handlers.HealthHandler
	Metrics *monitoring.Metrics // nil disables /metrics and instrumentation
}

// NewRouter creates and configures a new Chi router.
//
// Every request under the throttled group passes Authenticate, then the
// throttle gate, then any per-route role check. /health and /metrics stay
// outside the gate so probes and scrapers are never limited.
func NewRouter(opts Options, deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	if opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument)
	}
	r.Use(securityHeaders)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Tokens, handlers.AuthOptions{
		SecureCookie:      opts.SecureCookie,
		AllowRoleOnSignup: opts.AllowRoleOnSignup,
	})
	userHandler := handlers.NewUserHandler(deps.Users)

	if deps.Health != nil {
		r.Get("/health", deps.Health.Health)
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(deps.Tokens))
		r.Use(deps.Gate.Middleware)

		r.Get("/", handlers.Root)
		r.Get("/api", handlers.APIStatus)

		r.Route("/api/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.SignUp)
			r.Post("/signin", authHandler.SignIn)
			r.Post("/signout", authHandler.SignOut)
		})

		r.Route("/api/users", func(r chi.Router) {
			r.With(requireRoles(models.RoleAdmin)).Get("/", userHandler.List)
			// Admin check lives in the handler so guests get 403, not 401.
			r.Delete("/", userHandler.DeleteAll)

			r.Route("/{id}", func(r chi.Router) {
				r.Use(requireRoles(models.RoleUser, models.RoleAdmin))
				r.Get("/", userHandler.Get)
				r.Put("/", userHandler.Update)
				r.Delete("/", userHandler.Delete)
			})
		})
	})

	return r
}
