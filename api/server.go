/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Structured request logging (logrus)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for admin frontends
  5. RateLimit:  Token bucket over all requests (429 when empty)

ROUTE GROUPS:
  /healthz              Liveness
  /api/shapes           Registered shapes (public)
  /api/scenarios        Scenario list (public)
  /api/grids/*          Grid administration     (scoped)
  /api/quotes/*         Quote resolution        (scoped)
  /api/policies/*       Policy intake           (scoped)
  /api/scenarios/load   Demo loaders            (scoped)

SECURITY NOTE:
  Scoped routes need X-Org-ID, or a bearer token carrying org_id when
  JWT_SECRET is set. Nothing else is authenticated.

SEE ALSO:
  - handlers.go: Handler implementations
  - scope.go: RequireScope
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/warp/commission-engine/logging"
	"golang.org/x/time/rate"
)

// RouterOptions configures NewRouter. The zero value allows any origin,
// reads the scope from X-Org-ID and applies no rate limit.
type RouterOptions struct {
	AllowedOrigins []string
	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         logrus.FieldLogger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	logger := opts.Logger
	if logger == nil {
		logger = h.Log
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", ScopeHeader},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	if opts.RateLimitRPS > 0 {
		r.Use(RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/shapes", h.ListShapes)
		r.Get("/scenarios", h.ListScenarios)

		r.Group(func(r chi.Router) {
			r.Use(RequireScope(opts.JWTSecret))

			// Grid routes
			r.Route("/grids", func(r chi.Router) {
				r.Get("/", h.ListGrids)
				r.Post("/", h.CreateGrid)
				r.Post("/import", h.ImportGrids)
				r.Get("/{id}", h.GetGrid)
				r.Put("/{id}", h.UpdateGrid)
				r.Delete("/{id}", h.DeleteGrid)
			})

			// Quote routes
			r.Route("/quotes", func(r chi.Router) {
				r.Get("/", h.ListQuotes)
				r.Post("/resolve", h.ResolveQuote)
				r.Post("/batch", h.BatchQuotes)
			})

			// Policy routes
			r.Route("/policies", func(r chi.Router) {
				r.Get("/", h.ListPolicies)
				r.Post("/", h.CreatePolicy)
				r.Get("/{id}", h.GetPolicy)
			})

			// Scenario routes
			r.Post("/scenarios/load", h.LoadScenario)
			r.Post("/scenarios/reset", h.ResetScenario)
		})
	})

	return r
}

// RateLimit rejects requests with 429 once the shared token bucket is empty.
// A burst below one is raised to one.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "Too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
