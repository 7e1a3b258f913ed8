package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	"github.com/good-yellow-bee/followwatch/internal/api/alerts"
	"github.com/good-yellow-bee/followwatch/internal/api/auth"
	"github.com/good-yellow-bee/followwatch/internal/api/middleware"
	"github.com/good-yellow-bee/followwatch/internal/api/profiles"
	"github.com/good-yellow-bee/followwatch/internal/api/response"
	"github.com/good-yellow-bee/followwatch/internal/api/users"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	jwtService := auth.NewJWTService(s.config.JWTSecret, s.config.AccessTokenTTL)
	lockout := auth.NewLockoutTracker(s.config.LockoutThreshold, s.config.LockoutDuration)
	authn := auth.NewAuthenticator(s.storage.Users(), jwtService, lockout)

	ipLimiter := middleware.NewRateLimiter(s.config.RateLimitPerIP)
	userLimiter := middleware.NewRateLimiter(s.config.RateLimitPerUser)

	cors := corslib.New(corslib.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
	})

	// Global middleware
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(cors.Handler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.JSONError(w, response.ErrNotFound)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(s.config.RequestTimeout))

		usersHandler := users.NewHandler(s.storage.Users())
		profilesHandler := profiles.NewHandler(s.storage, s.refresher, s.insights)
		alertsHandler := alerts.NewHandler(s.storage)

		// Public routes with IP rate limiting
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ipLimiter))
			r.Post("/users/register", usersHandler.Register)
			r.Post("/auth/token", auth.NewHandler(authn).Token)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(authn))
			r.Use(middleware.RateLimitByUser(userLimiter))

			r.Get("/users/me", usersHandler.Me)
			r.Put("/users/me", usersHandler.UpdateMe)

			r.Route("/profiles", func(r chi.Router) {
				r.Get("/", profilesHandler.List)
				r.Post("/", profilesHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", profilesHandler.Get)
					r.Put("/", profilesHandler.Update)
					r.Delete("/", profilesHandler.Delete)
					r.Get("/insights", profilesHandler.Insights)
					r.Get("/history", profilesHandler.History)
					r.Post("/refresh", profilesHandler.Refresh)
				})
			})

			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", alertsHandler.List)
				r.Post("/", alertsHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", alertsHandler.Get)
					r.Put("/", alertsHandler.Update)
					r.Delete("/", alertsHandler.Delete)
				})
			})
		})
	})

	// Health checks (public, no rate limit)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)

	return r
}
