package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/ender-accounts/internal/api/handlers"
	"github.com/isdelr/ender-accounts/internal/auth"
	"github.com/isdelr/ender-accounts/internal/services"
	"github.com/isdelr/ender-accounts/internal/websocket"
)

// Options carries the transport settings of the router.
type Options struct {
	AllowedOrigins []string
	SecureCookies  bool
	AuthRateLimit  float64
	AuthRateBurst  int
}

// NewRouter creates and configures a new Chi router.
func NewRouter(userService services.UserServiceProvider, graphService services.GraphServiceProvider, activity services.ActivityProvider, authenticator *auth.Authenticator, hub *websocket.Hub, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService, authenticator, opts.SecureCookies)
	graphHandler := handlers.NewGraphHandler(graphService)
	eventHandler := handlers.NewEventHandler(activity)
	wsHandler := handlers.NewWebSocketHandler(hub, opts.AllowedOrigins)
	limiter := NewIPRateLimiter(opts.AuthRateLimit, opts.AuthRateBurst)

	requireAuth := authenticator.Middleware()
	optionalAuth := authenticator.OptionalMiddleware()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(limiter.Middleware).Post("/register", userHandler.Register)
			r.With(limiter.Middleware).Post("/login", userHandler.Login)
			r.With(requireAuth).Get("/verify", userHandler.Verify)
			r.With(requireAuth).Get("/me", userHandler.GetMe)
		})

		r.With(requireAuth).Get("/ws", wsHandler.Serve)
		r.With(requireAuth).Get("/events", eventHandler.GetRecent)

		r.With(optionalAuth).Get("/accounts/{id}", graphHandler.ProfileByID)

		r.Route("/users", func(r chi.Router) {
			r.Get("/search", userHandler.Search)
			r.With(optionalAuth).Get("/{username}", graphHandler.Profile)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/{id}/follow", graphHandler.ToggleFollow)
				r.Get("/{id}/following", graphHandler.Following)
				r.Get("/{id}/followers", graphHandler.Followers)
			})
		})
	})

	return r
}
