package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sahilmundada/rathialmuninetwork/internal/api/middleware"
	"github.com/sahilmundada/rathialmuninetwork/internal/chat"
	"github.com/sahilmundada/rathialmuninetwork/internal/config"
	"github.com/sahilmundada/rathialmuninetwork/internal/handlers"
	"github.com/sahilmundada/rathialmuninetwork/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *config.Config, logger zerolog.Logger, st store.DataStore, redisStore *store.RedisStore, hub *chat.Hub) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024))
	r.Use(middleware.RequireJSON)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(st, redisStore, hub, logger)
	auth := middleware.NewAuthMiddleware(cfg.AuthSecret)
	sendLimiter := middleware.NewSendRateLimiter(redisStore, cfg.SendLimitPerMinute, logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/health", h.Health)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		// Live protocol
		r.Get("/ws", h.WebSocket)

		// Synchronous equivalents for non-connected clients
		r.Get("/messages/conversation/{userID}", h.GetConversation)
		r.Get("/messages/recent", h.GetRecentConversations)
		r.With(sendLimiter.Middleware).Post("/messages/send", h.SendMessage)
		r.Put("/messages/read/{senderID}", h.MarkMessagesRead)
		r.Delete("/messages/{messageID}", h.DeleteMessage)

		r.Get("/users/{id}", h.GetUser)
		r.Get("/users/online", h.OnlineUsers)
	})

	return r
}
