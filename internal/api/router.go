package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/sectorlens/sectorlens/internal/api/handler"
	custommw "github.com/sectorlens/sectorlens/internal/api/middleware"
	"github.com/sectorlens/sectorlens/internal/chat"
	"github.com/sectorlens/sectorlens/internal/config"
	"github.com/sectorlens/sectorlens/internal/domain"
	"github.com/sectorlens/sectorlens/internal/repository/postgres"
	"github.com/sectorlens/sectorlens/internal/repository/redis"
	"github.com/sectorlens/sectorlens/internal/security"
	"github.com/sectorlens/sectorlens/internal/service"
	"github.com/sectorlens/sectorlens/internal/session"
)

// Deps are the initialized subsystems the router wires together.
type Deps struct {
	Config   *config.Config
	DB       *postgres.DB
	Redis    *redis.Client
	Provider domain.AuthProvider
	Chats    *chat.Store
	Session  *session.Manager
	Log      zerolog.Logger
}

// NewRouter creates and configures the HTTP router
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(custommw.Logger(d.Log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(d.Config.Server.WriteTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Repositories
	profileRepo := postgres.NewProfileRepository(d.DB.Pool)
	shareRepo := postgres.NewShareRepository(d.DB.Pool)

	// Redis-backed components
	shareCache := redis.NewShareCache(d.Redis, d.Config.Share.CacheTTL)
	rateLimiter := redis.NewRateLimiter(d.Redis, "share", d.Config.Share.RateLimit)

	// Services
	shareService := service.NewShareService(shareRepo, shareCache, d.Log)

	// Handlers
	callbackHandler := handler.NewCallbackHandler(d.Provider, profileRepo, d.Log)
	shareHandler := handler.NewShareHandler(shareService)
	localHandler := handler.NewLocalHandler(d.Chats, d.Session)

	// Middleware backed by the shared token secret
	verifier := security.NewTokenVerifier(d.Config.Auth.JWTSecret)
	authMiddleware := custommw.NewAuthMiddleware(verifier)
	rateLimitMiddleware := custommw.NewRateLimitMiddleware(rateLimiter)

	// OAuth callback sits outside the API prefix; the provider redirects
	// the browser here.
	r.Get("/auth/callback", callbackHandler.Callback)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(d.DB))

		// Public share view
		r.Get("/share/{shareID}", shareHandler.Get)

		// Protected share management
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Use(rateLimitMiddleware.Limit)

			r.Post("/share", shareHandler.Create)
			r.Delete("/share/{shareID}", shareHandler.Delete)
		})
	})

	// Loopback-only routes for the UI shell
	r.Route("/local/v1", func(r chi.Router) {
		r.Post("/chat/send", localHandler.SendMessage)
		r.Post("/chat/conversations", localHandler.CreateConversation)
		r.Get("/chat/state", localHandler.ChatState)
		r.Get("/session", localHandler.Session)
		r.Post("/session/clear", localHandler.ClearSession)
	})

	return r
}
