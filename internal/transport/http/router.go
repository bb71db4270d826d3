package http

import (
	"net/http"

	"blogpulse/internal/handler"
	authmw "blogpulse/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds the handlers and settings needed to build the router.
type RouterConfig struct {
	AuthHandler    *handler.AuthHandler
	CommentHandler *handler.CommentHandler
	ChatHandler    *handler.ChatHandler
	DeviceHandler  *handler.DeviceHandler
	MediaHandler   *handler.MediaHandler
	JWTSecret      string
}

// NewRouter creates and configures the main application router.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Public routes
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", cfg.AuthHandler.Register)
		r.Post("/login", cfg.AuthHandler.Login)
		r.Post("/refresh", cfg.AuthHandler.Refresh)
	})

	// Reading comments requires no session.
	r.Get("/posts/{slug}/comments", cfg.CommentHandler.List)
	r.Get("/posts/{slug}/comments/count", cfg.CommentHandler.Count)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

		r.Get("/me", cfg.AuthHandler.Me)
		r.Post("/auth/logout", cfg.AuthHandler.Logout)
		r.Post("/auth/logout-all", cfg.AuthHandler.LogoutAll)

		r.Post("/posts/{slug}/comments", cfg.CommentHandler.Create)
		r.Post("/comments/{id}/replies", cfg.CommentHandler.Reply)
		r.Post("/comments/{id}/like", cfg.CommentHandler.Like)
		r.Post("/comments/{id}/report", cfg.CommentHandler.Report)

		r.Post("/chat", cfg.ChatHandler.Ask)
		r.Get("/chat/quota", cfg.ChatHandler.Quota)
		r.Post("/chat/quota/redeem", cfg.ChatHandler.Redeem)

		r.Post("/devices/token", cfg.DeviceHandler.RegisterToken)
		r.Delete("/devices/token", cfg.DeviceHandler.RemoveToken)

		if cfg.MediaHandler != nil {
			r.Post("/users/me/avatar", cfg.MediaHandler.UploadAvatar)
		}
	})

	return r
}
