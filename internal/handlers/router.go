package handlers

import (
	"net/http"

	customMiddleware "feedback-backend/internal/middleware"
	"feedback-backend/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(sessions *session.Manager, verifier customMiddleware.TokenVerifier) http.Handler {
	authHandler := NewAuthHandler(sessions)
	sessionHandler := NewSessionHandler()
	feedbackHandler := NewFeedbackHandler()

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "feedback-backend"})
	})

	// Public routes (no auth required)
	r.Post("/auth/register", authHandler.Register)
	r.Post("/auth/login", authHandler.Login)

	// Protected routes (session token required)
	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.JWTAuth(verifier))

		r.Post("/auth/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(withSession(sessions))

			r.Get("/session", sessionHandler.GetSession)
			r.Delete("/session/error", sessionHandler.ClearError)

			r.Get("/feedback", feedbackHandler.List)
			r.Post("/feedback", feedbackHandler.Submit)
			r.Patch("/feedback/{id}", feedbackHandler.Update)
			r.Delete("/feedback/{id}", feedbackHandler.Delete)
			r.Get("/feedback/live", feedbackHandler.Live)

			r.Get("/admin/feedback", feedbackHandler.AdminList)
		})
	})

	return r
}
