package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(h *Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(h.SessionMiddleware)

		// Browser pages
		r.Get("/", h.IndexPage)
		r.Post("/signup", h.SignupForm)
		r.Post("/login", h.LoginForm)
		r.Post("/theme", h.ThemeToggle)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireMemberPage)

			r.Get("/chat", h.ChatPage)
			r.Post("/ask", h.AskForm)
			r.Post("/feedback", h.FeedbackForm)
			r.Post("/history/clear", h.ClearHistoryForm)
			r.Get("/history/export.csv", h.ExportCSV)
			r.Post("/logout", h.LogoutForm)
		})

		// All API routes will be under /api
		r.Route("/api", func(r chi.Router) {
			// Public routes
			r.Post("/signup", h.SignupHandler)
			r.Post("/login", h.LoginHandler)

			// Member routes
			r.Group(func(r chi.Router) {
				r.Use(h.RequireMember)

				r.Post("/logout", h.LogoutHandler)
				r.Post("/ask", h.AskHandler)
				r.Get("/history", h.HistoryHandler)
				r.Delete("/history", h.ClearHistoryHandler)
				r.Get("/history/export", h.ExportHistoryHandler)
				r.Post("/feedback", h.FeedbackHandler)
			})
		})
	})

	return r
}
