package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/recallio/recallio/internal/api"
	"github.com/recallio/recallio/internal/api/handlers"
	"github.com/recallio/recallio/internal/api/middleware"
)

type RouterConfig struct {
	TokenValidator  middleware.TokenValidator
	DocumentHandler *handlers.DocumentHandler
	AskHandler      *handlers.AskHandler
	CreditHandler   *handlers.CreditHandler
	UploadHandler   *handlers.UploadHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 10 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.TokenValidator))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Ingest)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
		})

		r.Get("/jobs/{id}", cfg.DocumentHandler.GetJob)

		r.Post("/ask", cfg.AskHandler.Ask)
		r.Post("/flashcards", cfg.AskHandler.Flashcards)

		r.Get("/credits", cfg.CreditHandler.Balance)

		if cfg.UploadHandler != nil {
			r.Route("/files", func(r chi.Router) {
				r.Post("/init", cfg.UploadHandler.InitUpload)
				r.Get("/{id}/download", cfg.UploadHandler.GetDownloadURL)
			})
		}
	})

	return r
}
