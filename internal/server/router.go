// Package server provides the HTTP transport for the page reader API.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/lectern-ai/page-reader/internal/config"
	"github.com/lectern-ai/page-reader/internal/observability"
)

// NewRouter creates the API router with all routes configured.
func NewRouter(h *Handler, cfg *config.Config, logger *observability.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(cfg.Server.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"page-reader"}`))
	})

	r.Post("/add-llm-keys", h.AddLLMKeys)
	r.Post("/explain-page", h.ExplainPage)

	return r
}
