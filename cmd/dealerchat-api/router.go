// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/floorservicemsk/dealerchat/cmd/dealerchat-api/handlers"
	"github.com/floorservicemsk/dealerchat/internal/config"
	"github.com/floorservicemsk/dealerchat/internal/middleware"
)

// NewRouter creates the main API router.
func NewRouter(logger zerolog.Logger, cfg *config.Config, app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"dealerchat"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !app.Queue.HasCapacity() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"busy"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	chatHandler := handlers.NewChatHandler(logger, app.Orchestrator, app.Queue, app.Limiter)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", chatHandler.Chat)
		r.Post("/chat/stream", chatHandler.ChatStream)
		r.Get("/queue/stats", chatHandler.QueueStats)
	})

	return r
}
