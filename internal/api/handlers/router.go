package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openrelay/gatewaysuite/internal/api/middleware"
	"github.com/openrelay/gatewaysuite/internal/hmacauth"
)

// NewRouter builds the gateway's HTTP router, wiring global middleware,
// HMAC verification of inbound signed POSTs, and the full route surface.
func NewRouter(h *Handlers, signer *hmacauth.Signer) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	if signer != nil {
		r.Use(signer.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id", "X-User-Id", hmacauth.SignatureHeader},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat/completions", h.ChatCompletions)
		r.Post("/chat/completions/stream", h.ChatCompletionsStream)
		r.Get("/models", h.Models)
		r.Get("/tools", h.Tools)
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/enqueue", h.EnqueueTask)
		r.Get("/dlq", h.TasksDLQ)
	})

	return r
}
