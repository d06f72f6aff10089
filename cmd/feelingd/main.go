// Command feelingd runs the Feeling Engine as a standalone HTTP service:
// POST /affect/analyze, POST /affect/tone, POST /augment, GET /templates.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openrelay/gatewaysuite/internal/api"
	"github.com/openrelay/gatewaysuite/internal/config"
	"github.com/openrelay/gatewaysuite/internal/feeling"
	"github.com/openrelay/gatewaysuite/internal/gatewayerr"
	"github.com/openrelay/gatewaysuite/internal/hmacauth"
	"github.com/openrelay/gatewaysuite/internal/telemetry"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

func analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, gatewayerr.InvalidRequest("malformed JSON body"))
		return
	}
	api.WriteJSON(w, http.StatusOK, feeling.Analyze(req.Text))
}

func tone(w http.ResponseWriter, r *http.Request) {
	var req models.ToneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, gatewayerr.InvalidRequest("malformed JSON body"))
		return
	}
	// The wire contract carries only the affect record and an optional
	// target_audience hint, no raw sample text; formality/casual signal
	// detection in Tone falls back to whatever hint string is present.
	api.WriteJSON(w, http.StatusOK, feeling.Tone(req.Affect, req.TargetAudience))
}

func critique(w http.ResponseWriter, r *http.Request) {
	var req models.CritiqueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, gatewayerr.InvalidRequest("malformed JSON body"))
		return
	}
	api.WriteJSON(w, http.StatusOK, feeling.Critique(req.Text, req.MaxTokens))
}

func augment(w http.ResponseWriter, r *http.Request) {
	var req models.AugmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, gatewayerr.InvalidRequest("malformed JSON body"))
		return
	}
	api.WriteJSON(w, http.StatusOK, feeling.Augment(req.SystemPrompt, req.EmotionTemplateID))
}

func templates(w http.ResponseWriter, r *http.Request) {
	ids := make([]string, 0, len(feeling.Templates))
	for id := range feeling.Templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]models.EmotionTemplate, 0, len(ids))
	for _, id := range ids {
		out = append(out, feeling.Templates[id])
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"templates": out})
}

func health(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "feelingd"})
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Load()
	cfg.Port = config.PortWithDefault("FEELINGD_PORT", 8083)
	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer shutdownTelemetry(context.Background())

	signer := hmacauth.New(cfg.Secrets.SharedSecret)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(signer.Middleware)
	r.Get("/health", health)
	r.Post("/affect/analyze", analyze)
	r.Post("/affect/tone", tone)
	r.Post("/augment", augment)
	r.Post("/critique", critique)
	r.Get("/templates", templates)

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", cfg.Port).Msg("feelingd listening")
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("feelingd server failed")
	}
}
