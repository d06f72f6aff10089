// Command intentd runs the Intent Router as a standalone HTTP service:
// POST /classify, POST /route.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openrelay/gatewaysuite/internal/api"
	"github.com/openrelay/gatewaysuite/internal/config"
	"github.com/openrelay/gatewaysuite/internal/gatewayerr"
	"github.com/openrelay/gatewaysuite/internal/hmacauth"
	"github.com/openrelay/gatewaysuite/internal/intent"
	"github.com/openrelay/gatewaysuite/internal/telemetry"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

func classify(w http.ResponseWriter, r *http.Request) {
	var req models.ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, gatewayerr.InvalidRequest("malformed JSON body"))
		return
	}
	api.WriteJSON(w, http.StatusOK, intent.Classify(req.Text))
}

type server struct {
	regulatedRemoteOptIn bool
}

func (s *server) route(w http.ResponseWriter, r *http.Request) {
	var req models.RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, gatewayerr.InvalidRequest("malformed JSON body"))
		return
	}
	if !req.RegulatedRemoteOptIn {
		req.RegulatedRemoteOptIn = s.regulatedRemoteOptIn
	}
	api.WriteJSON(w, http.StatusOK, intent.Route(req))
}

func health(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "intentd"})
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Load()
	cfg.Port = config.PortWithDefault("INTENTD_PORT", 8081)
	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer shutdownTelemetry(context.Background())

	signer := hmacauth.New(cfg.Secrets.SharedSecret)
	s := &server{regulatedRemoteOptIn: cfg.RemoteCode.RegulatedOptIn}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(signer.Middleware)
	r.Get("/health", health)
	r.Post("/classify", classify)
	r.Post("/route", s.route)

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", cfg.Port).Msg("intentd listening")
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("intentd server failed")
	}
}
