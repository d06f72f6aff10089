// Command toolhubd runs the Tool Hub as a standalone HTTP process,
// registering two built-in tools (echo, current_time) so the gateway's
// tool-call loop can be exercised end to end without external adapters.
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
	"github.com/openrelay/gatewaysuite/internal/telemetry"
	"github.com/openrelay/gatewaysuite/internal/toolhub"
)

type execRequest struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type server struct {
	registry *toolhub.Registry
}

func (s *server) list(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"tools": s.registry.List()})
}

func (s *server) exec(w http.ResponseWriter, r *http.Request) {
	var req execRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, gatewayerr.InvalidRequest("malformed JSON body"))
		return
	}
	if req.Name == "" {
		api.WriteError(w, gatewayerr.InvalidRequest("name is required"))
		return
	}
	result, err := s.registry.Exec(r.Context(), req.Name, req.Arguments)
	if err != nil {
		api.WriteError(w, gatewayerr.InternalError("tool execution failed", err))
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}

func health(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "toolhubd"})
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Load()
	cfg.Port = config.PortWithDefault("TOOLHUBD_PORT", 8087)
	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer shutdownTelemetry(context.Background())

	signer := hmacauth.New(cfg.Secrets.SharedSecret)
	s := &server{registry: toolhub.NewRegistry()}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(signer.Middleware)
	r.Get("/health", health)
	r.Get("/tools", s.list)
	r.Post("/tools/exec", s.exec)

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", cfg.Port).Msg("toolhubd listening")
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("toolhubd server failed")
	}
}
