// Command drived runs the Drive-State Engine as a standalone HTTP service:
// GET /drive/get, POST /drive/update, POST /drive/policy.
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
	"github.com/openrelay/gatewaysuite/internal/drive"
	"github.com/openrelay/gatewaysuite/internal/gatewayerr"
	"github.com/openrelay/gatewaysuite/internal/hmacauth"
	"github.com/openrelay/gatewaysuite/internal/telemetry"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

type server struct {
	store *drive.Store
}

func (s *server) get(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		api.WriteError(w, gatewayerr.InvalidRequest("user_id is required"))
		return
	}
	api.WriteJSON(w, http.StatusOK, s.store.Get(r.Context(), userID))
}

func (s *server) update(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		api.WriteError(w, gatewayerr.InvalidRequest("user_id is required"))
		return
	}
	var req models.DriveUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, gatewayerr.InvalidRequest("malformed JSON body"))
		return
	}
	api.WriteJSON(w, http.StatusOK, s.store.Update(r.Context(), userID, req.Delta))
}

func (s *server) policy(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		api.WriteError(w, gatewayerr.InvalidRequest("user_id is required"))
		return
	}
	api.WriteJSON(w, http.StatusOK, s.store.Policy(r.Context(), userID))
}

func health(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "drived"})
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Load()
	cfg.Port = config.PortWithDefault("DRIVED_PORT", 8084)
	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer shutdownTelemetry(context.Background())

	signer := hmacauth.New(cfg.Secrets.SharedSecret)

	store := drive.NewStore()
	if path := os.Getenv("DRIVE_DB_PATH"); path != "" {
		backing, err := drive.OpenSQLiteBacking(path)
		if err != nil {
			log.Warn().Err(err).Msg("sqlite backing unavailable, falling back to in-memory")
		} else {
			store = drive.NewStoreWithBacking(backing)
		}
	}
	defer store.Close()
	s := &server{store: store}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(signer.Middleware)
	r.Get("/health", health)
	r.Get("/drive/get", s.get)
	r.Post("/drive/update", s.update)
	r.Post("/drive/policy", s.policy)

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", cfg.Port).Msg("drived listening")
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("drived server failed")
	}
}
