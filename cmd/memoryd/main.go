// Command memoryd runs the Memory Service as a standalone HTTP process:
// GET /mem/retrieve, GET /mem/summary, POST /mem/candidates.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
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
	"github.com/openrelay/gatewaysuite/internal/memory"
	"github.com/openrelay/gatewaysuite/internal/telemetry"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

type server struct {
	svc *memory.Service
}

func (s *server) retrieve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		api.WriteError(w, gatewayerr.InvalidRequest("user_id is required"))
		return
	}
	k := 5
	if raw := q.Get("k"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			k = n
		}
	}
	resp, err := s.svc.Retrieve(r.Context(), userID, 0, q.Get("intent"), k)
	if err != nil {
		api.WriteError(w, gatewayerr.InternalError("retrieve failed", err))
		return
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

func (s *server) summary(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		api.WriteError(w, gatewayerr.InvalidRequest("user_id is required"))
		return
	}
	text, err := s.svc.Summary(r.Context(), userID)
	if err != nil {
		api.WriteError(w, gatewayerr.InternalError("summary failed", err))
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"summary": text})
}

func (s *server) candidates(w http.ResponseWriter, r *http.Request) {
	var cand models.MemoryCandidate
	if err := json.NewDecoder(r.Body).Decode(&cand); err != nil {
		api.WriteError(w, gatewayerr.InvalidRequest("malformed JSON body"))
		return
	}
	result, err := s.svc.WriteCandidate(r.Context(), cand)
	if err != nil {
		api.WriteError(w, gatewayerr.InternalError("candidate write failed", err))
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}

func health(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "memoryd"})
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Load()
	cfg.Port = config.PortWithDefault("MEMORYD_PORT", 8082)
	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer shutdownTelemetry(context.Background())

	var memStore memory.Store = memory.NewMemStore()
	if path := os.Getenv("MEMORY_DB_PATH"); path != "" {
		store, err := memory.OpenSQLiteStore(path)
		if err != nil {
			log.Warn().Err(err).Msg("sqlite store unavailable, falling back to in-memory")
		} else {
			memStore = store
		}
	}
	defer memStore.Close()
	s := &server{svc: memory.NewService(memStore)}

	signer := hmacauth.New(cfg.Secrets.SharedSecret)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(signer.Middleware)
	r.Get("/health", health)
	r.Get("/mem/retrieve", s.retrieve)
	r.Get("/mem/summary", s.summary)
	r.Post("/mem/candidates", s.candidates)

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", cfg.Port).Msg("memoryd listening")
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("memoryd server failed")
	}
}
