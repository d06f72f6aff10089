// Command telemetryd runs the Telemetry/Cache Service as a standalone HTTP
// process: POST /log, GET /cache/get, POST /cache/set, GET /metrics. Uses
// Redis when REDIS_URL is set and an in-process fallback otherwise, the
// same dual-store selection the gateway makes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openrelay/gatewaysuite/internal/api"
	"github.com/openrelay/gatewaysuite/internal/cache"
	"github.com/openrelay/gatewaysuite/internal/config"
	"github.com/openrelay/gatewaysuite/internal/gatewayerr"
	"github.com/openrelay/gatewaysuite/internal/hmacauth"
	"github.com/openrelay/gatewaysuite/internal/metrics"
	"github.com/openrelay/gatewaysuite/internal/pii"
	"github.com/openrelay/gatewaysuite/internal/telemetry"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

// eventLog is the in-process ring buffer of logged events, capped at
// maxEvents so a long-running process doesn't grow unbounded. It is not a
// durable store.
type eventLog struct {
	mu     sync.Mutex
	events []models.LogEvent
}

const maxEvents = 1000

func (l *eventLog) append(e models.LogEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	if len(l.events) > maxEvents {
		l.events = l.events[len(l.events)-maxEvents:]
	}
}

type server struct {
	cache cache.Cache
	log   *eventLog
}

func redactPayload(payload map[string]interface{}) (map[string]interface{}, []string) {
	if payload == nil {
		return nil, nil
	}
	out := make(map[string]interface{}, len(payload))
	fieldSet := make(map[string]bool)
	for k, v := range payload {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		redacted, classes := pii.Redact(s)
		out[k] = redacted
		if len(classes) > 0 {
			fieldSet[k] = true
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for k := range fieldSet {
		fields = append(fields, k)
	}
	return out, fields
}

func (s *server) logEvent(w http.ResponseWriter, r *http.Request) {
	var req models.LogEvent
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, gatewayerr.InvalidRequest("malformed JSON body"))
		return
	}
	if req.Event == "" {
		api.WriteError(w, gatewayerr.InvalidRequest("event is required"))
		return
	}

	redactedPayload, fields := redactPayload(req.Payload)
	stored := models.LogEvent{Event: req.Event, Payload: redactedPayload}
	s.log.append(stored)

	if req.Event == "chat_turn" {
		metrics.ChatTurnTotal.Inc()
	}

	api.WriteJSON(w, http.StatusOK, models.LogEventResponse{
		Status:         "logged",
		EventID:        uuid.NewString(),
		RedactedFields: fields,
	})
}

func (s *server) cacheGet(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		api.WriteError(w, gatewayerr.InvalidRequest("key is required"))
		return
	}
	value, found, err := s.cache.Get(r.Context(), key)
	if err != nil {
		api.WriteError(w, gatewayerr.InternalError("cache get failed", err))
		return
	}
	if found {
		metrics.CacheHitTotal.Inc()
	} else {
		metrics.CacheMissTotal.Inc()
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": value, "found": found})
}

func (s *server) cacheSet(w http.ResponseWriter, r *http.Request) {
	var req models.CacheSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, gatewayerr.InvalidRequest("malformed JSON body"))
		return
	}
	if req.Key == "" {
		api.WriteError(w, gatewayerr.InvalidRequest("key is required"))
		return
	}
	raw, err := json.Marshal(req.Data)
	if err != nil {
		api.WriteError(w, gatewayerr.InvalidRequest("data must be JSON-serializable"))
		return
	}
	ttl := time.Duration(req.TTL) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if err := s.cache.Set(r.Context(), req.Key, string(raw), ttl); err != nil {
		api.WriteError(w, gatewayerr.InternalError("cache set failed", err))
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

func health(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "telemetryd"})
}

func buildCache() cache.Cache {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Info().Msg("no REDIS_URL configured, using in-memory cache")
		return cache.NewMemCache()
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("invalid REDIS_URL, falling back to in-memory cache")
		return cache.NewMemCache()
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, falling back to in-memory cache")
		return cache.NewMemCache()
	}
	log.Info().Msg("connected to redis for telemetry cache")
	return cache.NewRedisCache(client)
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Load()
	cfg.Port = config.PortWithDefault("TELEMETRYD_PORT", 8086)
	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer shutdownTelemetry(context.Background())

	signer := hmacauth.New(cfg.Secrets.SharedSecret)
	s := &server{cache: buildCache(), log: &eventLog{}}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(signer.Middleware)
	r.Get("/health", health)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/log", s.logEvent)
	r.Get("/cache/get", s.cacheGet)
	r.Post("/cache/set", s.cacheSet)

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", cfg.Port).Msg("telemetryd listening")
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("telemetryd server failed")
	}
}
