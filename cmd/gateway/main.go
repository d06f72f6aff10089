package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openrelay/gatewaysuite/internal/api/handlers"
	"github.com/openrelay/gatewaysuite/internal/clients"
	"github.com/openrelay/gatewaysuite/internal/config"
	"github.com/openrelay/gatewaysuite/internal/hmacauth"
	"github.com/openrelay/gatewaysuite/internal/pipeline"
	"github.com/openrelay/gatewaysuite/internal/ratelimit"
	"github.com/openrelay/gatewaysuite/internal/router"
	"github.com/openrelay/gatewaysuite/internal/taskqueue"
	"github.com/openrelay/gatewaysuite/internal/telemetry"
	"github.com/openrelay/gatewaysuite/pkg/contracts"
	"github.com/openrelay/gatewaysuite/pkg/models"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Load()

	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer shutdownTelemetry(context.Background())

	signer := hmacauth.New(cfg.Secrets.SharedSecret)

	orch := &pipeline.Orchestrator{
		Intent:    clients.NewIntentClient(cfg.Services.Intent, signer),
		Memory:    clients.NewMemoryClient(cfg.Services.Memory, signer),
		Feeling:   clients.NewFeelingClient(cfg.Services.Feeling, signer),
		Drive:     clients.NewDriveClient(cfg.Services.Drive, signer),
		Policy:    clients.NewPolicyClient(cfg.Services.Policy, signer),
		ToolHub:   clients.NewToolHubClient(cfg.Services.ToolHub, signer),
		Telemetry: clients.NewTelemetryClient(cfg.Services.Telemetry, signer),
		Router:    router.New(cfg.Provider, buildProviders(cfg.Provider)...),
		Tuning:    cfg.Tuning,
	}

	limiter, queue := buildInfra()

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	worker := &taskqueue.Worker{
		Queue:      queue,
		MaxRetries: cfg.Tuning.TaskMaxRetries,
		Visibility: time.Duration(cfg.Tuning.TaskVisibilityTimeout) * time.Second,
		Handlers: map[string]taskqueue.HandlerFunc{
			"memory_candidate": memoryCandidateHandler(orch.Memory),
		},
	}
	go worker.Run(workerCtx)

	h := &handlers.Handlers{
		Orchestrator: orch,
		Limiter:      limiter,
		Queue:        queue,
		ToolHub:      orch.ToolHub,
		Tuning:       cfg.Tuning,
		Version:      cfg.Version,
		StartedAt:    time.Now(),
	}

	mux := handlers.NewRouter(h, signer)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down gateway")
		stopWorker()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", cfg.Port).Msg("gateway listening")
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("gateway server failed")
	}
}

// memoryCandidateHandler executes "memory_candidate" tasks: an asynchronous
// write of one candidate through the Memory service. Writes commute per
// (user_id, key), so duplicate delivery after a lost acknowledgment is safe.
func memoryCandidateHandler(memory contracts.MemoryClient) taskqueue.HandlerFunc {
	return func(ctx context.Context, task models.Task) error {
		userID, _ := task.Payload["user_id"].(string)
		text, _ := task.Payload["content"].(string)
		confidence, _ := task.Payload["confidence"].(float64)
		if userID == "" || text == "" {
			return fmt.Errorf("memory_candidate task %s missing user_id or content", task.ID)
		}
		_, err := memory.WriteCandidate(ctx, models.MemoryCandidate{UserID: userID, Text: text, Confidence: confidence})
		return err
	}
}

// buildProviders registers the local provider unconditionally (it degrades
// to a connection-refused StatusError at call time if nothing is listening)
// and the remote provider only when an OpenRouter API key is configured.
func buildProviders(cfg config.ProviderConfig) []contracts.ModelProvider {
	providers := []contracts.ModelProvider{router.NewLocalProvider("http://localhost:11434/v1")}
	if cfg.OpenRouterAPIKey != "" {
		providers = append(providers, router.NewRemoteProvider(cfg.OpenRouterBase, cfg.OpenRouterAPIKey))
	}
	return providers
}

func buildInfra() (ratelimit.Limiter, taskqueue.Queue) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Info().Msg("no REDIS_URL configured, using in-memory rate limiter and task queue")
		return ratelimit.NewMemLimiter(), taskqueue.NewMemQueue()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("invalid REDIS_URL, falling back to in-memory")
		return ratelimit.NewMemLimiter(), taskqueue.NewMemQueue()
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, falling back to in-memory")
		return ratelimit.NewMemLimiter(), taskqueue.NewMemQueue()
	}

	log.Info().Msg("connected to redis for rate limiting and task queue")
	return ratelimit.NewRedisLimiter(client), taskqueue.NewRedisQueue(client)
}
