package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for a gatewaysuite service binary.
type Config struct {
	Port       int
	Version    string
	Telemetry  TelemetryConfig
	Provider   ProviderConfig
	Services   ServiceURLs
	Tuning     TuningConfig
	Secrets    SecretsConfig
	RemoteCode RemoteCodeConfig
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// ProviderConfig names the OpenRouter-compatible remote provider and the
// per-lane model slugs the Routing Policy selects between.
type ProviderConfig struct {
	OpenRouterAPIKey  string
	OpenRouterBase    string
	DefaultModel      string
	DefaultLocalModel string
	ToolcallModel     string
	VisionModel       string
	ExplicitModel     string
	CoderModel        string
}

// ServiceURLs maps logical peer-service names to base URLs, loaded from a
// services.json file rather than one env var per service.
type ServiceURLs struct {
	Intent    string
	Memory    string
	Feeling   string
	Drive     string
	Policy    string
	Telemetry string
	ToolHub   string
}

// TuningConfig holds the rate-limit, pipeline-timeout, and task-queue knobs.
type TuningConfig struct {
	RateLimitPerMin        int
	RateLimitBurst         int
	PipelineTimeoutSeconds int
	TaskMaxRetries         int
	TaskMaxDepth           int
	TaskVisibilityTimeout  int
}

type SecretsConfig struct {
	SharedSecret string
}

// RemoteCodeConfig holds the REMOTE_CODE_* opt-in knobs for traffic that
// defaults to the local provider.
type RemoteCodeConfig struct {
	RegulatedOptIn bool
}

// Load reads configuration from environment variables with sensible
// defaults, and services.json (if present) for peer-service base URLs.
func Load() *Config {
	return &Config{
		Port:    envInt("GATEWAY_PORT", 8080),
		Version: envStr("GATEWAY_VERSION", "0.1.0"),
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", true),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "gatewaysuite-gateway"),
		},
		Provider: ProviderConfig{
			OpenRouterAPIKey:  envStr("OPENROUTER_API_KEY", ""),
			OpenRouterBase:    envStr("OPENROUTER_API_BASE", "https://openrouter.ai/api/v1"),
			DefaultModel:      envStr("OPENROUTER_MODEL_DEFAULT", "openrouter/auto"),
			DefaultLocalModel: envStr("LOCAL_MODEL_DEFAULT", "local/default"),
			ToolcallModel:     envStr("TOOLCALL_MODEL", "openrouter/toolcall"),
			VisionModel:       envStr("VISION_MODEL", "openrouter/vision"),
			ExplicitModel:     envStr("EXPLICIT_MODEL", "openrouter/explicit"),
			CoderModel:        envStr("CODER_MODEL", "openrouter/coder"),
		},
		Services: loadServiceURLs(envStr("SERVICES_CONFIG_PATH", "services.json")),
		Tuning: TuningConfig{
			RateLimitPerMin:        envInt("RATE_LIMIT_PER_MIN", 60),
			RateLimitBurst:         envInt("RATE_LIMIT_BURST", 10),
			PipelineTimeoutSeconds: envInt("PIPELINE_TIMEOUT_SECONDS", 0),
			TaskMaxRetries:         envInt("TASK_MAX_RETRIES", 3),
			TaskMaxDepth:           envInt("TASK_MAX_DEPTH", 5),
			TaskVisibilityTimeout:  envInt("TASK_VISIBILITY_TIMEOUT", 30),
		},
		Secrets: SecretsConfig{
			SharedSecret: envStr("SUITE_SHARED_SECRET", ""),
		},
		RemoteCode: RemoteCodeConfig{
			RegulatedOptIn: envBool("REMOTE_CODE_REGULATED_OPT_IN", false),
		},
	}
}

// loadServiceURLs reads the logical-name -> base-URL map from a JSON file.
// Missing or unreadable files fall back to localhost defaults per service,
// so a single binary can run standalone without services.json present.
func loadServiceURLs(path string) ServiceURLs {
	defaults := ServiceURLs{
		Intent:    "http://localhost:8081",
		Memory:    "http://localhost:8082",
		Feeling:   "http://localhost:8083",
		Drive:     "http://localhost:8084",
		Policy:    "http://localhost:8085",
		Telemetry: "http://localhost:8086",
		ToolHub:   "http://localhost:8087",
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return defaults
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return defaults
	}

	apply := func(key string, dst *string) {
		if v, ok := raw[key]; ok && v != "" {
			*dst = v
		}
	}
	apply("intent", &defaults.Intent)
	apply("memory", &defaults.Memory)
	apply("feeling", &defaults.Feeling)
	apply("drive", &defaults.Drive)
	apply("policy", &defaults.Policy)
	apply("telemetry", &defaults.Telemetry)
	apply("tool_hub", &defaults.ToolHub)
	return defaults
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// PortWithDefault reads a service-specific port override, falling back to
// fallback when unset or unparsable. Peer-service binaries call this instead
// of Config.Port, which only ever reflects GATEWAY_PORT.
func PortWithDefault(envKey string, fallback int) int {
	return envInt(envKey, fallback)
}

// EnvList splits a comma-separated env var into a trimmed, non-empty slice.
func EnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
