package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the generation and loop parameters. These match the values
// the agent was tuned with; override via environment.
const (
	DefaultModelID           = "ibm/granite-3-2-8b-instruct"
	DefaultMaxTokens         = 1024
	DefaultTemperature       = 0.2
	DefaultTopP              = 0.95
	DefaultRepetitionPenalty = 1.2
	DefaultMaxIterations     = 10
	DefaultDBDriver          = "duckdb"
	DefaultStateDSN          = "data/querysmith.db"
	DefaultHTTPAddr          = ":8080"
	DefaultLLMTimeout        = 120 * time.Second
	DefaultQueryTimeout      = 30 * time.Second
)

// Credentials holds per-provider secrets and endpoints. Only the fields for
// the selected provider need to be set.
type Credentials struct {
	WatsonxAPIKey    string
	WatsonxProjectID string
	WatsonxURL       string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	OllamaHost       string
}

// Config is the process configuration, loaded once at startup and immutable
// for the lifetime of the agent instance.
type Config struct {
	Provider          string // watsonx, openai, anthropic, ollama
	ModelID           string
	MaxTokens         int
	Temperature       float64
	TopP              float64
	RepetitionPenalty float64
	MaxIterations     int

	DBDriver string // duckdb, sqlite, postgres
	DBDSN    string
	SeedDemo bool

	// StateDSN is the sqlite file holding run history and schedules. It is
	// deliberately separate from the target database so the agent never
	// sees its own bookkeeping tables.
	StateDSN string

	HTTPAddr     string
	LLMTimeout   time.Duration
	QueryTimeout time.Duration

	Credentials Credentials
}

// Load reads configuration from the environment, applying defaults for
// anything unset. A .env file next to the binary is honored when present.
func Load() (*Config, error) {
	// Missing .env is the normal case in production; ignore the error.
	_ = godotenv.Load()

	cfg := &Config{
		Provider:          strings.ToLower(envOr("QS_MODEL_PROVIDER", "watsonx")),
		ModelID:           envOr("QS_MODEL_ID", DefaultModelID),
		MaxTokens:         envInt("QS_MAX_TOKENS", DefaultMaxTokens),
		Temperature:       envFloat("QS_TEMPERATURE", DefaultTemperature),
		TopP:              envFloat("QS_TOP_P", DefaultTopP),
		RepetitionPenalty: envFloat("QS_REPETITION_PENALTY", DefaultRepetitionPenalty),
		MaxIterations:     envInt("QS_MAX_ITERATIONS", DefaultMaxIterations),
		DBDriver:          strings.ToLower(envOr("QS_DB_DRIVER", DefaultDBDriver)),
		DBDSN:             os.Getenv("QS_DB_DSN"),
		SeedDemo:          envBool("QS_SEED_DEMO"),
		StateDSN:          envOr("QS_STATE_DSN", DefaultStateDSN),
		HTTPAddr:          envOr("QS_HTTP_ADDR", DefaultHTTPAddr),
		LLMTimeout:        envDuration("QS_LLM_TIMEOUT", DefaultLLMTimeout),
		QueryTimeout:      envDuration("QS_QUERY_TIMEOUT", DefaultQueryTimeout),
		Credentials: Credentials{
			WatsonxAPIKey:    os.Getenv("WATSONX_API_KEY"),
			WatsonxProjectID: os.Getenv("WATSONX_PROJECT_ID"),
			WatsonxURL:       envOr("WATSONX_URL", "https://us-south.ml.cloud.ibm.com"),
			OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
			AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
			OllamaHost:       envOr("OLLAMA_HOST", "http://localhost:11434"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Provider {
	case "watsonx", "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("unsupported model provider: %q", c.Provider)
	}
	switch c.DBDriver {
	case "duckdb", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported db driver: %q", c.DBDriver)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("QS_MAX_ITERATIONS must be >= 1, got %d", c.MaxIterations)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("QS_MAX_TOKENS must be >= 1, got %d", c.MaxTokens)
	}
	return nil
}

// Mask shortens a secret for log and doctor output, keeping the last four
// characters for recognition.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
