package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"QS_MODEL_PROVIDER", "QS_MODEL_ID", "QS_MAX_TOKENS", "QS_TEMPERATURE",
		"QS_TOP_P", "QS_REPETITION_PENALTY", "QS_MAX_ITERATIONS",
		"QS_DB_DRIVER", "QS_DB_DSN", "QS_SEED_DEMO", "QS_STATE_DSN",
		"QS_HTTP_ADDR", "QS_LLM_TIMEOUT", "QS_QUERY_TIMEOUT",
		"WATSONX_API_KEY", "WATSONX_PROJECT_ID", "WATSONX_URL",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "ANTHROPIC_API_KEY", "OLLAMA_HOST",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "watsonx", cfg.Provider)
	assert.Equal(t, "ibm/granite-3-2-8b-instruct", cfg.ModelID)
	assert.Equal(t, 1024, cfg.MaxTokens)
	assert.Equal(t, 0.2, cfg.Temperature)
	assert.Equal(t, 0.95, cfg.TopP)
	assert.Equal(t, 1.2, cfg.RepetitionPenalty)
	assert.Equal(t, 10, cfg.MaxIterations)
	assert.Equal(t, "duckdb", cfg.DBDriver)
	assert.Equal(t, "data/querysmith.db", cfg.StateDSN)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 120*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.False(t, cfg.SeedDemo)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("QS_MODEL_PROVIDER", "ollama")
	t.Setenv("QS_MODEL_ID", "qwen2.5:3b")
	t.Setenv("QS_MAX_TOKENS", "256")
	t.Setenv("QS_TEMPERATURE", "0.7")
	t.Setenv("QS_MAX_ITERATIONS", "3")
	t.Setenv("QS_DB_DRIVER", "sqlite")
	t.Setenv("QS_DB_DSN", "/tmp/agent.db")
	t.Setenv("QS_SEED_DEMO", "true")
	t.Setenv("QS_STATE_DSN", "/tmp/state.db")
	t.Setenv("QS_LLM_TIMEOUT", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Provider)
	assert.Equal(t, "qwen2.5:3b", cfg.ModelID)
	assert.Equal(t, 256, cfg.MaxTokens)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, 3, cfg.MaxIterations)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/tmp/agent.db", cfg.DBDSN)
	assert.True(t, cfg.SeedDemo)
	assert.Equal(t, "/tmp/state.db", cfg.StateDSN)
	assert.Equal(t, 10*time.Second, cfg.LLMTimeout)
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("QS_MODEL_PROVIDER", "skynet")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported model provider")
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("QS_DB_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported db driver")
}

func TestLoad_RejectsNonPositiveIterations(t *testing.T) {
	clearEnv(t)
	t.Setenv("QS_MAX_ITERATIONS", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "****", Mask("abc"))
	assert.Equal(t, "****6789", Mask("0123456789"))
}
