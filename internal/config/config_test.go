package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "OPENAI_API_KEY",
		"EMBEDDING_MODEL", "EMBEDDING_DIM", "QDRANT_URL", "QDRANT_API_KEY",
		"MAX_RESULTS", "MAX_HISTORY", "CHUNK_SIZE", "CHUNK_OVERLAP",
		"PORT", "REQUEST_TIMEOUT", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	require.Equal(t, "claude-sonnet-4-20250514", cfg.AnthropicModel)
	require.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	require.Equal(t, 1536, cfg.EmbeddingDim)
	require.Equal(t, "http://localhost:6333", cfg.QdrantURL)
	require.Equal(t, 5, cfg.MaxResults)
	require.Equal(t, 2, cfg.MaxHistory)
	require.Equal(t, 800, cfg.ChunkSize)
	require.Equal(t, 100, cfg.ChunkOverlap)
	require.Equal(t, "8000", cfg.Port)
	require.Equal(t, 60*time.Second, cfg.RequestTimeout)
	require.False(t, cfg.TelemetryEnabled)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest")
	t.Setenv("MAX_RESULTS", "10")
	t.Setenv("REQUEST_TIMEOUT", "30s")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")

	cfg := Load()

	require.Equal(t, "claude-3-5-haiku-latest", cfg.AnthropicModel)
	require.Equal(t, 10, cfg.MaxResults)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.True(t, cfg.TelemetryEnabled)
	require.Equal(t, "http://collector:4318", cfg.OTLPEndpoint)
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_RESULTS", "lots")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	cfg := Load()

	require.Equal(t, 5, cfg.MaxResults)
	require.Equal(t, 60*time.Second, cfg.RequestTimeout)
}

func TestValidate(t *testing.T) {
	cfg := Config{AnthropicAPIKey: "a", OpenAIAPIKey: "o"}
	require.NoError(t, cfg.Validate())

	require.ErrorContains(t, Config{OpenAIAPIKey: "o"}.Validate(), "ANTHROPIC_API_KEY")
	require.ErrorContains(t, Config{AnthropicAPIKey: "a"}.Validate(), "OPENAI_API_KEY")
}
