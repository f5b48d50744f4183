package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/secondbrain/internal/profile"
	"github.com/hrygo/secondbrain/store"
)

func TestNewConfigFromProfile_OpenAI(t *testing.T) {
	prof := &profile.Profile{
		AIEnabled:           true,
		AIEmbeddingProvider: "openai",
		AIEmbeddingModel:    "text-embedding-3-small",
		AIEmbeddingMaxBytes: 8000,
		AILLMProvider:       "openai",
		AILLMModel:          "gpt-4o-mini",
		AIOpenAIAPIKey:      "sk-test",
		AIOpenAIBaseURL:     "https://api.openai.com/v1",
	}

	cfg := NewConfigFromProfile(prof)
	require.True(t, cfg.Enabled)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, store.EmbeddingDimensions, cfg.Embedding.Dimensions)
	assert.Equal(t, 8000, cfg.Embedding.MaxBytes)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestNewConfigFromProfile_SiliconFlowAndDeepSeek(t *testing.T) {
	prof := &profile.Profile{
		AIEnabled:            true,
		AIEmbeddingProvider:  "siliconflow",
		AIEmbeddingModel:     "BAAI/bge-m3",
		AISiliconFlowAPIKey:  "sf-key",
		AISiliconFlowBaseURL: "https://api.siliconflow.cn/v1",
		AILLMProvider:        "deepseek",
		AILLMModel:           "deepseek-chat",
		AIDeepSeekAPIKey:     "ds-key",
		AIDeepSeekBaseURL:    "https://api.deepseek.com",
	}

	cfg := NewConfigFromProfile(prof)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://api.siliconflow.cn/v1", cfg.Embedding.BaseURL)
	assert.Equal(t, "ds-key", cfg.LLM.APIKey)
	assert.Equal(t, "https://api.deepseek.com", cfg.LLM.BaseURL)
}

func TestNewConfigFromProfile_Ollama(t *testing.T) {
	prof := &profile.Profile{
		AIEnabled:           true,
		AIEmbeddingProvider: "ollama",
		AIEmbeddingModel:    "nomic-embed-text",
		AILLMProvider:       "ollama",
		AILLMModel:          "llama3",
		AIOllamaBaseURL:     "http://localhost:11434/",
	}

	cfg := NewConfigFromProfile(prof)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:11434/v1", cfg.Embedding.BaseURL)
	assert.Equal(t, "http://localhost:11434/", cfg.LLM.BaseURL)
}

func TestNewConfigFromProfile_Disabled(t *testing.T) {
	cfg := NewConfigFromProfile(&profile.Profile{AIEnabled: true})
	assert.False(t, cfg.Enabled, "no credentials means AI stays off")
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate_MissingKeys(t *testing.T) {
	cfg := &Config{
		Enabled:   true,
		Embedding: EmbeddingConfig{Provider: "openai", Dimensions: 1536},
		LLM:       LLMConfig{Provider: "openai", APIKey: "k"},
	}
	assert.Error(t, cfg.Validate())

	cfg.Embedding.APIKey = "k"
	cfg.LLM.APIKey = ""
	assert.Error(t, cfg.Validate())
}
