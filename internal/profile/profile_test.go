package profile

import (
	"os"
	"path/filepath"
	"testing"
)

var aiEnvVars = []string{
	"SECONDBRAIN_AI_ENABLED",
	"SECONDBRAIN_AI_EMBEDDING_PROVIDER",
	"SECONDBRAIN_AI_EMBEDDING_MODEL",
	"SECONDBRAIN_AI_EMBEDDING_MAX_BYTES",
	"SECONDBRAIN_AI_LLM_PROVIDER",
	"SECONDBRAIN_AI_LLM_MODEL",
	"SECONDBRAIN_AI_OPENAI_API_KEY",
	"SECONDBRAIN_AI_OPENAI_BASE_URL",
	"SECONDBRAIN_AI_SILICONFLOW_API_KEY",
	"SECONDBRAIN_AI_DEEPSEEK_API_KEY",
	"SECONDBRAIN_AI_OLLAMA_BASE_URL",
	"SECONDBRAIN_REDIS_URL",
	"SECONDBRAIN_TIMEZONE",
	"SECONDBRAIN_SEARCH_THRESHOLD",
}

// clearAIEnvVars blanks every variable FromEnv reads; t.Setenv restores them afterwards.
func clearAIEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range aiEnvVars {
		t.Setenv(key, "")
	}
}

func TestProfileDefaults(t *testing.T) {
	clearAIEnvVars(t)

	profile := &Profile{}
	profile.FromEnv()

	tests := []struct {
		name     string
		expected any
		actual   any
	}{
		{"AIEnabled is false by default", false, profile.AIEnabled},
		{"AIEmbeddingProvider default", "openai", profile.AIEmbeddingProvider},
		{"AIEmbeddingModel default", "text-embedding-3-small", profile.AIEmbeddingModel},
		{"AIEmbeddingMaxBytes default", 8000, profile.AIEmbeddingMaxBytes},
		{"AILLMProvider default", "openai", profile.AILLMProvider},
		{"AILLMModel default", "gpt-4o-mini", profile.AILLMModel},
		{"AIOpenAIBaseURL default", "https://api.openai.com/v1", profile.AIOpenAIBaseURL},
		{"Timezone default", "UTC", profile.Timezone},
		{"SearchThreshold default", 0.3, profile.SearchThreshold},
		{"RedisURL empty", "", profile.RedisURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.actual != tt.expected {
				t.Errorf("%s: expected %v, got %v", tt.name, tt.expected, tt.actual)
			}
		})
	}
}

func TestProfileFromEnv(t *testing.T) {
	clearAIEnvVars(t)
	t.Setenv("SECONDBRAIN_AI_ENABLED", "true")
	t.Setenv("SECONDBRAIN_AI_OPENAI_API_KEY", "sk-test")
	t.Setenv("SECONDBRAIN_AI_EMBEDDING_MAX_BYTES", "4000")
	t.Setenv("SECONDBRAIN_SEARCH_THRESHOLD", "0.45")
	t.Setenv("SECONDBRAIN_TIMEZONE", "Europe/Berlin")

	profile := &Profile{}
	profile.FromEnv()

	if !profile.AIEnabled {
		t.Error("expected AIEnabled")
	}
	if !profile.IsAIEnabled() {
		t.Error("expected IsAIEnabled with an OpenAI key")
	}
	if profile.AIEmbeddingMaxBytes != 4000 {
		t.Errorf("expected 4000 byte budget, got %d", profile.AIEmbeddingMaxBytes)
	}
	if profile.SearchThreshold != 0.45 {
		t.Errorf("expected threshold 0.45, got %v", profile.SearchThreshold)
	}
	if profile.Timezone != "Europe/Berlin" {
		t.Errorf("expected Europe/Berlin, got %s", profile.Timezone)
	}
}

func TestProfileFromEnv_InvalidValuesFallBack(t *testing.T) {
	clearAIEnvVars(t)
	t.Setenv("SECONDBRAIN_AI_EMBEDDING_MAX_BYTES", "-3")
	t.Setenv("SECONDBRAIN_SEARCH_THRESHOLD", "1.5")

	profile := &Profile{}
	profile.FromEnv()

	if profile.AIEmbeddingMaxBytes != 8000 {
		t.Errorf("expected fallback to 8000, got %d", profile.AIEmbeddingMaxBytes)
	}
	if profile.SearchThreshold != 0.3 {
		t.Errorf("expected fallback to 0.3, got %v", profile.SearchThreshold)
	}
}

func TestIsAIEnabled_RequiresProvider(t *testing.T) {
	profile := &Profile{AIEnabled: true}
	if profile.IsAIEnabled() {
		t.Error("AI must not be enabled without any provider credentials")
	}
}

func TestValidate(t *testing.T) {
	dataDir := t.TempDir()

	t.Run("sqlite derives dsn from data dir", func(t *testing.T) {
		profile := &Profile{Mode: "dev", Driver: "sqlite", Data: dataDir}
		if err := profile.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		expected := filepath.Join(dataDir, "secondbrain_dev.db")
		if profile.DSN != expected {
			t.Errorf("expected dsn %s, got %s", expected, profile.DSN)
		}
	})

	t.Run("unknown mode falls back to demo", func(t *testing.T) {
		profile := &Profile{Mode: "staging", Driver: "sqlite", Data: dataDir}
		if err := profile.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if profile.Mode != "demo" {
			t.Errorf("expected demo, got %s", profile.Mode)
		}
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		profile := &Profile{Mode: "dev", Driver: "postgres"}
		if err := profile.Validate(); err == nil {
			t.Error("expected error for postgres without dsn")
		}
	})

	t.Run("mysql is rejected", func(t *testing.T) {
		profile := &Profile{Mode: "dev", Driver: "mysql", DSN: "root@/db"}
		if err := profile.Validate(); err == nil {
			t.Error("expected error for unsupported driver")
		}
	})

	t.Run("missing data dir", func(t *testing.T) {
		profile := &Profile{Mode: "dev", Driver: "sqlite", Data: filepath.Join(dataDir, "missing")}
		if err := profile.Validate(); err == nil {
			t.Error("expected error for missing data dir")
		}
		if _, err := os.Stat(filepath.Join(dataDir, "missing")); !os.IsNotExist(err) {
			t.Error("Validate must not create the data dir outside prod")
		}
	})
}
