package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/secondbrain/internal/version"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where secondbrain stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// InstanceURL is the public url of the instance, used for feed links.
	InstanceURL string
	// Timezone is the IANA zone used for calendar date matching.
	Timezone string

	// AI Configuration
	AIEnabled            bool   // SECONDBRAIN_AI_ENABLED
	AIEmbeddingProvider  string // SECONDBRAIN_AI_EMBEDDING_PROVIDER (default: openai)
	AIEmbeddingModel     string // SECONDBRAIN_AI_EMBEDDING_MODEL (default: text-embedding-3-small)
	AIEmbeddingMaxBytes  int    // SECONDBRAIN_AI_EMBEDDING_MAX_BYTES (default: 8000)
	AILLMProvider        string // SECONDBRAIN_AI_LLM_PROVIDER (default: openai)
	AILLMModel           string // SECONDBRAIN_AI_LLM_MODEL (default: gpt-4o-mini)
	AIOpenAIAPIKey       string // SECONDBRAIN_AI_OPENAI_API_KEY
	AIOpenAIBaseURL      string // SECONDBRAIN_AI_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	AISiliconFlowAPIKey  string // SECONDBRAIN_AI_SILICONFLOW_API_KEY
	AISiliconFlowBaseURL string // SECONDBRAIN_AI_SILICONFLOW_BASE_URL (default: https://api.siliconflow.cn/v1)
	AIDeepSeekAPIKey     string // SECONDBRAIN_AI_DEEPSEEK_API_KEY
	AIDeepSeekBaseURL    string // SECONDBRAIN_AI_DEEPSEEK_BASE_URL (default: https://api.deepseek.com)
	AIOllamaBaseURL      string // SECONDBRAIN_AI_OLLAMA_BASE_URL (e.g. http://localhost:11434)

	// Cache Configuration
	RedisURL string // SECONDBRAIN_REDIS_URL (empty disables the L2 embedding cache)

	// Search Configuration
	SearchThreshold float64 // SECONDBRAIN_SEARCH_THRESHOLD (default: 0.3)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if AI is enabled and at least one provider is reachable.
func (p *Profile) IsAIEnabled() bool {
	return p.AIEnabled && (p.AIOpenAIAPIKey != "" || p.AISiliconFlowAPIKey != "" || p.AIDeepSeekAPIKey != "" || p.AIOllamaBaseURL != "")
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads AI, cache and search settings from SECONDBRAIN_* environment variables.
// Timezone keeps a value already set by flags.
func (p *Profile) FromEnv() {
	getIntEnvOrDefault := func(key string, defaultValue int) int {
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
			return v
		}
		return defaultValue
	}

	p.AIEnabled = os.Getenv("SECONDBRAIN_AI_ENABLED") == "true"
	p.AIEmbeddingProvider = getEnvOrDefault("SECONDBRAIN_AI_EMBEDDING_PROVIDER", "openai")
	p.AIEmbeddingModel = getEnvOrDefault("SECONDBRAIN_AI_EMBEDDING_MODEL", "text-embedding-3-small")
	p.AIEmbeddingMaxBytes = getIntEnvOrDefault("SECONDBRAIN_AI_EMBEDDING_MAX_BYTES", 8000)
	p.AILLMProvider = getEnvOrDefault("SECONDBRAIN_AI_LLM_PROVIDER", "openai")
	p.AILLMModel = getEnvOrDefault("SECONDBRAIN_AI_LLM_MODEL", "gpt-4o-mini")
	p.AIOpenAIAPIKey = os.Getenv("SECONDBRAIN_AI_OPENAI_API_KEY")
	p.AIOpenAIBaseURL = getEnvOrDefault("SECONDBRAIN_AI_OPENAI_BASE_URL", "https://api.openai.com/v1")
	p.AISiliconFlowAPIKey = os.Getenv("SECONDBRAIN_AI_SILICONFLOW_API_KEY")
	p.AISiliconFlowBaseURL = getEnvOrDefault("SECONDBRAIN_AI_SILICONFLOW_BASE_URL", "https://api.siliconflow.cn/v1")
	p.AIDeepSeekAPIKey = os.Getenv("SECONDBRAIN_AI_DEEPSEEK_API_KEY")
	p.AIDeepSeekBaseURL = getEnvOrDefault("SECONDBRAIN_AI_DEEPSEEK_BASE_URL", "https://api.deepseek.com")
	p.AIOllamaBaseURL = os.Getenv("SECONDBRAIN_AI_OLLAMA_BASE_URL")

	p.RedisURL = os.Getenv("SECONDBRAIN_REDIS_URL")

	if p.Timezone == "" {
		p.Timezone = getEnvOrDefault("SECONDBRAIN_TIMEZONE", "UTC")
	}
	p.SearchThreshold = 0.3
	if v, err := strconv.ParseFloat(os.Getenv("SECONDBRAIN_SEARCH_THRESHOLD"), 64); err == nil && v >= 0 && v <= 1 {
		p.SearchThreshold = v
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q: only 'postgres' and 'sqlite' are supported", p.Driver)
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "secondbrain")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/secondbrain"
		}
	}

	if p.Driver == "sqlite" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			dbFile := fmt.Sprintf("secondbrain_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}

	if p.Version != "" && !version.IsValid(p.Version) {
		return errors.Errorf("invalid version %q", p.Version)
	}

	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	return nil
}
