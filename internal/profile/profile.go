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
)

// Profile is configuration to start main server.
type Profile struct {
	// LLM configuration. LLMProvider selects the default backend when a
	// chat request does not name one.
	LLMProvider    string // openai, gemini
	OpenAIAPIKey   string
	OpenAIBaseURL  string // optional, any OpenAI-compatible endpoint
	OpenAIModel    string
	GeminiAPIKey   string
	GeminiModel    string
	LLMTimeout     int     // request timeout in seconds (default: 120)
	LLMTemperature float32 // default: 0.4

	// Chat orchestration
	MaxToolRounds      int    // default: 4
	SummaryThreshold   int    // unsummarized messages before a summary recompute (default: 12)
	ContextWindow      int    // messages returned by the context store (default: 20)
	SystemPromptFile   string // optional override of the built-in system prompt
	RateLimitPerMinute int    // chat requests per client address per minute (default: 30)

	// Server
	UNIXSock    string
	Mode        string
	DSN         string
	Driver      string
	Version     string
	InstanceURL string
	Addr        string
	Data        string
	Port        int
}

// Provider default models, used when the model env var is empty.
var llmProviderDefaults = map[string]string{
	"openai": "gpt-4o-mini",
	"gemini": "gemini-2.0-flash",
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if the default provider has an API key configured.
func (p *Profile) IsAIEnabled() bool {
	switch p.LLMProvider {
	case "gemini":
		return p.GeminiAPIKey != ""
	default:
		return p.OpenAIAPIKey != ""
	}
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("SKINSENSE_LLM_PROVIDER", "openai")
	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		slog.Warn("Unknown LLM provider, using default: openai", "provider", p.LLMProvider)
		p.LLMProvider = "openai"
	}

	p.OpenAIAPIKey = getEnvOrDefault("SKINSENSE_OPENAI_API_KEY", "")
	p.OpenAIBaseURL = getEnvOrDefault("SKINSENSE_OPENAI_BASE_URL", "")
	p.OpenAIModel = getEnvOrDefault("SKINSENSE_OPENAI_MODEL", llmProviderDefaults["openai"])
	p.GeminiAPIKey = getEnvOrDefault("SKINSENSE_GEMINI_API_KEY", "")
	p.GeminiModel = getEnvOrDefault("SKINSENSE_GEMINI_MODEL", llmProviderDefaults["gemini"])
	p.LLMTimeout = getEnvOrDefaultInt("SKINSENSE_LLM_TIMEOUT_SECONDS", 120)
	p.LLMTemperature = getEnvOrDefaultFloat("SKINSENSE_LLM_TEMPERATURE", 0.4)

	p.MaxToolRounds = getEnvOrDefaultInt("SKINSENSE_MAX_TOOL_ROUNDS", 4)
	p.SummaryThreshold = getEnvOrDefaultInt("SKINSENSE_SUMMARY_THRESHOLD", 12)
	p.ContextWindow = getEnvOrDefaultInt("SKINSENSE_CONTEXT_WINDOW", 20)
	p.SystemPromptFile = getEnvOrDefault("SKINSENSE_SYSTEM_PROMPT_FILE", "")
	p.RateLimitPerMinute = getEnvOrDefaultInt("SKINSENSE_RATE_LIMIT_PER_MINUTE", 30)
}

// DefaultModel returns the configured model for a provider.
func (p *Profile) DefaultModel(provider string) string {
	if provider == "gemini" {
		return p.GeminiModel
	}
	return p.OpenAIModel
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

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "skinsense")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/skinsense"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("skinsense_%s.db", p.Mode))
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn required for postgres driver")
	}

	if p.MaxToolRounds < 0 {
		p.MaxToolRounds = 0
	}
	return nil
}
