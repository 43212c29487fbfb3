package profile

import (
	"os"
	"path/filepath"
	"testing"
)

// TestProfileDefaults checks the LLM and orchestration defaults.
func TestProfileDefaults(t *testing.T) {
	clearEnvVars(t)

	profile := &Profile{}
	profile.FromEnv()

	tests := []struct {
		name     string
		expected any
		actual   any
	}{
		{"LLMProvider default", "openai", profile.LLMProvider},
		{"OpenAIModel default", "gpt-4o-mini", profile.OpenAIModel},
		{"GeminiModel default", "gemini-2.0-flash", profile.GeminiModel},
		{"LLMTimeout default", 120, profile.LLMTimeout},
		{"MaxToolRounds default", 4, profile.MaxToolRounds},
		{"SummaryThreshold default", 12, profile.SummaryThreshold},
		{"ContextWindow default", 20, profile.ContextWindow},
		{"AI disabled without key", false, profile.IsAIEnabled()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.actual != tt.expected {
				t.Errorf("%s: expected %v, got %v", tt.name, tt.expected, tt.actual)
			}
		})
	}
}

// TestProfileFromEnv checks environment overrides.
func TestProfileFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		envValue string
		field    func(*Profile) any
		expected any
	}{
		{
			name:     "gemini provider",
			envVar:   "SKINSENSE_LLM_PROVIDER",
			envValue: "gemini",
			field:    func(p *Profile) any { return p.LLMProvider },
			expected: "gemini",
		},
		{
			name:     "unknown provider falls back to openai",
			envVar:   "SKINSENSE_LLM_PROVIDER",
			envValue: "mystery",
			field:    func(p *Profile) any { return p.LLMProvider },
			expected: "openai",
		},
		{
			name:     "max tool rounds",
			envVar:   "SKINSENSE_MAX_TOOL_ROUNDS",
			envValue: "2",
			field:    func(p *Profile) any { return p.MaxToolRounds },
			expected: 2,
		},
		{
			name:     "invalid int keeps default",
			envVar:   "SKINSENSE_CONTEXT_WINDOW",
			envValue: "lots",
			field:    func(p *Profile) any { return p.ContextWindow },
			expected: 20,
		},
		{
			name:     "temperature",
			envVar:   "SKINSENSE_LLM_TEMPERATURE",
			envValue: "0.9",
			field:    func(p *Profile) any { return p.LLMTemperature },
			expected: float32(0.9),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			t.Setenv(tt.envVar, tt.envValue)

			profile := &Profile{}
			profile.FromEnv()

			if actual := tt.field(profile); actual != tt.expected {
				t.Errorf("%s: expected %v, got %v", tt.name, tt.expected, actual)
			}
		})
	}
}

func TestIsAIEnabled(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    bool
	}{
		{"openai without key", Profile{LLMProvider: "openai"}, false},
		{"openai with key", Profile{LLMProvider: "openai", OpenAIAPIKey: "k"}, true},
		{"gemini with openai key only", Profile{LLMProvider: "gemini", OpenAIAPIKey: "k"}, false},
		{"gemini with key", Profile{LLMProvider: "gemini", GeminiAPIKey: "k"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.IsAIEnabled(); got != tt.want {
				t.Errorf("IsAIEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateSQLiteDSN(t *testing.T) {
	dir := t.TempDir()
	p := &Profile{Mode: "dev", Driver: "sqlite", Data: dir}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := filepath.Join(dir, "skinsense_dev.db")
	if p.DSN != want {
		t.Errorf("DSN = %q, want %q", p.DSN, want)
	}
}

func TestValidatePostgresRequiresDSN(t *testing.T) {
	p := &Profile{Mode: "dev", Driver: "postgres", Data: t.TempDir()}
	if err := p.Validate(); err == nil {
		t.Error("Validate() expected error for postgres without dsn")
	}
}

func TestValidateUnknownMode(t *testing.T) {
	p := &Profile{Mode: "staging", Driver: "sqlite", Data: t.TempDir()}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if p.Mode != "demo" {
		t.Errorf("Mode = %q, want demo", p.Mode)
	}
}

// clearEnvVars blanks all SKINSENSE_ variables for the duration of the test.
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, suffix := range []string{
		"LLM_PROVIDER",
		"OPENAI_API_KEY",
		"OPENAI_BASE_URL",
		"OPENAI_MODEL",
		"GEMINI_API_KEY",
		"GEMINI_MODEL",
		"LLM_TIMEOUT_SECONDS",
		"LLM_TEMPERATURE",
		"MAX_TOOL_ROUNDS",
		"SUMMARY_THRESHOLD",
		"CONTEXT_WINDOW",
		"SYSTEM_PROMPT_FILE",
		"RATE_LIMIT_PER_MINUTE",
	} {
		key := "SKINSENSE_" + suffix
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}
