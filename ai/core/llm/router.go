package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/pkg/errors"

	"github.com/hrygo/skinsense/ai/metrics"
	"github.com/hrygo/skinsense/ai/tools"
	"github.com/hrygo/skinsense/internal/profile"
)

// ErrUnknownProvider is returned when a request names a backend that is not
// configured.
var ErrUnknownProvider = errors.New("unknown llm provider")

// Router selects a Provider per request, falling back to the configured
// default when the request does not name one.
type Router struct {
	providers map[string]Provider
	fallback  string
}

// NewRouter builds a router over the given providers. The fallback must be one
// of them.
func NewRouter(fallback string, providers ...Provider) (*Router, error) {
	r := &Router{providers: make(map[string]Provider, len(providers)), fallback: fallback}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	if _, ok := r.providers[fallback]; !ok {
		return nil, fmt.Errorf("default provider %q is not configured: %w", fallback, ErrUnknownProvider)
	}
	return r, nil
}

// NewRouterFromProfile creates every backend that has an API key.
func NewRouterFromProfile(ctx context.Context, p *profile.Profile, registry *tools.Registry, m *metrics.Exporter) (*Router, error) {
	var providers []Provider
	if p.OpenAIAPIKey != "" {
		openai, err := NewOpenAI(Config{
			APIKey:      p.OpenAIAPIKey,
			BaseURL:     p.OpenAIBaseURL,
			Model:       p.OpenAIModel,
			Temperature: p.LLMTemperature,
			Timeout:     p.LLMTimeout,
		}, registry, m)
		if err != nil {
			return nil, err
		}
		providers = append(providers, openai)
	}
	if p.GeminiAPIKey != "" {
		gemini, err := NewGemini(ctx, Config{
			APIKey:      p.GeminiAPIKey,
			Model:       p.GeminiModel,
			Temperature: p.LLMTemperature,
			Timeout:     p.LLMTimeout,
		}, registry, m)
		if err != nil {
			return nil, err
		}
		providers = append(providers, gemini)
	}

	fallback := p.LLMProvider
	if len(providers) > 0 {
		if _, ok := findProvider(providers, fallback); !ok {
			slog.Warn("Default LLM provider has no API key, using another backend",
				"provider", fallback, "using", providers[0].Name())
			fallback = providers[0].Name()
		}
	}
	return NewRouter(fallback, providers...)
}

func findProvider(providers []Provider, name string) (Provider, bool) {
	for _, p := range providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Provider resolves a backend by name; an empty name selects the default.
func (r *Router) Provider(name string) (Provider, error) {
	if name == "" {
		name = r.fallback
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Default returns the name of the default backend.
func (r *Router) Default() string {
	return r.fallback
}

// Names lists the configured backends.
func (r *Router) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Complete runs req on the named backend.
func (r *Router) Complete(ctx context.Context, provider string, req *Request, emit Emit) (*Completion, error) {
	p, err := r.Provider(provider)
	if err != nil {
		return nil, err
	}
	return p.Complete(ctx, req, emit)
}

// Chat runs a plain completion on the default backend.
func (r *Router) Chat(ctx context.Context, messages []Message) (string, error) {
	p, err := r.Provider("")
	if err != nil {
		return "", err
	}
	return p.Chat(ctx, messages)
}
