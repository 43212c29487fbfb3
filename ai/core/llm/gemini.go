package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/hrygo/skinsense/ai/metrics"
	"github.com/hrygo/skinsense/ai/tools"
)

// ProviderGemini names the Google Gemini backend.
const ProviderGemini = "gemini"

type geminiProvider struct {
	client   *genai.Client
	cfg      Config
	registry *tools.Registry
	metrics  *metrics.Exporter
}

// NewGemini creates a Gemini provider on the Gemini API backend.
func NewGemini(ctx context.Context, cfg Config, registry *tools.Registry, m *metrics.Exporter) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("gemini: model is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: newHTTPClient(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}
	return &geminiProvider{client: client, cfg: cfg, registry: registry, metrics: m}, nil
}

func (p *geminiProvider) Name() string { return ProviderGemini }

func (p *geminiProvider) Complete(ctx context.Context, req *Request, emit Emit) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.timeout())
	defer cancel()

	model := p.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	temperature := p.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	system, contents := convertContents(req.SystemPrompt, req.Messages)
	conv := &geminiConversation{
		p:        p,
		model:    model,
		contents: contents,
		config: &genai.GenerateContentConfig{
			Temperature:       genai.Ptr(temperature),
			SystemInstruction: system,
		},
		tools: convertFunctionDeclarations(p.registry.Definitions()),
	}
	out, err := runLoop(ctx, ProviderGemini, model, conv, req, p.registry, p.metrics, emit)
	if err != nil {
		return nil, errors.Wrap(err, "gemini completion")
	}
	return out, nil
}

func (p *geminiProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.timeout())
	defer cancel()

	system, contents := convertContents("", messages)
	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, contents, &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(p.cfg.Temperature),
		SystemInstruction: system,
	})
	p.metrics.RecordLLMLatency(ProviderGemini, p.cfg.Model, time.Since(start))
	if err != nil {
		return "", errors.Wrap(err, "gemini chat")
	}
	p.recordUsage(p.cfg.Model, resp.UsageMetadata)
	text := resp.Text()
	if text == "" {
		return "", errors.New("empty response from gemini")
	}
	return text, nil
}

func (p *geminiProvider) recordUsage(model string, usage *genai.GenerateContentResponseUsageMetadata) {
	if usage == nil {
		return
	}
	p.metrics.RecordLLMTokens(model, "prompt", int(usage.PromptTokenCount))
	p.metrics.RecordLLMTokens(model, "completion", int(usage.CandidatesTokenCount))
}

type geminiConversation struct {
	p        *geminiProvider
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	tools    []*genai.Tool
	// parts of the last model turn, kept verbatim so thought signatures
	// survive the round trip.
	parts []*genai.Part
}

func (c *geminiConversation) stream(ctx context.Context, withTools bool, onToken func(string)) (*turn, error) {
	config := *c.config
	if withTools {
		config.Tools = c.tools
	}

	t := &turn{}
	var text strings.Builder
	c.parts = nil
	var usage *genai.GenerateContentResponseUsageMetadata

	for result, err := range c.p.client.Models.GenerateContentStream(ctx, c.model, c.contents, &config) {
		if err != nil {
			return nil, fmt.Errorf("stream recv failed: %w", err)
		}
		if result.UsageMetadata != nil {
			usage = result.UsageMetadata
		}
		if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
			continue
		}
		for _, part := range result.Candidates[0].Content.Parts {
			if part == nil {
				continue
			}
			c.parts = append(c.parts, part)
			switch {
			case part.FunctionCall != nil:
				args, err := json.Marshal(part.FunctionCall.Args)
				if err != nil || part.FunctionCall.Args == nil {
					args = []byte("{}")
				}
				t.calls = append(t.calls, toolCall{
					ID:        part.FunctionCall.ID,
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				})
			case part.Text != "" && !part.Thought:
				text.WriteString(part.Text)
				onToken(part.Text)
			}
		}
	}
	c.p.recordUsage(c.model, usage)
	t.text = text.String()
	return t, nil
}

func (c *geminiConversation) appendToolResults(t *turn, results []json.RawMessage) {
	c.contents = append(c.contents, &genai.Content{Role: "model", Parts: c.parts})

	responses := make([]*genai.Part, 0, len(t.calls))
	for i, call := range t.calls {
		responses = append(responses, &genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: responseMap(results[i]),
			},
		})
	}
	c.contents = append(c.contents, &genai.Content{Role: "user", Parts: responses})
}

// responseMap decodes a tool result; non-object results are wrapped.
func responseMap(raw json.RawMessage) map[string]any {
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err == nil && out != nil {
		return out
	}
	return map[string]any{"output": string(raw)}
}

func convertFunctionDeclarations(defs []tools.Definition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 d.Name,
			Description:          d.Description,
			ParametersJsonSchema: d.Parameters.Map(),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// emptyTurnText stands in for the user turn when a request carries only
// instructions; Gemini rejects a request without contents.
const emptyTurnText = "Continue."

// convertContents splits system messages into the system instruction and
// maps the rest to Gemini's user/model roles. A trailing system message is
// the instruction for this turn and is sent as the user turn.
func convertContents(systemPrompt string, messages []Message) (*genai.Content, []*genai.Content) {
	var system []string
	if systemPrompt != "" {
		system = append(system, systemPrompt)
	}
	contents := make([]*genai.Content, 0, len(messages)+1)
	for i, m := range messages {
		switch {
		case m.Role == RoleSystem && i < len(messages)-1:
			system = append(system, m.Content)
		case m.Role == RoleTool:
			system = append(system, historyNote(m.Content))
		case m.Role == RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	if len(contents) == 0 {
		contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: emptyTurnText}}})
	}
	if len(system) == 0 {
		return nil, contents
	}
	return &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}, contents
}
