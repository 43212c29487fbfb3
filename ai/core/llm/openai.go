package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/skinsense/ai/metrics"
	"github.com/hrygo/skinsense/ai/tools"
)

// ProviderOpenAI names the OpenAI-compatible backend.
const ProviderOpenAI = "openai"

// Config configures one backend.
type Config struct {
	APIKey      string
	BaseURL     string // optional, OpenAI-compatible endpoints only
	Model       string
	Temperature float32
	Timeout     int // request timeout in seconds (default: 120)
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

type openAIProvider struct {
	client   *openai.Client
	cfg      Config
	registry *tools.Registry
	metrics  *metrics.Exporter
}

// NewOpenAI creates a provider for OpenAI or any OpenAI-compatible endpoint.
func NewOpenAI(cfg Config, registry *tools.Registry, m *metrics.Exporter) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai: model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = newHTTPClient()

	return &openAIProvider{
		client:   openai.NewClientWithConfig(clientConfig),
		cfg:      cfg,
		registry: registry,
		metrics:  m,
	}, nil
}

func (p *openAIProvider) Name() string { return ProviderOpenAI }

func (p *openAIProvider) Complete(ctx context.Context, req *Request, emit Emit) (*Completion, error) {
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

	conv := &openAIConversation{
		p:           p,
		model:       model,
		temperature: temperature,
		messages:    convertMessages(req.SystemPrompt, req.Messages),
		tools:       convertTools(p.registry.Definitions()),
	}
	out, err := runLoop(ctx, ProviderOpenAI, model, conv, req, p.registry, p.metrics, emit)
	if err != nil {
		return nil, errors.Wrap(err, "openai completion")
	}
	return out, nil
}

func (p *openAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.timeout())
	defer cancel()

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
		Messages:    convertMessages("", messages),
	})
	p.metrics.RecordLLMLatency(ProviderOpenAI, p.cfg.Model, time.Since(start))
	if err != nil {
		return "", errors.Wrap(err, "openai chat")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from openai")
	}
	p.recordUsage(p.cfg.Model, &resp.Usage)
	return resp.Choices[0].Message.Content, nil
}

func (p *openAIProvider) recordUsage(model string, usage *openai.Usage) {
	if usage == nil {
		return
	}
	p.metrics.RecordLLMTokens(model, "prompt", usage.PromptTokens)
	p.metrics.RecordLLMTokens(model, "completion", usage.CompletionTokens)
}

type openAIConversation struct {
	p           *openAIProvider
	model       string
	temperature float32
	messages    []openai.ChatCompletionMessage
	tools       []openai.Tool
}

func (c *openAIConversation) stream(ctx context.Context, withTools bool, onToken func(string)) (*turn, error) {
	req := openai.ChatCompletionRequest{
		Model:         c.model,
		Temperature:   c.temperature,
		Messages:      c.messages,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	if withTools {
		req.Tools = c.tools
	}

	stream, err := c.p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create stream failed: %w", err)
	}
	defer func() { _ = stream.Close() }()

	t := &turn{}
	var text []byte
	// Tool call fragments arrive keyed by index.
	var calls []toolCall
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream recv failed: %w", err)
		}
		if resp.Usage != nil {
			c.p.recordUsage(c.model, resp.Usage)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			text = append(text, delta.Content...)
			onToken(delta.Content)
		}
		for _, tc := range delta.ToolCalls {
			idx := len(calls)
			if tc.Index != nil {
				idx = *tc.Index
			}
			for len(calls) <= idx {
				calls = append(calls, toolCall{})
			}
			if tc.ID != "" {
				calls[idx].ID = tc.ID
			}
			calls[idx].Name += tc.Function.Name
			calls[idx].Arguments += tc.Function.Arguments
		}
	}

	t.text = string(text)
	for i, call := range calls {
		if call.Name == "" {
			continue
		}
		if call.ID == "" {
			call.ID = fmt.Sprintf("call_%d", i)
		}
		t.calls = append(t.calls, call)
	}
	return t, nil
}

func (c *openAIConversation) appendToolResults(t *turn, results []json.RawMessage) {
	assistant := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: t.text,
	}
	for _, call := range t.calls {
		assistant.ToolCalls = append(assistant.ToolCalls, openai.ToolCall{
			ID:   call.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}
	c.messages = append(c.messages, assistant)
	for i, call := range t.calls {
		c.messages = append(c.messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    string(results[i]),
			Name:       call.Name,
			ToolCallID: call.ID,
		})
	}
}

func convertTools(defs []tools.Definition) []openai.Tool {
	out := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}

// convertMessages maps history to the wire format. Stored tool messages have
// no matching tool call in the replayed history, so they become system notes.
func convertMessages(systemPrompt string, messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content})
		case RoleAssistant:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content})
		case RoleTool:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: historyNote(m.Content)})
		default:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		}
	}
	return out
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
