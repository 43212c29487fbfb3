package chat

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/skinsense/ai/core/llm"
	"github.com/hrygo/skinsense/ai/metrics"
	"github.com/hrygo/skinsense/ai/normalize"
	"github.com/hrygo/skinsense/ai/observability/logging"
)

const (
	// DefaultMaxToolRounds applies when neither the request nor the
	// configuration sets a round budget.
	DefaultMaxToolRounds = 4
	// MaxToolRoundsLimit caps what a request may ask for.
	MaxToolRoundsLimit = 8

	genericFailure = "Something went wrong while preparing a reply. Please try again."
)

// Options configures an Engine.
type Options struct {
	SystemPrompt    string
	DefaultProvider string
	MaxToolRounds   int
}

// Engine handles chat requests. It is safe for concurrent use; every
// request owns its transport, signatures and task group.
type Engine struct {
	store   ContextStore
	model   ModelCaller
	metrics *metrics.Exporter
	opts    Options
}

// NewEngine wires an Engine. The tool registry lives behind model and is
// built once by the caller.
func NewEngine(store ContextStore, model ModelCaller, m *metrics.Exporter, opts Options) *Engine {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.DefaultProvider == "" {
		opts.DefaultProvider = llm.ProviderOpenAI
	}
	if opts.MaxToolRounds < 0 {
		opts.MaxToolRounds = 0
	} else if opts.MaxToolRounds == 0 {
		opts.MaxToolRounds = DefaultMaxToolRounds
	}
	return &Engine{store: store, model: model, metrics: m, opts: opts}
}

// Handle runs one chat turn and writes its events to tr. Every path ends in
// exactly one terminal event followed by finalization, which waits for
// background persistence before the transport closes. The returned error is
// for the caller's logs; the client has already been told.
func (e *Engine) Handle(ctx context.Context, req *Request, tr *Transport) (err error) {
	start := time.Now()
	provider := req.Provider
	if provider == "" {
		provider = e.opts.DefaultProvider
	}

	log := logging.FromContext(ctx)
	if _, ok := log.Field(logging.KeyRequestID); !ok {
		log = log.WithField(logging.KeyRequestID, uuid.NewString())
	}
	log = log.WithFields(logging.KeyProvider, provider)
	if req.UserID != "" {
		log = log.WithField(logging.KeyUserID, req.UserID)
	}
	ctx = logging.ToContext(ctx, log)

	tasks := newTaskGroup(ctx, log, e.metrics)
	o := &orchestrator{ctx: ctx, log: log, tr: tr, tasks: tasks, store: e.store, metrics: e.metrics}

	e.metrics.ChatStarted()
	status := EventError
	defer func() {
		if ferr := tr.Finalize(tasks.Wait); ferr != nil {
			o.log.Warn(ctx, "chat.finalize_failed", "error", ferr)
		}
		e.metrics.RecordChatRequest(provider, string(status), time.Since(start))
	}()
	defer func() {
		if r := recover(); r != nil {
			o.log.Error(ctx, "chat.failed", "panic", r, "stack", string(debug.Stack()))
			o.fail(genericFailure)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	o.log.Info(ctx, "chat.started")
	status, err = e.run(ctx, req, provider, o)
	if err != nil {
		o.log.Error(ctx, "chat.failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		o.fail(clientMessage(err))
		return err
	}
	o.log.Info(ctx, "chat.completed", "result", status, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (e *Engine) run(ctx context.Context, req *Request, provider string, o *orchestrator) (EventType, error) {
	if strings.TrimSpace(req.Message) == "" {
		return EventError, ErrEmptyMessage
	}
	llmReq, err := e.modelRequest(req)
	if err != nil {
		return EventError, err
	}

	sessionID, err := resolveSession(ctx, e.store, req)
	if err != nil {
		return EventError, err
	}
	o.sessionID = sessionID
	o.log = o.log.WithField(logging.KeySessionID, sessionID)

	in := parseInbound(req.Message, req.UserID)
	if in.Content != "" {
		o.appendMessage("append_inbound", in.Role, in.Content)
	}

	history, err := e.store.GetContext(ctx, sessionID)
	if err != nil {
		o.log.Warn(ctx, "chat.context_failed", "error", err)
		history = nil
	}
	// The inbound append races with the context read.
	if in.Content != "" && !endsWith(history, in) {
		history = append(history, Message{Role: in.Role, Content: in.Content, Timestamp: time.Now()})
	}
	llmReq.Messages = toModelMessages(history)

	completion, err := e.model.Complete(ctx, provider, llmReq, o.emit)
	if err != nil {
		return EventError, fmt.Errorf("model call: %w", err)
	}

	if completion.Reply != "" {
		o.appendMessage("append_reply", RoleAssistant, completion.Reply)
	}

	if completion.StartSkinTypeQuiz {
		o.send(StreamEvent{Type: EventSkinSurveyStart, SessionID: sessionID, Reply: completion.Reply})
		return EventSkinSurveyStart, nil
	}

	final := StreamEvent{
		Type:        EventFinal,
		SessionID:   sessionID,
		Reply:       completion.Reply,
		ResultType:  completion.ResultType,
		ToolOutputs: completion.ToolOutputs,
		Products:    normalize.SanitizeProducts(completion.Products),
		Routine:     normalize.SanitizeRoutine(completion.Routine),
		Summary:     completion.Summary,
	}
	o.send(final)
	return EventFinal, nil
}

// modelRequest validates the per-request model options.
func (e *Engine) modelRequest(req *Request) (*llm.Request, error) {
	switch req.Provider {
	case "", llm.ProviderOpenAI, llm.ProviderGemini:
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q", ErrInvalidRequest, req.Provider)
	}

	out := &llm.Request{
		SystemPrompt:  e.opts.SystemPrompt,
		Model:         strings.TrimSpace(req.Model),
		UseTools:      true,
		MaxToolRounds: e.opts.MaxToolRounds,
	}
	if req.UseTools != nil {
		out.UseTools = *req.UseTools
	}
	if req.MaxToolRounds != nil {
		n := *req.MaxToolRounds
		if n < 0 {
			return nil, fmt.Errorf("%w: maxToolRounds must not be negative", ErrInvalidRequest)
		}
		out.MaxToolRounds = min(n, MaxToolRoundsLimit)
	}
	if req.Temperature != nil {
		t := *req.Temperature
		if t < 0 || t > 2 {
			return nil, fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidRequest)
		}
		out.Temperature = &t
	}
	return out, nil
}

func endsWith(history []Message, in inbound) bool {
	if len(history) == 0 {
		return false
	}
	last := history[len(history)-1]
	return last.Role == in.Role && last.Content == in.Content
}

func toModelMessages(history []Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		out = append(out, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// clientMessage keeps internal failure details out of the stream.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrInvalidRequest):
		return err.Error()
	case errors.Is(err, llm.ErrUnknownProvider):
		return "The requested model provider is not available."
	default:
		return genericFailure
	}
}
