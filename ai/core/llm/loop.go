package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/skinsense/ai/metrics"
	"github.com/hrygo/skinsense/ai/tools"
)

// toolCall is one function call requested by the model in a round.
type toolCall struct {
	ID        string
	Name      string
	Arguments string
}

// turn is what one streamed model round produced.
type turn struct {
	text  string
	calls []toolCall
}

// conversation is the provider-specific message history of one loop.
type conversation interface {
	// stream runs one model round. Tools are declared only when withTools is
	// set. Tokens are reported through onToken as they arrive.
	stream(ctx context.Context, withTools bool, onToken func(string)) (*turn, error)
	// appendToolResults records the round's calls and their results so the
	// next round sees them.
	appendToolResults(t *turn, results []json.RawMessage)
}

// runLoop drives a conversation through at most maxRounds tool rounds. Once
// the budget is spent one more round runs without tool declarations so the
// loop always ends with text.
func runLoop(ctx context.Context, provider, model string, conv conversation, req *Request, registry *tools.Registry, m *metrics.Exporter, emit Emit) (*Completion, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	toolsOn := req.UseTools && req.MaxToolRounds > 0 && len(registry.Names()) > 0

	c := &collector{emit: emit}
	var reply strings.Builder
	onToken := func(tok string) {
		if tok == "" {
			return
		}
		reply.WriteString(tok)
		emit(Event{Kind: EventToken, Token: tok})
	}

	for round := 0; ; round++ {
		withTools := toolsOn && c.rounds < req.MaxToolRounds
		start := time.Now()
		t, err := conv.stream(ctx, withTools, onToken)
		m.RecordLLMLatency(provider, model, time.Since(start))
		if err != nil {
			return nil, err
		}
		slog.Debug("llm.round", "provider", provider, "model", model, "round", round, "tools", withTools, "calls", len(t.calls))

		if !withTools || len(t.calls) == 0 {
			break
		}

		c.rounds++
		results := make([]json.RawMessage, len(t.calls))
		for i, call := range t.calls {
			results[i] = registry.Execute(ctx, call.Name, call.Arguments)
			c.inspect(call, results[i])
		}
		conv.appendToolResults(t, results)

		// The client takes over with the quiz, no further text is needed.
		if c.quiz {
			break
		}
	}

	return c.completion(reply.String()), nil
}

// collector folds tool results into the Completion and emits payload events.
type collector struct {
	emit     Emit
	outputs  []ToolOutput
	products []any
	routine  any
	summary  map[string]any
	quiz     bool
	rounds   int
}

func (c *collector) inspect(call toolCall, result json.RawMessage) {
	out := ToolOutput{Name: call.Name, Output: result}
	if json.Valid([]byte(call.Arguments)) {
		out.Arguments = json.RawMessage(call.Arguments)
	}
	c.outputs = append(c.outputs, out)

	var fields map[string]any
	if err := json.Unmarshal(result, &fields); err != nil {
		return
	}

	if list, ok := fields["products"].([]any); ok {
		c.products = list
		c.emit(Event{Kind: EventProducts, Payload: list})
	}
	if routine, ok := fields["routine"]; ok && routine != nil {
		c.routine = routine
		c.emit(Event{Kind: EventRoutine, Payload: routine})
	}
	if patch, ok := fields["summary"].(map[string]any); ok && len(patch) > 0 {
		if c.summary == nil {
			c.summary = make(map[string]any, len(patch))
		}
		for k, v := range patch {
			c.summary[k] = v
		}
		c.emit(Event{Kind: EventSummary, Payload: patch})
	}
	if quiz, ok := fields["startSkinTypeQuiz"].(bool); ok && quiz {
		c.quiz = true
	}
}

func (c *collector) completion(reply string) *Completion {
	out := &Completion{
		Reply:             reply,
		StartSkinTypeQuiz: c.quiz,
		ToolOutputs:       c.outputs,
		Products:          c.products,
		Routine:           c.routine,
		Summary:           c.summary,
		ToolRounds:        c.rounds,
	}
	switch {
	case c.quiz:
		out.ResultType = ResultQuiz
	case c.routine != nil:
		out.ResultType = ResultRoutine
	case len(c.products) > 0:
		out.ResultType = ResultProducts
	default:
		out.ResultType = ResultText
	}
	return out
}

// historyNote renders stored tool envelopes for providers without a native
// way to replay past tool output.
func historyNote(content string) string {
	return "Shown to the user earlier in this conversation: " + content
}
