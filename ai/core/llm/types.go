// Package llm drives the model providers: it streams tokens, runs the
// bounded tool-calling loop and reports tool payloads as events.
package llm

import (
	"context"
	"encoding/json"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant, tool
	Content string
}

// EventKind tags an Event.
type EventKind string

const (
	EventToken    EventKind = "token"
	EventSummary  EventKind = "summary"
	EventProducts EventKind = "products"
	EventRoutine  EventKind = "routine"
)

// Event is one thing the provider loop surfaces while it runs. Payload holds
// the decoded tool result value for summary, products and routine events.
type Event struct {
	Kind    EventKind
	Token   string
	Payload any
}

// Emit receives events in the order they happen. It is called from the
// goroutine running Complete.
type Emit func(Event)

// Request is one model invocation.
type Request struct {
	Messages     []Message
	SystemPrompt string
	// Model overrides the backend's configured model when set.
	Model string
	// Temperature overrides the backend default when set.
	Temperature   *float32
	UseTools      bool
	MaxToolRounds int
}

// ToolOutput is the raw record of one executed tool call.
type ToolOutput struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Output    json.RawMessage `json:"output"`
}

// Result types reported in Completion.ResultType.
const (
	ResultText     = "text"
	ResultProducts = "products"
	ResultRoutine  = "routine"
	ResultQuiz     = "quiz"
)

// Completion is the outcome of a full provider loop.
type Completion struct {
	Reply             string
	StartSkinTypeQuiz bool
	ToolOutputs       []ToolOutput
	// Products is the last product list any tool returned, undecoded.
	Products   []any
	ResultType string
	// Routine is the last routine any tool returned, undecoded.
	Routine any
	// Summary merges every summary patch returned by tools.
	Summary map[string]any
	// ToolRounds is the number of rounds in which tools were executed.
	ToolRounds int
}

// Provider is one model backend.
type Provider interface {
	Name() string
	// Complete runs the streaming tool loop and returns the final result.
	Complete(ctx context.Context, req *Request, emit Emit) (*Completion, error)
	// Chat performs a single non-streaming, tool-less completion.
	Chat(ctx context.Context, messages []Message) (string, error)
}
