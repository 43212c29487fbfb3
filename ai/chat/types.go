// Package chat orchestrates one assistant turn: it resolves the session,
// runs the model, streams events to the client as NDJSON and keeps the
// response open until background persistence has settled.
package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/skinsense/ai/core/llm"
	"github.com/hrygo/skinsense/ai/normalize"
)

// Role is the author of a stored message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	// RoleTool messages carry a JSON envelope of what was shown to the user.
	RoleTool Role = "tool"
)

// Message is one entry of a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AppendResult reports the state of the session after an append.
type AppendResult struct {
	NeedsSummary bool `json:"needsSummary"`
}

// ContextStore owns sessions and their message history.
type ContextStore interface {
	CreateSession(ctx context.Context, userID string, config map[string]any) (string, error)
	AppendMessage(ctx context.Context, sessionID string, role Role, content string) (*AppendResult, error)
	GetContext(ctx context.Context, sessionID string) ([]Message, error)
	RecomputeSummaries(ctx context.Context, sessionID string) error
}

// ModelCaller runs the provider loop on the named backend.
type ModelCaller interface {
	Complete(ctx context.Context, provider string, req *llm.Request, emit llm.Emit) (*llm.Completion, error)
}

// Request is the body of one chat call.
type Request struct {
	Message       string         `json:"message"`
	SessionID     string         `json:"sessionId,omitempty"`
	UserID        string         `json:"userId,omitempty"`
	Config        map[string]any `json:"config,omitempty"`
	Provider      string         `json:"provider,omitempty"`
	Model         string         `json:"model,omitempty"`
	Temperature   *float32       `json:"temperature,omitempty"`
	MaxToolRounds *int           `json:"maxToolRounds,omitempty"`
	UseTools      *bool          `json:"useTools,omitempty"`
}

var (
	// ErrEmptyMessage rejects requests without a message.
	ErrEmptyMessage = errors.New("message is required")
	// ErrInvalidRequest wraps every other input validation failure.
	ErrInvalidRequest = errors.New("invalid request")
)

// EventType tags a StreamEvent.
type EventType string

const (
	EventDelta           EventType = "delta"
	EventSummary         EventType = "summary"
	EventProducts        EventType = "products"
	EventRoutine         EventType = "routine"
	EventSkinSurveyStart EventType = "skin_survey.start"
	EventFinal           EventType = "final"
	EventError           EventType = "error"
)

// Terminal reports whether the event ends the stream.
func (t EventType) Terminal() bool {
	return t == EventFinal || t == EventSkinSurveyStart || t == EventError
}

// StreamEvent is one NDJSON line of the response.
type StreamEvent struct {
	Type EventType `json:"type"`

	// delta
	Text string `json:"text,omitempty"`

	Summary  map[string]any      `json:"summary,omitempty"`
	Products []normalize.Product `json:"products,omitempty"`
	Routine  *normalize.Routine  `json:"routine,omitempty"`

	// final and skin_survey.start
	SessionID   string           `json:"sessionId,omitempty"`
	Reply       string           `json:"reply,omitempty"`
	ResultType  string           `json:"resultType,omitempty"`
	ToolOutputs []llm.ToolOutput `json:"toolOutputs,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// toolEnvelope is the content of a RoleTool message.
type toolEnvelope struct {
	Name     string              `json:"name"`
	Products []normalize.Product `json:"products,omitempty"`
	Routine  *normalize.Routine  `json:"routine,omitempty"`
}

func (e toolEnvelope) encode() string {
	raw, err := json.Marshal(e)
	if err != nil {
		return `{"name":"` + e.Name + `"}`
	}
	return string(raw)
}
