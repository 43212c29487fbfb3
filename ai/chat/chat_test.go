package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hrygo/skinsense/ai/core/llm"
	"github.com/hrygo/skinsense/ai/normalize"
	"github.com/hrygo/skinsense/ai/observability/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestEngine(store ContextStore, model ModelCaller) *Engine {
	return NewEngine(store, model, nil, Options{})
}

func handle(t *testing.T, e *Engine, req *Request) []StreamEvent {
	t.Helper()
	var buf bytes.Buffer
	tr := NewTransport(&buf)
	_ = e.Handle(context.Background(), req, tr)
	assert.Equal(t, "closed", tr.State())
	return decodeEvents(t, buf.Bytes())
}

func decodeAny(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestEngineStreamsTokensThenFinal(t *testing.T) {
	store := &mockStore{}
	model := &mockModel{
		events: []llm.Event{
			{Kind: llm.EventToken, Token: "Hi"},
			{Kind: llm.EventToken, Token: ""},
			{Kind: llm.EventToken, Token: " there"},
		},
		completion: &llm.Completion{Reply: "Hi there", ResultType: llm.ResultText},
	}
	events := handle(t, newTestEngine(store, model), &Request{Message: "hello", SessionID: "s1", UserID: "u1"})

	assert.Equal(t, []EventType{EventDelta, EventDelta, EventFinal}, eventTypes(events))
	final := events[2]
	assert.Equal(t, "s1", final.SessionID)
	assert.Equal(t, "Hi there", final.Reply)
	assert.Equal(t, "text", final.ResultType)

	_, appends, _ := store.snapshot()
	require.Len(t, appends, 2)
	assert.Equal(t, RoleUser, appends[0].Role)
	assert.Equal(t, "hello\n\n[userId: u1]", appends[0].Content)
	assert.Equal(t, appended{SessionID: "s1", Role: RoleAssistant, Content: "Hi there"}, appends[1])

	require.NotNil(t, model.request)
	last := model.request.Messages[len(model.request.Messages)-1]
	assert.Equal(t, "user", last.Role)
	assert.Contains(t, last.Content, "hello")
	assert.Equal(t, DefaultSystemPrompt, model.request.SystemPrompt)
	assert.True(t, model.request.UseTools)
	assert.Equal(t, DefaultMaxToolRounds, model.request.MaxToolRounds)
	assert.Equal(t, llm.ProviderOpenAI, model.provider)
}

func TestEngineDedupsPayloads(t *testing.T) {
	products1 := decodeAny(t, `[{"_id":"p1","name":"A"},{"id":"p2"}]`).([]any)
	// Same ids, different order and shape.
	products2 := decodeAny(t, `[{"product":{"id":"p2"}},{"productId":"p1","selectionReason":"new"}]`).([]any)
	products3 := decodeAny(t, `[{"_id":"p3"}]`).([]any)
	routine := decodeAny(t, `{"steps":[{"productId":"p1"},{"productSlug":"toner"}]}`)
	sameRoutine := decodeAny(t, `{"steps":[{"product":{"_id":"p1"}},{"slug":"toner","instruction":"pat in"}]}`)

	store := &mockStore{}
	model := &mockModel{events: []llm.Event{
		{Kind: llm.EventProducts, Payload: products1},
		{Kind: llm.EventProducts, Payload: products2},
		{Kind: llm.EventSummary, Payload: map[string]any{"skinType": "dry", "budget": "low"}},
		{Kind: llm.EventSummary, Payload: map[string]any{"budget": "low", "skinType": "dry"}},
		{Kind: llm.EventRoutine, Payload: routine},
		{Kind: llm.EventRoutine, Payload: sameRoutine},
		{Kind: llm.EventProducts, Payload: products3},
	}}
	events := handle(t, newTestEngine(store, model), &Request{Message: "hi", SessionID: "s1"})

	assert.Equal(t, []EventType{EventProducts, EventSummary, EventRoutine, EventProducts, EventFinal}, eventTypes(events))
	assert.Equal(t, "p1", events[0].Products[0].ProductID)
	assert.Equal(t, "p3", events[3].Products[0].ProductID)
	require.NotNil(t, events[2].Routine)
	assert.Len(t, events[2].Routine.Steps, 2)

	_, appends, _ := store.snapshot()
	var tools []string
	for _, a := range appends {
		if a.Role == RoleTool {
			tools = append(tools, a.Content)
		}
	}
	require.Len(t, tools, 3, "one audit record per emitted payload")
	assert.Contains(t, tools[0], `"name":"products"`)
	assert.Contains(t, tools[1], `"name":"routine"`)
}

func TestEngineSkipsEmptyPayloads(t *testing.T) {
	model := &mockModel{events: []llm.Event{
		{Kind: llm.EventProducts, Payload: decodeAny(t, `[{"slug":"no-id"}]`)},
		{Kind: llm.EventRoutine, Payload: decodeAny(t, `{"steps":[{"step":"Tone"}]}`)},
		{Kind: llm.EventSummary, Payload: map[string]any{}},
	}}
	store := &mockStore{}
	events := handle(t, newTestEngine(store, model), &Request{Message: "hi", SessionID: "s1"})
	assert.Equal(t, []EventType{EventFinal}, eventTypes(events))

	_, appends, _ := store.snapshot()
	assert.Len(t, appends, 1, "only the inbound message")
}

func TestEngineEmptyBatchDoesNotResetDedup(t *testing.T) {
	model := &mockModel{events: []llm.Event{
		{Kind: llm.EventProducts, Payload: decodeAny(t, `[{"_id":"p1"}]`)},
		{Kind: llm.EventProducts, Payload: decodeAny(t, `[]`)},
		{Kind: llm.EventProducts, Payload: decodeAny(t, `[{"_id":"p1"}]`)},
		{Kind: llm.EventRoutine, Payload: decodeAny(t, `{"steps":[{"productId":"p1"}]}`)},
		{Kind: llm.EventRoutine, Payload: decodeAny(t, `{"steps":[]}`)},
		{Kind: llm.EventRoutine, Payload: decodeAny(t, `{"steps":[{"productId":"p1"}]}`)},
	}}
	store := &mockStore{}
	events := handle(t, newTestEngine(store, model), &Request{Message: "hi", SessionID: "s1"})
	assert.Equal(t, []EventType{EventProducts, EventRoutine, EventFinal}, eventTypes(events))

	_, appends, _ := store.snapshot()
	tools := 0
	for _, a := range appends {
		if a.Role == RoleTool {
			tools++
		}
	}
	assert.Equal(t, 2, tools)
}

func TestFailedSendIsNotRemembered(t *testing.T) {
	o := &orchestrator{ctx: context.Background(), log: logging.Default(), tr: NewTransport(&failingWriter{}), store: &mockStore{}}
	o.emitProducts(decodeAny(t, `[{"_id":"p1"}]`))
	assert.False(t, o.sigs.duplicate(EventProducts, productsSignature([]normalize.Product{{ProductID: "p1"}})),
		"a payload that never reached the client is not remembered")
}

func TestEngineFinalizeWaitsForBackgroundWrites(t *testing.T) {
	store := &mockStore{appendDelay: 150 * time.Millisecond, needsSummary: true}
	model := &mockModel{completion: &llm.Completion{Reply: "done", ResultType: llm.ResultText}}
	e := newTestEngine(store, model)

	var buf bytes.Buffer
	tr := NewTransport(&buf)
	start := time.Now()
	require.NoError(t, e.Handle(context.Background(), &Request{Message: "hi", SessionID: "s1"}, tr))

	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond, "two ordered appends of 150ms each")
	assert.Equal(t, "closed", tr.State())
	_, appends, recomputes := store.snapshot()
	require.Len(t, appends, 2)
	assert.Equal(t, RoleUser, appends[0].Role)
	assert.Equal(t, RoleAssistant, appends[1].Role)
	assert.Equal(t, 2, recomputes)

	events := decodeEvents(t, buf.Bytes())
	assert.Equal(t, EventFinal, events[len(events)-1].Type)
}

func TestEngineSessionReuse(t *testing.T) {
	store := &mockStore{}
	e := newTestEngine(store, &mockModel{})

	for i := 0; i < 2; i++ {
		events := handle(t, e, &Request{Message: "hi", SessionID: "s1"})
		assert.Equal(t, "s1", events[len(events)-1].SessionID)
	}
	created, _, _ := store.snapshot()
	assert.Zero(t, created)

	events := handle(t, e, &Request{Message: "hi"})
	assert.Equal(t, "generated-session", events[len(events)-1].SessionID)
	created, _, _ = store.snapshot()
	assert.Equal(t, 1, created)
}

func TestEngineSessionCreateFailure(t *testing.T) {
	store := &mockStore{createErr: errors.New("db down")}
	model := &mockModel{}
	events := handle(t, newTestEngine(store, model), &Request{Message: "hi"})

	require.Equal(t, []EventType{EventError}, eventTypes(events))
	assert.Equal(t, genericFailure, events[0].Message)
	assert.Zero(t, model.calls)
}

func TestEngineRejectsInvalidInput(t *testing.T) {
	negative := -1
	hot := float32(3)
	tests := []struct {
		name string
		req  *Request
		want string
	}{
		{"empty message", &Request{Message: "   "}, "message is required"},
		{"unknown provider", &Request{Message: "hi", Provider: "claude"}, "unsupported provider"},
		{"negative rounds", &Request{Message: "hi", MaxToolRounds: &negative}, "maxToolRounds"},
		{"temperature", &Request{Message: "hi", Temperature: &hot}, "temperature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			model := &mockModel{}
			events := handle(t, newTestEngine(store, model), tt.req)
			require.Equal(t, []EventType{EventError}, eventTypes(events))
			assert.Contains(t, events[0].Message, tt.want)
			assert.Zero(t, model.calls)
			created, appends, _ := store.snapshot()
			assert.Zero(t, created)
			assert.Empty(t, appends)
		})
	}
}

func TestEngineForwardsModelOptions(t *testing.T) {
	zero := 0
	noTools := false
	temp := float32(0.2)
	model := &mockModel{}
	handle(t, newTestEngine(&mockStore{}, model), &Request{
		Message:       "hi",
		SessionID:     "s1",
		Provider:      llm.ProviderGemini,
		Model:         "gemini-2.5-pro",
		Temperature:   &temp,
		MaxToolRounds: &zero,
		UseTools:      &noTools,
	})
	assert.Equal(t, llm.ProviderGemini, model.provider)
	assert.Equal(t, "gemini-2.5-pro", model.request.Model)
	assert.Equal(t, 0, model.request.MaxToolRounds)
	assert.False(t, model.request.UseTools)
	assert.Equal(t, float32(0.2), *model.request.Temperature)

	many := 50
	handle(t, newTestEngine(&mockStore{}, model), &Request{Message: "hi", SessionID: "s1", MaxToolRounds: &many})
	assert.Equal(t, MaxToolRoundsLimit, model.request.MaxToolRounds)
}

func TestEngineProviderErrorAfterTokens(t *testing.T) {
	store := &mockStore{}
	model := &mockModel{
		events: []llm.Event{{Kind: llm.EventToken, Token: "partial"}},
		err:    errors.New("rate limited"),
	}
	events := handle(t, newTestEngine(store, model), &Request{Message: "hi", SessionID: "s1"})

	assert.Equal(t, []EventType{EventDelta, EventError}, eventTypes(events))
	assert.Equal(t, "s1", events[1].SessionID)
	_, appends, _ := store.snapshot()
	assert.Len(t, appends, 1, "the inbound append still settles")
}

func TestEngineUnknownProviderMessage(t *testing.T) {
	model := &mockModel{err: llm.ErrUnknownProvider}
	events := handle(t, newTestEngine(&mockStore{}, model), &Request{Message: "hi", SessionID: "s1", Provider: "gemini"})
	require.Equal(t, EventError, events[len(events)-1].Type)
	assert.Equal(t, "The requested model provider is not available.", events[len(events)-1].Message)
}

func TestEngineRecoversPanic(t *testing.T) {
	model := &mockModel{panicWith: "boom"}
	var buf bytes.Buffer
	tr := NewTransport(&buf)
	err := newTestEngine(&mockStore{}, model).Handle(context.Background(), &Request{Message: "hi", SessionID: "s1"}, tr)
	require.Error(t, err)

	events := decodeEvents(t, buf.Bytes())
	require.Equal(t, []EventType{EventError}, eventTypes(events))
	assert.Equal(t, "closed", tr.State())
}

func TestEngineQuizStart(t *testing.T) {
	store := &mockStore{}
	model := &mockModel{completion: &llm.Completion{StartSkinTypeQuiz: true, ResultType: llm.ResultQuiz}}
	events := handle(t, newTestEngine(store, model), &Request{Message: "what's my skin type?", SessionID: "s1"})

	require.Equal(t, []EventType{EventSkinSurveyStart}, eventTypes(events))
	assert.Equal(t, "s1", events[0].SessionID)
}

func TestEngineQuizAnswersAppendedAsSystem(t *testing.T) {
	store := &mockStore{}
	model := &mockModel{}
	msg := QuizSentinel + `{"answers":[{"question":"How does your skin feel at noon?","answer":"Tight and flaky"}]}`
	handle(t, newTestEngine(store, model), &Request{Message: msg, SessionID: "s1"})

	_, appends, _ := store.snapshot()
	require.NotEmpty(t, appends)
	assert.Equal(t, RoleSystem, appends[0].Role)
	assert.NotContains(t, appends[0].Content, QuizSentinel)
	last := model.request.Messages[len(model.request.Messages)-1]
	assert.Equal(t, "system", last.Role)

	store = &mockStore{}
	model = &mockModel{}
	handle(t, newTestEngine(store, model), &Request{Message: QuizSentinel + "{broken", SessionID: "s1"})
	_, appends, _ = store.snapshot()
	assert.Empty(t, appends, "a broken quiz payload is not appended")
	assert.Equal(t, 1, model.calls, "the request still proceeds")
}

func TestEngineContextFailureDegrades(t *testing.T) {
	store := &mockStore{contextErr: errors.New("timeout")}
	model := &mockModel{}
	events := handle(t, newTestEngine(store, model), &Request{Message: "hello", SessionID: "s1"})

	assert.Equal(t, EventFinal, events[len(events)-1].Type)
	require.Len(t, model.request.Messages, 1)
	assert.Equal(t, "hello", model.request.Messages[0].Content)
}

func TestEngineDoesNotDuplicateInboundInContext(t *testing.T) {
	store := &mockStore{history: []Message{
		{Role: RoleAssistant, Content: "Welcome"},
		{Role: RoleUser, Content: "hello"},
	}}
	model := &mockModel{}
	handle(t, newTestEngine(store, model), &Request{Message: "hello", SessionID: "s1"})
	assert.Len(t, model.request.Messages, 2)
}

func TestEngineNoToolAuditWhenSendFails(t *testing.T) {
	store := &mockStore{}
	model := &mockModel{
		events: []llm.Event{
			{Kind: llm.EventToken, Token: "a"},
			{Kind: llm.EventProducts, Payload: decodeAny(t, `[{"_id":"p1"}]`)},
		},
		completion: &llm.Completion{Reply: "a", ResultType: llm.ResultProducts},
	}
	w := &failingWriter{ok: 1}
	tr := NewTransport(w)
	require.NoError(t, newTestEngine(store, model).Handle(context.Background(), &Request{Message: "hi", SessionID: "s1"}, tr))

	_, appends, _ := store.snapshot()
	for _, a := range appends {
		assert.NotEqual(t, RoleTool, a.Role)
	}
	assert.Equal(t, 2, len(appends), "inbound and reply appends still run")
	assert.True(t, strings.HasPrefix(w.buf.String(), `{"type":"delta"`))
}

func TestEngineFinalCarriesNormalizedPayloads(t *testing.T) {
	model := &mockModel{completion: &llm.Completion{
		Reply:       "ok",
		ResultType:  llm.ResultRoutine,
		Products:    decodeAny(t, `[{"_id":"p1"},{"name":"dropped"}]`).([]any),
		Routine:     decodeAny(t, `{"routineId":"r1","steps":[{"productId":"p1"}]}`),
		Summary:     map[string]any{"skinType": "oily"},
		ToolOutputs: []llm.ToolOutput{{Name: "get_routine", Output: json.RawMessage(`{"routine":{}}`)}},
	}}
	events := handle(t, newTestEngine(&mockStore{}, model), &Request{Message: "hi", SessionID: "s1"})

	final := events[len(events)-1]
	require.Equal(t, EventFinal, final.Type)
	assert.Equal(t, []normalize.Product{{ProductID: "p1"}}, final.Products)
	require.NotNil(t, final.Routine)
	assert.Equal(t, "r1", final.Routine.RoutineID)
	assert.Equal(t, "routine", final.ResultType)
	assert.Equal(t, "oily", final.Summary["skinType"])
	require.Len(t, final.ToolOutputs, 1)
}
