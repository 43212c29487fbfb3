package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/skinsense/ai/core/llm"
)

type appended struct {
	SessionID string
	Role      Role
	Content   string
}

// mockStore records calls. appendDelay makes every append slow so tests can
// observe that the response waits for it.
type mockStore struct {
	mu           sync.Mutex
	created      int
	appends      []appended
	recomputes   int
	history      []Message
	contextErr   error
	createErr    error
	appendErr    error
	appendDelay  time.Duration
	needsSummary bool
}

func (m *mockStore) CreateSession(context.Context, string, map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	m.created++
	return "generated-session", nil
}

func (m *mockStore) AppendMessage(ctx context.Context, sessionID string, role Role, content string) (*AppendResult, error) {
	if m.appendDelay > 0 {
		select {
		case <-time.After(m.appendDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	m.appends = append(m.appends, appended{SessionID: sessionID, Role: role, Content: content})
	return &AppendResult{NeedsSummary: m.needsSummary}, nil
}

func (m *mockStore) GetContext(context.Context, string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.history...), m.contextErr
}

func (m *mockStore) RecomputeSummaries(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recomputes++
	return nil
}

func (m *mockStore) snapshot() (created int, appends []appended, recomputes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created, append([]appended(nil), m.appends...), m.recomputes
}

// mockModel replays events and returns a fixed completion.
type mockModel struct {
	events     []llm.Event
	completion *llm.Completion
	err        error
	panicWith  any

	calls    int
	provider string
	request  *llm.Request
}

func (m *mockModel) Complete(_ context.Context, provider string, req *llm.Request, emit llm.Emit) (*llm.Completion, error) {
	m.calls++
	m.provider = provider
	m.request = req
	for _, e := range m.events {
		emit(e)
	}
	if m.panicWith != nil {
		panic(m.panicWith)
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.completion == nil {
		return &llm.Completion{ResultType: llm.ResultText}, nil
	}
	return m.completion, nil
}

func decodeEvents(t *testing.T, raw []byte) []StreamEvent {
	t.Helper()
	var out []StreamEvent
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var e StreamEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e), sc.Text())
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func eventTypes(events []StreamEvent) []EventType {
	out := make([]EventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

// failingWriter accepts ok writes and fails afterwards.
type failingWriter struct {
	ok     int
	writes int
	buf    bytes.Buffer
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > w.ok {
		return 0, errors.New("connection reset")
	}
	return w.buf.Write(p)
}
