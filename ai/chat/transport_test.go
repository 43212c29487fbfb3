package chat

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportWritesNDJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	tr := NewTransport(rec)

	require.NoError(t, tr.Send(StreamEvent{Type: EventDelta, Text: "<b>hi</b>"}))
	require.NoError(t, tr.Send(StreamEvent{Type: EventFinal, SessionID: "s1", Reply: "hi"}))
	assert.True(t, rec.Flushed)
	assert.Equal(t,
		`{"type":"delta","text":"<b>hi</b>"}`+"\n"+`{"type":"final","sessionId":"s1","reply":"hi"}`+"\n",
		rec.Body.String())
}

func TestTransportNothingAfterTerminal(t *testing.T) {
	tr := NewTransport(httptest.NewRecorder())
	require.NoError(t, tr.Send(StreamEvent{Type: EventError, Message: "x"}))
	assert.ErrorIs(t, tr.Send(StreamEvent{Type: EventFinal}), ErrTransportClosed)
}

func TestTransportLifecycle(t *testing.T) {
	tr := NewTransport(httptest.NewRecorder())
	assert.Equal(t, "open", tr.State())

	var during string
	var sendErr error
	require.NoError(t, tr.Finalize(func() {
		during = tr.State()
		sendErr = tr.Send(StreamEvent{Type: EventDelta, Text: "late"})
	}))
	assert.Equal(t, "finalizing", during)
	assert.ErrorIs(t, sendErr, ErrAlreadyFinalized)
	assert.Equal(t, "closed", tr.State())

	assert.ErrorIs(t, tr.Finalize(nil), ErrAlreadyFinalized)
	assert.ErrorIs(t, tr.Send(StreamEvent{Type: EventDelta}), ErrTransportClosed)
}

func TestTransportBrokenWriter(t *testing.T) {
	w := &failingWriter{ok: 0}
	tr := NewTransport(w)
	require.Error(t, tr.Send(StreamEvent{Type: EventDelta, Text: "a"}))
	assert.ErrorIs(t, tr.Send(StreamEvent{Type: EventDelta, Text: "b"}), ErrTransportClosed)
	assert.Equal(t, 1, w.writes, "no write after the first failure")
}
