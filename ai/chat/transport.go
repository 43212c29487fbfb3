package chat

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrTransportClosed is returned by Send once the stream can no longer
	// carry events.
	ErrTransportClosed = errors.New("transport closed")
	// ErrAlreadyFinalized is returned when Send or Finalize is called after
	// finalization started.
	ErrAlreadyFinalized = errors.New("transport already finalized")
)

type transportState int

const (
	stateOpen transportState = iota
	stateFinalizing
	stateClosed
)

func (s transportState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateFinalizing:
		return "finalizing"
	default:
		return "closed"
	}
}

// Transport writes StreamEvents as newline-delimited JSON and flushes after
// every event. After a failed write every later Send is a no-op returning
// ErrTransportClosed.
type Transport struct {
	mu       sync.Mutex
	enc      *json.Encoder
	flusher  http.Flusher
	state    transportState
	broken   bool
	terminal bool
}

// NewTransport wraps w. If w is an http.Flusher it is flushed per event.
func NewTransport(w io.Writer) *Transport {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	t := &Transport{enc: enc}
	if f, ok := w.(http.Flusher); ok {
		t.flusher = f
	}
	return t
}

// Send writes one event. Nothing can follow a terminal event.
func (t *Transport) Send(e StreamEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.state == stateFinalizing:
		return ErrAlreadyFinalized
	case t.state == stateClosed, t.broken:
		return ErrTransportClosed
	case t.terminal:
		return errors.Wrap(ErrTransportClosed, "terminal event already sent")
	}

	if err := t.enc.Encode(e); err != nil {
		t.broken = true
		return errors.Wrap(err, "write event")
	}
	if t.flusher != nil {
		t.flusher.Flush()
	}
	if e.Type.Terminal() {
		t.terminal = true
	}
	return nil
}

// Finalize moves the transport to finalizing, runs wait (typically the
// background task join) and closes it. It may be called once.
func (t *Transport) Finalize(wait func()) error {
	t.mu.Lock()
	if t.state != stateOpen {
		t.mu.Unlock()
		return ErrAlreadyFinalized
	}
	t.state = stateFinalizing
	t.mu.Unlock()

	if wait != nil {
		wait()
	}

	t.mu.Lock()
	t.state = stateClosed
	t.mu.Unlock()
	return nil
}

// State returns "open", "finalizing" or "closed".
func (t *Transport) State() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.String()
}
