package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/skinsense/ai/chat"
	"github.com/hrygo/skinsense/ai/metrics"
	"github.com/hrygo/skinsense/ai/observability/logging"
	"github.com/hrygo/skinsense/internal/profile"
)

type recordingChat struct {
	requestID any
}

func (r *recordingChat) Handle(ctx context.Context, _ *chat.Request, tr *chat.Transport) error {
	r.requestID, _ = logging.FromContext(ctx).Field(logging.KeyRequestID)
	_ = tr.Send(chat.StreamEvent{Type: chat.EventFinal, Reply: "ok"})
	return tr.Finalize(nil)
}

func newTestServer(handler *recordingChat) *Server {
	return newServer(&profile.Profile{Mode: "dev"}, handler, metrics.NewExporter(metrics.DefaultConfig()))
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&recordingChat{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(&recordingChat{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skinsense_chat_active")
}

func TestChatCarriesRequestID(t *testing.T) {
	handler := &recordingChat{}
	s := newTestServer(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set(echo.HeaderXRequestID, "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "req-42", handler.requestID)
	assert.Contains(t, rec.Body.String(), `"type":"final"`)
}

func TestChatGeneratesRequestID(t *testing.T) {
	handler := &recordingChat{}
	s := newTestServer(handler)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hi"}`)))

	id := rec.Header().Get(echo.HeaderXRequestID)
	assert.Len(t, id, 36)
	assert.Equal(t, id, handler.requestID)
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	s := newServer(&profile.Profile{Mode: "dev", RateLimitPerMinute: 1}, &recordingChat{}, metrics.NewExporter(metrics.DefaultConfig()))

	post := func(forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hi"}`))
		req.RemoteAddr = "203.0.113.9:5000"
		req.Header.Set(echo.HeaderXForwardedFor, forwardedFor)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, post("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, post("10.0.0.2"), "a public peer cannot pick its own key")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(&recordingChat{})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set(echo.HeaderOrigin, "https://shop.example")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://shop.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestNewServerRequiresAPIKey(t *testing.T) {
	_, err := NewServer(context.Background(), &profile.Profile{LLMProvider: "openai"}, nil)
	require.Error(t, err)
}
