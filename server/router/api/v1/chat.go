package v1

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/skinsense/ai/chat"
	"github.com/hrygo/skinsense/ai/observability/logging"
)

const (
	ndjsonContentType = "application/json; charset=utf-8"
	// chatBodyLimit caps the request body; larger bodies get a plain 413.
	chatBodyLimit = "64K"
)

// Chat streams one assistant turn as newline-delimited JSON. Only the body
// and rate limits are answered with a plain HTTP status; everything else,
// including a malformed body, ends the stream with an error event.
//
// userId is caller-supplied and unauthenticated, so the rate limit is keyed
// on the client address.
func (s *APIV1Service) Chat(c echo.Context) error {
	ctx := c.Request().Context()

	var req chat.Request
	decodeErr := json.NewDecoder(c.Request().Body).Decode(&req)

	key := c.RealIP()
	if !s.limiter.Allow(key) {
		logging.FromContext(ctx).Warn(ctx, "chat.rate_limited", "key", key, "user_id", req.UserID)
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, ndjsonContentType)
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	tr := chat.NewTransport(res)
	if decodeErr != nil {
		logging.FromContext(ctx).Warn(ctx, "chat.bad_request", "error", decodeErr)
		_ = tr.Send(chat.StreamEvent{Type: chat.EventError, Message: "Request body must be a JSON object."})
		_ = tr.Finalize(nil)
		return nil
	}

	// The engine has already reported failures on the stream.
	_ = s.chat.Handle(ctx, &req, tr)
	return nil
}
