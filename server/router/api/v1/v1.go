package v1

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/skinsense/ai/chat"
	"github.com/hrygo/skinsense/internal/profile"
)

// ChatHandler runs one chat turn against a stream transport.
type ChatHandler interface {
	Handle(ctx context.Context, req *chat.Request, tr *chat.Transport) error
}

type APIV1Service struct {
	Profile *profile.Profile

	chat    ChatHandler
	limiter *RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, handler ChatHandler) *APIV1Service {
	return &APIV1Service{
		Profile: profile,
		chat:    handler,
		limiter: NewRateLimiter(profile.RateLimitPerMinute),
	}
}

// RegisterGateway mounts the REST routes on echoServer.
func (s *APIV1Service) RegisterGateway(echoServer *echo.Echo) {
	group := echoServer.Group("/api/v1")
	group.POST("/chat", s.Chat, middleware.BodyLimit(chatBodyLimit))
}
