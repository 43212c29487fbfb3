// Package server hosts the HTTP surface: the streaming chat endpoint,
// liveness and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/skinsense/ai/chat"
	"github.com/hrygo/skinsense/ai/conversation"
	"github.com/hrygo/skinsense/ai/core/llm"
	"github.com/hrygo/skinsense/ai/metrics"
	"github.com/hrygo/skinsense/ai/observability/logging"
	"github.com/hrygo/skinsense/ai/summary"
	"github.com/hrygo/skinsense/ai/tools"
	"github.com/hrygo/skinsense/internal/profile"
	apiv1 "github.com/hrygo/skinsense/server/router/api/v1"
	"github.com/hrygo/skinsense/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	metrics    *metrics.Exporter
}

// NewServer builds the chat stack from the profile and mounts it.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	if !profile.IsAIEnabled() {
		return nil, errors.Errorf("no API key configured for LLM provider %q", profile.LLMProvider)
	}

	exporter := metrics.NewExporter(metrics.DefaultConfig())
	registry, err := tools.NewRegistry(exporter, tools.Default(store)...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build tool registry")
	}
	router, err := llm.NewRouterFromProfile(ctx, profile, registry, exporter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create LLM router")
	}
	systemPrompt, err := chat.LoadSystemPrompt(profile.SystemPromptFile)
	if err != nil {
		return nil, err
	}

	contextStore := conversation.NewService(store, summary.NewSummarizer(router), profile.SummaryThreshold, profile.ContextWindow)
	engine := chat.NewEngine(contextStore, router, exporter, chat.Options{
		SystemPrompt:    systemPrompt,
		DefaultProvider: router.Default(),
		MaxToolRounds:   profile.MaxToolRounds,
	})

	s := newServer(profile, engine, exporter)
	s.Store = store
	slog.Info("Chat engine initialized",
		"providers", router.Names(),
		"default_provider", router.Default(),
		"tools", registry.Names(),
	)
	return s, nil
}

func newServer(profile *profile.Profile, handler apiv1.ChatHandler, exporter *metrics.Exporter) *Server {
	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	// X-Forwarded-For is honored only from private and loopback proxies.
	echoServer.IPExtractor = echo.ExtractIPFromXFFHeader()
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			ctx := logging.With(req.Context(), logging.KeyRequestID, id)
			c.SetRequest(req.WithContext(ctx))
		},
	}))
	echoServer.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"*"},
		ExposeHeaders: []string{echo.HeaderXRequestID},
	}))

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	echoServer.GET("/metrics", echo.WrapHandler(exporter.Handler()))

	service := apiv1.NewAPIV1Service(profile, handler)
	service.RegisterGateway(echoServer)

	return &Server{Profile: profile, echoServer: echoServer, metrics: exporter}
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	var address, network string
	if len(s.Profile.UNIXSock) == 0 {
		address = fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
		network = "tcp"
	} else {
		address = s.Profile.UNIXSock
		network = "unix"
	}
	listener, err := net.Listen(network, address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	go func() {
		s.echoServer.Listener = listener
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight chat streams,
// which includes their background persistence, to finish.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			slog.Error("failed to close database", slog.String("error", err.Error()))
		}
	}
	slog.Info("server stopped properly")
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}
