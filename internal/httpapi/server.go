package httpapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/inboxd/inboxd/internal/identity"
	"github.com/inboxd/inboxd/internal/relay"
)

// Server holds the dependencies for the HTTP/WebSocket transport.
type Server struct {
	E         *echo.Echo
	relay     *relay.Relay
	directory identity.Directory

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	wsOrigins  []string
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics binds the request metrics middleware and the /metrics endpoint
// to the given registry instead of the process-global default, so multiple
// servers can coexist in one process.
func WithMetrics(reg prometheus.Registerer, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.registerer = reg
		s.gatherer = g
	}
}

// WithOriginPatterns sets the host patterns allowed to open cross-origin
// WebSocket connections. Without it only same-origin clients may connect.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) {
		s.wsOrigins = patterns
	}
}

// New creates a new Server instance and registers all routes.
func New(r *relay.Relay, directory identity.Directory, opts ...Option) *Server {
	s := &Server{
		relay:      r,
		directory:  directory,
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "inboxd",
		Registerer: s.registerer,
	}))
	e.Validator = NewValidator()

	s.E = e
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.E.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	s.E.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: s.gatherer,
	}))

	auth := Auth(s.directory)

	api := s.E.Group("/api", auth)
	api.POST("/messages", s.SendMessage, RateLimiter())
	api.GET("/conversations", s.ListRecent)
	api.GET("/conversations/:peer/messages", s.ListConversation)
	api.DELETE("/conversations/:peer", s.DeleteConversation)

	s.E.GET("/ws/conversations/:peer", s.SubscribeWS, auth)
}

// Start runs the HTTP server until an interrupt or terminate signal arrives,
// then shuts down gracefully.
func (s *Server) Start(addr string) {
	go func() {
		if err := s.E.Start(addr); err != nil && err != http.ErrServerClosed {
			s.E.Logger.Fatalf("shutting down the server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.E.Shutdown(ctx); err != nil {
		s.E.Logger.Fatal(err)
	}
}
