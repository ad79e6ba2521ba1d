package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lumahome/luma-core/internal/auth"
	"github.com/lumahome/luma-core/internal/infrastructure/config"
	"github.com/lumahome/luma-core/internal/infrastructure/logging"
	"github.com/lumahome/luma-core/internal/registry"
	"github.com/lumahome/luma-core/internal/statesync"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DeviceStore is the interface the API needs from the registry.
type DeviceStore interface {
	GetByID(ctx context.Context, id string) (*registry.Device, error)
	List(ctx context.Context) ([]registry.Device, error)
	ReadingsSince(ctx context.Context, deviceID string, since time.Time) ([]registry.SensorReading, error)
	GetThreshold(ctx context.Context, deviceID string) (*registry.SensorThreshold, error)
	CreateDefaultThreshold(ctx context.Context, deviceID string) (*registry.SensorThreshold, error)
	UpdateThreshold(ctx context.Context, threshold *registry.SensorThreshold) error
}

// CommandIssuer is the interface the API needs from the command
// dispatcher.
type CommandIssuer interface {
	Issue(ctx context.Context, deviceID string, desired bool) error
	IssuePosition(ctx context.Context, deviceID string, position int) error
}

// EventSource provides the state-change feed relayed to WebSocket
// clients. The returned function unsubscribes.
type EventSource interface {
	Subscribe(handler func(statesync.Event)) func()
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Devices  DeviceStore
	Users    auth.UserRepository
	Commands CommandIssuer
	Events   EventSource
	Version  string
}

// Server is the HTTP and WebSocket surface of the daemon. It exposes
// the device registry, sensor history, thresholds, and command
// dispatch to dashboard clients, and streams state-change events over
// /ws.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	devices  DeviceStore
	users    auth.UserRepository
	commands CommandIssuer
	events   EventSource
	version  string

	server      *http.Server
	hub         *hub
	unsubscribe func()
	cancel      context.CancelFunc
}

// New creates an API server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device store is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		devices:  deps.Devices,
		users:    deps.Users,
		commands: deps.Commands,
		events:   deps.Events,
		version:  deps.Version,
	}, nil
}

// Start launches the WebSocket hub and the HTTP listener.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = newHub(s.wsCfg, s.logger)
	go s.hub.run(srvCtx)

	if s.events != nil {
		s.unsubscribe = s.events.Subscribe(func(event statesync.Event) {
			s.hub.broadcast(event)
		})
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()

	s.logger.Info("api server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the server, waiting for in-flight
// requests before closing remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("api server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
