package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/dyson360-bridge/internal/accessory"
	"github.com/nerrad567/dyson360-bridge/internal/history"
	"github.com/nerrad567/dyson360-bridge/internal/infrastructure/config"
	"github.com/nerrad567/dyson360-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/dyson360-bridge/internal/metrics"
	"github.com/nerrad567/dyson360-bridge/internal/vacuum"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown. Longer than the default command timeout so a
// pending PUT can still report its outcome.
const gracefulShutdownTimeout = 15 * time.Second

// StateSource supplies the robot's current snapshot. vacuum.Session implements it.
type StateSource interface {
	Snapshot() vacuum.State
}

// HealthCheck is one named component probed by GET /health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Accessory *accessory.Accessory
	State     StateSource
	History   history.Repository // Optional; /history returns 503 without it
	DeviceID  string             // History key, the robot username
	Checks    []HealthCheck
	Metrics   *metrics.Collector // Optional; enables GET /metrics
	Version   string
}

// Server is the HTTP API server for the bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	accessory *accessory.Accessory
	state     StateSource
	history   history.Repository
	deviceID  string
	checks    []HealthCheck
	metrics   *metrics.Collector
	version   string
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called, but its WebSocket hub
// exists immediately so state listeners can be registered beforehand.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Accessory == nil {
		return nil, fmt.Errorf("accessory is required")
	}
	if deps.State == nil {
		return nil, fmt.Errorf("state source is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		accessory: deps.Accessory,
		state:     deps.State,
		history:   deps.History,
		deviceID:  deps.DeviceID,
		checks:    deps.Checks,
		metrics:   deps.Metrics,
		version:   deps.Version,
		hub:       NewHub(deps.WS, deps.Logger),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// PublishState pushes the characteristic values of next to WebSocket
// subscribers. It has the vacuum.Listener signature.
func (s *Server) PublishState(_, next vacuum.State) {
	s.hub.Broadcast(ChannelCharacteristics, accessory.ValuesFromState(next))
}

// Close gracefully shuts down the API server.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
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
