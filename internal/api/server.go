// Package api provides the HTTP ingress and WebSocket server for Watchgrid.
//
// It exposes the sensor event endpoints (connection and motion transitions),
// the room-scoped messaging WebSocket, and system endpoints to dashboard
// clients such as watchpanel.
//
// The server follows the same lifecycle pattern as the other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/watchgrid/watchgrid-core/internal/infrastructure/config"
	"github.com/watchgrid/watchgrid-core/internal/infrastructure/logging"
	"github.com/watchgrid/watchgrid-core/internal/infrastructure/mqtt"
	"github.com/watchgrid/watchgrid-core/internal/relay"
	"github.com/watchgrid/watchgrid-core/internal/room"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Grid    config.GridConfig
	Logger  *logging.Logger
	MQTT    *mqtt.Client // optional: sensor event ingress over MQTT
	Version string
}

// Server is the HTTP API server for Watchgrid.
//
// It manages the HTTP listener, routes, middleware, WebSocket hub, room
// registry, and the event relay that fans sensor transitions out to every
// connected dashboard.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	gridCfg   config.GridConfig
	logger    *logging.Logger
	mqtt      *mqtt.Client
	version   string
	rooms     *room.Registry
	relayer   *relay.Relay
	messenger *relay.Messenger
	hub       *Hub
	server    *http.Server
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	// MQTT is optional; HTTP ingress and WebSocket relay work without it

	s := &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		gridCfg: deps.Grid,
		logger:  deps.Logger,
		mqtt:    deps.MQTT,
		version: deps.Version,
	}

	// The hub fans events out to connections; the relay and messenger route
	// through it. Membership lives in the room registry so disconnect
	// cleanup and recipient selection share one source of truth.
	s.rooms = room.NewRegistry()
	s.hub = NewHub(s.wsCfg, s.logger, s.rooms)

	s.relayer = relay.New(s.hub)
	s.relayer.SetLogger(deps.Logger)

	s.messenger = relay.NewMessenger(s.rooms, s.hub)
	s.messenger.SetLogger(deps.Logger)
	s.hub.SetMessenger(s.messenger)

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, subscribes to MQTT sensor event topics when a
// broker client is configured, and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	// Sensor nodes that cannot speak HTTP publish transitions over MQTT
	if err := s.subscribeDeviceEvents(); err != nil {
		s.logger.Warn("failed to subscribe to device event topics", "error", err)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
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
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub)
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
