// Package api provides the HTTP REST API and WebSocket server for the
// nixstrav management console.
//
// It exposes tag registry operations, user administration, the audit trail,
// the bridge event log, and a live read feed to the web console.
//
// The server follows the same lifecycle pattern as other infrastructure
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

	"github.com/nixstrav/mng-core/internal/audit"
	"github.com/nixstrav/mng-core/internal/auth"
	"github.com/nixstrav/mng-core/internal/events"
	"github.com/nixstrav/mng-core/internal/infrastructure/config"
	"github.com/nixstrav/mng-core/internal/infrastructure/logging"
	"github.com/nixstrav/mng-core/internal/sysmon"
	"github.com/nixstrav/mng-core/internal/tag"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	WS            config.WebSocketConfig
	Readers       config.ReaderConfig
	Logger        *logging.Logger
	Authenticator *auth.Authenticator
	Sessions      *auth.SessionStore
	Cookies       *auth.CookieCodec
	Users         auth.UserRepository
	Registry      *tag.Registry
	Audit         audit.Repository
	Events        *events.Repository
	Sysmon        *sysmon.Repository // optional; nil disables system endpoints' DB queries
	Version       string
}

// Server is the HTTP API server for the management console.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	readers config.ReaderConfig
	logger  *logging.Logger

	authn    *auth.Authenticator
	sessions *auth.SessionStore
	cookies  *auth.CookieCodec
	users    auth.UserRepository
	registry *tag.Registry
	audit    audit.Repository
	events   *events.Repository
	sysmon   *sysmon.Repository

	version string
	server  *http.Server
	hub     *Hub
	cancel  context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Authenticator == nil || deps.Sessions == nil || deps.Cookies == nil {
		return nil, fmt.Errorf("auth components are required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("tag registry is required")
	}
	if deps.Audit == nil {
		return nil, fmt.Errorf("audit repository is required")
	}
	// Events and Sysmon are optional — the console degrades to empty panels.

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		readers:  deps.Readers,
		logger:   deps.Logger,
		authn:    deps.Authenticator,
		sessions: deps.Sessions,
		cookies:  deps.Cookies,
		users:    deps.Users,
		registry: deps.Registry,
		audit:    deps.Audit,
		events:   deps.Events,
		sysmon:   deps.Sysmon,
		version:  deps.Version,
	}, nil
}

// Hub returns the WebSocket hub, available after Start(). The MQTT
// consumer feeds live reads into it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
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

// HealthCheck verifies the API server is running.
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
