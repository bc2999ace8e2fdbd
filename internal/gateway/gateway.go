// ABOUTME: Gateway orchestrator that wires sessions, dispatch, agents, tools, and the HTTP server.
// ABOUTME: Owns startup ordering (ioloop before handlers) and graceful shutdown.

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bluepigwx/agentlite/internal/agent"
	"github.com/bluepigwx/agentlite/internal/config"
	"github.com/bluepigwx/agentlite/internal/dispatch"
	"github.com/bluepigwx/agentlite/internal/ioloop"
	"github.com/bluepigwx/agentlite/internal/session"
	"github.com/bluepigwx/agentlite/internal/store"
	"github.com/bluepigwx/agentlite/internal/tools"
)

// Gateway coordinates the agentlite server components: the session registry,
// the command router, the cross-context bridge, the agent manager, the
// conversation store, and the HTTP server carrying the websocket endpoint.
type Gateway struct {
	config     *config.Config
	sessions   *session.Registry
	router     *dispatch.Router
	loop       *ioloop.Loop
	agents     *agent.Manager
	store      store.Store
	tools      *tools.Registry
	sceneTools *tools.SceneTools
	httpServer *http.Server
	logger     *slog.Logger
}

// New constructs a Gateway from configuration. The registry, router, and
// bridge are built once here and passed by reference; nothing hangs off
// package-level state.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	agents, err := agent.NewManager(cfg, st, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("initializing agents: %w", err)
	}

	g := &Gateway{
		config:   cfg,
		sessions: session.NewRegistry(logger),
		router:   dispatch.NewRouter(cfg.Server.MaxDispatch, logger),
		loop:     ioloop.New(logger),
		agents:   agents,
		store:    st,
		tools:    tools.NewRegistry(logger),
		logger:   logger.With("component", "gateway"),
	}

	g.sceneTools = tools.NewSceneTools(
		g.sessions, g.loop,
		cfg.Session.RequestTimeout, cfg.Session.BridgeGrace,
		logger,
	)
	g.sceneTools.RegisterAll(g.tools)
	tools.RegisterCalculate(g.tools)
	tools.RegisterWeather(g.tools)

	g.router.RegisterBuiltins()
	g.router.Register("chat", agent.ChatHandler(agents))

	mux := http.NewServeMux()
	g.registerRoutes(mux)

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// Sessions exposes the session registry to external collaborators.
func (g *Gateway) Sessions() *session.Registry {
	return g.sessions
}

// Router exposes the command router so business modules can register
// handlers before the gateway starts accepting connections.
func (g *Gateway) Router() *dispatch.Router {
	return g.router
}

// Tools exposes the tool registry.
func (g *Gateway) Tools() *tools.Registry {
	return g.tools
}

// Run starts the bridge loop and the HTTP server, then blocks until the
// context is cancelled. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	// The bridge must be live before any handler can submit work to it.
	g.loop.Start(ctx)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
	case serverErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := g.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// Shutdown stops the HTTP server, the bridge loop, and the store.
// Sessions are cleaned up by their own connection handlers as the server
// closes their connections.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	g.loop.Stop()
	g.router.Wait()

	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
