// ABOUTME: Gateway orchestrator wiring supervisor, engine, registry, and HTTP server.
// ABOUTME: Manages startup, tenant restoration, and graceful shutdown.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/conversia/flow-gateway/internal/auth"
	"github.com/conversia/flow-gateway/internal/config"
	"github.com/conversia/flow-gateway/internal/dedupe"
	"github.com/conversia/flow-gateway/internal/engine"
	"github.com/conversia/flow-gateway/internal/flow"
	"github.com/conversia/flow-gateway/internal/session"
	"github.com/conversia/flow-gateway/internal/store"
	"github.com/conversia/flow-gateway/internal/transport"
)

// Gateway orchestrates the flow-gateway server components: the session
// supervisor, conversation engine, flow registry, tenant registry, and the
// HTTP server exposing the API.
type Gateway struct {
	config     *config.Config
	supervisor *session.Supervisor
	engine     *engine.Engine
	flows      *flow.Registry
	tenants    store.Store
	dedupe     *dedupe.Cache
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Gateway. The transport factory is injected so deployments
// choose the messaging library (or the in-memory dev transport) without the
// core knowing which.
func New(cfg *config.Config, factory transport.Factory, logger *slog.Logger) (*Gateway, error) {
	tenants, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing tenant registry: %w", err)
	}

	supervisor := session.NewSupervisor(session.SupervisorParams{
		Store:          session.NewStore(),
		Factory:        factory,
		CredentialRoot: cfg.Sessions.CredentialDir,
		RetryDelay:     cfg.Sessions.RetryDelay,
		Logger:         logger.With("component", "supervisor"),
	})

	var source flow.Source
	if cfg.Flows.SourceURL != "" {
		source = flow.NewHTTPSource(cfg.Flows.SourceURL)
	} else {
		source = flow.NewFileSource(cfg.Flows.SourceFile)
	}
	flows := flow.NewRegistry(source, cfg.Flows.RefreshInterval, logger.With("component", "flows"))

	dedupeCache := dedupe.New(5*time.Minute, 100_000)

	eng := engine.New(engine.Params{
		Flows:  flows,
		Sender: supervisor,
		Dedupe: dedupeCache,
		Logger: logger.With("component", "engine"),
	})
	supervisor.SetMessageHandler(eng)

	g := &Gateway{
		config:     cfg,
		supervisor: supervisor,
		engine:     eng,
		flows:      flows,
		tenants:    tenants,
		dedupe:     dedupeCache,
		logger:     logger.With("component", "gateway"),
	}

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.buildHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// buildHandler assembles the route table with CORS and optional auth.
func (g *Gateway) buildHandler() http.Handler {
	mux := http.NewServeMux()
	prefix := g.config.Server.PathPrefix

	api := http.NewServeMux()
	api.HandleFunc(prefix+"/connect", g.handleConnect)
	api.HandleFunc(prefix+"/qr", g.handleQR)
	api.HandleFunc(prefix+"/status", g.handleStatus)
	api.HandleFunc(prefix+"/send-message", g.handleSendMessage)
	api.HandleFunc(prefix+"/disconnect", g.handleDisconnect)
	api.HandleFunc(prefix+"/tenants", g.handleTenants)

	var apiHandler http.Handler = api
	if g.config.Auth.JWTSecret != "" {
		verifier, err := auth.NewJWTVerifier([]byte(g.config.Auth.JWTSecret))
		if err == nil {
			apiHandler = auth.Middleware(verifier)(api)
			g.logger.Info("HTTP auth middleware enabled")
		} else {
			g.logger.Error("creating JWT verifier, running without auth", "error", err)
		}
	} else {
		g.logger.Warn("HTTP auth disabled - no jwt_secret configured")
	}

	// Health stays outside auth so load balancers can probe it.
	mux.HandleFunc("/health", g.handleHealth)
	mux.Handle(prefix+"/", apiHandler)

	return corsMiddleware(g.config.Server.AllowedOrigins)(mux)
}

// restoreTenants restarts sessions for every tenant in the registry. A
// restart does not require the operator to re-issue /connect because the
// transport credentials are durable per tenant.
func (g *Gateway) restoreTenants(ctx context.Context) {
	records, err := g.tenants.ListTenants(ctx)
	if err != nil {
		g.logger.Error("listing tenants for restore", "error", err)
		return
	}

	for _, t := range records {
		if _, err := g.supervisor.Start(ctx, t.ID); err != nil {
			g.logger.Error("restoring tenant session", "tenant_id", t.ID, "error", err)
		}
	}

	if len(records) > 0 {
		g.logger.Info("restored tenant sessions", "count", len(records))
	}
}

// Run starts the gateway and blocks until the context is canceled. Returns
// nil on graceful shutdown, or an error if the HTTP server fails.
func (g *Gateway) Run(ctx context.Context) error {
	refreshCtx, cancelRefresh := context.WithCancel(ctx)
	defer cancelRefresh()
	go g.flows.Run(refreshCtx)

	g.restoreTenants(ctx)

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", g.httpServer.Addr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops all gateway components and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	g.supervisor.StopAll()
	g.flows.Close()
	g.dedupe.Close()

	if err := g.tenants.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
