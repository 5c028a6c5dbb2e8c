package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"pollcast/internal/api"
	"pollcast/internal/config"
	"pollcast/internal/database"
	"pollcast/internal/feed"
	"pollcast/internal/hub"
	"pollcast/internal/router"
	"pollcast/internal/session"
	"pollcast/internal/websocket"
	dbconfig "pollcast/pkg/database"
)

const rateLimitCleanupInterval = 5 * time.Minute

// Application coordinates all system components
// Clean dependency injection pattern with proper initialization order
type Application struct {
	config     *config.Config
	logger     *slog.Logger
	store      *database.Store // nil when the archive is disabled
	feed       *feed.Feed      // nil when the redis feed is disabled
	registry   *websocket.Registry
	session    *session.Coordinator
	limiter    *router.RateLimiter
	messageHub *hub.Hub
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewApplication creates a new application instance with all components initialized
// Component initialization follows strict dependency order:
// Archive → Feed → Registry → Session → Router → Hub → API → HTTP
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Validate configuration before component initialization
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{config: cfg, logger: logger}

	// STEP 1: Open the sqlite archive (migrations run inside Open)
	var recorders session.Recorders
	if cfg.Archive.Enabled {
		dbConfig := dbconfig.DefaultConfig()
		dbConfig.DatabasePath = cfg.Archive.Path

		store, err := database.Open(dbConfig, logger.With("component", "archive"))
		if err != nil {
			return nil, fmt.Errorf("failed to open poll archive: %w", err)
		}
		app.store = store
		recorders = append(recorders, store)
	}

	// STEP 2: Connect the redis results feed
	if cfg.Redis.Enabled {
		results, err := feed.New(ctx, feed.Config{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			Channel:    cfg.Redis.Channel,
			ListKey:    cfg.Redis.ListKey,
			MaxEntries: cfg.Redis.MaxEntries,
		}, logger.With("component", "feed"))
		if err != nil {
			app.closeStorage()
			return nil, fmt.Errorf("failed to connect results feed: %w", err)
		}
		app.feed = results
		recorders = append(recorders, results)
	}

	// STEP 3: Connection registry doubles as the session's broadcast channel
	app.registry = websocket.NewRegistry(logger.With("component", "registry"))

	// STEP 4: Session coordinator owns roster, poll and tally state
	opts := []session.Option{
		session.WithLogger(logger.With("component", "session")),
		session.WithArchiveTimeout(cfg.Archive.Timeout),
	}
	if len(recorders) > 0 {
		opts = append(opts, session.WithRecorder(recorders))
	}
	app.session = session.NewCoordinator(app.registry, opts...)

	// STEP 5: Router validates frames and applies the per-connection rate limit
	app.limiter = router.NewRateLimiter(cfg.WebSocket.RateLimit, time.Minute)
	messageRouter := router.NewRouter(app.session, app.limiter, logger.With("component", "router"))

	// STEP 6: Hub serializes connection events, frames and timer expiries
	app.messageHub = hub.NewHub(messageRouter, app.session, cfg.WebSocket.QueueSize, logger.With("component", "hub"))
	app.session.SetExpiryQueue(app.messageHub.Expire)

	// STEP 7: WebSocket handler feeds the hub
	wsHandler := websocket.NewHandler(app.registry, app.messageHub, websocket.Settings{
		BufferSize:      cfg.WebSocket.BufferSize,
		WriteTimeout:    cfg.WebSocket.WriteTimeout,
		ReadTimeout:     cfg.WebSocket.ReadTimeout,
		PingInterval:    cfg.WebSocket.PingInterval,
		MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
	}, logger.With("component", "websocket"))

	// STEP 8: HTTP API with the websocket endpoints mounted
	apiOpts := []api.Option{
		api.WithLogger(logger.With("component", "api")),
		api.WithWebSocket(wsHandler),
	}
	if app.store != nil {
		apiOpts = append(apiOpts, api.WithArchive(app.store, database.ErrPollNotFound))
	}
	if app.feed != nil {
		apiOpts = append(apiOpts, api.WithFeed(app.feed))
	}
	apiServer := api.NewServer(app.session, app.registry, apiOpts...)

	app.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return app, nil
}

// Start begins application execution
// Startup coordination ensures all components ready before serving
// Hub starts first to handle messages, then HTTP server accepts connections
func (app *Application) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.serve(ctx, ln)
}

func (app *Application) serve(ctx context.Context, ln net.Listener) error {
	// STEP 1: Session goes live
	app.session.Start()

	// STEP 2: Start message hub (background message processing)
	if err := app.messageHub.Start(ctx); err != nil {
		app.session.Stop()
		_ = ln.Close()
		return fmt.Errorf("failed to start message hub: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	app.mu.Lock()
	app.listener = ln
	app.cancel = cancel
	app.mu.Unlock()

	// STEP 3: Periodically drop rate limit state for idle connections
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		ticker := time.NewTicker(rateLimitCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				app.limiter.Cleanup()
			case <-runCtx.Done():
				return
			}
		}
	}()

	// STEP 4: Start HTTP server (accepts connections)
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		if err := app.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("HTTP server error", "error", err)
		}
	}()

	app.logger.Info("pollcast started", "addr", ln.Addr().String())
	return nil
}

// Stop gracefully shuts down the application
// Shutdown coordination ensures proper resource cleanup
// Reverse dependency order: HTTP → WebSockets → Hub → Session → Storage
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("shutting down pollcast")
	var errs []error

	// STEP 1: Stop accepting new connections
	if err := app.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	// STEP 2: Hijacked websocket connections are not covered by Shutdown
	app.registry.CloseAll()

	// STEP 3: Stop message processing
	if err := app.messageHub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}

	// STEP 4: Cancel pending expiry and flush in-flight archive writes
	app.session.Stop()

	app.mu.Lock()
	if app.cancel != nil {
		app.cancel()
	}
	app.mu.Unlock()
	app.wg.Wait()

	// STEP 5: Close storage connections
	if err := app.closeStorage(); err != nil {
		errs = append(errs, err)
	}

	app.logger.Info("pollcast shutdown complete")
	return errors.Join(errs...)
}

func (app *Application) closeStorage() error {
	var errs []error
	if app.feed != nil {
		if err := app.feed.Close(); err != nil {
			errs = append(errs, fmt.Errorf("feed close: %w", err))
		}
	}
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("archive close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Addr returns the bound listener address, or the configured one before Start
func (app *Application) Addr() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}
