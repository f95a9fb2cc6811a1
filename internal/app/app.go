package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"twpulse/internal/analytics"
	"twpulse/internal/cache"
	"twpulse/internal/config"
	apperrors "twpulse/internal/errors"
	"twpulse/internal/infrastructure"
	"twpulse/internal/market"
	custommw "twpulse/internal/middleware"
	"twpulse/internal/pipeline"
	"twpulse/internal/services"
	handlers "twpulse/internal/transport/http"
	ws "twpulse/internal/websocket"
)

const (
	Version = "1.0.0"
	AppName = "TW Pulse - Taiwan Weighted Stocks Dashboard"
)

// Application is the composition root. It owns the configuration, the
// shared collaborators and the HTTP server, and wires them together.
type Application struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *infrastructure.Metrics
	Router  *chi.Mux
	Server  *http.Server

	Hub     *ws.Hub
	Service *services.DashboardService

	frontendFS fs.FS
	hubCancel  context.CancelFunc
}

// NewApplication builds the application from configuration. frontendFS
// serves the dashboard page at the root path and may be nil in tests.
func NewApplication(frontendFS fs.FS) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", Version))

	app := &Application{
		Config:     cfg,
		Logger:     logger,
		Metrics:    infrastructure.NewMetrics(),
		frontendFS: frontendFS,
	}

	if err := app.initializeServices(); err != nil {
		return nil, err
	}
	app.setupRouter()
	app.createServer()

	return app, nil
}

func (a *Application) initializeServices() error {
	cfg := a.Config

	start, err := cfg.StartTime()
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}

	universe := make([]market.Security, len(cfg.Market.Universe))
	for i, sec := range cfg.Market.Universe {
		universe[i] = market.Security{Symbol: sec.Symbol, Label: sec.Label}
	}

	plan := pipeline.GapPlan{}
	for _, gap := range cfg.Pipeline.Gaps {
		plan[gap.Symbol] = append(plan[gap.Symbol], pipeline.GapRange{Start: gap.Start, End: gap.End})
	}
	engine, err := pipeline.NewEngine(plan, a.Logger)
	if err != nil {
		return fmt.Errorf("invalid gap plan: %w", err)
	}

	client := market.NewClient(market.ClientOptions{
		Endpoint:       cfg.Market.Endpoint,
		RequestTimeout: cfg.Market.RequestTimeout,
		RateLimitRPS:   cfg.Market.RateLimitRPS,
		RateBurst:      cfg.Market.RateBurst,
		MaxConcurrent:  cfg.Market.MaxConcurrent,
	}, a.Logger)

	matrixCache := cache.New(cfg.Cache.TTL, a.Logger,
		cache.WithCounters(a.Metrics.CacheHitsTotal, a.Metrics.CacheMissesTotal))

	a.Hub = ws.NewHub(a.Logger)

	a.Service = services.NewDashboardService(services.DashboardServiceOptions{
		Source:              client,
		Cache:               matrixCache,
		Engine:              engine,
		Analyzer:            analytics.NewAnalyzer(a.Logger),
		Hub:                 a.Hub,
		Metrics:             a.Metrics,
		Universe:            universe,
		Start:               start,
		MovingAverageWindow: cfg.Pipeline.MovingAverageWindow,
	}, a.Logger)

	return nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(custommw.StructuredLogger(a.Logger))
	r.Use(custommw.Recoverer(a.Logger))

	errorHandler := apperrors.NewErrorHandler(a.Logger)
	dashboardHandler := handlers.NewDashboardHandler(a.Service, a.Logger, errorHandler)
	healthHandler := handlers.NewHealthHandler(a.Logger, Version)

	r.Route("/api", func(r chi.Router) {
		r.Use(custommw.Metrics(a.Metrics))
		r.Use(custommw.Timeout(a.Config.Server.ReadTimeout, a.Logger))
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Mount("/", dashboardHandler.Routes())
	})

	r.Get("/healthz", healthHandler.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.Metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/ws", a.handleWebSocket)

	a.setupFrontend(r)

	a.Router = r
}

func (a *Application) setupFrontend(r chi.Router) {
	if a.frontendFS == nil {
		return
	}
	fileServer := http.FileServer(http.FS(a.frontendFS))
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		req.URL.Path = "/"
		fileServer.ServeHTTP(w, req)
	})
	r.Get("/static/*", fileServer.ServeHTTP)
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := ws.ServeWS(a.Hub, w, r); err != nil {
		a.Logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr))
	}
}

// Start launches the hub and the HTTP server. A server failure cancels
// the supplied context so Run can unwind.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting server",
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	hubCtx, hubCancel := context.WithCancel(context.Background())
	a.hubCancel = hubCancel
	go a.Hub.Run(hubCtx)

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully shuts down the server and the websocket hub.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.Hub.Shutdown()
	if a.hubCancel != nil {
		a.hubCancel()
	}
	infrastructure.CloseLogFile()

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run starts the application and blocks until an interrupt arrives or
// the server fails.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "received interrupt signal")
	case <-ctx.Done():
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	return a.Stop(stopCtx)
}
