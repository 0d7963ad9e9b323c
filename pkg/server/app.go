package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ArbPull/internal/domain/repository"
	"ArbPull/internal/handler/api"
	"ArbPull/internal/handler/ws"
	"ArbPull/internal/usecase"
	pkgcache "ArbPull/pkg/cache"
	"ArbPull/pkg/config"
	xhttp "ArbPull/pkg/http"
	applogger "ArbPull/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	cache      pkgcache.Service
	dispatcher *usecase.Dispatcher
	scanner    *usecase.Scanner
	hub        *ws.Hub
	publisher  repository.Publisher
	apiHandler *api.ArbitrageHandler
	wsHandler  *ws.Handler
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	cacheSvc pkgcache.Service,
	dispatcher *usecase.Dispatcher,
	scanner *usecase.Scanner,
	hub *ws.Hub,
	publisher repository.Publisher,
	apiHandler *api.ArbitrageHandler,
	wsHandler *ws.Handler,
) *App {
	return &App{
		cfg:        cfg,
		logger:     logger,
		cache:      cacheSvc,
		dispatcher: dispatcher,
		scanner:    scanner,
		hub:        hub,
		publisher:  publisher,
		apiHandler: apiHandler,
		wsHandler:  wsHandler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.dispatcher.Start()

	go a.hub.Run(ctx)

	go a.scanner.RunLoop(ctx)
	if a.cfg.Scan.Interval > 0 {
		a.logger.Info("scheduled scanning enabled",
			applogger.Duration("interval", a.cfg.Scan.Interval),
			applogger.Strings("sports", a.cfg.Sports),
		)
	}

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(
		[]xhttp.Handler{a.apiHandler, a.wsHandler},
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops components in reverse dependency order: stop taking
// requests, drain compute, then close outbound connections.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	a.dispatcher.Stop()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("publisher close error", applogger.Error(err))
		}
	}

	if err := a.cache.Close(); err != nil {
		a.logger.Warn("cache close error", applogger.Error(err))
	}

	a.logger.Info("shutdown complete")
	return nil
}
