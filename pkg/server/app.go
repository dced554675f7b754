package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mid "PulseScan/internal/middleware"
	"PulseScan/internal/usecase"
	"PulseScan/pkg/config"
	xhttp "PulseScan/pkg/http"
	pkgkafka "PulseScan/pkg/kafka"
	"PulseScan/pkg/logger"
)

// Closer releases one infrastructure client on shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// Closers are closed in order after every loop has stopped.
type Closers []Closer

// TickSource is where ticks enter the pipeline. Exactly one of the fields is set.
type TickSource struct {
	Collector *usecase.TickCollector
	Consumer  *pkgkafka.Consumer
	Handler   *usecase.KafkaTicksHandler
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg      *config.Config
	log      *logger.Logger
	scanner  *usecase.Scanner
	pipeline *mid.RealtimePipeline
	source   TickSource
	handler  xhttp.Handler
	closers  Closers

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *logger.Logger,
	scanner *usecase.Scanner,
	pipeline *mid.RealtimePipeline,
	source TickSource,
	handler xhttp.Handler,
	closers Closers,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		scanner:  scanner,
		pipeline: pipeline,
		source:   source,
		handler:  handler,
		closers:  closers,
	}
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.runUntil(sigCtx)
}

// runUntil serves until done is cancelled, then shuts down. The background
// loops run on a context detached from done so that Shutdown alone decides
// the stop order.
func (a *App) runUntil(done context.Context) error {
	if err := a.Start(context.Background()); err != nil {
		return err
	}

	<-done.Done()
	a.log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Start brings up the scanner, then the pipeline, then the tick source and
// finally the HTTP server. Cancelling ctx ends the background loops without
// ordering; use Shutdown for an ordered stop.
func (a *App) Start(ctx context.Context) error {
	if err := a.scanner.Start(ctx); err != nil {
		return fmt.Errorf("start scanner: %w", err)
	}
	a.pipeline.Start(ctx)

	switch {
	case a.source.Collector != nil:
		if err := a.source.Collector.Start(ctx); err != nil {
			return fmt.Errorf("start tick collector: %w", err)
		}
		a.log.Info("tick collector started", logger.String("url", a.cfg.Feed.URL))
	case a.source.Consumer != nil && a.source.Handler != nil:
		a.source.Consumer.RegisterHandler(a.source.Handler)
		if err := a.source.Consumer.Start(); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
		a.log.Info("kafka consumer started", logger.String("topic", a.source.Handler.Topic()))
	default:
		return errors.New("no tick source configured")
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout),
		xhttp.WithLogger(a.log),
	)
	return a.httpServer.Start()
}

// Shutdown stops intake first so no tick reaches a stopped scanner, then
// drains the scanner's detached work, then closes clients.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down")
	var errs []error

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if a.source.Collector != nil {
		if err := a.source.Collector.Shutdown(); err != nil {
			a.log.Warn("tick collector stop error", logger.Error(err))
		}
	}
	if a.source.Consumer != nil {
		if err := a.source.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", logger.Error(err))
		}
	}

	a.pipeline.Stop()

	if err := a.scanner.Stop(ctx); err != nil {
		a.log.Error("scanner stop error", logger.Error(err))
		errs = append(errs, err)
	}

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close error", logger.String("component", c.Name), logger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
