package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"PlanSentry/internal/usecase"
	"PlanSentry/pkg/config"
	xhttp "PlanSentry/pkg/http"
	pkgkafka "PlanSentry/pkg/kafka"
	applogger "PlanSentry/pkg/logger"
)

type namedCloser struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	engine     *usecase.ConditionEngine
	scheduler  *usecase.RefreshScheduler
	persister  *usecase.SnapshotPersister
	httpServer *xhttp.Server

	collector *usecase.BarCollector
	consumer  *pkgkafka.Consumer
	commands  pkgkafka.MessageHandler
	closers   []namedCloser
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.ConditionEngine,
	scheduler *usecase.RefreshScheduler,
	persister *usecase.SnapshotPersister,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:        cfg,
		log:        log.With(applogger.String("component", "app")),
		engine:     engine,
		scheduler:  scheduler,
		persister:  persister,
		httpServer: httpServer,
	}
}

// SetCollector enables the live bar stream.
func (a *App) SetCollector(c *usecase.BarCollector) { a.collector = c }

// SetConsumer enables the plan command topic.
func (a *App) SetConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer, a.commands = c, h
}

// OnShutdown registers a client to close after every loop has stopped.
// Closers run in reverse registration order.
func (a *App) OnShutdown(name string, c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, namedCloser{name: name, c: c})
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every loop and blocks until ctx is done, then shuts down.
func (a *App) RunContext(ctx context.Context) error {
	watched := a.engine.WatchedSymbols(a.cfg.Refresh.Symbols)
	restored := a.persister.Restore(ctx, watched)
	a.log.Info("bar windows restored",
		applogger.Int("restored", restored),
		applogger.Int("symbols", len(watched)),
	)

	loops, lctx := errgroup.WithContext(ctx)
	loops.Go(func() error { return a.scheduler.Run(lctx) })
	loops.Go(func() error { return a.engine.Run(lctx) })
	loops.Go(func() error { return a.persister.Run(lctx) })
	a.log.Info("engine started",
		applogger.Duration("cycle", a.cfg.Engine.CycleInterval),
		applogger.String("refresh", a.scheduler.String()),
	)

	if a.collector != nil {
		if err := a.collector.Start(lctx); err != nil {
			a.log.Warn("bar stream unavailable, polling only", applogger.Error(err))
		} else {
			a.log.Info("bar stream started", applogger.Strings("symbols", a.cfg.Stream.Symbols))
		}
	}

	if a.consumer != nil && a.commands != nil {
		a.consumer.RegisterHandler(a.commands)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
		} else {
			a.log.Info("plan commands subscribed", applogger.String("topic", a.commands.Topic()))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-lctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown(ctx, loops)
}

// shutdown stops intake first, lets the current engine cycle finish, then
// closes infrastructure clients.
func (a *App) shutdown(ctx context.Context, loops *errgroup.Group) error {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(sctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(sctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.collector != nil {
		if err := a.collector.Shutdown(sctx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}

	loopErr := loops.Wait()
	if loopErr != nil {
		a.log.Warn("loop exited with error", applogger.Error(loopErr))
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		nc := a.closers[i]
		if err := nc.c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("client", nc.name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return loopErr
}
