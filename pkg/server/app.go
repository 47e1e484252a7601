package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "FinFuse/internal/domain/repository"
	"FinFuse/internal/service/fusion"
	"FinFuse/internal/usecase"
	pkgch "FinFuse/pkg/clickhouse"
	"FinFuse/pkg/config"
	xhttp "FinFuse/pkg/http"
	pkgkafka "FinFuse/pkg/kafka"
	applogger "FinFuse/pkg/logger"
)

// App encapsulates the application lifecycle: HTTP gateway, optional
// streaming feed collector, optional Kafka ingestion, and the fusion
// sweeper.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	handler    xhttp.Handler
	fusion     *fusion.Store
	collector  *usecase.FeedCollector
	consumer   *pkgkafka.Consumer
	publisher  domrepo.BarPublisher
	chClient   *pkgch.Client
	httpServer *xhttp.Server
}

// New creates a new App instance. collector, consumer, publisher and
// chClient may be nil depending on configuration.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	fs *fusion.Store,
	collector *usecase.FeedCollector,
	consumer *pkgkafka.Consumer,
	publisher domrepo.BarPublisher,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		handler:   handler,
		fusion:    fs,
		collector: collector,
		consumer:  consumer,
		publisher: publisher,
		chClient:  chClient,
	}
}

// Run starts all configured components and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.l),
	)

	if a.cfg.Fusion.SweepInterval > 0 {
		go a.fusion.RunSweeper(ctx, a.cfg.Fusion.SweepInterval)
		a.l.Info("fusion sweeper started",
			applogger.Duration("interval_ms", a.cfg.Fusion.SweepInterval))
	}

	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				a.l.Error("feed collector error", applogger.Error(err))
			}
		}()
		a.l.Info("feed collector started")
	}

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started",
			applogger.String("bars_topic", a.cfg.Kafka.BarsTopic),
			applogger.String("news_topic", a.cfg.Kafka.NewsTopic),
		)
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown(context.Background())
}

func (a *App) shutdown(ctx context.Context) error {
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.l.Warn("feed collector stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.l.Warn("bar publisher close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
