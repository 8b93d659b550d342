// Package server builds the application graph and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/guide-quotes/internal/api"
	"github.com/JakeFAU/guide-quotes/internal/clock/system"
	"github.com/JakeFAU/guide-quotes/internal/config"
	"github.com/JakeFAU/guide-quotes/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/guide-quotes/internal/fetcher/colly"
	"github.com/JakeFAU/guide-quotes/internal/harvest"
	"github.com/JakeFAU/guide-quotes/internal/id/uuid"
	"github.com/JakeFAU/guide-quotes/internal/logging"
	"github.com/JakeFAU/guide-quotes/internal/policy/ratelimit"
	gcppublisher "github.com/JakeFAU/guide-quotes/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/guide-quotes/internal/queue/memory"
	"github.com/JakeFAU/guide-quotes/internal/scrape"
	memoryStorage "github.com/JakeFAU/guide-quotes/internal/storage/memory"
	pgstore "github.com/JakeFAU/guide-quotes/internal/storage/postgres"
	sqlitestore "github.com/JakeFAU/guide-quotes/internal/storage/sqlite"
	"github.com/JakeFAU/guide-quotes/internal/telemetry"
	"github.com/JakeFAU/guide-quotes/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg            *config.Config
	logger         *zap.Logger
	store          harvest.Store
	runs           *memoryStorage.RunStore
	pipeline       *harvest.Pipeline
	queue          *queueMemory.Queue
	dispatch       *dispatcher.Dispatcher
	apiServer      *api.Server
	pubsub         *gcppublisher.Publisher
	tracerShutdown func(context.Context) error
	closeOnce      sync.Once
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app := &App{cfg: cfg, logger: logger}
	if err := app.build(ctx); err != nil {
		app.Close(ctx)
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg
	a.logger.Info("building application dependencies",
		zap.String("toc_url", cfg.Source.TOCURL),
		zap.String("store_driver", cfg.Store.Driver),
		zap.Int("workers", cfg.Harvest.Workers),
	)

	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, cfg.Tracing.ServiceName)
		if err != nil {
			return fmt.Errorf("tracer init failed: %w", err)
		}
		a.tracerShutdown = tp.Shutdown
	}

	if err := a.setupStore(ctx); err != nil {
		return err
	}
	publisher, err := a.setupPublisher(ctx)
	if err != nil {
		return err
	}

	var fetcher harvest.Fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Source.UserAgent,
		RespectRobots: cfg.Source.RespectRobots,
		Timeout:       cfg.FetchTimeout(),
	})
	if cfg.FetchTimeout() == 0 {
		a.logger.Warn("page fetches have no timeout; set http.timeout_seconds to bound them")
	}
	if cfg.HTTP.RequestsPerSecond > 0 {
		fetcher = ratelimit.NewFetcher(fetcher, ratelimit.New(ratelimit.Config{
			RPS:   cfg.HTTP.RequestsPerSecond,
			Burst: cfg.HTTP.Burst,
		}))
	}
	collector := scrape.NewCollector(fetcher, scrape.CollectorConfig{
		TOCURL: cfg.Source.TOCURL,
		Region: cfg.Source.TOCRegion,
	}, a.logger.Named("scrape"))
	extractor := scrape.NewExtractor(fetcher, scrape.ExtractorConfig{
		Region:   cfg.Source.ContentRegion,
		Selector: cfg.Source.ExcerptSelector,
	}, a.logger.Named("scrape"))

	a.pipeline = harvest.NewPipeline(collector, extractor, a.store, publisher, harvest.PipelineConfig{
		Retry: cfg.RetryPolicy(),
		Topic: cfg.PubSub.TopicName,
	}, a.logger.Named("pipeline"))

	clock := system.New()
	a.runs = memoryStorage.NewRunStore(clock)
	a.queue = queueMemory.NewQueue(cfg.Harvest.QueueDepth)
	workers := make([]*worker.Worker, 0, cfg.Harvest.Workers)
	for i := 0; i < cfg.Harvest.Workers; i++ {
		workers = append(workers, worker.New(a.queue, a.runs, a.pipeline,
			a.logger.Named("worker").With(zap.Int("index", i))))
	}
	a.dispatch = dispatcher.New(a.queue, workers)

	a.apiServer = api.NewServer(a.store, a.runs, a.dispatch, uuid.New(), clock, a.logger.Named("api"))
	return nil
}

func (a *App) setupStore(ctx context.Context) error {
	var err error
	switch a.cfg.Store.Driver {
	case config.DriverPostgres:
		a.store, err = pgstore.Open(ctx, pgstore.Config{
			DSN:      a.cfg.Store.DSN,
			Table:    a.cfg.Store.Table,
			MaxConns: int32(a.cfg.Store.MaxConns), //nolint:gosec // validated small config value
		})
		if err != nil {
			return fmt.Errorf("postgres store init failed: %w", err)
		}
		a.logger.Info("using postgres chapter store", zap.String("table", a.cfg.Store.Table))
	case config.DriverMemory:
		a.store = memoryStorage.NewChapterStore()
		a.logger.Warn("using in-memory chapter store; records are lost on exit")
	default:
		a.store, err = sqlitestore.Open(ctx, sqlitestore.Config{
			Path:         a.cfg.Store.Path,
			BusyTimeout:  a.cfg.BusyTimeout(),
			MaxOpenConns: a.cfg.Store.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("sqlite store init failed: %w", err)
		}
		a.logger.Info("using sqlite chapter store",
			zap.String("path", a.cfg.Store.Path),
			zap.Duration("busy_timeout", a.cfg.BusyTimeout()),
		)
	}
	return nil
}

func (a *App) setupPublisher(ctx context.Context) (harvest.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Debug("no Pub/Sub topic configured, chapter notifications disabled")
		return nil, nil
	}
	pub, err := gcppublisher.Dial(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.pubsub = pub
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return pub, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store returns the chapter store.
func (a *App) Store() harvest.Store {
	return a.store
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Harvest runs one harvest synchronously.
func (a *App) Harvest(ctx context.Context) (harvest.Summary, error) {
	summary, err := a.pipeline.Run(ctx)
	if err != nil {
		return summary, fmt.Errorf("harvest: %w", err)
	}
	return summary, nil
}

// Run serves HTTP and runs the worker pool until the context is canceled or
// SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		a.logger.Info("dispatcher started", zap.Int("workers", a.cfg.Harvest.Workers))
		a.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	select {
	case <-dispatched:
	case <-shutdownCtx.Done():
		a.logger.Warn("workers did not stop before shutdown timeout")
	}
	a.Close(shutdownCtx)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases the store, publisher and tracer. It is safe to call more
// than once.
func (a *App) Close(ctx context.Context) {
	a.closeOnce.Do(func() { a.close(ctx) })
}

func (a *App) close(ctx context.Context) {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("chapter store close failed", zap.Error(err))
		}
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
