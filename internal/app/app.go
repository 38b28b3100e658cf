// Package app wires the dashboard components together and supervises the
// background workers.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"callpulse/config"
	"callpulse/internal/assistant"
	"callpulse/internal/auth"
	"callpulse/internal/dataset"
	"callpulse/internal/diagnostics"
	"callpulse/internal/events"
	"callpulse/internal/httpapi"
	"callpulse/internal/navigation"
	"callpulse/internal/registry"
	"callpulse/internal/session"
	"callpulse/internal/store"
	"callpulse/internal/watch"
	"callpulse/metrics"
	"callpulse/queue"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

// App holds the long-lived components of the service.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	bundle   dataset.Bundle
	registry *registry.Registry
	store    *store.Store
	bus      *events.Bus
	metrics  *metrics.Metrics
	queue    *queue.Queue
	sessions *session.Manager
	watcher  *watch.Watcher
	sink     *diagnostics.Sink
	mux      *http.ServeMux
}

// LoadDataset reads the review dataset named by cfg and builds its registry.
// Inconsistent counters and locations without review content are logged, not
// rejected.
func LoadDataset(cfg config.Config, logger *zap.Logger) (dataset.Bundle, *registry.Registry, error) {
	bundle, err := dataset.Load(cfg.DataPath)
	if err != nil {
		return bundle, nil, err
	}
	reg, err := bundle.Registry()
	if err != nil {
		return bundle, nil, fmt.Errorf("build registry: %w", err)
	}
	for _, id := range reg.Inconsistencies() {
		loc, _ := reg.Lookup(id)
		logger.Warn("location counters exceed inbound total",
			zap.String("location", id),
			zap.Int("inbound", loc.InboundCalls),
			zap.Int("subcategories", loc.SubcategoryTotal()),
		)
	}
	for _, id := range bundle.MissingDetails() {
		logger.Warn("location has no review content", zap.String("location", id))
	}
	return bundle, reg, nil
}

func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	bundle, reg, err := LoadDataset(cfg, logger)
	if err != nil {
		return nil, err
	}
	asst, err := assistant.New(bundle.Overview)
	if err != nil {
		return nil, fmt.Errorf("assistant: %w", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	seeded, err := st.SeedIfEmpty(context.Background(), bundle)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("seed store: %w", err)
	}
	if seeded {
		logger.Info("review store seeded", zap.Int("calls", len(bundle.Calls)))
	}

	bus := events.NewBus()
	m := metrics.New()
	q := queue.New(cfg.JobQueueSize, cfg.WorkerCount, cfg.JobTimeout(), logger)
	sessions := session.NewManager(reg, asst, bus, m, logger, session.Options{
		TTL:    cfg.SessionTTL(),
		Chrome: navigation.Chrome{DarkMode: cfg.DarkMode},
	})
	importer := watch.NewImporter(st, bus, logger)
	watcher := watch.New(watch.Options{Dir: cfg.ImportDir, Enabled: cfg.EnableWatcher}, q, watch.FromImporter(importer), m, logger)

	router := httpapi.NewRouter(httpapi.Deps{
		Bundle:    bundle,
		Registry:  reg,
		Store:     st,
		Sessions:  sessions,
		Auth:      auth.New(auth.Account(cfg.Auth)),
		Assistant: asst,
		Queue:     q,
		Metrics:   m,
		Bus:       bus,
		Logger:    logger,
	})
	mux := http.NewServeMux()
	router.Register(mux)

	return &App{
		cfg:      cfg,
		logger:   logger,
		bundle:   bundle,
		registry: reg,
		store:    st,
		bus:      bus,
		metrics:  m,
		queue:    q,
		sessions: sessions,
		watcher:  watcher,
		sink:     diagnostics.NewSink(st, logger),
		mux:      mux,
	}, nil
}

// Run starts workers, watcher, sweeper, diagnostics sink, and HTTP server.
// It returns when ctx is cancelled or any of them fails.
func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	g, ctx := errgroup.WithContext(ctx)

	a.queue.Start(ctx)
	stats := a.queue.Stats()
	a.metrics.UpdateQueue(stats.Length, stats.Capacity, stats.Workers)

	diag := a.bus.Subscribe(256)
	g.Go(func() error { return a.sink.Run(ctx, diag) })
	g.Go(func() error { return a.sessions.Run(ctx, sweepInterval) })
	g.Go(func() error {
		if a.cfg.EnableWatcher {
			if _, err := a.watcher.Backfill(ctx); err != nil {
				a.logger.Warn("backfill failed", zap.Error(err))
			}
		}
		return a.watcher.Run(ctx)
	})

	srv := &http.Server{Addr: a.cfg.HTTPPort, Handler: a.mux, ReadHeaderTimeout: 10 * time.Second}
	g.Go(func() error {
		a.logger.Info("http listening", zap.String("addr", a.cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if qerr := a.queue.Stop(shutdownCtx); qerr != nil {
			a.logger.Warn("import queue not drained", zap.Error(qerr))
		}
		a.bus.Close()
		return err
	})

	err := g.Wait()
	a.logger.Info("shutdown complete", zap.Any("metrics", a.metrics.Snapshot()))
	return err
}

func (a *App) Handler() http.Handler        { return a.mux }
func (a *App) Store() *store.Store          { return a.store }
func (a *App) Registry() *registry.Registry { return a.registry }
func (a *App) Sessions() *session.Manager   { return a.sessions }
