// Command folio launches the multi-instrument strategy runner.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sourcegraph/conc"

	"github.com/coachpo/folio/internal/bus/eventbus"
	"github.com/coachpo/folio/internal/config"
	"github.com/coachpo/folio/internal/domain/strategystore"
	"github.com/coachpo/folio/internal/engine"
	"github.com/coachpo/folio/internal/gateway"
	"github.com/coachpo/folio/internal/infra/persistence/memory"
	"github.com/coachpo/folio/internal/infra/persistence/migrations"
	"github.com/coachpo/folio/internal/infra/persistence/postgres"
	"github.com/coachpo/folio/internal/market"
	"github.com/coachpo/folio/internal/market/datafeed"
	"github.com/coachpo/folio/internal/market/feed"
	"github.com/coachpo/folio/internal/strategy"
	"github.com/coachpo/folio/internal/strategy/strategies"
	"github.com/coachpo/folio/lib/telemetry"
)

const (
	defaultConfigPath        = "config/folio.yaml"
	initWaitTimeout          = 5 * time.Minute
	telemetryShutdownTimeout = 5 * time.Second
	lifecycleShutdownTimeout = 10 * time.Second
)

func main() {
	cfgPath := flag.String("config", "", "Path to application configuration file (default: "+defaultConfigPath+")")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(os.Stdout, "folio ", log.LstdFlags|log.Lmicroseconds)

	path := *cfgPath
	if path == "" {
		path = filepath.Clean(defaultConfigPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	logger.Printf("configuration loaded: contracts=%d strategies=%d", len(cfg.Contracts), len(cfg.Strategies))

	_, telemetryShutdown, err := telemetry.Init(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		logger.Fatalf("initialize telemetry: %v", err)
	}

	store, pool, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("initialize store: %v", err)
	}
	if pool != nil {
		defer pool.Close()
	}

	bus := eventbus.NewMemoryBus(eventbus.MemoryConfig{BufferSize: cfg.Eventbus.BufferSize})

	catalog := strategy.NewCatalog()
	strategies.RegisterAll(catalog)

	paper := gateway.NewPaper(cfg.Gateway.Name)

	var datafeedSource market.HistorySource
	if cfg.Datafeed.URL != "" {
		datafeedSource = datafeed.NewClient(cfg.Datafeed.URL, nil)
	}

	opts := engine.Options{
		Gateway:        gateway.NewLimited(paper, cfg.Gateway.RateLimit, cfg.Gateway.Burst),
		Contracts:      market.NewStaticCatalog(cfg.ContractList()),
		Bus:            bus,
		Logger:         logger,
		Datafeed:       datafeedSource,
		Store:          store,
		QueueSize:      cfg.Engine.QueueSize,
		TradeRetention: cfg.Engine.TradeRetention,
	}

	var feedClient *feed.Client
	if cfg.Feed.URL != "" {
		feedErrs := make(chan error, 8)
		go func() {
			for err := range feedErrs {
				logger.Printf("feed: %v", err)
			}
		}()
		feedClient = feed.NewClient(ctx, cfg.Feed.URL, nil, feedErrs)
		opts.Subscriber = feedClient
	}

	eng := engine.New(catalog, opts)
	paper.SetSink(eng)
	if feedClient != nil {
		feedClient.SetSink(eng)
		if err := feedClient.Start(); err != nil {
			logger.Fatalf("start feed: %v", err)
		}
	}

	var lifecycle conc.WaitGroup
	lifecycle.Go(func() { _ = eng.Run(ctx) })

	if err := eng.LoadRoster(ctx); err != nil {
		logger.Fatalf("load roster: %v", err)
	}
	for _, s := range cfg.Strategies {
		if _, exists := eng.Registry().Get(s.Name); exists {
			continue
		}
		if err := eng.AddStrategy(s.Class, s.Name, s.Instruments, s.Parameters); err != nil {
			logger.Printf("add strategy %s: %v", s.Name, err)
		}
	}

	eng.InitAll()
	lifecycle.Go(func() {
		if waitInitialized(ctx, eng) {
			eng.StartAll()
			logger.Print("all strategies started")
		}
	})

	logger.Print("folio started; awaiting shutdown signal")
	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	if feedClient != nil {
		feedClient.Stop()
	}
	eng.Close()
	cancel()
	waitWithTimeout(&lifecycle, lifecycleShutdownTimeout, logger)
	bus.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer shutdownCancel()
	if err := telemetryShutdown(shutdownCtx); err != nil {
		logger.Printf("telemetry shutdown: %v", err)
	}
	logger.Print("shutdown completed")
}

func buildStore(ctx context.Context, cfg config.Config, logger *log.Logger) (strategystore.Store, *pgxpool.Pool, error) {
	if cfg.Database.DSN == "" {
		logger.Print("no database configured, using in-memory store")
		return memory.NewStore(), nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := migrations.Apply(ctx, cfg.Database.DSN, logger); err != nil {
		pool.Close()
		return nil, nil, err
	}
	postgres.ObservePoolMetrics(pool, "primary")
	return postgres.NewStore(pool), pool, nil
}

func waitInitialized(ctx context.Context, eng *engine.Engine) bool {
	deadline := time.After(initWaitTimeout)
	for {
		ready := true
		for _, t := range eng.Registry().All() {
			if !t.Inited() {
				ready = false
				break
			}
		}
		if ready {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline:
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func waitWithTimeout(lifecycle *conc.WaitGroup, timeout time.Duration, logger *log.Logger) {
	done := make(chan struct{})
	go func() {
		lifecycle.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Print("timeout waiting for lifecycle goroutines")
	}
}
