package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/yieldvault-backend/internal/asset"
	"github.com/yungbote/yieldvault-backend/internal/data/db"
	"github.com/yungbote/yieldvault-backend/internal/data/repos"
	"github.com/yungbote/yieldvault-backend/internal/events"
	apphttp "github.com/yungbote/yieldvault-backend/internal/http"
	"github.com/yungbote/yieldvault-backend/internal/observability"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
	"github.com/yungbote/yieldvault-backend/internal/temporalx/temporalworker"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *gorm.DB
	Repos    repos.Repos
	Assets   *asset.Registry
	Metrics  *observability.Metrics
	Clients  Clients
	Services Services
	Server   *apphttp.Server

	dbs          *db.DatabaseService
	otelShutdown func(context.Context) error
}

func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{Log: log, Cfg: cfg}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	log, cfg := a.Log, a.Cfg

	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel)
	a.Metrics = observability.Init(log, cfg.MetricsEnabled, cfg.MetricsScrapeInterval)

	dbs, err := db.NewDatabaseService(cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	a.dbs, a.DB = dbs, dbs.DB()
	if cfg.AutoMigrate {
		if err := db.AutoMigrateAll(a.DB); err != nil {
			return fmt.Errorf("automigrate: %w", err)
		}
	}

	log.Info("Wiring repos...")
	a.Repos = repos.New(a.DB, log)
	a.Assets = wireAssets(a.DB, log, cfg)

	if a.Clients, err = wireClients(ctx, log, cfg, a.Assets); err != nil {
		return err
	}
	if a.Services, err = wireServices(a.DB, log, cfg, a.Repos, a.Assets, a.Clients, a.Metrics); err != nil {
		return err
	}

	handlers := wireHandlers(log, a.DB, a.Clients, a.Services)
	a.Server = wireServer(log, cfg, a.Metrics, handlers, wireMiddleware(log, a.Services))
	return nil
}

// Run serves HTTP and, when Temporal is configured, the harvest worker until
// ctx is cancelled or either fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	// undo operations a previous process left between custody moves and commit
	rep, err := a.Services.Vaults.Recover(ctx, 0)
	if err != nil {
		return fmt.Errorf("recover vault operations: %w", err)
	}
	for _, id := range rep.NeedsOperator {
		a.Log.Error("vault operation needs operator attention", "saga_id", id.String())
	}

	g, gctx := errgroup.WithContext(ctx)

	a.Metrics.StartPostgresCollector(gctx, a.Log, a.DB)
	a.Metrics.StartRedisCollector(gctx, a.Log, a.Cfg.RedisAddr)

	if err := a.Clients.Events.StartForwarder(gctx, a.logEvent); err != nil {
		a.Log.Warn("event forwarder not started", "error", err)
	}

	g.Go(func() error {
		a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTPAddr)
		return a.Server.Run(gctx, a.Cfg.HTTPAddr, a.Cfg.ShutdownGrace)
	})

	if a.Clients.Temporal != nil {
		runner, err := temporalworker.NewRunner(a.Log, a.Clients.Temporal, a.Cfg.Temporal, a.HarvestActivities())
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := runner.Start(gctx); err != nil {
				return fmt.Errorf("temporal worker: %w", err)
			}
			<-gctx.Done()
			return nil
		})
		if a.Cfg.Harvest.AutoSchedule && a.Cfg.Harvest.Interval > 0 {
			g.Go(func() error {
				a.scheduleHarvests(gctx)
				return nil
			})
		}
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) logEvent(ev events.Event) {
	a.Log.Info("vault event",
		"kind", ev.Kind,
		"vault_id", ev.VaultID.String(),
		"version", ev.Version,
		"actor_id", ev.ActorID,
		"depositor_id", ev.DepositorID,
		"amount", ev.Amount,
	)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.dbs != nil {
		_ = a.dbs.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
