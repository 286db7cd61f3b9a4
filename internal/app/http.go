package app

import (
	"context"

	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	apphttp "github.com/yungbote/yieldvault-backend/internal/http"
	httpH "github.com/yungbote/yieldvault-backend/internal/http/handlers"
	httpMW "github.com/yungbote/yieldvault-backend/internal/http/middleware"
	"github.com/yungbote/yieldvault-backend/internal/observability"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health  *httpH.HealthHandler
	Vault   *httpH.VaultHandler
	Harvest *httpH.HarvestHandler
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Tokens),
	}
}

func wireHandlers(log *logger.Logger, db *gorm.DB, clients Clients, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:  httpH.NewHealthHandler(readinessChecks(db, clients.Temporal)),
		Vault:   httpH.NewVaultHandler(services.Vaults),
		Harvest: httpH.NewHarvestHandler(services.Harvester, services.Vaults),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *apphttp.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    serviceName,
		CORSOrigins:    cfg.CORSOrigins,
		AuthMiddleware: middleware.Auth,
		VaultHandler:   handlers.Vault,
		HarvestHandler: handlers.Harvest,
		HealthHandler:  handlers.Health,
	})
}

func readinessChecks(db *gorm.DB, tc temporalsdkclient.Client) map[string]httpH.Check {
	checks := map[string]httpH.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if tc != nil {
		checks["temporal"] = func(ctx context.Context) error {
			_, err := tc.CheckHealth(ctx, &temporalsdkclient.CheckHealthRequest{})
			return err
		}
	}
	return checks
}
