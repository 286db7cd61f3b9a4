package app

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/yieldvault-backend/internal/access"
	"github.com/yungbote/yieldvault-backend/internal/asset"
	dataagg "github.com/yungbote/yieldvault-backend/internal/data/aggregates"
	"github.com/yungbote/yieldvault-backend/internal/data/repos"
	"github.com/yungbote/yieldvault-backend/internal/harvester"
	"github.com/yungbote/yieldvault-backend/internal/observability"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
	"github.com/yungbote/yieldvault-backend/internal/strategy"
	"github.com/yungbote/yieldvault-backend/internal/strategy/lending"
	"github.com/yungbote/yieldvault-backend/internal/strategy/memvenue"
	"github.com/yungbote/yieldvault-backend/internal/vault"
)

type Services struct {
	Strategies *strategy.Registry
	Venues     map[string]lending.Venue
	Vaults     *vault.Manager
	Harvester  harvester.Service
	Tokens     *access.Tokens
}

// wireAssets registers one database-backed custody token per configured symbol.
func wireAssets(db *gorm.DB, log *logger.Logger, cfg Config) *asset.Registry {
	reg := asset.NewRegistry()
	for _, sym := range cfg.Assets {
		if sym = strings.TrimSpace(sym); sym != "" {
			reg.Register(asset.NewLedgerToken(db, sym, log))
		}
	}
	return reg
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, rp repos.Repos, assets *asset.Registry, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	tokens, err := access.NewTokens(cfg.JWTSecretKey, cfg.JWTIssuer, cfg.AccessTokenTTL)
	if err != nil {
		return Services{}, fmt.Errorf("init tokens: %w", err)
	}
	if cfg.JWTSecretKey == defaultJWTSecret {
		log.Warn("JWT_SECRET_KEY is the built-in default; set it outside local development")
	}

	principal, err := assets.Lookup(cfg.LendingAsset)
	if err != nil {
		return Services{}, fmt.Errorf("lending asset: %w", err)
	}
	venues := map[string]lending.Venue{}
	for _, name := range cfg.LendingVenues {
		if name = strings.TrimSpace(name); name != "" {
			venues[name] = memvenue.New(memvenue.Config{Name: name, Token: principal, RateBps: cfg.LendingRateBps})
		}
	}
	strategies := strategy.NewRegistry()
	strategies.Register(lending.Kind, lending.Factory(venues, log))

	vaults, err := vault.New(vault.Deps{
		Log:   log,
		Repos: rp,
		Ledger: dataagg.NewVaultLedgerAggregate(dataagg.BaseDeps{
			DB:    db,
			Log:   log,
			Repos: rp,
			Hooks: dataagg.NewObservabilityHooks(metrics),
		}),
		Saga: dataagg.NewSagaAggregate(dataagg.BaseDeps{
			DB:    db,
			Log:   log,
			Repos: rp,
			Hooks: dataagg.NewObservabilityHooks(metrics),
		}),
		Assets:     assets,
		Strategies: strategies,
		Admin:      access.NewRoleProvider(cfg.Admins...),
		Events:     clients.Events,
		Metrics:    metrics,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init vault manager: %w", err)
	}

	harvests := harvester.New(log, vaults, clients.Exchange, metrics, harvester.Config{
		ToleranceAbs: cfg.Harvest.ToleranceAbs,
		ToleranceBps: cfg.Harvest.ToleranceBps,
	})

	return Services{
		Strategies: strategies,
		Venues:     venues,
		Vaults:     vaults,
		Harvester:  harvests,
		Tokens:     tokens,
	}, nil
}
