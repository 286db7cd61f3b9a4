package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/yieldvault-backend/internal/data/repos/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
)

type VaultRepo = vault.VaultRepo
type PositionRepo = vault.PositionRepo
type StrategyRepo = vault.StrategyRepo
type HarvestRepo = vault.HarvestRepo
type LedgerEntryRepo = vault.LedgerEntryRepo
type SagaRunRepo = vault.SagaRunRepo
type SagaActionRepo = vault.SagaActionRepo

// Repos bundles every table repo over one database handle.
type Repos struct {
	Vaults    VaultRepo
	Positions PositionRepo
	Strategy  StrategyRepo
	Harvests  HarvestRepo
	Ledger    LedgerEntryRepo

	SagaRuns    SagaRunRepo
	SagaActions SagaActionRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Vaults:    vault.NewVaultRepo(db, log),
		Positions: vault.NewPositionRepo(db, log),
		Strategy:  vault.NewStrategyRepo(db, log),
		Harvests:  vault.NewHarvestRepo(db, log),
		Ledger:    vault.NewLedgerEntryRepo(db, log),

		SagaRuns:    vault.NewSagaRunRepo(db, log),
		SagaActions: vault.NewSagaActionRepo(db, log),
	}
}
