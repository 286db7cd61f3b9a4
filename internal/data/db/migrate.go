package db

import (
	"github.com/yungbote/yieldvault-backend/internal/asset"
	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// =========================
		// Vault accounting
		// =========================
		&vault.Vault{},
		&vault.Position{},
		&vault.Strategy{},
		&vault.Harvest{},
		&vault.LedgerEntry{},
		&vault.SagaRun{},
		&vault.SagaAction{},

		// =========================
		// Dev custody balances
		// =========================
		&asset.Balance{},
		&asset.AllowanceRow{},
	)
}
