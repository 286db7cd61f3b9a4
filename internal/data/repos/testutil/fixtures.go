package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

func SeedVault(tb testing.TB, ctx context.Context, tx *gorm.DB, symbol string) *types.Vault {
	tb.Helper()
	now := time.Now().UTC()
	v := &types.Vault{
		ID:                uuid.New(),
		Name:              "Test Vault " + symbol,
		Symbol:            symbol,
		PrincipalAsset:    "DAI",
		DistributionAsset: "WETH",
		HarvesterID:       "harvester",
		GovernanceID:      "governance",
		TotalShares:       types.Zero,
		TotalPrincipal:    types.Zero,
		TotalUnclaimed:    types.Zero,
		DistributionDust:  types.Zero,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed vault: %v", err)
	}
	return v
}

func SeedStrategy(tb testing.TB, ctx context.Context, tx *gorm.DB, vaultID uuid.UUID, source string) *types.Strategy {
	tb.Helper()
	now := time.Now().UTC()
	s := &types.Strategy{
		ID:        uuid.New(),
		VaultID:   vaultID,
		Kind:      "lending",
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed strategy: %v", err)
	}
	return s
}
