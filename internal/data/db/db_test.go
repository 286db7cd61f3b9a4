package db

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
)

func TestNewDatabaseServiceSqliteMigrates(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	svc, err := NewDatabaseService(dsn, logger.Nop())
	if err != nil {
		t.Fatalf("NewDatabaseService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	if svc.Dialect() != "sqlite" {
		t.Fatalf("dialect: want=sqlite got=%s", svc.Dialect())
	}
	if err := AutoMigrateAll(svc.DB()); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	for _, table := range []string{"vaults", "vault_positions", "vault_strategies", "vault_harvests", "vault_ledger_entries", "asset_balances", "asset_allowances"} {
		if !svc.DB().Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}
}

func TestNewDatabaseServiceRejectsEmptyDSN(t *testing.T) {
	if _, err := NewDatabaseService("  ", logger.Nop()); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}
