package aggregates

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	repotestutil "github.com/yungbote/yieldvault-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/dbctx"
)

func newLedger(t *testing.T) (domainagg.VaultLedgerAggregate, BaseDeps, *spyHooks) {
	t.Helper()
	db := repotestutil.DB(t)
	hooks := &spyHooks{}
	deps := BaseDeps{DB: db, Log: repotestutil.Logger(t), Hooks: hooks}.withDefaults()
	return NewVaultLedgerAggregate(deps), deps, hooks
}

func sampleVault() vault.Vault {
	return vault.Vault{
		Name:              "Yield DAI",
		Symbol:            "yvDAI",
		PrincipalAsset:    "DAI",
		DistributionAsset: "WETH",
		HarvesterID:       "harvester",
		GovernanceID:      "governance",
	}
}

func TestVaultLedgerCreateVault(t *testing.T) {
	ledger, deps, _ := newLedger(t)
	ctx := context.Background()

	created, err := ledger.CreateVault(ctx, domainagg.CreateVaultInput{
		Vault:      sampleVault(),
		Strategies: []vault.Strategy{{Kind: "lending", Source: "idleDAI"}},
		ActorID:    "governance",
	})
	if err != nil {
		t.Fatalf("CreateVault: %v", err)
	}
	if created.ID == uuid.Nil || created.Version != 1 {
		t.Fatalf("unexpected vault: %+v", created)
	}
	strategies, err := deps.Repos.Strategy.ListByVault(dbctx.Context{Ctx: ctx}, created.ID)
	if err != nil || len(strategies) != 1 {
		t.Fatalf("strategies: got=%d err=%v", len(strategies), err)
	}

	_, err = ledger.CreateVault(ctx, domainagg.CreateVaultInput{Vault: sampleVault()})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("duplicate symbol: expected conflict, got=%v", err)
	}

	bad := sampleVault()
	bad.HarvesterID = ""
	_, err = ledger.CreateVault(ctx, domainagg.CreateVaultInput{Vault: bad})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("missing harvester: expected invalid_input, got=%v", err)
	}
}

func TestVaultLedgerCommitAppliesAbsoluteState(t *testing.T) {
	ledger, deps, hooks := newLedger(t)
	ctx := context.Background()

	v, err := ledger.CreateVault(ctx, domainagg.CreateVaultInput{Vault: sampleVault()})
	if err != nil {
		t.Fatalf("CreateVault: %v", err)
	}

	pos := vault.NewPosition(v.ID, "alice")
	pos.Shares = vault.NewAmount(1000)
	pos.Deposited = vault.NewAmount(1000)
	next := v
	next.TotalShares = vault.NewAmount(1000)
	next.TotalPrincipal = vault.NewAmount(1000)

	res, err := ledger.Commit(ctx, domainagg.VaultCommitInput{
		VaultID:         v.ID,
		ExpectedVersion: v.Version,
		ActorID:         "alice",
		Vault:           next,
		Positions:       []vault.Position{pos},
		Entries: []vault.LedgerEntry{{
			Kind:        vault.EntryDeposit,
			DepositorID: "alice",
			Amount:      vault.NewAmount(1000),
			Shares:      vault.NewAmount(1000),
		}},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if res.Version != 2 {
		t.Fatalf("version: want=2 got=%d", res.Version)
	}

	dbc := dbctx.Context{Ctx: ctx}
	stored, err := deps.Repos.Vaults.GetByID(dbc, v.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !stored.TotalShares.Equal(vault.NewAmount(1000)) || stored.Version != 2 {
		t.Fatalf("unexpected vault: %+v", stored)
	}
	entries, err := deps.Repos.Ledger.ListByVault(dbc, v.ID, 1, 10)
	if err != nil || len(entries) != 1 || entries[0].Version != 2 || entries[0].ActorID != "alice" {
		t.Fatalf("entries: got=%+v err=%v", entries, err)
	}

	// A second commit from the stale snapshot must not apply.
	_, err = ledger.Commit(ctx, domainagg.VaultCommitInput{
		VaultID:         v.ID,
		ExpectedVersion: v.Version,
		Vault:           v,
		Positions:       []vault.Position{vault.NewPosition(v.ID, "alice")},
	})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("stale commit: expected conflict, got=%v", err)
	}
	if len(hooks.Conflicts) != 1 || hooks.Conflicts[0] != "vault_ledger.commit" {
		t.Fatalf("conflict hooks: %+v", hooks.Conflicts)
	}
	got, err := deps.Repos.Positions.Get(dbc, v.ID, "alice")
	if err != nil || !got.Shares.Equal(vault.NewAmount(1000)) {
		t.Fatalf("position after stale commit: got=%+v err=%v", got, err)
	}
}

func TestVaultLedgerCommitRollsBackOnInjectedFailure(t *testing.T) {
	db := repotestutil.DB(t)
	ctx := context.Background()
	seed := repotestutil.SeedVault(t, ctx, db, "yvDAI")

	runner := &failingCommitRunner{err: errors.New("disk full")}
	ledger := NewVaultLedgerAggregate(BaseDeps{DB: db, Log: repotestutil.Logger(t), Runner: runner})

	_, err := ledger.Commit(ctx, domainagg.VaultCommitInput{
		VaultID:         seed.ID,
		ExpectedVersion: seed.Version,
		Vault:           *seed,
	})
	if !domainagg.IsCode(err, domainagg.CodeInternal) {
		t.Fatalf("expected internal error, got=%v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("runner calls: want=1 got=%d", runner.calls)
	}
}

func TestVaultLedgerRecordHarvestAttempt(t *testing.T) {
	ledger, deps, _ := newLedger(t)
	ctx := context.Background()
	v, err := ledger.CreateVault(ctx, domainagg.CreateVaultInput{Vault: sampleVault()})
	if err != nil {
		t.Fatalf("CreateVault: %v", err)
	}
	err = ledger.RecordHarvestAttempt(ctx, vault.Harvest{
		VaultID:       v.ID,
		HarvesterID:   "harvester",
		ExpectedYield: vault.NewAmount(10),
		ActualYield:   vault.NewAmount(10),
		MinProceeds:   vault.NewAmount(5),
		Proceeds:      vault.Zero,
		Status:        vault.HarvestStatusCompensated,
		Error:         "slippage",
	})
	if err != nil {
		t.Fatalf("RecordHarvestAttempt: %v", err)
	}
	rows, err := deps.Repos.Harvests.ListByStatus(dbctx.Context{Ctx: ctx}, v.ID, vault.HarvestStatusCompensated)
	if err != nil || len(rows) != 1 {
		t.Fatalf("harvest rows: got=%d err=%v", len(rows), err)
	}
	if err := ledger.RecordHarvestAttempt(ctx, vault.Harvest{}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation error, got=%v", err)
	}
}

type failingCommitRunner struct {
	err   error
	calls int
}

func (r *failingCommitRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.calls++
	return r.err
}
