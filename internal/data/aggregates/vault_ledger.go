package aggregates

import (
	"context"
	"strings"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/dbctx"
)

type vaultLedgerAggregate struct {
	deps BaseDeps
}

func NewVaultLedgerAggregate(deps BaseDeps) domainagg.VaultLedgerAggregate {
	return &vaultLedgerAggregate{deps: deps.withDefaults()}
}

func (a *vaultLedgerAggregate) CreateVault(ctx context.Context, in domainagg.CreateVaultInput) (vault.Vault, error) {
	const op = "vault_ledger.create_vault"
	row := in.Vault
	if strings.TrimSpace(row.Symbol) == "" || strings.TrimSpace(row.PrincipalAsset) == "" || strings.TrimSpace(row.DistributionAsset) == "" {
		return vault.Vault{}, MapError(op, ValidationError("symbol, principal asset and distribution asset are required"))
	}
	if strings.TrimSpace(row.HarvesterID) == "" || strings.TrimSpace(row.GovernanceID) == "" {
		return vault.Vault{}, MapError(op, ValidationError("harvester and governance identities are required"))
	}
	now := a.deps.Now()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.Version = 1
	row.TotalShares = vault.Zero
	row.TotalPrincipal = vault.Zero
	row.TotalUnclaimed = vault.Zero
	row.DistributionDust = vault.Zero
	row.CreatedAt, row.UpdatedAt = now, now

	err := executeWrite(ctx, a.deps, op, func(dbc dbctx.Context) error {
		if _, err := a.deps.Repos.Vaults.Create(dbc, []*vault.Vault{&row}); err != nil {
			return err
		}
		strategies := make([]*vault.Strategy, 0, len(in.Strategies))
		for i := range in.Strategies {
			s := in.Strategies[i]
			if s.ID == uuid.Nil {
				s.ID = uuid.New()
			}
			s.VaultID = row.ID
			s.CreatedAt, s.UpdatedAt = now, now
			strategies = append(strategies, &s)
		}
		if _, err := a.deps.Repos.Strategy.Create(dbc, strategies); err != nil {
			return err
		}
		_, err := a.deps.Repos.Ledger.Create(dbc, []*vault.LedgerEntry{{
			ID:        uuid.New(),
			VaultID:   row.ID,
			Version:   row.Version,
			Kind:      vault.EntryVaultCreated,
			ActorID:   in.ActorID,
			Amount:    vault.Zero,
			Shares:    vault.Zero,
			CreatedAt: now,
		}})
		return err
	})
	if err != nil {
		return vault.Vault{}, err
	}
	return row, nil
}

func (a *vaultLedgerAggregate) Commit(ctx context.Context, in domainagg.VaultCommitInput) (domainagg.VaultCommitResult, error) {
	const op = "vault_ledger.commit"
	if in.VaultID == uuid.Nil {
		return domainagg.VaultCommitResult{}, MapError(op, ValidationError("missing vault id"))
	}
	now := a.deps.Now()
	next := in.ExpectedVersion + 1

	err := executeWrite(ctx, a.deps, op, func(dbc dbctx.Context) error {
		ok, err := a.deps.CASGuard.UpdateByVersion(dbc, vault.Vault{}.TableName(), in.VaultID, in.ExpectedVersion, map[string]any{
			"strategy_id":       in.Vault.StrategyID,
			"total_shares":      in.Vault.TotalShares,
			"total_principal":   in.Vault.TotalPrincipal,
			"total_unclaimed":   in.Vault.TotalUnclaimed,
			"distribution_dust": in.Vault.DistributionDust,
			"paused":            in.Vault.Paused,
			"updated_at":        now,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "vault changed since snapshot"); err != nil {
			return err
		}

		positions := make([]*vault.Position, 0, len(in.Positions))
		for i := range in.Positions {
			p := in.Positions[i]
			if p.VaultID != in.VaultID {
				return InvariantError("position belongs to another vault")
			}
			if p.CreatedAt.IsZero() {
				p.CreatedAt = now
			}
			p.UpdatedAt = now
			positions = append(positions, &p)
		}
		if err := a.deps.Repos.Positions.Upsert(dbc, positions); err != nil {
			return err
		}

		strategies := make([]*vault.Strategy, 0, len(in.Strategies))
		for i := range in.Strategies {
			s := in.Strategies[i]
			if s.CreatedAt.IsZero() {
				s.CreatedAt = now
			}
			s.UpdatedAt = now
			strategies = append(strategies, &s)
		}
		if err := a.deps.Repos.Strategy.Upsert(dbc, strategies); err != nil {
			return err
		}

		if in.Harvest != nil {
			h := *in.Harvest
			if h.ID == uuid.Nil {
				h.ID = uuid.New()
			}
			h.VaultID = in.VaultID
			h.CreatedAt, h.UpdatedAt = now, now
			if _, err := a.deps.Repos.Harvests.Create(dbc, []*vault.Harvest{&h}); err != nil {
				return err
			}
		}

		if in.ResolvedHarvestID != uuid.Nil {
			ok, err := a.deps.Repos.Harvests.TransitionStatus(dbc, in.ResolvedHarvestID, vault.HarvestStatusStranded, vault.HarvestStatusResolved)
			if err != nil {
				return err
			}
			if !ok {
				return ConflictError("harvest is no longer stranded")
			}
		}
		if in.SagaID != uuid.Nil {
			ok, err := a.deps.Repos.SagaRuns.Transition(dbc, in.SagaID, vault.SagaStatusRunning, vault.SagaStatusSucceeded, "")
			if err != nil {
				return err
			}
			if !ok {
				return ConflictError("saga run is no longer running")
			}
		}

		entries := make([]*vault.LedgerEntry, 0, len(in.Entries))
		for i := range in.Entries {
			e := in.Entries[i]
			if e.ID == uuid.Nil {
				e.ID = uuid.New()
			}
			e.VaultID = in.VaultID
			e.Version = next
			if e.ActorID == "" {
				e.ActorID = in.ActorID
			}
			e.CreatedAt = now
			entries = append(entries, &e)
		}
		_, err = a.deps.Repos.Ledger.Create(dbc, entries)
		return err
	})
	if err != nil {
		return domainagg.VaultCommitResult{}, err
	}
	return domainagg.VaultCommitResult{VaultID: in.VaultID, Version: next}, nil
}

func (a *vaultLedgerAggregate) RecordHarvestAttempt(ctx context.Context, h vault.Harvest) error {
	const op = "vault_ledger.record_harvest_attempt"
	if h.VaultID == uuid.Nil {
		return MapError(op, ValidationError("missing vault id"))
	}
	now := a.deps.Now()
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	h.CreatedAt, h.UpdatedAt = now, now
	return executeWrite(ctx, a.deps, op, func(dbc dbctx.Context) error {
		_, err := a.deps.Repos.Harvests.Create(dbc, []*vault.Harvest{&h})
		return err
	})
}
