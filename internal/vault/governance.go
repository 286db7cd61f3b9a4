package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/yieldvault-backend/internal/access"
	"github.com/yungbote/yieldvault-backend/internal/asset"
	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/events"
	"github.com/yungbote/yieldvault-backend/internal/platform/dbctx"
	"github.com/yungbote/yieldvault-backend/internal/strategy"
)

type ProvisionInput struct {
	Name              string
	Symbol            string
	PrincipalAsset    string
	DistributionAsset string
	Harvester         string
	Governance        string
}

type SetStrategyResult struct {
	Vault    types.Vault `json:"vault"`
	Previous *uuid.UUID  `json:"previous_strategy_id,omitempty"`
	Current  uuid.UUID   `json:"strategy_id"`
	// Migrated is the principal moved from the previous strategy.
	Migrated types.Amount `json:"migrated"`
	// MigratedYield is unharvested yield carried over from the previous
	// strategy. It is harvestable from the new one.
	MigratedYield types.Amount `json:"migrated_yield"`
}

// Provision creates an empty vault with no strategy.
func (m *Manager) Provision(ctx context.Context, caller string, in ProvisionInput) (types.Vault, error) {
	const op = "provision"
	if !m.admin.IsAuthorized(ctx, caller, access.ActionProvision) {
		return types.Vault{}, fail(domainagg.CodeUnauthorized, op, "%q may not provision vaults", caller)
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Symbol = strings.TrimSpace(in.Symbol)
	in.Harvester = strings.TrimSpace(in.Harvester)
	in.Governance = strings.TrimSpace(in.Governance)
	switch {
	case in.Name == "" || in.Symbol == "":
		return types.Vault{}, fail(domainagg.CodeValidation, op, "name and symbol are required")
	case in.Harvester == "" || in.Governance == "":
		return types.Vault{}, fail(domainagg.CodeValidation, op, "harvester and governance identities are required")
	}
	principal, err := m.assets.Lookup(in.PrincipalAsset)
	if err != nil {
		return types.Vault{}, domainagg.Wrap(domainagg.CodeValidation, op, err)
	}
	distribution, err := m.assets.Lookup(in.DistributionAsset)
	if err != nil {
		return types.Vault{}, domainagg.Wrap(domainagg.CodeValidation, op, err)
	}
	v, err := m.ledger.CreateVault(ctx, domainagg.CreateVaultInput{
		Vault: types.Vault{
			ID:                uuid.New(),
			Name:              in.Name,
			Symbol:            in.Symbol,
			PrincipalAsset:    principal.Symbol(),
			DistributionAsset: distribution.Symbol(),
			HarvesterID:       in.Harvester,
			GovernanceID:      in.Governance,
		},
		ActorID: caller,
	})
	if err != nil {
		return types.Vault{}, err
	}
	m.publish(ctx, &unit{caller: caller, v: v, events: []events.Event{{
		Kind: events.KindProvisioned,
		Data: map[string]any{"symbol": v.Symbol, "principal_asset": v.PrincipalAsset, "distribution_asset": v.DistributionAsset},
	}}})
	m.log.Info("vault provisioned", "vault_id", v.ID.String(), "symbol", v.Symbol)
	return v, nil
}

// CreateStrategy instantiates a strategy adapter of kind over source for the
// vault. The strategy is inactive until bound with SetStrategy.
func (m *Manager) CreateStrategy(ctx context.Context, vaultID uuid.UUID, caller, kind, source string) (types.Strategy, error) {
	const op = "create_strategy"
	var row types.Strategy
	_, err := m.run(ctx, vaultID, op, caller, func(ctx context.Context, u *unit) error {
		if err := m.authorize(ctx, op, &u.v, caller, access.ActionSetStrategy); err != nil {
			return err
		}
		kind, source = strings.ToLower(strings.TrimSpace(kind)), strings.TrimSpace(source)
		if kind == "" || source == "" {
			return fail(domainagg.CodeValidation, op, "strategy kind and source are required")
		}
		row = types.Strategy{ID: uuid.New(), VaultID: u.v.ID, Kind: kind, Source: source}
		if _, err := m.resolveRow(op, &u.v, row, u.principal); err != nil {
			return err
		}
		u.strategies = append(u.strategies, row)
		u.record(types.LedgerEntry{Kind: types.EntryStrategyCreate, Metadata: jsonOf(map[string]any{
			"strategy_id": row.ID.String(), "kind": kind, "source": source,
		})}, events.Event{})
		return nil
	})
	if err != nil {
		return types.Strategy{}, err
	}
	return row, nil
}

// SetStrategy binds strategyID to the vault. With migrate the whole value of
// the current strategy, principal and unharvested yield, moves into the new
// one inside the same unit; without it the swap is refused while the current
// strategy holds anything.
func (m *Manager) SetStrategy(ctx context.Context, vaultID uuid.UUID, caller string, strategyID uuid.UUID, migrate bool) (SetStrategyResult, error) {
	const op = "set_strategy"
	var res SetStrategyResult
	v, err := m.run(ctx, vaultID, op, caller, func(ctx context.Context, u *unit) error {
		if err := m.authorize(ctx, op, &u.v, caller, access.ActionSetStrategy); err != nil {
			return err
		}
		if u.v.StrategyID != nil && *u.v.StrategyID == strategyID {
			return fail(domainagg.CodePreconditionFailed, op, "strategy %s is already bound", strategyID)
		}
		next, err := m.repos.Strategy.GetByID(dbctx.Context{Ctx: ctx}, strategyID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("strategy %s not found", strategyID), err)
		}
		if err != nil {
			return domainagg.Wrap(domainagg.CodeInternal, op, err)
		}
		if next.VaultID != u.v.ID {
			return fail(domainagg.CodeValidation, op, "strategy %s belongs to another vault", strategyID)
		}
		incoming, err := m.resolveRow(op, &u.v, *next, u.principal)
		if err != nil {
			return err
		}

		deployed := u.v.TotalPrincipal
		carried := types.Zero
		var prevRow *types.Strategy
		if u.v.HasStrategy() {
			outgoing, err := u.strategy(ctx)
			if err != nil {
				return err
			}
			if types.IsPositive(deployed) && !migrate {
				return fail(domainagg.CodePreconditionFailed, op, "%s principal is deployed; migrate funds to switch strategy", deployed)
			}
			if !migrate {
				residual, err := outgoing.AccruedYield(ctx)
				if err != nil {
					return External(op, err)
				}
				if types.IsPositive(residual) {
					return fail(domainagg.CodePreconditionFailed, op, "%s unharvested yield in the current strategy; harvest or migrate first", residual)
				}
			} else {
				if err := u.retrieve(ctx, outgoing, deployed); err != nil {
					return err
				}
				// whatever is left after the principal is yield
				rest, err := outgoing.TotalValue(ctx)
				if err != nil {
					return External(op, err)
				}
				if err := u.retrieveYield(ctx, outgoing, rest); err != nil {
					return err
				}
				carried = rest
				if err := u.deploy(ctx, incoming, deployed.Add(carried)); err != nil {
					return err
				}
			}
			prevRow, err = m.repos.Strategy.GetByID(dbctx.Context{Ctx: ctx}, *u.v.StrategyID)
			if err != nil {
				return domainagg.Wrap(domainagg.CodeInternal, op, err)
			}
			prev := *u.v.StrategyID
			res.Previous = &prev
		} else if types.IsPositive(deployed) {
			return fail(domainagg.CodeInternal, op, "vault reports %s principal without a strategy", deployed)
		}

		if prevRow != nil {
			prevRow.Active = false
			u.strategies = append(u.strategies, *prevRow)
		}
		next.Active = true
		u.strategies = append(u.strategies, *next)
		id := next.ID
		u.v.StrategyID = &id
		u.strat = incoming

		meta := map[string]any{"strategy_id": id.String(), "migrated": migrate, "migrated_yield": carried.String()}
		if res.Previous != nil {
			meta["previous_strategy_id"] = res.Previous.String()
		}
		moved := types.Zero
		if migrate {
			moved = deployed
		}
		u.record(types.LedgerEntry{Kind: types.EntryStrategySet, Amount: moved, Metadata: jsonOf(meta)},
			events.Event{Kind: events.KindStrategyChange, Amount: moved.String(), Data: meta})
		res.Current, res.Migrated, res.MigratedYield = id, moved, carried
		return nil
	})
	if err != nil {
		return SetStrategyResult{}, err
	}
	res.Vault = v
	return res, nil
}

func (m *Manager) Pause(ctx context.Context, vaultID uuid.UUID, caller string) (types.Vault, error) {
	return m.setPaused(ctx, vaultID, caller, true)
}

func (m *Manager) Unpause(ctx context.Context, vaultID uuid.UUID, caller string) (types.Vault, error) {
	return m.setPaused(ctx, vaultID, caller, false)
}

func (m *Manager) setPaused(ctx context.Context, vaultID uuid.UUID, caller string, paused bool) (types.Vault, error) {
	op, action, entry, kind := "pause", access.ActionPause, types.EntryPaused, events.KindPaused
	if !paused {
		op, action, entry, kind = "unpause", access.ActionUnpause, types.EntryUnpaused, events.KindUnpaused
	}
	return m.run(ctx, vaultID, op, caller, func(ctx context.Context, u *unit) error {
		if err := m.authorize(ctx, op, &u.v, caller, action); err != nil {
			return err
		}
		if u.v.Paused == paused {
			return fail(domainagg.CodePreconditionFailed, op, "vault %s is already %s", u.v.Symbol, u.v.Status())
		}
		u.v.Paused = paused
		u.record(types.LedgerEntry{Kind: entry}, events.Event{Kind: kind})
		return nil
	})
}

// AccrueYield pokes the strategy's venue to book interest up to now and
// reports the resulting unharvested yield. No ledger value changes.
func (m *Manager) AccrueYield(ctx context.Context, vaultID uuid.UUID) (types.Amount, error) {
	return m.yield(ctx, vaultID, "accrue_yield", true)
}

// UnderlyingYield reports unharvested yield as of the venue's last accrual.
func (m *Manager) UnderlyingYield(ctx context.Context, vaultID uuid.UUID) (types.Amount, error) {
	return m.yield(ctx, vaultID, "underlying_yield", false)
}

func (m *Manager) yield(ctx context.Context, vaultID uuid.UUID, op string, accrue bool) (types.Amount, error) {
	out := types.Zero
	_, err := m.run(ctx, vaultID, op, "", func(ctx context.Context, u *unit) error {
		s, err := u.strategy(ctx)
		if err != nil {
			return err
		}
		if accrue {
			if err := s.Accrue(ctx); err != nil {
				return External(op, err)
			}
		}
		y, err := s.AccruedYield(ctx)
		if err != nil {
			return External(op, err)
		}
		out = y
		return nil
	})
	return out, err
}

func (m *Manager) resolveStrategy(ctx context.Context, op string, v *types.Vault, id uuid.UUID, principal asset.Token) (strategy.Strategy, error) {
	row, err := m.repos.Strategy.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return m.resolveRow(op, v, *row, principal)
}

func (m *Manager) resolveRow(op string, v *types.Vault, row types.Strategy, principal asset.Token) (strategy.Strategy, error) {
	s, err := m.strategies.Resolve(strategy.Binding{
		Row:          row,
		VaultAccount: Account(v.ID),
		Principal:    principal,
		Reader:       m,
	})
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeValidation, op, err)
	}
	return s, nil
}

func jsonOf(v map[string]any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
