package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/dbctx"
)

// State is a committed vault snapshot with derived values.
type State struct {
	Vault      types.Vault     `json:"vault"`
	Status     string          `json:"status"`
	SharePrice decimal.Decimal `json:"share_price"`
	Strategy   *types.Strategy `json:"strategy,omitempty"`
}

type PositionView struct {
	Position  types.Position `json:"position"`
	Principal types.Amount   `json:"principal"`
}

// sharePricePrecision is the number of decimal places SharePrice reports.
const sharePricePrecision = 18

// Views read committed state and never take the vault lock.

func (m *Manager) State(ctx context.Context, vaultID uuid.UUID) (State, error) {
	const op = "state"
	dbc := dbctx.Context{Ctx: ctx}
	v, err := m.repos.Vaults.GetByID(dbc, vaultID)
	if err != nil {
		return State{}, mapLoad(op, vaultID, err)
	}
	st := State{Vault: *v, Status: v.Status(), SharePrice: sharePrice(v)}
	if v.StrategyID != nil {
		row, err := m.repos.Strategy.GetByID(dbc, *v.StrategyID)
		if err != nil {
			return State{}, domainagg.Wrap(domainagg.CodeInternal, op, err)
		}
		st.Strategy = row
	}
	return st, nil
}

// BySymbol finds a vault by its share symbol.
func (m *Manager) BySymbol(ctx context.Context, symbol string) (types.Vault, error) {
	const op = "by_symbol"
	v, err := m.repos.Vaults.GetBySymbol(dbctx.Context{Ctx: ctx}, strings.TrimSpace(symbol))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Vault{}, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("vault %q not found", symbol), err)
	}
	if err != nil {
		return types.Vault{}, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return *v, nil
}

func (m *Manager) List(ctx context.Context) ([]State, error) {
	rows, err := m.repos.Vaults.List(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "list", err)
	}
	out := make([]State, 0, len(rows))
	for _, v := range rows {
		out = append(out, State{Vault: *v, Status: v.Status(), SharePrice: sharePrice(v)})
	}
	return out, nil
}

// Position returns depositor's position; unknown depositors get a zero position.
func (m *Manager) Position(ctx context.Context, vaultID uuid.UUID, depositor string) (PositionView, error) {
	const op = "position"
	dbc := dbctx.Context{Ctx: ctx}
	v, err := m.repos.Vaults.GetByID(dbc, vaultID)
	if err != nil {
		return PositionView{}, mapLoad(op, vaultID, err)
	}
	p, err := m.repos.Positions.Get(dbc, vaultID, depositor)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		empty := types.NewPosition(vaultID, depositor)
		p, err = &empty, nil
	}
	if err != nil {
		return PositionView{}, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return PositionView{Position: *p, Principal: principalOf(v, p.Shares)}, nil
}

// PrincipalOf is the principal depositor could withdraw now.
func (m *Manager) PrincipalOf(ctx context.Context, vaultID uuid.UUID, depositor string) (types.Amount, error) {
	pv, err := m.Position(ctx, vaultID, depositor)
	if err != nil {
		return types.Zero, err
	}
	return pv.Principal, nil
}

// SharePrice is totalPrincipal/totalShares, or 1 before the first deposit.
func (m *Manager) SharePrice(ctx context.Context, vaultID uuid.UUID) (decimal.Decimal, error) {
	v, err := m.repos.Vaults.GetByID(dbctx.Context{Ctx: ctx}, vaultID)
	if err != nil {
		return decimal.Zero, mapLoad("share_price", vaultID, err)
	}
	return sharePrice(v), nil
}

func (m *Manager) Harvests(ctx context.Context, vaultID uuid.UUID, limit int) ([]*types.Harvest, error) {
	rows, err := m.repos.Harvests.ListByVault(dbctx.Context{Ctx: ctx}, vaultID, limit)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "harvests", err)
	}
	return rows, nil
}

func (m *Manager) Ledger(ctx context.Context, vaultID uuid.UUID, afterVersion int64, limit int) ([]*types.LedgerEntry, error) {
	rows, err := m.repos.Ledger.ListByVault(dbctx.Context{Ctx: ctx}, vaultID, afterVersion, limit)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "ledger", err)
	}
	return rows, nil
}

func sharePrice(v *types.Vault) decimal.Decimal {
	if !types.IsPositive(v.TotalShares) {
		return types.One
	}
	return v.TotalPrincipal.DivRound(v.TotalShares, sharePricePrecision)
}
