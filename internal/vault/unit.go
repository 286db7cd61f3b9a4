package vault

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/yieldvault-backend/internal/asset"
	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/events"
	"github.com/yungbote/yieldvault-backend/internal/platform/dbctx"
	"github.com/yungbote/yieldvault-backend/internal/strategy"
)

// unit is the working state of one serialized operation. Ledger values are
// only ever changed on this copy; nothing reaches storage until commit.
type unit struct {
	m      *Manager
	op     string
	caller string

	before types.Vault
	v      types.Vault

	principal    asset.Token
	distribution asset.Token
	strat        strategy.Strategy

	positions   map[string]*types.Position
	dirty       map[string]struct{}
	allLoaded   bool
	strategies  []types.Strategy
	harvest     *types.Harvest
	resolves    uuid.UUID
	entries     []types.LedgerEntry
	events      []events.Event
	undo        []*compensation
	saga        uuid.UUID
	changed     bool
	released    bool
}

func (u *unit) dbc(ctx context.Context) dbctx.Context { return dbctx.Context{Ctx: ctx} }

func (u *unit) account() string { return Account(u.v.ID) }

// position returns the working copy of depositor's position, creating an
// empty one on first touch.
func (u *unit) position(ctx context.Context, depositor string) (*types.Position, error) {
	if p, ok := u.positions[depositor]; ok {
		return p, nil
	}
	row, err := u.m.repos.Positions.Get(u.dbc(ctx), u.v.ID, depositor)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		p := types.NewPosition(u.v.ID, depositor)
		u.positions[depositor] = &p
		return &p, nil
	case err != nil:
		return nil, domainagg.Wrap(domainagg.CodeInternal, u.op, err)
	}
	u.positions[depositor] = row
	return row, nil
}

// allPositions loads every position of the vault, ordered by depositor.
func (u *unit) allPositions(ctx context.Context) ([]*types.Position, error) {
	if !u.allLoaded {
		rows, err := u.m.repos.Positions.ListByVault(u.dbc(ctx), u.v.ID)
		if err != nil {
			return nil, domainagg.Wrap(domainagg.CodeInternal, u.op, err)
		}
		for _, row := range rows {
			if _, ok := u.positions[row.DepositorID]; !ok {
				u.positions[row.DepositorID] = row
			}
		}
		u.allLoaded = true
	}
	out := make([]*types.Position, 0, len(u.positions))
	for _, p := range u.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepositorID < out[j].DepositorID })
	return out, nil
}

func (u *unit) touch(p *types.Position) {
	u.dirty[p.DepositorID] = struct{}{}
	u.changed = true
}

func (u *unit) record(e types.LedgerEntry, ev events.Event) {
	if e.Amount.IsZero() {
		e.Amount = types.Zero
	}
	if e.Shares.IsZero() {
		e.Shares = types.Zero
	}
	u.entries = append(u.entries, e)
	if ev.Kind != "" {
		u.events = append(u.events, ev)
	}
	u.changed = true
}

// strategy resolves the live adapter bound to the vault.
func (u *unit) strategy(ctx context.Context) (strategy.Strategy, error) {
	if u.strat != nil {
		return u.strat, nil
	}
	if !u.v.HasStrategy() {
		return nil, fail(domainagg.CodeNoStrategy, u.op, "vault %s has no strategy", u.v.Symbol)
	}
	s, err := u.m.resolveStrategy(ctx, u.op, &u.v, *u.v.StrategyID, u.principal)
	if err != nil {
		return nil, err
	}
	u.strat = s
	return s, nil
}

// deploy moves amount from vault custody into the strategy and supplies it.
func (u *unit) deploy(ctx context.Context, s strategy.Strategy, amount types.Amount) error {
	if !types.IsPositive(amount) {
		return nil
	}
	idle, err := u.step(ctx, nil, transferStep("return idle principal from strategy", u.principal, s.Account(), u.account(), amount), func() error {
		if err := u.principal.Transfer(ctx, u.account(), s.Account(), amount); err != nil {
			return External(u.op, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	_, err = u.step(ctx, idle, strategyStep(types.SagaKindWithdrawPrincipal, "withdraw deployed principal", s.ID(), amount), func() error {
		if err := s.DepositPrincipal(ctx, amount); err != nil {
			return External(u.op, err)
		}
		return nil
	})
	return err
}

// retrieve pulls amount of principal from the strategy into vault custody.
func (u *unit) retrieve(ctx context.Context, s strategy.Strategy, amount types.Amount) error {
	if !types.IsPositive(amount) {
		return nil
	}
	_, err := u.step(ctx, nil, strategyStep(types.SagaKindRedeploy, "redeploy retrieved principal", s.ID(), amount), func() error {
		if err := s.WithdrawPrincipal(ctx, amount); err != nil {
			return domainagg.NewError(domainagg.CodeStrategyWithdrawFailed, u.op, fmt.Sprintf("strategy withdraw of %s failed", amount), err)
		}
		return nil
	})
	return err
}

// retrieveYield moves amount of the strategy's accrued yield into vault custody.
func (u *unit) retrieveYield(ctx context.Context, s strategy.Strategy, amount types.Amount) error {
	if !types.IsPositive(amount) {
		return nil
	}
	_, err := u.step(ctx, nil, strategyStep(types.SagaKindRedeploy, "redeploy retrieved yield", s.ID(), amount), func() error {
		if err := s.WithdrawYield(ctx, amount, u.account()); err != nil {
			return External(u.op, err)
		}
		return nil
	})
	return err
}

// pull transfers amount of tok into vault custody from owner, spending the
// allowance owner granted the vault.
func (u *unit) pull(ctx context.Context, tok asset.Token, owner string, amount types.Amount) error {
	_, err := u.step(ctx, nil, transferStep("refund "+owner, tok, u.account(), owner, amount), func() error {
		if err := tok.TransferFrom(ctx, u.account(), owner, u.account(), amount); err != nil {
			return External(u.op, err)
		}
		return nil
	})
	return err
}

// pay transfers amount of tok from vault custody to recipient.
func (u *unit) pay(ctx context.Context, tok asset.Token, recipient string, amount types.Amount) error {
	_, err := u.step(ctx, nil, transferStep("reverse payment to "+recipient, tok, recipient, u.account(), amount), func() error {
		if err := tok.Transfer(ctx, u.account(), recipient, amount); err != nil {
			return External(u.op, err)
		}
		return nil
	})
	return err
}

func (u *unit) commit(ctx context.Context) error {
	keys := make([]string, 0, len(u.dirty))
	for k := range u.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	positions := make([]types.Position, 0, len(keys))
	for _, k := range keys {
		positions = append(positions, *u.positions[k])
	}
	res, err := u.m.ledger.Commit(ctx, domainagg.VaultCommitInput{
		VaultID:           u.v.ID,
		ExpectedVersion:   u.before.Version,
		ActorID:           u.caller,
		Vault:             u.v,
		Positions:         positions,
		Strategies:        u.strategies,
		Harvest:           u.harvest,
		Entries:           u.entries,
		SagaID:            u.saga,
		ResolvedHarvestID: u.resolves,
	})
	if err != nil {
		return err
	}
	u.v.Version = res.Version
	return nil
}

// compensate unwinds armed interactions in reverse order and closes the
// saga run. Compensations run even when ctx is already cancelled.
func (u *unit) compensate(ctx context.Context, cause error) error {
	if u.saga == uuid.Nil {
		return cause
	}
	cctx := context.WithoutCancel(ctx)
	var failures []error
	for i := len(u.undo) - 1; i >= 0; i-- {
		c := u.undo[i]
		if err := u.m.execStep(cctx, &u.v, c.step); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", c.step.Name, err))
			u.mark(cctx, c.actionID, types.SagaActionFailed, err.Error())
			u.m.metrics.IncCompensation(u.op, "failed")
			u.m.log.Error("compensation failed", "op", u.op, "vault_id", u.v.ID.String(), "step", c.step.Name, "error", err)
			continue
		}
		u.mark(cctx, c.actionID, types.SagaActionCompensated, "")
		u.m.metrics.IncCompensation(u.op, "ok")
	}
	u.undo = nil

	status := types.SagaStatusCompensated
	if len(failures) > 0 || u.released {
		status = types.SagaStatusFailed
	}
	if err := u.closeSaga(cctx, status, cause.Error()); err != nil {
		u.m.log.Error("saga close failed", "op", u.op, "vault_id", u.v.ID.String(), "saga_id", u.saga.String(), "error", err)
	}
	if len(failures) > 0 {
		return &CompensationError{Op: u.op, Cause: cause, Failures: failures}
	}
	return cause
}
