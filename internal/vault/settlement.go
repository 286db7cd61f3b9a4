package vault

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/yieldvault-backend/internal/access"
	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/events"
	"github.com/yungbote/yieldvault-backend/internal/strategy"
)

// Settlement is the handle a harvest works through while it holds the vault's
// lock. Every movement it makes is journaled and undone if the harvest fails
// before Irreversible is called.
type Settlement struct {
	u        *unit
	strategy strategy.Strategy
}

// SettleFunc performs a harvest against s. Returning an error aborts the unit.
type SettleFunc func(ctx context.Context, s *Settlement) error

// Settle runs fn as the harvest unit of vaultID. Harvesting requires the
// harvester role and a bound strategy; it is allowed while paused.
func (m *Manager) Settle(ctx context.Context, vaultID uuid.UUID, caller string, fn SettleFunc) (types.Vault, error) {
	const op = "harvest"
	return m.run(ctx, vaultID, op, caller, func(ctx context.Context, u *unit) error {
		if err := m.authorize(ctx, op, &u.v, caller, access.ActionHarvest); err != nil {
			return err
		}
		s, err := u.strategy(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, &Settlement{u: u, strategy: s})
	})
}

// Vault is the snapshot the harvest runs against.
func (s *Settlement) Vault() types.Vault { return s.u.v }

func (s *Settlement) Strategy() strategy.Strategy { return s.strategy }

// Account is the harvester's custody account.
func (s *Settlement) Account() string { return HarvesterAccount(s.u.v.HarvesterID) }

// RealizeYield has the strategy realize its accrued yield. Whatever the
// strategy redeemed into idle cash is supplied back if the harvest fails.
func (s *Settlement) RealizeYield(ctx context.Context) (types.Amount, error) {
	baseline, err := s.u.principal.BalanceOf(ctx, s.strategy.Account())
	if err != nil {
		return types.Zero, External(s.u.op, err)
	}
	comp := strategyStep(types.SagaKindResupply, "resupply realized yield", s.strategy.ID(), types.Zero)
	comp.Baseline = baseline
	var actual types.Amount
	_, err = s.u.step(ctx, nil, comp, func() error {
		y, err := s.strategy.RealizeYield(ctx)
		if err != nil {
			return External(s.u.op, err)
		}
		actual = y
		return nil
	})
	if err != nil {
		return types.Zero, err
	}
	return actual, nil
}

// ReleaseYield moves amount of realized yield from the strategy into the
// harvester's custody account.
func (s *Settlement) ReleaseYield(ctx context.Context, amount types.Amount) error {
	if !types.IsPositive(amount) {
		return nil
	}
	to := s.Account()
	_, err := s.u.step(ctx, nil, transferStep("return released yield to strategy", s.u.principal, to, s.strategy.Account(), amount), func() error {
		if err := s.strategy.WithdrawYield(ctx, amount, to); err != nil {
			return External(s.u.op, err)
		}
		return nil
	})
	return err
}

// Irreversible gives up every armed compensation. Call it once a step that
// cannot be undone (a completed swap) has happened.
func (s *Settlement) Irreversible(ctx context.Context) {
	s.u.release(ctx)
}

// CreditProceeds moves amount of distribution asset from the harvester's
// custody into the vault and books it to depositors.
func (s *Settlement) CreditProceeds(ctx context.Context, amount types.Amount) (types.Amount, error) {
	if !types.IsPositive(amount) {
		return types.Zero, fail(domainagg.CodeInvalidAmount, s.u.op, "proceeds must be positive")
	}
	return s.u.creditFrom(ctx, s.Account(), amount)
}

// creditFrom pulls amount of distribution asset from a custody account into
// the vault and distributes it.
func (u *unit) creditFrom(ctx context.Context, from string, amount types.Amount) (types.Amount, error) {
	_, err := u.step(ctx, nil, transferStep("return proceeds to "+from, u.distribution, u.account(), from, amount), func() error {
		if err := u.distribution.Transfer(ctx, from, u.account(), amount); err != nil {
			return External(u.op, err)
		}
		return nil
	})
	if err != nil {
		return types.Zero, err
	}
	return u.distribute(ctx, amount)
}

// Record stores h as the settled harvest of this unit.
func (s *Settlement) Record(h types.Harvest) {
	h.VaultID = s.u.v.ID
	h.HarvesterID = s.u.caller
	h.Status = types.HarvestStatusSettled
	s.u.harvest = &h
	s.u.record(types.LedgerEntry{Kind: types.EntryHarvest, Amount: h.ActualYield, Metadata: jsonOf(map[string]any{
		"proceeds":     h.Proceeds.String(),
		"min_proceeds": h.MinProceeds.String(),
	})}, events.Event{Kind: events.KindHarvest, Amount: h.ActualYield.String(), Data: map[string]any{
		"proceeds": h.Proceeds.String(),
	}})
}

// RecordHarvestAttempt stores an unsettled harvest outcome without touching
// the ledger.
func (m *Manager) RecordHarvestAttempt(ctx context.Context, h types.Harvest) error {
	if err := m.ledger.RecordHarvestAttempt(ctx, h); err != nil {
		return err
	}
	if h.Status == types.HarvestStatusNoop {
		return nil
	}
	ev := events.Event{
		ID:      uuid.New(),
		Kind:    events.KindHarvestFailed,
		VaultID: h.VaultID,
		ActorID: h.HarvesterID,
		Amount:  h.ActualYield.String(),
		Data:    map[string]any{"status": h.Status, "error": h.Error, "proceeds": h.Proceeds.String()},
		At:      m.now(),
	}
	if err := m.bus.Publish(ctx, ev); err != nil {
		m.log.Warn("event publish failed", "kind", ev.Kind, "vault_id", h.VaultID.String(), "error", err)
	}
	return nil
}

// ResolveStranded credits the proceeds of a stranded harvest that still sit in
// the harvester's custody, capped at what the custody account holds, and
// marks the harvest resolved in the same commit.
func (m *Manager) ResolveStranded(ctx context.Context, vaultID uuid.UUID, caller string, harvestID uuid.UUID) (ProceedsResult, error) {
	const op = "resolve_stranded"
	var res ProceedsResult
	v, err := m.run(ctx, vaultID, op, caller, func(ctx context.Context, u *unit) error {
		if err := m.authorize(ctx, op, &u.v, caller, access.ActionHarvest); err != nil {
			return err
		}
		h, err := m.repos.Harvests.GetByID(u.dbc(ctx), harvestID)
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && h.VaultID != u.v.ID) {
			return fail(domainagg.CodeNotFound, op, "harvest %s not found in vault %s", harvestID, u.v.Symbol)
		}
		if err != nil {
			return domainagg.Wrap(domainagg.CodeInternal, op, err)
		}
		if h.Status != types.HarvestStatusStranded {
			return fail(domainagg.CodePreconditionFailed, op, "harvest %s is %s, not stranded", harvestID, h.Status)
		}
		from := HarvesterAccount(u.v.HarvesterID)
		held, err := u.distribution.BalanceOf(ctx, from)
		if err != nil {
			return External(op, err)
		}
		amount := types.MinAmount(h.Proceeds, held)
		if !types.IsPositive(amount) {
			return fail(domainagg.CodeInsufficientBalance, op, "harvester custody holds no %s", u.v.DistributionAsset)
		}
		distributed, err := u.creditFrom(ctx, from, amount)
		if err != nil {
			return err
		}
		u.resolves = h.ID
		meta := map[string]any{"harvest_id": h.ID.String(), "proceeds": h.Proceeds.String()}
		u.record(types.LedgerEntry{Kind: types.EntryStrandedCredit, Amount: amount, Metadata: jsonOf(meta)},
			events.Event{Kind: events.KindProceeds, Amount: amount.String(), Data: meta})
		res.Distributed = distributed
		return nil
	})
	if err != nil {
		return ProceedsResult{}, err
	}
	res.Vault, res.Dust = v, v.DistributionDust
	return res, nil
}
