package vault

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/yieldvault-backend/internal/access"
	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/events"
)

type DepositResult struct {
	Vault  types.Vault  `json:"vault"`
	Minted types.Amount `json:"minted"`
	// Shares is the depositor's balance after the deposit.
	Shares types.Amount `json:"shares"`
}

type WithdrawResult struct {
	Vault  types.Vault  `json:"vault"`
	Burned types.Amount `json:"burned"`
	Shares types.Amount `json:"shares"`
}

type ClaimResult struct {
	Vault   types.Vault  `json:"vault"`
	Claimed types.Amount `json:"claimed"`
}

type ProceedsResult struct {
	Vault       types.Vault  `json:"vault"`
	Distributed types.Amount `json:"distributed"`
	Dust        types.Amount `json:"dust"`
}

// Deposit pulls amount of the principal asset from caller (spending the
// allowance caller granted the vault account), deploys it into the strategy
// and mints shares at the pre-deposit price.
func (m *Manager) Deposit(ctx context.Context, vaultID uuid.UUID, caller string, amount types.Amount) (DepositResult, error) {
	const op = "deposit"
	var res DepositResult
	v, err := m.run(ctx, vaultID, op, caller, func(ctx context.Context, u *unit) error {
		if err := m.authorize(ctx, op, &u.v, caller, access.ActionDeposit); err != nil {
			return err
		}
		if !types.IsPositive(amount) || !amount.IsInteger() {
			return fail(domainagg.CodeInvalidAmount, op, "deposit amount must be a positive integer, got %s", amount)
		}
		if err := requireActive(op, &u.v); err != nil {
			return err
		}
		minted := mintFor(&u.v, amount)
		if !types.IsPositive(minted) {
			return fail(domainagg.CodeInvalidAmount, op, "deposit of %s would mint zero shares", amount)
		}
		s, err := u.strategy(ctx)
		if err != nil {
			return err
		}
		pos, err := u.position(ctx, caller)
		if err != nil {
			return err
		}

		u.v.TotalShares = u.v.TotalShares.Add(minted)
		u.v.TotalPrincipal = u.v.TotalPrincipal.Add(amount)
		pos.Shares = pos.Shares.Add(minted)
		pos.Deposited = pos.Deposited.Add(amount)
		u.touch(pos)
		u.record(types.LedgerEntry{Kind: types.EntryDeposit, DepositorID: caller, Amount: amount, Shares: minted},
			events.Event{Kind: events.KindDeposit, DepositorID: caller, Amount: amount.String(), Shares: minted.String()})

		if err := u.pull(ctx, u.principal, caller, amount); err != nil {
			return err
		}
		if err := u.deploy(ctx, s, amount); err != nil {
			return err
		}
		res.Minted, res.Shares = minted, pos.Shares
		return nil
	})
	if err != nil {
		return DepositResult{}, err
	}
	res.Vault = v
	m.metrics.AddVaultAmount(op, v.PrincipalAsset, amount.InexactFloat64())
	return res, nil
}

// Withdraw returns amount of principal to caller, burning the shares that
// amount is worth rounded up so the remaining holders never lose value.
func (m *Manager) Withdraw(ctx context.Context, vaultID uuid.UUID, caller string, amount types.Amount) (WithdrawResult, error) {
	const op = "withdraw"
	var res WithdrawResult
	v, err := m.run(ctx, vaultID, op, caller, func(ctx context.Context, u *unit) error {
		if err := m.authorize(ctx, op, &u.v, caller, access.ActionWithdraw); err != nil {
			return err
		}
		if !types.IsPositive(amount) || !amount.IsInteger() {
			return fail(domainagg.CodeInvalidAmount, op, "withdraw amount must be a positive integer, got %s", amount)
		}
		if err := requireActive(op, &u.v); err != nil {
			return err
		}
		pos, err := u.position(ctx, caller)
		if err != nil {
			return err
		}
		owed := principalOf(&u.v, pos.Shares)
		if amount.GreaterThan(owed) {
			return fail(domainagg.CodeInsufficientBalance, op, "%s may withdraw at most %s, requested %s", caller, owed, amount)
		}
		burned := types.MinAmount(types.MulDivCeil(amount, u.v.TotalShares, u.v.TotalPrincipal), pos.Shares)
		s, err := u.strategy(ctx)
		if err != nil {
			return err
		}

		u.v.TotalShares = u.v.TotalShares.Sub(burned)
		u.v.TotalPrincipal = u.v.TotalPrincipal.Sub(amount)
		pos.Shares = pos.Shares.Sub(burned)
		pos.Withdrawn = pos.Withdrawn.Add(amount)
		u.touch(pos)
		u.record(types.LedgerEntry{Kind: types.EntryWithdraw, DepositorID: caller, Amount: amount, Shares: burned},
			events.Event{Kind: events.KindWithdraw, DepositorID: caller, Amount: amount.String(), Shares: burned.String()})

		if err := u.retrieve(ctx, s, amount); err != nil {
			return err
		}
		if err := u.pay(ctx, u.principal, caller, amount); err != nil {
			return err
		}
		res.Burned, res.Shares = burned, pos.Shares
		return nil
	})
	if err != nil {
		return WithdrawResult{}, err
	}
	res.Vault = v
	m.metrics.AddVaultAmount(op, v.PrincipalAsset, amount.InexactFloat64())
	return res, nil
}

// Claim pays caller's unclaimed profit in the distribution asset. Claims stay
// open while the vault is paused.
func (m *Manager) Claim(ctx context.Context, vaultID uuid.UUID, caller string) (ClaimResult, error) {
	const op = "claim"
	var res ClaimResult
	v, err := m.run(ctx, vaultID, op, caller, func(ctx context.Context, u *unit) error {
		if err := m.authorize(ctx, op, &u.v, caller, access.ActionClaim); err != nil {
			return err
		}
		pos, err := u.position(ctx, caller)
		if err != nil {
			return err
		}
		owed := pos.UnclaimedProfit
		if !types.IsPositive(owed) {
			return fail(domainagg.CodeNothingToClaim, op, "%s has no unclaimed profit", caller)
		}

		pos.UnclaimedProfit = types.Zero
		pos.Claimed = pos.Claimed.Add(owed)
		u.v.TotalUnclaimed = u.v.TotalUnclaimed.Sub(owed)
		u.touch(pos)
		u.record(types.LedgerEntry{Kind: types.EntryClaim, DepositorID: caller, Amount: owed},
			events.Event{Kind: events.KindClaim, DepositorID: caller, Amount: owed.String()})

		if err := u.pay(ctx, u.distribution, caller, owed); err != nil {
			return err
		}
		res.Claimed = owed
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}
	res.Vault = v
	m.metrics.AddVaultAmount(op, v.DistributionAsset, res.Claimed.InexactFloat64())
	return res, nil
}

// RecordHarvestProceeds credits amount of distribution asset, already sitting
// in the vault's custody account, to depositors pro rata to their shares now.
func (m *Manager) RecordHarvestProceeds(ctx context.Context, vaultID uuid.UUID, caller string, amount types.Amount) (ProceedsResult, error) {
	const op = "record_proceeds"
	var res ProceedsResult
	v, err := m.run(ctx, vaultID, op, caller, func(ctx context.Context, u *unit) error {
		if err := m.authorize(ctx, op, &u.v, caller, access.ActionRecordProceeds); err != nil {
			return err
		}
		if !types.IsPositive(amount) || !amount.IsInteger() {
			return fail(domainagg.CodeInvalidAmount, op, "proceeds must be a positive integer, got %s", amount)
		}
		distributed, err := u.distribute(ctx, amount)
		if err != nil {
			return err
		}
		res.Distributed = distributed
		return nil
	})
	if err != nil {
		return ProceedsResult{}, err
	}
	res.Vault, res.Dust = v, v.DistributionDust
	return res, nil
}

// distribute books amount plus carried dust into every position by floor of
// its share fraction. The vault's distribution balance must already cover
// everything owed afterwards.
func (u *unit) distribute(ctx context.Context, amount types.Amount) (types.Amount, error) {
	held, err := u.distribution.BalanceOf(ctx, u.account())
	if err != nil {
		return types.Zero, External(u.op, err)
	}
	need := u.v.TotalUnclaimed.Add(u.v.DistributionDust).Add(amount)
	if held.LessThan(need) {
		return types.Zero, fail(domainagg.CodeInsufficientBalance, u.op,
			"vault holds %s %s, owes %s after crediting %s", held, u.v.DistributionAsset, need, amount)
	}

	pool := amount.Add(u.v.DistributionDust)
	distributed := types.Zero
	if types.IsPositive(u.v.TotalShares) {
		positions, err := u.allPositions(ctx)
		if err != nil {
			return types.Zero, err
		}
		for _, p := range positions {
			if !types.IsPositive(p.Shares) {
				continue
			}
			cut := types.MulDivFloor(pool, p.Shares, u.v.TotalShares)
			if !types.IsPositive(cut) {
				continue
			}
			p.UnclaimedProfit = p.UnclaimedProfit.Add(cut)
			distributed = distributed.Add(cut)
			u.touch(p)
		}
	}
	u.v.TotalUnclaimed = u.v.TotalUnclaimed.Add(distributed)
	u.v.DistributionDust = pool.Sub(distributed)
	u.record(types.LedgerEntry{Kind: types.EntryProceeds, Amount: amount, Metadata: jsonOf(map[string]any{
		"distributed": distributed.String(),
		"dust":        u.v.DistributionDust.String(),
	})}, events.Event{Kind: events.KindProceeds, Amount: amount.String(), Data: map[string]any{
		"distributed": distributed.String(),
		"dust":        u.v.DistributionDust.String(),
	}})
	return distributed, nil
}

func requireActive(op string, v *types.Vault) error {
	if v.Paused {
		return fail(domainagg.CodeVaultPaused, op, "vault %s is paused", v.Symbol)
	}
	if !v.HasStrategy() {
		return fail(domainagg.CodeNoStrategy, op, "vault %s has no strategy", v.Symbol)
	}
	return nil
}

// mintFor is the share count amount buys: 1:1 for the first deposit, otherwise
// floor(amount * totalShares / totalPrincipal).
func mintFor(v *types.Vault, amount types.Amount) types.Amount {
	if !types.IsPositive(v.TotalShares) || !types.IsPositive(v.TotalPrincipal) {
		return amount
	}
	return types.MulDivFloor(amount, v.TotalShares, v.TotalPrincipal)
}

// principalOf is floor(shares * totalPrincipal / totalShares).
func principalOf(v *types.Vault, shares types.Amount) types.Amount {
	if !types.IsPositive(v.TotalShares) || !types.IsPositive(shares) {
		return types.Zero
	}
	return types.MulDivFloor(shares, v.TotalPrincipal, v.TotalShares)
}
