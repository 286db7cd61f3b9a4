// Package memvenue is an in-process lending venue: accounts supply an asset,
// positions grow with simple interest, and redemptions are limited by the
// venue's unborrowed cash.
package memvenue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yungbote/yieldvault-backend/internal/asset"
	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

var (
	ErrSupplyRejected        = errors.New("venue rejected supply")
	ErrInsufficientLiquidity = errors.New("venue insufficient liquidity")
	ErrExceedsPosition       = errors.New("redeem exceeds position")
)

const year = 365 * 24 * time.Hour

type Config struct {
	Name  string
	Token asset.Token
	// RateBps is the simple annual interest rate in basis points.
	RateBps int64
	Now     func() time.Time
}

type Venue struct {
	name    string
	token   asset.Token
	rateBps int64
	now     func() time.Time

	mu           sync.Mutex
	positions    map[string]vault.Amount
	lastAccrual  time.Time
	borrowed     vault.Amount
	rejectSupply bool
}

func New(cfg Config) *Venue {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Venue{
		name:        strings.TrimSpace(cfg.Name),
		token:       cfg.Token,
		rateBps:     cfg.RateBps,
		now:         now,
		positions:   map[string]vault.Amount{},
		lastAccrual: now(),
		borrowed:    vault.Zero,
	}
}

func (v *Venue) Name() string { return v.name }

// Account is the custody account holding the venue's cash.
func (v *Venue) Account() string { return "venue:" + v.name }

func (v *Venue) Supply(ctx context.Context, account string, amount vault.Amount) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.rejectSupply {
		return fmt.Errorf("%w: %s is not accepting deposits", ErrSupplyRejected, v.name)
	}
	if err := v.token.Transfer(ctx, account, v.Account(), amount); err != nil {
		return fmt.Errorf("%w: %v", ErrSupplyRejected, err)
	}
	v.positions[account] = v.position(account).Add(amount)
	return nil
}

func (v *Venue) Redeem(ctx context.Context, account string, amount vault.Amount) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	pos := v.position(account)
	if pos.LessThan(amount) {
		return fmt.Errorf("%w: position %s, requested %s", ErrExceedsPosition, pos, amount)
	}
	avail, err := v.available(ctx)
	if err != nil {
		return err
	}
	if avail.LessThan(amount) {
		return fmt.Errorf("%w: available %s, requested %s", ErrInsufficientLiquidity, avail, amount)
	}
	if err := v.token.Transfer(ctx, v.Account(), account, amount); err != nil {
		return err
	}
	v.positions[account] = pos.Sub(amount)
	return nil
}

// BalanceOf returns the underlying currently owed to account.
func (v *Venue) BalanceOf(_ context.Context, account string) (vault.Amount, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.position(account), nil
}

func (v *Venue) AvailableLiquidity(ctx context.Context) (vault.Amount, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.available(ctx)
}

// Accrue books simple interest for the time elapsed since the last accrual.
// Calling it twice without elapsed time changes nothing.
func (v *Venue) Accrue(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.now()
	elapsed := now.Sub(v.lastAccrual)
	if elapsed <= 0 {
		return nil
	}
	num := decimal.NewFromInt(v.rateBps).Mul(decimal.NewFromInt(int64(elapsed)))
	den := decimal.NewFromInt(10_000).Mul(decimal.NewFromInt(int64(year)))
	total := vault.Zero
	for _, account := range v.accounts() {
		pos := v.positions[account]
		interest := vault.MulDivFloor(pos, num, den)
		if interest.Sign() == 0 {
			continue
		}
		v.positions[account] = pos.Add(interest)
		total = total.Add(interest)
	}
	if err := v.fund(ctx, total); err != nil {
		return err
	}
	v.lastAccrual = now
	return nil
}

// CreditInterest adds interest to one account directly, as a borrower repayment would.
func (v *Venue) CreditInterest(ctx context.Context, account string, amount vault.Amount) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.fund(ctx, amount); err != nil {
		return err
	}
	v.positions[account] = v.position(account).Add(amount)
	return nil
}

// SetBorrowed simulates utilization: borrowed cash cannot be redeemed.
func (v *Venue) SetBorrowed(amount vault.Amount) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.borrowed = amount
}

func (v *Venue) RejectSupply(reject bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rejectSupply = reject
}

func (v *Venue) fund(ctx context.Context, amount vault.Amount) error {
	if amount.Sign() == 0 {
		return nil
	}
	m, ok := v.token.(asset.Minter)
	if !ok {
		return fmt.Errorf("venue %s cannot fund interest: %s is not mintable", v.name, v.token.Symbol())
	}
	return m.Mint(ctx, v.Account(), amount)
}

func (v *Venue) available(ctx context.Context) (vault.Amount, error) {
	cash, err := v.token.BalanceOf(ctx, v.Account())
	if err != nil {
		return vault.Zero, err
	}
	if cash.LessThan(v.borrowed) {
		return vault.Zero, nil
	}
	return cash.Sub(v.borrowed), nil
}

func (v *Venue) position(account string) vault.Amount {
	if p, ok := v.positions[account]; ok {
		return p
	}
	return vault.Zero
}

func (v *Venue) accounts() []string {
	out := make([]string, 0, len(v.positions))
	for a := range v.positions {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
