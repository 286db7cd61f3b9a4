// Package lending adapts a supply/redeem lending venue to the Strategy contract.
//
// The adapter keeps no principal bookkeeping of its own: accrued yield is
// whatever the strategy holds (venue position plus idle cash) above the
// principal the vault has committed.
package lending

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/yieldvault-backend/internal/asset"
	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
	"github.com/yungbote/yieldvault-backend/internal/strategy"
)

const Kind = "lending"

// Venue is a lending market holding one asset.
type Venue interface {
	Supply(ctx context.Context, account string, amount vault.Amount) error
	Redeem(ctx context.Context, account string, amount vault.Amount) error
	BalanceOf(ctx context.Context, account string) (vault.Amount, error)
	AvailableLiquidity(ctx context.Context) (vault.Amount, error)
	Accrue(ctx context.Context) error
}

type Config struct {
	ID           uuid.UUID
	VaultID      uuid.UUID
	VaultAccount string
	Token        asset.Token
	Venue        Venue
	Principal    strategy.PrincipalReader
	Log          *logger.Logger
}

type Strategy struct {
	id           uuid.UUID
	vaultID      uuid.UUID
	vaultAccount string
	token        asset.Token
	venue        Venue
	principal    strategy.PrincipalReader
	log          *logger.Logger
}

var _ strategy.Strategy = (*Strategy)(nil)

func New(cfg Config) (*Strategy, error) {
	switch {
	case cfg.ID == uuid.Nil:
		return nil, errors.New("lending: missing strategy id")
	case cfg.Token == nil || cfg.Venue == nil || cfg.Principal == nil:
		return nil, errors.New("lending: token, venue and principal reader are required")
	case cfg.VaultAccount == "":
		return nil, errors.New("lending: missing vault account")
	}
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Strategy{
		id:           cfg.ID,
		vaultID:      cfg.VaultID,
		vaultAccount: cfg.VaultAccount,
		token:        cfg.Token,
		venue:        cfg.Venue,
		principal:    cfg.Principal,
		log:          log.With("strategy_id", cfg.ID.String(), "kind", Kind),
	}, nil
}

// Factory builds lending strategies whose Row.Source names a venue in venues.
func Factory(venues map[string]Venue, log *logger.Logger) strategy.Factory {
	return func(binding strategy.Binding) (strategy.Strategy, error) {
		venue, ok := venues[binding.Row.Source]
		if !ok {
			return nil, fmt.Errorf("unknown lending venue %q", binding.Row.Source)
		}
		return New(Config{
			ID:           binding.Row.ID,
			VaultID:      binding.Row.VaultID,
			VaultAccount: binding.VaultAccount,
			Token:        binding.Principal,
			Venue:        venue,
			Principal:    binding.Reader,
			Log:          log,
		})
	}
}

func (s *Strategy) ID() uuid.UUID { return s.id }

func (s *Strategy) Account() string { return strategy.Account(s.id) }

// DepositPrincipal supplies amount from the strategy's idle cash to the venue.
func (s *Strategy) DepositPrincipal(ctx context.Context, amount vault.Amount) error {
	if amount.Sign() <= 0 {
		return nil
	}
	idle, err := s.token.BalanceOf(ctx, s.Account())
	if err != nil {
		return err
	}
	if idle.LessThan(amount) {
		return fmt.Errorf("%w: idle %s below deposit %s", strategy.ErrDepositRejected, idle, amount)
	}
	if err := s.venue.Supply(ctx, s.Account(), amount); err != nil {
		return fmt.Errorf("%w: %v", strategy.ErrDepositRejected, err)
	}
	s.log.Debug("principal supplied", "amount", amount.String())
	return nil
}

// WithdrawPrincipal returns amount to the vault, using idle cash first.
func (s *Strategy) WithdrawPrincipal(ctx context.Context, amount vault.Amount) error {
	if amount.Sign() <= 0 {
		return nil
	}
	if err := s.collect(ctx, amount); err != nil {
		return err
	}
	return s.token.Transfer(ctx, s.Account(), s.vaultAccount, amount)
}

func (s *Strategy) AccruedYield(ctx context.Context) (vault.Amount, error) {
	total, err := s.TotalValue(ctx)
	if err != nil {
		return vault.Zero, err
	}
	principal, err := s.principal.TotalPrincipal(ctx, s.vaultID)
	if err != nil {
		return vault.Zero, err
	}
	if total.LessThanOrEqual(principal) {
		return vault.Zero, nil
	}
	return total.Sub(principal), nil
}

// RealizeYield redeems accrued yield into idle cash.
func (s *Strategy) RealizeYield(ctx context.Context) (vault.Amount, error) {
	y, err := s.AccruedYield(ctx)
	if err != nil || y.Sign() == 0 {
		return y, err
	}
	if err := s.collect(ctx, y); err != nil {
		return vault.Zero, err
	}
	s.log.Debug("yield realized", "amount", y.String())
	return y, nil
}

func (s *Strategy) WithdrawYield(ctx context.Context, amount vault.Amount, recipient string) error {
	if amount.Sign() <= 0 {
		return nil
	}
	if err := s.collect(ctx, amount); err != nil {
		return err
	}
	return s.token.Transfer(ctx, s.Account(), recipient, amount)
}

func (s *Strategy) Accrue(ctx context.Context) error { return s.venue.Accrue(ctx) }

func (s *Strategy) TotalValue(ctx context.Context) (vault.Amount, error) {
	pos, err := s.venue.BalanceOf(ctx, s.Account())
	if err != nil {
		return vault.Zero, err
	}
	idle, err := s.token.BalanceOf(ctx, s.Account())
	if err != nil {
		return vault.Zero, err
	}
	return pos.Add(idle), nil
}

// collect makes sure at least amount sits idle in the strategy account.
func (s *Strategy) collect(ctx context.Context, amount vault.Amount) error {
	idle, err := s.token.BalanceOf(ctx, s.Account())
	if err != nil {
		return err
	}
	if idle.GreaterThanOrEqual(amount) {
		return nil
	}
	short := amount.Sub(idle)
	avail, err := s.venue.AvailableLiquidity(ctx)
	if err != nil {
		return err
	}
	if avail.LessThan(short) {
		return fmt.Errorf("%w: need %s, venue has %s", strategy.ErrInsufficientLiquidity, short, avail)
	}
	if err := s.venue.Redeem(ctx, s.Account(), short); err != nil {
		return fmt.Errorf("redeem %s: %w", short, err)
	}
	return nil
}
