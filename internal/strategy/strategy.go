// Package strategy defines the yield-source abstraction a vault deploys
// principal into, and a registry that builds adapters from stored bindings.
package strategy

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

var (
	// ErrDepositRejected is returned when the yield venue refuses principal.
	ErrDepositRejected = errors.New("strategy deposit rejected")
	// ErrInsufficientLiquidity is returned when the venue cannot return the requested principal now.
	ErrInsufficientLiquidity = errors.New("strategy insufficient liquidity")
)

// Strategy deploys a vault's principal into one external yield venue.
//
// The vault transfers principal into Account() before DepositPrincipal and
// receives principal back into its custody account on WithdrawPrincipal.
type Strategy interface {
	ID() uuid.UUID
	// Account is the custody account holding the strategy's undeployed balance.
	Account() string

	DepositPrincipal(ctx context.Context, amount vault.Amount) error
	WithdrawPrincipal(ctx context.Context, amount vault.Amount) error

	// AccruedYield reports yield above principal without moving funds.
	AccruedYield(ctx context.Context) (vault.Amount, error)
	// RealizeYield converts accrued yield into transferable balance and reports it.
	RealizeYield(ctx context.Context) (vault.Amount, error)
	// WithdrawYield moves realized yield to recipient.
	WithdrawYield(ctx context.Context, amount vault.Amount, recipient string) error

	// Accrue asks the venue to book interest up to now.
	Accrue(ctx context.Context) error
	TotalValue(ctx context.Context) (vault.Amount, error)
}

// PrincipalReader reports the principal a vault has committed to its strategy.
type PrincipalReader interface {
	TotalPrincipal(ctx context.Context, vaultID uuid.UUID) (vault.Amount, error)
}

// PrincipalFunc adapts a function to PrincipalReader.
type PrincipalFunc func(ctx context.Context, vaultID uuid.UUID) (vault.Amount, error)

func (f PrincipalFunc) TotalPrincipal(ctx context.Context, vaultID uuid.UUID) (vault.Amount, error) {
	return f(ctx, vaultID)
}

// Account returns the custody account name for a strategy id.
func Account(id uuid.UUID) string { return "strategy:" + id.String() }
