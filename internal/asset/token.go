// Package asset models fungible assets held in custody accounts.
package asset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrUnknownAsset          = errors.New("unknown asset")
)

// Token is a fungible asset with account balances and spending allowances.
type Token interface {
	Symbol() string
	BalanceOf(ctx context.Context, account string) (vault.Amount, error)
	Transfer(ctx context.Context, from, to string, amount vault.Amount) error
	// TransferFrom moves amount from owner to to, spending spender's allowance.
	TransferFrom(ctx context.Context, spender, owner, to string, amount vault.Amount) error
	Approve(ctx context.Context, owner, spender string, amount vault.Amount) error
	Allowance(ctx context.Context, owner, spender string) (vault.Amount, error)
}

// Minter is implemented by tokens whose supply can be created locally (dev and test).
type Minter interface {
	Mint(ctx context.Context, account string, amount vault.Amount) error
}

// Registry resolves tokens by symbol.
type Registry struct {
	tokens map[string]Token
}

func NewRegistry(tokens ...Token) *Registry {
	r := &Registry{tokens: map[string]Token{}}
	for _, t := range tokens {
		r.Register(t)
	}
	return r
}

func (r *Registry) Register(t Token) {
	if t == nil {
		return
	}
	r.tokens[strings.ToUpper(strings.TrimSpace(t.Symbol()))] = t
}

func (r *Registry) Lookup(symbol string) (Token, error) {
	if r != nil {
		if t, ok := r.tokens[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
}

func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.tokens))
	for s := range r.tokens {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func validAmount(amount vault.Amount) error {
	if amount.Sign() < 0 || !amount.IsInteger() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return nil
}
