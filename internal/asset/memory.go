package asset

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

// MemoryToken keeps balances in process memory.
type MemoryToken struct {
	symbol string

	mu         sync.Mutex
	balances   map[string]vault.Amount
	allowances map[string]vault.Amount
}

var (
	_ Token  = (*MemoryToken)(nil)
	_ Minter = (*MemoryToken)(nil)
)

func NewMemoryToken(symbol string) *MemoryToken {
	return &MemoryToken{
		symbol:     strings.ToUpper(strings.TrimSpace(symbol)),
		balances:   map[string]vault.Amount{},
		allowances: map[string]vault.Amount{},
	}
}

func (t *MemoryToken) Symbol() string { return t.symbol }

func (t *MemoryToken) BalanceOf(_ context.Context, account string) (vault.Amount, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance(account), nil
}

func (t *MemoryToken) Mint(_ context.Context, account string, amount vault.Amount) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[account] = t.balance(account).Add(amount)
	return nil
}

func (t *MemoryToken) Transfer(_ context.Context, from, to string, amount vault.Amount) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

func (t *MemoryToken) TransferFrom(_ context.Context, spender, owner, to string, amount vault.Amount) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	key := allowanceKey(owner, spender)
	allowed := t.allowanceOf(key)
	if allowed.LessThan(amount) {
		return fmt.Errorf("%w: %s allows %s to spend %s, need %s", ErrInsufficientAllowance, owner, spender, allowed, amount)
	}
	if err := t.move(owner, to, amount); err != nil {
		return err
	}
	t.allowances[key] = allowed.Sub(amount)
	return nil
}

func (t *MemoryToken) Approve(_ context.Context, owner, spender string, amount vault.Amount) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[allowanceKey(owner, spender)] = amount
	return nil
}

func (t *MemoryToken) Allowance(_ context.Context, owner, spender string) (vault.Amount, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowanceOf(allowanceKey(owner, spender)), nil
}

func (t *MemoryToken) move(from, to string, amount vault.Amount) error {
	have := t.balance(from)
	if have.LessThan(amount) {
		return fmt.Errorf("%w: %s holds %s %s, need %s", ErrInsufficientBalance, from, have, t.symbol, amount)
	}
	t.balances[from] = have.Sub(amount)
	t.balances[to] = t.balance(to).Add(amount)
	return nil
}

func (t *MemoryToken) balance(account string) vault.Amount {
	if b, ok := t.balances[account]; ok {
		return b
	}
	return vault.Zero
}

func (t *MemoryToken) allowanceOf(key string) vault.Amount {
	if a, ok := t.allowances[key]; ok {
		return a
	}
	return vault.Zero
}

func allowanceKey(owner, spender string) string { return owner + "\x00" + spender }
