package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

type stubStrategy struct{ id uuid.UUID }

func (s stubStrategy) ID() uuid.UUID   { return s.id }
func (s stubStrategy) Account() string { return Account(s.id) }

func (stubStrategy) DepositPrincipal(context.Context, vault.Amount) error { return nil }

func (stubStrategy) WithdrawPrincipal(context.Context, vault.Amount) error { return nil }

func (stubStrategy) AccruedYield(context.Context) (vault.Amount, error) { return vault.Zero, nil }

func (stubStrategy) RealizeYield(context.Context) (vault.Amount, error) { return vault.Zero, nil }

func (stubStrategy) WithdrawYield(context.Context, vault.Amount, string) error { return nil }

func (stubStrategy) Accrue(context.Context) error { return nil }

func (stubStrategy) TotalValue(context.Context) (vault.Amount, error) { return vault.Zero, nil }

func TestRegistryResolveCachesByID(t *testing.T) {
	builds := 0
	r := NewRegistry()
	r.Register("Lending", func(binding Binding) (Strategy, error) {
		builds++
		return stubStrategy{id: binding.Row.ID}, nil
	})

	row := vault.Strategy{ID: uuid.New(), Kind: "lending"}
	first, err := r.Resolve(Binding{Row: row})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := r.Resolve(Binding{Row: row})
	if err != nil {
		t.Fatalf("Resolve (cached): %v", err)
	}
	if first.ID() != second.ID() || builds != 1 {
		t.Fatalf("expected one build, got %d", builds)
	}
	if got := r.Kinds(); len(got) != 1 || got[0] != "lending" {
		t.Fatalf("Kinds: %v", got)
	}
}

func TestRegistryResolveErrors(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Resolve(Binding{Row: vault.Strategy{ID: uuid.New(), Kind: "amm"}}); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	boom := errors.New("no venue")
	r.Register("lending", func(Binding) (Strategy, error) { return nil, boom })
	if _, err := r.Resolve(Binding{Row: vault.Strategy{ID: uuid.New(), Kind: "lending"}}); !errors.Is(err, boom) {
		t.Fatalf("expected factory error, got %v", err)
	}
}

func TestAccountNaming(t *testing.T) {
	id := uuid.MustParse("7b0f3c8e-3a6c-4f7e-9f57-0d3f6e3b2a11")
	if got := Account(id); got != "strategy:7b0f3c8e-3a6c-4f7e-9f57-0d3f6e3b2a11" {
		t.Fatalf("Account: %s", got)
	}
}
