package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/yieldvault-backend/internal/asset"
	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

func newVenue(t *testing.T, now time.Time) (*FixedRateVenue, *asset.MemoryToken, *asset.MemoryToken) {
	t.Helper()
	dai, weth := asset.NewMemoryToken("DAI"), asset.NewMemoryToken("WETH")
	v := NewFixedRateVenue("uni", asset.NewRegistry(dai, weth), 30, func() time.Time { return now })
	// 1 DAI = 1/2000 WETH in base units scaled the same.
	if err := v.SetRate("DAI", "WETH", Rate{Num: vault.NewAmount(1), Den: vault.NewAmount(2000)}); err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	if err := weth.Mint(context.Background(), v.Account(), vault.NewAmount(1_000_000)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return v, dai, weth
}

func TestFixedRateQuoteAppliesRateAndFee(t *testing.T) {
	v, _, _ := newVenue(t, time.Now())
	out, err := v.Quote(context.Background(), vault.NewAmount(20_000_000), []string{"dai", "weth"})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	// 20_000_000/2000 = 10_000, fee 30bps = 30.
	if !out.Equal(vault.NewAmount(9_970)) {
		t.Fatalf("quote: want=9970 got=%s", out)
	}
	if _, err := v.Quote(context.Background(), vault.One, []string{"weth", "dai"}); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
	if _, err := v.Quote(context.Background(), vault.One, []string{"dai"}); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestFixedRateSwapSettlesOrLeavesBalances(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	v, dai, weth := newVenue(t, now)
	_ = dai.Mint(ctx, "harvester", vault.NewAmount(20_000_000))

	_, err := v.SwapExactInput(ctx, SwapRequest{
		AmountIn:     vault.NewAmount(20_000_000),
		Path:         []string{"DAI", "WETH"},
		AmountOutMin: vault.NewAmount(9_971),
		Deadline:     now.Add(time.Minute),
		Sender:       "harvester",
		Recipient:    "harvester",
	})
	if !errors.Is(err, ErrInsufficientOutput) {
		t.Fatalf("expected ErrInsufficientOutput, got %v", err)
	}
	if b, _ := dai.BalanceOf(ctx, "harvester"); !b.Equal(vault.NewAmount(20_000_000)) {
		t.Fatalf("failed swap moved input: %s", b)
	}

	_, err = v.SwapExactInput(ctx, SwapRequest{
		AmountIn: vault.NewAmount(1), Path: []string{"DAI", "WETH"},
		Deadline: now.Add(-time.Second), Sender: "harvester", Recipient: "harvester",
	})
	if !errors.Is(err, ErrDeadlineExpired) {
		t.Fatalf("expected ErrDeadlineExpired, got %v", err)
	}

	out, err := v.SwapExactInput(ctx, SwapRequest{
		AmountIn:     vault.NewAmount(20_000_000),
		Path:         []string{"DAI", "WETH"},
		AmountOutMin: vault.NewAmount(9_970),
		Deadline:     now,
		Sender:       "harvester",
		Recipient:    "vault:1",
	})
	if err != nil {
		t.Fatalf("SwapExactInput: %v", err)
	}
	if got, _ := weth.BalanceOf(ctx, "vault:1"); !got.Equal(out) || !out.Equal(vault.NewAmount(9_970)) {
		t.Fatalf("recipient balance=%s out=%s", got, out)
	}
}

func TestFixedRateSwapChecksReserve(t *testing.T) {
	ctx := context.Background()
	v, dai, _ := newVenue(t, time.Now())
	_ = dai.Mint(ctx, "whale", vault.NewAmount(10_000_000_000))
	_, err := v.SwapExactInput(ctx, SwapRequest{
		AmountIn: vault.NewAmount(10_000_000_000), Path: []string{"DAI", "WETH"},
		Sender: "whale", Recipient: "whale",
	})
	if !errors.Is(err, ErrInsufficientLiquid) {
		t.Fatalf("expected ErrInsufficientLiquid, got %v", err)
	}
	if b, _ := dai.BalanceOf(ctx, "whale"); !b.Equal(vault.NewAmount(10_000_000_000)) {
		t.Fatalf("input should be untouched, got %s", b)
	}
}
