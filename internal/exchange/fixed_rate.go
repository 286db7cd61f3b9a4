package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/yieldvault-backend/internal/asset"
	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

// Rate prices one unit of the base asset in quote units as Num/Den.
type Rate struct {
	Num vault.Amount
	Den vault.Amount
}

// FixedRateVenue settles swaps at configured pair rates against its own
// reserve account. Each hop floors its output and charges FeeBps.
type FixedRateVenue struct {
	name   string
	assets *asset.Registry
	feeBps int64
	now    func() time.Time

	mu    sync.RWMutex
	rates map[string]Rate
}

var _ Venue = (*FixedRateVenue)(nil)

func NewFixedRateVenue(name string, assets *asset.Registry, feeBps int64, now func() time.Time) *FixedRateVenue {
	if now == nil {
		now = time.Now
	}
	return &FixedRateVenue{
		name:   strings.TrimSpace(name),
		assets: assets,
		feeBps: feeBps,
		now:    now,
		rates:  map[string]Rate{},
	}
}

// Account is the reserve account that receives inputs and pays outputs.
func (v *FixedRateVenue) Account() string { return "exchange:" + v.name }

func (v *FixedRateVenue) SetRate(base, quote string, r Rate) error {
	if r.Num.Sign() <= 0 || r.Den.Sign() <= 0 {
		return fmt.Errorf("rate %s/%s must be positive", base, quote)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rates[pairKey(base, quote)] = r
	return nil
}

func (v *FixedRateVenue) Quote(_ context.Context, amountIn vault.Amount, path []string) (vault.Amount, error) {
	path, err := NormalizePath(path)
	if err != nil {
		return vault.Zero, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := amountIn
	for i := 0; i+1 < len(path); i++ {
		r, ok := v.rates[pairKey(path[i], path[i+1])]
		if !ok {
			return vault.Zero, fmt.Errorf("%w: %s->%s", ErrNoRoute, path[i], path[i+1])
		}
		out = vault.MulDivFloor(out, r.Num, r.Den)
		out = out.Sub(vault.Bps(out, v.feeBps))
	}
	return out, nil
}

func (v *FixedRateVenue) SwapExactInput(ctx context.Context, req SwapRequest) (vault.Amount, error) {
	if !req.Deadline.IsZero() && v.now().After(req.Deadline) {
		return vault.Zero, fmt.Errorf("%w: %s", ErrDeadlineExpired, req.Deadline.Format(time.RFC3339))
	}
	path, err := NormalizePath(req.Path)
	if err != nil {
		return vault.Zero, err
	}
	out, err := v.Quote(ctx, req.AmountIn, path)
	if err != nil {
		return vault.Zero, err
	}
	if out.LessThan(req.AmountOutMin) {
		return vault.Zero, fmt.Errorf("%w: quoted %s, minimum %s", ErrInsufficientOutput, out, req.AmountOutMin)
	}
	in, err := v.assets.Lookup(path[0])
	if err != nil {
		return vault.Zero, err
	}
	outTok, err := v.assets.Lookup(path[len(path)-1])
	if err != nil {
		return vault.Zero, err
	}
	reserve, err := outTok.BalanceOf(ctx, v.Account())
	if err != nil {
		return vault.Zero, err
	}
	if reserve.LessThan(out) {
		return vault.Zero, fmt.Errorf("%w: %s reserve %s, need %s", ErrInsufficientLiquid, outTok.Symbol(), reserve, out)
	}

	if err := in.Transfer(ctx, req.Sender, v.Account(), req.AmountIn); err != nil {
		return vault.Zero, fmt.Errorf("pull %s: %w", in.Symbol(), err)
	}
	if err := outTok.Transfer(ctx, v.Account(), req.Recipient, out); err != nil {
		if rErr := in.Transfer(context.WithoutCancel(ctx), v.Account(), req.Sender, req.AmountIn); rErr != nil {
			return vault.Zero, fmt.Errorf("pay %s: %w (refund failed: %v)", outTok.Symbol(), err, rErr)
		}
		return vault.Zero, fmt.Errorf("pay %s: %w", outTok.Symbol(), err)
	}
	return out, nil
}

func pairKey(base, quote string) string {
	return strings.ToUpper(strings.TrimSpace(base)) + "/" + strings.ToUpper(strings.TrimSpace(quote))
}
