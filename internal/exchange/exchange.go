// Package exchange converts one asset into another along a route of symbols.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

var (
	ErrInvalidPath        = errors.New("invalid swap path")
	ErrNoRoute            = errors.New("no route for pair")
	ErrDeadlineExpired    = errors.New("swap deadline expired")
	ErrInsufficientOutput = errors.New("swap output below minimum")
	ErrInsufficientLiquid = errors.New("exchange reserve too small")
)

type SwapRequest struct {
	AmountIn     vault.Amount
	Path         []string
	AmountOutMin vault.Amount
	Deadline     time.Time
	// Sender pays AmountIn of Path[0]; Recipient receives Path[len-1].
	Sender    string
	Recipient string
}

// Venue swaps an exact input amount along a path.
type Venue interface {
	Quote(ctx context.Context, amountIn vault.Amount, path []string) (vault.Amount, error)
	// SwapExactInput either settles completely or leaves every balance untouched.
	SwapExactInput(ctx context.Context, req SwapRequest) (vault.Amount, error)
}

// NormalizePath upper-cases symbols and rejects paths shorter than two hops
// or with repeated adjacent symbols.
func NormalizePath(path []string) ([]string, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("%w: need at least two symbols, got %d", ErrInvalidPath, len(path))
	}
	out := make([]string, len(path))
	for i, p := range path {
		s := strings.ToUpper(strings.TrimSpace(p))
		if s == "" {
			return nil, fmt.Errorf("%w: empty symbol at %d", ErrInvalidPath, i)
		}
		if i > 0 && out[i-1] == s {
			return nil, fmt.Errorf("%w: %s repeats", ErrInvalidPath, s)
		}
		out[i] = s
	}
	return out, nil
}
