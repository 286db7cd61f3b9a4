package vault

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a non-negative integer quantity in an asset's base units.
// Arithmetic never produces fractional values; division is explicit about rounding.
type Amount = decimal.Decimal

var (
	Zero = decimal.Zero
	One  = decimal.NewFromInt(1)
)

func NewAmount(v int64) Amount { return decimal.NewFromInt(v) }

// ParseAmount parses a base-unit integer string. Fractions, exponents that do
// not resolve to an integer and negative values are rejected.
func ParseAmount(raw string) (Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	if !d.IsInteger() {
		return Zero, fmt.Errorf("amount %q is not an integer", raw)
	}
	if d.Sign() < 0 {
		return Zero, fmt.Errorf("amount %q is negative", raw)
	}
	return d.Truncate(0), nil
}

// MustAmount is ParseAmount for constants and tests.
func MustAmount(raw string) Amount {
	d, err := ParseAmount(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// MulDivFloor returns floor(a*b/c). c must be positive.
func MulDivFloor(a, b, c Amount) Amount {
	q, _ := a.Mul(b).QuoRem(c, 0)
	return q
}

// MulDivCeil returns ceil(a*b/c). c must be positive.
func MulDivCeil(a, b, c Amount) Amount {
	q, r := a.Mul(b).QuoRem(c, 0)
	if r.Sign() > 0 {
		return q.Add(One)
	}
	return q
}

// BpsDenominator is one whole in basis points.
const BpsDenominator = 10_000

// Bps returns floor(a*bps/10000).
func Bps(a Amount, bps int64) Amount {
	return MulDivFloor(a, decimal.NewFromInt(bps), decimal.NewFromInt(BpsDenominator))
}

func MinAmount(a, b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func IsPositive(a Amount) bool { return a.Sign() > 0 }
