package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/yieldvault-backend/internal/asset"
	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	"github.com/yungbote/yieldvault-backend/internal/exchange"
	"github.com/yungbote/yieldvault-backend/internal/strategy"
)

type (
	Error     = domainagg.Error
	ErrorCode = domainagg.ErrorCode
)

// Sentinels for errors.Is. Every error returned by Manager is a *Error.
var (
	ErrInvalidInput           = sentinel(domainagg.CodeValidation)
	ErrInvalidAmount          = sentinel(domainagg.CodeInvalidAmount)
	ErrUnauthorized           = sentinel(domainagg.CodeUnauthorized)
	ErrNotFound               = sentinel(domainagg.CodeNotFound)
	ErrConflict               = sentinel(domainagg.CodeConflict)
	ErrPreconditionFailed     = sentinel(domainagg.CodePreconditionFailed)
	ErrInsufficientBalance    = sentinel(domainagg.CodeInsufficientBalance)
	ErrInsufficientLiquidity  = sentinel(domainagg.CodeInsufficientLiquidity)
	ErrStrategyWithdrawFailed = sentinel(domainagg.CodeStrategyWithdrawFailed)
	ErrDepositRejected        = sentinel(domainagg.CodeDepositRejected)
	ErrSlippageExceeded       = sentinel(domainagg.CodeSlippageExceeded)
	ErrYieldMismatch          = sentinel(domainagg.CodeYieldMismatch)
	ErrDeadlineExpired        = sentinel(domainagg.CodeDeadlineExpired)
	ErrExternalCallFailed     = sentinel(domainagg.CodeExternalCallFailed)
	ErrVaultPaused            = sentinel(domainagg.CodeVaultPaused)
	ErrNoStrategy             = sentinel(domainagg.CodeNoStrategy)
	ErrNothingToClaim         = sentinel(domainagg.CodeNothingToClaim)
	ErrReentrancy             = sentinel(domainagg.CodeReentrancy)
)

func sentinel(code ErrorCode) error { return domainagg.NewError(code, "", "", nil) }

func fail(code ErrorCode, op, format string, args ...any) error {
	return domainagg.NewError(code, op, fmt.Sprintf(format, args...), nil)
}

// CompensationError reports a failed operation whose rollback did not fully
// complete. Cause is the original failure.
type CompensationError struct {
	Op       string
	Cause    error
	Failures []error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("%s: %v (compensation failed: %v)", e.Op, e.Cause, errors.Join(e.Failures...))
}

func (e *CompensationError) Unwrap() error { return e.Cause }

// External classifies a collaborator failure. Errors that already carry a code
// pass through untouched.
func External(op string, err error) error {
	if err == nil {
		return nil
	}
	var coded *Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, asset.ErrInsufficientBalance), errors.Is(err, asset.ErrInsufficientAllowance):
		return domainagg.Wrap(domainagg.CodeInsufficientBalance, op, err)
	case errors.Is(err, asset.ErrInvalidAmount):
		return domainagg.Wrap(domainagg.CodeInvalidAmount, op, err)
	case errors.Is(err, strategy.ErrDepositRejected):
		return domainagg.Wrap(domainagg.CodeDepositRejected, op, err)
	case errors.Is(err, strategy.ErrInsufficientLiquidity):
		return domainagg.Wrap(domainagg.CodeInsufficientLiquidity, op, err)
	case errors.Is(err, exchange.ErrInsufficientOutput):
		return domainagg.Wrap(domainagg.CodeSlippageExceeded, op, err)
	case errors.Is(err, exchange.ErrDeadlineExpired):
		return domainagg.Wrap(domainagg.CodeDeadlineExpired, op, err)
	case errors.Is(err, exchange.ErrInvalidPath), errors.Is(err, exchange.ErrNoRoute):
		return domainagg.Wrap(domainagg.CodeValidation, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domainagg.Wrap(domainagg.CodeRetryable, op, err)
	default:
		return domainagg.Wrap(domainagg.CodeExternalCallFailed, op, err)
	}
}

// statusOf labels err for metrics and logs.
func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	if code := domainagg.CodeOf(err); code != "" {
		return string(code)
	}
	return string(domainagg.CodeInternal)
}
