package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode standardizes vault failure semantics across packages and transports.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "invalid_input"
	CodeInvalidAmount      ErrorCode = "invalid_amount"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeNotFound           ErrorCode = "not_found"
	CodeConflict           ErrorCode = "conflict"
	CodeInvariantViolation ErrorCode = "invariant_violation"
	CodePreconditionFailed ErrorCode = "precondition_failed"
	CodeRetryable          ErrorCode = "retryable"
	CodeInternal           ErrorCode = "internal"

	CodeInsufficientBalance    ErrorCode = "insufficient_balance"
	CodeInsufficientLiquidity  ErrorCode = "insufficient_liquidity"
	CodeStrategyWithdrawFailed ErrorCode = "strategy_withdraw_failed"
	CodeDepositRejected        ErrorCode = "deposit_rejected"
	CodeSlippageExceeded       ErrorCode = "slippage_exceeded"
	CodeYieldMismatch          ErrorCode = "yield_mismatch"
	CodeDeadlineExpired        ErrorCode = "deadline_expired"
	CodeExternalCallFailed     ErrorCode = "external_call_failed"
	CodeVaultPaused            ErrorCode = "vault_paused"
	CodeNoStrategy             ErrorCode = "no_strategy"
	CodeNothingToClaim         ErrorCode = "nothing_to_claim"
	CodeReentrancy             ErrorCode = "reentrancy"
)

// Error is the canonical vault error wrapper.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by code so callers can compare against sentinels
// built with NewError(code, "", "", nil).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Cause == nil && t.Code == e.Code
}

// NewError builds an error with explicit code + operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Errorf is NewError with a formatted message and no cause.
func Errorf(code ErrorCode, op, format string, args ...any) error {
	return NewError(code, op, fmt.Sprintf(format, args...), nil)
}

// Wrap annotates an existing error with error-code semantics.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// IsCode checks whether err (or the outermost wrapped *Error) carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return false
	}
	return aggErr.Code == code
}

// CodeOf extracts the error code when available.
func CodeOf(err error) ErrorCode {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return ""
	}
	return aggErr.Code
}
