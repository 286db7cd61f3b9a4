package aggregates

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
)

// Sentinels tag failures raised inside a write body. MapError turns them into
// domain codes once the transaction has rolled back.
var (
	ErrValidation = errors.New("vault ledger validation")
	ErrInvariant  = errors.New("vault ledger invariant violation")
	ErrConflict   = errors.New("vault ledger conflict")
	ErrRetryable  = errors.New("vault ledger retryable")
)

func tagged(sentinel error, msg string) error {
	return errors.Join(sentinel, errors.New(strings.TrimSpace(msg)))
}

func ValidationError(msg string) error { return tagged(ErrValidation, msg) }
func InvariantError(msg string) error  { return tagged(ErrInvariant, msg) }
func ConflictError(msg string) error   { return tagged(ErrConflict, msg) }
func RetryableError(msg string) error  { return tagged(ErrRetryable, msg) }

var sentinelCodes = []struct {
	err  error
	code domainagg.ErrorCode
}{
	{ErrValidation, domainagg.CodeValidation},
	{ErrInvariant, domainagg.CodeInvariantViolation},
	{ErrConflict, domainagg.CodeConflict},
	{ErrRetryable, domainagg.CodeRetryable},
	{gorm.ErrRecordNotFound, domainagg.CodeNotFound},
	{gorm.ErrDuplicatedKey, domainagg.CodeConflict},
	{context.Canceled, domainagg.CodeRetryable},
	{context.DeadlineExceeded, domainagg.CodeRetryable},
}

// Postgres SQLSTATEs the ledger can hit. Check violations come from the
// non-negative balance constraints on vaults and positions.
var pgCodes = map[string]domainagg.ErrorCode{
	"23505": domainagg.CodeConflict,           // unique_violation
	"23503": domainagg.CodePreconditionFailed, // foreign_key_violation
	"23514": domainagg.CodeInvariantViolation, // check_violation
	"40001": domainagg.CodeRetryable,          // serialization_failure
	"40P01": domainagg.CodeRetryable,          // deadlock_detected
	"55P03": domainagg.CodeRetryable,          // lock_not_available
}

// sqlite reports constraint and locking failures only as text.
var messageCodes = []struct {
	fragments []string
	code      domainagg.ErrorCode
}{
	{[]string{"duplicate key", "already exists", "unique constraint failed"}, domainagg.CodeConflict},
	{[]string{"check constraint failed"}, domainagg.CodeInvariantViolation},
	{[]string{"deadlock", "serialization", "timeout", "database is locked", "temporar"}, domainagg.CodeRetryable},
}

// MapError attaches a domain code to err. Errors that already carry one pass
// through untouched; anything unrecognized is internal.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var aggErr *domainagg.Error
	if errors.As(err, &aggErr) {
		return err
	}
	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.err) {
			return domainagg.Wrap(sc.code, op, err)
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if code, ok := pgCodes[strings.TrimSpace(pgErr.Code)]; ok {
			return domainagg.Wrap(code, op, err)
		}
	}
	msg := strings.ToLower(err.Error())
	for _, mc := range messageCodes {
		for _, f := range mc.fragments {
			if strings.Contains(msg, f) {
				return domainagg.Wrap(mc.code, op, err)
			}
		}
	}
	return domainagg.Wrap(domainagg.CodeInternal, op, err)
}
