package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	"github.com/yungbote/yieldvault-backend/internal/platform/apierr"
	"github.com/yungbote/yieldvault-backend/internal/vault"
)

// Fail writes err with the status its code maps to. Internal failures hide
// their message.
func Fail(c *gin.Context, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		_ = c.Error(err)
		RespondError(c, status, code, errors.New("internal error"))
		return
	}
	RespondError(c, status, code, err)
}

// StatusFor maps an error to an HTTP status and a stable code.
func StatusFor(err error) (int, string) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae.Status, ae.Code
	}
	var comp *vault.CompensationError
	if errors.As(err, &comp) {
		return http.StatusInternalServerError, "compensation_failed"
	}
	code := domainagg.CodeOf(err)
	switch code {
	case domainagg.CodeValidation, domainagg.CodeInvalidAmount:
		return http.StatusBadRequest, string(code)
	case domainagg.CodeUnauthorized:
		return http.StatusForbidden, string(code)
	case domainagg.CodeNotFound:
		return http.StatusNotFound, string(code)
	case domainagg.CodeConflict, domainagg.CodeReentrancy, domainagg.CodeRetryable:
		return http.StatusConflict, string(code)
	case domainagg.CodePreconditionFailed, domainagg.CodeVaultPaused, domainagg.CodeNoStrategy,
		domainagg.CodeNothingToClaim, domainagg.CodeDeadlineExpired:
		return http.StatusPreconditionFailed, string(code)
	case domainagg.CodeInsufficientBalance, domainagg.CodeInsufficientLiquidity,
		domainagg.CodeSlippageExceeded, domainagg.CodeYieldMismatch, domainagg.CodeDepositRejected:
		return http.StatusUnprocessableEntity, string(code)
	case domainagg.CodeStrategyWithdrawFailed, domainagg.CodeExternalCallFailed:
		return http.StatusBadGateway, string(code)
	case "":
		return http.StatusInternalServerError, string(domainagg.CodeInternal)
	default:
		return http.StatusInternalServerError, string(code)
	}
}
