package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	"github.com/yungbote/yieldvault-backend/internal/platform/apierr"
	"github.com/yungbote/yieldvault-backend/internal/platform/ctxutil"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domainagg.Errorf(domainagg.CodeInvalidAmount, "deposit", "zero"), http.StatusBadRequest, "invalid_amount"},
		{domainagg.Errorf(domainagg.CodeUnauthorized, "pause", "no"), http.StatusForbidden, "unauthorized"},
		{domainagg.Errorf(domainagg.CodeNotFound, "state", "gone"), http.StatusNotFound, "not_found"},
		{domainagg.Errorf(domainagg.CodeConflict, "deposit", "stale"), http.StatusConflict, "conflict"},
		{domainagg.Errorf(domainagg.CodeVaultPaused, "deposit", "paused"), http.StatusPreconditionFailed, "vault_paused"},
		{domainagg.Errorf(domainagg.CodeSlippageExceeded, "harvest", "low"), http.StatusUnprocessableEntity, "slippage_exceeded"},
		{domainagg.Wrap(domainagg.CodeDepositRejected, "deposit", errors.New("venue")), http.StatusUnprocessableEntity, "deposit_rejected"},
		{domainagg.Wrap(domainagg.CodeStrategyWithdrawFailed, "withdraw", errors.New("venue")), http.StatusBadGateway, "strategy_withdraw_failed"},
		{apierr.New(http.StatusUnauthorized, "missing_token", nil), http.StatusUnauthorized, "missing_token"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := StatusFor(tc.err)
		if status != tc.status || code != tc.code {
			t.Fatalf("StatusFor(%v): want=%d/%s got=%d/%s", tc.err, tc.status, tc.code, status, code)
		}
	}
}

func TestFailHidesInternalMessageAndCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodPost, "/api/vaults/x/deposit", nil)
	c.Request = req.WithContext(ctxutil.WithTraceData(req.Context(), &ctxutil.TraceData{RequestID: "req-7"}))

	Fail(c, errors.New("pq: relation vaults does not exist"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error.Message != "internal error" || env.Error.Code != "internal" || env.Error.RequestID != "req-7" {
		t.Fatalf("envelope: %+v", env.Error)
	}
}
