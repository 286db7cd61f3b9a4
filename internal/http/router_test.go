package http

import (
	"bytes"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/yieldvault-backend/internal/access"
	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/exchange"
	"github.com/yungbote/yieldvault-backend/internal/harvester"
	httpH "github.com/yungbote/yieldvault-backend/internal/http/handlers"
	httpMW "github.com/yungbote/yieldvault-backend/internal/http/middleware"
	"github.com/yungbote/yieldvault-backend/internal/observability"
	"github.com/yungbote/yieldvault-backend/internal/vault/vaulttest"
)

type apiFixture struct {
	env    *vaulttest.Env
	router *gin.Engine
	tokens *access.Tokens
}

func newAPI(t *testing.T) apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := vaulttest.New(t)
	ex := exchange.NewFixedRateVenue("uni", env.Assets, 0, env.Clock.Now)
	require.NoError(t, ex.SetRate("DAI", "WETH", exchange.Rate{Num: types.One, Den: types.One}))
	require.NoError(t, env.WETH.Mint(env.Ctx, ex.Account(), types.NewAmount(1_000)))

	tokens, err := access.NewTokens("router-test", "yieldvault", time.Hour)
	require.NoError(t, err)
	hv := harvester.New(env.Log, env.Manager, ex, nil, harvester.Config{Now: env.Clock.Now})
	r := NewRouter(RouterConfig{
		Log:            env.Log,
		Metrics:        observability.New(0),
		AuthMiddleware: httpMW.NewAuthMiddleware(env.Log, tokens),
		VaultHandler:   httpH.NewVaultHandler(env.Manager),
		HarvestHandler: httpH.NewHarvestHandler(hv, env.Manager),
		HealthHandler:  httpH.NewHealthHandler(nil),
	})
	return apiFixture{env: env, router: r, tokens: tokens}
}

func (f apiFixture) do(t *testing.T, caller, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		tok, err := f.tokens.Issue(caller)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	code, _ := e["code"].(string)
	return code
}

func TestAPIRequiresToken(t *testing.T) {
	f := newAPI(t)
	rec := f.do(t, "", nethttp.MethodGet, "/api/vaults", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, rec.Code)

	rec = f.do(t, "", nethttp.MethodGet, "/healthcheck", nil)
	assert.Equal(t, nethttp.StatusOK, rec.Code)
}

func TestAPIDepositHarvestClaim(t *testing.T) {
	f := newAPI(t)
	base := "/api/vaults/" + f.env.Vault.ID.String()
	f.env.Fund(t, "alice", 1000)

	rec := f.do(t, "alice", nethttp.MethodPost, base+"/deposit", gin.H{"amount": "1000"})
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "1000", decode(t, rec)["minted"])

	f.env.Interest(t, 10)
	rec = f.do(t, vaulttest.Harvester, nethttp.MethodGet, base+"/harvest/quote?path=DAI,WETH", nil)
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "10", decode(t, rec)["yield"])

	rec = f.do(t, vaulttest.Harvester, nethttp.MethodPost, base+"/harvest", gin.H{
		"expected_yield": "10",
		"min_proceeds":   "10",
		"swap_path":      []string{"DAI", "WETH"},
		"deadline":       f.env.Clock.Now().Add(time.Minute),
	})
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, types.HarvestStatusSettled, decode(t, rec)["status"])

	rec = f.do(t, "alice", nethttp.MethodGet, base+"/positions/me", nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	pos := decode(t, rec)["position"].(map[string]any)
	assert.Equal(t, "10", pos["unclaimed_profit"])

	rec = f.do(t, "alice", nethttp.MethodPost, base+"/claim", nil)
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, "alice", nethttp.MethodPost, base+"/claim", nil)
	assert.Equal(t, nethttp.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "nothing_to_claim", errorCode(t, rec))

	rec = f.do(t, "alice", nethttp.MethodGet, base+"/harvests", nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	rows := decode(t, rec)["harvests"].([]any)
	require.Len(t, rows, 1)

	// a settled harvest has nothing stranded to resolve
	harvestID := rows[0].(map[string]any)["id"].(string)
	rec = f.do(t, vaulttest.Harvester, nethttp.MethodPost, base+"/harvests/"+harvestID+"/resolve", nil)
	assert.Equal(t, nethttp.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "precondition_failed", errorCode(t, rec))
	rec = f.do(t, vaulttest.Harvester, nethttp.MethodPost, base+"/harvests/nope/resolve", nil)
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_harvest_id", errorCode(t, rec))
}

func TestAPIErrorMapping(t *testing.T) {
	f := newAPI(t)
	base := "/api/vaults/" + f.env.Vault.ID.String()

	rec := f.do(t, "alice", nethttp.MethodPost, base+"/deposit", gin.H{"amount": "0"})
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_amount", errorCode(t, rec))

	rec = f.do(t, "alice", nethttp.MethodPost, base+"/pause", nil)
	assert.Equal(t, nethttp.StatusForbidden, rec.Code)

	rec = f.do(t, vaulttest.Governance, nethttp.MethodPost, base+"/pause", nil)
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())

	f.env.Fund(t, "alice", 10)
	rec = f.do(t, "alice", nethttp.MethodPost, base+"/deposit", gin.H{"amount": "10"})
	assert.Equal(t, nethttp.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "vault_paused", errorCode(t, rec))

	rec = f.do(t, "alice", nethttp.MethodGet, "/api/vaults/not-a-uuid", nil)
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_vault_id", errorCode(t, rec))

	rec = f.do(t, "alice", nethttp.MethodGet, "/api/vaults/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, nethttp.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPI(t)
	f.do(t, "alice", nethttp.MethodGet, "/api/vaults", nil)
	rec := f.do(t, "", nethttp.MethodGet, "/metrics", nil)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "yv_api_requests_total")
}
