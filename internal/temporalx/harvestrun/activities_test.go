package harvestrun

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/exchange"
	"github.com/yungbote/yieldvault-backend/internal/harvester"
	"github.com/yungbote/yieldvault-backend/internal/vault"
	"github.com/yungbote/yieldvault-backend/internal/vault/vaulttest"
)

func activityEnv(t *testing.T) (*vaulttest.Env, *testsuite.TestActivityEnvironment) {
	t.Helper()
	e := vaulttest.New(t)
	ex := exchange.NewFixedRateVenue("uni", e.Assets, 0, e.Clock.Now)
	require.NoError(t, ex.SetRate("DAI", "WETH", exchange.Rate{Num: types.One, Den: types.One}))
	require.NoError(t, e.WETH.Mint(e.Ctx, ex.Account(), types.NewAmount(1_000_000)))

	acts := &Activities{
		Log:       e.Log,
		Harvester: harvester.New(e.Log, e.Manager, ex, nil, harvester.Config{Now: e.Clock.Now}),
		Caller:    vaulttest.Harvester,
	}
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivityWithOptions(acts.Quote, activity.RegisterOptions{Name: ActivityQuote})
	env.RegisterActivityWithOptions(acts.Harvest, activity.RegisterOptions{Name: ActivityHarvest})
	return e, env
}

func TestActivitiesQuoteThenHarvest(t *testing.T) {
	e, env := activityEnv(t)
	e.Deposit(t, "alice", 1000)
	e.Interest(t, 10)

	val, err := env.ExecuteActivity(ActivityQuote, QuoteInput{VaultID: e.Vault.ID})
	require.NoError(t, err)
	var q QuoteResult
	require.NoError(t, val.Get(&q))
	assert.Equal(t, "10", q.Yield.String())
	assert.Equal(t, "10", q.Proceeds.String())

	val, err = env.ExecuteActivity(ActivityHarvest, HarvestInput{
		VaultID:       e.Vault.ID,
		ExpectedYield: q.Yield,
		MinProceeds:   q.Proceeds,
		SwapPath:      q.Path,
		Deadline:      e.Clock.Now().Add(time.Minute),
	})
	require.NoError(t, err)
	var out HarvestOutcome
	require.NoError(t, val.Get(&out))
	assert.Equal(t, types.HarvestStatusSettled, out.Status)
	assert.Equal(t, "10", e.Position(t, "alice").Position.UnclaimedProfit.String())
}

func TestActivitiesSlippageIsNotRetried(t *testing.T) {
	e, env := activityEnv(t)
	e.Deposit(t, "alice", 1000)
	e.Interest(t, 10)

	_, err := env.ExecuteActivity(ActivityHarvest, HarvestInput{
		VaultID:       e.Vault.ID,
		ExpectedYield: types.NewAmount(10),
		MinProceeds:   types.NewAmount(11),
		Deadline:      e.Clock.Now().Add(time.Minute),
	})
	require.Error(t, err)
	assert.Equal(t, string(domainagg.CodeSlippageExceeded), ErrorType(err))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err       error
		typ       string
		retryable bool
	}{
		{domainagg.Errorf(domainagg.CodeConflict, "x", "busy"), "conflict", true},
		{domainagg.Errorf(domainagg.CodeExternalCallFailed, "x", "rpc"), "external_call_failed", true},
		{domainagg.Errorf(domainagg.CodeYieldMismatch, "x", "off"), "yield_mismatch", false},
		{&vault.CompensationError{Op: "harvest", Cause: errors.New("boom")}, "compensation_failed", false},
		{errors.New("plain"), "internal", true},
	}
	for _, tc := range cases {
		got := classify(tc.err)
		assert.Equal(t, tc.typ, ErrorType(got), "%v", tc.err)
		var appErr interface{ NonRetryable() bool }
		require.ErrorAs(t, got, &appErr)
		assert.Equal(t, !tc.retryable, appErr.NonRetryable(), "%v", tc.err)
	}
}
