package harvester_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/events"
	"github.com/yungbote/yieldvault-backend/internal/exchange"
	"github.com/yungbote/yieldvault-backend/internal/harvester"
	"github.com/yungbote/yieldvault-backend/internal/vault"
	"github.com/yungbote/yieldvault-backend/internal/vault/vaulttest"
)

type fixture struct {
	*vaulttest.Env
	Exchange *exchange.FixedRateVenue
	Harvest  harvester.Service
}

func setup(t *testing.T, cfg harvester.Config, wrap ...func(exchange.Venue) exchange.Venue) fixture {
	t.Helper()
	e := vaulttest.New(t)
	ex := exchange.NewFixedRateVenue("uni", e.Assets, 0, e.Clock.Now)
	require.NoError(t, ex.SetRate("DAI", "WETH", exchange.Rate{Num: types.One, Den: types.One}))
	require.NoError(t, e.WETH.Mint(e.Ctx, ex.Account(), types.NewAmount(1_000_000)))

	var venue exchange.Venue = ex
	for _, w := range wrap {
		venue = w(venue)
	}
	cfg.Now = e.Clock.Now
	return fixture{Env: e, Exchange: ex, Harvest: harvester.New(e.Log, e.Manager, venue, nil, cfg)}
}

func (f fixture) request(expected, minProceeds int64) harvester.Request {
	return harvester.Request{
		VaultID:       f.Vault.ID,
		Caller:        vaulttest.Harvester,
		ExpectedYield: types.NewAmount(expected),
		MinProceeds:   types.NewAmount(minProceeds),
		SwapPath:      []string{"DAI", "WETH"},
		Deadline:      f.Clock.Now().Add(time.Hour),
	}
}

func (f fixture) harvests(t *testing.T) []*types.Harvest {
	t.Helper()
	rows, err := f.Manager.Harvests(f.Ctx, f.Vault.ID, 10)
	require.NoError(t, err)
	return rows
}

func harvesterAccount() string { return vault.HarvesterAccount(vaulttest.Harvester) }

func requireCode(t *testing.T, err error, code domainagg.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, domainagg.IsCode(err, code), "want code %s, got %v", code, err)
}

func TestHarvestCreditsDepositors(t *testing.T) {
	f := setup(t, harvester.Config{})
	f.Deposit(t, "alice", 1000)
	f.Interest(t, 10)

	q, err := f.Harvest.Quote(f.Ctx, f.Vault.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "10", q.Yield.String())
	assert.Equal(t, "10", q.Proceeds.String())
	assert.Equal(t, []string{"DAI", "WETH"}, q.Path)

	res, err := f.Harvest.Harvest(f.Ctx, f.request(10, 10))
	require.NoError(t, err)
	assert.Equal(t, types.HarvestStatusSettled, res.Status)
	assert.Equal(t, "10", res.ActualYield.String())
	assert.Equal(t, "10", res.Proceeds.String())
	assert.Equal(t, "10", res.Distributed.String())
	assert.Equal(t, "0", res.Dust.String())

	assert.Equal(t, "10", f.Position(t, "alice").Position.UnclaimedProfit.String())
	assert.Equal(t, "1000", f.State(t).Vault.TotalPrincipal.String())
	assert.Equal(t, "10", vaulttest.Balance(t, f.WETH, f.Account()).String())
	assert.Equal(t, "0", vaulttest.Balance(t, f.DAI, harvesterAccount()).String())

	y, err := f.Manager.UnderlyingYield(f.Ctx, f.Vault.ID)
	require.NoError(t, err)
	assert.Equal(t, "0", y.String())

	rows := f.harvests(t)
	require.Len(t, rows, 1)
	assert.Equal(t, types.HarvestStatusSettled, rows[0].Status)
	assert.Equal(t, res.HarvestID, rows[0].ID)
	assert.Contains(t, f.Bus.Kinds(), events.KindHarvest)

	_, err = f.Manager.Claim(f.Ctx, f.Vault.ID, "alice")
	require.NoError(t, err)
	_, err = f.Manager.Withdraw(f.Ctx, f.Vault.ID, "alice", types.NewAmount(1000))
	require.NoError(t, err)
	assert.Equal(t, "1000", vaulttest.Balance(t, f.DAI, "alice").String())
	assert.Equal(t, "10", vaulttest.Balance(t, f.WETH, "alice").String())
}

func TestHarvestSlippageLeavesStateUntouched(t *testing.T) {
	f := setup(t, harvester.Config{})
	f.Deposit(t, "alice", 600)
	f.Deposit(t, "bob", 400)
	f.Interest(t, 10)
	before := f.Snapshot(t)
	assert.Equal(t, "1010", f.VenuePosition(t).String())

	res, err := f.Harvest.Harvest(f.Ctx, f.request(10, 11))
	requireCode(t, err, domainagg.CodeSlippageExceeded)
	assert.ErrorIs(t, err, vault.ErrSlippageExceeded)
	assert.Equal(t, types.HarvestStatusCompensated, res.Status)

	assert.Equal(t, before, f.Snapshot(t))
	assert.Equal(t, "1010", f.VenuePosition(t).String())
	assert.Equal(t, "0", vaulttest.Balance(t, f.DAI, f.StrategyAccount()).String())
	assert.Equal(t, "0", vaulttest.Balance(t, f.DAI, harvesterAccount()).String())
	assert.Equal(t, "0", vaulttest.Balance(t, f.WETH, f.Account()).String())
	y, err := f.Manager.UnderlyingYield(f.Ctx, f.Vault.ID)
	require.NoError(t, err)
	assert.Equal(t, "10", y.String())

	rows := f.harvests(t)
	require.Len(t, rows, 1)
	assert.Equal(t, types.HarvestStatusCompensated, rows[0].Status)
	assert.Contains(t, f.Bus.Kinds(), events.KindHarvestFailed)

	// the yield is still there for the next attempt
	res, err = f.Harvest.Harvest(f.Ctx, f.request(10, 10))
	require.NoError(t, err)
	assert.Equal(t, "6", f.Position(t, "alice").Position.UnclaimedProfit.String())
	assert.Equal(t, "4", f.Position(t, "bob").Position.UnclaimedProfit.String())
	assert.Equal(t, types.HarvestStatusSettled, res.Status)
}

func TestHarvestDeadline(t *testing.T) {
	f := setup(t, harvester.Config{})
	f.Deposit(t, "alice", 100)
	f.Interest(t, 5)
	before := f.Snapshot(t)

	req := f.request(5, 0)
	req.Deadline = f.Clock.Now().Add(-time.Second)
	_, err := f.Harvest.Harvest(f.Ctx, req)
	requireCode(t, err, domainagg.CodeDeadlineExpired)
	assert.Equal(t, before, f.Snapshot(t))
	assert.Empty(t, f.harvests(t))

	req.Deadline = time.Time{}
	_, err = f.Harvest.Harvest(f.Ctx, req)
	requireCode(t, err, domainagg.CodeValidation)
}

func TestHarvestYieldTolerance(t *testing.T) {
	f := setup(t, harvester.Config{})
	f.Deposit(t, "alice", 1000)
	f.Interest(t, 10)
	before := f.Snapshot(t)

	_, err := f.Harvest.Harvest(f.Ctx, f.request(20, 0))
	requireCode(t, err, domainagg.CodeYieldMismatch)
	assert.Equal(t, before, f.Snapshot(t))
	assert.Equal(t, "1010", f.VenuePosition(t).String())
	assert.Equal(t, "0", vaulttest.Balance(t, f.DAI, f.StrategyAccount()).String())
	rows := f.harvests(t)
	require.Len(t, rows, 1)
	assert.Equal(t, types.HarvestStatusFailed, rows[0].Status)
	assert.Equal(t, "10", rows[0].ActualYield.String())

	tolerant := setup(t, harvester.Config{ToleranceAbs: types.NewAmount(2), ToleranceBps: 1000})
	tolerant.Deposit(t, "alice", 1000)
	tolerant.Interest(t, 10)
	// 10% of 12 floors to 1, so the absolute bound of 2 applies.
	_, err = tolerant.Harvest.Harvest(tolerant.Ctx, tolerant.request(12, 0))
	require.NoError(t, err)

	tolerant.Interest(t, 10)
	_, err = tolerant.Harvest.Harvest(tolerant.Ctx, tolerant.request(13, 0))
	requireCode(t, err, domainagg.CodeYieldMismatch)
}

func TestHarvestAfterStrategyMigration(t *testing.T) {
	f := setup(t, harvester.Config{})
	f.Deposit(t, "alice", 1000)
	f.Interest(t, 10)
	f.AddVenue("pool2")
	f.AddStrategy(t, "pool2", true)
	assert.Equal(t, "0", f.VenuePosition(t).String())

	res, err := f.Harvest.Harvest(f.Ctx, f.request(10, 10))
	require.NoError(t, err)
	assert.Equal(t, types.HarvestStatusSettled, res.Status)
	assert.Equal(t, "10", res.Proceeds.String())
	assert.Equal(t, "10", f.Position(t, "alice").Position.UnclaimedProfit.String())

	y, err := f.Manager.UnderlyingYield(f.Ctx, f.Vault.ID)
	require.NoError(t, err)
	assert.Equal(t, "0", y.String())
}

func TestHarvestWithoutYieldIsNoop(t *testing.T) {
	f := setup(t, harvester.Config{})
	f.Deposit(t, "alice", 100)
	before := f.Snapshot(t)

	res, err := f.Harvest.Harvest(f.Ctx, f.request(0, 0))
	require.NoError(t, err)
	assert.Equal(t, types.HarvestStatusNoop, res.Status)
	assert.Equal(t, "0", res.Proceeds.String())
	assert.Equal(t, before, f.Snapshot(t))

	rows := f.harvests(t)
	require.Len(t, rows, 1)
	assert.Equal(t, types.HarvestStatusNoop, rows[0].Status)
	assert.NotContains(t, f.Bus.Kinds(), events.KindHarvestFailed)
}

func TestHarvestRequestValidation(t *testing.T) {
	f := setup(t, harvester.Config{})
	f.Deposit(t, "alice", 100)
	f.Interest(t, 5)
	before := f.Snapshot(t)

	req := f.request(5, 0)
	req.SwapPath = []string{"WETH", "DAI"}
	_, err := f.Harvest.Harvest(f.Ctx, req)
	requireCode(t, err, domainagg.CodeValidation)

	req = f.request(5, 0)
	req.Caller = "alice"
	_, err = f.Harvest.Harvest(f.Ctx, req)
	requireCode(t, err, domainagg.CodeUnauthorized)

	req = f.request(5, 0)
	req.MinProceeds = types.NewAmount(-1)
	_, err = f.Harvest.Harvest(f.Ctx, req)
	requireCode(t, err, domainagg.CodeInvalidAmount)

	assert.Equal(t, before, f.Snapshot(t))
	for _, h := range f.harvests(t) {
		assert.Equal(t, types.HarvestStatusFailed, h.Status)
	}
}

func TestHarvestAllowedWhilePaused(t *testing.T) {
	f := setup(t, harvester.Config{})
	f.Deposit(t, "alice", 100)
	f.Interest(t, 5)
	_, err := f.Manager.Pause(f.Ctx, f.Vault.ID, vaulttest.Governance)
	require.NoError(t, err)

	res, err := f.Harvest.Harvest(f.Ctx, f.request(5, 5))
	require.NoError(t, err)
	assert.Equal(t, types.HarvestStatusSettled, res.Status)
	assert.True(t, res.Vault.Paused)
}

// overReporting pays the swap output but claims twice as much.
type overReporting struct{ exchange.Venue }

func (v overReporting) SwapExactInput(ctx context.Context, req exchange.SwapRequest) (types.Amount, error) {
	out, err := v.Venue.SwapExactInput(ctx, req)
	return out.Mul(types.NewAmount(2)), err
}

func TestHarvestStrandsProceedsWhenCreditFails(t *testing.T) {
	f := setup(t, harvester.Config{}, func(v exchange.Venue) exchange.Venue { return overReporting{v} })
	f.Deposit(t, "alice", 1000)
	f.Interest(t, 10)
	before := f.Snapshot(t)

	res, err := f.Harvest.Harvest(f.Ctx, f.request(10, 0))
	requireCode(t, err, domainagg.CodeInsufficientBalance)
	assert.Equal(t, types.HarvestStatusStranded, res.Status)
	assert.Equal(t, "20", res.Proceeds.String())

	assert.Equal(t, before, f.Snapshot(t))
	assert.Equal(t, "10", vaulttest.Balance(t, f.WETH, harvesterAccount()).String())
	rows := f.harvests(t)
	require.Len(t, rows, 1)
	assert.Equal(t, types.HarvestStatusStranded, rows[0].Status)
	assert.NotEmpty(t, rows[0].Error)
}

func TestResolveStrandedCreditsHeldProceeds(t *testing.T) {
	f := setup(t, harvester.Config{}, func(v exchange.Venue) exchange.Venue { return overReporting{v} })
	f.Deposit(t, "alice", 1000)
	f.Interest(t, 10)
	res, err := f.Harvest.Harvest(f.Ctx, f.request(10, 0))
	requireCode(t, err, domainagg.CodeInsufficientBalance)
	require.Equal(t, types.HarvestStatusStranded, res.Status)

	_, err = f.Manager.ResolveStranded(f.Ctx, f.Vault.ID, "alice", res.HarvestID)
	requireCode(t, err, domainagg.CodeUnauthorized)
	_, err = f.Manager.ResolveStranded(f.Ctx, f.Vault.ID, vaulttest.Harvester, uuid.New())
	requireCode(t, err, domainagg.CodeNotFound)

	// only the 10 actually held is credited, not the 20 reported
	out, err := f.Manager.ResolveStranded(f.Ctx, f.Vault.ID, vaulttest.Harvester, res.HarvestID)
	require.NoError(t, err)
	assert.Equal(t, "10", out.Distributed.String())
	assert.Equal(t, "10", f.Position(t, "alice").Position.UnclaimedProfit.String())
	assert.Equal(t, "0", vaulttest.Balance(t, f.WETH, harvesterAccount()).String())
	assert.Equal(t, "10", vaulttest.Balance(t, f.WETH, f.Account()).String())

	rows := f.harvests(t)
	require.Len(t, rows, 1)
	assert.Equal(t, types.HarvestStatusResolved, rows[0].Status)

	_, err = f.Manager.ResolveStranded(f.Ctx, f.Vault.ID, vaulttest.Harvester, res.HarvestID)
	requireCode(t, err, domainagg.CodePreconditionFailed)
}
