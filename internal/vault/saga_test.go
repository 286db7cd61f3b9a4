package vault_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dataagg "github.com/yungbote/yieldvault-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/dbctx"
	"github.com/yungbote/yieldvault-backend/internal/vault/vaulttest"
)

func sagaRuns(t *testing.T, e *vaulttest.Env, status string) []*types.SagaRun {
	t.Helper()
	rows, err := e.Repos.SagaRuns.ListByStatus(dbctx.Context{Ctx: e.Ctx}, []string{status}, 0)
	require.NoError(t, err)
	return rows
}

func actionStatuses(t *testing.T, e *vaulttest.Env, sagaID uuid.UUID) []string {
	t.Helper()
	rows, err := e.Repos.SagaActions.ListBySagaDesc(dbctx.Context{Ctx: e.Ctx}, sagaID)
	require.NoError(t, err)
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Status)
	}
	return out
}

func newSaga(e *vaulttest.Env) domainagg.SagaAggregate {
	return dataagg.NewSagaAggregate(dataagg.BaseDeps{DB: e.DB, Log: e.Log, Repos: e.Repos, Now: e.Clock.Now})
}

// crashed journals steps as an interrupted process would have left them.
func crashed(t *testing.T, e *vaulttest.Env, op string, steps ...map[string]any) (uuid.UUID, []uuid.UUID) {
	t.Helper()
	saga := newSaga(e)
	run, err := saga.StartRun(e.Ctx, domainagg.StartSagaInput{VaultID: e.Vault.ID, Op: op})
	require.NoError(t, err)
	var ids []uuid.UUID
	for _, st := range steps {
		kind, _ := st["kind"].(string)
		delete(st, "kind")
		payload, err := json.Marshal(st)
		require.NoError(t, err)
		a, err := saga.AppendAction(e.Ctx, domainagg.AppendSagaActionInput{SagaID: run.ID, Kind: kind, Payload: payload})
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	return run.ID, ids
}

func TestSagaJournalFollowsOperations(t *testing.T) {
	e := vaulttest.New(t)
	e.Deposit(t, "alice", 100)

	ok := sagaRuns(t, e, types.SagaStatusSucceeded)
	require.Len(t, ok, 1)
	assert.Equal(t, "deposit", ok[0].Op)
	// pull, idle transfer superseded by the supplied position
	assert.Equal(t, []string{types.SagaActionApplied, types.SagaActionSuperseded, types.SagaActionApplied}, actionStatuses(t, e, ok[0].ID))

	e.Venue.RejectSupply(true)
	e.Fund(t, "bob", 50)
	_, err := e.Manager.Deposit(e.Ctx, e.Vault.ID, "bob", amt(50))
	requireCode(t, err, domainagg.CodeDepositRejected)

	undone := sagaRuns(t, e, types.SagaStatusCompensated)
	require.Len(t, undone, 1)
	assert.Contains(t, undone[0].Error, "deposit")
	assert.Equal(t, []string{types.SagaActionSkipped, types.SagaActionCompensated, types.SagaActionCompensated}, actionStatuses(t, e, undone[0].ID))
	assert.Empty(t, sagaRuns(t, e, types.SagaStatusRunning))

	rep, err := e.Manager.Recover(e.Ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, rep.Compensated)
	assert.Empty(t, rep.NeedsOperator)
}

func TestRecoverUndoesInterruptedTransfer(t *testing.T) {
	e := vaulttest.New(t)
	e.Fund(t, "alice", 50)

	runID, actions := crashed(t, e, "deposit", map[string]any{
		"kind": types.SagaKindTransfer, "name": "refund alice", "asset": "DAI",
		"from": e.Account(), "to": "alice", "amount": "50",
	})
	require.NoError(t, e.DAI.Transfer(e.Ctx, "alice", e.Account(), amt(50)))
	require.NoError(t, newSaga(e).MarkAction(e.Ctx, actions[0], types.SagaActionApplied, ""))

	rep, err := e.Manager.Recover(e.Ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{runID}, rep.Compensated)
	assert.Empty(t, rep.NeedsOperator)
	assert.Equal(t, "50", vaulttest.Balance(t, e.DAI, "alice").String())
	assert.Equal(t, "0", vaulttest.Balance(t, e.DAI, e.Account()).String())
	assert.Equal(t, []string{types.SagaActionCompensated}, actionStatuses(t, e, runID))

	rep, err = e.Manager.Recover(e.Ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, rep.Compensated)
}

func TestRecoverResuppliesRealizedYield(t *testing.T) {
	e := vaulttest.New(t)
	e.Deposit(t, "alice", 1000)
	e.Interest(t, 10)

	runID, actions := crashed(t, e, "settle", map[string]any{
		"kind": types.SagaKindResupply, "name": "resupply realized yield",
		"strategy_id": e.StrategyID.String(), "amount": "0", "baseline": "0",
	})
	require.NoError(t, e.Venue.Redeem(e.Ctx, e.StrategyAccount(), amt(10)))
	require.NoError(t, newSaga(e).MarkAction(e.Ctx, actions[0], types.SagaActionApplied, ""))
	assert.Equal(t, "1000", e.VenuePosition(t).String())

	rep, err := e.Manager.Recover(e.Ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{runID}, rep.Compensated)
	assert.Equal(t, "1010", e.VenuePosition(t).String())
	assert.Equal(t, "0", vaulttest.Balance(t, e.DAI, e.StrategyAccount()).String())
}

func TestRecoverFlagsUnknownOutcome(t *testing.T) {
	e := vaulttest.New(t)
	e.Fund(t, "alice", 50)

	runID, _ := crashed(t, e, "deposit", map[string]any{
		"kind": types.SagaKindTransfer, "name": "refund alice", "asset": "DAI",
		"from": e.Account(), "to": "alice", "amount": "50",
	})

	rep, err := e.Manager.Recover(e.Ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, rep.Compensated)
	assert.Equal(t, []uuid.UUID{runID}, rep.NeedsOperator)
	// nothing moved on a guess
	assert.Equal(t, "50", vaulttest.Balance(t, e.DAI, "alice").String())

	failed := sagaRuns(t, e, types.SagaStatusFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Error, "interrupted")
	assert.Equal(t, []string{types.SagaActionPending}, actionStatuses(t, e, runID))
}
