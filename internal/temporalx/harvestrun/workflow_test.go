package harvestrun

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

type stubActivities struct {
	quote      QuoteResult
	outcome    HarvestOutcome
	harvestErr error
	harvests   []HarvestInput
}

func newEnv(t *testing.T, s *stubActivities) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	env.RegisterActivityWithOptions(func(ctx context.Context, in QuoteInput) (QuoteResult, error) {
		return s.quote, nil
	}, activity.RegisterOptions{Name: ActivityQuote})
	env.RegisterActivityWithOptions(func(ctx context.Context, in HarvestInput) (HarvestOutcome, error) {
		s.harvests = append(s.harvests, in)
		return s.outcome, s.harvestErr
	}, activity.RegisterOptions{Name: ActivityHarvest})
	return env
}

func settledStub() *stubActivities {
	return &stubActivities{
		quote:   QuoteResult{Yield: types.NewAmount(10), Proceeds: types.NewAmount(1000), Path: []string{"DAI", "WETH"}},
		outcome: HarvestOutcome{Status: types.HarvestStatusSettled, ActualYield: types.NewAmount(10), Proceeds: types.NewAmount(1000)},
	}
}

func TestWorkflowHarvestsWithSlippageFloor(t *testing.T) {
	s := settledStub()
	env := newEnv(t, s)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.SetStartTime(start)

	env.ExecuteWorkflow(WorkflowName, Params{VaultID: uuid.New(), SlippageBps: 50})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var sum Summary
	require.NoError(t, env.GetWorkflowResult(&sum))
	assert.Equal(t, 1, sum.Runs)
	assert.Equal(t, 1, sum.Settled)
	assert.Equal(t, "1000", sum.Proceeds.String())

	require.Len(t, s.harvests, 1)
	in := s.harvests[0]
	assert.Equal(t, "10", in.ExpectedYield.String())
	assert.Equal(t, "995", in.MinProceeds.String())
	assert.Equal(t, []string{"DAI", "WETH"}, in.SwapPath)
	assert.True(t, in.Deadline.Equal(start.Add(defaultDeadlineWindow)), "deadline %s", in.Deadline)
}

func TestWorkflowSkipsWithoutYield(t *testing.T) {
	s := settledStub()
	s.quote = QuoteResult{Yield: types.Zero, Proceeds: types.Zero}
	env := newEnv(t, s)

	env.ExecuteWorkflow(WorkflowName, Params{VaultID: uuid.New()})
	require.NoError(t, env.GetWorkflowError())
	var sum Summary
	require.NoError(t, env.GetWorkflowResult(&sum))
	assert.Equal(t, 1, sum.Skipped)
	assert.Empty(t, s.harvests)
}

func TestWorkflowSkipsBelowMinYield(t *testing.T) {
	s := settledStub()
	env := newEnv(t, s)

	env.ExecuteWorkflow(WorkflowName, Params{VaultID: uuid.New(), MinYield: types.NewAmount(11)})
	require.NoError(t, env.GetWorkflowError())
	assert.Empty(t, s.harvests)
}

func TestWorkflowSingleRunSurfacesFailure(t *testing.T) {
	s := settledStub()
	s.harvestErr = temporal.NewNonRetryableApplicationError("too little out", "slippage_exceeded", nil)
	env := newEnv(t, s)

	env.ExecuteWorkflow(WorkflowName, Params{VaultID: uuid.New()})
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Equal(t, "slippage_exceeded", ErrorType(err))
	assert.Len(t, s.harvests, 1)
}

func TestWorkflowScheduledLoopCountsFailures(t *testing.T) {
	s := settledStub()
	s.harvestErr = temporal.NewNonRetryableApplicationError("too little out", "slippage_exceeded", nil)
	env := newEnv(t, s)

	env.ExecuteWorkflow(WorkflowName, Params{VaultID: uuid.New(), Interval: time.Hour, MaxRuns: 3})
	require.NoError(t, env.GetWorkflowError())
	var sum Summary
	require.NoError(t, env.GetWorkflowResult(&sum))
	assert.Equal(t, 3, sum.Runs)
	assert.Equal(t, 3, sum.Failed)
	assert.Contains(t, sum.LastErr, "too little out")
	assert.Len(t, s.harvests, 3)
}

func TestWorkflowRejectsBadParams(t *testing.T) {
	env := newEnv(t, settledStub())
	env.ExecuteWorkflow(WorkflowName, Params{})
	assert.Equal(t, "invalid_input", ErrorType(env.GetWorkflowError()))

	env = newEnv(t, settledStub())
	env.ExecuteWorkflow(WorkflowName, Params{VaultID: uuid.New(), SlippageBps: 10_001})
	assert.Equal(t, "invalid_input", ErrorType(env.GetWorkflowError()))
}
