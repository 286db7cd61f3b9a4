package harvestrun

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

const (
	defaultDeadlineWindow = 10 * time.Minute
	continueRunLimit      = 500
	continueHistoryLimit  = 15000
)

// Workflow quotes a vault's accrued yield and harvests it with a proceeds floor
// of quote minus SlippageBps. With an Interval it repeats until MaxRuns, and a
// failed run is counted rather than ending the loop.
func Workflow(ctx workflow.Context, p Params) (Summary, error) {
	if p.VaultID == uuid.Nil {
		return p.Summary, temporal.NewNonRetryableApplicationError("harvestrun: missing vault_id", "invalid_input", nil)
	}
	if p.SlippageBps < 0 || p.SlippageBps > types.BpsDenominator {
		return p.Summary, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("harvestrun: slippage_bps %d out of range", p.SlippageBps), "invalid_input", nil)
	}
	if p.DeadlineWindow <= 0 {
		p.DeadlineWindow = defaultDeadlineWindow
	}
	if p.Summary.Proceeds.IsZero() {
		p.Summary.Proceeds = types.Zero
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	})
	log := workflow.GetLogger(ctx)

	runs := 0
	for {
		runs++
		p.Summary.Runs++
		err := runOnce(ctx, &p)
		if err != nil {
			p.Summary.Failed++
			p.Summary.LastErr = err.Error()
			if p.Interval <= 0 {
				return p.Summary, err
			}
			log.Warn("Scheduled harvest failed", "vault_id", p.VaultID.String(), "type", ErrorType(err), "error", err)
		}

		if p.Interval <= 0 || (p.MaxRuns > 0 && p.Summary.Runs >= p.MaxRuns) {
			return p.Summary, nil
		}
		if err := workflow.Sleep(ctx, p.Interval); err != nil {
			return p.Summary, err
		}
		if shouldContinueAsNew(ctx, runs, continueRunLimit, continueHistoryLimit) {
			return p.Summary, workflow.NewContinueAsNewError(ctx, WorkflowName, p)
		}
	}
}

func runOnce(ctx workflow.Context, p *Params) error {
	var q QuoteResult
	if err := workflow.ExecuteActivity(ctx, ActivityQuote, QuoteInput{VaultID: p.VaultID, SwapPath: p.SwapPath}).Get(ctx, &q); err != nil {
		return err
	}
	if !types.IsPositive(q.Yield) || q.Yield.LessThan(p.MinYield) {
		p.Summary.Skipped++
		return nil
	}

	in := HarvestInput{
		VaultID:       p.VaultID,
		ExpectedYield: q.Yield,
		MinProceeds:   q.Proceeds.Sub(types.Bps(q.Proceeds, p.SlippageBps)),
		SwapPath:      q.Path,
		Deadline:      workflow.Now(ctx).Add(p.DeadlineWindow),
	}
	var out HarvestOutcome
	if err := workflow.ExecuteActivity(ctx, ActivityHarvest, in).Get(ctx, &out); err != nil {
		return err
	}
	switch out.Status {
	case types.HarvestStatusSettled:
		p.Summary.Settled++
		p.Summary.Proceeds = p.Summary.Proceeds.Add(out.Proceeds)
	default:
		p.Summary.Skipped++
	}
	return nil
}

func shouldContinueAsNew(ctx workflow.Context, runs int, maxRuns int, maxHistory int) bool {
	if maxRuns > 0 && runs >= maxRuns {
		return true
	}
	info := workflow.GetInfo(ctx)
	if info == nil || maxHistory <= 0 {
		return false
	}
	return info.GetCurrentHistoryLength() >= maxHistory
}
