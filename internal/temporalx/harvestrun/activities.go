package harvestrun

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	"github.com/yungbote/yieldvault-backend/internal/harvester"
	"github.com/yungbote/yieldvault-backend/internal/observability"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
	"github.com/yungbote/yieldvault-backend/internal/vault"
)

// Activities bind the harvester to the worker. Caller is the identity the
// worker harvests as; it must be the vault's registered harvester.
type Activities struct {
	Log       *logger.Logger
	Harvester harvester.Service
	Metrics   *observability.Metrics
	Caller    string
}

func (a *Activities) Quote(ctx context.Context, in QuoteInput) (QuoteResult, error) {
	if err := a.ready(); err != nil {
		return QuoteResult{}, err
	}
	start := time.Now()
	q, err := a.Harvester.Quote(ctx, in.VaultID, in.SwapPath)
	a.observe(ActivityQuote, err, start)
	if err != nil {
		return QuoteResult{}, classify(err)
	}
	return QuoteResult{Yield: q.Yield, Proceeds: q.Proceeds, Path: q.Path}, nil
}

func (a *Activities) Harvest(ctx context.Context, in HarvestInput) (HarvestOutcome, error) {
	if err := a.ready(); err != nil {
		return HarvestOutcome{}, err
	}
	start := time.Now()
	res, err := a.Harvester.Harvest(ctx, harvester.Request{
		VaultID:       in.VaultID,
		Caller:        a.Caller,
		ExpectedYield: in.ExpectedYield,
		MinProceeds:   in.MinProceeds,
		SwapPath:      in.SwapPath,
		Deadline:      in.Deadline,
	})
	a.observe(ActivityHarvest, err, start)
	out := HarvestOutcome{
		HarvestID:   res.HarvestID,
		Status:      res.Status,
		ActualYield: res.ActualYield,
		Proceeds:    res.Proceeds,
		Distributed: res.Distributed,
	}
	if err != nil {
		if a.Log != nil {
			a.Log.Warn("Harvest activity failed",
				"vault_id", in.VaultID.String(), "status", res.Status, "attempt", activity.GetInfo(ctx).Attempt, "error", err)
		}
		return out, classify(err)
	}
	return out, nil
}

func (a *Activities) ready() error {
	if a == nil || a.Harvester == nil || strings.TrimSpace(a.Caller) == "" {
		return temporal.NewNonRetryableApplicationError("harvestrun: activity not configured", "misconfigured", nil)
	}
	return nil
}

func (a *Activities) observe(name string, err error, start time.Time) {
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	a.Metrics.ObserveActivity(name, status, time.Since(start))
}

// classify lets Temporal retry transient failures only. The error type carries
// the domain code so workflows can branch on it.
func classify(err error) error {
	var comp *vault.CompensationError
	if errors.As(err, &comp) {
		return temporal.NewNonRetryableApplicationError(err.Error(), "compensation_failed", err)
	}
	code := domainagg.CodeOf(err)
	switch code {
	case domainagg.CodeConflict, domainagg.CodeRetryable, domainagg.CodeReentrancy,
		domainagg.CodeExternalCallFailed, domainagg.CodeStrategyWithdrawFailed:
		return temporal.NewApplicationErrorWithCause(err.Error(), string(code), err)
	case "":
		return temporal.NewApplicationErrorWithCause(err.Error(), "internal", err)
	default:
		return temporal.NewNonRetryableApplicationError(err.Error(), string(code), err)
	}
}

// ErrorType returns the domain code carried by an activity failure.
func ErrorType(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Type()
	}
	return fmt.Sprintf("%T", err)
}
