package aggregates

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	repotestutil "github.com/yungbote/yieldvault-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

func newSaga(t *testing.T) domainagg.SagaAggregate {
	t.Helper()
	deps := BaseDeps{DB: repotestutil.DB(t), Log: repotestutil.Logger(t)}
	return NewSagaAggregate(deps)
}

func TestSagaAppendActionSequences(t *testing.T) {
	saga := newSaga(t)
	ctx := context.Background()

	run, err := saga.StartRun(ctx, domainagg.StartSagaInput{VaultID: uuid.New(), Op: "deposit", ActorID: "alice"})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.Status != vault.SagaStatusRunning {
		t.Fatalf("status: want=running got=%s", run.Status)
	}

	for i := 1; i <= 3; i++ {
		a, err := saga.AppendAction(ctx, domainagg.AppendSagaActionInput{
			SagaID:  run.ID,
			Kind:    vault.SagaKindTransfer,
			Payload: json.RawMessage(`{"amount":"1"}`),
		})
		if err != nil {
			t.Fatalf("AppendAction %d: %v", i, err)
		}
		if a.Seq != int64(i) || a.Status != vault.SagaActionPending {
			t.Fatalf("action %d: seq=%d status=%s", i, a.Seq, a.Status)
		}
	}

	actions, err := saga.Actions(ctx, run.ID)
	if err != nil || len(actions) != 3 {
		t.Fatalf("Actions: got=%d err=%v", len(actions), err)
	}
	if actions[0].Seq != 3 {
		t.Fatalf("actions should list newest first, got seq %d", actions[0].Seq)
	}
	if err := saga.MarkAction(ctx, actions[0].ID, vault.SagaActionApplied, ""); err != nil {
		t.Fatalf("MarkAction: %v", err)
	}
	if err := saga.MarkAction(ctx, actions[0].ID, "bogus", ""); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("unknown status: expected validation, got=%v", err)
	}

	_, err = saga.AppendAction(ctx, domainagg.AppendSagaActionInput{SagaID: run.ID, Kind: vault.SagaKindTransfer, Payload: json.RawMessage(`{`)})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("bad payload: expected validation, got=%v", err)
	}
	_, err = saga.AppendAction(ctx, domainagg.AppendSagaActionInput{SagaID: uuid.New(), Kind: vault.SagaKindTransfer})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("missing run: expected not found, got=%v", err)
	}
}

func TestSagaTransitions(t *testing.T) {
	saga := newSaga(t)
	ctx := context.Background()

	first, err := saga.StartRun(ctx, domainagg.StartSagaInput{VaultID: uuid.New(), Op: "withdraw"})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	second, err := saga.StartRun(ctx, domainagg.StartSagaInput{VaultID: uuid.New(), Op: "claim"})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	open, err := saga.Open(ctx, 0)
	if err != nil || len(open) != 2 {
		t.Fatalf("Open: got=%d err=%v", len(open), err)
	}

	if err := saga.TransitionStatus(ctx, domainagg.TransitionSagaStatusInput{
		SagaID: first.ID, FromStatus: vault.SagaStatusRunning, ToStatus: vault.SagaStatusCompensated, Reason: "swap failed",
	}); err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	got, err := saga.Run(ctx, first.ID)
	if err != nil || got.Status != vault.SagaStatusCompensated || got.Error != "swap failed" {
		t.Fatalf("Run: %+v err=%v", got, err)
	}

	err = saga.TransitionStatus(ctx, domainagg.TransitionSagaStatusInput{
		SagaID: first.ID, FromStatus: vault.SagaStatusRunning, ToStatus: vault.SagaStatusSucceeded,
	})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("closed run: expected conflict, got=%v", err)
	}
	err = saga.TransitionStatus(ctx, domainagg.TransitionSagaStatusInput{
		SagaID: second.ID, FromStatus: vault.SagaStatusSucceeded, ToStatus: vault.SagaStatusRunning,
	})
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("reopen: expected invariant violation, got=%v", err)
	}
	_, err = saga.AppendAction(ctx, domainagg.AppendSagaActionInput{SagaID: first.ID, Kind: vault.SagaKindTransfer})
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("append to closed run: expected invariant violation, got=%v", err)
	}

	open, err = saga.Open(ctx, 0)
	if err != nil || len(open) != 1 || open[0].ID != second.ID {
		t.Fatalf("Open after close: %+v err=%v", open, err)
	}
}
