package aggregates

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

// SagaAggregate owns the compensation journal of vault operations.
//
// A run is opened before the first external side effect of an operation.
// Every side effect appends its compensation as pending beforehand and marks
// it applied afterwards, so a crash between effect and ledger commit leaves
// enough on record to undo it.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation, CodeRetryable, CodeInternal.
type SagaAggregate interface {
	StartRun(ctx context.Context, in StartSagaInput) (vault.SagaRun, error)

	// AppendAction appends the next pending action of a running saga.
	AppendAction(ctx context.Context, in AppendSagaActionInput) (vault.SagaAction, error)

	MarkAction(ctx context.Context, actionID uuid.UUID, status, reason string) error

	// TransitionStatus moves a run along running -> succeeded|compensated|failed.
	TransitionStatus(ctx context.Context, in TransitionSagaStatusInput) error

	// Open lists runs still running, oldest first.
	Open(ctx context.Context, limit int) ([]vault.SagaRun, error)
	Run(ctx context.Context, sagaID uuid.UUID) (vault.SagaRun, error)
	// Actions lists a run's actions newest first.
	Actions(ctx context.Context, sagaID uuid.UUID) ([]vault.SagaAction, error)
}

type StartSagaInput struct {
	VaultID uuid.UUID
	Op      string
	ActorID string
}

type AppendSagaActionInput struct {
	SagaID  uuid.UUID
	Kind    string
	Payload json.RawMessage
}

type TransitionSagaStatusInput struct {
	SagaID     uuid.UUID
	FromStatus string
	ToStatus   string
	Reason     string
}
