package aggregates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/dbctx"
)

type sagaAggregate struct {
	deps BaseDeps
}

func NewSagaAggregate(deps BaseDeps) domainagg.SagaAggregate {
	return &sagaAggregate{deps: deps.withDefaults()}
}

func (a *sagaAggregate) StartRun(ctx context.Context, in domainagg.StartSagaInput) (vault.SagaRun, error) {
	const op = "saga.start_run"
	if in.VaultID == uuid.Nil {
		return vault.SagaRun{}, MapError(op, ValidationError("missing vault id"))
	}
	if strings.TrimSpace(in.Op) == "" {
		return vault.SagaRun{}, MapError(op, ValidationError("missing saga op"))
	}
	now := a.deps.Now()
	row := vault.SagaRun{
		ID:        uuid.New(),
		VaultID:   in.VaultID,
		Op:        in.Op,
		ActorID:   in.ActorID,
		Status:    vault.SagaStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := executeWrite(ctx, a.deps, op, func(dbc dbctx.Context) error {
		_, err := a.deps.Repos.SagaRuns.Create(dbc, []*vault.SagaRun{&row})
		return err
	})
	if err != nil {
		return vault.SagaRun{}, err
	}
	return row, nil
}

func (a *sagaAggregate) AppendAction(ctx context.Context, in domainagg.AppendSagaActionInput) (vault.SagaAction, error) {
	const op = "saga.append_action"
	kind := normalizeSagaStatus(in.Kind)
	if in.SagaID == uuid.Nil {
		return vault.SagaAction{}, MapError(op, ValidationError("missing saga id"))
	}
	if kind == "" {
		return vault.SagaAction{}, MapError(op, ValidationError("missing saga action kind"))
	}
	payload := in.Payload
	if len(strings.TrimSpace(string(payload))) == 0 {
		payload = json.RawMessage(`{}`)
	}
	if !json.Valid(payload) {
		return vault.SagaAction{}, MapError(op, ValidationError("payload must be valid JSON"))
	}

	var out vault.SagaAction
	err := executeWrite(ctx, a.deps, op, func(dbc dbctx.Context) error {
		run, err := a.deps.Repos.SagaRuns.GetByID(dbc, in.SagaID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("saga run %s not found", in.SagaID), err)
		}
		if err != nil {
			return err
		}
		if run.Status != vault.SagaStatusRunning {
			return InvariantError(fmt.Sprintf("cannot append action when saga status is %q", run.Status))
		}
		maxSeq, err := a.deps.Repos.SagaActions.GetMaxSeq(dbc, in.SagaID)
		if err != nil {
			return err
		}
		now := a.deps.Now()
		out = vault.SagaAction{
			ID:        uuid.New(),
			SagaID:    in.SagaID,
			Seq:       maxSeq + 1,
			Kind:      kind,
			Payload:   datatypes.JSON(payload),
			Status:    vault.SagaActionPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err = a.deps.Repos.SagaActions.Create(dbc, []*vault.SagaAction{&out})
		return err
	})
	if err != nil {
		return vault.SagaAction{}, err
	}
	return out, nil
}

func (a *sagaAggregate) MarkAction(ctx context.Context, actionID uuid.UUID, status, reason string) error {
	const op = "saga.mark_action"
	status = normalizeSagaStatus(status)
	if actionID == uuid.Nil || !isKnownActionStatus(status) {
		return MapError(op, ValidationError("action id and a known status are required"))
	}
	return executeWrite(ctx, a.deps, op, func(dbc dbctx.Context) error {
		return a.deps.Repos.SagaActions.UpdateStatus(dbc, actionID, status, reason)
	})
}

func (a *sagaAggregate) TransitionStatus(ctx context.Context, in domainagg.TransitionSagaStatusInput) error {
	const op = "saga.transition_status"
	if in.SagaID == uuid.Nil {
		return MapError(op, ValidationError("missing saga id"))
	}
	from, to := normalizeSagaStatus(in.FromStatus), normalizeSagaStatus(in.ToStatus)
	if !isAllowedSagaTransition(from, to) {
		return MapError(op, InvariantError(fmt.Sprintf("invalid saga transition %s -> %s", from, to)))
	}
	return executeWrite(ctx, a.deps, op, func(dbc dbctx.Context) error {
		ok, err := a.deps.Repos.SagaRuns.Transition(dbc, in.SagaID, from, to, in.Reason)
		if err != nil {
			return err
		}
		if !ok {
			return ConflictError(fmt.Sprintf("saga %s is no longer %s", in.SagaID, from))
		}
		return nil
	})
}

func (a *sagaAggregate) Open(ctx context.Context, limit int) ([]vault.SagaRun, error) {
	rows, err := a.deps.Repos.SagaRuns.ListByStatus(dbctx.Context{Ctx: ctx}, []string{vault.SagaStatusRunning}, limit)
	if err != nil {
		return nil, MapError("saga.open", err)
	}
	out := make([]vault.SagaRun, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	return out, nil
}

func (a *sagaAggregate) Run(ctx context.Context, sagaID uuid.UUID) (vault.SagaRun, error) {
	row, err := a.deps.Repos.SagaRuns.GetByID(dbctx.Context{Ctx: ctx}, sagaID)
	if err != nil {
		return vault.SagaRun{}, MapError("saga.run", err)
	}
	return *row, nil
}

func (a *sagaAggregate) Actions(ctx context.Context, sagaID uuid.UUID) ([]vault.SagaAction, error) {
	rows, err := a.deps.Repos.SagaActions.ListBySagaDesc(dbctx.Context{Ctx: ctx}, sagaID)
	if err != nil {
		return nil, MapError("saga.actions", err)
	}
	out := make([]vault.SagaAction, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	return out, nil
}

func normalizeSagaStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func isKnownActionStatus(status string) bool {
	switch status {
	case vault.SagaActionPending, vault.SagaActionApplied, vault.SagaActionSkipped, vault.SagaActionSuperseded,
		vault.SagaActionReleased, vault.SagaActionCompensated, vault.SagaActionFailed:
		return true
	default:
		return false
	}
}

func isAllowedSagaTransition(from, to string) bool {
	switch from {
	case vault.SagaStatusRunning:
		return to == vault.SagaStatusSucceeded || to == vault.SagaStatusCompensated || to == vault.SagaStatusFailed
	default:
		return false
	}
}
