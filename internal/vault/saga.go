package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/yieldvault-backend/internal/asset"
	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/dbctx"
)

// sagaStep describes how to undo one external side effect. It is stored as
// the payload of a saga action so recovery can replay it after a restart.
type sagaStep struct {
	Kind       string       `json:"-"`
	Name       string       `json:"name"`
	Asset      string       `json:"asset,omitempty"`
	From       string       `json:"from,omitempty"`
	To         string       `json:"to,omitempty"`
	StrategyID uuid.UUID    `json:"strategy_id"`
	Amount     types.Amount `json:"amount"`
	// Baseline is the idle strategy balance a resupply returns to.
	Baseline types.Amount `json:"baseline"`
}

func transferStep(name string, tok asset.Token, from, to string, amount types.Amount) sagaStep {
	return sagaStep{Kind: types.SagaKindTransfer, Name: name, Asset: tok.Symbol(), From: from, To: to, Amount: amount}
}

func strategyStep(kind, name string, strategyID uuid.UUID, amount types.Amount) sagaStep {
	return sagaStep{Kind: kind, Name: name, StrategyID: strategyID, Amount: amount}
}

type compensation struct {
	actionID uuid.UUID
	step     sagaStep
}

// step journals comp as pending, performs do, and arms comp once do has
// succeeded. A non-nil prev is retired in favour of comp.
func (u *unit) step(ctx context.Context, prev *compensation, comp sagaStep, do func() error) (*compensation, error) {
	if err := u.openSaga(ctx); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(comp)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, u.op, err)
	}
	action, err := u.m.saga.AppendAction(ctx, domainagg.AppendSagaActionInput{SagaID: u.saga, Kind: comp.Kind, Payload: payload})
	if err != nil {
		return nil, err
	}
	if err := do(); err != nil {
		u.mark(ctx, action.ID, types.SagaActionSkipped, err.Error())
		return nil, err
	}
	c := &compensation{actionID: action.ID, step: comp}
	if prev != nil {
		u.drop(prev)
		u.mark(ctx, prev.actionID, types.SagaActionSuperseded, "")
	}
	u.undo = append(u.undo, c)
	if err := u.m.saga.MarkAction(ctx, action.ID, types.SagaActionApplied, ""); err != nil {
		return c, err
	}
	return c, nil
}

func (u *unit) openSaga(ctx context.Context) error {
	if u.saga != uuid.Nil {
		return nil
	}
	run, err := u.m.saga.StartRun(ctx, domainagg.StartSagaInput{VaultID: u.v.ID, Op: u.op, ActorID: u.caller})
	if err != nil {
		return err
	}
	u.saga = run.ID
	return nil
}

// release gives up every armed compensation after a step that cannot be
// undone.
func (u *unit) release(ctx context.Context) {
	for _, c := range u.undo {
		u.mark(ctx, c.actionID, types.SagaActionReleased, "")
	}
	u.undo = nil
	u.released = true
}

func (u *unit) drop(c *compensation) {
	for i, cur := range u.undo {
		if cur == c {
			u.undo = append(u.undo[:i], u.undo[i+1:]...)
			return
		}
	}
}

// mark records an action outcome; the journal is best effort once the
// external effect has been decided.
func (u *unit) mark(ctx context.Context, actionID uuid.UUID, status, reason string) {
	if err := u.m.saga.MarkAction(ctx, actionID, status, reason); err != nil {
		u.m.log.Error("saga action update failed", "op", u.op, "vault_id", u.v.ID.String(), "action_id", actionID.String(), "status", status, "error", err)
	}
}

func (u *unit) closeSaga(ctx context.Context, status, reason string) error {
	if u.saga == uuid.Nil {
		return nil
	}
	return u.m.saga.TransitionStatus(ctx, domainagg.TransitionSagaStatusInput{
		SagaID:     u.saga,
		FromStatus: types.SagaStatusRunning,
		ToStatus:   status,
		Reason:     reason,
	})
}

// execStep performs the compensation st describes against vault v.
func (m *Manager) execStep(ctx context.Context, v *types.Vault, st sagaStep) error {
	if st.Kind == types.SagaKindTransfer {
		tok, err := m.assets.Lookup(st.Asset)
		if err != nil {
			return err
		}
		return tok.Transfer(ctx, st.From, st.To, st.Amount)
	}
	principal, err := m.assets.Lookup(v.PrincipalAsset)
	if err != nil {
		return err
	}
	s, err := m.resolveStrategy(ctx, "saga", v, st.StrategyID, principal)
	if err != nil {
		return err
	}
	switch st.Kind {
	case types.SagaKindWithdrawPrincipal:
		return s.WithdrawPrincipal(ctx, st.Amount)
	case types.SagaKindRedeploy:
		if err := principal.Transfer(ctx, Account(v.ID), s.Account(), st.Amount); err != nil {
			return err
		}
		return s.DepositPrincipal(ctx, st.Amount)
	case types.SagaKindResupply:
		idle, err := principal.BalanceOf(ctx, s.Account())
		if err != nil {
			return err
		}
		if excess := idle.Sub(st.Baseline); types.IsPositive(excess) {
			return s.DepositPrincipal(ctx, excess)
		}
		return nil
	default:
		return fmt.Errorf("unknown saga action kind %q", st.Kind)
	}
}

// RecoveryReport summarizes one Recover pass.
type RecoveryReport struct {
	Compensated []uuid.UUID `json:"compensated"`
	// NeedsOperator lists runs with a failed compensation, a step whose
	// outcome is unknown, or an irreversible step already taken.
	NeedsOperator []uuid.UUID `json:"needs_operator"`
}

// Recover undoes the applied side effects of every saga run left open by a
// crash. Each run is handled under its vault's lock, so runs of operations
// still in flight in this process are skipped once they close.
func (m *Manager) Recover(ctx context.Context, limit int) (RecoveryReport, error) {
	var rep RecoveryReport
	runs, err := m.saga.Open(ctx, limit)
	if err != nil {
		return rep, err
	}
	for _, run := range runs {
		status, err := m.recoverRun(ctx, run)
		if err != nil {
			return rep, err
		}
		switch status {
		case types.SagaStatusCompensated:
			rep.Compensated = append(rep.Compensated, run.ID)
		case types.SagaStatusFailed:
			rep.NeedsOperator = append(rep.NeedsOperator, run.ID)
		}
	}
	if len(rep.Compensated)+len(rep.NeedsOperator) > 0 {
		m.log.Warn("recovered interrupted vault operations", "compensated", len(rep.Compensated), "needs_operator", len(rep.NeedsOperator))
	}
	return rep, nil
}

func (m *Manager) recoverRun(ctx context.Context, run types.SagaRun) (string, error) {
	release, err := m.locks.acquire(ctx, run.VaultID)
	if err != nil {
		return "", domainagg.Wrap(domainagg.CodeRetryable, "recover", err)
	}
	defer release()

	cur, err := m.saga.Run(ctx, run.ID)
	if err != nil {
		return "", err
	}
	if cur.Status != types.SagaStatusRunning {
		return "", nil
	}
	v, err := m.repos.Vaults.GetByID(dbctx.Context{Ctx: ctx}, run.VaultID)
	if err != nil {
		return "", mapLoad("recover", run.VaultID, err)
	}
	actions, err := m.saga.Actions(ctx, run.ID)
	if err != nil {
		return "", err
	}

	var problems []error
	for _, a := range actions {
		switch a.Status {
		case types.SagaActionPending:
			problems = append(problems, fmt.Errorf("action %d (%s) was interrupted", a.Seq, a.Kind))
			continue
		case types.SagaActionReleased:
			problems = append(problems, fmt.Errorf("action %d (%s) follows an irreversible step", a.Seq, a.Kind))
			continue
		case types.SagaActionApplied:
		default:
			continue
		}
		st := sagaStep{}
		if err := json.Unmarshal(a.Payload, &st); err != nil {
			problems = append(problems, fmt.Errorf("action %d: %w", a.Seq, err))
			continue
		}
		st.Kind = a.Kind
		if err := m.execStep(ctx, v, st); err != nil {
			problems = append(problems, fmt.Errorf("action %d (%s): %w", a.Seq, st.Name, err))
			m.markRecovered(ctx, a.ID, types.SagaActionFailed, err.Error())
			m.metrics.IncCompensation(run.Op, "failed")
			continue
		}
		m.markRecovered(ctx, a.ID, types.SagaActionCompensated, "")
		m.metrics.IncCompensation(run.Op, "ok")
	}

	status, reason := types.SagaStatusCompensated, "recovered after restart"
	if len(problems) > 0 {
		status, reason = types.SagaStatusFailed, errors.Join(problems...).Error()
		m.log.Error("saga recovery incomplete", "saga_id", run.ID.String(), "vault_id", run.VaultID.String(), "op", run.Op, "error", reason)
	}
	if err := m.saga.TransitionStatus(ctx, domainagg.TransitionSagaStatusInput{
		SagaID:     run.ID,
		FromStatus: types.SagaStatusRunning,
		ToStatus:   status,
		Reason:     reason,
	}); err != nil {
		return "", err
	}
	return status, nil
}

func (m *Manager) markRecovered(ctx context.Context, actionID uuid.UUID, status, reason string) {
	if err := m.saga.MarkAction(ctx, actionID, status, reason); err != nil {
		m.log.Error("saga action update failed", "action_id", actionID.String(), "status", status, "error", err)
	}
}
