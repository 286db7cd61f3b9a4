// Package vault is the custody engine: it owns the share ledger and the
// profit ledger of every vault and is the only writer of either.
//
// Each public operation runs as one serialized unit per vault. The unit loads a
// snapshot, performs its external interactions (token transfers, strategy and
// exchange calls) while registering a compensating action for each, and then
// commits the new absolute ledger values in one transaction guarded by the
// vault's version. Any failure runs the compensations in reverse and leaves
// the ledger untouched.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/yungbote/yieldvault-backend/internal/access"
	"github.com/yungbote/yieldvault-backend/internal/asset"
	"github.com/yungbote/yieldvault-backend/internal/data/repos"
	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/events"
	"github.com/yungbote/yieldvault-backend/internal/observability"
	"github.com/yungbote/yieldvault-backend/internal/platform/dbctx"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
	"github.com/yungbote/yieldvault-backend/internal/strategy"
)

type Deps struct {
	Log    *logger.Logger
	Repos  repos.Repos
	Ledger domainagg.VaultLedgerAggregate
	// Saga journals the compensation of every external side effect.
	Saga   domainagg.SagaAggregate

	Assets     *asset.Registry
	Strategies *strategy.Registry

	// Access governs per-vault roles; Admin governs service-wide actions.
	Access access.Provider
	Admin  access.Controller

	Events  events.Bus
	Metrics *observability.Metrics
	Now     func() time.Time
}

type Manager struct {
	log        *logger.Logger
	repos      repos.Repos
	ledger     domainagg.VaultLedgerAggregate
	saga       domainagg.SagaAggregate
	assets     *asset.Registry
	strategies *strategy.Registry
	access     access.Provider
	admin      access.Controller
	bus        events.Bus
	metrics    *observability.Metrics
	now        func() time.Time

	locks *lockTable
}

var _ strategy.PrincipalReader = (*Manager)(nil)

func New(deps Deps) (*Manager, error) {
	switch {
	case deps.Ledger == nil || deps.Saga == nil:
		return nil, errors.New("vault: ledger and saga aggregates are required")
	case deps.Assets == nil || deps.Strategies == nil:
		return nil, errors.New("vault: asset and strategy registries are required")
	case deps.Repos.Vaults == nil:
		return nil, errors.New("vault: repos are required")
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	m := &Manager{
		log:        log.With("service", "VaultManager"),
		repos:      deps.Repos,
		ledger:     deps.Ledger,
		saga:       deps.Saga,
		assets:     deps.Assets,
		strategies: deps.Strategies,
		access:     deps.Access,
		admin:      deps.Admin,
		bus:        deps.Events,
		metrics:    deps.Metrics,
		now:        deps.Now,
		locks:      newLockTable(),
	}
	if m.access == nil {
		m.access = access.NewRoleProvider()
	}
	if m.admin == nil {
		m.admin = access.NewRoleProvider()
	}
	if m.bus == nil {
		m.bus = events.Nop()
	}
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}
	return m, nil
}

// Account is the custody account of a vault.
func Account(vaultID uuid.UUID) string { return "vault:" + vaultID.String() }

// HarvesterAccount is the custody account a harvester identity receives yield in.
func HarvesterAccount(harvesterID string) string { return "harvester:" + harvesterID }

// TotalPrincipal reports the committed principal of a vault. It never takes the
// vault lock, so strategies may call it while an operation is in flight.
func (m *Manager) TotalPrincipal(ctx context.Context, vaultID uuid.UUID) (types.Amount, error) {
	v, err := m.repos.Vaults.GetByID(dbctx.Context{Ctx: ctx}, vaultID)
	if err != nil {
		return types.Zero, mapLoad("vault.total_principal", vaultID, err)
	}
	return v.TotalPrincipal, nil
}

// run executes fn as the serialized unit op on vaultID.
func (m *Manager) run(ctx context.Context, vaultID uuid.UUID, op, caller string, fn func(ctx context.Context, u *unit) error) (types.Vault, error) {
	start := time.Now()
	if holding(ctx, vaultID) {
		err := fail(domainagg.CodeReentrancy, op, "vault %s re-entered while %s is in progress", vaultID, op)
		m.observe(ctx, op, vaultID, err, start)
		return types.Vault{}, err
	}
	release, err := m.locks.acquire(ctx, vaultID)
	if err != nil {
		err = domainagg.Wrap(domainagg.CodeRetryable, op, err)
		m.observe(ctx, op, vaultID, err, start)
		return types.Vault{}, err
	}
	defer release()
	ctx = withHeld(ctx, vaultID)

	ctx, span := observability.Tracer().Start(ctx, "vault."+op, trace.WithAttributes(
		attribute.String("vault.id", vaultID.String()),
		attribute.String("vault.op", op),
	))
	defer span.End()

	u, err := m.load(ctx, op, vaultID, caller)
	if err == nil {
		err = fn(ctx, u)
	}
	if err == nil && u.changed {
		err = u.commit(ctx)
	} else if err == nil {
		err = u.closeSaga(ctx, types.SagaStatusSucceeded, "")
	}
	if err != nil {
		if u != nil {
			err = u.compensate(ctx, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, statusOf(err))
		m.observe(ctx, op, vaultID, err, start)
		return types.Vault{}, err
	}
	span.SetAttributes(attribute.Int64("vault.version", u.v.Version))
	m.publish(ctx, u)
	m.observe(ctx, op, vaultID, nil, start)
	return u.v, nil
}

func (m *Manager) observe(ctx context.Context, op string, vaultID uuid.UUID, err error, start time.Time) {
	status := statusOf(err)
	m.metrics.ObserveVaultOperation(op, status, time.Since(start))
	if err == nil {
		m.log.Debug("vault operation committed", "op", op, "vault_id", vaultID.String(), "duration_ms", time.Since(start).Milliseconds())
		return
	}
	var comp *CompensationError
	if errors.As(err, &comp) {
		m.log.Error("vault operation failed and rollback is incomplete", "op", op, "vault_id", vaultID.String(), "error", err)
		return
	}
	m.log.Info("vault operation rejected", "op", op, "vault_id", vaultID.String(), "code", status, "error", err)
}

func (m *Manager) publish(ctx context.Context, u *unit) {
	for _, ev := range u.events {
		ev.ID = uuid.New()
		ev.VaultID = u.v.ID
		ev.Version = u.v.Version
		if ev.ActorID == "" {
			ev.ActorID = u.caller
		}
		ev.At = m.now()
		if err := m.bus.Publish(ctx, ev); err != nil {
			m.log.Warn("event publish failed", "kind", ev.Kind, "vault_id", u.v.ID.String(), "error", err)
		}
	}
}

func (m *Manager) load(ctx context.Context, op string, vaultID uuid.UUID, caller string) (*unit, error) {
	row, err := m.repos.Vaults.GetByID(dbctx.Context{Ctx: ctx}, vaultID)
	if err != nil {
		return nil, mapLoad(op, vaultID, err)
	}
	principal, err := m.assets.Lookup(row.PrincipalAsset)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	distribution, err := m.assets.Lookup(row.DistributionAsset)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return &unit{
		m:            m,
		op:           op,
		caller:       caller,
		before:       *row,
		v:            *row,
		principal:    principal,
		distribution: distribution,
		positions:    map[string]*types.Position{},
		dirty:        map[string]struct{}{},
	}, nil
}

func (m *Manager) authorize(ctx context.Context, op string, v *types.Vault, caller string, action access.Action) error {
	if caller == "" {
		return fail(domainagg.CodeUnauthorized, op, "missing caller identity")
	}
	if !m.access.ForVault(v).IsAuthorized(ctx, caller, action) {
		return fail(domainagg.CodeUnauthorized, op, "%s may not %s", caller, action)
	}
	return nil
}

func mapLoad(op string, vaultID uuid.UUID, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("vault %s not found", vaultID), err)
	}
	var coded *Error
	if errors.As(err, &coded) {
		return err
	}
	return domainagg.Wrap(domainagg.CodeInternal, op, err)
}
