// Package harvester turns a vault strategy's accrued yield into the vault's
// distribution asset and credits it to depositors.
//
// A harvest runs entirely inside the vault's serialized unit: realize, release
// the yield into harvester custody, swap it with a proceeds floor, then move the
// proceeds into the vault and distribute them. Any failure before the swap
// leaves the vault ledger, every custody balance and the strategy's venue
// position as they were.
package harvester

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/exchange"
	"github.com/yungbote/yieldvault-backend/internal/observability"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
	"github.com/yungbote/yieldvault-backend/internal/vault"
)

const op = "harvest"

type Config struct {
	// ToleranceAbs and ToleranceBps bound |actual - expected| yield; the larger
	// of the two applies.
	ToleranceAbs types.Amount
	ToleranceBps int64
	Now          func() time.Time
}

type Request struct {
	VaultID       uuid.UUID
	Caller        string
	ExpectedYield types.Amount
	MinProceeds   types.Amount
	// SwapPath runs from the vault's principal asset to its distribution asset.
	SwapPath []string
	Deadline time.Time
}

type Result struct {
	HarvestID   uuid.UUID    `json:"harvest_id"`
	Status      string       `json:"status"`
	ActualYield types.Amount `json:"actual_yield"`
	Proceeds    types.Amount `json:"proceeds"`
	Distributed types.Amount `json:"distributed"`
	Dust        types.Amount `json:"dust"`
	Vault       types.Vault  `json:"vault"`
}

// Quote is what a harvest would realize and receive right now.
type Quote struct {
	VaultID  uuid.UUID    `json:"vault_id"`
	Yield    types.Amount `json:"yield"`
	Proceeds types.Amount `json:"proceeds"`
	Path     []string     `json:"path"`
}

type Service interface {
	Harvest(ctx context.Context, req Request) (Result, error)
	Quote(ctx context.Context, vaultID uuid.UUID, path []string) (Quote, error)
}

type service struct {
	log      *logger.Logger
	vaults   *vault.Manager
	exchange exchange.Venue
	metrics  *observability.Metrics
	cfg      Config
}

func New(baseLog *logger.Logger, vaults *vault.Manager, venue exchange.Venue, metrics *observability.Metrics, cfg Config) Service {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		log:      baseLog.With("service", "Harvester"),
		vaults:   vaults,
		exchange: venue,
		metrics:  metrics,
		cfg:      cfg,
	}
}

func (s *service) Harvest(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	h := types.Harvest{
		ID:            uuid.New(),
		VaultID:       req.VaultID,
		HarvesterID:   req.Caller,
		ExpectedYield: req.ExpectedYield,
		ActualYield:   types.Zero,
		MinProceeds:   req.MinProceeds,
		Proceeds:      types.Zero,
		SwapPath:      pathJSON(req.SwapPath),
		Deadline:      req.Deadline,
	}
	res := Result{HarvestID: h.ID, ActualYield: types.Zero, Proceeds: types.Zero, Distributed: types.Zero, Dust: types.Zero}

	if err := validate(req); err != nil {
		return s.rejected(res, start, err)
	}
	if now := s.cfg.Now(); now.After(req.Deadline) {
		err := domainagg.Errorf(domainagg.CodeDeadlineExpired, op, "deadline %s passed at %s",
			req.Deadline.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339))
		return s.rejected(res, start, err)
	}

	var started, released, swapped, noop bool
	v, err := s.vaults.Settle(ctx, req.VaultID, req.Caller, func(ctx context.Context, st *vault.Settlement) error {
		started = true
		snap := st.Vault()
		path, err := routeFor(&snap, req.SwapPath)
		if err != nil {
			return err
		}
		h.SwapPath = pathJSON(path)

		actual, err := st.RealizeYield(ctx)
		if err != nil {
			return err
		}
		h.ActualYield = actual
		if err := s.checkYield(req.ExpectedYield, actual); err != nil {
			return err
		}
		if !types.IsPositive(actual) {
			noop = true
			return nil
		}

		if err := st.ReleaseYield(ctx, actual); err != nil {
			return err
		}
		released = true

		out, err := s.exchange.SwapExactInput(ctx, exchange.SwapRequest{
			AmountIn:     actual,
			Path:         path,
			AmountOutMin: req.MinProceeds,
			Deadline:     req.Deadline,
			Sender:       st.Account(),
			Recipient:    st.Account(),
		})
		if err != nil {
			return vault.External(op, err)
		}
		st.Irreversible(ctx)
		swapped = true
		h.Proceeds = out

		if types.IsPositive(out) {
			distributed, err := st.CreditProceeds(ctx, out)
			if err != nil {
				return err
			}
			res.Distributed = distributed
		}
		st.Record(h)
		return nil
	})
	res.ActualYield, res.Proceeds = h.ActualYield, h.Proceeds

	if err != nil {
		res.Status = failureStatus(err, released, swapped)
		if started {
			s.recordAttempt(ctx, h, res.Status, err)
		}
		s.observe(v.PrincipalAsset, v.DistributionAsset, res, start)
		if swapped {
			s.log.Error("harvest proceeds stranded in harvester custody",
				"vault_id", req.VaultID.String(), "harvest_id", h.ID.String(), "proceeds", h.Proceeds.String(), "error", err)
		} else {
			s.log.Info("harvest aborted", "vault_id", req.VaultID.String(), "status", res.Status, "error", err)
		}
		return res, err
	}

	res.Vault, res.Dust = v, v.DistributionDust
	if noop {
		res.Status = types.HarvestStatusNoop
		s.recordAttempt(ctx, h, res.Status, nil)
		s.observe(v.PrincipalAsset, v.DistributionAsset, res, start)
		s.log.Debug("harvest skipped, no accrued yield", "vault_id", req.VaultID.String())
		return res, nil
	}
	res.Status = types.HarvestStatusSettled
	s.observe(v.PrincipalAsset, v.DistributionAsset, res, start)
	s.log.Info("harvest settled",
		"vault_id", req.VaultID.String(),
		"harvest_id", h.ID.String(),
		"yield", h.ActualYield.String(),
		"proceeds", h.Proceeds.String(),
		"distributed", res.Distributed.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// Quote accrues the strategy's venue and prices the resulting yield along path.
func (s *service) Quote(ctx context.Context, vaultID uuid.UUID, path []string) (Quote, error) {
	const op = "harvest_quote"
	st, err := s.vaults.State(ctx, vaultID)
	if err != nil {
		return Quote{}, err
	}
	path, err = routeFor(&st.Vault, path)
	if err != nil {
		return Quote{}, err
	}
	y, err := s.vaults.AccrueYield(ctx, vaultID)
	if err != nil {
		return Quote{}, err
	}
	q := Quote{VaultID: vaultID, Yield: y, Proceeds: types.Zero, Path: path}
	if !types.IsPositive(y) {
		return q, nil
	}
	out, err := s.exchange.Quote(ctx, y, path)
	if err != nil {
		return Quote{}, vault.External(op, err)
	}
	q.Proceeds = out
	return q, nil
}

func (s *service) checkYield(expected, actual types.Amount) error {
	tol := s.cfg.ToleranceAbs
	if byBps := types.Bps(expected, s.cfg.ToleranceBps); byBps.GreaterThan(tol) {
		tol = byBps
	}
	if actual.Sub(expected).Abs().GreaterThan(tol) {
		return domainagg.Errorf(domainagg.CodeYieldMismatch, op, "realized %s, expected %s (tolerance %s)", actual, expected, tol)
	}
	return nil
}

func (s *service) recordAttempt(ctx context.Context, h types.Harvest, status string, cause error) {
	h.Status = status
	if cause != nil {
		h.Error = cause.Error()
	}
	if err := s.vaults.RecordHarvestAttempt(context.WithoutCancel(ctx), h); err != nil {
		s.log.Error("record harvest attempt failed", "vault_id", h.VaultID.String(), "status", status, "error", err)
	}
}

func (s *service) rejected(res Result, start time.Time, err error) (Result, error) {
	res.Status = types.HarvestStatusFailed
	s.metrics.ObserveHarvest(res.Status, time.Since(start))
	return res, err
}

func (s *service) observe(principal, distribution string, res Result, start time.Time) {
	s.metrics.ObserveHarvest(res.Status, time.Since(start))
	if res.Status == types.HarvestStatusSettled {
		s.metrics.AddHarvestYield(principal, res.ActualYield.InexactFloat64())
		s.metrics.AddHarvestProceeds(distribution, res.Proceeds.InexactFloat64())
	}
}

// failureStatus labels an aborted harvest by where the funds ended up.
func failureStatus(err error, released, swapped bool) string {
	var comp *vault.CompensationError
	switch {
	case swapped, errors.As(err, &comp):
		return types.HarvestStatusStranded
	case released:
		return types.HarvestStatusCompensated
	default:
		return types.HarvestStatusFailed
	}
}

func validate(req Request) error {
	switch {
	case req.VaultID == uuid.Nil:
		return domainagg.Errorf(domainagg.CodeValidation, op, "vault id is required")
	case strings.TrimSpace(req.Caller) == "":
		return domainagg.Errorf(domainagg.CodeUnauthorized, op, "missing caller identity")
	case req.Deadline.IsZero():
		return domainagg.Errorf(domainagg.CodeValidation, op, "deadline is required")
	case req.ExpectedYield.Sign() < 0 || !req.ExpectedYield.IsInteger():
		return domainagg.Errorf(domainagg.CodeInvalidAmount, op, "expected yield must be a non-negative integer, got %s", req.ExpectedYield)
	case req.MinProceeds.Sign() < 0 || !req.MinProceeds.IsInteger():
		return domainagg.Errorf(domainagg.CodeInvalidAmount, op, "min proceeds must be a non-negative integer, got %s", req.MinProceeds)
	}
	return nil
}

// routeFor normalizes path and checks it starts at the vault's principal asset
// and ends at its distribution asset. An empty path means the direct pair.
func routeFor(v *types.Vault, path []string) ([]string, error) {
	if len(path) == 0 {
		path = []string{v.PrincipalAsset, v.DistributionAsset}
	}
	norm, err := exchange.NormalizePath(path)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeValidation, op, err)
	}
	if norm[0] != strings.ToUpper(v.PrincipalAsset) || norm[len(norm)-1] != strings.ToUpper(v.DistributionAsset) {
		return nil, domainagg.Errorf(domainagg.CodeValidation, op, "swap path %s must run %s -> %s",
			strings.Join(norm, "->"), v.PrincipalAsset, v.DistributionAsset)
	}
	return norm, nil
}

func pathJSON(path []string) datatypes.JSON {
	if len(path) == 0 {
		return nil
	}
	b, err := json.Marshal(path)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
