// Package vaulttest builds a fully wired vault over in-memory tokens, an
// in-process lending venue and a throwaway sqlite database.
package vaulttest

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/yieldvault-backend/internal/access"
	"github.com/yungbote/yieldvault-backend/internal/asset"
	dataagg "github.com/yungbote/yieldvault-backend/internal/data/aggregates"
	"github.com/yungbote/yieldvault-backend/internal/data/repos"
	"github.com/yungbote/yieldvault-backend/internal/data/repos/testutil"
	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/events"
	"github.com/yungbote/yieldvault-backend/internal/platform/dbctx"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
	"github.com/yungbote/yieldvault-backend/internal/strategy"
	"github.com/yungbote/yieldvault-backend/internal/strategy/lending"
	"github.com/yungbote/yieldvault-backend/internal/strategy/memvenue"
	"github.com/yungbote/yieldvault-backend/internal/vault"
)

const (
	Admin      = "admin"
	Governance = "governance"
	Harvester  = "harvester"
	PoolName   = "pool"
)

type Env struct {
	Ctx        context.Context
	DB         *gorm.DB
	Log        *logger.Logger
	Repos      repos.Repos
	Manager    *vault.Manager
	Assets     *asset.Registry
	DAI        *asset.MemoryToken
	WETH       *asset.MemoryToken
	Venue      *memvenue.Venue
	Venues     map[string]lending.Venue
	Strategies *strategy.Registry
	Bus        *Recorder
	Clock      *Clock

	Vault      types.Vault
	StrategyID uuid.UUID
}

type options struct {
	bind    bool
	rateBps int64
}

type Option func(*options)

// Unbound provisions the vault without creating or binding a strategy.
func Unbound() Option { return func(o *options) { o.bind = false } }

// Rate sets the simple annual interest rate of the default venue.
func Rate(bps int64) Option { return func(o *options) { o.rateBps = bps } }

func New(tb testing.TB, opts ...Option) *Env {
	tb.Helper()
	o := options{bind: true}
	for _, opt := range opts {
		opt(&o)
	}
	ctx := context.Background()
	db := testutil.DB(tb)
	log := testutil.Logger(tb)
	rp := repos.New(db, log)
	clock := NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	e := &Env{
		Ctx:        ctx,
		DB:         db,
		Log:        log,
		Repos:      rp,
		DAI:        asset.NewMemoryToken("DAI"),
		WETH:       asset.NewMemoryToken("WETH"),
		Strategies: strategy.NewRegistry(),
		Bus:        &Recorder{},
		Clock:      clock,
	}
	e.Assets = asset.NewRegistry(e.DAI, e.WETH)
	e.Venue = memvenue.New(memvenue.Config{Name: PoolName, Token: e.DAI, RateBps: o.rateBps, Now: clock.Now})
	e.Venues = map[string]lending.Venue{PoolName: e.Venue}
	e.Strategies.Register(lending.Kind, lending.Factory(e.Venues, log))

	m, err := vault.New(vault.Deps{
		Log:        log,
		Repos:      rp,
		Ledger:     dataagg.NewVaultLedgerAggregate(dataagg.BaseDeps{DB: db, Log: log, Repos: rp, Now: clock.Now}),
		Saga:       dataagg.NewSagaAggregate(dataagg.BaseDeps{DB: db, Log: log, Repos: rp, Now: clock.Now}),
		Assets:     e.Assets,
		Strategies: e.Strategies,
		Admin:      access.NewRoleProvider(Admin),
		Events:     e.Bus,
		Now:        clock.Now,
	})
	if err != nil {
		tb.Fatalf("vault.New: %v", err)
	}
	e.Manager = m

	v, err := m.Provision(ctx, Admin, vault.ProvisionInput{
		Name:              "DAI Yield Vault",
		Symbol:            "yvDAI-" + uuid.NewString()[:8],
		PrincipalAsset:    "DAI",
		DistributionAsset: "WETH",
		Harvester:         Harvester,
		Governance:        Governance,
	})
	if err != nil {
		tb.Fatalf("Provision: %v", err)
	}
	e.Vault = v
	if o.bind {
		e.StrategyID = e.AddStrategy(tb, PoolName, false)
	}
	return e
}

// AddVenue registers another in-process lending venue under name.
func (e *Env) AddVenue(name string) *memvenue.Venue {
	v := memvenue.New(memvenue.Config{Name: name, Token: e.DAI, Now: e.Clock.Now})
	e.Venues[name] = v
	return v
}

// AddStrategy creates a lending strategy over venue and optionally binds it
// with migration.
func (e *Env) AddStrategy(tb testing.TB, venue string, migrate bool) uuid.UUID {
	tb.Helper()
	row, err := e.Manager.CreateStrategy(e.Ctx, e.Vault.ID, Governance, lending.Kind, venue)
	if err != nil {
		tb.Fatalf("CreateStrategy: %v", err)
	}
	if _, err := e.Manager.SetStrategy(e.Ctx, e.Vault.ID, Governance, row.ID, migrate); err != nil {
		tb.Fatalf("SetStrategy: %v", err)
	}
	return row.ID
}

// StrategyAccount is the custody account of the bound strategy.
func (e *Env) StrategyAccount() string { return strategy.Account(e.StrategyID) }

func (e *Env) Account() string { return vault.Account(e.Vault.ID) }

// Fund mints amount DAI to user and approves the vault to pull it.
func (e *Env) Fund(tb testing.TB, user string, amount int64) {
	tb.Helper()
	a := types.NewAmount(amount)
	if err := e.DAI.Mint(e.Ctx, user, a); err != nil {
		tb.Fatalf("mint: %v", err)
	}
	have, _ := e.DAI.Allowance(e.Ctx, user, e.Account())
	if err := e.DAI.Approve(e.Ctx, user, e.Account(), have.Add(a)); err != nil {
		tb.Fatalf("approve: %v", err)
	}
}

// Deposit funds user and deposits amount, failing the test on error.
func (e *Env) Deposit(tb testing.TB, user string, amount int64) vault.DepositResult {
	tb.Helper()
	e.Fund(tb, user, amount)
	res, err := e.Manager.Deposit(e.Ctx, e.Vault.ID, user, types.NewAmount(amount))
	if err != nil {
		tb.Fatalf("Deposit(%s, %d): %v", user, amount, err)
	}
	return res
}

// Interest credits amount of interest to the bound strategy's venue position.
func (e *Env) Interest(tb testing.TB, amount int64) {
	tb.Helper()
	if err := e.Venue.CreditInterest(e.Ctx, e.StrategyAccount(), types.NewAmount(amount)); err != nil {
		tb.Fatalf("CreditInterest: %v", err)
	}
}

// VenuePosition is the bound strategy's supplied balance at the default venue.
func (e *Env) VenuePosition(tb testing.TB) types.Amount {
	tb.Helper()
	pos, err := e.Venue.BalanceOf(e.Ctx, e.StrategyAccount())
	if err != nil {
		tb.Fatalf("venue BalanceOf: %v", err)
	}
	return pos
}

func (e *Env) State(tb testing.TB) vault.State {
	tb.Helper()
	st, err := e.Manager.State(e.Ctx, e.Vault.ID)
	if err != nil {
		tb.Fatalf("State: %v", err)
	}
	return st
}

func (e *Env) Position(tb testing.TB, user string) vault.PositionView {
	tb.Helper()
	pv, err := e.Manager.Position(e.Ctx, e.Vault.ID, user)
	if err != nil {
		tb.Fatalf("Position: %v", err)
	}
	return pv
}

func Balance(tb testing.TB, tok asset.Token, account string) types.Amount {
	tb.Helper()
	b, err := tok.BalanceOf(context.Background(), account)
	if err != nil {
		tb.Fatalf("BalanceOf(%s): %v", account, err)
	}
	return b
}

// Snapshot renders every ledger value of the vault as strings so two
// snapshots compare exactly.
type Snapshot struct {
	Version          int64
	TotalShares      string
	TotalPrincipal   string
	TotalUnclaimed   string
	DistributionDust string
	Paused           bool
	StrategyID       string
	Positions        map[string][2]string
}

func (e *Env) Snapshot(tb testing.TB) Snapshot {
	tb.Helper()
	st := e.State(tb)
	rows, err := e.Repos.Positions.ListByVault(dbctx.Context{Ctx: e.Ctx}, e.Vault.ID)
	if err != nil {
		tb.Fatalf("ListByVault: %v", err)
	}
	s := Snapshot{
		Version:          st.Vault.Version,
		TotalShares:      st.Vault.TotalShares.String(),
		TotalPrincipal:   st.Vault.TotalPrincipal.String(),
		TotalUnclaimed:   st.Vault.TotalUnclaimed.String(),
		DistributionDust: st.Vault.DistributionDust.String(),
		Paused:           st.Vault.Paused,
		Positions:        map[string][2]string{},
	}
	if st.Vault.StrategyID != nil {
		s.StrategyID = st.Vault.StrategyID.String()
	}
	for _, p := range rows {
		s.Positions[p.DepositorID] = [2]string{p.Shares.String(), p.UnclaimedProfit.String()}
	}
	return s
}

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Recorder is an events.Bus that keeps everything published to it.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

var _ events.Bus = (*Recorder)(nil)

func (r *Recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) StartForwarder(context.Context, func(events.Event)) error { return nil }

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds lists the distinct event kinds seen, sorted.
func (r *Recorder) Kinds() []string {
	seen := map[string]struct{}{}
	for _, ev := range r.Events() {
		seen[ev.Kind] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
