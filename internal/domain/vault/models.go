package vault

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Vault is the canonical header row of a custody vault.
type Vault struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name   string `gorm:"column:name;not null" json:"name"`
	Symbol string `gorm:"column:symbol;not null;uniqueIndex" json:"symbol"`

	PrincipalAsset    string `gorm:"column:principal_asset;not null" json:"principal_asset"`
	DistributionAsset string `gorm:"column:distribution_asset;not null" json:"distribution_asset"`
	HarvesterID       string `gorm:"column:harvester_id;not null" json:"harvester_id"`
	GovernanceID      string `gorm:"column:governance_id;not null" json:"governance_id"`

	StrategyID *uuid.UUID `gorm:"type:uuid;column:strategy_id" json:"strategy_id,omitempty"`

	TotalShares      Amount `gorm:"column:total_shares;type:text;not null" json:"total_shares"`
	TotalPrincipal   Amount `gorm:"column:total_principal;type:text;not null" json:"total_principal"`
	TotalUnclaimed   Amount `gorm:"column:total_unclaimed;type:text;not null" json:"total_unclaimed"`
	DistributionDust Amount `gorm:"column:distribution_dust;type:text;not null" json:"distribution_dust"`

	Paused  bool  `gorm:"column:paused;not null" json:"paused"`
	Version int64 `gorm:"column:version;not null" json:"version"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Vault) TableName() string { return "vaults" }

// HasStrategy reports whether a strategy is bound.
func (v *Vault) HasStrategy() bool {
	return v != nil && v.StrategyID != nil && *v.StrategyID != uuid.Nil
}

// Status returns the externally visible state machine position.
func (v *Vault) Status() string {
	switch {
	case v == nil:
		return ""
	case v.Paused:
		return StatusPaused
	case !v.HasStrategy():
		return StatusActiveNoStrategy
	default:
		return StatusActive
	}
}

const (
	StatusActive           = "active"
	StatusActiveNoStrategy = "active_no_strategy"
	StatusPaused           = "paused"
)

// Position is a depositor's share and owed-profit balance in one vault.
// Rows are created on first deposit and never deleted.
type Position struct {
	VaultID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"vault_id"`
	DepositorID string    `gorm:"column:depositor_id;primaryKey" json:"depositor_id"`

	Shares          Amount `gorm:"column:shares;type:text;not null" json:"shares"`
	UnclaimedProfit Amount `gorm:"column:unclaimed_profit;type:text;not null" json:"unclaimed_profit"`

	// Lifetime counters in asset units.
	Deposited Amount `gorm:"column:deposited;type:text;not null" json:"deposited"`
	Withdrawn Amount `gorm:"column:withdrawn;type:text;not null" json:"withdrawn"`
	Claimed   Amount `gorm:"column:claimed;type:text;not null" json:"claimed"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Position) TableName() string { return "vault_positions" }

// NewPosition returns an empty position for depositor.
func NewPosition(vaultID uuid.UUID, depositor string) Position {
	return Position{
		VaultID:         vaultID,
		DepositorID:     depositor,
		Shares:          Zero,
		UnclaimedProfit: Zero,
		Deposited:       Zero,
		Withdrawn:       Zero,
		Claimed:         Zero,
	}
}

// Strategy records a strategy adapter instantiated for a vault.
type Strategy struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VaultID uuid.UUID `gorm:"type:uuid;not null;index" json:"vault_id"`

	// lending|...
	Kind   string `gorm:"column:kind;not null" json:"kind"`
	Source string `gorm:"column:source;not null" json:"source"`
	Active bool   `gorm:"column:active;not null" json:"active"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Strategy) TableName() string { return "vault_strategies" }

const (
	HarvestStatusSettled     = "settled"
	HarvestStatusNoop        = "noop"
	HarvestStatusFailed      = "failed"
	HarvestStatusCompensated = "compensated"
	HarvestStatusStranded    = "stranded"
	// HarvestStatusResolved marks a stranded harvest whose proceeds were later credited.
	HarvestStatusResolved = "resolved"
)

// Harvest records one harvest attempt, including failed ones.
type Harvest struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VaultID     uuid.UUID `gorm:"type:uuid;not null;index" json:"vault_id"`
	HarvesterID string    `gorm:"column:harvester_id;not null" json:"harvester_id"`

	ExpectedYield Amount `gorm:"column:expected_yield;type:text;not null" json:"expected_yield"`
	ActualYield   Amount `gorm:"column:actual_yield;type:text;not null" json:"actual_yield"`
	MinProceeds   Amount `gorm:"column:min_proceeds;type:text;not null" json:"min_proceeds"`
	Proceeds      Amount `gorm:"column:proceeds;type:text;not null" json:"proceeds"`

	SwapPath datatypes.JSON `gorm:"column:swap_path" json:"swap_path"`
	Deadline time.Time      `gorm:"column:deadline;not null" json:"deadline"`

	// settled|noop|failed|compensated|stranded|resolved
	Status string `gorm:"column:status;not null;index" json:"status"`
	Error  string `gorm:"column:error" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Harvest) TableName() string { return "vault_harvests" }

const (
	EntryDeposit        = "deposit"
	EntryWithdraw       = "withdraw"
	EntryClaim          = "claim"
	EntryHarvest        = "harvest"
	EntryProceeds       = "record_proceeds"
	EntryStrategySet    = "strategy_set"
	EntryPaused         = "paused"
	EntryUnpaused       = "unpaused"
	EntryVaultCreated   = "vault_created"
	EntryStrategyCreate = "strategy_created"
	EntryStrandedCredit = "stranded_credit"
)

// LedgerEntry is an append-only audit record of a committed vault operation.
type LedgerEntry struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VaultID uuid.UUID `gorm:"type:uuid;not null;index:idx_ledger_vault_version,priority:1" json:"vault_id"`
	Version int64     `gorm:"column:version;not null;index:idx_ledger_vault_version,priority:2" json:"version"`

	Kind        string `gorm:"column:kind;not null;index" json:"kind"`
	ActorID     string `gorm:"column:actor_id" json:"actor_id,omitempty"`
	DepositorID string `gorm:"column:depositor_id;index" json:"depositor_id,omitempty"`

	Amount Amount `gorm:"column:amount;type:text;not null" json:"amount"`
	Shares Amount `gorm:"column:shares;type:text;not null" json:"shares"`

	Metadata datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (LedgerEntry) TableName() string { return "vault_ledger_entries" }
