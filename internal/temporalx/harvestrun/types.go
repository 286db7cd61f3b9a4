package harvestrun

import (
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

const (
	WorkflowName    = "vault_harvest"
	ActivityQuote   = "vault_harvest_quote"
	ActivityHarvest = "vault_harvest_execute"
)

// Params drives one harvest workflow. Interval <= 0 runs a single harvest.
type Params struct {
	VaultID        uuid.UUID     `json:"vault_id"`
	SwapPath       []string      `json:"swap_path,omitempty"`
	SlippageBps    int64         `json:"slippage_bps"`
	MinYield       types.Amount  `json:"min_yield"`
	DeadlineWindow time.Duration `json:"deadline_window"`
	Interval       time.Duration `json:"interval"`
	// MaxRuns stops a scheduled loop after that many runs; 0 is unbounded.
	MaxRuns int `json:"max_runs,omitempty"`

	// Summary is carried across continue-as-new.
	Summary Summary `json:"summary"`
}

type Summary struct {
	Runs     int          `json:"runs"`
	Settled  int          `json:"settled"`
	Skipped  int          `json:"skipped"`
	Failed   int          `json:"failed"`
	Proceeds types.Amount `json:"proceeds"`
	LastErr  string       `json:"last_error,omitempty"`
}

type QuoteInput struct {
	VaultID  uuid.UUID `json:"vault_id"`
	SwapPath []string  `json:"swap_path,omitempty"`
}

type QuoteResult struct {
	Yield    types.Amount `json:"yield"`
	Proceeds types.Amount `json:"proceeds"`
	Path     []string     `json:"path"`
}

type HarvestInput struct {
	VaultID       uuid.UUID    `json:"vault_id"`
	ExpectedYield types.Amount `json:"expected_yield"`
	MinProceeds   types.Amount `json:"min_proceeds"`
	SwapPath      []string     `json:"swap_path"`
	Deadline      time.Time    `json:"deadline"`
}

type HarvestOutcome struct {
	HarvestID   uuid.UUID    `json:"harvest_id"`
	Status      string       `json:"status"`
	ActualYield types.Amount `json:"actual_yield"`
	Proceeds    types.Amount `json:"proceeds"`
	Distributed types.Amount `json:"distributed"`
}

func WorkflowID(vaultID uuid.UUID) string { return "vault-harvest-" + vaultID.String() }
