// Package events publishes committed vault operations to subscribers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	KindDeposit        = "vault.deposit"
	KindWithdraw       = "vault.withdraw"
	KindClaim          = "vault.claim"
	KindHarvest        = "vault.harvest"
	KindHarvestFailed  = "vault.harvest_failed"
	KindProceeds       = "vault.proceeds_recorded"
	KindStrategyChange = "vault.strategy_changed"
	KindPaused         = "vault.paused"
	KindUnpaused       = "vault.unpaused"
	KindProvisioned    = "vault.provisioned"
)

// Event describes one committed (or definitively failed) vault operation.
// Amounts are base-unit integer strings.
type Event struct {
	ID          uuid.UUID      `json:"id"`
	Kind        string         `json:"kind"`
	VaultID     uuid.UUID      `json:"vault_id"`
	Version     int64          `json:"version"`
	ActorID     string         `json:"actor_id,omitempty"`
	DepositorID string         `json:"depositor_id,omitempty"`
	Amount      string         `json:"amount,omitempty"`
	Shares      string         `json:"shares,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	At          time.Time      `json:"at"`
}

type Bus interface {
	Publish(ctx context.Context, ev Event) error
	StartForwarder(ctx context.Context, onMsg func(ev Event)) error
	Close() error
}

type nopBus struct{}

// Nop discards every event.
func Nop() Bus { return nopBus{} }

func (nopBus) Publish(context.Context, Event) error                 { return nil }
func (nopBus) StartForwarder(context.Context, func(ev Event)) error { return nil }
func (nopBus) Close() error                                         { return nil }
