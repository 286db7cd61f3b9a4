package vault

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SagaStatusRunning     = "running"
	SagaStatusSucceeded   = "succeeded"
	SagaStatusCompensated = "compensated"
	// SagaStatusFailed needs an operator: a compensation failed, or a step was
	// interrupted before its outcome was known.
	SagaStatusFailed = "failed"
)

const (
	SagaActionPending     = "pending"
	SagaActionApplied     = "applied"
	SagaActionSkipped     = "skipped"
	SagaActionSuperseded  = "superseded"
	SagaActionReleased    = "released"
	SagaActionCompensated = "compensated"
	SagaActionFailed      = "failed"
)

// Compensation kinds a saga action can carry.
const (
	SagaKindTransfer          = "transfer"
	SagaKindWithdrawPrincipal = "withdraw_principal"
	SagaKindRedeploy          = "redeploy"
	SagaKindResupply          = "resupply"
)

// SagaRun is the durable header of one vault operation that touched external
// custody. It closes as succeeded in the same transaction as the ledger commit.
type SagaRun struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VaultID uuid.UUID `gorm:"type:uuid;not null;index" json:"vault_id"`
	Op      string    `gorm:"column:op;not null" json:"op"`
	ActorID string    `gorm:"column:actor_id" json:"actor_id,omitempty"`

	// running|succeeded|compensated|failed
	Status string `gorm:"column:status;not null;index" json:"status"`
	Error  string `gorm:"column:error" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (SagaRun) TableName() string { return "vault_saga_runs" }

// SagaAction is the compensation for one external side effect. It is written
// as pending before the effect and becomes applied once the effect happened.
type SagaAction struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SagaID uuid.UUID `gorm:"type:uuid;not null;index:idx_saga_action_seq,unique,priority:1" json:"saga_id"`
	Seq    int64     `gorm:"column:seq;not null;index:idx_saga_action_seq,unique,priority:2" json:"seq"`

	// transfer|withdraw_principal|redeploy|resupply
	Kind    string         `gorm:"column:kind;not null" json:"kind"`
	Payload datatypes.JSON `gorm:"column:payload" json:"payload"`

	// pending|applied|skipped|superseded|released|compensated|failed
	Status string `gorm:"column:status;not null;index" json:"status"`
	Error  string `gorm:"column:error" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (SagaAction) TableName() string { return "vault_saga_actions" }
