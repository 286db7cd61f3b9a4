package aggregates

import (
	"context"

	"github.com/google/uuid"
	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

// VaultLedgerAggregate persists the outcome of one serialized vault operation.
// Each write method owns its transaction: header, positions, strategy bindings,
// harvest row and audit entries land together or not at all.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeRetryable, CodeInternal.
type VaultLedgerAggregate interface {
	// CreateVault inserts a new vault header at version 1.
	CreateVault(ctx context.Context, in CreateVaultInput) (vault.Vault, error)

	// Commit applies absolute header/position values guarded by the expected version.
	Commit(ctx context.Context, in VaultCommitInput) (VaultCommitResult, error)

	// RecordHarvestAttempt stores a harvest row outside any vault commit.
	// Used for failed, compensated and stranded attempts.
	RecordHarvestAttempt(ctx context.Context, h vault.Harvest) error
}

type CreateVaultInput struct {
	Vault      vault.Vault
	Strategies []vault.Strategy
	ActorID    string
}

type VaultCommitInput struct {
	VaultID         uuid.UUID
	ExpectedVersion int64
	ActorID         string

	// Vault carries the new header values; ID and Version are ignored.
	Vault vault.Vault
	// Positions are upserted with absolute values.
	Positions  []vault.Position
	Strategies []vault.Strategy
	Harvest    *vault.Harvest
	Entries    []vault.LedgerEntry

	// SagaID, when set, closes that running saga as succeeded in the same transaction.
	SagaID uuid.UUID
	// ResolvedHarvestID, when set, moves that stranded harvest to resolved.
	ResolvedHarvestID uuid.UUID
}

type VaultCommitResult struct {
	VaultID uuid.UUID
	Version int64
}
