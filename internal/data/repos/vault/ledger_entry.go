package vault

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/dbctx"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
)

type LedgerEntryRepo interface {
	Create(dbc dbctx.Context, rows []*types.LedgerEntry) ([]*types.LedgerEntry, error)
	ListByVault(dbc dbctx.Context, vaultID uuid.UUID, afterVersion int64, limit int) ([]*types.LedgerEntry, error)
	ListByDepositor(dbc dbctx.Context, vaultID uuid.UUID, depositor string, limit int) ([]*types.LedgerEntry, error)
}

type ledgerEntryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLedgerEntryRepo(db *gorm.DB, baseLog *logger.Logger) LedgerEntryRepo {
	return &ledgerEntryRepo{db: db, log: baseLog.With("repo", "LedgerEntryRepo")}
}

func (r *ledgerEntryRepo) Create(dbc dbctx.Context, rows []*types.LedgerEntry) ([]*types.LedgerEntry, error) {
	if len(rows) == 0 {
		return []*types.LedgerEntry{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByVault pages entries in commit order.
func (r *ledgerEntryRepo) ListByVault(dbc dbctx.Context, vaultID uuid.UUID, afterVersion int64, limit int) ([]*types.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*types.LedgerEntry
	if err := dbc.DB(r.db).
		Where("vault_id = ? AND version > ?", vaultID, afterVersion).
		Order("version ASC, created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ledgerEntryRepo) ListByDepositor(dbc dbctx.Context, vaultID uuid.UUID, depositor string, limit int) ([]*types.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*types.LedgerEntry
	if err := dbc.DB(r.db).
		Where("vault_id = ? AND depositor_id = ?", vaultID, depositor).
		Order("version ASC, created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
