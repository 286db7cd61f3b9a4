package vault

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/dbctx"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
)

type PositionRepo interface {
	Get(dbc dbctx.Context, vaultID uuid.UUID, depositor string) (*types.Position, error)
	ListByVault(dbc dbctx.Context, vaultID uuid.UUID) ([]*types.Position, error)
	// Upsert writes absolute balances for each (vault, depositor) key.
	Upsert(dbc dbctx.Context, rows []*types.Position) error
}

type positionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPositionRepo(db *gorm.DB, baseLog *logger.Logger) PositionRepo {
	return &positionRepo{db: db, log: baseLog.With("repo", "PositionRepo")}
}

func (r *positionRepo) Get(dbc dbctx.Context, vaultID uuid.UUID, depositor string) (*types.Position, error) {
	var row types.Position
	if err := dbc.DB(r.db).
		Where("vault_id = ? AND depositor_id = ?", vaultID, depositor).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *positionRepo) ListByVault(dbc dbctx.Context, vaultID uuid.UUID) ([]*types.Position, error) {
	var out []*types.Position
	if err := dbc.DB(r.db).
		Where("vault_id = ?", vaultID).
		Order("depositor_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *positionRepo) Upsert(dbc dbctx.Context, rows []*types.Position) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "vault_id"}, {Name: "depositor_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"shares",
				"unclaimed_profit",
				"deposited",
				"withdrawn",
				"claimed",
				"updated_at",
			}),
		}).
		Create(&rows).Error
}
