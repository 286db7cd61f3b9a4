package vault

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/dbctx"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
)

type StrategyRepo interface {
	Create(dbc dbctx.Context, rows []*types.Strategy) ([]*types.Strategy, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Strategy, error)
	ListByVault(dbc dbctx.Context, vaultID uuid.UUID) ([]*types.Strategy, error)
	Upsert(dbc dbctx.Context, rows []*types.Strategy) error
}

type strategyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStrategyRepo(db *gorm.DB, baseLog *logger.Logger) StrategyRepo {
	return &strategyRepo{db: db, log: baseLog.With("repo", "StrategyRepo")}
}

func (r *strategyRepo) Create(dbc dbctx.Context, rows []*types.Strategy) ([]*types.Strategy, error) {
	if len(rows) == 0 {
		return []*types.Strategy{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *strategyRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Strategy, error) {
	var row types.Strategy
	if err := dbc.DB(r.db).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *strategyRepo) ListByVault(dbc dbctx.Context, vaultID uuid.UUID) ([]*types.Strategy, error) {
	var out []*types.Strategy
	if err := dbc.DB(r.db).
		Where("vault_id = ?", vaultID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *strategyRepo) Upsert(dbc dbctx.Context, rows []*types.Strategy) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"active", "updated_at"}),
		}).
		Create(&rows).Error
}
