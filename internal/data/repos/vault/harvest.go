package vault

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/dbctx"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
)

type HarvestRepo interface {
	Create(dbc dbctx.Context, rows []*types.Harvest) ([]*types.Harvest, error)
	ListByVault(dbc dbctx.Context, vaultID uuid.UUID, limit int) ([]*types.Harvest, error)
	ListByStatus(dbc dbctx.Context, vaultID uuid.UUID, status string) ([]*types.Harvest, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Harvest, error)
	// TransitionStatus reports whether the row was still in from.
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, from, to string) (bool, error)
}

type harvestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHarvestRepo(db *gorm.DB, baseLog *logger.Logger) HarvestRepo {
	return &harvestRepo{db: db, log: baseLog.With("repo", "HarvestRepo")}
}

func (r *harvestRepo) Create(dbc dbctx.Context, rows []*types.Harvest) ([]*types.Harvest, error) {
	if len(rows) == 0 {
		return []*types.Harvest{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByVault returns the newest harvests first.
func (r *harvestRepo) ListByVault(dbc dbctx.Context, vaultID uuid.UUID, limit int) ([]*types.Harvest, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*types.Harvest
	if err := dbc.DB(r.db).
		Where("vault_id = ?", vaultID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *harvestRepo) ListByStatus(dbc dbctx.Context, vaultID uuid.UUID, status string) ([]*types.Harvest, error) {
	var out []*types.Harvest
	if err := dbc.DB(r.db).
		Where("vault_id = ? AND status = ?", vaultID, status).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *harvestRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Harvest, error) {
	var row types.Harvest
	if err := dbc.DB(r.db).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *harvestRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, from, to string) (bool, error) {
	res := dbc.DB(r.db).
		Model(&types.Harvest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
