package vault

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/dbctx"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
)

type VaultRepo interface {
	Create(dbc dbctx.Context, rows []*types.Vault) ([]*types.Vault, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Vault, error)
	GetBySymbol(dbc dbctx.Context, symbol string) (*types.Vault, error)
	List(dbc dbctx.Context) ([]*types.Vault, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Vault, error)
}

type vaultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVaultRepo(db *gorm.DB, baseLog *logger.Logger) VaultRepo {
	return &vaultRepo{db: db, log: baseLog.With("repo", "VaultRepo")}
}

func (r *vaultRepo) Create(dbc dbctx.Context, rows []*types.Vault) ([]*types.Vault, error) {
	if len(rows) == 0 {
		return []*types.Vault{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *vaultRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Vault, error) {
	var row types.Vault
	if err := dbc.DB(r.db).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *vaultRepo) GetBySymbol(dbc dbctx.Context, symbol string) (*types.Vault, error) {
	var row types.Vault
	if err := dbc.DB(r.db).Where("symbol = ?", symbol).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *vaultRepo) List(dbc dbctx.Context) ([]*types.Vault, error) {
	var out []*types.Vault
	if err := dbc.DB(r.db).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *vaultRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Vault, error) {
	var row types.Vault
	if err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
