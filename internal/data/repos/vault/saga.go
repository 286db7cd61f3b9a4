package vault

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/dbctx"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
)

type SagaRunRepo interface {
	Create(dbc dbctx.Context, rows []*types.SagaRun) ([]*types.SagaRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.SagaRun, error)
	// Transition moves the run from one status to another and reports whether
	// the row was still in from.
	Transition(dbc dbctx.Context, id uuid.UUID, from, to, reason string) (bool, error)
	ListByStatus(dbc dbctx.Context, statuses []string, limit int) ([]*types.SagaRun, error)
}

type sagaRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSagaRunRepo(db *gorm.DB, baseLog *logger.Logger) SagaRunRepo {
	return &sagaRunRepo{db: db, log: baseLog.With("repo", "SagaRunRepo")}
}

func (r *sagaRunRepo) Create(dbc dbctx.Context, rows []*types.SagaRun) ([]*types.SagaRun, error) {
	if len(rows) == 0 {
		return []*types.SagaRun{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *sagaRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.SagaRun, error) {
	var row types.SagaRun
	if err := dbc.DB(r.db).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *sagaRunRepo) Transition(dbc dbctx.Context, id uuid.UUID, from, to, reason string) (bool, error) {
	updates := map[string]any{"status": to, "updated_at": time.Now().UTC()}
	if reason != "" {
		updates["error"] = reason
	}
	res := dbc.DB(r.db).
		Model(&types.SagaRun{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListByStatus returns the oldest runs first.
func (r *sagaRunRepo) ListByStatus(dbc dbctx.Context, statuses []string, limit int) ([]*types.SagaRun, error) {
	var out []*types.SagaRun
	if len(statuses) == 0 {
		return out, nil
	}
	q := dbc.DB(r.db).Where("status IN ?", statuses).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type SagaActionRepo interface {
	Create(dbc dbctx.Context, rows []*types.SagaAction) ([]*types.SagaAction, error)
	GetMaxSeq(dbc dbctx.Context, sagaID uuid.UUID) (int64, error)
	ListBySagaDesc(dbc dbctx.Context, sagaID uuid.UUID) ([]*types.SagaAction, error)
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status, reason string) error
}

type sagaActionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSagaActionRepo(db *gorm.DB, baseLog *logger.Logger) SagaActionRepo {
	return &sagaActionRepo{db: db, log: baseLog.With("repo", "SagaActionRepo")}
}

func (r *sagaActionRepo) Create(dbc dbctx.Context, rows []*types.SagaAction) ([]*types.SagaAction, error) {
	if len(rows) == 0 {
		return []*types.SagaAction{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *sagaActionRepo) GetMaxSeq(dbc dbctx.Context, sagaID uuid.UUID) (int64, error) {
	var seq int64
	err := dbc.DB(r.db).
		Model(&types.SagaAction{}).
		Where("saga_id = ?", sagaID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&seq).Error
	return seq, err
}

func (r *sagaActionRepo) ListBySagaDesc(dbc dbctx.Context, sagaID uuid.UUID) ([]*types.SagaAction, error) {
	var out []*types.SagaAction
	if err := dbc.DB(r.db).
		Where("saga_id = ?", sagaID).
		Order("seq DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sagaActionRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status, reason string) error {
	updates := map[string]any{"status": status, "updated_at": time.Now().UTC()}
	if reason != "" {
		updates["error"] = reason
	}
	return dbc.DB(r.db).Model(&types.SagaAction{}).Where("id = ?", id).Updates(updates).Error
}
