package spatial

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

type ReconcileTaskRepo interface {
	Create(dbc dbctx.Context, row *types.ReconcileTask) (*types.ReconcileTask, error)
	ListPending(dbc dbctx.Context, limit int) ([]*types.ReconcileTask, error)
	CountPending(dbc dbctx.Context) (int64, error)
	MarkFailed(dbc dbctx.Context, id uuid.UUID, cause error) error
	Complete(dbc dbctx.Context, id uuid.UUID) error
}

type reconcileTaskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReconcileTaskRepo(db *gorm.DB, baseLog *logger.Logger) ReconcileTaskRepo {
	return &reconcileTaskRepo{db: db, log: baseLog.With("repo", "ReconcileTaskRepo")}
}

func (r *reconcileTaskRepo) Create(dbc dbctx.Context, row *types.ReconcileTask) (*types.ReconcileTask, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *reconcileTaskRepo) ListPending(dbc dbctx.Context, limit int) ([]*types.ReconcileTask, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var out []*types.ReconcileTask
	if err := t.WithContext(dbc.Ctx).
		Where("status IN ?", []string{types.ReconcileTaskPending, types.ReconcileTaskFailed}).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reconcileTaskRepo) CountPending(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	err := t.WithContext(dbc.Ctx).Model(&types.ReconcileTask{}).
		Where("status IN ?", []string{types.ReconcileTaskPending, types.ReconcileTaskFailed}).
		Count(&n).Error
	return n, err
}

func (r *reconcileTaskRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, cause error) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return t.WithContext(dbc.Ctx).Model(&types.ReconcileTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     types.ReconcileTaskFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": msg,
		}).Error
}

// Complete removes the task; finished tasks carry no information worth keeping.
func (r *reconcileTaskRepo) Complete(dbc dbctx.Context, id uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.ReconcileTask{}).Error
}
