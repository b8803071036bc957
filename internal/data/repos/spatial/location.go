package spatial

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

type LocationRepo interface {
	Create(dbc dbctx.Context, row *types.Location) (*types.Location, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Location, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Location, error)
	GetByIDAndAsset(dbc dbctx.Context, id, assetID uuid.UUID) (*types.Location, error)
	List(dbc dbctx.Context) ([]*types.Location, error)
	ListByAsset(dbc dbctx.Context, assetID uuid.UUID) ([]*types.Location, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (*types.Location, error)
	DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error)

	SummaryByID(dbc dbctx.Context, id uuid.UUID) (*types.Summary, error)
}

type locationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLocationRepo(db *gorm.DB, baseLog *logger.Logger) LocationRepo {
	return &locationRepo{db: db, log: baseLog.With("repo", "LocationRepo")}
}

func (r *locationRepo) Create(dbc dbctx.Context, row *types.Location) (*types.Location, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, translate(err, "location")
	}
	return row, nil
}

func (r *locationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Location, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *locationRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Location, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Location
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *locationRepo) GetByIDAndAsset(dbc dbctx.Context, id, assetID uuid.UUID) (*types.Location, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Location
	if err := t.WithContext(dbc.Ctx).
		Where("id = ? AND asset_id = ?", id, assetID).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *locationRepo) List(dbc dbctx.Context) ([]*types.Location, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Location
	if err := t.WithContext(dbc.Ctx).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *locationRepo) ListByAsset(dbc dbctx.Context, assetID uuid.UUID) ([]*types.Location, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Location
	if assetID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("asset_id = ?", assetID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *locationRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (*types.Location, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(updates) > 0 {
		res := t.WithContext(dbc.Ctx).Model(&types.Location{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, translate(res.Error, "location")
		}
	}
	row, err := r.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, translate(gorm.ErrRecordNotFound, "location")
	}
	return row, nil
}

func (r *locationRepo) DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.Location{})
	return res.RowsAffected, res.Error
}

func (r *locationRepo) SummaryByID(dbc dbctx.Context, id uuid.UUID) (*types.Summary, error) {
	row, err := r.GetByID(dbc, id)
	if err != nil || row == nil {
		return nil, err
	}
	s := row.Summary()
	return &s, nil
}
