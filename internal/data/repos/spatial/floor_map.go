package spatial

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

type FloorMapRepo interface {
	Create(dbc dbctx.Context, row *types.FloorMap) (*types.FloorMap, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.FloorMap, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.FloorMap, error)
	GetByIDAndAsset(dbc dbctx.Context, id, assetID uuid.UUID) (*types.FloorMap, error)
	List(dbc dbctx.Context) ([]*types.FloorMap, error)
	ListByAsset(dbc dbctx.Context, assetID uuid.UUID) ([]*types.FloorMap, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (*types.FloorMap, error)
	DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error)

	SummaryByID(dbc dbctx.Context, id uuid.UUID) (*types.Summary, error)
}

type floorMapRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFloorMapRepo(db *gorm.DB, baseLog *logger.Logger) FloorMapRepo {
	return &floorMapRepo{db: db, log: baseLog.With("repo", "FloorMapRepo")}
}

func (r *floorMapRepo) Create(dbc dbctx.Context, row *types.FloorMap) (*types.FloorMap, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, translate(err, "map")
	}
	return row, nil
}

func (r *floorMapRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.FloorMap, error) {
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

func (r *floorMapRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.FloorMap, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.FloorMap
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *floorMapRepo) GetByIDAndAsset(dbc dbctx.Context, id, assetID uuid.UUID) (*types.FloorMap, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.FloorMap
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

func (r *floorMapRepo) List(dbc dbctx.Context) ([]*types.FloorMap, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.FloorMap
	if err := t.WithContext(dbc.Ctx).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *floorMapRepo) ListByAsset(dbc dbctx.Context, assetID uuid.UUID) ([]*types.FloorMap, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.FloorMap
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

func (r *floorMapRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (*types.FloorMap, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(updates) > 0 {
		res := t.WithContext(dbc.Ctx).Model(&types.FloorMap{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, translate(res.Error, "map")
		}
	}
	row, err := r.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, translate(gorm.ErrRecordNotFound, "map")
	}
	return row, nil
}

func (r *floorMapRepo) DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.FloorMap{})
	return res.RowsAffected, res.Error
}

func (r *floorMapRepo) SummaryByID(dbc dbctx.Context, id uuid.UUID) (*types.Summary, error) {
	row, err := r.GetByID(dbc, id)
	if err != nil || row == nil {
		return nil, err
	}
	s := row.Summary()
	return &s, nil
}
