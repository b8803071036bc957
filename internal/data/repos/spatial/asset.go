package spatial

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

type AssetRepo interface {
	Create(dbc dbctx.Context, row *types.Asset) (*types.Asset, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Asset, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Asset, error)
	GetByName(dbc dbctx.Context, name string) (*types.Asset, error)
	List(dbc dbctx.Context) ([]*types.Asset, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (*types.Asset, error)
	DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error)

	SummaryByID(dbc dbctx.Context, id uuid.UUID) (*types.Summary, error)
}

type assetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssetRepo(db *gorm.DB, baseLog *logger.Logger) AssetRepo {
	return &assetRepo{db: db, log: baseLog.With("repo", "AssetRepo")}
}

func (r *assetRepo) Create(dbc dbctx.Context, row *types.Asset) (*types.Asset, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, translate(err, "asset")
	}
	return row, nil
}

func (r *assetRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Asset, error) {
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

func (r *assetRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Asset, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Asset
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assetRepo) GetByName(dbc dbctx.Context, name string) (*types.Asset, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Asset
	if err := t.WithContext(dbc.Ctx).Where("name = ?", name).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *assetRepo) List(dbc dbctx.Context) ([]*types.Asset, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Asset
	if err := t.WithContext(dbc.Ctx).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assetRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (*types.Asset, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(updates) > 0 {
		res := t.WithContext(dbc.Ctx).Model(&types.Asset{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, translate(res.Error, "asset")
		}
	}
	row, err := r.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, translate(gorm.ErrRecordNotFound, "asset")
	}
	return row, nil
}

func (r *assetRepo) DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.Asset{})
	return res.RowsAffected, res.Error
}

func (r *assetRepo) SummaryByID(dbc dbctx.Context, id uuid.UUID) (*types.Summary, error) {
	row, err := r.GetByID(dbc, id)
	if err != nil || row == nil {
		return nil, err
	}
	s := row.Summary()
	return &s, nil
}
