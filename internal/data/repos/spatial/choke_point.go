package spatial

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

type ChokePointRepo interface {
	Create(dbc dbctx.Context, row *types.ChokePoint) (*types.ChokePoint, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ChokePoint, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ChokePoint, error)
	GetByMacAddress(dbc dbctx.Context, macAddress string) (*types.ChokePoint, error)
	GetByMacAddresses(dbc dbctx.Context, macAddresses []string) ([]*types.ChokePoint, error)
	List(dbc dbctx.Context) ([]*types.ChokePoint, error)
	ListByMap(dbc dbctx.Context, mapID uuid.UUID) ([]*types.ChokePoint, error)
	ListByLocation(dbc dbctx.Context, locationID uuid.UUID) ([]*types.ChokePoint, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (*types.ChokePoint, error)
	// SetMapPosition writes map reference and position in one statement.
	SetMapPosition(dbc dbctx.Context, id uuid.UUID, mapRef types.Summary, x, y float64) (*types.ChokePoint, error)
	// ClearMap unsets map reference, x and y in one statement.
	ClearMap(dbc dbctx.Context, id uuid.UUID) (*types.ChokePoint, error)
	DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error)

	SummaryByID(dbc dbctx.Context, id uuid.UUID) (*types.Summary, error)
}

type chokePointRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChokePointRepo(db *gorm.DB, baseLog *logger.Logger) ChokePointRepo {
	return &chokePointRepo{db: db, log: baseLog.With("repo", "ChokePointRepo")}
}

func (r *chokePointRepo) Create(dbc dbctx.Context, row *types.ChokePoint) (*types.ChokePoint, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, translate(err, "chokePoint")
	}
	return row, nil
}

func (r *chokePointRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ChokePoint, error) {
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

func (r *chokePointRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ChokePoint, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ChokePoint
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chokePointRepo) GetByMacAddress(dbc dbctx.Context, macAddress string) (*types.ChokePoint, error) {
	rows, err := r.GetByMacAddresses(dbc, []string{macAddress})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *chokePointRepo) GetByMacAddresses(dbc dbctx.Context, macAddresses []string) ([]*types.ChokePoint, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ChokePoint
	if len(macAddresses) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("mac_address IN ?", macAddresses).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chokePointRepo) List(dbc dbctx.Context) ([]*types.ChokePoint, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ChokePoint
	if err := t.WithContext(dbc.Ctx).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chokePointRepo) ListByMap(dbc dbctx.Context, mapID uuid.UUID) ([]*types.ChokePoint, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ChokePoint
	if err := t.WithContext(dbc.Ctx).Where("map_id = ?", mapID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chokePointRepo) ListByLocation(dbc dbctx.Context, locationID uuid.UUID) ([]*types.ChokePoint, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ChokePoint
	if err := t.WithContext(dbc.Ctx).Where("location_id = ?", locationID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chokePointRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (*types.ChokePoint, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(updates) > 0 {
		res := t.WithContext(dbc.Ctx).Model(&types.ChokePoint{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, translate(res.Error, "chokePoint")
		}
	}
	row, err := r.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, translate(gorm.ErrRecordNotFound, "chokePoint")
	}
	return row, nil
}

func (r *chokePointRepo) SetMapPosition(dbc dbctx.Context, id uuid.UUID, mapRef types.Summary, x, y float64) (*types.ChokePoint, error) {
	return r.UpdateFields(dbc, id, map[string]interface{}{
		"map_id":  mapRef.ID,
		"map_ref": types.RefOf(mapRef),
		"x":       x,
		"y":       y,
	})
}

func (r *chokePointRepo) ClearMap(dbc dbctx.Context, id uuid.UUID) (*types.ChokePoint, error) {
	return r.UpdateFields(dbc, id, map[string]interface{}{
		"map_id":  nil,
		"map_ref": nil,
		"x":       nil,
		"y":       nil,
	})
}

func (r *chokePointRepo) DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.ChokePoint{})
	return res.RowsAffected, res.Error
}

func (r *chokePointRepo) SummaryByID(dbc dbctx.Context, id uuid.UUID) (*types.Summary, error) {
	row, err := r.GetByID(dbc, id)
	if err != nil || row == nil {
		return nil, err
	}
	s := row.Summary()
	return &s, nil
}
