package spatial

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

// ParentRef reads and writes one child-side parent reference: an indexed id
// column plus the embedded summary copy of the parent.
type ParentRef interface {
	Table() string

	// ParentOf returns the referenced parent id (nil when unset) and whether
	// the child row exists at all.
	ParentOf(dbc dbctx.Context, childID uuid.UUID) (*uuid.UUID, bool, error)
	Set(dbc dbctx.Context, childID uuid.UUID, parent *types.Summary) error
	SetMany(dbc dbctx.Context, childIDs []uuid.UUID, parent *types.Summary) (int64, error)
	// SetForParent rewrites the summary copy on every child pointing at ref.ID.
	SetForParent(dbc dbctx.Context, ref types.Summary) (int64, error)

	ChildIDs(dbc dbctx.Context, parentID uuid.UUID) ([]uuid.UUID, error)
	ChildSummaries(dbc dbctx.Context, parentID uuid.UUID) ([]types.Summary, error)
	// ClearOrphans unsets references whose parent row no longer exists.
	ClearOrphans(dbc dbctx.Context, parentTable string) (int64, error)
}

type parentRef[T any] struct {
	db        *gorm.DB
	log       *logger.Logger
	table     string
	idColumn  string
	refColumn string
	// extraClears are nulled together with the reference.
	extraClears []string
	summarize   func(*T) types.Summary
	current     func(*T) (*uuid.UUID, *types.Summary)
}

func newParentRef[T any](
	db *gorm.DB,
	baseLog *logger.Logger,
	table, idColumn, refColumn string,
	extraClears []string,
	summarize func(*T) types.Summary,
	current func(*T) (*uuid.UUID, *types.Summary),
) ParentRef {
	return &parentRef[T]{
		db:          db,
		log:         baseLog.With("repo", "ParentRef", "table", table, "column", refColumn),
		table:       table,
		idColumn:    idColumn,
		refColumn:   refColumn,
		extraClears: extraClears,
		summarize:   summarize,
		current:     current,
	}
}

func (r *parentRef[T]) Table() string { return r.table }

func (r *parentRef[T]) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *parentRef[T]) ParentOf(dbc dbctx.Context, childID uuid.UUID) (*uuid.UUID, bool, error) {
	var row T
	err := r.tx(dbc).Where("id = ?", childID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	id, _ := r.current(&row)
	return id, true, nil
}

func (r *parentRef[T]) updates(parent *types.Summary) map[string]interface{} {
	if parent == nil || parent.IsZero() {
		out := map[string]interface{}{r.idColumn: nil, r.refColumn: nil}
		for _, c := range r.extraClears {
			out[c] = nil
		}
		return out
	}
	return map[string]interface{}{r.idColumn: parent.ID, r.refColumn: types.RefOf(*parent)}
}

func (r *parentRef[T]) Set(dbc dbctx.Context, childID uuid.UUID, parent *types.Summary) error {
	return r.tx(dbc).Model(new(T)).Where("id = ?", childID).Updates(r.updates(parent)).Error
}

func (r *parentRef[T]) SetMany(dbc dbctx.Context, childIDs []uuid.UUID, parent *types.Summary) (int64, error) {
	if len(childIDs) == 0 {
		return 0, nil
	}
	res := r.tx(dbc).Model(new(T)).Where("id IN ?", childIDs).Updates(r.updates(parent))
	return res.RowsAffected, res.Error
}

func (r *parentRef[T]) SetForParent(dbc dbctx.Context, ref types.Summary) (int64, error) {
	if ref.IsZero() {
		return 0, nil
	}
	res := r.tx(dbc).Model(new(T)).
		Where(fmt.Sprintf("%s = ?", r.idColumn), ref.ID).
		Update(r.refColumn, types.RefOf(ref))
	return res.RowsAffected, res.Error
}

func (r *parentRef[T]) ChildIDs(dbc dbctx.Context, parentID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.tx(dbc).Model(new(T)).
		Where(fmt.Sprintf("%s = ?", r.idColumn), parentID).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *parentRef[T]) ChildSummaries(dbc dbctx.Context, parentID uuid.UUID) ([]types.Summary, error) {
	var rows []*T
	err := r.tx(dbc).
		Where(fmt.Sprintf("%s = ?", r.idColumn), parentID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Summary, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.summarize(row))
	}
	return out, nil
}

func (r *parentRef[T]) ClearOrphans(dbc dbctx.Context, parentTable string) (int64, error) {
	res := r.tx(dbc).Model(new(T)).
		Where(fmt.Sprintf("%s IS NOT NULL AND %s NOT IN (SELECT id FROM %s)", r.idColumn, r.idColumn, parentTable)).
		Updates(r.updates(nil))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Warn("cleared orphaned parent references", "count", res.RowsAffected, "parent_table", parentTable)
	}
	return res.RowsAffected, nil
}
