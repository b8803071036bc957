package spatial

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

// SummaryArray mutates one embedded summary array on a parent row. Every
// mutation is a locked read-modify-write of that single row, so it is atomic
// with respect to other array mutations on the same parent.
type SummaryArray interface {
	Table() string
	Column() string

	// Push appends s, or replaces the entry with the same id. Fails NotFound
	// when the parent row is missing.
	Push(dbc dbctx.Context, parentID uuid.UUID, s types.Summary) error
	// Pull removes every entry for childID. Missing parents are a no-op.
	Pull(dbc dbctx.Context, parentID, childID uuid.UUID) error
	// Set replaces the entry matching s.ID in place. Reports whether an
	// entry matched; no match leaves the array untouched.
	Set(dbc dbctx.Context, parentID uuid.UUID, s types.Summary) (bool, error)
	// Replace swaps the whole array for list. Reports whether anything changed;
	// arrays holding the same summaries in another order are left alone.
	Replace(dbc dbctx.Context, parentID uuid.UUID, list []types.Summary) (bool, error)
	// Rebuild replaces the array with derive's result. derive runs inside the
	// transaction that holds the parent row lock, so a Push to the same parent
	// lands either before the derivation or after the write, never in between.
	Rebuild(dbc dbctx.Context, parentID uuid.UUID, derive func(dbctx.Context) ([]types.Summary, error)) (bool, error)

	List(dbc dbctx.Context, parentID uuid.UUID) ([]types.Summary, error)
	HoldersOf(dbc dbctx.Context, childID uuid.UUID) ([]uuid.UUID, error)
	ParentIDs(dbc dbctx.Context) ([]uuid.UUID, error)
}

type summaryArray[T any] struct {
	db     *gorm.DB
	log    *logger.Logger
	table  string
	column string
	field  func(*T) *types.Summaries
}

func newSummaryArray[T any](db *gorm.DB, baseLog *logger.Logger, table, column string, field func(*T) *types.Summaries) SummaryArray {
	return &summaryArray[T]{
		db:     db,
		log:    baseLog.With("repo", "SummaryArray", "table", table, "column", column),
		table:  table,
		column: column,
		field:  field,
	}
}

func (r *summaryArray[T]) Table() string  { return r.table }
func (r *summaryArray[T]) Column() string { return r.column }

func (r *summaryArray[T]) Push(dbc dbctx.Context, parentID uuid.UUID, s types.Summary) error {
	found, _, err := r.mutate(dbc, parentID, func(list []types.Summary) ([]types.Summary, bool) {
		if i := types.IndexOf(list, s.ID); i >= 0 {
			removed := dedupe(&list, s.ID)
			if removed == 0 && list[i].Equal(s) {
				return list, false
			}
			list[i] = s
			return list, true
		}
		return append(list, s), true
	})
	if err != nil {
		return err
	}
	if !found {
		return apierr.NotFound("%s %s not found", r.table, parentID)
	}
	return nil
}

func (r *summaryArray[T]) Pull(dbc dbctx.Context, parentID, childID uuid.UUID) error {
	_, _, err := r.mutate(dbc, parentID, func(list []types.Summary) ([]types.Summary, bool) {
		out := list[:0]
		for _, s := range list {
			if s.ID != childID {
				out = append(out, s)
			}
		}
		return out, len(out) != len(list)
	})
	return err
}

func (r *summaryArray[T]) Set(dbc dbctx.Context, parentID uuid.UUID, s types.Summary) (bool, error) {
	matched := false
	_, _, err := r.mutate(dbc, parentID, func(list []types.Summary) ([]types.Summary, bool) {
		i := types.IndexOf(list, s.ID)
		if i < 0 {
			return list, false
		}
		matched = true
		if list[i].Equal(s) {
			return list, false
		}
		list[i] = s
		return list, true
	})
	return matched, err
}

func (r *summaryArray[T]) Replace(dbc dbctx.Context, parentID uuid.UUID, next []types.Summary) (bool, error) {
	_, changed, err := r.mutate(dbc, parentID, func(list []types.Summary) ([]types.Summary, bool) {
		if sameSummaries(list, next) {
			return list, false
		}
		return append([]types.Summary{}, next...), true
	})
	return changed, err
}

func (r *summaryArray[T]) Rebuild(
	dbc dbctx.Context,
	parentID uuid.UUID,
	derive func(dbctx.Context) ([]types.Summary, error),
) (bool, error) {
	_, changed, err := r.mutateTx(dbc, parentID, func(tx dbctx.Context, list []types.Summary) ([]types.Summary, bool, error) {
		next, err := derive(tx)
		if err != nil {
			return nil, false, err
		}
		if sameSummaries(list, next) {
			return list, false, nil
		}
		return append([]types.Summary{}, next...), true, nil
	})
	return changed, err
}

func (r *summaryArray[T]) List(dbc dbctx.Context, parentID uuid.UUID) ([]types.Summary, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row T
	err := t.WithContext(dbc.Ctx).Where("id = ?", parentID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return append([]types.Summary{}, (*r.field(&row))...), nil
}

func (r *summaryArray[T]) HoldersOf(dbc dbctx.Context, childID uuid.UUID) ([]uuid.UUID, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx).Table(r.table)
	switch t.Dialector.Name() {
	case "postgres":
		needle, err := json.Marshal([]map[string]string{{"id": childID.String()}})
		if err != nil {
			return nil, err
		}
		q = q.Where(fmt.Sprintf("%s @> ?::jsonb", r.column), string(needle))
	default:
		q = q.Where(
			fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s.%s) AS e WHERE json_extract(e.value, '$.id') = ?)", r.table, r.column),
			childID.String(),
		)
	}
	var ids []uuid.UUID
	if err := q.Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *summaryArray[T]) ParentIDs(dbc dbctx.Context) ([]uuid.UUID, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var ids []uuid.UUID
	if err := t.WithContext(dbc.Ctx).Table(r.table).Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *summaryArray[T]) mutate(
	dbc dbctx.Context,
	parentID uuid.UUID,
	fn func([]types.Summary) ([]types.Summary, bool),
) (found bool, changed bool, err error) {
	return r.mutateTx(dbc, parentID, func(_ dbctx.Context, list []types.Summary) ([]types.Summary, bool, error) {
		next, ok := fn(list)
		return next, ok, nil
	})
}

// mutateTx locks the parent row and hands fn the current array together with
// a context bound to the locking transaction.
func (r *summaryArray[T]) mutateTx(
	dbc dbctx.Context,
	parentID uuid.UUID,
	fn func(dbctx.Context, []types.Summary) ([]types.Summary, bool, error),
) (found bool, changed bool, err error) {
	apply := func(tx *gorm.DB) error {
		var row T
		// The sqlite dialector drops the locking clause; its single writer
		// connection gives the same guarantee.
		err := tx.WithContext(dbc.Ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", parentID).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		current := append([]types.Summary{}, (*r.field(&row))...)
		next, ok, err := fn(dbc.WithTx(tx), current)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		changed = true
		return tx.WithContext(dbc.Ctx).Model(&row).Update(r.column, types.Summaries(next)).Error
	}
	if dbc.Tx != nil {
		err = apply(dbc.Tx)
	} else {
		err = r.db.WithContext(dbc.Ctx).Transaction(apply)
	}
	if err != nil {
		r.log.Warn("summary array write failed", "parent_id", parentID, "error", err)
	}
	return found, changed, err
}

// dedupe drops every entry for id after the first and returns how many were removed.
func dedupe(list *[]types.Summary, id uuid.UUID) int {
	seen := false
	out := (*list)[:0]
	removed := 0
	for _, s := range *list {
		if s.ID == id {
			if seen {
				removed++
				continue
			}
			seen = true
		}
		out = append(out, s)
	}
	*list = out
	return removed
}

// sameSummaries compares two arrays as sets keyed by id.
func sameSummaries(a, b []types.Summary) bool {
	if len(a) != len(b) {
		return false
	}
	byID := make(map[uuid.UUID]types.Summary, len(a))
	for _, s := range a {
		if _, dup := byID[s.ID]; dup {
			return false
		}
		byID[s.ID] = s
	}
	for _, s := range b {
		prev, ok := byID[s.ID]
		if !ok || !prev.Equal(s) {
			return false
		}
		delete(byID, s.ID)
	}
	return len(byID) == 0
}
