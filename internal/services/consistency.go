package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/indoormap-backend/internal/data/repos"
	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/observability"
	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// ConsistencyEngine keeps the summary copies of every registered relation in
// step with the entities they describe. Each primitive is a sequence of
// single-row atomic writes; Track records an outbox row around a sequence so
// an interrupted one is finished later by the reconciler.
type ConsistencyEngine interface {
	Relations() *RelationRegistry

	// Lock serializes mutations of one entity for the lifetime of the caller.
	Lock(ctx context.Context, kind types.Kind, id uuid.UUID) (func(), error)
	Track(dbc dbctx.Context, kind types.Kind, id uuid.UUID, op string, steps func(dbc dbctx.Context) error) error

	// ReconcileParentChange moves child's summary from oldParent's array to
	// newParent's. Either id may be nil; equal ids update the entry in place.
	ReconcileParentChange(dbc dbctx.Context, rel *Relation, oldParent, newParent *uuid.UUID, child types.Summary) error
	GuardDeletable(dbc dbctx.Context, kind types.Kind, id uuid.UUID) error
	// Refresh republishes the entity's current summary into every holder.
	Refresh(dbc dbctx.Context, kind types.Kind, id uuid.UUID) error
	Delete(dbc dbctx.Context, kind types.Kind, id uuid.UUID) (*DeleteResult, error)

	SummaryOf(dbc dbctx.Context, kind types.Kind, id uuid.UUID) (*types.Summary, error)
	// Repair re-derives every copy involving the entity from the child-side
	// references and returns how many writes were needed.
	Repair(dbc dbctx.Context, kind types.Kind, id uuid.UUID) (int, error)
}

type entityStore struct {
	summary func(dbctx.Context, uuid.UUID) (*types.Summary, error)
	delete  func(dbctx.Context, uuid.UUID) (int64, error)
}

type consistencyEngine struct {
	log       *logger.Logger
	relations *RelationRegistry
	stores    map[types.Kind]entityStore
	tasks     repos.ReconcileTaskRepo
	locker    Locker
}

func NewConsistencyEngine(log *logger.Logger, rs repos.Set, relations *RelationRegistry, locker Locker) ConsistencyEngine {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	return &consistencyEngine{
		log:       log.With("service", "ConsistencyEngine"),
		relations: relations,
		tasks:     rs.ReconcileTasks,
		locker:    locker,
		stores: map[types.Kind]entityStore{
			types.KindAsset:      {summary: rs.Assets.SummaryByID, delete: rs.Assets.DeleteByID},
			types.KindFloorMap:   {summary: rs.FloorMaps.SummaryByID, delete: rs.FloorMaps.DeleteByID},
			types.KindLocation:   {summary: rs.Locations.SummaryByID, delete: rs.Locations.DeleteByID},
			types.KindChokePoint: {summary: rs.ChokePoints.SummaryByID, delete: rs.ChokePoints.DeleteByID},
		},
	}
}

func (e *consistencyEngine) Relations() *RelationRegistry { return e.relations }

func (e *consistencyEngine) Lock(ctx context.Context, kind types.Kind, id uuid.UUID) (func(), error) {
	unlock, err := e.locker.Lock(ctx, EntityLockKey(kind, id))
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("lock %s %s: %w", kind, id, err))
	}
	return unlock, nil
}

func (e *consistencyEngine) Track(dbc dbctx.Context, kind types.Kind, id uuid.UUID, op string, steps func(dbc dbctx.Context) error) error {
	ctx, span := observability.Tracer().Start(dbc.Ctx, "engine."+op)
	defer span.End()
	span.SetAttributes(attribute.String("kind", kind.String()), attribute.String("entity_id", id.String()))
	dbc = dbctx.Context{Ctx: ctx, Tx: dbc.Tx}

	task, err := e.tasks.Create(dbc, &types.ReconcileTask{Kind: kind, EntityID: id, Op: op})
	if err != nil {
		return apierr.Internal(fmt.Errorf("record reconcile task: %w", err))
	}
	if err := steps(dbc); err != nil {
		span.RecordError(err)
		observability.EngineFailures.WithLabelValues(kind.String(), op).Inc()
		e.log.Error("dependent writes failed, left for reconciler",
			"kind", kind, "entity_id", id, "op", op, "task_id", task.ID, "error", err)
		if mErr := e.tasks.MarkFailed(dbc, task.ID, err); mErr != nil {
			e.log.Warn("mark reconcile task failed", "task_id", task.ID, "error", mErr)
		}
		return apierr.Internal(fmt.Errorf("%s %s %s: %w", op, kind, id, err))
	}
	if err := e.tasks.Complete(dbc, task.ID); err != nil {
		e.log.Warn("complete reconcile task failed", "task_id", task.ID, "error", err)
	}
	return nil
}

func present(id *uuid.UUID) bool { return id != nil && *id != uuid.Nil }

func (e *consistencyEngine) ReconcileParentChange(dbc dbctx.Context, rel *Relation, oldParent, newParent *uuid.UUID, child types.Summary) error {
	switch {
	case !present(oldParent) && !present(newParent):
		return nil
	case !present(oldParent):
		return e.push(dbc, rel, *newParent, child)
	case !present(newParent):
		return e.pull(dbc, rel, *oldParent, child.ID)
	case *oldParent == *newParent:
		_, err := e.set(dbc, rel, *oldParent, child)
		return err
	default:
		if err := e.pull(dbc, rel, *oldParent, child.ID); err != nil {
			return err
		}
		return e.push(dbc, rel, *newParent, child)
	}
}

func (e *consistencyEngine) push(dbc dbctx.Context, rel *Relation, parentID uuid.UUID, child types.Summary) error {
	observability.EngineWrites.WithLabelValues(rel.Name, "push").Inc()
	if err := rel.Array.Push(dbc, parentID, child); err != nil {
		return fmt.Errorf("%s push %s into %s: %w", rel.Name, child.ID, parentID, err)
	}
	return nil
}

func (e *consistencyEngine) pull(dbc dbctx.Context, rel *Relation, parentID, childID uuid.UUID) error {
	observability.EngineWrites.WithLabelValues(rel.Name, "pull").Inc()
	if err := rel.Array.Pull(dbc, parentID, childID); err != nil {
		return fmt.Errorf("%s pull %s from %s: %w", rel.Name, childID, parentID, err)
	}
	return nil
}

func (e *consistencyEngine) set(dbc dbctx.Context, rel *Relation, parentID uuid.UUID, child types.Summary) (bool, error) {
	observability.EngineWrites.WithLabelValues(rel.Name, "set").Inc()
	matched, err := rel.Array.Set(dbc, parentID, child)
	if err != nil {
		return false, fmt.Errorf("%s set %s in %s: %w", rel.Name, child.ID, parentID, err)
	}
	return matched, nil
}

func (e *consistencyEngine) GuardDeletable(dbc dbctx.Context, kind types.Kind, id uuid.UUID) error {
	for _, rel := range e.relations.AsParent(kind) {
		list, err := rel.Array.List(dbc, id)
		if err != nil {
			return apierr.Wrap(err, "load "+rel.Array.Column())
		}
		children, err := rel.Ref.ChildIDs(dbc, id)
		if err != nil {
			return apierr.Wrap(err, "load "+rel.Child.String()+" references")
		}
		if len(list) > 0 || len(children) > 0 {
			return apierr.HasDependents("%s %s still has %s attached", kind, id, rel.Child)
		}
	}
	return nil
}

func (e *consistencyEngine) SummaryOf(dbc dbctx.Context, kind types.Kind, id uuid.UUID) (*types.Summary, error) {
	store, ok := e.stores[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	return store.summary(dbc, id)
}

func (e *consistencyEngine) Refresh(dbc dbctx.Context, kind types.Kind, id uuid.UUID) error {
	s, err := e.SummaryOf(dbc, kind, id)
	if err != nil {
		return err
	}
	if s == nil {
		return apierr.NotFound("%s %s not found", kind, id)
	}
	for _, rel := range e.relations.AsChild(kind) {
		parent, _, err := rel.Ref.ParentOf(dbc, id)
		if err != nil {
			return err
		}
		if !present(parent) {
			continue
		}
		if _, err := e.set(dbc, rel, *parent, *s); err != nil {
			return err
		}
	}
	for _, rel := range e.relations.AsParent(kind) {
		observability.EngineWrites.WithLabelValues(rel.Name, "ref").Inc()
		if _, err := rel.Ref.SetForParent(dbc, *s); err != nil {
			return fmt.Errorf("%s refresh %s refs: %w", rel.Name, rel.Child, err)
		}
	}
	return nil
}

func (e *consistencyEngine) Delete(dbc dbctx.Context, kind types.Kind, id uuid.UUID) (*DeleteResult, error) {
	store, ok := e.stores[kind]
	if !ok {
		return nil, apierr.Internal(fmt.Errorf("unknown entity kind %q", kind))
	}
	unlock, err := e.Lock(dbc.Ctx, kind, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s, err := store.summary(dbc, id)
	if err != nil {
		return nil, apierr.Wrap(err, "load "+kind.String())
	}
	if s == nil {
		return nil, apierr.NotFound("%s %s not found", kind, id)
	}
	if err := e.GuardDeletable(dbc, kind, id); err != nil {
		return nil, err
	}

	res := &DeleteResult{}
	err = e.Track(dbc, kind, id, "delete", func(dbc dbctx.Context) error {
		for _, rel := range e.relations.AsChild(kind) {
			parent, _, err := rel.Ref.ParentOf(dbc, id)
			if err != nil {
				return err
			}
			if present(parent) {
				if err := e.pull(dbc, rel, *parent, id); err != nil {
					return err
				}
			}
		}
		n, err := store.delete(dbc, id)
		if err != nil {
			return err
		}
		res.DeletedCount = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("entity deleted", "kind", kind, "id", id)
	return res, nil
}

func (e *consistencyEngine) Repair(dbc dbctx.Context, kind types.Kind, id uuid.UUID) (int, error) {
	s, err := e.SummaryOf(dbc, kind, id)
	if err != nil {
		return 0, err
	}
	fixes := 0
	fixed := func(rel *Relation, n int) {
		if n > 0 {
			fixes += n
			observability.DriftFixes.WithLabelValues(rel.Name, kind.String()).Add(float64(n))
		}
	}

	if s == nil {
		// Gone: drop every copy of it and every reference to it.
		for _, rel := range e.relations.AsChild(kind) {
			holders, err := rel.Array.HoldersOf(dbc, id)
			if err != nil {
				return fixes, err
			}
			for _, h := range holders {
				if err := e.pull(dbc, rel, h, id); err != nil {
					return fixes, err
				}
			}
			fixed(rel, len(holders))
		}
		for _, rel := range e.relations.AsParent(kind) {
			ids, err := rel.Ref.ChildIDs(dbc, id)
			if err != nil {
				return fixes, err
			}
			n, err := rel.Ref.SetMany(dbc, ids, nil)
			if err != nil {
				return fixes, err
			}
			fixed(rel, int(n))
		}
		return fixes, nil
	}

	for _, rel := range e.relations.AsChild(kind) {
		parent, _, err := rel.Ref.ParentOf(dbc, id)
		if err != nil {
			return fixes, err
		}
		var parentSummary *types.Summary
		if present(parent) {
			parentSummary, err = e.SummaryOf(dbc, rel.Parent, *parent)
			if err != nil {
				return fixes, err
			}
			if parentSummary == nil {
				if err := rel.Ref.Set(dbc, id, nil); err != nil {
					return fixes, err
				}
				fixed(rel, 1)
				parent = nil
			}
		}

		holders, err := rel.Array.HoldersOf(dbc, id)
		if err != nil {
			return fixes, err
		}
		for _, h := range holders {
			if present(parent) && h == *parent {
				continue
			}
			if err := e.pull(dbc, rel, h, id); err != nil {
				return fixes, err
			}
			fixed(rel, 1)
		}
		if !present(parent) {
			continue
		}
		list, err := rel.Array.List(dbc, *parent)
		if err != nil {
			return fixes, err
		}
		if countID(list, id) != 1 || !list[types.IndexOf(list, id)].Equal(*s) {
			if err := e.push(dbc, rel, *parent, *s); err != nil {
				return fixes, err
			}
			fixed(rel, 1)
		}
		if err := rel.Ref.Set(dbc, id, parentSummary); err != nil {
			return fixes, err
		}
	}

	for _, rel := range e.relations.AsParent(kind) {
		children, err := rel.Ref.ChildSummaries(dbc, id)
		if err != nil {
			return fixes, err
		}
		changed, err := rel.Array.Replace(dbc, id, children)
		if err != nil {
			return fixes, err
		}
		if changed {
			fixed(rel, 1)
		}
		if _, err := rel.Ref.SetForParent(dbc, *s); err != nil {
			return fixes, err
		}
	}
	return fixes, nil
}

func countID(list []types.Summary, id uuid.UUID) int {
	n := 0
	for _, s := range list {
		if s.ID == id {
			n++
		}
	}
	return n
}

func sameParent(a, b *uuid.UUID) bool {
	if !present(a) || !present(b) {
		return present(a) == present(b)
	}
	return *a == *b
}

// moveAndRefresh reconciles a parent change on rel when there is one, then
// republishes the child's summary into every holder.
func moveAndRefresh(dbc dbctx.Context, engine ConsistencyEngine, rel *Relation, oldParent, newParent *uuid.UUID, child types.Summary) error {
	if !sameParent(oldParent, newParent) {
		if err := engine.ReconcileParentChange(dbc, rel, oldParent, newParent, child); err != nil {
			return err
		}
	}
	return engine.Refresh(dbc, rel.Child, child.ID)
}
