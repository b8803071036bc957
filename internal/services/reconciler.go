package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/indoormap-backend/internal/data/repos"
	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/observability"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

type ReconcileReport struct {
	Replayed int `json:"replayed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
	Fixes    int `json:"fixes"`
}

// Reconciler bounds the drift left by interrupted engine mutations: it
// replays outbox tasks and then re-derives every parent array from the
// child-side references.
type Reconciler interface {
	RunOnce(ctx context.Context) (*ReconcileReport, error)
}

type ReconcilerConfig struct {
	// BatchSize caps the tasks replayed per run.
	BatchSize int
	// Grace skips tasks younger than this; their mutation may still be running.
	Grace time.Duration
}

type reconciler struct {
	log    *logger.Logger
	repos  repos.Set
	engine ConsistencyEngine
	cfg    ReconcilerConfig
	now    func() time.Time
}

func NewReconciler(log *logger.Logger, rs repos.Set, engine ConsistencyEngine, cfg ReconcilerConfig) Reconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Grace < 0 {
		cfg.Grace = 0
	}
	return &reconciler{
		log:    log.With("service", "Reconciler"),
		repos:  rs,
		engine: engine,
		cfg:    cfg,
		now:    time.Now,
	}
}

func (r *reconciler) RunOnce(ctx context.Context) (*ReconcileReport, error) {
	ctx, span := observability.Tracer().Start(ctx, "reconciler.run")
	defer span.End()
	dbc := dbctx.Context{Ctx: ctx}
	report := &ReconcileReport{}

	if err := r.replay(dbc, report); err != nil {
		span.RecordError(err)
		return report, err
	}
	if err := r.sweep(dbc, report); err != nil {
		span.RecordError(err)
		return report, err
	}
	if n, err := r.repos.ReconcileTasks.CountPending(dbc); err == nil {
		observability.PendingTasks.Set(float64(n))
	}
	if report.Fixes > 0 || report.Failed > 0 {
		r.log.Warn("reconcile run repaired drift",
			"replayed", report.Replayed, "failed", report.Failed, "fixes", report.Fixes)
	} else {
		r.log.Debug("reconcile run clean", "replayed", report.Replayed, "skipped", report.Skipped)
	}
	return report, nil
}

func (r *reconciler) replay(dbc dbctx.Context, report *ReconcileReport) error {
	tasks, err := r.repos.ReconcileTasks.ListPending(dbc, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	cutoff := r.now().Add(-r.cfg.Grace)
	for _, task := range tasks {
		if err := dbc.Ctx.Err(); err != nil {
			return err
		}
		if task.CreatedAt.After(cutoff) {
			report.Skipped++
			continue
		}
		fixes, err := r.repairLocked(dbc, task.Kind, task.EntityID)
		report.Fixes += fixes
		if err != nil {
			report.Failed++
			r.log.Warn("reconcile task replay failed",
				"task_id", task.ID, "kind", task.Kind, "entity_id", task.EntityID, "attempts", task.Attempts+1, "error", err)
			if mErr := r.repos.ReconcileTasks.MarkFailed(dbc, task.ID, err); mErr != nil {
				return mErr
			}
			continue
		}
		if err := r.repos.ReconcileTasks.Complete(dbc, task.ID); err != nil {
			return err
		}
		report.Replayed++
	}
	return nil
}

func (r *reconciler) repairLocked(dbc dbctx.Context, kind types.Kind, id uuid.UUID) (int, error) {
	unlock, err := r.engine.Lock(dbc.Ctx, kind, id)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return r.engine.Repair(dbc, kind, id)
}

// sweep re-derives every parent array and parent copy from the child refs.
func (r *reconciler) sweep(dbc dbctx.Context, report *ReconcileReport) error {
	for _, rel := range r.engine.Relations().All() {
		cleared, err := rel.Ref.ClearOrphans(dbc, rel.Array.Table())
		if err != nil {
			return err
		}
		r.count(rel, report, int(cleared))

		parents, err := rel.Array.ParentIDs(dbc)
		if err != nil {
			return err
		}
		for _, pid := range parents {
			if err := dbc.Ctx.Err(); err != nil {
				return err
			}
			// Deriving under the parent row lock keeps a concurrent attach
			// from being overwritten by a list read before it committed.
			changed, err := rel.Array.Rebuild(dbc, pid, func(tx dbctx.Context) ([]types.Summary, error) {
				return rel.Ref.ChildSummaries(tx, pid)
			})
			if err != nil {
				return err
			}
			if changed {
				r.count(rel, report, 1)
			}
			parent, err := r.engine.SummaryOf(dbc, rel.Parent, pid)
			if err != nil {
				return err
			}
			if parent != nil {
				if _, err := rel.Ref.SetForParent(dbc, *parent); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *reconciler) count(rel *Relation, report *ReconcileReport, n int) {
	if n <= 0 {
		return
	}
	report.Fixes += n
	observability.DriftFixes.WithLabelValues(rel.Name, rel.Parent.String()).Add(float64(n))
}
