package worker

import (
	"context"
	"time"

	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/services"
)

// ReconcileWorker runs the reconciler on a fixed interval until its context
// is cancelled.
type ReconcileWorker struct {
	log        *logger.Logger
	reconciler services.Reconciler
	interval   time.Duration
	done       chan struct{}
}

func NewReconcileWorker(baseLog *logger.Logger, reconciler services.Reconciler, interval time.Duration) *ReconcileWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReconcileWorker{
		log:        baseLog.With("component", "ReconcileWorker"),
		reconciler: reconciler,
		interval:   interval,
		done:       make(chan struct{}),
	}
}

func (w *ReconcileWorker) Start(ctx context.Context) {
	w.log.Info("Starting reconcile worker", "interval", w.interval.String())
	go w.runLoop(ctx)
}

// Done is closed once the loop has exited.
func (w *ReconcileWorker) Done() <-chan struct{} { return w.done }

func (w *ReconcileWorker) runLoop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Reconcile loop stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ReconcileWorker) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Reconcile run panic", "panic", r)
		}
	}()
	start := time.Now()
	report, err := w.reconciler.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("Reconcile run failed", "error", err)
		}
		return
	}
	if report.Replayed > 0 || report.Failed > 0 || report.Fixes > 0 {
		w.log.Info("Reconcile run finished",
			"replayed", report.Replayed,
			"failed", report.Failed,
			"skipped", report.Skipped,
			"fixes", report.Fixes,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
