// Package ingest watches a drop directory and bulk-upserts every chokePoint
// CSV that lands in it.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	types "github.com/yungbote/indoormap-backend/internal/domain"
	"github.com/yungbote/indoormap-backend/internal/platform/dbctx"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

// FailedSuffix is appended to files that could not be imported so they are
// not retried on every event.
const FailedSuffix = ".failed"

type Importer interface {
	ImportCSV(dbc dbctx.Context, r io.Reader) ([]*types.ChokePoint, error)
}

type Result struct {
	Path  string
	Rows  int
	Err   error
	Taken time.Duration
}

type Options struct {
	// Settle is how long a file must go without events before it is read.
	Settle time.Duration
	// OnResult is called after every import attempt.
	OnResult func(Result)
}

type Watcher struct {
	log      *logger.Logger
	dir      string
	importer Importer
	opts     Options

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func NewWatcher(log *logger.Logger, dir string, importer Importer, opts Options) (*Watcher, error) {
	if opts.Settle <= 0 {
		opts.Settle = 500 * time.Millisecond
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch dir %q is not a directory", dir)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %q: %w", dir, err)
	}
	return &Watcher{
		log:      log.With("component", "ImportWatcher", "dir", dir),
		dir:      dir,
		importer: importer,
		opts:     opts,
		watcher:  fw,
		pending:  map[string]*time.Timer{},
	}, nil
}

// Run imports CSVs already in the directory, then every new one, until ctx
// is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()

	existing, err := filepath.Glob(filepath.Join(w.dir, "*"))
	if err != nil {
		return err
	}
	sort.Strings(existing)
	for _, p := range existing {
		if isCSV(p) {
			w.schedule(ctx, p)
		}
	}
	w.log.Info("Watching for chokePoint imports")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !isCSV(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) close() {
	_ = w.watcher.Close()
	w.mu.Lock()
	for p, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, p)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		if t.Stop() {
			w.wg.Done()
		}
	}
	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.opts.Settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.importFile(ctx, path)
	})
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	start := time.Now()
	res := Result{Path: path}
	defer func() {
		res.Taken = time.Since(start)
		if w.opts.OnResult != nil {
			w.opts.OnResult(res)
		}
	}()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		res.Err = err
		w.log.Warn("open import failed", "file", path, "error", err)
		return
	}
	rows, err := w.importer.ImportCSV(dbctx.Context{Ctx: ctx}, f)
	_ = f.Close()
	if err != nil {
		res.Err = err
		w.log.Warn("chokePoint import failed", "file", path, "error", err)
		if rerr := os.Rename(path, path+FailedSuffix); rerr != nil {
			w.log.Warn("mark import failed", "file", path, "error", rerr)
		}
		return
	}
	res.Rows = len(rows)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		w.log.Warn("remove imported file", "file", path, "error", err)
	}
	w.log.Info("chokePoints imported", "file", filepath.Base(path), "rows", len(rows))
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}
