// Package watcher monitors the jobs root for new candidate files and
// triggers reprocessing of the affected position.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/screenpilot/cv-ranker/internal/extract"
	"github.com/screenpilot/cv-ranker/internal/logger"
	"go.uber.org/zap"
)

const (
	cvDirName = "CVs"

	// DefaultDebounce is how long a position stays quiet before it is
	// reprocessed. Copying a CV into the folder fires a burst of events,
	// and a half-copied file must settle before extraction touches it.
	DefaultDebounce = 2 * time.Second
)

// Callback is invoked with a position folder after new candidate files have
// settled there.
type Callback func(positionDir string)

// Watcher follows the jobs root, its position folders, and their CVs
// subfolders, including folders created while watching.
type Watcher struct {
	root     string
	logger   *zap.Logger
	debounce time.Duration
	callback Callback

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(root string, log *zap.Logger, debounce time.Duration, callback Callback) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		root:     root,
		logger:   log,
		debounce: debounce,
		callback: callback,
		timers:   make(map[string]*time.Timer),
	}
}

// Run watches until the context is cancelled. Pending debounce timers are
// stopped on exit; a position that had not settled is simply not processed.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()
	defer w.stopTimers()

	if err := w.addExisting(fsw); err != nil {
		return err
	}

	w.logger.Info("watching jobs folder", zap.String("root", w.root))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// addExisting registers the root, every position folder, and every CVs
// subfolder present at startup.
func (w *Watcher) addExisting(fsw *fsnotify.Watcher) error {
	if err := fsw.Add(w.root); err != nil {
		return fmt.Errorf("watching jobs root %q: %w", w.root, err)
	}

	entries, err := os.ReadDir(w.root)
	if err != nil {
		return fmt.Errorf("reading jobs root: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		dir := filepath.Join(w.root, entry.Name())
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("cannot watch position folder", zap.String(logger.FieldPosition, entry.Name()), zap.Error(err))
			continue
		}

		cvDir := filepath.Join(dir, cvDirName)
		if info, err := os.Stat(cvDir); err == nil && info.IsDir() {
			if err := fsw.Add(cvDir); err != nil {
				w.logger.Warn("cannot watch CVs folder", zap.String(logger.FieldPosition, entry.Name()), zap.Error(err))
			}
		}
	}

	return nil
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}

	if info.IsDir() {
		// A new position folder under the root, or a new CVs folder under a
		// position, joins the watch set.
		parent := filepath.Dir(event.Name)
		base := filepath.Base(event.Name)
		if parent == w.root || (base == cvDirName && filepath.Dir(parent) == w.root) {
			if err := fsw.Add(event.Name); err != nil {
				w.logger.Warn("cannot watch new folder", zap.String("dir", event.Name), zap.Error(err))
			} else {
				w.logger.Debug("watching new folder", zap.String("dir", event.Name))
			}
		}
		return
	}

	// Only settled candidate files inside a CVs folder trigger a run.
	dir := filepath.Dir(event.Name)
	if filepath.Base(dir) != cvDirName || !extract.IsSupported(event.Name) {
		return
	}

	w.schedule(filepath.Dir(dir), filepath.Base(event.Name))
}

// schedule arms (or re-arms) the position's debounce timer. Every further
// event within the window pushes the run back again.
func (w *Watcher) schedule(positionDir, file string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[positionDir]; ok {
		timer.Reset(w.debounce)
		return
	}

	w.logger.Info("new candidate file detected",
		logger.CandidateFields(filepath.Base(positionDir), file)...,
	)

	w.timers[positionDir] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, positionDir)
		w.mu.Unlock()

		w.callback(positionDir)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for dir, timer := range w.timers {
		timer.Stop()
		delete(w.timers, dir)
	}
}
