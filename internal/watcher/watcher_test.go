package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type callbackRecorder struct {
	mu    sync.Mutex
	calls []string
	ch    chan string
}

func newCallbackRecorder() *callbackRecorder {
	return &callbackRecorder{ch: make(chan string, 16)}
}

func (r *callbackRecorder) record(dir string) {
	r.mu.Lock()
	r.calls = append(r.calls, dir)
	r.mu.Unlock()
	r.ch <- dir
}

func (r *callbackRecorder) waitForCall(t *testing.T, timeout time.Duration) string {
	t.Helper()
	select {
	case dir := <-r.ch:
		return dir
	case <-time.After(timeout):
		t.Fatal("timed out waiting for callback")
		return ""
	}
}

func startWatcher(t *testing.T, root string, rec *callbackRecorder) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	w := New(root, zap.NewNop(), 50*time.Millisecond, rec.record)
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register its watch set.
	time.Sleep(100 * time.Millisecond)
}

func mkdirs(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherTriggersOnNewCandidateFile(t *testing.T) {
	root := t.TempDir()
	positionDir := filepath.Join(root, "backend")
	mkdirs(t, filepath.Join(positionDir, "CVs"))

	rec := newCallbackRecorder()
	startWatcher(t, root, rec)

	if err := os.WriteFile(filepath.Join(positionDir, "CVs", "jane_doe.pdf"), []byte("cv"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := rec.waitForCall(t, 2*time.Second)
	if got != positionDir {
		t.Fatalf("callback dir = %q, want %q", got, positionDir)
	}
}

func TestWatcherIgnoresUnsupportedFiles(t *testing.T) {
	root := t.TempDir()
	positionDir := filepath.Join(root, "backend")
	mkdirs(t, filepath.Join(positionDir, "CVs"))

	rec := newCallbackRecorder()
	startWatcher(t, root, rec)

	if err := os.WriteFile(filepath.Join(positionDir, "CVs", "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A JD dropped at the position's top level is not a candidate either.
	if err := os.WriteFile(filepath.Join(positionDir, "jd.pdf"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case dir := <-rec.ch:
		t.Fatalf("unexpected callback for %q", dir)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	root := t.TempDir()
	positionDir := filepath.Join(root, "backend")
	cvDir := filepath.Join(positionDir, "CVs")
	mkdirs(t, cvDir)

	rec := newCallbackRecorder()
	startWatcher(t, root, rec)

	// A burst of files within one debounce window collapses into one run.
	for _, name := range []string{"a.pdf", "b.pdf", "c.docx"} {
		if err := os.WriteFile(filepath.Join(cvDir, name), []byte("cv"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	rec.waitForCall(t, 2*time.Second)
	time.Sleep(300 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.calls) != 1 {
		t.Fatalf("expected one debounced callback, got %d", len(rec.calls))
	}
}

func TestWatcherPicksUpNewPositionFolders(t *testing.T) {
	root := t.TempDir()

	rec := newCallbackRecorder()
	startWatcher(t, root, rec)

	// Position folder and CVs subfolder appear after the watch started.
	positionDir := filepath.Join(root, "new-role")
	mkdirs(t, positionDir)
	time.Sleep(100 * time.Millisecond)
	mkdirs(t, filepath.Join(positionDir, "CVs"))
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(positionDir, "CVs", "cv.pdf"), []byte("cv"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := rec.waitForCall(t, 2*time.Second)
	if got != positionDir {
		t.Fatalf("callback dir = %q, want %q", got, positionDir)
	}
}
