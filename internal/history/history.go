// Package history tracks which candidate files have already been processed
// for a position, so repeated runs over the same jobs folder skip work that
// is already in the store.
package history

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileName is the per-position log of handled candidate files, one relative
// filename per line. Plain text on purpose: greppable and hand-editable.
const FileName = ".processed_files.log"

// Log is the processed-files record of one position folder.
type Log struct {
	path string

	mu   sync.Mutex
	seen map[string]struct{}
}

// New returns an empty history for the given position folder, ignoring any
// existing log file on disk.
func New(dir string) *Log {
	return &Log{
		path: filepath.Join(dir, FileName),
		seen: make(map[string]struct{}),
	}
}

// Load reads the processed-files log of the given position folder. A missing
// log file is an empty history, not an error.
func Load(dir string) (*Log, error) {
	l := New(dir)

	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("opening processed log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		l.seen[name] = struct{}{}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading processed log: %w", err)
	}

	return l, nil
}

// Seen reports whether the candidate file was handled in an earlier run.
func (l *Log) Seen(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[name]
	return ok
}

// Add records the candidate file as handled and appends it to the log file.
func (l *Log) Add(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[name]; ok {
		return nil
	}

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening processed log for append: %w", err)
	}
	defer file.Close()

	if _, err := fmt.Fprintln(file, name); err != nil {
		return fmt.Errorf("appending to processed log: %w", err)
	}

	l.seen[name] = struct{}{}

	return nil
}
