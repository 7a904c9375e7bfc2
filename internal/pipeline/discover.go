package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// cvDirName is the required subfolder holding candidate files.
const cvDirName = "CVs"

// Position is one job opening discovered under the jobs root: its folder,
// the single job-description PDF, and the candidate files to score against
// it. Immutable once discovered.
type Position struct {
	Name    string
	Dir     string
	JDPath  string
	CVDir   string
	CVFiles []string
}

// SkippedPosition records a position folder excluded during discovery.
type SkippedPosition struct {
	Name   string
	Reason string
}

// Discover walks the jobs root and returns the well-formed positions plus
// the folders that violate the expected shape. A malformed folder never
// aborts discovery; only an unreadable root is fatal. Candidate files keep
// directory order, which ReadDir yields sorted by name.
func Discover(root string) ([]*Position, []SkippedPosition, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, fmt.Errorf("reading jobs root %q: %w", root, err)
	}

	var positions []*Position
	var skipped []SkippedPosition

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		position, reason := inspect(entry.Name(), dir)
		if reason != "" {
			skipped = append(skipped, SkippedPosition{Name: entry.Name(), Reason: reason})
			continue
		}

		positions = append(positions, position)
	}

	return positions, skipped, nil
}

// inspect validates the shape of one position folder: exactly one top-level
// PDF job description and a non-empty CVs subfolder.
func inspect(name, dir string) (*Position, string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Sprintf("unreadable folder: %v", err)
	}

	var jdFiles []string
	hasCVDir := false
	for _, entry := range entries {
		if entry.IsDir() {
			if entry.Name() == cvDirName {
				hasCVDir = true
			}
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			jdFiles = append(jdFiles, entry.Name())
		}
	}

	switch {
	case !hasCVDir:
		return nil, fmt.Sprintf("no %s subfolder", cvDirName)
	case len(jdFiles) == 0:
		return nil, "no job description PDF"
	case len(jdFiles) > 1:
		return nil, fmt.Sprintf("ambiguous job description: %d PDFs at top level", len(jdFiles))
	}

	cvDir := filepath.Join(dir, cvDirName)
	cvEntries, err := os.ReadDir(cvDir)
	if err != nil {
		return nil, fmt.Sprintf("unreadable %s subfolder: %v", cvDirName, err)
	}

	var cvFiles []string
	for _, entry := range cvEntries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		cvFiles = append(cvFiles, entry.Name())
	}

	if len(cvFiles) == 0 {
		return nil, fmt.Sprintf("empty %s subfolder", cvDirName)
	}

	return &Position{
		Name:    name,
		Dir:     dir,
		JDPath:  filepath.Join(dir, jdFiles[0]),
		CVDir:   cvDir,
		CVFiles: cvFiles,
	}, ""
}
