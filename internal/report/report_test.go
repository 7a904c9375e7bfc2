package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/screenpilot/cv-ranker/internal/candidate"
	"github.com/screenpilot/cv-ranker/internal/pipeline"
	"github.com/xuri/excelize/v2"
)

func testSummary() *pipeline.Summary {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	return &pipeline.Summary{
		Positions: 1,
		Succeeded: 2,
		Failures: []pipeline.Failure{
			{Position: "backend", File: "bad.pdf", Stage: pipeline.StageExtraction, Reason: "no extractable text"},
		},
		Assessments: []*candidate.Assessment{
			{
				Name: "John Roe", Email: "john@x.com", PositionTitle: "backend",
				MatchScore: 62, Ranking: candidate.RankingMediumFit,
				Status: candidate.StatusTodo, SourceFile: "/jobs/backend/CVs/john_roe.pdf",
				ProcessedAt: now,
			},
			{
				Name: "Jane Doe", Email: "jane@x.com", PositionTitle: "backend",
				MatchScore: 91, Ranking: candidate.RankingHighFit,
				Status: candidate.StatusTodo, SourceFile: "/jobs/backend/CVs/jane_doe.pdf",
				ProcessedAt: now,
			},
		},
	}
}

func TestWriteProducesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.xlsx")

	if err := Write(path, testSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 {
		t.Fatalf("expected 2 sheets, got %v", sheets)
	}

	rows, err := f.GetRows("Candidates")
	if err != nil {
		t.Fatalf("reading candidates sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 candidates, got %d rows", len(rows))
	}

	// Ranked by match score, highest first.
	if rows[1][1] != "Jane Doe" {
		t.Errorf("expected Jane Doe ranked first, got %q", rows[1][1])
	}
	if rows[2][1] != "John Roe" {
		t.Errorf("expected John Roe ranked second, got %q", rows[2][1])
	}
	if rows[1][7] != "jane_doe.pdf" {
		t.Errorf("expected base filename, got %q", rows[1][7])
	}
}

func TestWriteSummarySheetListsFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.xlsx")

	if err := Write(path, testSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Summary")
	if err != nil {
		t.Fatalf("reading summary sheet: %v", err)
	}

	var foundFailure bool
	for _, row := range rows {
		if len(row) >= 3 && row[1] == "bad.pdf" && row[2] == "extraction" {
			foundFailure = true
		}
	}
	if !foundFailure {
		t.Error("summary sheet must list the failed candidate with its stage")
	}
}

func TestWriteEmptyRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")

	if err := Write(path, &pipeline.Summary{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Candidates")
	if err != nil {
		t.Fatalf("reading candidates sheet: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %d rows", len(rows))
	}
}
