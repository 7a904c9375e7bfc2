// Package report exports a run's results as an .xlsx workbook for hiring
// managers: a summary sheet with the run's totals and a candidates sheet
// ranked by match score.
package report

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/screenpilot/cv-ranker/internal/candidate"
	"github.com/screenpilot/cv-ranker/internal/pipeline"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet    = "Summary"
	candidatesSheet = "Candidates"
)

var candidateHeader = []string{
	"Rank", "Name", "Email", "Position", "Match Score", "Ranking", "Status", "CV File",
}

// Write renders the run summary into an .xlsx workbook at path.
func Write(path string, summary *pipeline.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSummarySheet(f, summary); err != nil {
		return err
	}
	if err := writeCandidatesSheet(f, summary.Assessments); err != nil {
		return err
	}

	// Drop the default sheet excelize creates.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("deleting default sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving report to %s: %w", path, err)
	}

	return nil
}

func writeSummarySheet(f *excelize.File, summary *pipeline.Summary) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Generated", time.Now().Format(time.RFC3339)},
		{"Positions processed", summary.Positions},
		{"Candidates succeeded", summary.Succeeded},
		{"Candidates failed", summary.Failed()},
		{"Candidates skipped (already processed)", summary.SkippedFiles},
		{"Positions skipped", len(summary.SkippedPositions)},
		{},
		{"Failures by stage"},
	}

	byStage := summary.FailedByStage()
	stages := make([]string, 0, len(byStage))
	for stage := range byStage {
		stages = append(stages, string(stage))
	}
	sort.Strings(stages)
	for _, stage := range stages {
		rows = append(rows, []interface{}{stage, byStage[pipeline.Stage(stage)]})
	}

	if len(summary.Failures) > 0 {
		rows = append(rows, []interface{}{}, []interface{}{"Failed candidates"})
		rows = append(rows, []interface{}{"Position", "File", "Stage", "Reason"})
		for _, failure := range summary.Failures {
			rows = append(rows, []interface{}{failure.Position, failure.File, string(failure.Stage), failure.Reason})
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	return nil
}

func writeCandidatesSheet(f *excelize.File, assessments []*candidate.Assessment) error {
	if _, err := f.NewSheet(candidatesSheet); err != nil {
		return err
	}

	ranked := make([]*candidate.Assessment, len(assessments))
	copy(ranked, assessments)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MatchScore > ranked[j].MatchScore
	})

	header := make([]interface{}, len(candidateHeader))
	for i, h := range candidateHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(candidatesSheet, "A1", &header); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(len(candidateHeader))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(candidatesSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	for i, a := range ranked {
		row := []interface{}{
			i + 1,
			a.Name,
			a.Email,
			a.PositionTitle,
			a.MatchScore,
			string(a.Ranking),
			string(a.Status),
			filepath.Base(a.SourceFile),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(candidatesSheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.AutoFilter(candidatesSheet, fmt.Sprintf("A1:%s%d", lastCol, len(ranked)+1), nil); err != nil {
		return err
	}

	// Keep the header visible while scrolling.
	return f.SetPanes(candidatesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
