package pipeline

import (
	"sync"

	"github.com/screenpilot/cv-ranker/internal/candidate"
)

// Stage names the pipeline stage where a candidate's processing stopped.
type Stage string

const (
	StageDiscovery  Stage = "discovery"
	StageExtraction Stage = "extraction"
	StageEvaluation Stage = "evaluation"
	StageValidation Stage = "validation"
	StageUpload     Stage = "upload"
)

// Failure pins one failed candidate to its position, file, stage, and reason.
// The quadruple is enough to re-run exactly the failed subset.
type Failure struct {
	Position string
	File     string
	Stage    Stage
	Reason   string
}

// PositionStats aggregates outcomes for one position.
type PositionStats struct {
	Succeeded int
	Skipped   int
	Failed    int
}

// Summary is the final accounting of one batch run.
type Summary struct {
	Positions        int
	SkippedPositions []SkippedPosition
	Succeeded        int
	SkippedFiles     int
	Failures         []Failure
	PerPosition      map[string]*PositionStats
	// Assessments holds every successfully persisted record, for reporting.
	Assessments []*candidate.Assessment
}

// Failed returns the total number of failed candidates.
func (s *Summary) Failed() int {
	return len(s.Failures)
}

// FailedByStage buckets the failures by the stage that produced them.
func (s *Summary) FailedByStage() map[Stage]int {
	counts := make(map[Stage]int)
	for _, f := range s.Failures {
		counts[f.Stage]++
	}
	return counts
}

// collector accumulates per-candidate outcomes from concurrent tasks.
type collector struct {
	mu      sync.Mutex
	summary *Summary
}

func newCollector() *collector {
	return &collector{
		summary: &Summary{PerPosition: make(map[string]*PositionStats)},
	}
}

func (c *collector) stats(position string) *PositionStats {
	stats, ok := c.summary.PerPosition[position]
	if !ok {
		stats = &PositionStats{}
		c.summary.PerPosition[position] = stats
	}
	return stats
}

func (c *collector) succeeded(position string, a *candidate.Assessment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary.Succeeded++
	c.summary.Assessments = append(c.summary.Assessments, a)
	c.stats(position).Succeeded++
}

func (c *collector) skippedFile(position string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary.SkippedFiles++
	c.stats(position).Skipped++
}

func (c *collector) failed(f Failure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary.Failures = append(c.summary.Failures, f)
	c.stats(f.Position).Failed++
}

func (c *collector) skippedPosition(sp SkippedPosition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary.SkippedPositions = append(c.summary.SkippedPositions, sp)
}

func (c *collector) finish(positions int) *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary.Positions = positions
	return c.summary
}
