// Package progress renders the pipeline's event stream as live cumulative
// counters. It consumes events on its own goroutine, so a slow log sink can
// never back-pressure the pipeline.
package progress

import (
	"fmt"
	"sync"

	"github.com/screenpilot/cv-ranker/internal/pipeline"
	"go.uber.org/zap"
)

// Counts is a snapshot of the run's cumulative counters.
type Counts struct {
	Positions        int
	Candidates       int
	Succeeded        int
	Failed           int
	Skipped          int
	SkippedPositions int
}

// Done returns how many candidates have reached a terminal outcome.
func (c Counts) Done() int {
	return c.Succeeded + c.Failed + c.Skipped
}

// Reporter drains a pipeline event stream and logs running totals.
type Reporter struct {
	logger *zap.Logger

	mu     sync.Mutex
	counts Counts
	done   chan struct{}
}

// New starts a reporter on the given event stream. It returns immediately;
// call Wait to block until the stream closes.
func New(events <-chan pipeline.Event, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Reporter{
		logger: logger,
		done:   make(chan struct{}),
	}

	go r.consume(events)

	return r
}

// Wait blocks until the event stream has closed and the final state is
// rendered.
func (r *Reporter) Wait() {
	<-r.done
}

// Counts returns the current counter snapshot.
func (r *Reporter) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts
}

func (r *Reporter) consume(events <-chan pipeline.Event) {
	defer close(r.done)

	for ev := range events {
		r.observe(ev)
	}
}

func (r *Reporter) observe(ev pipeline.Event) {
	r.mu.Lock()
	switch ev.Kind {
	case pipeline.EventRunStarted:
		r.counts.Positions = ev.Positions
		r.counts.Candidates = ev.Candidates
	case pipeline.EventCandidateSucceeded:
		r.counts.Succeeded++
	case pipeline.EventCandidateFailed:
		r.counts.Failed++
	case pipeline.EventCandidateSkipped:
		r.counts.Skipped++
	case pipeline.EventPositionSkipped:
		r.counts.SkippedPositions++
	}
	counts := r.counts
	r.mu.Unlock()

	r.render(ev, counts)
}

func (r *Reporter) render(ev pipeline.Event, counts Counts) {
	switch ev.Kind {
	case pipeline.EventRunStarted:
		r.logger.Info("run started",
			zap.Int("positions", counts.Positions),
			zap.Int("candidates", counts.Candidates),
		)
	case pipeline.EventPositionStarted:
		r.logger.Info("position started",
			zap.String("position", ev.Position),
			zap.Int("candidates", ev.Candidates),
		)
	case pipeline.EventPositionSkipped:
		r.logger.Warn("position skipped",
			zap.String("position", ev.Position),
			zap.String("reason", ev.Reason),
		)
	case pipeline.EventCandidateSucceeded:
		r.logger.Info("candidate processed",
			zap.String("position", ev.Position),
			zap.String("file", ev.File),
			zap.String("progress", r.progress(counts)),
		)
	case pipeline.EventCandidateFailed:
		r.logger.Warn("candidate failed",
			zap.String("position", ev.Position),
			zap.String("file", ev.File),
			zap.String("stage", string(ev.Stage)),
			zap.String("reason", ev.Reason),
			zap.String("progress", r.progress(counts)),
		)
	case pipeline.EventCandidateSkipped:
		r.logger.Debug("candidate skipped",
			zap.String("position", ev.Position),
			zap.String("file", ev.File),
			zap.String("reason", ev.Reason),
		)
	case pipeline.EventPositionCompleted:
		r.logger.Info("position completed", zap.String("position", ev.Position))
	case pipeline.EventRunCompleted:
		r.logger.Info("run completed",
			zap.Int("succeeded", counts.Succeeded),
			zap.Int("failed", counts.Failed),
			zap.Int("skipped", counts.Skipped),
			zap.Int("skipped_positions", counts.SkippedPositions),
		)
	}
}

func (r *Reporter) progress(counts Counts) string {
	return fmt.Sprintf("%d/%d", counts.Done(), counts.Candidates)
}
