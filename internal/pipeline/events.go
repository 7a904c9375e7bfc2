package pipeline

import "sync/atomic"

// EventKind names one kind of progress event.
type EventKind string

const (
	EventRunStarted         EventKind = "run_started"
	EventPositionStarted    EventKind = "position_started"
	EventPositionSkipped    EventKind = "position_skipped"
	EventCandidateSucceeded EventKind = "candidate_succeeded"
	EventCandidateFailed    EventKind = "candidate_failed"
	EventCandidateSkipped   EventKind = "candidate_skipped"
	EventPositionCompleted  EventKind = "position_completed"
	EventRunCompleted       EventKind = "run_completed"
)

// Event is one progress notification flowing out of the pipeline.
type Event struct {
	Kind     EventKind
	Position string
	File     string
	Stage    Stage
	Reason   string
	// Totals accompany run_started so consumers can render done/total.
	Positions  int
	Candidates int
}

const eventBufferSize = 256

// emitter fans progress events out to a consumer without ever blocking the
// pipeline. When the consumer falls behind and the buffer fills, events are
// dropped; progress reporting is best-effort by contract. The drop counter
// is atomic: every candidate goroutine emits concurrently.
type emitter struct {
	ch      chan Event
	dropped atomic.Int64
}

func newEmitter() *emitter {
	return &emitter{ch: make(chan Event, eventBufferSize)}
}

func (e *emitter) emit(ev Event) {
	select {
	case e.ch <- ev:
	default:
		e.dropped.Add(1)
	}
}

func (e *emitter) close() {
	close(e.ch)
}
