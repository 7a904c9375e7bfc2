package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/screenpilot/cv-ranker/internal/ai"
	"github.com/screenpilot/cv-ranker/internal/candidate"
	"github.com/screenpilot/cv-ranker/internal/history"
	"github.com/screenpilot/cv-ranker/internal/logger"
	"github.com/screenpilot/cv-ranker/internal/uploader"
	"github.com/screenpilot/cv-ranker/internal/utils"
	"go.uber.org/zap"
)

const (
	// DefaultEvaluatorConcurrency bounds simultaneous AI evaluation calls.
	DefaultEvaluatorConcurrency = 5
	// DefaultUploaderConcurrency bounds simultaneous store writes.
	DefaultUploaderConcurrency = 3

	defaultRetryDelay = 5 * time.Second
)

// Extractor converts one document file into plain text.
type Extractor interface {
	Extract(path string) (string, error)
}

// Uploader persists one assessment into the external store.
type Uploader interface {
	Upload(ctx context.Context, a *candidate.Assessment) (uploader.Result, error)
}

// Config is the immutable pipeline configuration, handed in at construction.
type Config struct {
	// Location formats assessment timestamps (default UTC).
	Location *time.Location
	// EvalRetries is the number of extra evaluation attempts granted to
	// rate-limited and transport failures. Malformed responses never retry.
	EvalRetries int
	// RetryDelay is the linear backoff unit between evaluation attempts.
	RetryDelay time.Duration
	// Reprocess ignores the per-position processed-files log.
	Reprocess bool
	// EvaluatorPool bounds concurrent evaluation calls. The two pools are
	// separate because the AI service and the store rate-limit independently.
	EvaluatorPool *Pool
	// UploaderPool bounds concurrent store writes.
	UploaderPool *Pool
}

// Pipeline runs the batch: discovery, extraction, bounded-concurrency
// evaluation, normalization, and bounded-concurrency duplicate-safe upload.
// Each candidate is one isolated unit of work; its failure is recorded and
// never propagates to siblings.
type Pipeline struct {
	extractor Extractor
	evaluator ai.Evaluator
	uploader  Uploader
	logger    *zap.Logger
	cfg       Config
	events    *emitter
}

func New(extractor Extractor, evaluator ai.Evaluator, up Uploader, log *zap.Logger, cfg Config) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.EvaluatorPool == nil {
		cfg.EvaluatorPool = NewPool(DefaultEvaluatorConcurrency)
	}
	if cfg.UploaderPool == nil {
		cfg.UploaderPool = NewPool(DefaultUploaderConcurrency)
	}

	return &Pipeline{
		extractor: extractor,
		evaluator: evaluator,
		uploader:  up,
		logger:    log,
		cfg:       cfg,
		events:    newEmitter(),
	}
}

// Events exposes the progress stream. The channel closes when the run ends.
func (p *Pipeline) Events() <-chan Event {
	return p.events.ch
}

// Run processes every position folder under root and returns the run
// summary. Per-candidate and per-position failures are folded into the
// summary; only an unreadable root is returned as an error.
func (p *Pipeline) Run(ctx context.Context, root string) (*Summary, error) {
	defer p.events.close()

	positions, skipped, err := Discover(root)
	if err != nil {
		return nil, err
	}

	return p.process(ctx, positions, skipped), nil
}

// RunPosition processes a single position folder. Watch mode uses it to
// rescore one position when new candidate files arrive.
func (p *Pipeline) RunPosition(ctx context.Context, dir string) (*Summary, error) {
	defer p.events.close()

	name := filepath.Base(dir)
	position, reason := inspect(name, dir)

	var skipped []SkippedPosition
	var positions []*Position
	if reason != "" {
		skipped = append(skipped, SkippedPosition{Name: name, Reason: reason})
	} else {
		positions = append(positions, position)
	}

	return p.process(ctx, positions, skipped), nil
}

func (p *Pipeline) process(ctx context.Context, positions []*Position, skipped []SkippedPosition) *Summary {
	results := newCollector()

	total := 0
	for _, position := range positions {
		total += len(position.CVFiles)
	}

	p.events.emit(Event{Kind: EventRunStarted, Positions: len(positions), Candidates: total})

	for _, sp := range skipped {
		results.skippedPosition(sp)
		p.events.emit(Event{Kind: EventPositionSkipped, Position: sp.Name, Stage: StageDiscovery, Reason: sp.Reason})
		p.logger.Warn("position skipped",
			zap.String(logger.FieldPosition, sp.Name),
			zap.String("reason", sp.Reason),
		)
	}

	for _, position := range positions {
		if ctx.Err() != nil {
			break
		}
		p.runPosition(ctx, position, results)
	}

	summary := results.finish(len(positions))
	p.events.emit(Event{Kind: EventRunCompleted})

	if n := p.events.dropped.Load(); n > 0 {
		p.logger.Debug("progress events dropped by slow consumer", zap.Int64("count", n))
	}

	return summary
}

// runPosition extracts the JD once, then fans candidates out as independent
// tasks. A failed JD extraction skips the whole position: nothing can be
// scored without it.
func (p *Pipeline) runPosition(ctx context.Context, position *Position, results *collector) {
	log := p.logger.With(zap.String(logger.FieldPosition, position.Name))

	jdText, err := p.extractor.Extract(position.JDPath)
	if err != nil {
		reason := fmt.Sprintf("job description extraction failed: %v", err)
		results.skippedPosition(SkippedPosition{Name: position.Name, Reason: reason})
		p.events.emit(Event{Kind: EventPositionSkipped, Position: position.Name, Stage: StageExtraction, Reason: reason})
		log.Warn("position skipped", zap.String("reason", reason))
		return
	}

	processed, err := history.Load(position.Dir)
	if err != nil {
		log.Warn("processed log unreadable, treating all candidates as new", zap.Error(err))
		processed = history.New(position.Dir)
	}

	p.events.emit(Event{Kind: EventPositionStarted, Position: position.Name, Candidates: len(position.CVFiles)})
	log.Info("processing position", zap.Int("candidates", len(position.CVFiles)))

	var wg sync.WaitGroup
	for _, file := range position.CVFiles {
		if ctx.Err() != nil {
			break
		}

		if !p.cfg.Reprocess && processed.Seen(file) {
			results.skippedFile(position.Name)
			p.events.emit(Event{Kind: EventCandidateSkipped, Position: position.Name, File: file, Reason: "already processed"})
			log.Debug("candidate already processed", zap.String(logger.FieldCandidateFile, file))
			continue
		}

		wg.Add(1)
		go func(file string) {
			defer wg.Done()
			p.runCandidate(ctx, position, jdText, file, processed, results)
		}(file)
	}
	wg.Wait()

	p.events.emit(Event{Kind: EventPositionCompleted, Position: position.Name})
	log.Info("position completed")
}

// runCandidate is one candidate's whole journey. Every error is converted to
// a failure outcome at this boundary; nothing escapes to abort the run.
func (p *Pipeline) runCandidate(ctx context.Context, position *Position, jdText, file string, processed *history.Log, results *collector) {
	log := logger.WithFields(p.logger, logger.CandidateFields(position.Name, file)...)
	path := filepath.Join(position.CVDir, file)

	fail := func(stage Stage, err error) {
		results.failed(Failure{Position: position.Name, File: file, Stage: stage, Reason: err.Error()})
		p.events.emit(Event{Kind: EventCandidateFailed, Position: position.Name, File: file, Stage: stage, Reason: err.Error()})
		log.Warn("candidate failed", zap.String("stage", string(stage)), zap.Error(err))
	}

	cvText, err := p.extractor.Extract(path)
	if err != nil {
		fail(StageExtraction, err)
		return
	}

	evaluation, err := p.evaluate(ctx, ai.Request{
		PositionTitle: position.Name,
		JobText:       jdText,
		ResumeText:    cvText,
	}, log)
	if err != nil {
		fail(StageEvaluation, err)
		return
	}

	assessment, err := candidate.FromEvaluation(evaluation, path, position.Name, time.Now().In(p.cfg.Location))
	if err != nil {
		fail(StageValidation, err)
		return
	}

	if err := p.cfg.UploaderPool.Acquire(ctx); err != nil {
		fail(StageUpload, err)
		return
	}
	result, err := p.uploader.Upload(ctx, assessment)
	p.cfg.UploaderPool.Release()
	if err != nil {
		fail(StageUpload, err)
		return
	}

	if err := processed.Add(file); err != nil {
		log.Warn("could not record candidate in processed log", zap.Error(err))
	}

	results.succeeded(position.Name, assessment)
	p.events.emit(Event{Kind: EventCandidateSucceeded, Position: position.Name, File: file})
	log.Info("candidate processed",
		zap.Float64("match_score", assessment.MatchScore),
		zap.String("ranking", string(assessment.Ranking)),
		zap.String("upload", string(result)),
	)
}

// evaluate runs one evaluation under the evaluator pool, retrying only
// rate-limit and transport failures with linear backoff. A malformed
// response fails immediately: resending the same prompt cannot fix it.
func (p *Pipeline) evaluate(ctx context.Context, req ai.Request, log *zap.Logger) (*ai.Evaluation, error) {
	var lastErr error

	for attempt := 0; attempt <= p.cfg.EvalRetries; attempt++ {
		if attempt > 0 {
			log.Warn("retrying evaluation",
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)
			if err := utils.WaitFor(ctx, time.Duration(attempt)*p.cfg.RetryDelay); err != nil {
				return nil, lastErr
			}
		}

		if err := p.cfg.EvaluatorPool.Acquire(ctx); err != nil {
			return nil, err
		}
		evaluation, err := p.evaluator.Evaluate(ctx, req)
		p.cfg.EvaluatorPool.Release()

		if err == nil {
			return evaluation, nil
		}

		lastErr = err
		if !ai.IsRetryable(err) {
			break
		}
	}

	return nil, lastErr
}
