package uploader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/screenpilot/cv-ranker/internal/candidate"
	"github.com/screenpilot/cv-ranker/internal/utils"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
)

var (
	// ErrLookupFailed wraps failures of the duplicate-detection query.
	ErrLookupFailed = errors.New("candidate lookup failed")
	// ErrWriteFailed wraps failures of the insert or update call.
	ErrWriteFailed = errors.New("candidate write failed")
)

// Result reports what the upload did to the external store.
type Result string

const (
	ResultInserted Result = "inserted"
	ResultUpdated  Result = "updated"
)

// Store is the narrow slice of the document store the uploader needs.
type Store interface {
	FindByKey(ctx context.Context, name, email string) (pageID string, err error)
	CreatePage(ctx context.Context, a *candidate.Assessment, fileUploadID string) (pageID string, err error)
	UpdatePage(ctx context.Context, pageID string, a *candidate.Assessment, fileUploadID string) error
	UploadFile(ctx context.Context, path string) (uploadID string, err error)
}

// Config carries the uploader's retry knobs.
type Config struct {
	// MaxRetries bounds write attempts for one assessment (default 3).
	MaxRetries int
	// RetryDelay is the linear backoff unit between attempts.
	RetryDelay time.Duration
	// AttachFiles uploads the source CV alongside the record when true.
	AttachFiles bool
}

// Uploader writes candidate assessments to the external store without
// creating duplicates. Lookup-then-write is not atomic against a concurrent
// writer with the same natural key, so uploads are serialized per key: two
// submissions sharing a key never run their lookup-write sequences at once.
// Distinct keys proceed in parallel up to whatever bound the caller enforces.
type Uploader struct {
	store       Store
	logger      *zap.Logger
	maxRetries  int
	retryDelay  time.Duration
	attachFiles bool

	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

func New(store Store, logger *zap.Logger, cfg Config) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	return &Uploader{
		store:       store,
		logger:      logger,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		attachFiles: cfg.AttachFiles,
		keys:        make(map[string]*sync.Mutex),
	}
}

// Upload inserts the assessment as a new record, or updates the existing
// record matching its natural key. The returned result says which happened.
func (u *Uploader) Upload(ctx context.Context, a *candidate.Assessment) (Result, error) {
	unlock := u.lockKey(a.Key())
	defer unlock()

	pageID, err := u.store.FindByKey(ctx, a.Name, a.Email)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	fileUploadID := u.uploadFile(ctx, a)

	if pageID != "" {
		if err := u.write(ctx, a, func(ctx context.Context) error {
			return u.store.UpdatePage(ctx, pageID, a, fileUploadID)
		}); err != nil {
			return "", err
		}

		u.logger.Info("candidate record updated",
			zap.String("name", a.Name),
			zap.String("page_id", pageID),
		)

		return ResultUpdated, nil
	}

	if err := u.write(ctx, a, func(ctx context.Context) error {
		pageID, err = u.store.CreatePage(ctx, a, fileUploadID)
		return err
	}); err != nil {
		return "", err
	}

	u.logger.Info("candidate record inserted",
		zap.String("name", a.Name),
		zap.String("page_id", pageID),
	)

	return ResultInserted, nil
}

// write runs one write call with bounded linear-backoff retries. Cancellation
// interrupts the backoff wait, not just the next attempt.
func (u *Uploader) write(ctx context.Context, a *candidate.Assessment, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= u.maxRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			break
		}

		if attempt < u.maxRetries {
			u.logger.Warn("candidate write failed, retrying",
				zap.String("name", a.Name),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)

			if err := utils.WaitFor(ctx, time.Duration(attempt)*u.retryDelay); err != nil {
				break
			}
		}
	}

	return fmt.Errorf("%w: %v", ErrWriteFailed, lastErr)
}

// uploadFile attaches the source CV when configured. A failed attachment
// degrades to a record without a file rather than failing the upload.
func (u *Uploader) uploadFile(ctx context.Context, a *candidate.Assessment) string {
	if !u.attachFiles || a.SourceFile == "" {
		return ""
	}

	id, err := u.store.UploadFile(ctx, a.SourceFile)
	if err != nil {
		u.logger.Warn("cv file attachment failed, continuing without it",
			zap.String("file", a.SourceFile),
			zap.Error(err),
		)
		return ""
	}

	return id
}

// lockKey serializes callers sharing one natural key. Key mutexes are kept
// for the lifetime of the uploader; a batch run sees a bounded set of keys.
func (u *Uploader) lockKey(key string) func() {
	u.mu.Lock()
	m, ok := u.keys[key]
	if !ok {
		m = &sync.Mutex{}
		u.keys[key] = m
	}
	u.mu.Unlock()

	m.Lock()
	return m.Unlock
}
