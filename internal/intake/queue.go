// Package intake feeds files found on disk to the tracker one upload at a time.
package intake

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperjump/pdfbuddy/internal/fileid"
	"github.com/hyperjump/pdfbuddy/internal/inspect"
	"github.com/hyperjump/pdfbuddy/internal/models"
	"github.com/hyperjump/pdfbuddy/internal/tracker"
	"go.uber.org/zap"
)

// Starter begins an upload and returns a handle that completes when the document is terminal.
type Starter interface {
	Start(ctx context.Context, upload *models.Upload) (*tracker.Submission, error)
}

// Result is reported for every file the queue handles.
type Result struct {
	Path        string
	Fingerprint string
	Document    models.Document
	Skipped     bool // content already submitted
	Err         error
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithOnResult is called after each file is handled, from the queue's goroutine.
func WithOnResult(fn func(Result)) Option {
	return func(q *Queue) { q.onResult = fn }
}

// WithLoader replaces inspect.Load for reading files.
func WithLoader(fn func(path string) (*models.Upload, error)) Option {
	return func(q *Queue) { q.load = fn }
}

// WithRetryInterval sets how often a file waiting on another upload retries.
func WithRetryInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.retryInterval = d
		}
	}
}

// Queue serializes uploads of paths handed to it by the watcher or the CLI.
type Queue struct {
	starter  Starter
	logger   *zap.Logger
	onResult func(Result)
	load     func(path string) (*models.Upload, error)

	retryInterval time.Duration

	mu     sync.Mutex
	paths  []string
	queued map[string]bool
	seen   map[string]bool // fingerprints submitted or being submitted
	wake   chan struct{}
}

// New creates a queue that submits through starter.
func New(starter Starter, opts ...Option) *Queue {
	q := &Queue{
		starter: starter,
		logger:  zap.NewNop(),
		load: func(path string) (*models.Upload, error) {
			return inspect.Load(path, nil)
		},
		retryInterval: 250 * time.Millisecond,
		queued:        make(map[string]bool),
		seen:          make(map[string]bool),
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds path unless it is already waiting. It never blocks.
func (q *Queue) Enqueue(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	q.mu.Lock()
	if q.queued[path] {
		q.mu.Unlock()
		return
	}
	q.queued[path] = true
	q.paths = append(q.paths, path)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of paths waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.paths)
}

// Run handles queued paths one at a time until ctx is cancelled. It returns nil on cancellation.
// An upload still in flight at cancellation is left to the tracker's teardown.
func (q *Queue) Run(ctx context.Context) error {
	for {
		path, ok := q.next()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-q.wake:
				continue
			}
		}
		res := q.handle(ctx, path)
		if q.onResult != nil {
			q.onResult(res)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (q *Queue) next() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.paths) == 0 {
		return "", false
	}
	path := q.paths[0]
	q.paths = q.paths[1:]
	delete(q.queued, path)
	return path, true
}

func (q *Queue) handle(ctx context.Context, path string) Result {
	res := Result{Path: path}
	upload, err := q.load(path)
	if err != nil {
		q.logger.Warn("intake could not read file", zap.String("path", path), zap.Error(err))
		res.Err = err
		return res
	}
	res.Fingerprint = fileid.Fingerprint(upload.Data)

	q.mu.Lock()
	if q.seen[res.Fingerprint] {
		q.mu.Unlock()
		q.logger.Debug("intake skipping already submitted content", zap.String("path", path))
		res.Skipped = true
		return res
	}
	q.seen[res.Fingerprint] = true
	q.mu.Unlock()

	sub, err := q.start(ctx, upload)
	if err != nil {
		var ve *tracker.ValidationError
		if !errors.As(err, &ve) {
			q.forget(res.Fingerprint)
		}
		q.logger.Info("intake rejected file", zap.String("path", path), zap.Error(err))
		res.Err = err
		return res
	}
	select {
	case <-sub.Done():
	case <-ctx.Done():
		res.Document = sub.Document()
		res.Err = ctx.Err()
		return res
	}
	res.Document, res.Err = sub.Result()
	if res.Err != nil {
		// A failed upload may be retried by dropping the file again.
		q.forget(res.Fingerprint)
	}
	return res
}

// start submits upload, waiting while an upload from elsewhere (e.g. the view) is in flight.
// The upload itself is not cancelled with ctx; only the wait for it is.
func (q *Queue) start(ctx context.Context, upload *models.Upload) (*tracker.Submission, error) {
	for {
		sub, err := q.starter.Start(context.WithoutCancel(ctx), upload)
		if !errors.Is(err, tracker.ErrBusy) {
			return sub, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.retryInterval):
		}
	}
}

func (q *Queue) forget(fingerprint string) {
	q.mu.Lock()
	delete(q.seen, fingerprint)
	q.mu.Unlock()
}
