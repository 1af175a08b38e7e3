// Package tracker owns the collection of uploaded documents and drives each one through
// uploading, indexing, and its terminal indexed or error state.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/pdfbuddy/internal/api"
	"github.com/hyperjump/pdfbuddy/internal/models"
	"github.com/hyperjump/pdfbuddy/internal/notify"
	"github.com/hyperjump/pdfbuddy/internal/progress"
	"go.uber.org/zap"
)

// PDFContentType is the only accepted upload type.
const PDFContentType = "application/pdf"

var (
	// ErrClosed is returned once the tracker has been torn down.
	ErrClosed = errors.New("tracker closed")
	// ErrBusy is returned by Start while another upload is in flight.
	ErrBusy = errors.New("an upload is already in progress")
)

// Indexer uploads a PDF and waits for the backend to index it. onSent is called once when the
// upload itself has completed and server-side indexing has started.
type Indexer interface {
	IndexPDF(ctx context.Context, upload *models.Upload, onSent func()) (*models.IndexResult, error)
}

// ValidationError rejects an upload before any network call.
type ValidationError struct {
	Title  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithNotifier sets where user notifications go.
func WithNotifier(n notify.Notifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

// WithUploadRamp sets the progress ramp used while uploading.
func WithUploadRamp(cfg progress.Config) Option {
	return func(t *Tracker) { t.uploadRamp = cfg }
}

// WithIndexRamp sets the progress ramp used while indexing.
func WithIndexRamp(cfg progress.Config) Option {
	return func(t *Tracker) { t.indexRamp = cfg }
}

// WithRampOptions passes options to every ramp the tracker starts.
func WithRampOptions(opts ...progress.Option) Option {
	return func(t *Tracker) { t.rampOpts = append(t.rampOpts, opts...) }
}

// WithIDGenerator replaces the uuid document id generator.
func WithIDGenerator(fn func() string) Option {
	return func(t *Tracker) { t.newID = fn }
}

// Tracker is the file lifecycle state container. Its methods are the only mutation path.
type Tracker struct {
	indexer    Indexer
	logger     *zap.Logger
	notifier   notify.Notifier
	uploadRamp progress.Config
	indexRamp  progress.Config
	rampOpts   []progress.Option
	newID      func() string
	now        func() time.Time

	// emitMu serializes mutate-then-deliver so subscribers observe updates in order.
	emitMu sync.Mutex

	mu       sync.Mutex
	docs     []*models.Document
	byID     map[string]*models.Document
	subs     map[int]func(models.Document)
	nextSub  int
	ramps    map[*progress.Ramp]struct{}
	inFlight int
	closed   bool
}

// New creates a tracker that uploads through indexer.
func New(indexer Indexer, opts ...Option) *Tracker {
	t := &Tracker{
		indexer:    indexer,
		logger:     zap.NewNop(),
		notifier:   notify.Nop,
		uploadRamp: progress.DefaultConfig(),
		indexRamp:  progress.DefaultConfig(),
		newID:      uuid.NewString,
		now:        time.Now,
		byID:       make(map[string]*models.Document),
		subs:       make(map[int]func(models.Document)),
		ramps:      make(map[*progress.Ramp]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Subscribe registers fn to be called with a snapshot on every transition and progress tick.
// fn must not call Start, Submit, or Close. It returns a function that removes the subscription.
func (t *Tracker) Subscribe(fn func(models.Document)) func() {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// Documents returns snapshots of all documents in upload order.
func (t *Tracker) Documents() []models.Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Document, len(t.docs))
	for i, d := range t.docs {
		out[i] = *d
	}
	return out
}

// Document returns a snapshot of the document with id.
func (t *Tracker) Document(id string) (models.Document, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.byID[id]
	if !ok {
		return models.Document{}, false
	}
	return *d, true
}

// IndexedCount returns the number of documents ready for chat.
func (t *Tracker) IndexedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, d := range t.docs {
		if d.Status == models.StatusIndexed {
			n++
		}
	}
	return n
}

// HasIndexed reports whether at least one document is indexed.
func (t *Tracker) HasIndexed() bool {
	return t.IndexedCount() > 0
}

// Busy reports whether an upload is in flight. Views use it to disable the upload control.
func (t *Tracker) Busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight > 0
}

// Validate checks an upload without mutating anything.
func Validate(upload *models.Upload) error {
	if upload == nil || (upload.Name == "" && len(upload.Data) == 0) {
		return &ValidationError{Title: "No file selected", Detail: "Please select a PDF file to upload"}
	}
	if mediaType(upload.ContentType) != PDFContentType {
		return &ValidationError{Title: "Invalid file format", Detail: "Please upload a PDF file"}
	}
	if pr := upload.PageRange; pr != nil {
		if pr.Start < 1 || pr.End < 1 {
			return &ValidationError{Title: "Invalid page range", Detail: "Pages are numbered from 1"}
		}
		if pr.Start > pr.End {
			return &ValidationError{Title: "Invalid page range", Detail: "Start page cannot be greater than end page"}
		}
		if upload.LocalPages > 0 && pr.End > upload.LocalPages {
			return &ValidationError{
				Title:  "Invalid page range",
				Detail: fmt.Sprintf("End page %d is beyond the last page (%d)", pr.End, upload.LocalPages),
			}
		}
	}
	return nil
}

func mediaType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// Submit uploads and indexes a file, returning once the document is terminal.
// A validation failure returns a *ValidationError and creates nothing. A transport failure
// returns the document in the error state together with the cause.
func (t *Tracker) Submit(ctx context.Context, upload *models.Upload) (models.Document, error) {
	sub, err := t.Start(ctx, upload)
	if err != nil {
		return models.Document{}, err
	}
	<-sub.Done()
	return sub.Result()
}

// Start validates the upload, creates its document in the uploading state, and drives the
// upload in the background. Only one upload runs at a time: while one is in flight Start
// returns ErrBusy and creates nothing.
func (t *Tracker) Start(ctx context.Context, upload *models.Upload) (*Submission, error) {
	if err := Validate(upload); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			t.notifier.Notify(notify.Error(ve.Title, ve.Detail))
		}
		return nil, err
	}
	now := t.now()
	doc := &models.Document{
		ID:        t.newID(),
		Name:      upload.Name,
		Size:      upload.Size(),
		Status:    models.StatusUploading,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pr := upload.PageRange; pr != nil {
		doc.StartPage, doc.EndPage = pr.Start, pr.End
	}
	snap, err := t.add(doc)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("upload started", zap.String("id", doc.ID), zap.String("name", doc.Name), zap.Int64("size", doc.Size))

	sub := &Submission{initial: snap, done: make(chan struct{})}
	go t.run(ctx, doc.ID, upload, sub)
	return sub, nil
}

func (t *Tracker) run(ctx context.Context, id string, upload *models.Upload, sub *Submission) {
	// The in-flight count drops before waiters are released so Busy is false once Submit returns.
	finish := func(doc models.Document, err error) {
		t.release()
		sub.finish(doc, err)
	}

	upRamp := t.startRamp(id, models.StatusUploading, t.uploadRamp)
	var (
		phase    sync.Once
		indexing bool
		idxRamp  *progress.Ramp
	)
	beginIndexing := func() {
		phase.Do(func() {
			indexing = true
			t.stopRamp(upRamp)
			t.update(id, func(d *models.Document) bool {
				if d.Status != models.StatusUploading {
					return false
				}
				d.Progress = 100
				return true
			})
			t.transition(id, models.StatusIndexing, func(d *models.Document) { d.Progress = 0 })
			idxRamp = t.startRamp(id, models.StatusIndexing, t.indexRamp)
		})
	}

	res, err := t.indexer.IndexPDF(ctx, upload, beginIndexing)
	if err == nil {
		beginIndexing()
	} else {
		// Claim the phase so a late onSent cannot start indexing after the failure.
		phase.Do(func() {})
	}
	t.stopRamp(upRamp)
	t.stopRamp(idxRamp)

	if err != nil {
		failed := models.StatusUploading
		if indexing {
			failed = models.StatusIndexing
		}
		detail := api.Detail(err, "An error occurred while uploading the PDF")
		final, ok := t.transition(id, models.StatusError, func(d *models.Document) {
			d.Error = detail
			d.Progress = 0
		})
		if !ok {
			finish(t.snapshot(id), ErrClosed)
			return
		}
		t.logger.Warn("upload failed", zap.String("id", id), zap.String("phase", string(failed)), zap.Error(err))
		t.notifier.Notify(notify.Error("Upload failed", detail))
		finish(final, err)
		return
	}

	pages := res.PageCount
	if pages == 0 {
		pages = upload.LocalPages
	}
	final, ok := t.transition(id, models.StatusIndexed, func(d *models.Document) {
		d.Pages = pages
		d.RemoteID = res.RemoteID()
		d.Progress = 100
	})
	if !ok {
		finish(t.snapshot(id), ErrClosed)
		return
	}
	t.logger.Info("document indexed", zap.String("id", id), zap.String("name", final.Name), zap.Int("pages", pages))
	t.notifier.Notify(notify.Info("Upload complete", "Your PDF has been successfully indexed"))
	finish(final, nil)
}

// Close tears the tracker down: every ramp is cancelled and no further mutation happens, including
// from uploads still in flight. It must not be called from a subscriber.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	ramps := make([]*progress.Ramp, 0, len(t.ramps))
	for r := range t.ramps {
		ramps = append(ramps, r)
	}
	t.ramps = make(map[*progress.Ramp]struct{})
	t.mu.Unlock()
	for _, r := range ramps {
		r.Stop()
	}
}

// add registers doc as the one upload in flight.
func (t *Tracker) add(doc *models.Document) (models.Document, error) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return models.Document{}, ErrClosed
	}
	if t.inFlight > 0 {
		t.mu.Unlock()
		return models.Document{}, ErrBusy
	}
	t.docs = append(t.docs, doc)
	t.byID[doc.ID] = doc
	t.inFlight++
	snap := *doc
	subs := t.subscribersLocked()
	t.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
	return snap, nil
}

func (t *Tracker) release() {
	t.mu.Lock()
	t.inFlight--
	t.mu.Unlock()
}

// update applies fn to the document and delivers the result when fn reports a change.
func (t *Tracker) update(id string, fn func(d *models.Document) bool) (models.Document, bool) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	t.mu.Lock()
	d, ok := t.byID[id]
	if t.closed || !ok || !fn(d) {
		t.mu.Unlock()
		return models.Document{}, false
	}
	d.UpdatedAt = t.now()
	snap := *d
	subs := t.subscribersLocked()
	t.mu.Unlock()
	for _, sub := range subs {
		sub(snap)
	}
	return snap, true
}

func (t *Tracker) transition(id string, to models.DocumentStatus, mutate func(d *models.Document)) (models.Document, bool) {
	return t.update(id, func(d *models.Document) bool {
		if !d.Status.CanTransition(to) {
			t.logger.Warn("invalid status transition ignored",
				zap.String("id", id), zap.String("from", string(d.Status)), zap.String("to", string(to)))
			return false
		}
		t.logger.Debug("status transition", zap.String("id", id), zap.String("from", string(d.Status)), zap.String("to", string(to)))
		d.Status = to
		mutate(d)
		if to != models.StatusError {
			d.Error = ""
		}
		return true
	})
}

func (t *Tracker) startRamp(id string, status models.DocumentStatus, cfg progress.Config) *progress.Ramp {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	r := progress.Start(cfg, func(value int) {
		t.update(id, func(d *models.Document) bool {
			if d.Status != status || value <= d.Progress {
				return false
			}
			d.Progress = value
			return true
		})
	}, t.rampOpts...)
	t.ramps[r] = struct{}{}
	return r
}

func (t *Tracker) stopRamp(r *progress.Ramp) {
	if r == nil {
		return
	}
	r.Stop()
	t.mu.Lock()
	delete(t.ramps, r)
	t.mu.Unlock()
}

func (t *Tracker) snapshot(id string) models.Document {
	d, _ := t.Document(id)
	return d
}

func (t *Tracker) subscribersLocked() []func(models.Document) {
	out := make([]func(models.Document), 0, len(t.subs))
	for i := 0; i < t.nextSub; i++ {
		if fn, ok := t.subs[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

// Submission is a handle on one in-flight upload.
type Submission struct {
	initial models.Document
	done    chan struct{}
	result  models.Document
	err     error
}

// Document returns the document as created, in the uploading state.
func (s *Submission) Document() models.Document {
	return s.initial
}

// Done is closed when the document reaches a terminal state or the tracker is closed.
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Result returns the terminal document and the failure cause, if any. It is valid after Done.
func (s *Submission) Result() (models.Document, error) {
	return s.result, s.err
}

func (s *Submission) finish(doc models.Document, err error) {
	s.result, s.err = doc, err
	close(s.done)
}
