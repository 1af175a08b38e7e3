// Package chat owns the conversation with the backend: the ordered chat turns, the references
// returned with the latest answer, and the single in-flight generate request.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/pdfbuddy/internal/api"
	"github.com/hyperjump/pdfbuddy/internal/models"
	"github.com/hyperjump/pdfbuddy/internal/notify"
	"go.uber.org/zap"
)

const (
	// DefaultTopSearches is the retrieval width sent with every request.
	DefaultTopSearches = 5

	// ApologyMessage is appended as the assistant turn when a request fails.
	ApologyMessage = "Sorry, I couldn't process your request. Please try again later."
)

// Generator produces an assistant answer for a conversation.
type Generator interface {
	GenerateResponse(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error)
}

// Eligibility reports whether any document is ready to chat about.
type Eligibility interface {
	HasIndexed() bool
}

// ValidationError rejects a send before any network call.
type ValidationError struct {
	Title  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}

// Send rejections. Compare with errors.Is.
var (
	ErrEmptyMessage = &ValidationError{Title: "Empty message", Detail: "Please type a question first"}
	ErrPending      = &ValidationError{Title: "Request in progress", Detail: "Please wait for the current answer"}
	ErrNoIndexed    = &ValidationError{Title: "No indexed files", Detail: "Please upload and index at least one PDF file first"}
)

// Exchange is the outcome of one accepted send.
type Exchange struct {
	User       models.ChatTurn    `json:"user"`
	Reply      models.ChatTurn    `json:"reply"`
	References []models.Reference `json:"references"`
	// Err is the transport or server failure when Reply is the apology turn.
	Err error `json:"-"`
}

// Failed reports whether the backend call failed.
func (e *Exchange) Failed() bool { return e.Err != nil }

// Option configures a Controller.
type Option func(*Controller)

// WithTopSearches sets the retrieval width. Values below 1 keep the default.
func WithTopSearches(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.topSearches = n
		}
	}
}

// WithModel asks the backend for a specific model.
func WithModel(model string) Option {
	return func(c *Controller) { c.model = model }
}

// WithMaxTokens caps the answer length.
func WithMaxTokens(n int) Option {
	return func(c *Controller) { c.maxTokens = n }
}

// WithClearReferencesOnError empties the reference set when a send fails instead of keeping the
// previous answer's references.
func WithClearReferencesOnError(clear bool) Option {
	return func(c *Controller) { c.clearRefsOnError = clear }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithNotifier sets where user notifications go.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithIDGenerator replaces the uuid turn id generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// WithClock replaces time.Now for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller is the chat state container.
type Controller struct {
	gen              Generator
	gate             Eligibility
	logger           *zap.Logger
	notifier         notify.Notifier
	topSearches      int
	model            string
	maxTokens        int
	clearRefsOnError bool
	newID            func() string
	now              func() time.Time

	mu       sync.Mutex
	turns    []models.ChatTurn
	refs     []models.Reference
	showRefs bool
	pending  bool
}

// New creates a controller. gate may be nil, in which case sending is never gated.
func New(gen Generator, gate Eligibility, opts ...Option) *Controller {
	c := &Controller{
		gen:         gen,
		gate:        gate,
		logger:      zap.NewNop(),
		notifier:    notify.Nop,
		topSearches: DefaultTopSearches,
		newID:       uuid.NewString,
		now:         time.Now,
		refs:        []models.Reference{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check reports whether text would be accepted by Send right now, without side effects.
func (c *Controller) Check(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkLocked(text)
}

func (c *Controller) checkLocked(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if c.pending {
		return ErrPending
	}
	if c.gate != nil && !c.gate.HasIndexed() {
		return ErrNoIndexed
	}
	return nil
}

// Send appends text as a user turn and asks the backend for an answer with the whole history.
// A rejected send returns a *ValidationError and changes nothing. A failed backend call does not
// return an error: the apology turn is appended and the cause is reported on Exchange.Err.
func (c *Controller) Send(ctx context.Context, text string) (*Exchange, error) {
	c.mu.Lock()
	if err := c.checkLocked(text); err != nil {
		c.mu.Unlock()
		ve := err.(*ValidationError)
		c.notifier.Notify(notify.Error(ve.Title, ve.Detail))
		return nil, err
	}
	user := c.turnLocked(models.RoleUser, text)
	c.turns = append(c.turns, user)
	req := &models.GenerateRequest{
		Messages:    models.Messages(c.turns),
		TopSearches: c.topSearches,
		Model:       c.model,
		MaxTokens:   c.maxTokens,
	}
	c.pending = true
	c.mu.Unlock()

	c.logger.Debug("generate request", zap.Int("messages", len(req.Messages)), zap.Int("top_searches", req.TopSearches))
	resp, err := c.gen.GenerateResponse(ctx, req)
	if err == nil && resp == nil {
		err = fmt.Errorf("generate response: empty reply")
	}

	c.mu.Lock()
	c.pending = false
	if err != nil {
		reply := c.turnLocked(models.RoleAssistant, ApologyMessage)
		c.turns = append(c.turns, reply)
		if c.clearRefsOnError {
			c.refs = []models.Reference{}
		}
		refs := c.copyRefsLocked()
		c.mu.Unlock()

		detail := api.Detail(err, "Failed to generate response")
		c.logger.Warn("generate response failed", zap.Error(err))
		c.notifier.Notify(notify.Error("Error", detail))
		return &Exchange{User: user, Reply: reply, References: refs, Err: err}, nil
	}

	reply := c.turnLocked(models.RoleAssistant, resp.Response)
	c.turns = append(c.turns, reply)
	c.refs = resp.References()
	refs := c.copyRefsLocked()
	c.mu.Unlock()

	c.logger.Debug("generate response", zap.Int("references", len(refs)))
	return &Exchange{User: user, Reply: reply, References: refs}, nil
}

func (c *Controller) turnLocked(role models.Role, content string) models.ChatTurn {
	return models.ChatTurn{ID: c.newID(), Role: role, Content: content, Timestamp: c.now()}
}

func (c *Controller) copyRefsLocked() []models.Reference {
	return append([]models.Reference{}, c.refs...)
}

// Turns returns the conversation in chronological order.
func (c *Controller) Turns() []models.ChatTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ChatTurn(nil), c.turns...)
}

// Pending reports whether a send is in flight.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// References returns the current reference set, never nil.
func (c *Controller) References() []models.Reference {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyRefsLocked()
}

// ReferencesFor returns the references displayed against the given turn: the current set for the
// latest assistant turn, nil for any other turn.
func (c *Controller) ReferencesFor(turnID string) []models.Reference {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].Role != models.RoleAssistant {
			continue
		}
		if c.turns[i].ID == turnID {
			return c.copyRefsLocked()
		}
		return nil
	}
	return nil
}

// ShowReferences makes the reference list visible.
func (c *Controller) ShowReferences() {
	c.setVisible(true)
}

// HideReferences hides the reference list.
func (c *Controller) HideReferences() {
	c.setVisible(false)
}

func (c *Controller) setVisible(v bool) {
	c.mu.Lock()
	c.showRefs = v
	c.mu.Unlock()
}

// ReferencesVisible reports the toggle state.
func (c *Controller) ReferencesVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.showRefs
}

// VisibleReferences returns the current set when visible and nil when hidden.
func (c *Controller) VisibleReferences() []models.Reference {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.showRefs {
		return nil
	}
	return c.copyRefsLocked()
}
