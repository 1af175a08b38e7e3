// Package notify carries transient user notifications from the state containers to whatever view shows them.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a transient message for the user (a toast).
type Notification struct {
	Level  Level     `json:"level"`
	Title  string    `json:"title"`
	Detail string    `json:"detail,omitempty"`
	Time   time.Time `json:"time"`
}

// Notifier receives notifications. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(n Notification)

// Notify calls f(n).
func (f Func) Notify(n Notification) { f(n) }

// Nop discards notifications.
var Nop Notifier = Func(func(Notification) {})

// Info builds an info notification stamped now.
func Info(title, detail string) Notification {
	return Notification{Level: LevelInfo, Title: title, Detail: detail, Time: time.Now()}
}

// Error builds an error notification stamped now.
func Error(title, detail string) Notification {
	return Notification{Level: LevelError, Title: title, Detail: detail, Time: time.Now()}
}

// Multi fans a notification out to every non-nil notifier.
func Multi(notifiers ...Notifier) Notifier {
	list := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			list = append(list, n)
		}
	}
	return Func(func(n Notification) {
		for _, target := range list {
			target.Notify(n)
		}
	})
}

// Logger writes notifications to a zap logger.
func Logger(logger *zap.Logger) Notifier {
	return Func(func(n Notification) {
		fields := []zap.Field{zap.String("title", n.Title), zap.String("detail", n.Detail)}
		if n.Level == LevelError {
			logger.Warn("notification", fields...)
			return
		}
		logger.Info("notification", fields...)
	})
}

// Recorder keeps the most recent notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	limit int
	items []Notification
}

// NewRecorder returns a recorder holding at most limit notifications (unbounded when limit <= 0).
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Notify records n, dropping the oldest entry when full.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	if r.limit > 0 && len(r.items) > r.limit {
		r.items = append([]Notification(nil), r.items[len(r.items)-r.limit:]...)
	}
}

// All returns a copy of the recorded notifications, oldest first.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Len returns the number of recorded notifications.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Last returns the newest notification, if any.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}
