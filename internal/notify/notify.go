// Package notify is the single channel through which the console surfaces
// outcomes to the operator.
package notify

import (
	"log/slog"
	"sync"
)

// Kind classifies a notification
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

// Notifier receives operator notifications
type Notifier interface {
	Notify(kind Kind, message string)
}

// Func adapts a function to Notifier
type Func func(kind Kind, message string)

// Notify calls f
func (f Func) Notify(kind Kind, message string) {
	f(kind, message)
}

// Discard drops every notification
var Discard Notifier = Func(func(Kind, string) {})

// Multi fans a notification out to every notifier
type Multi []Notifier

// Notify forwards to each notifier in order
func (m Multi) Notify(kind Kind, message string) {
	for _, n := range m {
		n.Notify(kind, message)
	}
}

// LogNotifier writes notifications to a structured logger
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification at a level matching its kind
func (n *LogNotifier) Notify(kind Kind, message string) {
	switch kind {
	case KindError:
		n.logger.Warn("notification", "kind", kind, "message", message)
	default:
		n.logger.Info("notification", "kind", kind, "message", message)
	}
}

// Notification is one recorded notification
type Notification struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Recorder keeps every notification it receives
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify records the notification
func (r *Recorder) Notify(kind Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Kind: kind, Message: message})
}

// All returns a copy of the recorded notifications
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Reset forgets recorded notifications
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
