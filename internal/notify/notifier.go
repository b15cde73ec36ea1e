// Package notify hands user-facing notifications to the external delivery
// collaborator. Delivery is best-effort: the engine never fails a moderation
// decision because a notification could not be sent, and exactly-once
// delivery is explicitly not promised.
package notify

import (
	"context"
	"log/slog"
	"sync"

	id "warden/pkg/domain"
)

// Notification carries enough metadata (violation ID, content ID, appeal
// deadline) for the client to later initiate an appeal.
type Notification struct {
	UserID   id.UserID
	Type     string
	Title    string
	Message  string
	Metadata map[string]string
}

// Notification types emitted by the engine.
const (
	TypeWarning        = "moderation_warning"
	TypeContentHidden  = "content_hidden"
	TypeBanned         = "account_banned"
	TypeUnbanned       = "account_unbanned"
	TypeAppealOutcome  = "appeal_outcome"
	TypeAppealReceived = "appeal_received"
)

// Notifier is the delivery collaborator boundary.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// LogNotifier emits notifications as structured log lines. It stands in for
// the real delivery transport, which is out of scope.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, notification Notification) error {
	n.logger.InfoContext(ctx, "notification",
		"user_id", notification.UserID.String(),
		"type", notification.Type,
		"title", notification.Title,
		"metadata", notification.Metadata,
	)
	return nil
}

// Recorder captures notifications for assertions in tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Send(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Sent returns a copy of everything recorded so far.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification{}, r.sent...)
}

// LastOfType returns the most recent notification of the given type, if any.
func (r *Recorder) LastOfType(t string) (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].Type == t {
			return r.sent[i], true
		}
	}
	return Notification{}, false
}
