// Package notify implements the fire-and-forget notification emitter. The
// engines hand it an event after their state write commits; delivery is
// best-effort and never reported back to the request path.
package notify

import "mistrihub/internal/models"

// Event is one user-facing notice tied to a lifecycle transition.
type Event struct {
	RecipientID string
	Type        string
	Title       string
	Message     string
	JobID       string
	Link        string
}

// Notifier is what the engines depend on. Emit must not block the caller
// and must never return an error: a dropped notification is a logged
// defect, not a failed transition.
type Notifier interface {
	Emit(event Event)
}

// highPriority marks the types that additionally go out over SMS.
var highPriority = map[string]bool{
	models.NotificationApplicationAccepted: true,
	models.NotificationJobCompleted:        true,
}

// Noop discards every event. Used in tests and when dispatch is disabled.
type Noop struct{}

func (Noop) Emit(Event) {}
