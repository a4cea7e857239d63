package models

import "time"

// Notification types emitted by the lifecycle and selection engines.
const (
	NotificationNewApplication      = "new_application"
	NotificationApplicationAccepted = "application_accepted"
	NotificationApplicationRejected = "application_rejected"
	NotificationJobScheduled        = "job_scheduled"
	NotificationJobStarted          = "job_started"
	NotificationJobPendingReview    = "job_pending_review"
	NotificationJobCompleted        = "job_completed"
)

type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipientId"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	JobID       string    `json:"jobId,omitempty"`
	Link        string    `json:"link,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}
