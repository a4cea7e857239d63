package models

import "time"

// ApplicationStatus moves pending -> accepted or pending -> rejected, then
// never again.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

type Application struct {
	ID        string            `json:"id"`
	JobID     string            `json:"jobId"`
	HelperID  string            `json:"helperId"`
	Status    ApplicationStatus `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
}
