package models

import "time"

// JobStatus is the closed set of lifecycle states. The order is total:
// open -> assigned -> scheduled -> in_progress -> pending_review -> completed.
type JobStatus string

const (
	JobStatusOpen          JobStatus = "open"
	JobStatusAssigned      JobStatus = "assigned"
	JobStatusScheduled     JobStatus = "scheduled"
	JobStatusInProgress    JobStatus = "in_progress"
	JobStatusPendingReview JobStatus = "pending_review"
	JobStatusCompleted     JobStatus = "completed"
)

// jobTransitions is the only source of truth for legal status moves.
// Anything not in this map is rejected, no string comparisons elsewhere.
var jobTransitions = map[JobStatus]JobStatus{
	JobStatusOpen:          JobStatusAssigned,
	JobStatusAssigned:      JobStatusScheduled,
	JobStatusScheduled:     JobStatusInProgress,
	JobStatusInProgress:    JobStatusPendingReview,
	JobStatusPendingReview: JobStatusCompleted,
}

// CanTransition reports whether from -> to is a legal single step.
func CanTransition(from, to JobStatus) bool {
	next, ok := jobTransitions[from]
	return ok && next == to
}

// NextStatus returns the successor of a status, or false for completed.
func NextStatus(from JobStatus) (JobStatus, bool) {
	next, ok := jobTransitions[from]
	return next, ok
}

// ValidJobStatus reports whether s is a member of the enum.
func ValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusOpen, JobStatusAssigned, JobStatusScheduled,
		JobStatusInProgress, JobStatusPendingReview, JobStatusCompleted:
		return true
	}
	return false
}

// Budget is the posted price range for a job. Min <= Max, both >= 0.
type Budget struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// MaxJobPhotos caps the photo references carried by one job.
const MaxJobPhotos = 5

type Job struct {
	ID            string     `json:"id"`
	SeekerID      string     `json:"seekerId"`
	HelperID      string     `json:"helperId,omitempty"` // set iff status != open
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	Budget        Budget     `json:"budget"`
	Location      string     `json:"location"`
	Photos        []string   `json:"photos,omitempty"`
	Status        JobStatus  `json:"status"`
	Applications  int        `json:"applications"`
	CreatedAt     time.Time  `json:"createdAt"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmedAt,omitempty"`
}
