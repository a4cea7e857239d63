// Package lifecycle implements the job lifecycle engine, the application
// intake path and the selection engine. Every status mutation rides a
// conditional update in the store layer; this package adds authorization,
// ordering and side effects (notifications, counters, audit, indexing).
package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "mistrihub/internal/common/errors"
	"mistrihub/internal/common/logger"
	"mistrihub/internal/common/metrics"
	"mistrihub/internal/models"
	"mistrihub/internal/notify"
	"mistrihub/internal/store"
)

// UserDirectory resolves callers and maintains the helper's completed-jobs
// counter. Implemented by store.CachedUserStore.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	IncrementCompletedJobs(ctx context.Context, q store.Queryer, id string) error
}

// JobIndexer mirrors job documents into the search backend, best-effort.
type JobIndexer interface {
	IndexJob(job *models.Job)
}

// NoopIndexer is used when search is disabled.
type NoopIndexer struct{}

func (NoopIndexer) IndexJob(*models.Job) {}

type Engine struct {
	db       *sql.DB
	jobs     *store.JobStore
	apps     *store.ApplicationStore
	users    UserDirectory
	notifier notify.Notifier
	indexer  JobIndexer
	audit    *store.AuditLog
	logger   logger.Logger
}

func NewEngine(db *sql.DB, users UserDirectory, notifier notify.Notifier, indexer JobIndexer, log logger.Logger) *Engine {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if indexer == nil {
		indexer = NoopIndexer{}
	}
	return &Engine{
		db:       db,
		jobs:     store.NewJobStore(),
		apps:     store.NewApplicationStore(),
		users:    users,
		notifier: notifier,
		indexer:  indexer,
		audit:    store.NewAuditLog(log),
		logger:   log.WithFields(map[string]interface{}{"component": "lifecycle"}),
	}
}

// CreateJobInput carries the seeker-provided job fields.
type CreateJobInput struct {
	Title       string
	Description string
	Category    string
	Budget      models.Budget
	Location    string
	Photos      []string
}

func (in *CreateJobInput) validate() error {
	if in.Title == "" {
		return apperrors.Validation("title is required")
	}
	if in.Description == "" {
		return apperrors.Validation("description is required")
	}
	if in.Category == "" {
		return apperrors.Validation("category is required")
	}
	if in.Location == "" {
		return apperrors.Validation("location is required")
	}
	if in.Budget.Min < 0 || in.Budget.Max < 0 {
		return apperrors.Validation("budget must not be negative")
	}
	if in.Budget.Max < in.Budget.Min {
		return apperrors.Validation("budget max must be at least budget min")
	}
	if len(in.Photos) > models.MaxJobPhotos {
		return apperrors.Validation(fmt.Sprintf("at most %d photos allowed", models.MaxJobPhotos))
	}
	return nil
}

// CreateJob posts a new open job owned by the calling seeker.
func (e *Engine) CreateJob(ctx context.Context, seekerID string, input CreateJobInput) (*models.Job, error) {
	user, err := e.users.GetByID(ctx, seekerID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleSeeker {
		return nil, apperrors.Forbidden("only help seekers can post jobs")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:          uuid.New().String(),
		SeekerID:    seekerID,
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Budget:      input.Budget,
		Location:    input.Location,
		Photos:      input.Photos,
		Status:      models.JobStatusOpen,
		CreatedAt:   time.Now().UTC(),
	}

	if err := e.jobs.Create(ctx, e.db, job); err != nil {
		return nil, err
	}

	e.audit.Record(ctx, e.db, "job_created", "job", job.ID, map[string]interface{}{
		"seekerId": seekerID,
		"category": job.Category,
	})
	e.indexer.IndexJob(job)

	e.logger.Info("job created", map[string]interface{}{
		"jobId":    job.ID,
		"seekerId": seekerID,
	})
	return job, nil
}

// GetJob fetches one job record.
func (e *Engine) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return e.jobs.GetByID(ctx, e.db, jobID)
}

// Schedule is the assigned -> scheduled transition, triggered by the bound
// helper with a scheduled date.
func (e *Engine) Schedule(ctx context.Context, jobID, callerID string, when time.Time) (*models.Job, error) {
	if when.IsZero() {
		return nil, apperrors.Validation("scheduled date is required")
	}

	job, err := e.jobs.GetByID(ctx, e.db, jobID)
	if err != nil {
		return nil, err
	}
	if job.HelperID == "" || job.HelperID != callerID {
		metrics.JobTransitionsFailed.WithLabelValues("schedule", string(apperrors.KindForbidden)).Inc()
		return nil, apperrors.Forbidden("only the assigned helper can schedule this job")
	}

	scheduledAt := when.UTC()
	if err := e.jobs.Schedule(ctx, e.db, jobID, scheduledAt); err != nil {
		metrics.JobTransitionsFailed.WithLabelValues("schedule", string(apperrors.KindOf(err))).Inc()
		return nil, err
	}

	job.Status = models.JobStatusScheduled
	job.ScheduledDate = &scheduledAt
	e.afterTransition(job, models.JobStatusAssigned, models.JobStatusScheduled)
	e.notifier.Emit(notify.Event{
		RecipientID: job.SeekerID,
		Type:        models.NotificationJobScheduled,
		Title:       "Job scheduled",
		Message:     fmt.Sprintf("Your job %q has been scheduled for %s.", job.Title, scheduledAt.Format("2 Jan 2006 15:04 MST")),
		JobID:       jobID,
		Link:        "/jobs/" + jobID,
	})

	return job, nil
}

// Start is the scheduled -> in_progress transition, triggered by the bound
// helper when work begins.
func (e *Engine) Start(ctx context.Context, jobID, callerID string) (*models.Job, error) {
	job, err := e.jobs.GetByID(ctx, e.db, jobID)
	if err != nil {
		return nil, err
	}
	if job.HelperID == "" || job.HelperID != callerID {
		metrics.JobTransitionsFailed.WithLabelValues("start", string(apperrors.KindForbidden)).Inc()
		return nil, apperrors.Forbidden("only the assigned helper can start this job")
	}

	startedAt := time.Now().UTC()
	if err := e.jobs.Start(ctx, e.db, jobID, startedAt); err != nil {
		metrics.JobTransitionsFailed.WithLabelValues("start", string(apperrors.KindOf(err))).Inc()
		return nil, err
	}

	job.Status = models.JobStatusInProgress
	job.StartedAt = &startedAt
	e.afterTransition(job, models.JobStatusScheduled, models.JobStatusInProgress)
	e.notifier.Emit(notify.Event{
		RecipientID: job.SeekerID,
		Type:        models.NotificationJobStarted,
		Title:       "Work started",
		Message:     fmt.Sprintf("Work on your job %q has started.", job.Title),
		JobID:       jobID,
		Link:        "/jobs/" + jobID,
	})

	return job, nil
}

// Complete is the in_progress -> pending_review transition, triggered by
// the bound helper when the work is done. The seeker still has to confirm.
func (e *Engine) Complete(ctx context.Context, jobID, callerID string) (*models.Job, error) {
	job, err := e.jobs.GetByID(ctx, e.db, jobID)
	if err != nil {
		return nil, err
	}
	if job.HelperID == "" || job.HelperID != callerID {
		metrics.JobTransitionsFailed.WithLabelValues("complete", string(apperrors.KindForbidden)).Inc()
		return nil, apperrors.Forbidden("only the assigned helper can complete this job")
	}

	completedAt := time.Now().UTC()
	if err := e.jobs.CompleteWork(ctx, e.db, jobID, completedAt); err != nil {
		metrics.JobTransitionsFailed.WithLabelValues("complete", string(apperrors.KindOf(err))).Inc()
		return nil, err
	}

	job.Status = models.JobStatusPendingReview
	job.CompletedAt = &completedAt
	e.afterTransition(job, models.JobStatusInProgress, models.JobStatusPendingReview)
	e.notifier.Emit(notify.Event{
		RecipientID: job.SeekerID,
		Type:        models.NotificationJobPendingReview,
		Title:       "Please confirm completion",
		Message:     fmt.Sprintf("The helper marked your job %q as done. Please confirm.", job.Title),
		JobID:       jobID,
		Link:        "/jobs/" + jobID,
	})

	return job, nil
}

// Confirm is the pending_review -> completed transition, triggered by the
// job owner. The status write and the helper's completed-jobs counter bump
// commit in one transaction; a retried confirm loses the CAS and cannot
// double-increment.
func (e *Engine) Confirm(ctx context.Context, jobID, callerID string) (*models.Job, error) {
	job, err := e.jobs.GetByID(ctx, e.db, jobID)
	if err != nil {
		return nil, err
	}
	if job.SeekerID != callerID {
		metrics.JobTransitionsFailed.WithLabelValues("confirm", string(apperrors.KindForbidden)).Inc()
		return nil, apperrors.Forbidden("only the job owner can confirm this job")
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Internal("begin confirm transaction", err)
	}
	defer tx.Rollback()

	confirmedAt := time.Now().UTC()
	if err := e.jobs.Confirm(ctx, tx, jobID, confirmedAt); err != nil {
		metrics.JobTransitionsFailed.WithLabelValues("confirm", string(apperrors.KindOf(err))).Inc()
		return nil, err
	}
	if err := e.users.IncrementCompletedJobs(ctx, tx, job.HelperID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("commit confirm transaction", err)
	}

	job.Status = models.JobStatusCompleted
	job.ConfirmedAt = &confirmedAt
	e.afterTransition(job, models.JobStatusPendingReview, models.JobStatusCompleted)
	e.notifier.Emit(notify.Event{
		RecipientID: job.HelperID,
		Type:        models.NotificationJobCompleted,
		Title:       "Job completed",
		Message:     fmt.Sprintf("The owner confirmed completion of %q. Well done!", job.Title),
		JobID:       jobID,
		Link:        "/jobs/" + jobID,
	})

	return job, nil
}

// afterTransition records the success metric and refreshes the search
// index. Index failures stay inside the indexer.
func (e *Engine) afterTransition(job *models.Job, from, to models.JobStatus) {
	metrics.JobTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	e.indexer.IndexJob(job)
	e.logger.Info("job transition", map[string]interface{}{
		"jobId": job.ID,
		"from":  string(from),
		"to":    string(to),
	})
}
