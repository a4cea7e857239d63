package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "mistrihub/internal/common/errors"
	"mistrihub/internal/common/metrics"
	"mistrihub/internal/models"
	"mistrihub/internal/notify"
)

// Apply creates a pending application for the calling helper on an open
// job. The insert and the job's application counter bump commit together;
// a duplicate (same helper, same job) loses the unique index and gets
// Conflict regardless of how the race interleaves.
func (e *Engine) Apply(ctx context.Context, jobID, helperID string) (*models.Application, error) {
	helper, err := e.users.GetByID(ctx, helperID)
	if err != nil {
		return nil, err
	}
	if helper.Role != models.RoleHelper {
		return nil, apperrors.Forbidden("only helpers can apply to jobs")
	}
	if !helper.Verified {
		return nil, apperrors.Forbidden("helper is not verified")
	}

	job, err := e.jobs.GetByID(ctx, e.db, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusOpen {
		return nil, apperrors.InvalidState("job is no longer open for applications")
	}

	app := &models.Application{
		ID:        uuid.New().String(),
		JobID:     jobID,
		HelperID:  helperID,
		Status:    models.ApplicationPending,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Internal("begin apply transaction", err)
	}
	defer tx.Rollback()

	if err := e.apps.Insert(ctx, tx, app); err != nil {
		return nil, err
	}
	if err := e.jobs.IncrementApplications(ctx, tx, jobID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("commit apply transaction", err)
	}

	metrics.ApplicationsCreated.Inc()
	e.audit.Record(ctx, e.db, "application_created", "application", app.ID, map[string]interface{}{
		"jobId":    jobID,
		"helperId": helperID,
	})
	e.notifier.Emit(notify.Event{
		RecipientID: job.SeekerID,
		Type:        models.NotificationNewApplication,
		Title:       "New application",
		Message:     fmt.Sprintf("%s applied to your job %q.", helper.Name, job.Title),
		JobID:       jobID,
		Link:        "/jobs/" + jobID + "/applications",
	})

	e.logger.Info("application created", map[string]interface{}{
		"applicationId": app.ID,
		"jobId":         jobID,
		"helperId":      helperID,
	})
	return app, nil
}

// ListApplications returns the applications for a job. The owner sees all
// of them; an applicant sees only their own; anyone else is Forbidden.
func (e *Engine) ListApplications(ctx context.Context, jobID, callerID string) ([]models.Application, error) {
	job, err := e.jobs.GetByID(ctx, e.db, jobID)
	if err != nil {
		return nil, err
	}

	apps, err := e.apps.ListByJob(ctx, e.db, jobID)
	if err != nil {
		return nil, err
	}

	if job.SeekerID == callerID {
		return apps, nil
	}

	for _, app := range apps {
		if app.HelperID == callerID {
			return []models.Application{app}, nil
		}
	}
	return nil, apperrors.Forbidden("not allowed to view applications for this job")
}
