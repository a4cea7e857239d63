package lifecycle

import (
	"context"
	"fmt"

	apperrors "mistrihub/internal/common/errors"
	"mistrihub/internal/common/metrics"
	"mistrihub/internal/models"
	"mistrihub/internal/notify"
)

// SelectionResult is what AcceptApplication returns on success.
type SelectionResult struct {
	Job         *models.Job         `json:"job"`
	Application *models.Application `json:"application"`
}

// AcceptApplication accepts one pending application, rejects every other
// pending application on the job and binds the helper, as one transaction.
// The open -> assigned compare-and-set on the job row is the linearization
// point: of two racing accepts, exactly one matches and commits; the loser
// sees zero affected rows and gets InvalidState with nothing applied.
func (e *Engine) AcceptApplication(ctx context.Context, jobID, applicationID, callerID string) (*SelectionResult, error) {
	job, err := e.jobs.GetByID(ctx, e.db, jobID)
	if err != nil {
		return nil, err
	}
	if job.SeekerID != callerID {
		metrics.SelectionOutcomes.WithLabelValues("forbidden").Inc()
		return nil, apperrors.Forbidden("only the job owner can accept an application")
	}
	if job.Status != models.JobStatusOpen {
		metrics.SelectionOutcomes.WithLabelValues("lost_race").Inc()
		return nil, apperrors.InvalidState("job is not open")
	}

	app, err := e.apps.GetByID(ctx, e.db, applicationID)
	if err != nil {
		return nil, err
	}
	if app.JobID != jobID {
		return nil, apperrors.NotFound("application does not belong to this job")
	}
	if app.Status != models.ApplicationPending {
		return nil, apperrors.InvalidState("application is not pending")
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Internal("begin selection transaction", err)
	}
	defer tx.Rollback()

	// Job CAS first: it is the single write both racers contend on, so the
	// loser bails out before touching any application row.
	if err := e.jobs.Assign(ctx, tx, jobID, app.HelperID); err != nil {
		metrics.SelectionOutcomes.WithLabelValues("lost_race").Inc()
		return nil, err
	}
	if err := e.apps.Accept(ctx, tx, applicationID); err != nil {
		return nil, err
	}
	rejectedHelpers, err := e.apps.RejectPending(ctx, tx, jobID, applicationID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("commit selection transaction", err)
	}

	metrics.SelectionOutcomes.WithLabelValues("won").Inc()
	e.audit.Record(ctx, e.db, "application_accepted", "job", jobID, map[string]interface{}{
		"applicationId": applicationID,
		"helperId":      app.HelperID,
		"rejected":      len(rejectedHelpers),
	})

	job.Status = models.JobStatusAssigned
	job.HelperID = app.HelperID
	app.Status = models.ApplicationAccepted
	e.afterTransition(job, models.JobStatusOpen, models.JobStatusAssigned)

	e.notifier.Emit(notify.Event{
		RecipientID: app.HelperID,
		Type:        models.NotificationApplicationAccepted,
		Title:       "Application accepted",
		Message:     fmt.Sprintf("You were selected for the job %q.", job.Title),
		JobID:       jobID,
		Link:        "/jobs/" + jobID,
	})
	for _, helperID := range rejectedHelpers {
		e.notifier.Emit(notify.Event{
			RecipientID: helperID,
			Type:        models.NotificationApplicationRejected,
			Title:       "Application not selected",
			Message:     fmt.Sprintf("The job %q went to another helper.", job.Title),
			JobID:       jobID,
			Link:        "/jobs",
		})
	}

	e.logger.Info("application accepted", map[string]interface{}{
		"jobId":         jobID,
		"applicationId": applicationID,
		"helperId":      app.HelperID,
		"rejected":      len(rejectedHelpers),
	})

	return &SelectionResult{Job: job, Application: app}, nil
}
