package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	apperrors "mistrihub/internal/common/errors"
	"mistrihub/internal/models"
)

// JobStore persists job records. Status moves go through the conditional
// update helpers only; affected-rows == 0 on a CAS means the caller lost a
// race or retried a finished request.
type JobStore struct{}

func NewJobStore() *JobStore {
	return &JobStore{}
}

const jobColumns = `id, seeker_id, helper_id, title, description, category,
	budget_min, budget_max, location, photos, status, applications,
	created_at, scheduled_date, started_at, completed_at, confirmed_at`

func (s *JobStore) Create(ctx context.Context, q Queryer, job *models.Job) error {
	photosJSON, err := json.Marshal(job.Photos)
	if err != nil {
		return apperrors.Internal("marshal job photos", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO jobs (
			id, seeker_id, title, description, category,
			budget_min, budget_max, location, photos, status, applications, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11)`,
		job.ID,
		job.SeekerID,
		job.Title,
		job.Description,
		job.Category,
		job.Budget.Min,
		job.Budget.Max,
		job.Location,
		photosJSON,
		string(models.JobStatusOpen),
		job.CreatedAt,
	)
	if err != nil {
		return apperrors.Internal("insert job", err)
	}
	return nil
}

func (s *JobStore) GetByID(ctx context.Context, q Queryer, id string) (*models.Job, error) {
	row := q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

func scanJob(row *sql.Row) (*models.Job, error) {
	var (
		job        models.Job
		helperID   sql.NullString
		photosJSON []byte
		status     string
	)

	err := row.Scan(
		&job.ID,
		&job.SeekerID,
		&helperID,
		&job.Title,
		&job.Description,
		&job.Category,
		&job.Budget.Min,
		&job.Budget.Max,
		&job.Location,
		&photosJSON,
		&status,
		&job.Applications,
		&job.CreatedAt,
		&job.ScheduledDate,
		&job.StartedAt,
		&job.CompletedAt,
		&job.ConfirmedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("job not found")
	}
	if err != nil {
		return nil, apperrors.Internal("scan job", err)
	}

	job.HelperID = helperID.String
	job.Status = models.JobStatus(status)
	if len(photosJSON) > 0 {
		if err := json.Unmarshal(photosJSON, &job.Photos); err != nil {
			return nil, apperrors.Internal("unmarshal job photos", err)
		}
	}
	return &job, nil
}

// Assign does the open -> assigned compare-and-set, binding the helper.
// This is the linearization point of the whole selection flow: of any two
// racing accepts, exactly one update matches status = 'open'.
func (s *JobStore) Assign(ctx context.Context, q Queryer, jobID, helperID string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE jobs SET status = $3, helper_id = $2
		WHERE id = $1 AND status = $4`,
		jobID, helperID, string(models.JobStatusAssigned), string(models.JobStatusOpen),
	)
	return checkTransition(res, err, models.JobStatusOpen)
}

// Schedule does assigned -> scheduled and records the scheduled date.
func (s *JobStore) Schedule(ctx context.Context, q Queryer, jobID string, when time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE jobs SET status = $3, scheduled_date = $2
		WHERE id = $1 AND status = $4`,
		jobID, when, string(models.JobStatusScheduled), string(models.JobStatusAssigned),
	)
	return checkTransition(res, err, models.JobStatusAssigned)
}

// Start does scheduled -> in_progress and records the start time.
func (s *JobStore) Start(ctx context.Context, q Queryer, jobID string, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE jobs SET status = $3, started_at = $2
		WHERE id = $1 AND status = $4`,
		jobID, at, string(models.JobStatusInProgress), string(models.JobStatusScheduled),
	)
	return checkTransition(res, err, models.JobStatusScheduled)
}

// CompleteWork does in_progress -> pending_review and records completion.
func (s *JobStore) CompleteWork(ctx context.Context, q Queryer, jobID string, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE jobs SET status = $3, completed_at = $2
		WHERE id = $1 AND status = $4`,
		jobID, at, string(models.JobStatusPendingReview), string(models.JobStatusInProgress),
	)
	return checkTransition(res, err, models.JobStatusInProgress)
}

// Confirm does pending_review -> completed and records confirmation. It is
// intended to run inside the same transaction as the helper's
// completed-jobs counter bump.
func (s *JobStore) Confirm(ctx context.Context, q Queryer, jobID string, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE jobs SET status = $3, confirmed_at = $2
		WHERE id = $1 AND status = $4`,
		jobID, at, string(models.JobStatusCompleted), string(models.JobStatusPendingReview),
	)
	return checkTransition(res, err, models.JobStatusPendingReview)
}

// IncrementApplications bumps the application counter atomically in the
// record itself, never read-modify-write.
func (s *JobStore) IncrementApplications(ctx context.Context, q Queryer, jobID string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE jobs SET applications = applications + 1 WHERE id = $1`, jobID)
	if err != nil {
		return apperrors.Internal("increment applications", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Internal("increment applications", err)
	}
	if n == 0 {
		return apperrors.NotFound("job not found")
	}
	return nil
}

func checkTransition(res sql.Result, err error, expected models.JobStatus) error {
	if err != nil {
		return apperrors.Internal("update job status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Internal("update job status", err)
	}
	if n == 0 {
		return apperrors.InvalidState(fmt.Sprintf("job is not %s", expected))
	}
	return nil
}
