package store

import (
	"context"
	"database/sql"

	apperrors "mistrihub/internal/common/errors"
	"mistrihub/internal/models"
)

// ApplicationStore persists helper applications. The (job_id, helper_id)
// unique index is what turns a duplicate-apply race into a Conflict for the
// losing caller.
type ApplicationStore struct{}

func NewApplicationStore() *ApplicationStore {
	return &ApplicationStore{}
}

func (s *ApplicationStore) Insert(ctx context.Context, q Queryer, app *models.Application) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO applications (id, job_id, helper_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		app.ID, app.JobID, app.HelperID, string(app.Status), app.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return apperrors.Conflict("you have already applied to this job")
		}
		return apperrors.Internal("insert application", err)
	}
	return nil
}

func (s *ApplicationStore) GetByID(ctx context.Context, q Queryer, id string) (*models.Application, error) {
	var (
		app    models.Application
		status string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, job_id, helper_id, status, created_at
		FROM applications WHERE id = $1`, id,
	).Scan(&app.ID, &app.JobID, &app.HelperID, &status, &app.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("application not found")
	}
	if err != nil {
		return nil, apperrors.Internal("scan application", err)
	}
	app.Status = models.ApplicationStatus(status)
	return &app, nil
}

func (s *ApplicationStore) ListByJob(ctx context.Context, q Queryer, jobID string) ([]models.Application, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, job_id, helper_id, status, created_at
		FROM applications WHERE job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, apperrors.Internal("list applications", err)
	}
	defer rows.Close()

	var apps []models.Application
	for rows.Next() {
		var (
			app    models.Application
			status string
		)
		if err := rows.Scan(&app.ID, &app.JobID, &app.HelperID, &status, &app.CreatedAt); err != nil {
			return nil, apperrors.Internal("scan application", err)
		}
		app.Status = models.ApplicationStatus(status)
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("list applications", err)
	}
	return apps, nil
}

// Accept does the pending -> accepted compare-and-set on one application.
func (s *ApplicationStore) Accept(ctx context.Context, q Queryer, id string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE applications SET status = $2
		WHERE id = $1 AND status = $3`,
		id, string(models.ApplicationAccepted), string(models.ApplicationPending),
	)
	if err != nil {
		return apperrors.Internal("accept application", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Internal("accept application", err)
	}
	if n == 0 {
		return apperrors.InvalidState("application is not pending")
	}
	return nil
}

// RejectPending batch-rejects every still-pending application on the job
// except the accepted one, returning the helper ids that were rejected so
// the caller can notify them.
func (s *ApplicationStore) RejectPending(ctx context.Context, q Queryer, jobID, exceptID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		UPDATE applications SET status = $3
		WHERE job_id = $1 AND id <> $2 AND status = $4
		RETURNING helper_id`,
		jobID, exceptID, string(models.ApplicationRejected), string(models.ApplicationPending),
	)
	if err != nil {
		return nil, apperrors.Internal("reject pending applications", err)
	}
	defer rows.Close()

	var helpers []string
	for rows.Next() {
		var helperID string
		if err := rows.Scan(&helperID); err != nil {
			return nil, apperrors.Internal("scan rejected helper", err)
		}
		helpers = append(helpers, helperID)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("reject pending applications", err)
	}
	return helpers, nil
}
