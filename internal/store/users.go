package store

import (
	"context"
	"database/sql"

	apperrors "mistrihub/internal/common/errors"
	"mistrihub/internal/models"
)

type UserStore struct{}

func NewUserStore() *UserStore {
	return &UserStore{}
}

func (s *UserStore) GetByID(ctx context.Context, q Queryer, id string) (*models.User, error) {
	var (
		user  models.User
		role  string
		phone sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, role, name, email, phone, verified, completed_jobs
		FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &role, &user.Name, &user.Email, &phone, &user.Verified, &user.CompletedJobs)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, apperrors.Internal("scan user", err)
	}
	user.Role = models.Role(role)
	user.Phone = phone.String
	return &user, nil
}

// IncrementCompletedJobs bumps the helper's completed-jobs counter. Runs in
// the confirm transaction so counter and status commit together.
func (s *UserStore) IncrementCompletedJobs(ctx context.Context, q Queryer, id string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE users SET completed_jobs = completed_jobs + 1 WHERE id = $1`, id)
	if err != nil {
		return apperrors.Internal("increment completed jobs", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Internal("increment completed jobs", err)
	}
	if n == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}
