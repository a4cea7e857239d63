package store

import (
	"context"

	apperrors "mistrihub/internal/common/errors"
	"mistrihub/internal/models"
)

type NotificationStore struct{}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{}
}

func (s *NotificationStore) Insert(ctx context.Context, q Queryer, n *models.Notification) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, type, title, message, job_id, link, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)`,
		n.ID, n.RecipientID, n.Type, n.Title, n.Message, n.JobID, n.Link, n.CreatedAt,
	)
	if err != nil {
		return apperrors.Internal("insert notification", err)
	}
	return nil
}

func (s *NotificationStore) ListByUser(ctx context.Context, q Queryer, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.QueryContext(ctx, `
		SELECT id, recipient_id, type, title, message, job_id, link, read, created_at
		FROM notifications WHERE recipient_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, apperrors.Internal("list notifications", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message,
			&n.JobID, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, apperrors.Internal("scan notification", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("list notifications", err)
	}
	return out, nil
}

// MarkRead flips the read flag for one notification owned by userID.
func (s *NotificationStore) MarkRead(ctx context.Context, q Queryer, userID, notificationID string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE notifications SET read = true
		WHERE id = $1 AND recipient_id = $2`, notificationID, userID)
	if err != nil {
		return apperrors.Internal("mark notification read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Internal("mark notification read", err)
	}
	if n == 0 {
		return apperrors.NotFound("notification not found")
	}
	return nil
}
