package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	apperrors "mistrihub/internal/common/errors"
	"mistrihub/internal/models"
)

func TestNotificationStore_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	n := &models.Notification{
		ID:          "notif-001",
		RecipientID: "seeker-001",
		Type:        models.NotificationNewApplication,
		Title:       "New application",
		Message:     "Ramesh Kumar applied to your job.",
		JobID:       "job-001",
		Link:        "/jobs/job-001/applications",
		CreatedAt:   time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO notifications`).
		WithArgs(n.ID, n.RecipientID, n.Type, n.Title, n.Message, n.JobID, n.Link, n.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewNotificationStore()
	err = store.Insert(context.Background(), db, n)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationStore_ListByUser_DefaultLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "recipient_id", "type", "title", "message", "job_id", "link", "read", "created_at",
	}).AddRow("notif-002", "helper-001", models.NotificationApplicationAccepted,
		"Application accepted", "You were selected.", "job-001", "/jobs/job-001", false, now)

	mock.ExpectQuery(`SELECT (.+) FROM notifications WHERE recipient_id`).
		WithArgs("helper-001", 50).
		WillReturnRows(rows)

	store := NewNotificationStore()
	out, err := store.ListByUser(context.Background(), db, "helper-001", 0)

	assert.NoError(t, err)
	assert.Len(t, out, 1)
	assert.False(t, out[0].Read)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationStore_MarkRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE notifications SET read = true`).
		WithArgs("notif-002", "helper-001").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewNotificationStore()
	err = store.MarkRead(context.Background(), db, "helper-001", "notif-002")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationStore_MarkRead_WrongRecipient(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	// The update is scoped to the recipient: someone else's id matches nothing.
	mock.ExpectExec(`UPDATE notifications SET read = true`).
		WithArgs("notif-002", "helper-999").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewNotificationStore()
	err = store.MarkRead(context.Background(), db, "helper-999", "notif-002")

	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
