package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	apperrors "mistrihub/internal/common/errors"
	"mistrihub/internal/common/logger"
	"mistrihub/internal/models"
	"mistrihub/internal/notify"
	"mistrihub/internal/store"
)

// ==========================
// Test Helper Functions
// ==========================

// fakeUsers serves users from a map and delegates counter bumps to the
// real store so transaction expectations cover them.
type fakeUsers struct {
	users map[string]*models.User
	store *store.UserStore
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*models.User{}, store: store.NewUserStore()}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	return user, nil
}

func (f *fakeUsers) IncrementCompletedJobs(ctx context.Context, q store.Queryer, id string) error {
	return f.store.IncrementCompletedJobs(ctx, q, id)
}

// recordingNotifier collects emitted events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Emit(event notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) all() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.events...)
}

func (n *recordingNotifier) byType(eventType string) []notify.Event {
	var out []notify.Event
	for _, e := range n.all() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// countingIndexer records how often the search index was refreshed.
type countingIndexer struct {
	mu   sync.Mutex
	jobs []string
}

func (c *countingIndexer) IndexJob(job *models.Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, job.ID)
}

func testSeeker() *models.User {
	return &models.User{ID: "seeker-001", Role: models.RoleSeeker, Name: "Anita Desai", Email: "anita@example.com"}
}

func testHelper() *models.User {
	return &models.User{ID: "helper-001", Role: models.RoleHelper, Name: "Ramesh Kumar", Email: "ramesh@example.com", Verified: true}
}

func newTestEngine(t *testing.T, users ...*models.User) (*Engine, sqlmock.Sqlmock, *recordingNotifier, *countingIndexer) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	notifier := &recordingNotifier{}
	indexer := &countingIndexer{}
	engine := NewEngine(db, newFakeUsers(users...), notifier, indexer, logger.NewTestLogger(t))
	return engine, mock, notifier, indexer
}

func jobSelectRows(job *models.Job) *sqlmock.Rows {
	var helperID interface{}
	if job.HelperID != "" {
		helperID = job.HelperID
	}
	nullableTime := func(t *time.Time) interface{} {
		if t == nil {
			return nil
		}
		return *t
	}
	return sqlmock.NewRows([]string{
		"id", "seeker_id", "helper_id", "title", "description", "category",
		"budget_min", "budget_max", "location", "photos", "status", "applications",
		"created_at", "scheduled_date", "started_at", "completed_at", "confirmed_at",
	}).AddRow(
		job.ID, job.SeekerID, helperID, job.Title, job.Description, job.Category,
		job.Budget.Min, job.Budget.Max, job.Location, []byte(`[]`),
		string(job.Status), job.Applications,
		job.CreatedAt, nullableTime(job.ScheduledDate), nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt), nullableTime(job.ConfirmedAt),
	)
}

func testJob(status models.JobStatus, helperID string) *models.Job {
	return &models.Job{
		ID:          "job-001",
		SeekerID:    "seeker-001",
		HelperID:    helperID,
		Title:       "Fix leaking kitchen tap",
		Description: "The tap drips constantly.",
		Category:    "plumbing",
		Budget:      models.Budget{Min: 500, Max: 1500},
		Location:    "Andheri West, Mumbai",
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
}

func expectJobSelect(mock sqlmock.Sqlmock, job *models.Job) {
	mock.ExpectQuery(`SELECT (.+) FROM jobs WHERE id`).
		WithArgs(job.ID).
		WillReturnRows(jobSelectRows(job))
}

// ==========================
// CreateJob
// ==========================

func TestEngine_CreateJob(t *testing.T) {
	engine, mock, notifier, indexer := newTestEngine(t, testSeeker())

	mock.ExpectExec(`INSERT INTO jobs`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job, err := engine.CreateJob(context.Background(), "seeker-001", CreateJobInput{
		Title:       "Fix leaking kitchen tap",
		Description: "The tap drips constantly.",
		Category:    "plumbing",
		Budget:      models.Budget{Min: 500, Max: 1500},
		Location:    "Andheri West, Mumbai",
	})

	assert.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.JobStatusOpen, job.Status)
	assert.Equal(t, "seeker-001", job.SeekerID)
	assert.Empty(t, job.HelperID)
	assert.Empty(t, notifier.all())
	assert.Len(t, indexer.jobs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_CreateJob_HelperForbidden(t *testing.T) {
	engine, mock, _, _ := newTestEngine(t, testHelper())

	job, err := engine.CreateJob(context.Background(), "helper-001", CreateJobInput{
		Title:       "Fix tap",
		Description: "Drips.",
		Category:    "plumbing",
		Budget:      models.Budget{Min: 100, Max: 200},
		Location:    "Mumbai",
	})

	assert.Nil(t, job)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_CreateJob_InvalidBudget(t *testing.T) {
	engine, mock, _, _ := newTestEngine(t, testSeeker())

	job, err := engine.CreateJob(context.Background(), "seeker-001", CreateJobInput{
		Title:       "Fix tap",
		Description: "Drips.",
		Category:    "plumbing",
		Budget:      models.Budget{Min: 500, Max: 100},
		Location:    "Mumbai",
	})

	assert.Nil(t, job)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Contains(t, err.Error(), "budget")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_CreateJob_TooManyPhotos(t *testing.T) {
	engine, mock, _, _ := newTestEngine(t, testSeeker())

	job, err := engine.CreateJob(context.Background(), "seeker-001", CreateJobInput{
		Title:       "Fix tap",
		Description: "Drips.",
		Category:    "plumbing",
		Budget:      models.Budget{Min: 100, Max: 200},
		Location:    "Mumbai",
		Photos:      []string{"a", "b", "c", "d", "e", "f"},
	})

	assert.Nil(t, job)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Schedule
// ==========================

func TestEngine_Schedule(t *testing.T) {
	engine, mock, notifier, indexer := newTestEngine(t)

	expectJobSelect(mock, testJob(models.JobStatusAssigned, "helper-001"))
	mock.ExpectExec(`UPDATE jobs SET status = (.+) scheduled_date`).
		WithArgs("job-001", sqlmock.AnyArg(), "scheduled", "assigned").
		WillReturnResult(sqlmock.NewResult(0, 1))

	when := time.Now().Add(48 * time.Hour)
	job, err := engine.Schedule(context.Background(), "job-001", "helper-001", when)

	assert.NoError(t, err)
	assert.Equal(t, models.JobStatusScheduled, job.Status)
	assert.NotNil(t, job.ScheduledDate)

	events := notifier.byType(models.NotificationJobScheduled)
	assert.Len(t, events, 1)
	assert.Equal(t, "seeker-001", events[0].RecipientID)
	assert.Len(t, indexer.jobs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_Schedule_WrongHelper(t *testing.T) {
	engine, mock, notifier, _ := newTestEngine(t)

	expectJobSelect(mock, testJob(models.JobStatusAssigned, "helper-001"))

	job, err := engine.Schedule(context.Background(), "job-001", "helper-999", time.Now().Add(time.Hour))

	assert.Nil(t, job)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	assert.Empty(t, notifier.all())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_Schedule_SeekerCannotSchedule(t *testing.T) {
	engine, mock, _, _ := newTestEngine(t)

	// The owner is not the bound helper; scheduling is the helper's move.
	expectJobSelect(mock, testJob(models.JobStatusAssigned, "helper-001"))

	job, err := engine.Schedule(context.Background(), "job-001", "seeker-001", time.Now().Add(time.Hour))

	assert.Nil(t, job)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_Schedule_MissingDate(t *testing.T) {
	engine, mock, _, _ := newTestEngine(t)

	job, err := engine.Schedule(context.Background(), "job-001", "helper-001", time.Time{})

	assert.Nil(t, job)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Start / Complete
// ==========================

func TestEngine_Start(t *testing.T) {
	engine, mock, notifier, _ := newTestEngine(t)

	expectJobSelect(mock, testJob(models.JobStatusScheduled, "helper-001"))
	mock.ExpectExec(`UPDATE jobs SET status = (.+) started_at`).
		WithArgs("job-001", sqlmock.AnyArg(), "in_progress", "scheduled").
		WillReturnResult(sqlmock.NewResult(0, 1))

	job, err := engine.Start(context.Background(), "job-001", "helper-001")

	assert.NoError(t, err)
	assert.Equal(t, models.JobStatusInProgress, job.Status)
	assert.NotNil(t, job.StartedAt)
	assert.Len(t, notifier.byType(models.NotificationJobStarted), 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_Start_CannotSkipScheduling(t *testing.T) {
	engine, mock, notifier, _ := newTestEngine(t)

	// Job is still assigned; the conditional update matches nothing.
	expectJobSelect(mock, testJob(models.JobStatusAssigned, "helper-001"))
	mock.ExpectExec(`UPDATE jobs SET status = (.+) started_at`).
		WithArgs("job-001", sqlmock.AnyArg(), "in_progress", "scheduled").
		WillReturnResult(sqlmock.NewResult(0, 0))

	job, err := engine.Start(context.Background(), "job-001", "helper-001")

	assert.Nil(t, job)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState))
	assert.Empty(t, notifier.all())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_Complete(t *testing.T) {
	engine, mock, notifier, _ := newTestEngine(t)

	expectJobSelect(mock, testJob(models.JobStatusInProgress, "helper-001"))
	mock.ExpectExec(`UPDATE jobs SET status = (.+) completed_at`).
		WithArgs("job-001", sqlmock.AnyArg(), "pending_review", "in_progress").
		WillReturnResult(sqlmock.NewResult(0, 1))

	job, err := engine.Complete(context.Background(), "job-001", "helper-001")

	assert.NoError(t, err)
	assert.Equal(t, models.JobStatusPendingReview, job.Status)
	assert.NotNil(t, job.CompletedAt)

	events := notifier.byType(models.NotificationJobPendingReview)
	assert.Len(t, events, 1)
	assert.Equal(t, "seeker-001", events[0].RecipientID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Confirm
// ==========================

func TestEngine_Confirm(t *testing.T) {
	engine, mock, notifier, _ := newTestEngine(t)

	expectJobSelect(mock, testJob(models.JobStatusPendingReview, "helper-001"))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE jobs SET status = (.+) confirmed_at`).
		WithArgs("job-001", sqlmock.AnyArg(), "completed", "pending_review").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET completed_jobs = completed_jobs \+ 1`).
		WithArgs("helper-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	job, err := engine.Confirm(context.Background(), "job-001", "seeker-001")

	assert.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.NotNil(t, job.ConfirmedAt)

	events := notifier.byType(models.NotificationJobCompleted)
	assert.Len(t, events, 1)
	assert.Equal(t, "helper-001", events[0].RecipientID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_Confirm_NotOwner(t *testing.T) {
	engine, mock, notifier, _ := newTestEngine(t)

	expectJobSelect(mock, testJob(models.JobStatusPendingReview, "helper-001"))

	job, err := engine.Confirm(context.Background(), "job-001", "helper-001")

	assert.Nil(t, job)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	assert.Empty(t, notifier.all())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_Confirm_RetryDoesNotDoubleIncrement(t *testing.T) {
	engine, mock, notifier, _ := newTestEngine(t)

	// The first confirm already landed: the row is completed, the
	// conditional update matches nothing and the counter bump never runs.
	expectJobSelect(mock, testJob(models.JobStatusCompleted, "helper-001"))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE jobs SET status = (.+) confirmed_at`).
		WithArgs("job-001", sqlmock.AnyArg(), "completed", "pending_review").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	job, err := engine.Confirm(context.Background(), "job-001", "seeker-001")

	assert.Nil(t, job)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidState))
	assert.Empty(t, notifier.all())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_GetJob_NotFound(t *testing.T) {
	engine, mock, _, _ := newTestEngine(t)

	mock.ExpectQuery(`SELECT (.+) FROM jobs WHERE id`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	job, err := engine.GetJob(context.Background(), "missing")

	assert.Nil(t, job)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
