package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medication-reminders/internal/domain/reminders"
	"medication-reminders/internal/domain/sharedaccess"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var reminderCols = []string{
	"id", "patient_user_id", "medication_id", "title", "message", "start_time",
	"frequency", "interval_hours", "is_active", "created_by_user_id", "next_trigger_time",
	"created_at", "updated_at",
}

func TestSharedAccessRepo_CreateWritesHistoryInTx(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSharedAccessRepo(db)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	id := "e1"
	a := sharedaccess.SharedAccess{
		ID: id, OwnerUserID: "p", CounterpartUserID: "d",
		Role: sharedaccess.RoleDoctor, Status: sharedaccess.StatusPending,
		CreatedAt: now, UpdatedAt: now,
	}
	h := sharedaccess.HistoryEntry{ID: "h1", SharedAccessID: &id, OwnerUserID: "p", CounterpartUserID: "d", Action: sharedaccess.ActionInvited, Timestamp: now}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO shared_access").
		WithArgs("e1", "p", "d", "doctor", "pending", now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO access_history").
		WithArgs("h1", sqlmock.AnyArg(), "p", "d", "invited", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), a, h))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSharedAccessRepo_CreateUniqueViolationIsConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSharedAccessRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO shared_access").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "shared_access_pair_uniq"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sharedaccess.SharedAccess{ID: "e2"}, sharedaccess.HistoryEntry{})
	assert.ErrorIs(t, err, sharedaccess.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSharedAccessRepo_UpdateStatusWrongFromIsBadState(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSharedAccessRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE shared_access").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	a := sharedaccess.SharedAccess{ID: "e1", Status: sharedaccess.StatusAccepted}
	err := repo.UpdateStatus(context.Background(), a, sharedaccess.StatusPending, nil)
	assert.ErrorIs(t, err, sharedaccess.ErrBadState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSharedAccessRepo_GetByPairNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSharedAccessRepo(db)

	mock.ExpectQuery("FROM shared_access").
		WithArgs("p", "x").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByPair(context.Background(), "p", "x")
	assert.ErrorIs(t, err, sharedaccess.ErrNotFound)
}

func TestSharedAccessRepo_ListHistoryNullRef(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSharedAccessRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM access_history").
		WithArgs("p").
		WillReturnRows(sqlmock.NewRows([]string{"id", "shared_access_id", "owner_user_id", "counterpart_user_id", "action", "ts"}).
			AddRow("h2", nil, "p", "d", "revoked", now).
			AddRow("h1", "e1", "p", "d", "invited", now.Add(-time.Hour)))

	hist, err := repo.ListHistory(context.Background(), "p")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Nil(t, hist[0].SharedAccessID)
	assert.Equal(t, sharedaccess.ActionRevoked, hist[0].Action)
	require.NotNil(t, hist[1].SharedAccessID)
	assert.Equal(t, "e1", *hist[1].SharedAccessID)
}

func TestRemindersRepo_UpdateLockedSelectsForUpdate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRemindersRepo(db)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(reminderCols).
			AddRow("r1", "p", "m1", "t", "", now, "custom", int64(6), true, "p", now, now, now))
	mock.ExpectExec("UPDATE reminders").
		WithArgs("r1", "t", "", now, "custom", sqlmock.AnyArg(), true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.UpdateLocked(context.Background(), "r1", func(r reminders.Reminder) (reminders.Reminder, error) {
		require.NotNil(t, r.IntervalHours)
		next, active := reminders.Advance(r.Frequency, r.IntervalHours, *r.NextTriggerTime)
		r.NextTriggerTime = &next
		r.IsActive = active
		return r, nil
	})
	require.NoError(t, err)
	assert.Equal(t, now.Add(6*time.Hour), *got.NextTriggerTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemindersRepo_UpdateLockedFnErrorRollsBack(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRemindersRepo(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(reminderCols).
			AddRow("r1", "p", "m1", "t", "", now, "once", nil, true, nil, nil, now, now))
	mock.ExpectRollback()

	_, err := repo.UpdateLocked(context.Background(), "r1", func(r reminders.Reminder) (reminders.Reminder, error) {
		return r, reminders.ErrBadState
	})
	assert.ErrorIs(t, err, reminders.ErrBadState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemindersRepo_ListDueScansNullables(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRemindersRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery("WHERE is_active AND next_trigger_time <=").
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows(reminderCols).
			AddRow("r1", "p", "m1", "t", "", now, "daily", int64(24), true, nil, now, now, now))

	due, err := repo.ListDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "", due[0].CreatedByUserID)
	assert.Equal(t, 24, *due[0].IntervalHours)
	assert.Equal(t, reminders.FrequencyDaily, due[0].Frequency)
}

func TestRemindersRepo_CreateAccessConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRemindersRepo(db)

	mock.ExpectExec("INSERT INTO reminder_access").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.CreateAccess(context.Background(), reminders.Access{ID: "a1", ReminderID: "r1", UserID: "u"})
	assert.ErrorIs(t, err, reminders.ErrConflict)
}

func TestRemindersRepo_CreateWithGrant(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRemindersRepo(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reminders").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO reminder_access").
		WithArgs("a1", "r1", "doc", true, true, true, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(),
		reminders.Reminder{ID: "r1", PatientUserID: "p", CreatedByUserID: "doc", Frequency: reminders.FrequencyDaily},
		reminders.Access{ID: "a1", ReminderID: "r1", UserID: "doc", CanEdit: true, CanDelete: true, ReceiveNotifications: true, AddedAt: now},
	)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemindersRepo_DeleteMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRemindersRepo(db)

	mock.ExpectExec("DELETE FROM reminders").WithArgs("nope").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "nope"), reminders.ErrNotFound)
}

func TestUserDirectory_Resolve(t *testing.T) {
	db, mock := newMock(t)
	dir := NewUserDirectory(db)

	mock.ExpectQuery("FROM users").
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectQuery("FROM users").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	id, err := dir.Resolve(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = dir.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, sharedaccess.ErrNotFound)
}

func TestMedicationCatalog_Get(t *testing.T) {
	db, mock := newMock(t)
	cat := NewMedicationCatalog(db)
	end := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM medications").
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_user_id", "end_date"}).AddRow("m1", "p", end))

	m, err := cat.Get(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, m.EndDate)
	assert.True(t, m.EndDate.Equal(end))
}
