package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medication-reminders/internal/domain/reminders"
	"medication-reminders/internal/domain/sharedaccess"
)

func TestSharedAccessRepo_PairUniqueness(t *testing.T) {
	repo := NewSharedAccessRepo()
	ctx := context.Background()

	a := sharedaccess.SharedAccess{ID: "e1", OwnerUserID: "p", CounterpartUserID: "d", Status: sharedaccess.StatusPending}
	require.NoError(t, repo.Create(ctx, a, sharedaccess.HistoryEntry{ID: "h1", OwnerUserID: "p", CounterpartUserID: "d"}))

	dup := a
	dup.ID = "e2"
	assert.ErrorIs(t, repo.Create(ctx, dup, sharedaccess.HistoryEntry{}), sharedaccess.ErrConflict)

	// tras borrar, el par queda libre
	require.NoError(t, repo.Delete(ctx, "e1", sharedaccess.HistoryEntry{ID: "h2", OwnerUserID: "p", CounterpartUserID: "d"}))
	require.NoError(t, repo.Create(ctx, dup, sharedaccess.HistoryEntry{ID: "h3", OwnerUserID: "p", CounterpartUserID: "d"}))

	hist, err := repo.ListHistory(ctx, "d")
	require.NoError(t, err)
	assert.Len(t, hist, 3)
}

func TestSharedAccessRepo_ConcurrentCreateOnlyOneWins(t *testing.T) {
	repo := NewSharedAccessRepo()
	ctx := context.Background()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := sharedaccess.SharedAccess{ID: string(rune('a' + i)), OwnerUserID: "p", CounterpartUserID: "f"}
			if repo.Create(ctx, a, sharedaccess.HistoryEntry{}) == nil {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestSharedAccessRepo_UpdateStatusChecksFrom(t *testing.T) {
	repo := NewSharedAccessRepo()
	ctx := context.Background()

	a := sharedaccess.SharedAccess{ID: "e1", OwnerUserID: "p", CounterpartUserID: "d", Status: sharedaccess.StatusAccepted}
	require.NoError(t, repo.Create(ctx, a, sharedaccess.HistoryEntry{}))

	a.Status = sharedaccess.StatusRejected
	assert.ErrorIs(t, repo.UpdateStatus(ctx, a, sharedaccess.StatusPending, nil), sharedaccess.ErrBadState)
}

func TestReminderRepo_ListDueAndCascade(t *testing.T) {
	repo := NewReminderRepo()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	require.NoError(t, repo.Create(ctx, reminders.Reminder{ID: "due", IsActive: true, NextTriggerTime: &past},
		reminders.Access{ID: "a1", ReminderID: "due", UserID: "doc"}))
	require.NoError(t, repo.Create(ctx, reminders.Reminder{ID: "later", IsActive: true, NextTriggerTime: &future}))
	require.NoError(t, repo.Create(ctx, reminders.Reminder{ID: "retired", IsActive: false, NextTriggerTime: &past}))
	require.NoError(t, repo.Create(ctx, reminders.Reminder{ID: "inert", IsActive: true}))

	due, err := repo.ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].ID)

	require.NoError(t, repo.CreateLog(ctx, reminders.Log{ID: "l1", ReminderID: "due"}))
	require.NoError(t, repo.Delete(ctx, "due"))

	_, err = repo.GetAccess(ctx, "a1")
	assert.ErrorIs(t, err, reminders.ErrNotFound)
	logs, err := repo.ListLogs(ctx, "due")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestReminderRepo_AccessUnique(t *testing.T) {
	repo := NewReminderRepo()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, reminders.Reminder{ID: "r1"}))
	require.NoError(t, repo.CreateAccess(ctx, reminders.Access{ID: "a1", ReminderID: "r1", UserID: "u"}))
	assert.ErrorIs(t, repo.CreateAccess(ctx, reminders.Access{ID: "a2", ReminderID: "r1", UserID: "u"}), reminders.ErrConflict)
}

func TestReminderRepo_UpdateLockedSerializes(t *testing.T) {
	repo := NewReminderRepo()
	ctx := context.Background()

	one := 0
	require.NoError(t, repo.Create(ctx, reminders.Reminder{ID: "r1", IntervalHours: &one}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.UpdateLocked(ctx, "r1", func(r reminders.Reminder) (reminders.Reminder, error) {
				n := *r.IntervalHours + 1
				r.IntervalHours = &n
				return r, nil
			})
		}()
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 50, *got.IntervalHours)
}

func TestReminderRepo_UpdateLockedErrorWritesNothing(t *testing.T) {
	repo := NewReminderRepo()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, reminders.Reminder{ID: "r1", Title: "a"}))
	_, err := repo.UpdateLocked(ctx, "r1", func(r reminders.Reminder) (reminders.Reminder, error) {
		r.Title = "b"
		return r, reminders.ErrBadState
	})
	assert.ErrorIs(t, err, reminders.ErrBadState)

	got, _ := repo.GetByID(ctx, "r1")
	assert.Equal(t, "a", got.Title)
}

func TestUserDirectory_Resolve(t *testing.T) {
	d, err := NewUserDirectoryFromSeed([]string{"u1:Ana@Example.com", "u2:"})
	require.NoError(t, err)

	ctx := context.Background()
	id, err := d.Resolve(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	id, err = d.Resolve(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "u2", id)

	_, err = d.Resolve(ctx, "nobody")
	assert.ErrorIs(t, err, sharedaccess.ErrNotFound)

	_, err = NewUserDirectoryFromSeed([]string{"broken"})
	assert.Error(t, err)
}

func TestReminderRepo_RowLocksAreReleased(t *testing.T) {
	repo := NewReminderRepo().(*reminderRepo)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, reminders.Reminder{ID: "r1", Title: "a"}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.UpdateLocked(ctx, "r1", func(r reminders.Reminder) (reminders.Reminder, error) {
				return r, nil
			})
		}()
	}
	wg.Wait()
	require.NoError(t, repo.Delete(ctx, "r1"))
	assert.ErrorIs(t, repo.Delete(ctx, "r1"), reminders.ErrNotFound)

	repo.rowMu.Lock()
	defer repo.rowMu.Unlock()
	assert.Empty(t, repo.rows)
}
