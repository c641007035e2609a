package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"medication-reminders/internal/domain/reminders"
)

// reminderRepo serializa escrituras por fila con un mutex por recordatorio;
// mu solo protege los mapas. fn de UpdateLocked corre sin tomar mu.
type reminderRepo struct {
	mu     sync.RWMutex
	byID   map[string]reminders.Reminder
	access map[string]reminders.Access
	logs   map[string][]reminders.Log // por reminder

	rowMu sync.Mutex
	rows  map[string]*rowLock
}

// rowLock se descarta cuando nadie lo tiene ni lo espera.
type rowLock struct {
	mu   sync.Mutex
	refs int
}

func NewReminderRepo() reminders.Repository {
	return &reminderRepo{
		byID:   make(map[string]reminders.Reminder),
		access: make(map[string]reminders.Access),
		logs:   make(map[string][]reminders.Log),
		rows:   make(map[string]*rowLock),
	}
}

func (r *reminderRepo) lockRow(id string) func() {
	r.rowMu.Lock()
	l, ok := r.rows[id]
	if !ok {
		l = &rowLock{}
		r.rows[id] = l
	}
	l.refs++
	r.rowMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		r.rowMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.rows, id)
		}
		r.rowMu.Unlock()
	}
}

func (r *reminderRepo) Create(ctx context.Context, rem reminders.Reminder, grants ...reminders.Access) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(rem.ID) == "" {
		return errors.New("reminder id required")
	}
	if _, exists := r.byID[rem.ID]; exists {
		return reminders.ErrConflict
	}
	for _, g := range grants {
		if err := r.checkAccessUnique(g); err != nil {
			return err
		}
	}

	r.byID[rem.ID] = rem
	for _, g := range grants {
		r.access[g.ID] = g
	}
	return nil
}

func (r *reminderRepo) GetByID(ctx context.Context, id string) (reminders.Reminder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rem, ok := r.byID[id]
	if !ok {
		return reminders.Reminder{}, reminders.ErrNotFound
	}
	return rem, nil
}

func (r *reminderRepo) Delete(ctx context.Context, id string) error {
	unlock := r.lockRow(id)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return reminders.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.logs, id)
	for aid, a := range r.access {
		if a.ReminderID == id {
			delete(r.access, aid)
		}
	}
	return nil
}

func (r *reminderRepo) UpdateLocked(ctx context.Context, id string, fn func(reminders.Reminder) (reminders.Reminder, error)) (reminders.Reminder, error) {
	unlock := r.lockRow(id)
	defer unlock()

	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return reminders.Reminder{}, err
	}

	next, err := fn(cur)
	if err != nil {
		return reminders.Reminder{}, err
	}
	next.ID = cur.ID

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return reminders.Reminder{}, reminders.ErrNotFound
	}
	r.byID[id] = next
	return next, nil
}

func (r *reminderRepo) ListVisibleTo(ctx context.Context, userID string) ([]reminders.Reminder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	shared := map[string]struct{}{}
	for _, a := range r.access {
		if a.UserID == userID {
			shared[a.ReminderID] = struct{}{}
		}
	}

	out := make([]reminders.Reminder, 0)
	for _, rem := range r.byID {
		_, isShared := shared[rem.ID]
		if rem.PatientUserID == userID || rem.CreatedByUserID == userID || isShared {
			out = append(out, rem)
		}
	}
	// más nuevos primero
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *reminderRepo) ListDue(ctx context.Context, now time.Time) ([]reminders.Reminder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]reminders.Reminder, 0)
	for _, rem := range r.byID {
		if rem.IsDue(now) {
			out = append(out, rem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextTriggerTime.Before(*out[j].NextTriggerTime) })
	return out, nil
}

func (r *reminderRepo) CreateAccess(ctx context.Context, a reminders.Access) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[a.ReminderID]; !ok {
		return reminders.ErrNotFound
	}
	if err := r.checkAccessUnique(a); err != nil {
		return err
	}
	r.access[a.ID] = a
	return nil
}

func (r *reminderRepo) checkAccessUnique(a reminders.Access) error {
	for _, cur := range r.access {
		if cur.ID == a.ID || (cur.ReminderID == a.ReminderID && cur.UserID == a.UserID) {
			return reminders.ErrConflict
		}
	}
	return nil
}

func (r *reminderRepo) UpdateAccess(ctx context.Context, a reminders.Access) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.access[a.ID]
	if !ok {
		return reminders.ErrNotFound
	}
	// reminder y user no cambian
	a.ReminderID = cur.ReminderID
	a.UserID = cur.UserID
	r.access[a.ID] = a
	return nil
}

func (r *reminderRepo) DeleteAccess(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.access[id]; !ok {
		return reminders.ErrNotFound
	}
	delete(r.access, id)
	return nil
}

func (r *reminderRepo) GetAccess(ctx context.Context, id string) (reminders.Access, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.access[id]
	if !ok {
		return reminders.Access{}, reminders.ErrNotFound
	}
	return a, nil
}

func (r *reminderRepo) GetAccessFor(ctx context.Context, reminderID, userID string) (reminders.Access, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.access {
		if a.ReminderID == reminderID && a.UserID == userID {
			return a, nil
		}
	}
	return reminders.Access{}, reminders.ErrNotFound
}

func (r *reminderRepo) ListAccess(ctx context.Context, reminderID string) ([]reminders.Access, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]reminders.Access, 0)
	for _, a := range r.access {
		if a.ReminderID == reminderID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out, nil
}

func (r *reminderRepo) CreateLog(ctx context.Context, l reminders.Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[l.ReminderID]; !ok {
		return reminders.ErrNotFound
	}
	r.logs[l.ReminderID] = append(r.logs[l.ReminderID], l)
	return nil
}

func (r *reminderRepo) ListLogs(ctx context.Context, reminderID string) ([]reminders.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.logs[reminderID]
	out := make([]reminders.Log, len(src))
	copy(out, src)
	sortLogsDesc(out)
	return out, nil
}

func (r *reminderRepo) ListLogsByPatient(ctx context.Context, patientUserID string) ([]reminders.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]reminders.Log, 0)
	for rid, logs := range r.logs {
		if rem, ok := r.byID[rid]; ok && rem.PatientUserID == patientUserID {
			out = append(out, logs...)
		}
	}
	sortLogsDesc(out)
	return out, nil
}

func sortLogsDesc(in []reminders.Log) {
	sort.SliceStable(in, func(i, j int) bool { return in[i].TakenAt.After(in[j].TakenAt) })
}
