package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"medication-reminders/internal/domain/reminders"
)

type RemindersRepo struct {
	db *sql.DB
}

func NewRemindersRepo(db *sql.DB) *RemindersRepo {
	return &RemindersRepo{db: db}
}

const reminderColumns = `id, patient_user_id, medication_id, title, message, start_time,
	frequency, interval_hours, is_active, created_by_user_id, next_trigger_time,
	created_at, updated_at`

const accessColumns = `id, reminder_id, user_id, can_edit, can_delete, receive_notifications, added_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *RemindersRepo) Create(ctx context.Context, rem reminders.Reminder, grants ...reminders.Access) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reminders (`+reminderColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		`,
			rem.ID,
			rem.PatientUserID,
			rem.MedicationID,
			rem.Title,
			rem.Message,
			rem.StartTime,
			string(rem.Frequency),
			toNullInt(rem.IntervalHours),
			rem.IsActive,
			toNullString(rem.CreatedByUserID),
			toNullTime(rem.NextTriggerTime),
			rem.CreatedAt,
			rem.UpdatedAt,
		); err != nil {
			return err
		}
		for _, g := range grants {
			if err := insertAccess(ctx, tx, g); err != nil {
				return err
			}
		}
		return nil
	})
	if isUniqueViolation(err) {
		return reminders.ErrConflict
	}
	return err
}

func (r *RemindersRepo) GetByID(ctx context.Context, id string) (reminders.Reminder, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return reminders.Reminder{}, reminders.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = $1`, id)
	return scanReminder(row)
}

// Delete: access y logs caen por ON DELETE CASCADE.
func (r *RemindersRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return reminders.ErrNotFound
	}
	return nil
}

// UpdateLocked toma la fila con SELECT ... FOR UPDATE; el lock dura hasta el commit.
func (r *RemindersRepo) UpdateLocked(ctx context.Context, id string, fn func(reminders.Reminder) (reminders.Reminder, error)) (reminders.Reminder, error) {
	var out reminders.Reminder
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = $1 FOR UPDATE`, id)
		cur, err := scanReminder(row)
		if err != nil {
			return err
		}

		next, err := fn(cur)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE reminders
			SET
				title = $2,
				message = $3,
				start_time = $4,
				frequency = $5,
				interval_hours = $6,
				is_active = $7,
				next_trigger_time = $8,
				updated_at = $9
			WHERE id = $1
		`,
			cur.ID,
			next.Title,
			next.Message,
			next.StartTime,
			string(next.Frequency),
			toNullInt(next.IntervalHours),
			next.IsActive,
			toNullTime(next.NextTriggerTime),
			next.UpdatedAt,
		); err != nil {
			return err
		}
		next.ID = cur.ID
		out = next
		return nil
	})
	if err != nil {
		return reminders.Reminder{}, err
	}
	return out, nil
}

func (r *RemindersRepo) ListVisibleTo(ctx context.Context, userID string) ([]reminders.Reminder, error) {
	return r.queryReminders(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE patient_user_id = $1
		   OR created_by_user_id = $1
		   OR id IN (SELECT reminder_id FROM reminder_access WHERE user_id = $1)
		ORDER BY created_at DESC
	`, userID)
}

func (r *RemindersRepo) ListDue(ctx context.Context, now time.Time) ([]reminders.Reminder, error) {
	return r.queryReminders(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE is_active AND next_trigger_time <= $1
		ORDER BY next_trigger_time ASC
	`, now)
}

func (r *RemindersRepo) queryReminders(ctx context.Context, q string, args ...any) ([]reminders.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]reminders.Reminder, 0)
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}

func (r *RemindersRepo) CreateAccess(ctx context.Context, a reminders.Access) error {
	err := insertAccess(ctx, r.db, a)
	if isUniqueViolation(err) {
		return reminders.ErrConflict
	}
	return err
}

func (r *RemindersRepo) UpdateAccess(ctx context.Context, a reminders.Access) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminder_access
		SET can_edit = $2, can_delete = $3, receive_notifications = $4
		WHERE id = $1
	`, a.ID, a.CanEdit, a.CanDelete, a.ReceiveNotifications)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return reminders.ErrNotFound
	}
	return nil
}

func (r *RemindersRepo) DeleteAccess(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminder_access WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return reminders.ErrNotFound
	}
	return nil
}

func (r *RemindersRepo) GetAccess(ctx context.Context, id string) (reminders.Access, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accessColumns+` FROM reminder_access WHERE id = $1`, id)
	return scanAccess(row)
}

func (r *RemindersRepo) GetAccessFor(ctx context.Context, reminderID, userID string) (reminders.Access, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+accessColumns+`
		FROM reminder_access
		WHERE reminder_id = $1 AND user_id = $2
	`, reminderID, userID)
	return scanAccess(row)
}

func (r *RemindersRepo) ListAccess(ctx context.Context, reminderID string) ([]reminders.Access, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+accessColumns+`
		FROM reminder_access
		WHERE reminder_id = $1
		ORDER BY added_at ASC, id
	`, reminderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]reminders.Access, 0)
	for rows.Next() {
		a, err := scanAccess(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *RemindersRepo) CreateLog(ctx context.Context, l reminders.Log) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reminder_logs (id, reminder_id, taken_at, was_taken, notes)
		VALUES ($1,$2,$3,$4,$5)
	`, l.ID, l.ReminderID, l.TakenAt, l.WasTaken, l.Notes)
	return err
}

func (r *RemindersRepo) ListLogs(ctx context.Context, reminderID string) ([]reminders.Log, error) {
	return r.queryLogs(ctx, `
		SELECT id, reminder_id, taken_at, was_taken, notes
		FROM reminder_logs
		WHERE reminder_id = $1
		ORDER BY taken_at DESC
	`, reminderID)
}

func (r *RemindersRepo) ListLogsByPatient(ctx context.Context, patientUserID string) ([]reminders.Log, error) {
	return r.queryLogs(ctx, `
		SELECT l.id, l.reminder_id, l.taken_at, l.was_taken, l.notes
		FROM reminder_logs l
		JOIN reminders r ON r.id = l.reminder_id
		WHERE r.patient_user_id = $1
		ORDER BY l.taken_at DESC
	`, patientUserID)
}

func (r *RemindersRepo) queryLogs(ctx context.Context, q string, arg string) ([]reminders.Log, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]reminders.Log, 0)
	for rows.Next() {
		var l reminders.Log
		if err := rows.Scan(&l.ID, &l.ReminderID, &l.TakenAt, &l.WasTaken, &l.Notes); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func insertAccess(ctx context.Context, db execer, a reminders.Access) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO reminder_access (`+accessColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, a.ID, a.ReminderID, a.UserID, a.CanEdit, a.CanDelete, a.ReceiveNotifications, a.AddedAt)
	return err
}

func scanReminder(row rowScanner) (reminders.Reminder, error) {
	var rem reminders.Reminder
	var freq string
	var interval sql.NullInt64
	var createdBy sql.NullString
	var next sql.NullTime

	if err := row.Scan(
		&rem.ID,
		&rem.PatientUserID,
		&rem.MedicationID,
		&rem.Title,
		&rem.Message,
		&rem.StartTime,
		&freq,
		&interval,
		&rem.IsActive,
		&createdBy,
		&next,
		&rem.CreatedAt,
		&rem.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reminders.Reminder{}, reminders.ErrNotFound
		}
		return reminders.Reminder{}, err
	}

	rem.Frequency = reminders.Frequency(freq)
	rem.IntervalHours = fromNullInt(interval)
	rem.CreatedByUserID = createdBy.String
	rem.NextTriggerTime = fromNullTime(next)
	return rem, nil
}

func scanAccess(row rowScanner) (reminders.Access, error) {
	var a reminders.Access
	if err := row.Scan(
		&a.ID,
		&a.ReminderID,
		&a.UserID,
		&a.CanEdit,
		&a.CanDelete,
		&a.ReceiveNotifications,
		&a.AddedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reminders.Access{}, reminders.ErrNotFound
		}
		return reminders.Access{}, err
	}
	return a, nil
}
