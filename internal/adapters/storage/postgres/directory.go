package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"medication-reminders/internal/domain/reminders"
	"medication-reminders/internal/domain/sharedaccess"
)

// UserDirectory lee la tabla users (la administra el servicio de cuentas).
type UserDirectory struct {
	db *sql.DB
}

func NewUserDirectory(db *sql.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) Resolve(ctx context.Context, emailOrID string) (string, error) {
	key := strings.TrimSpace(emailOrID)
	if key == "" {
		return "", sharedaccess.ErrNotFound
	}

	var id string
	err := d.db.QueryRowContext(ctx, `
		SELECT id FROM users
		WHERE lower(email) = lower($1) OR id = $1
		LIMIT 1
	`, key).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sharedaccess.ErrNotFound
		}
		return "", err
	}
	return id, nil
}

// MedicationCatalog lee patient y end_date de medications.
type MedicationCatalog struct {
	db *sql.DB
}

func NewMedicationCatalog(db *sql.DB) *MedicationCatalog {
	return &MedicationCatalog{db: db}
}

func (c *MedicationCatalog) Get(ctx context.Context, id string) (reminders.Medication, error) {
	var m reminders.Medication
	var end sql.NullTime
	err := c.db.QueryRowContext(ctx, `
		SELECT id, patient_user_id, end_date FROM medications WHERE id = $1
	`, id).Scan(&m.ID, &m.PatientUserID, &end)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reminders.Medication{}, reminders.ErrNotFound
		}
		return reminders.Medication{}, err
	}
	m.EndDate = fromNullTime(end)
	return m, nil
}
