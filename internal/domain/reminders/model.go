package reminders

import "time"

type Frequency string

const (
	FrequencyOnce   Frequency = "once"
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
	FrequencyHourly Frequency = "hourly"
	FrequencyCustom Frequency = "custom"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyHourly, FrequencyCustom:
		return true
	default:
		return false
	}
}

// Reminder es el recordatorio de toma de un medicamento.
//
// Estados: activo con NextTriggerTime (programado) o inactivo (retirado).
// Un recordatorio retirado no se reactiva solo.
type Reminder struct {
	ID string

	PatientUserID string
	MedicationID  string

	Title   string
	Message string

	StartTime     time.Time
	Frequency     Frequency
	IntervalHours *int

	IsActive bool
	// CreatedByUserID vacío = la cuenta del creador ya no existe.
	CreatedByUserID string
	NextTriggerTime *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDue: activo y con disparo en o antes de now.
func (r Reminder) IsDue(now time.Time) bool {
	return r.IsActive && r.NextTriggerTime != nil && !r.NextTriggerTime.After(now)
}

// Access es el permiso por recordatorio (se apoya en un vínculo de consentimiento).
// Único por (ReminderID, UserID).
type Access struct {
	ID         string
	ReminderID string
	UserID     string

	CanEdit              bool
	CanDelete            bool
	ReceiveNotifications bool

	AddedAt time.Time
}

// Log registra si una toma ocurrió. Inmutable.
type Log struct {
	ID         string
	ReminderID string
	TakenAt    time.Time
	WasTaken   bool
	Notes      string
}

// Medication es lo mínimo que el scheduler necesita del catálogo.
type Medication struct {
	ID            string
	PatientUserID string
	// EndDate solo tiene fecha (00:00 UTC). nil = sin fecha de fin.
	EndDate *time.Time
}

// ExpiredAt: la fecha de fin es anterior al día de now.
func (m Medication) ExpiredAt(now time.Time) bool {
	if m.EndDate == nil {
		return false
	}
	return dateOf(*m.EndDate).Before(dateOf(now))
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
