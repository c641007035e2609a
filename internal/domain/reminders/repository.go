package reminders

import (
	"context"
	"time"

	"medication-reminders/internal/domain/sharedaccess"
)

// Repository persiste recordatorios, permisos por recordatorio y logs de toma.
// Borrar un recordatorio borra sus Access y Log.
type Repository interface {
	// Create guarda el recordatorio y los accesos iniciales de forma atómica.
	Create(ctx context.Context, r Reminder, grants ...Access) error
	GetByID(ctx context.Context, id string) (Reminder, error)
	Delete(ctx context.Context, id string) error

	// UpdateLocked lee la fila bajo lock, aplica fn y persiste el resultado.
	// Si fn devuelve error no se escribe nada y el error se propaga.
	UpdateLocked(ctx context.Context, id string, fn func(Reminder) (Reminder, error)) (Reminder, error)

	// ListVisibleTo: recordatorios donde userID es paciente, creador o tiene Access.
	ListVisibleTo(ctx context.Context, userID string) ([]Reminder, error)
	// ListDue: activos con next_trigger_time <= now, más antiguos primero.
	ListDue(ctx context.Context, now time.Time) ([]Reminder, error)

	// CreateAccess falla con ErrConflict si ya hay Access para (reminder, user).
	CreateAccess(ctx context.Context, a Access) error
	UpdateAccess(ctx context.Context, a Access) error
	DeleteAccess(ctx context.Context, id string) error
	GetAccess(ctx context.Context, id string) (Access, error)
	GetAccessFor(ctx context.Context, reminderID, userID string) (Access, error)
	// ListAccess ordena por AddedAt ascendente.
	ListAccess(ctx context.Context, reminderID string) ([]Access, error)

	CreateLog(ctx context.Context, l Log) error
	ListLogs(ctx context.Context, reminderID string) ([]Log, error)
	ListLogsByPatient(ctx context.Context, patientUserID string) ([]Log, error)
}

// MedicationCatalog es el catálogo externo de medicamentos (CRUD fuera de este servicio).
type MedicationCatalog interface {
	Get(ctx context.Context, medicationID string) (Medication, error)
}

// ConsentChecker lo implementa *sharedaccess.Service.
type ConsentChecker interface {
	HasConsentedAccess(ctx context.Context, subjectUserID, ownerUserID string, role sharedaccess.Role) (bool, error)
}
