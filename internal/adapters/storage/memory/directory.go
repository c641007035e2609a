package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"medication-reminders/internal/domain/reminders"
	"medication-reminders/internal/domain/sharedaccess"
)

// UserDirectory es el directorio de usuarios en memoria (modo dev, sin DB).
type UserDirectory struct {
	mu      sync.RWMutex
	ids     map[string]struct{}
	byEmail map[string]string
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{
		ids:     make(map[string]struct{}),
		byEmail: make(map[string]string),
	}
}

// NewUserDirectoryFromSeed acepta entradas "id:email" (p.ej. DEV_USERS).
func NewUserDirectoryFromSeed(entries []string) (*UserDirectory, error) {
	d := NewUserDirectory()
	for _, e := range entries {
		id, email, ok := strings.Cut(strings.TrimSpace(e), ":")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("invalid user seed %q (want id:email)", e)
		}
		d.Add(id, email)
	}
	return d, nil
}

func (d *UserDirectory) Add(id, email string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id = strings.TrimSpace(id)
	d.ids[id] = struct{}{}
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		d.byEmail[email] = id
	}
}

func (d *UserDirectory) Resolve(ctx context.Context, emailOrID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	key := strings.TrimSpace(emailOrID)
	if id, ok := d.byEmail[strings.ToLower(key)]; ok {
		return id, nil
	}
	if _, ok := d.ids[key]; ok {
		return key, nil
	}
	return "", sharedaccess.ErrNotFound
}

// MedicationCatalog en memoria; el CRUD real de medicamentos vive fuera.
type MedicationCatalog struct {
	mu   sync.RWMutex
	byID map[string]reminders.Medication
}

func NewMedicationCatalog() *MedicationCatalog {
	return &MedicationCatalog{byID: make(map[string]reminders.Medication)}
}

// NewMedicationCatalogFromSeed acepta "id:patient" o "id:patient:YYYY-MM-DD" (DEV_MEDICATIONS).
func NewMedicationCatalogFromSeed(entries []string) (*MedicationCatalog, error) {
	c := NewMedicationCatalog()
	for _, e := range entries {
		parts := strings.Split(strings.TrimSpace(e), ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid medication seed %q (want id:patient[:end_date])", e)
		}
		m := reminders.Medication{ID: parts[0], PatientUserID: parts[1]}
		if len(parts) == 3 && parts[2] != "" {
			end, err := time.Parse(time.DateOnly, parts[2])
			if err != nil {
				return nil, fmt.Errorf("invalid medication seed %q: %w", e, err)
			}
			m.EndDate = &end
		}
		c.Put(m)
	}
	return c, nil
}

func (c *MedicationCatalog) Put(m reminders.Medication) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[m.ID] = m
}

func (c *MedicationCatalog) Get(ctx context.Context, id string) (reminders.Medication, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.byID[id]
	if !ok {
		return reminders.Medication{}, reminders.ErrNotFound
	}
	return m, nil
}
