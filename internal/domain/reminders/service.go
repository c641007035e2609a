package reminders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"medication-reminders/internal/domain/sharedaccess"
	"medication-reminders/internal/ports/auth"
	"medication-reminders/internal/ports/clock"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrBadState     = errors.New("invalid state")
)

type Service struct {
	repo    Repository
	meds    MedicationCatalog
	consent ConsentChecker
	now     func() time.Time
}

func NewService(repo Repository, meds MedicationCatalog, consent ConsentChecker, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System
	}
	return &Service{
		repo:    repo,
		meds:    meds,
		consent: consent,
		now:     clk.Now,
	}
}

type CreateInput struct {
	// PatientUserID vacío = el propio actor.
	PatientUserID string
	MedicationID  string

	Title   string
	Message string

	StartTime     time.Time
	Frequency     Frequency
	IntervalHours *int

	// NextTriggerTime opcional: si viene, reemplaza el cálculo inicial.
	NextTriggerTime *time.Time
}

// Create: el paciente crea sus propios recordatorios; un doctor puede crearlos
// para un paciente con vínculo doctor aceptado y recibe Access con edición y borrado.
func (s *Service) Create(ctx context.Context, actor auth.Claims, in CreateInput) (Reminder, error) {
	actorID := strings.TrimSpace(actor.UserID)
	if actorID == "" {
		return Reminder{}, ErrInvalidInput
	}

	patientID := strings.TrimSpace(in.PatientUserID)
	if patientID == "" {
		patientID = actorID
	}

	title := strings.TrimSpace(in.Title)
	medID := strings.TrimSpace(in.MedicationID)
	if title == "" || medID == "" || in.StartTime.IsZero() {
		return Reminder{}, ErrInvalidInput
	}

	freq := in.Frequency
	if freq == "" {
		freq = FrequencyOnce
	}
	if err := ValidateSchedule(freq, in.IntervalHours); err != nil {
		return Reminder{}, err
	}

	byDoctor := patientID != actorID
	if byDoctor {
		if err := s.requireDoctorConsent(ctx, actor, patientID); err != nil {
			return Reminder{}, err
		}
	}

	med, err := s.meds.Get(ctx, medID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Reminder{}, ErrInvalidInput
		}
		return Reminder{}, fmt.Errorf("get medication: %w", err)
	}
	if med.PatientUserID != "" && med.PatientUserID != patientID {
		return Reminder{}, ErrInvalidInput
	}

	next, interval := InitialTrigger(freq, in.StartTime.UTC(), in.IntervalHours)
	if in.NextTriggerTime != nil {
		t := in.NextTriggerTime.UTC()
		next = &t
	}

	now := s.now()
	r := Reminder{
		ID:              uuid.NewString(),
		PatientUserID:   patientID,
		MedicationID:    medID,
		Title:           title,
		Message:         strings.TrimSpace(in.Message),
		StartTime:       in.StartTime.UTC(),
		Frequency:       freq,
		IntervalHours:   interval,
		IsActive:        true,
		CreatedByUserID: actorID,
		NextTriggerTime: next,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var grants []Access
	if byDoctor {
		grants = append(grants, Access{
			ID:                   uuid.NewString(),
			ReminderID:           r.ID,
			UserID:               actorID,
			CanEdit:              true,
			CanDelete:            true,
			ReceiveNotifications: true,
			AddedAt:              now,
		})
	}

	if err := s.repo.Create(ctx, r, grants...); err != nil {
		return Reminder{}, mapRepoErr(err)
	}
	return r, nil
}

// Get oculta (ErrNotFound) los recordatorios a quien no tiene acceso.
func (s *Service) Get(ctx context.Context, id, actorUserID string) (Reminder, error) {
	r, err := s.get(ctx, id)
	if err != nil {
		return Reminder{}, err
	}
	ok, err := s.hasAccess(ctx, r, actorUserID)
	if err != nil {
		return Reminder{}, err
	}
	if !ok {
		return Reminder{}, ErrNotFound
	}
	return r, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]Reminder, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	items, err := s.repo.ListVisibleTo(ctx, userID)
	if err != nil {
		return nil, err
	}

	// los creados para otro paciente solo se listan con el vínculo doctor vigente
	out := items[:0]
	for _, r := range items {
		if r.CreatedByUserID == userID && r.PatientUserID != userID {
			ok, err := s.hasAccess(ctx, r, userID)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

type UpdateInput struct {
	Title   *string
	Message *string

	StartTime     *time.Time
	Frequency     *Frequency
	IntervalHours *int

	IsActive        *bool
	NextTriggerTime *time.Time
}

func (in UpdateInput) changesSchedule() bool {
	return in.StartTime != nil || in.Frequency != nil || in.IntervalHours != nil
}

// Update: paciente, creador (un doctor mantiene su vínculo) o Access con CanEdit.
// Si cambia la programación y no se fija NextTriggerTime, se recalcula desde StartTime.
func (s *Service) Update(ctx context.Context, id string, actor auth.Claims, in UpdateInput) (Reminder, error) {
	cur, err := s.get(ctx, id)
	if err != nil {
		return Reminder{}, err
	}
	if err := s.authorize(ctx, cur, actor, func(a Access) bool { return a.CanEdit }); err != nil {
		return Reminder{}, err
	}

	updated, err := s.repo.UpdateLocked(ctx, cur.ID, func(r Reminder) (Reminder, error) {
		if in.Title != nil {
			t := strings.TrimSpace(*in.Title)
			if t == "" {
				return Reminder{}, ErrInvalidInput
			}
			r.Title = t
		}
		if in.Message != nil {
			r.Message = strings.TrimSpace(*in.Message)
		}
		if in.StartTime != nil {
			if in.StartTime.IsZero() {
				return Reminder{}, ErrInvalidInput
			}
			r.StartTime = in.StartTime.UTC()
		}
		if in.Frequency != nil {
			r.Frequency = *in.Frequency
		}
		if in.IntervalHours != nil {
			h := *in.IntervalHours
			r.IntervalHours = &h
		}
		if err := ValidateSchedule(r.Frequency, r.IntervalHours); err != nil {
			return Reminder{}, err
		}

		if in.changesSchedule() && in.NextTriggerTime == nil {
			r.NextTriggerTime, r.IntervalHours = InitialTrigger(r.Frequency, r.StartTime, r.IntervalHours)
		}
		if in.NextTriggerTime != nil {
			t := in.NextTriggerTime.UTC()
			r.NextTriggerTime = &t
		}
		if in.IsActive != nil {
			r.IsActive = *in.IsActive
		}

		r.UpdatedAt = s.now()
		return r, nil
	})
	if err != nil {
		return Reminder{}, mapRepoErr(err)
	}
	return updated, nil
}

// Delete: paciente, creador (un doctor mantiene su vínculo) o Access con CanDelete.
func (s *Service) Delete(ctx context.Context, id string, actor auth.Claims) error {
	r, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, r, actor, func(a Access) bool { return a.CanDelete }); err != nil {
		return err
	}
	return mapRepoErr(s.repo.Delete(ctx, r.ID))
}

type ShareInput struct {
	ReminderID string
	UserID     string

	CanEdit   bool
	CanDelete bool
	// nil = true
	ReceiveNotifications *bool
}

// Share comparte el recordatorio con otro usuario. Solo paciente o creador;
// requiere vínculo aceptado entre paciente y destino en cualquier dirección.
func (s *Service) Share(ctx context.Context, actorUserID string, in ShareInput) (Access, error) {
	targetID := strings.TrimSpace(in.UserID)
	if targetID == "" {
		return Access{}, ErrInvalidInput
	}

	r, err := s.get(ctx, in.ReminderID)
	if err != nil {
		return Access{}, err
	}
	if err := s.requireOwnerSide(ctx, r, actorUserID); err != nil {
		return Access{}, err
	}
	// el paciente ya tiene acceso
	if targetID == r.PatientUserID {
		return Access{}, ErrInvalidInput
	}

	ok, err := hasEdgeEitherWay(ctx, s.consent, r.PatientUserID, targetID)
	if err != nil {
		return Access{}, err
	}
	if !ok {
		return Access{}, ErrForbidden
	}

	notify := true
	if in.ReceiveNotifications != nil {
		notify = *in.ReceiveNotifications
	}

	a := Access{
		ID:                   uuid.NewString(),
		ReminderID:           r.ID,
		UserID:               targetID,
		CanEdit:              in.CanEdit,
		CanDelete:            in.CanDelete,
		ReceiveNotifications: notify,
		AddedAt:              s.now(),
	}
	if err := s.repo.CreateAccess(ctx, a); err != nil {
		return Access{}, mapRepoErr(err)
	}
	return a, nil
}

// ListAccess: solo paciente o creador ven con quién se compartió.
func (s *Service) ListAccess(ctx context.Context, reminderID, actorUserID string) ([]Access, error) {
	r, err := s.get(ctx, reminderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwnerSide(ctx, r, actorUserID); err != nil {
		return nil, err
	}
	return s.repo.ListAccess(ctx, r.ID)
}

// ToggleNotifications: el propio destinatario, el paciente o el creador.
func (s *Service) ToggleNotifications(ctx context.Context, accessID, actorUserID string, receive bool) (Access, error) {
	a, r, err := s.getAccess(ctx, accessID)
	if err != nil {
		return Access{}, err
	}
	if a.UserID != actorUserID {
		if err := s.requireOwnerSide(ctx, r, actorUserID); err != nil {
			return Access{}, err
		}
	}

	a.ReceiveNotifications = receive
	if err := s.repo.UpdateAccess(ctx, a); err != nil {
		return Access{}, mapRepoErr(err)
	}
	return a, nil
}

// RemoveAccess: solo paciente o creador.
func (s *Service) RemoveAccess(ctx context.Context, accessID, actorUserID string) error {
	a, r, err := s.getAccess(ctx, accessID)
	if err != nil {
		return err
	}
	if err := s.requireOwnerSide(ctx, r, actorUserID); err != nil {
		return err
	}
	return mapRepoErr(s.repo.DeleteAccess(ctx, a.ID))
}

type ConfirmInput struct {
	ReminderID string
	WasTaken   bool
	Notes      string
}

// ConfirmIntake registra la toma (o no) por parte de cualquiera con acceso al recordatorio.
func (s *Service) ConfirmIntake(ctx context.Context, actorUserID string, in ConfirmInput) (Log, error) {
	r, err := s.get(ctx, in.ReminderID)
	if err != nil {
		return Log{}, err
	}
	ok, err := s.hasAccess(ctx, r, actorUserID)
	if err != nil {
		return Log{}, err
	}
	if !ok {
		return Log{}, ErrForbidden
	}

	l := Log{
		ID:         uuid.NewString(),
		ReminderID: r.ID,
		TakenAt:    s.now(),
		WasTaken:   in.WasTaken,
		Notes:      strings.TrimSpace(in.Notes),
	}
	if err := s.repo.CreateLog(ctx, l); err != nil {
		return Log{}, mapRepoErr(err)
	}
	return l, nil
}

func (s *Service) ListLogs(ctx context.Context, reminderID, actorUserID string) ([]Log, error) {
	r, err := s.get(ctx, reminderID)
	if err != nil {
		return nil, err
	}
	ok, err := s.hasAccess(ctx, r, actorUserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return s.repo.ListLogs(ctx, r.ID)
}

// ListPatientLogs: el propio paciente, o un doctor con vínculo doctor aceptado.
func (s *Service) ListPatientLogs(ctx context.Context, actor auth.Claims, patientUserID string) ([]Log, error) {
	patientUserID = strings.TrimSpace(patientUserID)
	if patientUserID == "" {
		return nil, ErrInvalidInput
	}
	if actor.UserID != patientUserID {
		if err := s.requireDoctorConsent(ctx, actor, patientUserID); err != nil {
			return nil, err
		}
	}
	return s.repo.ListLogsByPatient(ctx, patientUserID)
}

// authorize valida permisos de mutación sobre r.
func (s *Service) authorize(ctx context.Context, r Reminder, actor auth.Claims, perm func(Access) bool) error {
	actorID := strings.TrimSpace(actor.UserID)
	if actorID == "" {
		return ErrForbidden
	}
	if actorID == r.PatientUserID {
		return nil
	}
	if actorID == r.CreatedByUserID {
		// el creador no-paciente es un doctor: su vínculo debe seguir vigente
		return s.requireDoctorConsent(ctx, actor, r.PatientUserID)
	}

	a, err := s.repo.GetAccessFor(ctx, r.ID, actorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrForbidden
		}
		return err
	}
	if !perm(a) {
		return ErrForbidden
	}
	return nil
}

func (s *Service) requireDoctorConsent(ctx context.Context, actor auth.Claims, patientID string) error {
	if !auth.HasCapability(actor, auth.CapabilityDoctor) {
		return ErrForbidden
	}
	ok, err := s.consent.HasConsentedAccess(ctx, actor.UserID, patientID, sharedaccess.RoleDoctor)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *Service) hasAccess(ctx context.Context, r Reminder, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, nil
	}
	ok, err := s.ownerSide(ctx, r, userID)
	if err != nil || ok {
		return ok, err
	}
	if userID == r.CreatedByUserID {
		// sin vínculo vigente el creador no conserva acceso por su grant automático
		return false, nil
	}
	if _, err := s.repo.GetAccessFor(ctx, r.ID, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ownerSide: el paciente, o el creador no-paciente mientras su vínculo doctor siga aceptado.
func (s *Service) ownerSide(ctx context.Context, r Reminder, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	switch {
	case userID == "":
		return false, nil
	case userID == r.PatientUserID:
		return true, nil
	case userID == r.CreatedByUserID:
		return s.consent.HasConsentedAccess(ctx, userID, r.PatientUserID, sharedaccess.RoleDoctor)
	default:
		return false, nil
	}
}

func (s *Service) requireOwnerSide(ctx context.Context, r Reminder, userID string) error {
	ok, err := s.ownerSide(ctx, r, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *Service) get(ctx context.Context, id string) (Reminder, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Reminder{}, ErrInvalidInput
	}
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Reminder{}, mapRepoErr(err)
	}
	return r, nil
}

func (s *Service) getAccess(ctx context.Context, id string) (Access, Reminder, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Access{}, Reminder{}, ErrInvalidInput
	}
	a, err := s.repo.GetAccess(ctx, id)
	if err != nil {
		return Access{}, Reminder{}, mapRepoErr(err)
	}
	r, err := s.get(ctx, a.ReminderID)
	if err != nil {
		return Access{}, Reminder{}, err
	}
	return a, r, nil
}

func mapRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrConflict):
		return ErrConflict
	case errors.Is(err, ErrBadState):
		return ErrBadState
	case errors.Is(err, ErrInvalidInput):
		return ErrInvalidInput
	default:
		return err
	}
}
