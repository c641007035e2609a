package reminders

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"medication-reminders/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/reminders", func(rr chi.Router) {
		rr.Post("/", createReminderHandler(svc))
		rr.Get("/", listRemindersHandler(svc))

		rr.Route("/{reminderID}", func(one chi.Router) {
			one.Get("/", getReminderHandler(svc))
			one.Patch("/", updateReminderHandler(svc))
			one.Delete("/", deleteReminderHandler(svc))

			one.Post("/access", shareReminderHandler(svc))
			one.Get("/access", listAccessHandler(svc))

			one.Post("/logs", confirmIntakeHandler(svc))
			one.Get("/logs", listLogsHandler(svc))
		})
	})

	r.Route("/reminder-access/{accessID}", func(ar chi.Router) {
		ar.Patch("/notifications", toggleNotificationsHandler(svc))
		ar.Delete("/", removeAccessHandler(svc))
	})

	// Doctor: logs de un paciente con vínculo aceptado
	r.Get("/patients/{patientID}/reminder-logs", listPatientLogsHandler(svc))
}

type createReminderRequest struct {
	PatientUserID   string    `json:"patient_user_id"`
	MedicationID    string    `json:"medication_id"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	StartTime       string    `json:"start_time"`
	Frequency       Frequency `json:"frequency"`
	IntervalHours   *int      `json:"interval_hours"`
	NextTriggerTime *string   `json:"next_trigger_time"`
}

type updateReminderRequest struct {
	Title           *string    `json:"title"`
	Message         *string    `json:"message"`
	StartTime       *string    `json:"start_time"`
	Frequency       *Frequency `json:"frequency"`
	IntervalHours   *int       `json:"interval_hours"`
	IsActive        *bool      `json:"is_active"`
	NextTriggerTime *string    `json:"next_trigger_time"`
}

type reminderResponse struct {
	ID              string     `json:"id"`
	PatientUserID   string     `json:"patient_user_id"`
	MedicationID    string     `json:"medication_id"`
	Title           string     `json:"title"`
	Message         string     `json:"message"`
	StartTime       time.Time  `json:"start_time"`
	Frequency       Frequency  `json:"frequency"`
	IntervalHours   *int       `json:"interval_hours,omitempty"`
	IsActive        bool       `json:"is_active"`
	CreatedByUserID string     `json:"created_by_user_id,omitempty"`
	NextTriggerTime *time.Time `json:"next_trigger_time,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type shareRequest struct {
	UserID               string `json:"user_id"`
	CanEdit              bool   `json:"can_edit"`
	CanDelete            bool   `json:"can_delete"`
	ReceiveNotifications *bool  `json:"receive_notifications"`
}

type toggleRequest struct {
	ReceiveNotifications *bool `json:"receive_notifications"`
}

type accessResponse struct {
	ID                   string    `json:"id"`
	ReminderID           string    `json:"reminder_id"`
	UserID               string    `json:"user_id"`
	CanEdit              bool      `json:"can_edit"`
	CanDelete            bool      `json:"can_delete"`
	ReceiveNotifications bool      `json:"receive_notifications"`
	AddedAt              time.Time `json:"added_at"`
}

type confirmRequest struct {
	WasTaken *bool  `json:"was_taken"`
	Notes    string `json:"notes"`
}

type logResponse struct {
	ID         string    `json:"id"`
	ReminderID string    `json:"reminder_id"`
	TakenAt    time.Time `json:"taken_at"`
	WasTaken   bool      `json:"was_taken"`
	Notes      string    `json:"notes,omitempty"`
}

// createReminderHandler godoc
// @Summary Crear recordatorio
// @Description Un paciente crea sus recordatorios. Un doctor (capability `doctor`) puede crearlos para un paciente con vínculo doctor aceptado. start_time en RFC3339.
// @Tags reminders
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param X-Debug-Capabilities header string false "Solo en modo dev, CSV: patient,doctor,family"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body createReminderRequest true "Datos del recordatorio"
// @Success 201 {object} reminderResponse
// @Failure 400 {string} string "invalid json / start_time inválido / reglas de negocio"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 409 {string} string "custom sin interval_hours"
// @Router /reminders [post]
func createReminderHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createReminderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		start, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			http.Error(w, "start_time must be RFC3339", http.StatusBadRequest)
			return
		}
		next, err := parseOptionalTime(req.NextTriggerTime)
		if err != nil {
			http.Error(w, "next_trigger_time must be RFC3339", http.StatusBadRequest)
			return
		}

		rem, err := svc.Create(r.Context(), claims, CreateInput{
			PatientUserID:   req.PatientUserID,
			MedicationID:    req.MedicationID,
			Title:           req.Title,
			Message:         req.Message,
			StartTime:       start,
			Frequency:       req.Frequency,
			IntervalHours:   req.IntervalHours,
			NextTriggerTime: next,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toReminderResponse(rem))
	}
}

// listRemindersHandler godoc
// @Summary Listar recordatorios visibles
// @Description Recordatorios donde el usuario es paciente, creador o tiene acceso compartido.
// @Tags reminders
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Success 200 {array} reminderResponse
// @Failure 401 {string} string "unauthorized"
// @Router /reminders [get]
func listRemindersHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListForUser(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}

		out := make([]reminderResponse, 0, len(items))
		for _, rem := range items {
			out = append(out, toReminderResponse(rem))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getReminderHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		rem, err := svc.Get(r.Context(), chi.URLParam(r, "reminderID"), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReminderResponse(rem))
	}
}

// updateReminderHandler godoc
// @Summary Editar recordatorio
// @Description Paciente, creador o usuario con acceso `can_edit`. Cambiar la programación recalcula next_trigger_time salvo que se envíe explícito.
// @Tags reminders
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param reminderID path string true "ID del recordatorio"
// @Param payload body updateReminderRequest true "Campos a modificar"
// @Success 200 {object} reminderResponse
// @Failure 400 {string} string "invalid json"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Router /reminders/{reminderID} [patch]
func updateReminderHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req updateReminderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		start, err := parseOptionalTime(req.StartTime)
		if err != nil {
			http.Error(w, "start_time must be RFC3339", http.StatusBadRequest)
			return
		}
		next, err := parseOptionalTime(req.NextTriggerTime)
		if err != nil {
			http.Error(w, "next_trigger_time must be RFC3339", http.StatusBadRequest)
			return
		}

		rem, err := svc.Update(r.Context(), chi.URLParam(r, "reminderID"), claims, UpdateInput{
			Title:           req.Title,
			Message:         req.Message,
			StartTime:       start,
			Frequency:       req.Frequency,
			IntervalHours:   req.IntervalHours,
			IsActive:        req.IsActive,
			NextTriggerTime: next,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReminderResponse(rem))
	}
}

func deleteReminderHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.Delete(r.Context(), chi.URLParam(r, "reminderID"), claims); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// shareReminderHandler godoc
// @Summary Compartir recordatorio
// @Description Solo paciente o creador. El destino necesita un vínculo aceptado con el paciente (en cualquier dirección).
// @Tags reminders
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param reminderID path string true "ID del recordatorio"
// @Param payload body shareRequest true "Usuario y permisos"
// @Success 201 {object} accessResponse
// @Failure 403 {string} string "forbidden / sin vínculo"
// @Failure 409 {string} string "ya compartido"
// @Router /reminders/{reminderID}/access [post]
func shareReminderHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req shareRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, err := svc.Share(r.Context(), claims.UserID, ShareInput{
			ReminderID:           chi.URLParam(r, "reminderID"),
			UserID:               req.UserID,
			CanEdit:              req.CanEdit,
			CanDelete:            req.CanDelete,
			ReceiveNotifications: req.ReceiveNotifications,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAccessResponse(a))
	}
}

func listAccessHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListAccess(r.Context(), chi.URLParam(r, "reminderID"), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}

		out := make([]accessResponse, 0, len(items))
		for _, a := range items {
			out = append(out, toAccessResponse(a))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// toggleNotificationsHandler godoc
// @Summary Activar/desactivar notificaciones de un acceso
// @Tags reminders
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param accessID path string true "ID del acceso"
// @Param payload body toggleRequest true "receive_notifications"
// @Success 200 {object} accessResponse
// @Failure 400 {string} string "receive_notifications requerido"
// @Failure 403 {string} string "forbidden"
// @Router /reminder-access/{accessID}/notifications [patch]
func toggleNotificationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req toggleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.ReceiveNotifications == nil {
			http.Error(w, "receive_notifications required", http.StatusBadRequest)
			return
		}

		a, err := svc.ToggleNotifications(r.Context(), chi.URLParam(r, "accessID"), claims.UserID, *req.ReceiveNotifications)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAccessResponse(a))
	}
}

func removeAccessHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.RemoveAccess(r.Context(), chi.URLParam(r, "accessID"), claims.UserID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// confirmIntakeHandler godoc
// @Summary Confirmar toma
// @Description Paciente, creador o usuario con acceso registran si el medicamento fue tomado.
// @Tags reminders
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param reminderID path string true "ID del recordatorio"
// @Param payload body confirmRequest true "was_taken y notas"
// @Success 201 {object} logResponse
// @Failure 400 {string} string "was_taken requerido"
// @Failure 403 {string} string "forbidden"
// @Router /reminders/{reminderID}/logs [post]
func confirmIntakeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req confirmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.WasTaken == nil {
			http.Error(w, "was_taken required", http.StatusBadRequest)
			return
		}

		l, err := svc.ConfirmIntake(r.Context(), claims.UserID, ConfirmInput{
			ReminderID: chi.URLParam(r, "reminderID"),
			WasTaken:   *req.WasTaken,
			Notes:      req.Notes,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toLogResponse(l))
	}
}

func listLogsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListLogs(r.Context(), chi.URLParam(r, "reminderID"), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLogResponses(items))
	}
}

// listPatientLogsHandler godoc
// @Summary Logs de tomas de un paciente
// @Description El propio paciente o un doctor con vínculo doctor aceptado.
// @Tags reminders
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param X-Debug-Capabilities header string false "Solo en modo dev, CSV: patient,doctor,family"
// @Param patientID path string true "ID del paciente"
// @Success 200 {array} logResponse
// @Failure 403 {string} string "forbidden"
// @Router /patients/{patientID}/reminder-logs [get]
func listPatientLogsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListPatientLogs(r.Context(), claims, chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLogResponses(items))
	}
}

func toReminderResponse(r Reminder) reminderResponse {
	return reminderResponse{
		ID:              r.ID,
		PatientUserID:   r.PatientUserID,
		MedicationID:    r.MedicationID,
		Title:           r.Title,
		Message:         r.Message,
		StartTime:       r.StartTime,
		Frequency:       r.Frequency,
		IntervalHours:   r.IntervalHours,
		IsActive:        r.IsActive,
		CreatedByUserID: r.CreatedByUserID,
		NextTriggerTime: r.NextTriggerTime,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func toAccessResponse(a Access) accessResponse {
	return accessResponse{
		ID:                   a.ID,
		ReminderID:           a.ReminderID,
		UserID:               a.UserID,
		CanEdit:              a.CanEdit,
		CanDelete:            a.CanDelete,
		ReceiveNotifications: a.ReceiveNotifications,
		AddedAt:              a.AddedAt,
	}
}

func toLogResponses(items []Log) []logResponse {
	out := make([]logResponse, 0, len(items))
	for _, l := range items {
		out = append(out, toLogResponse(l))
	}
	return out
}

func toLogResponse(l Log) logResponse {
	return logResponse{
		ID:         l.ID,
		ReminderID: l.ReminderID,
		TakenAt:    l.TakenAt,
		WasTaken:   l.WasTaken,
		Notes:      l.Notes,
	}
}

func parseOptionalTime(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(*raw))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrConflict), errors.Is(err, ErrBadState):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
