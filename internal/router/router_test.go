package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"medication-reminders/internal/app"
	"medication-reminders/internal/middleware"
	"medication-reminders/internal/platform/config"
	"medication-reminders/internal/platform/logger"
)

func newTestApp(t *testing.T) (*app.App, *httptest.Server) {
	t.Helper()

	cfg := config.Config{
		Dev: config.DevConfig{
			Users:       []string{"p1:p1@example.com", "d1:d1@example.com", "f1:f1@example.com"},
			Medications: []string{"med-1:p1"},
		},
		Scheduler: config.SchedulerConfig{
			PollInterval:  time.Minute,
			Concurrency:   2,
			NotifyTimeout: time.Second,
		},
	}

	a, err := app.New(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	ts := httptest.NewServer(a.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = a.Close()
	})
	return a, ts
}

func TestHTTP_EndToEnd_ConsentGatesReminders(t *testing.T) {
	a, ts := newTestApp(t)

	// 1) Paciente invita al doctor
	doctorEdge := createdID(t, ts.URL, "POST", "/shared-access", "p1", "", map[string]any{
		"counterpart": "d1@example.com",
		"role":        "doctor",
	})

	reminderBody := map[string]any{
		"patient_user_id":   "p1",
		"medication_id":     "med-1",
		"title":             "Ibuprofeno",
		"start_time":        "2025-01-01T08:00:00Z",
		"frequency":         "custom",
		"interval_hours":    6,
		"next_trigger_time": "2025-01-01T08:00:00Z",
	}

	// 2) Con el vínculo pendiente el doctor no puede crear recordatorios
	{
		st, body := doReq(t, ts.URL, "POST", "/reminders", "d1", "doctor", reminderBody)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 before accept, got %d body=%s", st, string(body))
		}
	}

	// 3) El doctor acepta y ahora sí puede
	{
		st, body := doReq(t, ts.URL, "POST", "/shared-access/"+doctorEdge+"/accept", "d1", "doctor", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 accept, got %d body=%s", st, string(body))
		}
	}
	reminderID := createdID(t, ts.URL, "POST", "/reminders", "d1", "doctor", reminderBody)

	// 4) El paciente lo ve en su listado
	{
		st, body := doReq(t, ts.URL, "GET", "/reminders", "p1", "", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 list, got %d body=%s", st, string(body))
		}
		if !strings.Contains(string(body), reminderID) {
			t.Fatalf("expected reminder %s in list, got %s", reminderID, string(body))
		}
	}

	// 5) Un familiar sin acceso no lo ve
	{
		st, _ := doReq(t, ts.URL, "GET", "/reminders/"+reminderID, "f1", "family", nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 for stranger, got %d", st)
		}
	}

	// 6) Vínculo familiar aceptado y recordatorio compartido
	familyEdge := createdID(t, ts.URL, "POST", "/shared-access", "p1", "", map[string]any{
		"counterpart": "f1",
		"role":        "family",
	})
	{
		st, body := doReq(t, ts.URL, "POST", "/shared-access/"+familyEdge+"/accept", "f1", "family", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 accept family, got %d body=%s", st, string(body))
		}
	}
	_ = createdID(t, ts.URL, "POST", "/reminders/"+reminderID+"/access", "p1", "", map[string]any{
		"user_id": "f1",
	})

	// 7) El familiar confirma la toma
	_ = createdID(t, ts.URL, "POST", "/reminders/"+reminderID+"/logs", "f1", "family", map[string]any{
		"was_taken": true,
		"notes":     "con el desayuno",
	})

	// 8) El doctor ve el historial de tomas del paciente
	{
		st, body := doReq(t, ts.URL, "GET", "/patients/p1/reminder-logs", "d1", "doctor", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 patient logs, got %d body=%s", st, string(body))
		}
		var logs []map[string]any
		if err := json.Unmarshal(body, &logs); err != nil {
			t.Fatalf("decode logs: %v body=%s", err, string(body))
		}
		if len(logs) != 1 {
			t.Fatalf("expected 1 log, got %d", len(logs))
		}
	}

	// 9) El scheduler dispara el recordatorio vencido
	{
		res, err := a.Scheduler.ProcessDueOnce(context.Background())
		if err != nil {
			t.Fatalf("ProcessDueOnce: %v", err)
		}
		if res.Notified != 1 {
			t.Fatalf("expected 1 notified, got %+v", res)
		}
	}

	// 10) El paciente revoca al doctor y pierde acceso a los logs
	{
		st, body := doReq(t, ts.URL, "DELETE", "/shared-access/"+doctorEdge, "p1", "", nil)
		if st != http.StatusNoContent {
			t.Fatalf("expected 204 revoke, got %d body=%s", st, string(body))
		}
		st, _ = doReq(t, ts.URL, "GET", "/patients/p1/reminder-logs", "d1", "doctor", nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 after revoke, got %d", st)
		}
	}

	// 11) El historial conserva creación, aceptación y revocación
	{
		st, body := doReq(t, ts.URL, "GET", "/shared-access/history", "p1", "", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 history, got %d body=%s", st, string(body))
		}
		if !strings.Contains(string(body), `"revoked"`) {
			t.Fatalf("expected revoked entry in history, got %s", string(body))
		}
	}
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	a, ts := newTestApp(t)

	if _, err := a.Scheduler.ProcessDueOnce(context.Background()); err != nil {
		t.Fatalf("ProcessDueOnce: %v", err)
	}

	st, body := doReq(t, ts.URL, "GET", "/health", "", "", nil)
	if st != http.StatusOK || string(body) != "ok" {
		t.Fatalf("expected 200 ok, got %d body=%s", st, string(body))
	}

	st, body = doReq(t, ts.URL, "GET", "/metrics", "", "", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 metrics, got %d", st)
	}
	if !strings.Contains(string(body), "medreminders_scheduler_cycles_total") {
		t.Fatalf("expected scheduler metrics, got %s", string(body))
	}
}

func TestHTTP_MissingUserIsUnauthorized(t *testing.T) {
	_, ts := newTestApp(t)

	st, _ := doReq(t, ts.URL, "GET", "/reminders", "", "", nil)
	if st != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user, got %d", st)
	}
}

func createdID(t *testing.T, baseURL, method, path, userID, caps string, payload any) string {
	t.Helper()

	st, body := doReq(t, baseURL, method, path, userID, caps, payload)
	if st != http.StatusCreated {
		t.Fatalf("expected 201 %s %s, got %d body=%s", method, path, st, string(body))
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode %s: %v body=%s", path, err, string(body))
	}
	if out.ID == "" {
		t.Fatalf("expected id in response %s", string(body))
	}
	return out.ID
}

func doReq(t *testing.T, baseURL, method, path, userID, caps string, payload any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(middleware.HeaderDebugUserID, userID)
	}
	if caps != "" {
		req.Header.Set(middleware.HeaderDebugCapabilities, caps)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}
