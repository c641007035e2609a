package sharedaccess

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
	r.Route("/shared-access", func(sr chi.Router) {
		sr.Post("/", inviteHandler(svc))
		sr.Get("/", listMyAccessHandler(svc))
		sr.Get("/history", listHistoryHandler(svc))

		sr.Post("/qr-token", issueTokenHandler(svc))
		sr.Post("/qr-token/redeem", redeemTokenHandler(svc))

		sr.Get("/{accessID}", getAccessHandler(svc))
		sr.Post("/{accessID}/accept", acceptHandler(svc))
		sr.Post("/{accessID}/reject", rejectHandler(svc))
		sr.Delete("/{accessID}", revokeHandler(svc))
	})
}

type inviteRequest struct {
	Counterpart string `json:"counterpart"` // email o id
	Role        Role   `json:"role"`
}

type issueTokenRequest struct {
	TTLSeconds int `json:"ttl_seconds"`
}

type redeemTokenRequest struct {
	Token string `json:"token"`
	Role  Role   `json:"role"`
}

type accessResponse struct {
	ID                string    `json:"id"`
	OwnerUserID       string    `json:"owner_user_id"`
	CounterpartUserID string    `json:"counterpart_user_id"`
	Role              Role      `json:"role"`
	Status            Status    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type historyResponse struct {
	ID                string    `json:"id"`
	SharedAccessID    *string   `json:"shared_access_id"`
	OwnerUserID       string    `json:"owner_user_id"`
	CounterpartUserID string    `json:"counterpart_user_id"`
	Action            Action    `json:"action"`
	Timestamp         time.Time `json:"timestamp"`
}

// inviteHandler godoc
// @Summary Invitar a un familiar o doctor
// @Description Crea un vínculo pendiente desde el usuario autenticado hacia el contraparte (email o id). El contraparte debe aceptarlo para que autorice algo.
// @Tags shared-access
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body inviteRequest true "Contraparte y rol (family|doctor)"
// @Success 201 {object} accessResponse
// @Failure 400 {string} string "invalid json / rol inválido"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "user not found"
// @Failure 409 {string} string "ya existe un vínculo"
// @Router /shared-access [post]
func inviteHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req inviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, err := svc.Invite(r.Context(), InviteInput{
			OwnerUserID: claims.UserID,
			Counterpart: req.Counterpart,
			Role:        req.Role,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAccessResponse(a))
	}
}

// listMyAccessHandler godoc
// @Summary Listar mis vínculos
// @Description Vínculos donde el usuario es owner o contraparte. Filtro opcional `status` (CSV).
// @Tags shared-access
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param status query string false "pending,accepted,rejected"
// @Success 200 {array} accessResponse
// @Failure 401 {string} string "unauthorized"
// @Router /shared-access [get]
func listMyAccessHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		allowed := parseStatusFilter(r.URL.Query().Get("status"))

		items, err := svc.ListForUser(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}

		out := make([]accessResponse, 0, len(items))
		for _, a := range items {
			if len(allowed) > 0 {
				if _, ok := allowed[a.Status]; !ok {
					continue
				}
			}
			out = append(out, toAccessResponse(a))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getAccessHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		a, err := svc.Get(r.Context(), chi.URLParam(r, "accessID"), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAccessResponse(a))
	}
}

// acceptHandler godoc
// @Summary Aceptar una invitación
// @Description Solo el contraparte puede aceptar, y solo desde `pending`.
// @Tags shared-access
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param accessID path string true "ID del vínculo"
// @Success 200 {object} accessResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "invalid state"
// @Router /shared-access/{accessID}/accept [post]
func acceptHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		a, err := svc.Accept(r.Context(), chi.URLParam(r, "accessID"), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAccessResponse(a))
	}
}

// rejectHandler godoc
// @Summary Rechazar una invitación
// @Tags shared-access
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param accessID path string true "ID del vínculo"
// @Success 200 {object} accessResponse
// @Failure 403 {string} string "forbidden"
// @Failure 409 {string} string "invalid state"
// @Router /shared-access/{accessID}/reject [post]
func rejectHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		a, err := svc.Reject(r.Context(), chi.URLParam(r, "accessID"), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAccessResponse(a))
	}
}

// revokeHandler godoc
// @Summary Revocar un vínculo
// @Description Solo el owner puede revocar. El vínculo se elimina y queda registrado en el historial.
// @Tags shared-access
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param accessID path string true "ID del vínculo"
// @Success 204
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Router /shared-access/{accessID} [delete]
func revokeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if _, err := svc.Revoke(r.Context(), chi.URLParam(r, "accessID"), claims.UserID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// issueTokenHandler godoc
// @Summary Generar token QR
// @Description Token de un solo propósito para que otro usuario se conecte escaneándolo. Vigencia por defecto: 5 minutos.
// @Tags shared-access
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param payload body issueTokenRequest false "Vigencia opcional en segundos"
// @Success 201 {object} tokenResponse
// @Router /shared-access/qr-token [post]
func issueTokenHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// body opcional
		var req issueTokenRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
		}

		t, err := svc.IssueQRToken(r.Context(), claims.UserID, time.Duration(req.TTLSeconds)*time.Second)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, tokenResponse{Token: t.Token, ExpiresAt: t.ExpiresAt})
	}
}

// redeemTokenHandler godoc
// @Summary Conectarse vía token QR
// @Description Crea un vínculo aceptado desde el dueño del token hacia el usuario autenticado.
// @Tags shared-access
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param payload body redeemTokenRequest true "Token y rol"
// @Success 201 {object} accessResponse
// @Failure 404 {string} string "token not found"
// @Failure 409 {string} string "vínculo existente / propio token"
// @Failure 410 {string} string "expired"
// @Router /shared-access/qr-token/redeem [post]
func redeemTokenHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req redeemTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, err := svc.RedeemQRToken(r.Context(), req.Token, claims.UserID, req.Role)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAccessResponse(a))
	}
}

// listHistoryHandler godoc
// @Summary Historial de accesos
// @Description Eventos invited/accepted/revoked donde participa el usuario, más recientes primero.
// @Tags shared-access
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Success 200 {array} historyResponse
// @Router /shared-access/history [get]
func listHistoryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListHistory(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}

		out := make([]historyResponse, 0, len(items))
		for _, h := range items {
			out = append(out, historyResponse{
				ID:                h.ID,
				SharedAccessID:    h.SharedAccessID,
				OwnerUserID:       h.OwnerUserID,
				CounterpartUserID: h.CounterpartUserID,
				Action:            h.Action,
				Timestamp:         h.Timestamp,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toAccessResponse(a SharedAccess) accessResponse {
	return accessResponse{
		ID:                a.ID,
		OwnerUserID:       a.OwnerUserID,
		CounterpartUserID: a.CounterpartUserID,
		Role:              a.Role,
		Status:            a.Status,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func parseStatusFilter(raw string) map[Status]struct{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := map[Status]struct{}{}
	for _, p := range strings.Split(raw, ",") {
		if s := Status(strings.TrimSpace(p)); s != "" {
			out[s] = struct{}{}
		}
	}
	return out
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
	case errors.Is(err, ErrExpired):
		http.Error(w, "expired", http.StatusGone)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON está duplicado en cada módulo a propósito; no hay paquete de helpers HTTP.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
