package sharedaccess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"medication-reminders/internal/ports/clock"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrBadState     = errors.New("invalid state")
	ErrExpired      = errors.New("expired")
)

type Service struct {
	repo  Repository
	users UserDirectory
	now   func() time.Time
}

func NewService(repo Repository, users UserDirectory, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System
	}
	return &Service{
		repo:  repo,
		users: users,
		now:   clk.Now,
	}
}

type InviteInput struct {
	OwnerUserID string
	Counterpart string // email o id
	Role        Role
}

func (s *Service) Invite(ctx context.Context, in InviteInput) (SharedAccess, error) {
	ownerID := strings.TrimSpace(in.OwnerUserID)
	target := strings.TrimSpace(in.Counterpart)
	if ownerID == "" || target == "" {
		return SharedAccess{}, ErrInvalidInput
	}

	role, err := normalizeRole(in.Role)
	if err != nil {
		return SharedAccess{}, err
	}

	if s.users == nil {
		return SharedAccess{}, ErrNotFound
	}
	counterpartID, err := s.users.Resolve(ctx, target)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return SharedAccess{}, ErrNotFound
		}
		return SharedAccess{}, fmt.Errorf("resolve counterpart: %w", err)
	}
	if counterpartID == ownerID {
		return SharedAccess{}, ErrConflict
	}

	// Cualquier vínculo previo para el par (aunque esté rechazado) bloquea la invitación.
	if _, err := s.repo.GetByPair(ctx, ownerID, counterpartID); err == nil {
		return SharedAccess{}, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return SharedAccess{}, err
	}

	return s.create(ctx, ownerID, counterpartID, role, StatusPending)
}

func (s *Service) Accept(ctx context.Context, accessID, actorUserID string) (SharedAccess, error) {
	return s.respond(ctx, accessID, actorUserID, StatusAccepted)
}

// Reject no deja rastro en el historial (solo creación, aceptación y revocación se historizan).
func (s *Service) Reject(ctx context.Context, accessID, actorUserID string) (SharedAccess, error) {
	return s.respond(ctx, accessID, actorUserID, StatusRejected)
}

func (s *Service) respond(ctx context.Context, accessID, actorUserID string, to Status) (SharedAccess, error) {
	accessID = strings.TrimSpace(accessID)
	actorUserID = strings.TrimSpace(actorUserID)
	if accessID == "" || actorUserID == "" {
		return SharedAccess{}, ErrInvalidInput
	}

	a, err := s.get(ctx, accessID)
	if err != nil {
		return SharedAccess{}, err
	}

	if a.CounterpartUserID != actorUserID {
		return SharedAccess{}, ErrForbidden
	}
	// Sin re-transiciones silenciosas: solo pending -> accepted|rejected.
	if a.Status != StatusPending {
		return SharedAccess{}, ErrBadState
	}

	now := s.now()
	a.Status = to
	a.UpdatedAt = now

	var h *HistoryEntry
	if to == StatusAccepted {
		entry := s.historyFor(a, ActionAccepted, now)
		h = &entry
	}

	if err := s.repo.UpdateStatus(ctx, a, StatusPending, h); err != nil {
		return SharedAccess{}, mapRepoErr(err)
	}
	return a, nil
}

func (s *Service) Revoke(ctx context.Context, accessID, actorUserID string) (SharedAccess, error) {
	accessID = strings.TrimSpace(accessID)
	actorUserID = strings.TrimSpace(actorUserID)
	if accessID == "" || actorUserID == "" {
		return SharedAccess{}, ErrInvalidInput
	}

	a, err := s.get(ctx, accessID)
	if err != nil {
		return SharedAccess{}, err
	}
	if a.OwnerUserID != actorUserID {
		return SharedAccess{}, ErrForbidden
	}

	h := s.historyFor(a, ActionRevoked, s.now())
	h.SharedAccessID = nil // el vínculo deja de existir

	if err := s.repo.Delete(ctx, a.ID, h); err != nil {
		return SharedAccess{}, mapRepoErr(err)
	}
	return a, nil
}

// IssueQRToken genera un token para que otro usuario se conecte escaneándolo.
// ttl <= 0 usa DefaultTokenTTL.
func (s *Service) IssueQRToken(ctx context.Context, ownerUserID string, ttl time.Duration) (Token, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return Token{}, ErrInvalidInput
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := s.now()
	t := Token{
		Token:       uuid.NewString(),
		OwnerUserID: ownerUserID,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
	if err := s.repo.CreateToken(ctx, t); err != nil {
		return Token{}, err
	}
	return t, nil
}

// RedeemQRToken crea el vínculo (owner del token -> actor) directamente aceptado.
// El límite es exclusivo: en now == ExpiresAt el token ya expiró.
func (s *Service) RedeemQRToken(ctx context.Context, token, actorUserID string, role Role) (SharedAccess, error) {
	token = strings.TrimSpace(token)
	actorUserID = strings.TrimSpace(actorUserID)
	if token == "" || actorUserID == "" {
		return SharedAccess{}, ErrInvalidInput
	}

	role, err := normalizeRole(role)
	if err != nil {
		return SharedAccess{}, err
	}

	t, err := s.repo.GetToken(ctx, token)
	if err != nil {
		return SharedAccess{}, mapRepoErr(err)
	}
	if !t.IsValid(s.now()) {
		return SharedAccess{}, ErrExpired
	}
	if t.OwnerUserID == actorUserID {
		return SharedAccess{}, ErrBadState
	}

	return s.create(ctx, t.OwnerUserID, actorUserID, role, StatusAccepted)
}

// HasConsentedAccess responde si subject puede actuar sobre datos de owner.
// role vacío = cualquier rol. Se consulta siempre al store: una revocación
// tiene efecto inmediato.
func (s *Service) HasConsentedAccess(ctx context.Context, subjectUserID, ownerUserID string, role Role) (bool, error) {
	subjectUserID = strings.TrimSpace(subjectUserID)
	ownerUserID = strings.TrimSpace(ownerUserID)
	if subjectUserID == "" || ownerUserID == "" || subjectUserID == ownerUserID {
		return false, nil
	}

	a, err := s.repo.GetByPair(ctx, ownerUserID, subjectUserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if a.Status != StatusAccepted {
		return false, nil
	}
	if role != "" && a.Role != role {
		return false, nil
	}
	return true, nil
}

// Get devuelve el vínculo solo a sus participantes; a terceros, ErrNotFound.
func (s *Service) Get(ctx context.Context, accessID, actorUserID string) (SharedAccess, error) {
	a, err := s.get(ctx, strings.TrimSpace(accessID))
	if err != nil {
		return SharedAccess{}, err
	}
	if a.OwnerUserID != actorUserID && a.CounterpartUserID != actorUserID {
		return SharedAccess{}, ErrNotFound
	}
	return a, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]SharedAccess, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) ListHistory(ctx context.Context, userID string) ([]HistoryEntry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListHistory(ctx, userID)
}

func (s *Service) create(ctx context.Context, ownerID, counterpartID string, role Role, status Status) (SharedAccess, error) {
	now := s.now()
	a := SharedAccess{
		ID:                uuid.NewString(),
		OwnerUserID:       ownerID,
		CounterpartUserID: counterpartID,
		Role:              role,
		Status:            status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// La creación siempre se historiza como "invited", también en el flujo QR.
	if err := s.repo.Create(ctx, a, s.historyFor(a, ActionInvited, now)); err != nil {
		return SharedAccess{}, mapRepoErr(err)
	}
	return a, nil
}

func (s *Service) get(ctx context.Context, id string) (SharedAccess, error) {
	if id == "" {
		return SharedAccess{}, ErrInvalidInput
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return SharedAccess{}, mapRepoErr(err)
	}
	return a, nil
}

func (s *Service) historyFor(a SharedAccess, action Action, at time.Time) HistoryEntry {
	id := a.ID
	return HistoryEntry{
		ID:                uuid.NewString(),
		SharedAccessID:    &id,
		OwnerUserID:       a.OwnerUserID,
		CounterpartUserID: a.CounterpartUserID,
		Action:            action,
		Timestamp:         at,
	}
}

func normalizeRole(r Role) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(string(r)))) {
	case "", RoleFamily:
		return RoleFamily, nil
	case RoleDoctor:
		return RoleDoctor, nil
	default:
		return "", ErrInvalidInput
	}
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrConflict):
		return ErrConflict
	case errors.Is(err, ErrBadState):
		return ErrBadState
	default:
		return err
	}
}
