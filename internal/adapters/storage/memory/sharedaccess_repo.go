package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"medication-reminders/internal/domain/sharedaccess"
)

type sharedAccessRepo struct {
	mu      sync.RWMutex
	byID    map[string]sharedaccess.SharedAccess
	byPair  map[pairKey]string
	tokens  map[string]sharedaccess.Token
	history []sharedaccess.HistoryEntry
}

type pairKey struct {
	owner       string
	counterpart string
}

func NewSharedAccessRepo() sharedaccess.Repository {
	return &sharedAccessRepo{
		byID:   make(map[string]sharedaccess.SharedAccess),
		byPair: make(map[pairKey]string),
		tokens: make(map[string]sharedaccess.Token),
	}
}

func (r *sharedAccessRepo) Create(ctx context.Context, a sharedaccess.SharedAccess, h sharedaccess.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(a.ID) == "" {
		return errors.New("shared access id required")
	}
	key := pairKey{a.OwnerUserID, a.CounterpartUserID}
	if _, exists := r.byPair[key]; exists {
		return sharedaccess.ErrConflict
	}
	if _, exists := r.byID[a.ID]; exists {
		return sharedaccess.ErrConflict
	}

	r.byID[a.ID] = a
	r.byPair[key] = a.ID
	r.history = append(r.history, h)
	return nil
}

func (r *sharedAccessRepo) UpdateStatus(ctx context.Context, a sharedaccess.SharedAccess, from sharedaccess.Status, h *sharedaccess.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[a.ID]
	if !ok {
		return sharedaccess.ErrNotFound
	}
	if cur.Status != from {
		return sharedaccess.ErrBadState
	}

	cur.Status = a.Status
	cur.UpdatedAt = a.UpdatedAt
	r.byID[a.ID] = cur
	if h != nil {
		r.history = append(r.history, *h)
	}
	return nil
}

func (r *sharedAccessRepo) Delete(ctx context.Context, id string, h sharedaccess.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[id]
	if !ok {
		return sharedaccess.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byPair, pairKey{cur.OwnerUserID, cur.CounterpartUserID})

	// como ON DELETE SET NULL en postgres
	for i := range r.history {
		if ref := r.history[i].SharedAccessID; ref != nil && *ref == id {
			r.history[i].SharedAccessID = nil
		}
	}
	r.history = append(r.history, h)
	return nil
}

func (r *sharedAccessRepo) GetByID(ctx context.Context, id string) (sharedaccess.SharedAccess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return sharedaccess.SharedAccess{}, sharedaccess.ErrNotFound
	}
	return a, nil
}

func (r *sharedAccessRepo) GetByPair(ctx context.Context, ownerUserID, counterpartUserID string) (sharedaccess.SharedAccess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPair[pairKey{ownerUserID, counterpartUserID}]
	if !ok {
		return sharedaccess.SharedAccess{}, sharedaccess.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *sharedAccessRepo) ListByUser(ctx context.Context, userID string) ([]sharedaccess.SharedAccess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]sharedaccess.SharedAccess, 0)
	for _, a := range r.byID {
		if a.OwnerUserID == userID || a.CounterpartUserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *sharedAccessRepo) CreateToken(ctx context.Context, t sharedaccess.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[t.Token]; exists {
		return sharedaccess.ErrConflict
	}
	r.tokens[t.Token] = t
	return nil
}

func (r *sharedAccessRepo) GetToken(ctx context.Context, token string) (sharedaccess.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[token]
	if !ok {
		return sharedaccess.Token{}, sharedaccess.ErrNotFound
	}
	return t, nil
}

// ListHistory: más recientes primero; a igual timestamp, orden inverso de inserción.
func (r *sharedAccessRepo) ListHistory(ctx context.Context, userID string) ([]sharedaccess.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]sharedaccess.HistoryEntry, 0)
	for i := len(r.history) - 1; i >= 0; i-- {
		h := r.history[i]
		if h.OwnerUserID == userID || h.CounterpartUserID == userID {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}
