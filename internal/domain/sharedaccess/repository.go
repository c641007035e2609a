package sharedaccess

import "context"

// Repository persiste vínculos, tokens e historial.
// Las mutaciones reciben la entrada de historial para escribirla en la misma
// transacción que el cambio de estado.
type Repository interface {
	// Create falla con ErrConflict si ya existe un vínculo para (owner, counterpart).
	Create(ctx context.Context, a SharedAccess, h HistoryEntry) error
	// UpdateStatus solo aplica si el estado actual es from; si no, ErrBadState.
	// h puede ser nil (p.ej. rechazo, que no se historiza).
	UpdateStatus(ctx context.Context, a SharedAccess, from Status, h *HistoryEntry) error
	Delete(ctx context.Context, id string, h HistoryEntry) error

	GetByID(ctx context.Context, id string) (SharedAccess, error)
	GetByPair(ctx context.Context, ownerUserID, counterpartUserID string) (SharedAccess, error)
	ListByUser(ctx context.Context, userID string) ([]SharedAccess, error)

	CreateToken(ctx context.Context, t Token) error
	GetToken(ctx context.Context, token string) (Token, error)

	ListHistory(ctx context.Context, userID string) ([]HistoryEntry, error)
}

// UserDirectory resuelve un usuario por email o id. Registro/autenticación
// viven fuera de este servicio.
type UserDirectory interface {
	Resolve(ctx context.Context, emailOrID string) (string, error)
}
