package sharedaccess

import "time"

type Role string

const (
	RoleFamily Role = "family"
	RoleDoctor Role = "doctor"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// SharedAccess es un vínculo dirigido de consentimiento: el owner (paciente)
// autoriza al counterpart (familiar/doctor). Único por par (owner, counterpart).
type SharedAccess struct {
	ID string

	OwnerUserID       string // quien comparte
	CounterpartUserID string // quien recibe acceso

	Role   Role
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultTokenTTL es la vigencia de un token QR si no se indica otra.
const DefaultTokenTTL = 5 * time.Minute

// Token es la capacidad temporal que se muestra como QR.
// No se borra al canjearse: se puede releer hasta que expire.
type Token struct {
	Token       string
	OwnerUserID string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

func (t Token) IsValid(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}

type Action string

const (
	ActionInvited  Action = "invited"
	ActionAccepted Action = "accepted"
	ActionRevoked  Action = "revoked"
)

// HistoryEntry es append-only. SharedAccessID queda nil cuando el vínculo fue
// revocado (borrado); owner/counterpart se capturan al momento del evento.
type HistoryEntry struct {
	ID             string
	SharedAccessID *string

	OwnerUserID       string
	CounterpartUserID string

	Action    Action
	Timestamp time.Time
}
