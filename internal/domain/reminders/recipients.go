package reminders

import (
	"context"
	"fmt"
	"strings"
)

type accessLister interface {
	ListAccess(ctx context.Context, reminderID string) ([]Access, error)
}

// RecipientResolver arma la lista de destinatarios de una notificación:
// paciente, creador y accesos con ReceiveNotifications, sin duplicados y en
// ese orden.
//
// Por defecto no revalida el consentimiento: el permiso se validó al crear el
// Access. Con strict, se descartan accesos sin vínculo aceptado vigente.
type RecipientResolver struct {
	access  accessLister
	consent ConsentChecker
	strict  bool
}

func NewRecipientResolver(access accessLister, consent ConsentChecker, strict bool) *RecipientResolver {
	return &RecipientResolver{access: access, consent: consent, strict: strict && consent != nil}
}

func (rr *RecipientResolver) Resolve(ctx context.Context, r Reminder) ([]string, error) {
	out := make([]string, 0, 2)
	seen := map[string]struct{}{}
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	add(r.PatientUserID)
	add(r.CreatedByUserID)

	grants, err := rr.access.ListAccess(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("list access: %w", err)
	}

	for _, g := range grants {
		if !g.ReceiveNotifications {
			continue
		}
		if rr.strict && g.UserID != r.PatientUserID {
			ok, err := hasEdgeEitherWay(ctx, rr.consent, r.PatientUserID, g.UserID)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		add(g.UserID)
	}
	return out, nil
}

// hasEdgeEitherWay: vínculo aceptado (cualquier rol) en cualquier dirección.
func hasEdgeEitherWay(ctx context.Context, c ConsentChecker, a, b string) (bool, error) {
	ok, err := c.HasConsentedAccess(ctx, b, a, "")
	if err != nil || ok {
		return ok, err
	}
	return c.HasConsentedAccess(ctx, a, b, "")
}
