package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"medication-reminders/internal/domain/sharedaccess"
)

type SharedAccessRepo struct {
	db *sql.DB
}

func NewSharedAccessRepo(db *sql.DB) *SharedAccessRepo {
	return &SharedAccessRepo{db: db}
}

const sharedAccessColumns = `id, owner_user_id, counterpart_user_id, role, status, created_at, updated_at`

func (r *SharedAccessRepo) Create(ctx context.Context, a sharedaccess.SharedAccess, h sharedaccess.HistoryEntry) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO shared_access (`+sharedAccessColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			a.ID,
			a.OwnerUserID,
			a.CounterpartUserID,
			string(a.Role),
			string(a.Status),
			a.CreatedAt,
			a.UpdatedAt,
		); err != nil {
			return err
		}
		return insertHistory(ctx, tx, h)
	})
	if isUniqueViolation(err) {
		return sharedaccess.ErrConflict
	}
	return err
}

func (r *SharedAccessRepo) UpdateStatus(ctx context.Context, a sharedaccess.SharedAccess, from sharedaccess.Status, h *sharedaccess.HistoryEntry) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE shared_access
			SET status = $2, updated_at = $3
			WHERE id = $1 AND status = $4
		`, a.ID, string(a.Status), a.UpdatedAt, string(from))
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			// distinguir "no existe" de "estado distinto"
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM shared_access WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return sharedaccess.ErrNotFound
			}
			return sharedaccess.ErrBadState
		}
		if h == nil {
			return nil
		}
		return insertHistory(ctx, tx, *h)
	})
}

func (r *SharedAccessRepo) Delete(ctx context.Context, id string, h sharedaccess.HistoryEntry) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM shared_access WHERE id = $1`, id)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return sharedaccess.ErrNotFound
		}
		return insertHistory(ctx, tx, h)
	})
}

func (r *SharedAccessRepo) GetByID(ctx context.Context, id string) (sharedaccess.SharedAccess, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return sharedaccess.SharedAccess{}, sharedaccess.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sharedAccessColumns+`
		FROM shared_access
		WHERE id = $1
	`, id)
	return scanSharedAccess(row)
}

func (r *SharedAccessRepo) GetByPair(ctx context.Context, ownerUserID, counterpartUserID string) (sharedaccess.SharedAccess, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sharedAccessColumns+`
		FROM shared_access
		WHERE owner_user_id = $1 AND counterpart_user_id = $2
	`, ownerUserID, counterpartUserID)
	return scanSharedAccess(row)
}

func (r *SharedAccessRepo) ListByUser(ctx context.Context, userID string) ([]sharedaccess.SharedAccess, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sharedAccessColumns+`
		FROM shared_access
		WHERE owner_user_id = $1 OR counterpart_user_id = $1
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]sharedaccess.SharedAccess, 0)
	for rows.Next() {
		a, err := scanSharedAccess(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SharedAccessRepo) CreateToken(ctx context.Context, t sharedaccess.Token) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shared_access_tokens (token, owner_user_id, expires_at, created_at)
		VALUES ($1,$2,$3,$4)
	`, t.Token, t.OwnerUserID, t.ExpiresAt, t.CreatedAt)
	if isUniqueViolation(err) {
		return sharedaccess.ErrConflict
	}
	return err
}

func (r *SharedAccessRepo) GetToken(ctx context.Context, token string) (sharedaccess.Token, error) {
	var t sharedaccess.Token
	err := r.db.QueryRowContext(ctx, `
		SELECT token, owner_user_id, expires_at, created_at
		FROM shared_access_tokens
		WHERE token = $1
	`, token).Scan(&t.Token, &t.OwnerUserID, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sharedaccess.Token{}, sharedaccess.ErrNotFound
		}
		return sharedaccess.Token{}, err
	}
	return t, nil
}

func (r *SharedAccessRepo) ListHistory(ctx context.Context, userID string) ([]sharedaccess.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, shared_access_id, owner_user_id, counterpart_user_id, action, ts
		FROM access_history
		WHERE owner_user_id = $1 OR counterpart_user_id = $1
		ORDER BY ts DESC, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]sharedaccess.HistoryEntry, 0)
	for rows.Next() {
		var h sharedaccess.HistoryEntry
		var ref sql.NullString
		var action string
		if err := rows.Scan(&h.ID, &ref, &h.OwnerUserID, &h.CounterpartUserID, &action, &h.Timestamp); err != nil {
			return nil, err
		}
		if ref.Valid {
			s := ref.String
			h.SharedAccessID = &s
		}
		h.Action = sharedaccess.Action(action)
		out = append(out, h)
	}
	return out, rows.Err()
}

func insertHistory(ctx context.Context, tx *sql.Tx, h sharedaccess.HistoryEntry) error {
	var ref sql.NullString
	if h.SharedAccessID != nil {
		ref = sql.NullString{String: *h.SharedAccessID, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO access_history (id, shared_access_id, owner_user_id, counterpart_user_id, action, ts)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, h.ID, ref, h.OwnerUserID, h.CounterpartUserID, string(h.Action), h.Timestamp)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSharedAccess(row rowScanner) (sharedaccess.SharedAccess, error) {
	var a sharedaccess.SharedAccess
	var role, status string
	if err := row.Scan(
		&a.ID,
		&a.OwnerUserID,
		&a.CounterpartUserID,
		&role,
		&status,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sharedaccess.SharedAccess{}, sharedaccess.ErrNotFound
		}
		return sharedaccess.SharedAccess{}, err
	}
	a.Role = sharedaccess.Role(role)
	a.Status = sharedaccess.Status(status)
	return a, nil
}
