package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ericfisherdev/bunqpanel/internal/domain/model"
	"github.com/ericfisherdev/bunqpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProfileStore = (*ProfileRepo)(nil)

// ProfileRepo is the SQLite implementation of the ProfileStore port interface.
type ProfileRepo struct {
	db *DB
}

// NewProfileRepo creates a new ProfileRepo backed by the given DB.
func NewProfileRepo(db *DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Get retrieves the profile for ownerID. Returns (nil, nil) if none exists.
func (r *ProfileRepo) Get(ctx context.Context, ownerID string) (*model.Profile, error) {
	const query = `
		SELECT owner_id, guid, session_token_ref, invoice_token_ref, updated_at
		FROM profiles
		WHERE owner_id = ?
	`

	var p model.Profile
	var updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query, ownerID).Scan(
		&p.OwnerID, &p.GUID, &p.SessionTokenRef, &p.InvoiceTokenRef, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %q: %w", ownerID, err)
	}

	p.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at for profile %q: %w", ownerID, err)
	}
	return &p, nil
}

// EnsureProfile returns the profile for ownerID, creating one with a fresh
// GUID when none exists.
func (r *ProfileRepo) EnsureProfile(ctx context.Context, ownerID string) (*model.Profile, error) {
	const query = `INSERT INTO profiles (owner_id, guid) VALUES (?, ?) ON CONFLICT(owner_id) DO NOTHING`
	if _, err := r.db.Writer.ExecContext(ctx, query, ownerID, uuid.NewString()); err != nil {
		return nil, fmt.Errorf("ensure profile %q: %w", ownerID, err)
	}

	p, err := r.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("ensure profile %q: row missing after insert", ownerID)
	}
	return p, nil
}

// SetSessionTokenRef records the session store key holding the owner's token.
func (r *ProfileRepo) SetSessionTokenRef(ctx context.Context, ownerID, ref string) error {
	return r.setRef(ctx, "session_token_ref", ownerID, ref)
}

// SetInvoiceTokenRef records the session store key holding the owner's
// pending invoice file path.
func (r *ProfileRepo) SetInvoiceTokenRef(ctx context.Context, ownerID, ref string) error {
	return r.setRef(ctx, "invoice_token_ref", ownerID, ref)
}

// ClearInvoiceTokenRef forgets the owner's pending invoice.
func (r *ProfileRepo) ClearInvoiceTokenRef(ctx context.Context, ownerID string) error {
	return r.setRef(ctx, "invoice_token_ref", ownerID, "")
}

// setRef upserts one reference column. column is always a constant from this file.
func (r *ProfileRepo) setRef(ctx context.Context, column, ownerID, ref string) error {
	query := fmt.Sprintf(`
		INSERT INTO profiles (owner_id, guid, %[1]s, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(owner_id) DO UPDATE SET
			%[1]s = excluded.%[1]s,
			updated_at = CURRENT_TIMESTAMP
	`, column)

	if _, err := r.db.Writer.ExecContext(ctx, query, ownerID, uuid.NewString(), ref); err != nil {
		return fmt.Errorf("set %s for profile %q: %w", column, ownerID, err)
	}
	return nil
}
