package driven

import (
	"context"

	"github.com/ericfisherdev/bunqpanel/internal/domain/model"
)

// ProfileStore defines the driven port for per-user profile persistence.
// Each setter is a single-row write; concurrent writers to the same owner
// resolve as last write wins.
type ProfileStore interface {
	// Get returns the profile for ownerID, or (nil, nil) if none exists.
	Get(ctx context.Context, ownerID string) (*model.Profile, error)

	// EnsureProfile returns the profile for ownerID, creating it with a new
	// GUID when missing.
	EnsureProfile(ctx context.Context, ownerID string) (*model.Profile, error)

	SetSessionTokenRef(ctx context.Context, ownerID, ref string) error
	SetInvoiceTokenRef(ctx context.Context, ownerID, ref string) error
	ClearInvoiceTokenRef(ctx context.Context, ownerID string) error
}
