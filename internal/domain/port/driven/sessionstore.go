package driven

import (
	"context"
	"errors"
)

var (
	// ErrSessionKeyNotFound is returned by SessionStore.Get for unknown or
	// expired keys.
	ErrSessionKeyNotFound = errors.New("session key not found")

	// ErrEncryptionKeyNotSet is returned by SessionStore operations when
	// BUNQPANEL_SECRET_KEY has not been configured.
	ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set BUNQPANEL_SECRET_KEY")
)

// SessionStore is an opaque keyed store. Callers persist only the returned
// key; the value (a session token or a file path) stays server side.
// Implementations must be safe for concurrent use across distinct keys.
type SessionStore interface {
	// Put stores value under a freshly generated key and returns the key.
	Put(ctx context.Context, value string) (string, error)

	// Get returns the value for key or ErrSessionKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes key. Deleting an unknown key is not an error.
	Delete(ctx context.Context, key string) error
}
