// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ericfisherdev/bunqpanel/internal/domain/model"
)

var (
	// ErrAlreadyRegistered is returned by RegisterDevice when the remote API
	// reports the device as already known for this API key. It is not fatal:
	// callers proceed to session creation.
	ErrAlreadyRegistered = errors.New("device already registered")

	// ErrSessionExpired is returned when the remote API rejects the attached
	// session token. Recover by starting a new session and re-issuing the call.
	ErrSessionExpired = errors.New("session expired or rejected")

	// ErrSessionMissing is returned when an authenticated call is attempted
	// before any session has been started.
	ErrSessionMissing = errors.New("no active session")

	// ErrRemoteTransport covers network failures, unexpected status codes and
	// undecodable replies from a remote service.
	ErrRemoteTransport = errors.New("remote transport error")
)

// RemoteError carries the status and description returned by a remote
// service. It unwraps to one of the sentinels above.
type RemoteError struct {
	StatusCode  int
	Description string
	Body        json.RawMessage // Raw reply, when the service sent one.
	Kind        error
}

func (e *RemoteError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%v (status %d)", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%v (status %d): %s", e.Kind, e.StatusCode, e.Description)
}

func (e *RemoteError) Unwrap() error { return e.Kind }

// Installation is the result of registering a client public key with bunq.
type Installation struct {
	Token           string
	ServerPublicKey string
}

// BankClient is the driven port for the remote banking API. One client is
// bound to one credential bundle and one authentication token.
type BankClient interface {
	// Install registers clientPublicKeyPEM and returns the installation token
	// and the server public key. It needs no bundle.
	Install(ctx context.Context, clientPublicKeyPEM string) (*Installation, error)

	// RegisterDevice authorizes this device for the bundle's API key.
	// Returns ErrAlreadyRegistered when the device is already known.
	RegisterDevice(ctx context.Context, description string) (json.RawMessage, error)

	// CreateSession exchanges the API key for a server session. The raw reply
	// is returned unchanged; extracting the token is the caller's concern.
	CreateSession(ctx context.Context) (json.RawMessage, error)

	// Get performs an authenticated GET on path (relative to the API root).
	Get(ctx context.Context, path string) (json.RawMessage, error)
}

// KeyPairGenerator creates the client key pair registered during installation.
type KeyPairGenerator interface {
	// Generate returns PEM-encoded private and public keys.
	Generate() (privateKeyPEM, publicKeyPEM string, err error)
}

// BankClientFactory builds a BankClient bound to bundle, authenticating with
// bundle.SessionToken.
type BankClientFactory func(bundle model.CredentialBundle) BankClient
