// Package application contains use-case orchestration services.
package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/bunqpanel/internal/domain/model"
	"github.com/ericfisherdev/bunqpanel/internal/domain/port/driven"
	"github.com/ericfisherdev/bunqpanel/internal/vault"
)

// DefaultDeviceDescription names this application when registering a device.
const DefaultDeviceDescription = "ComBunqWebApp"

// Session is one owner's decrypted credentials plus the active server session
// token, if any. A Session lives for one request and is not safe for
// concurrent use.
type Session struct {
	OwnerID string

	bundle       model.CredentialBundle // SessionToken holds the installation token.
	sessionToken model.Secret
	newClient    driven.BankClientFactory
}

// HasSession reports whether a server session token is available.
func (s *Session) HasSession() bool {
	return !s.sessionToken.IsZero()
}

// Client returns a BankClient authenticated with the active session token.
func (s *Session) Client() (driven.BankClient, error) {
	if s.sessionToken.IsZero() {
		return nil, driven.ErrSessionMissing
	}
	return s.newClient(s.bundle.WithSessionToken(s.sessionToken.Reveal())), nil
}

// installationClient authenticates with the installation token, as device
// registration and session creation require.
func (s *Session) installationClient() driven.BankClient {
	return s.newClient(s.bundle)
}

// SessionService opens envelopes and manages the remote session lifecycle.
// Refresh is reactive: a call that fails with driven.ErrSessionExpired is never
// retried here; the caller starts a new session and re-issues it.
type SessionService struct {
	vault             *vault.Vault
	newClient         driven.BankClientFactory
	sessions          driven.SessionStore
	profiles          driven.ProfileStore
	deviceDescription string
	logger            *slog.Logger
}

// NewSessionService creates a new SessionService with the required dependencies.
func NewSessionService(
	v *vault.Vault,
	newClient driven.BankClientFactory,
	sessions driven.SessionStore,
	profiles driven.ProfileStore,
	deviceDescription string,
	logger *slog.Logger,
) *SessionService {
	if deviceDescription == "" {
		deviceDescription = DefaultDeviceDescription
	}
	return &SessionService{
		vault:             v,
		newClient:         newClient,
		sessions:          sessions,
		profiles:          profiles,
		deviceDescription: deviceDescription,
		logger:            logger,
	}
}

// checkOwner rejects envelopes issued to another profile.
func (s *SessionService) checkOwner(ctx context.Context, ownerID string, env model.Envelope) (*model.Profile, error) {
	profile, err := s.profiles.EnsureProfile(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if env.OwnerGUID != profile.GUID {
		s.logger.Warn("envelope owner mismatch", "owner", ownerID)
		return nil, ErrNotYourFile
	}
	return profile, nil
}

// Open decrypts env with passphrase and resolves the owner's stored session
// token. A missing or expired token leaves the session without one.
func (s *SessionService) Open(ctx context.Context, ownerID string, env model.Envelope, passphrase string) (*Session, error) {
	profile, err := s.checkOwner(ctx, ownerID, env)
	if err != nil {
		return nil, err
	}

	bundle, err := s.vault.Open(env.Secret, passphrase)
	if err != nil {
		return nil, fmt.Errorf("open envelope: %w", err)
	}

	session := &Session{OwnerID: ownerID, bundle: bundle, newClient: s.newClient}
	if profile.SessionTokenRef == "" {
		return session, nil
	}

	token, err := s.sessions.Get(ctx, profile.SessionTokenRef)
	if errors.Is(err, driven.ErrSessionKeyNotFound) {
		s.logger.Debug("stored session token gone", "owner", ownerID)
		return session, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session token: %w", err)
	}
	session.sessionToken = model.Secret(token)
	return session, nil
}

// Export returns the decrypted bundle of env as indented JSON.
func (s *SessionService) Export(ctx context.Context, ownerID string, env model.Envelope, passphrase string) (json.RawMessage, error) {
	if _, err := s.checkOwner(ctx, ownerID, env); err != nil {
		return reply(nil, err)
	}

	plaintext, err := s.vault.Decrypt(env.Secret, passphrase)
	if err != nil {
		return reply(nil, fmt.Errorf("export envelope: %w", err))
	}
	if _, err := vault.LoadBundle(plaintext); err != nil {
		return reply(nil, fmt.Errorf("export envelope: %w", err))
	}

	var out bytes.Buffer
	if err := json.Indent(&out, plaintext, "", "  "); err != nil {
		return reply(nil, fmt.Errorf("indent bundle: %w", err))
	}
	return out.Bytes(), nil
}

// RegisterDevice authorizes this application for the session's API key. A
// second registration yields the remote reply and driven.ErrAlreadyRegistered,
// which callers treat as success.
func (s *SessionService) RegisterDevice(ctx context.Context, session *Session) (json.RawMessage, error) {
	raw, err := session.installationClient().RegisterDevice(ctx, s.deviceDescription)
	if errors.Is(err, driven.ErrAlreadyRegistered) {
		s.logger.Info("device already registered", "owner", session.OwnerID)
		if len(raw) == 0 {
			raw = ErrorEnvelope("Device is already registered")
		}
		return raw, err
	}
	if err != nil {
		s.logger.Error("device registration failed", "owner", session.OwnerID, "error", err)
		return reply(raw, err)
	}
	s.logger.Info("device registered", "owner", session.OwnerID)
	return raw, nil
}

// StartSession creates a server session and stores its token for the owner.
// When the reply carries no token it is returned unchanged with a nil error.
func (s *SessionService) StartSession(ctx context.Context, session *Session) (json.RawMessage, error) {
	raw, err := session.installationClient().CreateSession(ctx)
	if err != nil {
		s.logger.Error("session creation failed", "owner", session.OwnerID, "error", err)
		return reply(raw, err)
	}

	token := sessionTokenFrom(raw)
	if token == "" {
		s.logger.Warn("session reply carried no token", "owner", session.OwnerID)
		return raw, nil
	}

	key, err := s.sessions.Put(ctx, token)
	if err != nil {
		return reply(nil, fmt.Errorf("store session token: %w", err))
	}

	profile, err := s.profiles.Get(ctx, session.OwnerID)
	if err != nil {
		return reply(nil, fmt.Errorf("load profile: %w", err))
	}
	if err := s.profiles.SetSessionTokenRef(ctx, session.OwnerID, key); err != nil {
		return reply(nil, fmt.Errorf("record session token: %w", err))
	}
	if profile != nil && profile.SessionTokenRef != "" && profile.SessionTokenRef != key {
		if err := s.sessions.Delete(ctx, profile.SessionTokenRef); err != nil {
			s.logger.Warn("failed to drop previous session token", "owner", session.OwnerID, "error", err)
		}
	}

	session.sessionToken = model.Secret(token)
	s.logger.Info("session started", "owner", session.OwnerID)
	return raw, nil
}

// sessionTokenFrom returns the first Response[i].Token.token in a
// session-server reply, or "".
func sessionTokenFrom(raw json.RawMessage) string {
	var body struct {
		Response []struct {
			Token *struct {
				Token string `json:"token"`
			} `json:"Token"`
		} `json:"Response"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	for _, item := range body.Response {
		if item.Token != nil && item.Token.Token != "" {
			return item.Token.Token
		}
	}
	return ""
}
