package application_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/bunqpanel/internal/application"
	"github.com/ericfisherdev/bunqpanel/internal/domain/model"
	"github.com/ericfisherdev/bunqpanel/internal/domain/port/driven"
	"github.com/ericfisherdev/bunqpanel/internal/vault"
)

type sessionFixture struct {
	vault    *vault.Vault
	bank     *fakeBank
	sessions *memSessionStore
	profiles *memProfileStore
	svc      *application.SessionService
}

func newSessionFixture() *sessionFixture {
	f := &sessionFixture{
		vault:    testVault(),
		bank:     &fakeBank{},
		sessions: newMemSessionStore(),
		profiles: newMemProfileStore(),
	}
	f.svc = application.NewSessionService(f.vault, f.bank.factory(), f.sessions, f.profiles, "", discardLogger())
	return f
}

func (f *sessionFixture) open(t *testing.T, ownerID string) *application.Session {
	t.Helper()
	env := sealFor(t, f.vault, f.profiles, ownerID, testBundle())
	s, err := f.svc.Open(context.Background(), ownerID, env, testPassphrase)
	require.NoError(t, err)
	return s
}

func TestSessionService_Open_NoStoredSession(t *testing.T) {
	f := newSessionFixture()
	s := f.open(t, "alice")

	assert.False(t, s.HasSession())
	_, err := s.Client()
	assert.ErrorIs(t, err, driven.ErrSessionMissing)
}

func TestSessionService_Open_ResolvesStoredToken(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()

	key, err := f.sessions.Put(ctx, "stored-token")
	require.NoError(t, err)
	require.NoError(t, f.profiles.SetSessionTokenRef(ctx, "alice", key))

	s := f.open(t, "alice")
	require.True(t, s.HasSession())

	client, err := s.Client()
	require.NoError(t, err)
	_, err = client.Get(ctx, "/user")
	require.NoError(t, err)

	calls := f.bank.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "stored-token", calls[0].Token)
}

func TestSessionService_Open_DanglingReference(t *testing.T) {
	f := newSessionFixture()
	require.NoError(t, f.profiles.SetSessionTokenRef(context.Background(), "alice", "gone"))

	s := f.open(t, "alice")
	assert.False(t, s.HasSession(), "an expired store entry means no session")
}

func TestSessionService_Open_WrongPassphrase(t *testing.T) {
	f := newSessionFixture()
	env := sealFor(t, f.vault, f.profiles, "alice", testBundle())

	_, err := f.svc.Open(context.Background(), "alice", env, "wrong")
	assert.ErrorIs(t, err, vault.ErrDecryption)
}

func TestSessionService_Open_NotYourFile(t *testing.T) {
	f := newSessionFixture()
	env := sealFor(t, f.vault, f.profiles, "alice", testBundle())

	_, err := f.svc.Open(context.Background(), "mallory", env, testPassphrase)
	assert.ErrorIs(t, err, application.ErrNotYourFile)
}

func TestSessionService_Export(t *testing.T) {
	f := newSessionFixture()
	env := sealFor(t, f.vault, f.profiles, "alice", testBundle())

	body, err := f.svc.Export(context.Background(), "alice", env, testPassphrase)
	require.NoError(t, err)
	assert.Contains(t, string(body), "\n  \"API\": \"api-key-1\"")

	bundle, err := vault.LoadBundle(body)
	require.NoError(t, err)
	assert.Equal(t, "installation-token", bundle.SessionToken.Reveal())

	body, err = f.svc.Export(context.Background(), "alice", env, "wrong")
	assert.ErrorIs(t, err, vault.ErrDecryption)
	assert.NotEmpty(t, errorText(t, body))
}

func TestSessionService_RegisterDevice(t *testing.T) {
	f := newSessionFixture()
	registered := false
	f.bank.register = func(description string) (json.RawMessage, error) {
		assert.Equal(t, application.DefaultDeviceDescription, description)
		if registered {
			return json.RawMessage(`{"Error":[{"error_description":"Device already registered"}]}`), driven.ErrAlreadyRegistered
		}
		registered = true
		return json.RawMessage(`{"Response":[{"Id":{"id":9}}]}`), nil
	}
	s := f.open(t, "alice")
	ctx := context.Background()

	raw, err := f.svc.RegisterDevice(ctx, s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Response":[{"Id":{"id":9}}]}`, string(raw))

	raw, err = f.svc.RegisterDevice(ctx, s)
	assert.ErrorIs(t, err, driven.ErrAlreadyRegistered)
	assert.NotErrorIs(t, err, driven.ErrRemoteTransport)
	assert.True(t, json.Valid(raw))

	for _, c := range f.bank.recorded() {
		assert.Equal(t, "installation-token", c.Token, "device registration authenticates with the installation token")
	}
}

func TestSessionService_RegisterDevice_TransportError(t *testing.T) {
	f := newSessionFixture()
	f.bank.register = func(string) (json.RawMessage, error) {
		return nil, &driven.RemoteError{StatusCode: 500, Description: "<b>down</b>", Kind: driven.ErrRemoteTransport}
	}
	s := f.open(t, "alice")

	raw, err := f.svc.RegisterDevice(context.Background(), s)
	assert.ErrorIs(t, err, driven.ErrRemoteTransport)
	assert.Equal(t, "down", errorText(t, raw))
}

func TestSessionService_StartSession(t *testing.T) {
	f := newSessionFixture()
	f.bank.create = func(token string) (json.RawMessage, error) {
		assert.Equal(t, "installation-token", token)
		return json.RawMessage(`{"Response":[{"Id":{"id":1}},{"Token":{"id":2,"token":"abc123"}},{"UserPerson":{"id":42}}]}`), nil
	}
	s := f.open(t, "alice")
	ctx := context.Background()

	raw, err := f.svc.StartSession(ctx, s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "abc123")
	assert.True(t, s.HasSession())

	p, err := f.profiles.Get(ctx, "alice")
	require.NoError(t, err)
	stored, err := f.sessions.Get(ctx, p.SessionTokenRef)
	require.NoError(t, err)
	assert.Equal(t, "abc123", stored)
}

func TestSessionService_StartSession_ReplacesPreviousToken(t *testing.T) {
	f := newSessionFixture()
	n := 0
	f.bank.create = func(string) (json.RawMessage, error) {
		n++
		return json.RawMessage(`{"Response":[{"Token":{"token":"t` + string(rune('0'+n)) + `"}}]}`), nil
	}
	s := f.open(t, "alice")
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, s)
	require.NoError(t, err)
	_, err = f.svc.StartSession(ctx, s)
	require.NoError(t, err)

	assert.Equal(t, 1, f.sessions.len(), "the superseded token should be dropped")
	p, err := f.profiles.Get(ctx, "alice")
	require.NoError(t, err)
	stored, err := f.sessions.Get(ctx, p.SessionTokenRef)
	require.NoError(t, err)
	assert.Equal(t, "t2", stored)
}

func TestSessionService_StartSession_NoToken(t *testing.T) {
	f := newSessionFixture()
	f.bank.create = func(string) (json.RawMessage, error) {
		return json.RawMessage(`{"Response":[{"Id":{"id":1}}]}`), nil
	}
	s := f.open(t, "alice")

	raw, err := f.svc.StartSession(context.Background(), s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Response":[{"Id":{"id":1}}]}`, string(raw))
	assert.False(t, s.HasSession())
	assert.Equal(t, 0, f.sessions.len())
}

func TestSessionService_StartSession_RemoteError(t *testing.T) {
	f := newSessionFixture()
	body := json.RawMessage(`{"Error":[{"error_description_translated":"Insufficient authorisation."}]}`)
	f.bank.create = func(string) (json.RawMessage, error) {
		return nil, &driven.RemoteError{StatusCode: 403, Description: "Insufficient authorisation.", Body: body, Kind: driven.ErrSessionExpired}
	}
	s := f.open(t, "alice")

	raw, err := f.svc.StartSession(context.Background(), s)
	assert.ErrorIs(t, err, driven.ErrSessionExpired)
	assert.JSONEq(t, string(body), string(raw))
	assert.False(t, s.HasSession())
}

func TestSessionService_Reactivity(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()

	key, err := f.sessions.Put(ctx, "stale")
	require.NoError(t, err)
	require.NoError(t, f.profiles.SetSessionTokenRef(ctx, "alice", key))

	f.bank.create = func(string) (json.RawMessage, error) {
		return json.RawMessage(`{"Response":[{"Token":{"token":"fresh"}}]}`), nil
	}
	f.bank.get = func(token, _ string) (json.RawMessage, error) {
		if token != "fresh" {
			return nil, &driven.RemoteError{StatusCode: 401, Description: "Incorrect API key or IP address.", Kind: driven.ErrSessionExpired}
		}
		return json.RawMessage(`{"Response":[{"MonetaryAccountBank":{"id":7}}]}`), nil
	}

	s := f.open(t, "alice")
	bank := application.NewBankService(discardLogger())
	q := application.ResourceQuery{UserID: model.ID(42)}

	_, err = bank.Accounts(ctx, s, q)
	require.ErrorIs(t, err, driven.ErrSessionExpired)
	assert.Len(t, f.bank.recorded(), 1, "a rejected call is never retried automatically")

	_, err = f.svc.StartSession(ctx, s)
	require.NoError(t, err)

	raw, err := bank.Accounts(ctx, s, q)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "MonetaryAccountBank")
}
