package vault

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ericfisherdev/bunqpanel/internal/domain/model"
)

// ErrMalformedBundle is returned when decrypted content is not a complete
// credential bundle.
var ErrMalformedBundle = errors.New("malformed credential bundle")

// bundleJSON is the plaintext layout inside an envelope.
type bundleJSON struct {
	PrivateKey      string         `json:"privateKey"`
	APIKey          string         `json:"API"`
	Token           *tokenJSON     `json:"Token"`
	ServerPublicKey *serverKeyJSON `json:"ServerPublicKey"`
}

type tokenJSON struct {
	Token string `json:"token"`
}

type serverKeyJSON struct {
	ServerPublicKey string `json:"server_public_key"`
}

// LoadBundle parses decrypted plaintext into a CredentialBundle. All four
// fields must be present and non-empty.
func LoadBundle(plaintext []byte) (model.CredentialBundle, error) {
	var raw bundleJSON
	if err := json.Unmarshal(plaintext, &raw); err != nil {
		return model.CredentialBundle{}, fmt.Errorf("%w: %v", ErrMalformedBundle, err)
	}

	switch {
	case raw.PrivateKey == "":
		return model.CredentialBundle{}, fmt.Errorf("%w: missing privateKey", ErrMalformedBundle)
	case raw.APIKey == "":
		return model.CredentialBundle{}, fmt.Errorf("%w: missing API", ErrMalformedBundle)
	case raw.Token == nil || raw.Token.Token == "":
		return model.CredentialBundle{}, fmt.Errorf("%w: missing Token.token", ErrMalformedBundle)
	case raw.ServerPublicKey == nil || raw.ServerPublicKey.ServerPublicKey == "":
		return model.CredentialBundle{}, fmt.Errorf("%w: missing ServerPublicKey.server_public_key", ErrMalformedBundle)
	}

	return model.CredentialBundle{
		PrivateKey:      model.Secret(raw.PrivateKey),
		APIKey:          model.Secret(raw.APIKey),
		ServerPublicKey: raw.ServerPublicKey.ServerPublicKey,
		SessionToken:    model.Secret(raw.Token.Token),
	}, nil
}

// MarshalBundle renders bundle in the envelope plaintext layout.
func MarshalBundle(bundle model.CredentialBundle) ([]byte, error) {
	raw := bundleJSON{
		PrivateKey:      bundle.PrivateKey.Reveal(),
		APIKey:          bundle.APIKey.Reveal(),
		Token:           &tokenJSON{Token: bundle.SessionToken.Reveal()},
		ServerPublicKey: &serverKeyJSON{ServerPublicKey: bundle.ServerPublicKey},
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal bundle: %w", err)
	}
	return data, nil
}

// Seal marshals and encrypts bundle in one step.
func (v *Vault) Seal(bundle model.CredentialBundle, passphrase string) (string, error) {
	plaintext, err := MarshalBundle(bundle)
	if err != nil {
		return "", err
	}
	return v.Encrypt(plaintext, passphrase)
}

// Open decrypts secret and loads the bundle inside it.
func (v *Vault) Open(secret, passphrase string) (model.CredentialBundle, error) {
	plaintext, err := v.Decrypt(secret, passphrase)
	if err != nil {
		return model.CredentialBundle{}, err
	}
	return LoadBundle(plaintext)
}
