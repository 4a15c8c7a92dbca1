// Package model holds the domain types shared by every layer.
package model

// CredentialBundle is the decrypted credential set for one bunq API key. It
// lives in memory only; the persisted form is an Envelope.
//
// PrivateKey and APIKey never change for the lifetime of a bundle.
// SessionToken starts out as the installation token and is replaced wholesale
// once a server session exists.
type CredentialBundle struct {
	PrivateKey      Secret // PEM-encoded RSA private key used to sign requests.
	APIKey          Secret
	ServerPublicKey string // PEM-encoded bunq server key used to verify responses.
	SessionToken    Secret
}

// WithSessionToken returns a copy of the bundle carrying token as its session
// token. The receiver is left untouched.
func (b CredentialBundle) WithSessionToken(token string) CredentialBundle {
	b.SessionToken = Secret(token)
	return b
}
