package model

import "time"

// Profile is the per-user record holding opaque references into the session
// store. The references are keys, never the secrets themselves.
type Profile struct {
	OwnerID         string
	GUID            string
	SessionTokenRef string // Empty when no server session has been started.
	InvoiceTokenRef string // Empty when no invoice PDF is pending.
	UpdatedAt       time.Time
}

// HasSession reports whether a session token reference is recorded.
func (p *Profile) HasSession() bool {
	return p != nil && p.SessionTokenRef != ""
}
