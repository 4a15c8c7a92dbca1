package model

// Envelope is the persisted, encrypted form of a CredentialBundle. It is what
// the user downloads and uploads again; the passphrase is never stored.
type Envelope struct {
	// OwnerGUID is the profile GUID of the user the envelope was generated for.
	OwnerGUID string `json:"userID"`
	// Secret is the base64 vault output.
	Secret string `json:"secret"`
}
