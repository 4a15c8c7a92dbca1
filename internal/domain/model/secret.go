package model

import (
	"fmt"
	"io"
	"log/slog"
)

const redacted = "[SECRET]"

// Secret holds sensitive text (API keys, tokens, private keys). Formatting,
// JSON marshaling and slog output all print a placeholder instead of the value.
// Use Reveal where the raw value is genuinely needed.
type Secret string

// Reveal returns the underlying value.
func (s Secret) Reveal() string { return string(s) }

// IsZero reports whether the secret is empty.
func (s Secret) IsZero() bool { return s == "" }

// String redacts the secret.
func (s Secret) String() string { return redacted }

// Format implements fmt.Formatter so %v, %s, %q and %#v are all redacted.
func (s Secret) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, redacted)
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }

// MarshalText redacts secrets for text and JSON encoding.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }
