package application

import (
	"encoding/json"
	"errors"
	"html"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ericfisherdev/bunqpanel/internal/domain/port/driven"
	"github.com/ericfisherdev/bunqpanel/internal/vault"
)

var (
	// ErrNotYourFile is returned when an envelope was issued to a different owner.
	ErrNotYourFile = errors.New("this file does not belong to you")

	// ErrResourceResolution is returned when a request lacks the identifiers
	// needed to address a resource.
	ErrResourceResolution = errors.New("resource could not be resolved")

	// ErrInvoiceNotFound is returned when no generated invoice PDF is pending.
	ErrInvoiceNotFound = errors.New("no invoice pdf pending")

	// ErrInvalidInput is returned for empty API keys or passphrases.
	ErrInvalidInput = errors.New("invalid input")
)

// pdfGeneratorFailed is the message shown when the rendering service fails.
const pdfGeneratorFailed = "PDF generator API returned an error"

// sanitizer strips markup from messages before they enter an envelope.
var sanitizer = bluemonday.StrictPolicy()

// maxSanitizePasses bounds plainText; escaped markup needs one extra pass per
// level of escaping.
const maxSanitizePasses = 4

// plainText strips markup from message and decodes the entities the policy
// leaves behind, so envelopes carry text the front end inserts as text.
// Markup hidden behind entities is decoded and stripped on the next pass.
func plainText(message string) string {
	for range maxSanitizePasses {
		next := html.UnescapeString(sanitizer.Sanitize(message))
		if next == message {
			break
		}
		message = next
	}
	return message
}

type errorItem struct {
	DescriptionTranslated string `json:"error_description_translated"`
}

type errorEnvelope struct {
	Error []errorItem `json:"Error"`
}

// ErrorEnvelope renders message in the uniform error shape shared with the
// bank API: {"Error":[{"error_description_translated":"..."}]}.
func ErrorEnvelope(message string) json.RawMessage {
	return mustMarshal(errorEnvelope{Error: []errorItem{{DescriptionTranslated: plainText(message)}}})
}

type statusItem struct {
	Status string `json:"status"`
}

type statusEnvelope struct {
	Response []statusItem `json:"Response"`
}

// statusReply is the body returned by operations that only report progress.
func statusReply(status string) json.RawMessage {
	return mustMarshal(statusEnvelope{Response: []statusItem{{Status: status}}})
}

// mustMarshal encodes the fixed reply shapes above.
func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// Structs of strings always marshal.
		panic(err)
	}
	return b
}

// isErrorReply reports whether raw is a JSON object with a non-empty Error
// array, the only error body shape forwarded to callers.
func isErrorReply(raw json.RawMessage) bool {
	var env struct {
		Error []json.RawMessage `json:"Error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}
	return len(env.Error) > 0
}

// reply pairs a failed call with a JSON body the caller can forward. A bank
// error reply is passed through as is; anything else becomes an error envelope.
func reply(raw json.RawMessage, err error) (json.RawMessage, error) {
	if err == nil {
		return raw, nil
	}
	if isErrorReply(raw) {
		return raw, err
	}
	var remoteErr *driven.RemoteError
	if errors.As(err, &remoteErr) && isErrorReply(remoteErr.Body) {
		return remoteErr.Body, err
	}
	return ErrorEnvelope(Message(err)), err
}

// Message returns the user facing text for err.
func Message(err error) string {
	var remoteErr *driven.RemoteError
	switch {
	case errors.Is(err, ErrNotYourFile):
		return "This file does not belong to you"
	case errors.Is(err, vault.ErrDecryption), errors.Is(err, vault.ErrMalformedBundle):
		return "Could not decrypt the file, check your password"
	case errors.Is(err, driven.ErrSessionMissing):
		return "No active session, start a session first"
	case errors.Is(err, driven.ErrSessionExpired):
		return "Your session has expired, start a new session"
	case errors.Is(err, ErrInvoiceNotFound):
		return "No invoice PDF has been generated"
	case errors.As(err, &remoteErr) && remoteErr.Description != "":
		return remoteErr.Description
	case errors.Is(err, driven.ErrRemoteTransport):
		return "The bank API could not be reached"
	case errors.Is(err, ErrResourceResolution), errors.Is(err, ErrInvalidInput):
		return err.Error()
	default:
		return "Internal server error"
	}
}
