package bunq

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ericfisherdev/bunqpanel/internal/domain/port/driven"
)

// errorReply is the shape of every bunq error response.
type errorReply struct {
	Error []struct {
		Description           string `json:"error_description"`
		DescriptionTranslated string `json:"error_description_translated"`
	} `json:"Error"`
}

// parseErrorReply decodes body as a bunq error reply. ok is false when body
// does not carry a non-empty Error array.
func parseErrorReply(body []byte) (reply errorReply, ok bool) {
	if err := json.Unmarshal(body, &reply); err != nil {
		return errorReply{}, false
	}
	return reply, len(reply.Error) > 0
}

// description returns the first human readable error text in reply, or "".
func (reply errorReply) description() string {
	for _, e := range reply.Error {
		if e.DescriptionTranslated != "" {
			return e.DescriptionTranslated
		}
		if e.Description != "" {
			return e.Description
		}
	}
	return ""
}

// classify maps a non-2xx reply onto the port's error kinds. The body is
// kept only when it is a bunq error reply; proxies and gateways answer with
// other shapes that must not reach the caller.
//
// Re-authentication is needed when the API answers 401, or 400/403 with an
// error text about authentication, authorisation or the session. Everything
// else is a transport error.
func classify(status int, body []byte) *driven.RemoteError {
	reply, ok := parseErrorReply(body)
	desc := reply.description()
	remoteErr := &driven.RemoteError{
		StatusCode:  status,
		Description: desc,
		Kind:        driven.ErrRemoteTransport,
	}
	if ok {
		remoteErr.Body = json.RawMessage(body)
	}

	if needsReauth(status, desc) {
		remoteErr.Kind = driven.ErrSessionExpired
	}
	return remoteErr
}

func needsReauth(status int, desc string) bool {
	if status == http.StatusUnauthorized {
		return true
	}
	if status != http.StatusBadRequest && status != http.StatusForbidden {
		return false
	}
	lower := strings.ToLower(desc)
	for _, marker := range []string{"authentication", "authorisation", "authorization", "session"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// isAlreadyRegistered reports whether a failed device registration means the
// device is already known for this API key.
func isAlreadyRegistered(e *driven.RemoteError) bool {
	if e.StatusCode == http.StatusConflict {
		return true
	}
	lower := strings.ToLower(e.Description)
	return strings.Contains(lower, "already registered") || strings.Contains(lower, "already exists")
}
