package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/ericfisherdev/bunqpanel/internal/application"
	"github.com/ericfisherdev/bunqpanel/internal/domain/model"
)

const contentTypeJSON = "application/json; charset=utf-8"

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error envelope is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeRaw(w, status, data)
}

// writeRaw writes an already encoded JSON body.
func writeRaw(w http.ResponseWriter, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeEnvelope writes message in the uniform error envelope.
func writeEnvelope(w http.ResponseWriter, status int, message string) {
	writeRaw(w, status, application.ErrorEnvelope(message))
}

// HealthResponse is the JSON body of the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// CSRFResponse carries the token clients echo in X-CSRF-Token.
type CSRFResponse struct {
	Token string `json:"token"`
}

// CreateEnvelopeRequest is the body of POST /api/v1/envelope.
type CreateEnvelopeRequest struct {
	APIKey   string `json:"apiKey"`
	Password string `json:"password"`
}

// CredentialsRequest carries a previously issued envelope and its password.
type CredentialsRequest struct {
	Envelope model.Envelope `json:"envelope"`
	Password string         `json:"password"`
}

// ResourceRequest is the body of every resource route. Identifiers left out
// of the JSON select the collection form of the resource.
type ResourceRequest struct {
	CredentialsRequest
	UserID       *int64 `json:"userID"`
	AccountID    *int64 `json:"accountID"`
	PaymentID    *int64 `json:"paymentID"`
	CardID       *int64 `json:"cardID"`
	ChatID       *int64 `json:"chatID"`
	AttachmentID *int64 `json:"attachmentID"`
}
