// Package httphandler is the HTTP driving adapter serving the bunqpanel JSON API.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/bunqpanel/internal/application"
	"github.com/ericfisherdev/bunqpanel/internal/domain/model"
	"github.com/ericfisherdev/bunqpanel/internal/domain/port/driven"
	"github.com/ericfisherdev/bunqpanel/internal/vault"
)

const maxBodyBytes = 1 << 20

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	sessions *application.SessionService
	bank     *application.BankService
	invoices *application.InvoiceService
	installs *application.InstallService
	db       Pinger
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	sessions *application.SessionService,
	bank *application.BankService,
	invoices *application.InvoiceService,
	installs *application.InstallService,
	db Pinger,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		sessions: sessions,
		bank:     bank,
		invoices: invoices,
		installs: installs,
		db:       db,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with CSRF, logging and recovery middleware. Every route except health and
// the CSRF token endpoint requires an X-Remote-User identity.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/csrf", h.CSRFToken)

	mux.Handle("POST /api/v1/envelope", requireOwner(http.HandlerFunc(h.CreateEnvelope)))
	mux.Handle("POST /api/v1/envelope/decrypt", requireOwner(http.HandlerFunc(h.DecryptEnvelope)))
	mux.Handle("POST /api/v1/device", requireOwner(http.HandlerFunc(h.RegisterDevice)))
	mux.Handle("POST /api/v1/session", requireOwner(http.HandlerFunc(h.StartSession)))

	mux.Handle("POST /api/v1/users", requireOwner(h.resource(h.bank.Users)))
	mux.Handle("POST /api/v1/accounts", requireOwner(h.resource(h.bank.Accounts)))
	mux.Handle("POST /api/v1/payments", requireOwner(h.resource(h.bank.Payments)))
	mux.Handle("POST /api/v1/cards", requireOwner(h.resource(h.bank.Cards)))
	mux.Handle("POST /api/v1/chats", requireOwner(h.resource(h.bank.Chats)))
	mux.Handle("POST /api/v1/chats/messages", requireOwner(h.resource(h.bank.ChatMessages)))
	mux.Handle("POST /api/v1/chats/attachment", requireOwner(h.resource(h.bank.ChatAttachment)))
	mux.Handle("POST /api/v1/chats/attachment/content", requireOwner(h.resource(h.bank.ChatAttachmentContent)))

	mux.Handle("POST /api/v1/invoice", requireOwner(h.resource(h.invoices.Generate)))
	mux.Handle("GET /api/v1/invoice/pdf", requireOwner(http.HandlerFunc(h.InvoicePDF)))

	// Recovery innermost so panics are caught before logging.
	wrapped := csrfMiddleware(mux)
	wrapped = recoveryMiddleware(logger, wrapped)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health reports liveness and database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Error("health check failed", "error", err)
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, HealthResponse{
		Status: status,
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// CSRFToken returns the caller's CSRF token, issuing one when absent. Clients
// echo it in the X-CSRF-Token header on every POST.
func (h *Handler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CSRFResponse{Token: csrfToken(w, r)})
}

// CreateEnvelope installs a new key pair for the posted API key and returns
// the encrypted envelope as a download.
func (h *Handler) CreateEnvelope(w http.ResponseWriter, r *http.Request) {
	var req CreateEnvelopeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	env, err := h.installs.CreateEnvelope(r.Context(), owner(r.Context()), req.APIKey, req.Password)
	if err != nil {
		h.logger.Error("failed to create envelope", "error", err)
		writeEnvelope(w, statusFor(err), application.Message(err))
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+application.EnvelopeFilename+`"`)
	writeJSON(w, http.StatusOK, env)
}

// DecryptEnvelope returns the decrypted bundle of the posted envelope.
func (h *Handler) DecryptEnvelope(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	body, err := h.sessions.Export(r.Context(), owner(r.Context()), req.Envelope, req.Password)
	writeRaw(w, statusFor(err), body)
}

// RegisterDevice registers this application as a device for the envelope's
// API key. A device that is already registered is reported with status 200.
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	session, ok := h.open(w, r)
	if !ok {
		return
	}

	body, err := h.sessions.RegisterDevice(r.Context(), session)
	writeRaw(w, statusFor(err), body)
}

// StartSession creates a new server session for the envelope.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.open(w, r)
	if !ok {
		return
	}

	body, err := h.sessions.StartSession(r.Context(), session)
	writeRaw(w, statusFor(err), body)
}

// InvoicePDF serves the caller's generated invoice once.
func (h *Handler) InvoicePDF(w http.ResponseWriter, r *http.Request) {
	pdf, err := h.invoices.InvoicePDF(r.Context(), owner(r.Context()))
	if err != nil {
		if !errors.Is(err, application.ErrInvoiceNotFound) {
			h.logger.Error("failed to serve invoice", "error", err)
		}
		writeEnvelope(w, statusFor(err), application.Message(err))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="invoice.pdf"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

type resourceFunc func(ctx context.Context, session *application.Session, q application.ResourceQuery) (json.RawMessage, error)

// resource adapts a BankService-style accessor into a handler. The request
// body carries the envelope, the password and the resource identifiers.
func (h *Handler) resource(fn resourceFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ResourceRequest
		if !decodeBody(w, r, &req) {
			return
		}

		session, err := h.sessions.Open(r.Context(), owner(r.Context()), req.Envelope, req.Password)
		if err != nil {
			writeEnvelope(w, statusFor(err), application.Message(err))
			return
		}

		body, err := fn(r.Context(), session, req.Query())
		writeRaw(w, statusFor(err), body)
	})
}

// open decodes a CredentialsRequest and opens its envelope. On failure the
// response has been written and ok is false.
func (h *Handler) open(w http.ResponseWriter, r *http.Request) (*application.Session, bool) {
	var req CredentialsRequest
	if !decodeBody(w, r, &req) {
		return nil, false
	}

	session, err := h.sessions.Open(r.Context(), owner(r.Context()), req.Envelope, req.Password)
	if err != nil {
		writeEnvelope(w, statusFor(err), application.Message(err))
		return nil, false
	}
	return session, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps an operation error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case err == nil, errors.Is(err, driven.ErrAlreadyRegistered):
		return http.StatusOK
	case errors.Is(err, application.ErrInvalidInput),
		errors.Is(err, application.ErrResourceResolution),
		errors.Is(err, vault.ErrDecryption),
		errors.Is(err, vault.ErrMalformedBundle):
		return http.StatusBadRequest
	case errors.Is(err, application.ErrNotYourFile):
		return http.StatusForbidden
	case errors.Is(err, application.ErrInvoiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, driven.ErrSessionMissing), errors.Is(err, driven.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, driven.ErrRemoteTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Query converts the optional identifiers of the request.
func (req ResourceRequest) Query() application.ResourceQuery {
	return application.ResourceQuery{
		UserID:       model.IDFromPtr(req.UserID),
		AccountID:    model.IDFromPtr(req.AccountID),
		PaymentID:    model.IDFromPtr(req.PaymentID),
		CardID:       model.IDFromPtr(req.CardID),
		ChatID:       model.IDFromPtr(req.ChatID),
		AttachmentID: model.IDFromPtr(req.AttachmentID),
	}
}
