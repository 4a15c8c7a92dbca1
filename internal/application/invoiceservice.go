package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ericfisherdev/bunqpanel/internal/domain/port/driven"
)

const (
	invoiceFilePrefix = "ComBunqWebApp-"
	invoiceGenerated  = "PDF Generated....."
)

// InvoiceService renders the latest invoice of a user to a PDF file kept
// server side until the owner downloads it once.
type InvoiceService struct {
	renderer driven.PDFRenderer
	sessions driven.SessionStore
	profiles driven.ProfileStore
	dir      string
	logger   *slog.Logger
}

// NewInvoiceService creates a new InvoiceService writing PDFs under dir. An
// empty dir selects os.TempDir().
func NewInvoiceService(
	renderer driven.PDFRenderer,
	sessions driven.SessionStore,
	profiles driven.ProfileStore,
	dir string,
	logger *slog.Logger,
) *InvoiceService {
	if dir == "" {
		dir = os.TempDir()
	}
	return &InvoiceService{
		renderer: renderer,
		sessions: sessions,
		profiles: profiles,
		dir:      dir,
		logger:   logger,
	}
}

// Generate fetches the invoices of q.UserID, renders the most recent one and
// records the file for the session's owner. Any earlier pending PDF of that
// owner is removed first.
func (s *InvoiceService) Generate(ctx context.Context, session *Session, q ResourceQuery) (json.RawMessage, error) {
	userID, ok := q.UserID.Get()
	if !ok {
		return reply(nil, unresolved("userID is required to generate an invoice"))
	}
	client, err := session.Client()
	if err != nil {
		return reply(nil, err)
	}

	raw, err := NewEndpointRouter(client).Invoice(ctx, userID)
	if err != nil {
		s.logger.Warn("invoice fetch failed", "owner", session.OwnerID, "error", err)
		return reply(raw, err)
	}

	invoice, err := latestInvoice(raw)
	if err != nil {
		return reply(nil, err)
	}

	pdf, err := s.renderer.Render(ctx, invoice)
	if err != nil {
		s.logger.Error("pdf render failed", "owner", session.OwnerID, "error", err)
		return ErrorEnvelope(pdfGeneratorFailed), fmt.Errorf("render invoice: %w", err)
	}

	if err := s.discard(ctx, session.OwnerID); err != nil {
		s.logger.Warn("failed to discard previous invoice", "owner", session.OwnerID, "error", err)
	}

	path, err := s.writeFile(session.OwnerID, pdf)
	if err != nil {
		return reply(nil, err)
	}

	key, err := s.sessions.Put(ctx, path)
	if err != nil {
		_ = os.Remove(path)
		return reply(nil, fmt.Errorf("store invoice path: %w", err))
	}
	if err := s.profiles.SetInvoiceTokenRef(ctx, session.OwnerID, key); err != nil {
		_ = os.Remove(path)
		_ = s.sessions.Delete(ctx, key)
		return reply(nil, fmt.Errorf("record invoice: %w", err))
	}

	s.logger.Info("invoice pdf generated", "owner", session.OwnerID, "bytes", len(pdf))
	return statusReply(invoiceGenerated), nil
}

// InvoicePDF returns the owner's pending PDF and removes it together with its
// references. A second call yields ErrInvoiceNotFound.
func (s *InvoiceService) InvoicePDF(ctx context.Context, ownerID string) ([]byte, error) {
	profile, err := s.profiles.Get(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil || profile.InvoiceTokenRef == "" {
		return nil, ErrInvoiceNotFound
	}

	path, err := s.sessions.Get(ctx, profile.InvoiceTokenRef)
	if errors.Is(err, driven.ErrSessionKeyNotFound) {
		_ = s.profiles.ClearInvoiceTokenRef(ctx, ownerID)
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve invoice path: %w", err)
	}

	data, readErr := os.ReadFile(path)

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to remove invoice file", "owner", ownerID, "error", err)
	}
	if err := s.sessions.Delete(ctx, profile.InvoiceTokenRef); err != nil {
		s.logger.Warn("failed to drop invoice reference", "owner", ownerID, "error", err)
	}
	if err := s.profiles.ClearInvoiceTokenRef(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("clear invoice reference: %w", err)
	}

	if errors.Is(readErr, fs.ErrNotExist) {
		return nil, ErrInvoiceNotFound
	}
	if readErr != nil {
		return nil, fmt.Errorf("read invoice file: %w", readErr)
	}
	return data, nil
}

// discard removes the owner's pending PDF, if any.
func (s *InvoiceService) discard(ctx context.Context, ownerID string) error {
	profile, err := s.profiles.Get(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if profile == nil || profile.InvoiceTokenRef == "" {
		return nil
	}

	path, err := s.sessions.Get(ctx, profile.InvoiceTokenRef)
	switch {
	case errors.Is(err, driven.ErrSessionKeyNotFound):
	case err != nil:
		return fmt.Errorf("resolve invoice path: %w", err)
	default:
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove invoice file: %w", err)
		}
	}

	if err := s.sessions.Delete(ctx, profile.InvoiceTokenRef); err != nil {
		return err
	}
	return s.profiles.ClearInvoiceTokenRef(ctx, ownerID)
}

// SweepStale removes invoice files in the service directory last modified
// more than maxAge ago. Their store entries expire after the same TTL, so no
// owner can still resolve them.
func (s *InvoiceService) SweepStale(maxAge time.Duration) (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, invoiceFilePrefix+"*.pdf"))
	if err != nil {
		return 0, fmt.Errorf("list invoice files: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("stat invoice file: %w", err)
		}
		if info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove stale invoice file: %w", err)
		}
		removed++
	}
	return removed, nil
}

func (s *InvoiceService) writeFile(ownerID string, pdf []byte) (string, error) {
	f, err := os.CreateTemp(s.dir, invoiceFilePrefix+fileSafe(ownerID)+"-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create invoice file: %w", err)
	}
	path := f.Name()

	if _, err := f.Write(pdf); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write invoice file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close invoice file: %w", err)
	}
	return path, nil
}

// latestInvoice returns Response[0].Invoice from an invoice listing.
func latestInvoice(raw json.RawMessage) (json.RawMessage, error) {
	var body struct {
		Response []struct {
			Invoice json.RawMessage `json:"Invoice"`
		} `json:"Response"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, unresolved("invoice listing is not valid JSON")
	}
	if len(body.Response) == 0 || len(body.Response[0].Invoice) == 0 || string(body.Response[0].Invoice) == "null" {
		return nil, unresolved("no invoice found for this user")
	}
	return body.Response[0].Invoice, nil
}

// fileSafe keeps letters, digits, dash and underscore from an owner id.
func fileSafe(ownerID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, ownerID)
}
