package driven

import (
	"context"
	"encoding/json"
)

// PDFRenderer turns an invoice payload into a PDF document.
type PDFRenderer interface {
	// Render returns the decoded PDF bytes. Non-success replies yield an
	// error wrapping ErrRemoteTransport.
	Render(ctx context.Context, invoice json.RawMessage) ([]byte, error)
}
