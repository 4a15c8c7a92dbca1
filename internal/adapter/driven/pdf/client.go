// Package pdf implements the PDFRenderer port against the external invoice
// rendering service.
package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ericfisherdev/bunqpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PDFRenderer = (*Client)(nil)

// DefaultURL is the public invoice rendering endpoint.
const DefaultURL = "https://api.sycade.com/btp-int/Invoice/Generate"

const maxPDFBytes = 32 << 20

// Client posts invoice JSON to the rendering service and returns PDF bytes.
type Client struct {
	httpClient *http.Client
	endpoint   string
	logger     *slog.Logger
}

// NewClient creates a Client for endpoint. An empty endpoint selects DefaultURL.
func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		logger:     logger,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and endpoint.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, endpoint string) (*Client, error) {
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("parsing endpoint URL: %w", err)
	}
	return &Client{httpClient: httpClient, endpoint: endpoint, logger: slog.Default()}, nil
}

type renderReply struct {
	Invoice string `json:"Invoice"`
}

// Render sends invoice to the service and decodes the base64 PDF it returns.
// Any status other than 200 is reported as driven.ErrRemoteTransport.
func (c *Client) Render(ctx context.Context, invoice json.RawMessage) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(invoice))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &driven.RemoteError{Description: err.Error(), Kind: driven.ErrRemoteTransport}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes))
	if err != nil {
		return nil, &driven.RemoteError{StatusCode: resp.StatusCode, Description: "read body: " + err.Error(), Kind: driven.ErrRemoteTransport}
	}

	c.logger.Debug("pdf render call", "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode != http.StatusOK {
		return nil, &driven.RemoteError{StatusCode: resp.StatusCode, Description: "pdf service rejected invoice", Kind: driven.ErrRemoteTransport}
	}

	var reply renderReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, &driven.RemoteError{StatusCode: resp.StatusCode, Description: "undecodable render reply", Kind: driven.ErrRemoteTransport}
	}
	if reply.Invoice == "" {
		return nil, &driven.RemoteError{StatusCode: resp.StatusCode, Description: "render reply lacks Invoice", Kind: driven.ErrRemoteTransport}
	}

	pdf, err := base64.StdEncoding.DecodeString(reply.Invoice)
	if err != nil {
		return nil, &driven.RemoteError{StatusCode: resp.StatusCode, Description: "render reply is not base64", Kind: driven.ErrRemoteTransport}
	}
	return pdf, nil
}
