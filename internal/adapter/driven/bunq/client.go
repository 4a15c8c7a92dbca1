// Package bunq implements the BankClient port against the bunq public API.
package bunq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/bunqpanel/internal/domain/model"
	"github.com/ericfisherdev/bunqpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.BankClient = (*Client)(nil)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.bunq.com/v1"

	headerCacheControl   = "Cache-Control"
	headerUserAgent      = "User-Agent"
	headerLanguage       = "X-Bunq-Language"
	headerRegion         = "X-Bunq-Region"
	headerGeolocation    = "X-Bunq-Geolocation"
	headerRequestID      = "X-Bunq-Client-Request-Id"
	headerAuthentication = "X-Bunq-Client-Authentication"
	headerSignature      = "X-Bunq-Client-Signature"
	headerServerSig      = "X-Bunq-Server-Signature"

	maxResponseBytes = 16 << 20
)

// Options configures the fixed request headers and transport shared by every
// client built from one factory.
type Options struct {
	BaseURL     string
	UserAgent   string
	Language    string
	Region      string
	Geolocation string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.UserAgent == "" {
		o.UserAgent = "bunqpanel"
	}
	if o.Language == "" {
		o.Language = "en_US"
	}
	if o.Region == "" {
		o.Region = "nl_NL"
	}
	if o.Geolocation == "" {
		o.Geolocation = "0 0 0 0 000"
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	return o
}

// Client talks to the bunq API on behalf of one credential bundle. It holds no
// mutable state, so a Client may be shared by concurrent calls.
type Client struct {
	opts   Options
	bundle model.CredentialBundle
}

// NewClient creates a Client bound to bundle. The bundle's SessionToken is
// sent as X-Bunq-Client-Authentication on every call that carries one.
func NewClient(opts Options, bundle model.CredentialBundle) *Client {
	return &Client{opts: opts.withDefaults(), bundle: bundle}
}

// NewFactory returns a BankClientFactory producing clients that share opts.
func NewFactory(opts Options) driven.BankClientFactory {
	opts = opts.withDefaults()
	return func(bundle model.CredentialBundle) driven.BankClient {
		return &Client{opts: opts, bundle: bundle}
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, bundle model.CredentialBundle) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	return NewClient(Options{BaseURL: baseURL, HTTPClient: httpClient}, bundle), nil
}

type installationRequest struct {
	ClientPublicKey string `json:"client_public_key"`
}

type deviceServerRequest struct {
	Description  string   `json:"description"`
	Secret       string   `json:"secret"`
	PermittedIPs []string `json:"permitted_ips"`
}

type sessionServerRequest struct {
	Secret string `json:"secret"`
}

// Install registers the client public key and returns the installation token
// together with the server public key.
func (c *Client) Install(ctx context.Context, clientPublicKeyPEM string) (*driven.Installation, error) {
	body, err := c.do(ctx, http.MethodPost, "/installation", installationRequest{ClientPublicKey: clientPublicKeyPEM})
	if err != nil {
		return nil, err
	}

	var reply struct {
		Response []struct {
			Token *struct {
				Token string `json:"token"`
			} `json:"Token"`
			ServerPublicKey *struct {
				ServerPublicKey string `json:"server_public_key"`
			} `json:"ServerPublicKey"`
		} `json:"Response"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, &driven.RemoteError{StatusCode: http.StatusOK, Description: "undecodable installation reply", Body: body, Kind: driven.ErrRemoteTransport}
	}

	var inst driven.Installation
	for _, item := range reply.Response {
		if item.Token != nil {
			inst.Token = item.Token.Token
		}
		if item.ServerPublicKey != nil {
			inst.ServerPublicKey = item.ServerPublicKey.ServerPublicKey
		}
	}
	if inst.Token == "" || inst.ServerPublicKey == "" {
		return nil, &driven.RemoteError{StatusCode: http.StatusOK, Description: "installation reply lacks token or server public key", Body: body, Kind: driven.ErrRemoteTransport}
	}
	return &inst, nil
}

// RegisterDevice authorizes this device for the bundle's API key. A device
// the API already knows yields the raw reply and driven.ErrAlreadyRegistered.
func (c *Client) RegisterDevice(ctx context.Context, description string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodPost, "/device-server", deviceServerRequest{
		Description:  description,
		Secret:       c.bundle.APIKey.Reveal(),
		PermittedIPs: []string{},
	})
	if err == nil {
		return body, nil
	}

	var remoteErr *driven.RemoteError
	if errors.As(err, &remoteErr) && isAlreadyRegistered(remoteErr) {
		return remoteErr.Body, fmt.Errorf("register device: %w", driven.ErrAlreadyRegistered)
	}
	return nil, fmt.Errorf("register device: %w", err)
}

// CreateSession starts a server session and returns the reply unchanged.
func (c *Client) CreateSession(ctx context.Context) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodPost, "/session-server", sessionServerRequest{Secret: c.bundle.APIKey.Reveal()})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return body, nil
}

// Get performs an authenticated GET on path.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// do sends one signed request and classifies the reply. Non-2xx replies
// become *driven.RemoteError values.
func (c *Client) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}

	requestID := uuid.NewString()
	req.Header.Set(headerCacheControl, "no-cache")
	req.Header.Set(headerUserAgent, c.opts.UserAgent)
	req.Header.Set(headerLanguage, c.opts.Language)
	req.Header.Set(headerRegion, c.opts.Region)
	req.Header.Set(headerGeolocation, c.opts.Geolocation)
	req.Header.Set(headerRequestID, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !c.bundle.SessionToken.IsZero() {
		req.Header.Set(headerAuthentication, c.bundle.SessionToken.Reveal())
	}
	if !c.bundle.PrivateKey.IsZero() {
		key, err := parsePrivateKey(c.bundle.PrivateKey.Reveal())
		if err != nil {
			return nil, err
		}
		signature, err := sign(key, reqBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set(headerSignature, signature)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, &driven.RemoteError{Description: err.Error(), Kind: driven.ErrRemoteTransport}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &driven.RemoteError{StatusCode: resp.StatusCode, Description: "read body: " + err.Error(), Kind: driven.ErrRemoteTransport}
	}

	c.opts.Logger.Debug("bunq api call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classify(resp.StatusCode, body)
	}

	if sig := resp.Header.Get(headerServerSig); sig != "" && c.bundle.ServerPublicKey != "" {
		if err := c.verifyReply(body, sig); err != nil {
			return nil, &driven.RemoteError{StatusCode: resp.StatusCode, Description: err.Error(), Kind: driven.ErrRemoteTransport}
		}
	}

	if !json.Valid(body) {
		return nil, &driven.RemoteError{StatusCode: resp.StatusCode, Description: "reply is not JSON", Kind: driven.ErrRemoteTransport}
	}
	return json.RawMessage(body), nil
}

func (c *Client) verifyReply(body []byte, signature string) error {
	key, err := parsePublicKey(c.bundle.ServerPublicKey)
	if err != nil {
		return err
	}
	return verify(key, body, signature)
}
