// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrSecretKeyMissing is returned when BUNQPANEL_SECRET_KEY is not set.
var ErrSecretKeyMissing = errors.New("BUNQPANEL_SECRET_KEY is required")

// Defaults for optional variables.
const (
	DefaultListenAddr        = "127.0.0.1:8080"
	DefaultDBPath            = "bunqpanel.db"
	DefaultAPIURL            = "https://api.bunq.com/v1"
	DefaultPDFURL            = "https://api.sycade.com/btp-int/Invoice/Generate"
	DefaultDeviceDescription = "ComBunqWebApp"
	DefaultSessionTTL        = 14 * 24 * time.Hour
	DefaultKDFIterations     = 210000
	DefaultHTTPTimeout       = 30 * time.Second
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr        string
	DBPath            string
	SecretKey         []byte // 32 bytes; encrypts session store values at rest.
	APIURL            string
	PDFURL            string
	DeviceDescription string
	SessionTTL        time.Duration
	KDFIterations     int
	InvoiceDir        string
	HTTPTimeout       time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// BUNQPANEL_SECRET_KEY (64 hex characters) is required. Optional variables with
// defaults: BUNQPANEL_LISTEN_ADDR (127.0.0.1:8080), BUNQPANEL_DB_PATH (bunqpanel.db),
// BUNQPANEL_API_URL, BUNQPANEL_PDF_URL, BUNQPANEL_DEVICE_DESCRIPTION (ComBunqWebApp),
// BUNQPANEL_SESSION_TTL (336h), BUNQPANEL_KDF_ITERATIONS (210000),
// BUNQPANEL_INVOICE_DIR (os.TempDir()), BUNQPANEL_HTTP_TIMEOUT (30s).
func Load() (*Config, error) {
	secretKey, err := loadSecretKey()
	if err != nil {
		return nil, err
	}

	sessionTTL, err := durationEnv("BUNQPANEL_SESSION_TTL", DefaultSessionTTL)
	if err != nil {
		return nil, err
	}

	httpTimeout, err := durationEnv("BUNQPANEL_HTTP_TIMEOUT", DefaultHTTPTimeout)
	if err != nil {
		return nil, err
	}

	iterations := DefaultKDFIterations
	if v, ok := os.LookupEnv("BUNQPANEL_KDF_ITERATIONS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("BUNQPANEL_KDF_ITERATIONS must be a positive integer, got %q", v)
		}
		iterations = parsed
	}

	return &Config{
		ListenAddr:        stringEnv("BUNQPANEL_LISTEN_ADDR", DefaultListenAddr),
		DBPath:            stringEnv("BUNQPANEL_DB_PATH", DefaultDBPath),
		SecretKey:         secretKey,
		APIURL:            stringEnv("BUNQPANEL_API_URL", DefaultAPIURL),
		PDFURL:            stringEnv("BUNQPANEL_PDF_URL", DefaultPDFURL),
		DeviceDescription: stringEnv("BUNQPANEL_DEVICE_DESCRIPTION", DefaultDeviceDescription),
		SessionTTL:        sessionTTL,
		KDFIterations:     iterations,
		InvoiceDir:        stringEnv("BUNQPANEL_INVOICE_DIR", os.TempDir()),
		HTTPTimeout:       httpTimeout,
	}, nil
}

func loadSecretKey() ([]byte, error) {
	v := os.Getenv("BUNQPANEL_SECRET_KEY")
	if v == "" {
		return nil, ErrSecretKeyMissing
	}
	key, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("BUNQPANEL_SECRET_KEY is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("BUNQPANEL_SECRET_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// stringEnv returns the variable's value, or def when it is unset or empty.
func stringEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, parsed)
	}
	return parsed, nil
}
