package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ericfisherdev/bunqpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionRepo)(nil)

const sessionKeyBytes = 32

// SessionRepo is the SQLite implementation of the SessionStore port interface.
// Values are encrypted with AES-256-GCM before write and decrypted after read,
// so a copy of the database alone does not reveal session tokens.
type SessionRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
	ttl time.Duration
	now func() time.Time
}

// NewSessionRepo creates a new SessionRepo. key must be 32 bytes for AES-256-GCM,
// or nil to disable the store (all operations will return driven.ErrEncryptionKeyNotSet).
// Entries older than ttl are treated as missing.
func NewSessionRepo(db *DB, key []byte, ttl time.Duration) *SessionRepo {
	return &SessionRepo{db: db, key: key, ttl: ttl, now: time.Now}
}

// Put stores value under a new random key.
func (r *SessionRepo) Put(ctx context.Context, value string) (string, error) {
	encrypted, err := r.encrypt(value)
	if err != nil {
		return "", err
	}

	key, err := newSessionKey()
	if err != nil {
		return "", err
	}

	const query = `INSERT INTO session_data (session_key, value, expires_at) VALUES (?, ?, ?)`
	expiresAt := r.now().Add(r.ttl).Unix()
	if _, err := r.db.Writer.ExecContext(ctx, query, key, encrypted, expiresAt); err != nil {
		return "", fmt.Errorf("put session value: %w", err)
	}
	return key, nil
}

// Get returns the value stored under key. Expired entries are deleted and
// reported as driven.ErrSessionKeyNotFound.
func (r *SessionRepo) Get(ctx context.Context, key string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT value, expires_at FROM session_data WHERE session_key = ?`
	var encrypted string
	var expiresAt int64
	err := r.db.Reader.QueryRowContext(ctx, query, key).Scan(&encrypted, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", driven.ErrSessionKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get session value: %w", err)
	}

	if r.now().Unix() >= expiresAt {
		if err := r.Delete(ctx, key); err != nil {
			return "", err
		}
		return "", driven.ErrSessionKeyNotFound
	}

	plaintext, err := r.decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("decrypt session value: %w", err)
	}
	return plaintext, nil
}

// Delete removes key.
func (r *SessionRepo) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM session_data WHERE session_key = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete session value: %w", err)
	}
	return nil
}

// PurgeExpired deletes every expired entry and returns how many were removed.
func (r *SessionRepo) PurgeExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM session_data WHERE expires_at <= ?`
	res, err := r.db.Writer.ExecContext(ctx, query, r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	return n, nil
}

func newSessionKey() (string, error) {
	b := make([]byte, sessionKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand session key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded string
// containing the nonce (12 bytes) prepended to the ciphertext.
func (r *SessionRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *SessionRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}

func (r *SessionRepo) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
