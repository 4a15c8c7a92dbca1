// Package vault encrypts and decrypts credential bundles under a user
// passphrase.
//
// Envelope layout (base64, standard encoding):
//
//	version(1) || salt(16) || iv(16) || AES-256-CBC(PKCS#7 plaintext) || HMAC-SHA256(32)
//
// The key material is PBKDF2-HMAC-SHA256(passphrase, salt, iterations, 64):
// the first half keys AES, the second half keys the HMAC. The tag covers
// every byte before it and is checked before any decryption happens, so a
// wrong passphrase always fails with ErrDecryption.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// ErrDecryption is returned for any envelope that cannot be opened: wrong
// passphrase, truncation, tampering or bad padding.
var ErrDecryption = errors.New("cannot decrypt envelope")

const (
	formatVersion = 1

	// DefaultIterations is the PBKDF2 work factor used when none is configured.
	DefaultIterations = 210_000

	saltSize = 16
	keySize  = 32
	tagSize  = sha256.Size
	headSize = 1 + saltSize + aes.BlockSize
)

// Vault performs passphrase-based envelope encryption. The zero value is not
// usable; construct with New.
type Vault struct {
	iterations int
	rand       io.Reader
}

// Option configures a Vault.
type Option func(*Vault)

// WithIterations overrides the PBKDF2 iteration count. Values below 1 are ignored.
func WithIterations(n int) Option {
	return func(v *Vault) {
		if n > 0 {
			v.iterations = n
		}
	}
}

// WithRandom overrides the source of salts and IVs.
func WithRandom(r io.Reader) Option {
	return func(v *Vault) { v.rand = r }
}

// New creates a Vault.
func New(opts ...Option) *Vault {
	v := &Vault{iterations: DefaultIterations, rand: rand.Reader}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Encrypt seals plaintext under passphrase. Every call draws a fresh salt and
// IV, so encrypting the same input twice never yields the same envelope.
func (v *Vault) Encrypt(plaintext []byte, passphrase string) (string, error) {
	out := make([]byte, headSize, headSize+len(plaintext)+aes.BlockSize+tagSize)
	out[0] = formatVersion
	salt := out[1 : 1+saltSize]
	iv := out[1+saltSize : headSize]
	if _, err := io.ReadFull(v.rand, out[1:headSize]); err != nil {
		return "", fmt.Errorf("read salt and iv: %w", err)
	}

	encKey, macKey := v.deriveKeys(passphrase, salt)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}

	padded := pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	out = append(out, ciphertext...)

	mac := hmac.New(sha256.New, macKey)
	mac.Write(out)
	out = mac.Sum(out)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens an envelope produced by Encrypt. Every failure is reported as
// an error wrapping ErrDecryption.
func (v *Vault) Decrypt(secret, passphrase string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode: %v", ErrDecryption, err)
	}
	if len(data) < headSize+aes.BlockSize+tagSize {
		return nil, fmt.Errorf("%w: envelope too short", ErrDecryption)
	}
	if data[0] != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrDecryption, data[0])
	}

	body, tag := data[:len(data)-tagSize], data[len(data)-tagSize:]
	salt := body[1 : 1+saltSize]
	iv := body[1+saltSize : headSize]
	ciphertext := body[headSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not a multiple of the block size", ErrDecryption)
	}

	encKey, macKey := v.deriveKeys(passphrase, salt)

	mac := hmac.New(sha256.New, macKey)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), tag) {
		return nil, fmt.Errorf("%w: authentication failed", ErrDecryption)
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("%w: aes.NewCipher: %v", ErrDecryption, err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	plaintext, err = unpad(plaintext, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return plaintext, nil
}

func (v *Vault) deriveKeys(passphrase string, salt []byte) (encKey, macKey []byte) {
	material := pbkdf2.Key([]byte(passphrase), salt, v.iterations, 2*keySize, sha256.New)
	return material[:keySize], material[keySize:]
}

// pad applies PKCS#7 padding. A full block is added when len(b) is already
// a multiple of size.
func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, errors.New("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
