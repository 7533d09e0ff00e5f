package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"prefs-manager/core/prefs"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// marker prefixes every ciphertext so IsEncrypted can recognize wrapped
// values without a round trip.
const marker = "ENC$1$"

const (
	saltSize         = 16
	keySize          = 32
	pbkdf2Iterations = 100_000
)

// pbkdf2Salt anchors the passphrase-to-master-key derivation. A fixed
// salt keeps ciphertexts decryptable across restarts from the
// passphrase alone; per-value salts feed the HKDF expansion below.
var pbkdf2Salt = []byte("prefs-manager/crypto/v1")

// Service encrypts preference values with AES-256-GCM. The master key
// comes from PBKDF2 over the configured passphrase; each value gets its
// own key expanded via HKDF with a random salt, so reusing the
// passphrase across values never reuses a (key, nonce) pair.
//
// This is passphrase-based key management, not a KMS integration; treat
// it accordingly for production secrets.
type Service struct {
	masterKey []byte
}

// New derives the master key from passphrase. An empty passphrase is a
// configuration error.
func New(passphrase string) (*Service, error) {
	if passphrase == "" {
		return nil, &prefs.ConfigError{Reason: "encryption passphrase must not be empty"}
	}
	key := pbkdf2.Key([]byte(passphrase), pbkdf2Salt, pbkdf2Iterations, keySize, sha256.New)
	return &Service{masterKey: key}, nil
}

// Encrypt wraps plaintext as marker + base64(salt | nonce | sealed).
func (s *Service) Encrypt(_ context.Context, plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	payload := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, sealed...)
	return marker + base64.RawStdEncoding.EncodeToString(payload), nil
}

// Decrypt unwraps a value produced by Encrypt. Values without the
// marker, or with tampered payloads, fail.
func (s *Service) Decrypt(_ context.Context, ciphertext string) (string, error) {
	if !s.IsEncrypted(ciphertext) {
		return "", errors.New("value is not encrypted")
	}

	payload, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(ciphertext, marker))
	if err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	if len(payload) < saltSize {
		return "", errors.New("payload too short")
	}

	salt := payload[:saltSize]
	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}
	if len(payload) < saltSize+gcm.NonceSize() {
		return "", errors.New("payload too short")
	}

	nonce := payload[saltSize : saltSize+gcm.NonceSize()]
	sealed := payload[saltSize+gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether s carries the ciphertext marker. Pure and
// synchronous.
func (*Service) IsEncrypted(value string) bool {
	return strings.HasPrefix(value, marker)
}

// aead expands a per-value key from the master key and salt.
func (s *Service) aead(salt []byte) (cipher.AEAD, error) {
	key := make([]byte, keySize)
	expand := hkdf.New(sha256.New, s.masterKey, salt, []byte("prefs-manager/value"))
	if _, err := io.ReadFull(expand, key); err != nil {
		return nil, fmt.Errorf("expand value key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
