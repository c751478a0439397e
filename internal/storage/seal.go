package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// SealFormat tags sealed objects: magic(8) + salt(16) + nonce(12) + ciphertext + tag(16).
const SealFormat = "GCM3NCR0"

const (
	saltLen   = 16
	nonceLen  = 12
	kdfRounds = 100000
)

// ErrNotSealed is returned by Open for data without the seal header.
var ErrNotSealed = errors.New("storage: data is not sealed")

// Seal encrypts data with a key derived from password.
func Seal(data []byte, password string) ([]byte, error) {
	salt := make([]byte, saltLen)
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(SealFormat)+saltLen+nonceLen+len(data)+gcm.Overhead())
	out = append(out, SealFormat...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// Open reverses Seal.
func Open(sealed []byte, password string) ([]byte, error) {
	if !IsSealed(sealed) {
		return nil, ErrNotSealed
	}
	if len(sealed) < len(SealFormat)+saltLen+nonceLen+16 {
		return nil, fmt.Errorf("sealed data too short: %d bytes", len(sealed))
	}
	salt := sealed[8:24]
	nonce := sealed[24:36]
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, sealed[36:], nil)
	if err != nil {
		return nil, fmt.Errorf("GCM decryption failed: %w", err)
	}
	return plain, nil
}

// IsSealed reports whether b starts with the seal header.
func IsSealed(b []byte) bool {
	return len(b) >= len(SealFormat) && string(b[:len(SealFormat)]) == SealFormat
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, kdfRounds, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
