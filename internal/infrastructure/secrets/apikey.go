// Package secrets encrypts the billing API key at rest with NaCl secretbox.
// The box key is derived from an operator secret with HKDF-SHA256.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	hkdfInfo  = "invoicesync billing api key"
)

var (
	// ErrEmptySecret is returned when no derivation secret is configured
	ErrEmptySecret = errors.New("secrets: derivation secret is empty")
	// ErrDecrypt is returned for malformed or tampered ciphertext
	ErrDecrypt = errors.New("secrets: cannot decrypt value")
)

// DeriveKey derives the 32-byte secretbox key from an operator secret
func DeriveKey(secret string) (*[keySize]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	var key [keySize]byte
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &key, nil
}

// Encrypt seals plaintext and returns base64(nonce || box)
func Encrypt(plaintext, secret string) (string, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return "", err
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt
func Decrypt(encoded, secret string) (string, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return "", err
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", fmt.Errorf("%w: base64: %v", ErrDecrypt, err)
	}
	if len(data) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])
	plaintext, ok := secretbox.Open(nil, data[nonceSize:], &nonce, key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

// ResolveAPIKey returns the decrypted key when an encrypted value is set,
// otherwise the plaintext fallback.
func ResolveAPIKey(plaintext, encrypted, secret string) (string, error) {
	if encrypted == "" {
		return strings.TrimSpace(plaintext), nil
	}
	key, err := Decrypt(encrypted, secret)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(key), nil
}
