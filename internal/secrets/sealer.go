// Package secrets seals participant credentials before they reach storage.
package secrets

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
)

// sealedPrefix marks values produced by AgeSealer.
const sealedPrefix = "age:"

// Sealer encrypts and decrypts short secrets such as OAuth tokens.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// NopSealer stores secrets as-is.
type NopSealer struct{}

func (NopSealer) Seal(plaintext string) (string, error) { return plaintext, nil }
func (NopSealer) Open(sealed string) (string, error)    { return sealed, nil }

// AgeSealer encrypts secrets to an X25519 identity using filippo.io/age.
// Values without the sealed prefix are returned unchanged by Open so rows
// written before encryption was enabled stay readable.
type AgeSealer struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

var _ Sealer = (*AgeSealer)(nil)

// NewAgeSealer parses an AGE-SECRET-KEY-1... identity.
func NewAgeSealer(identity string) (*AgeSealer, error) {
	id, err := age.ParseX25519Identity(strings.TrimSpace(identity))
	if err != nil {
		return nil, fmt.Errorf("parse age identity: %w", err)
	}
	return &AgeSealer{identity: id, recipient: id.Recipient()}, nil
}

// GenerateAgeSealer creates a sealer with a fresh identity and returns the
// identity string so it can be stored in configuration.
func GenerateAgeSealer() (*AgeSealer, string, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, "", fmt.Errorf("generate age identity: %w", err)
	}
	return &AgeSealer{identity: id, recipient: id.Recipient()}, id.String(), nil
}

// Recipient returns the public key secrets are sealed to.
func (s *AgeSealer) Recipient() string {
	return s.recipient.String()
}

// Seal encrypts plaintext and returns a prefixed base64 string.
func (s *AgeSealer) Seal(plaintext string) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return "", fmt.Errorf("create age writer: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("write secret: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize secret: %w", err)
	}
	return sealedPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Open decrypts a value produced by Seal.
func (s *AgeSealer) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return sealed, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed secret: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), s.identity)
	if err != nil {
		return "", fmt.Errorf("decrypt secret: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(out), nil
}
