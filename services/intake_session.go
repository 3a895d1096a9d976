package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	// IntakeSessionTTL is how long an encrypted intake payload stays usable
	IntakeSessionTTL = 24 * time.Hour
	// MinIntakeSecretLength mirrors the startup check on INTAKE_SESSION_SECRET
	MinIntakeSecretLength = 16

	intakeKeyInfo = "stt-intake-session-v1"
)

// ErrIntakeSecretTooShort is returned when the codec secret is missing or short
var ErrIntakeSecretTooShort = fmt.Errorf("intake session secret must be at least %d characters", MinIntakeSecretLength)

// IntakeRecord is the decrypted content of an intake session cookie.
type IntakeRecord struct {
	UserID    string    `json:"userId"`
	CreatedAt int64     `json:"createdAt"`
	Data      CaseInput `json:"data"`
}

// Created returns the record creation time
func (r *IntakeRecord) Created() time.Time {
	return time.UnixMilli(r.CreatedAt)
}

// Usable reports whether the record belongs to userID and is within its TTL.
func (r *IntakeRecord) Usable(userID string, now time.Time) bool {
	if r == nil || userID == "" || r.UserID != userID {
		return false
	}
	return now.Sub(r.Created()) <= IntakeSessionTTL
}

// IntakeCodec seals intake payloads with AES-256-GCM under a key derived from
// the configured secret.
type IntakeCodec struct {
	aead cipher.AEAD
}

// NewIntakeCodec derives the cipher key once and prepares the AEAD
func NewIntakeCodec(secret string) (*IntakeCodec, error) {
	if len(secret) < MinIntakeSecretLength {
		return nil, ErrIntakeSecretTooShort
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(intakeKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive intake key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &IntakeCodec{aead: aead}, nil
}

// Encode serializes and encrypts the payload for userID.
// Output is base64url(nonce || ciphertext || tag).
func (c *IntakeCodec) Encode(userID string, payload CaseInput, now time.Time) (string, error) {
	if userID == "" {
		return "", errors.New("intake session requires a user id")
	}
	plaintext, err := json.Marshal(IntakeRecord{
		UserID:    userID,
		CreatedAt: now.UnixMilli(),
		Data:      payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode intake payload: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode reverses Encode. Any malformed, truncated or tampered value yields
// (nil, false); expiry and ownership are left to IntakeRecord.Usable.
func (c *IntakeCodec) Decode(value string) (*IntakeRecord, bool) {
	if value == "" {
		return nil, false
	}
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, false
	}
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize+c.aead.Overhead() {
		return nil, false
	}

	plaintext, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, false
	}

	var record IntakeRecord
	if err := json.Unmarshal(plaintext, &record); err != nil {
		return nil, false
	}
	if record.UserID == "" {
		return nil, false
	}
	return &record, true
}
