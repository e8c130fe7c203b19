// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/crypto/pbkdf2"
)

// Session envelope errors
var (
	// ErrInvalidSession covers every token failure mode: malformed
	// base64, truncated layout, authentication failure, or a record
	// that does not parse. Callers treat the request as sessionless.
	ErrInvalidSession = errors.New("invalid session token")

	// ErrMasterKeyMissing indicates no master key was configured.
	ErrMasterKeyMissing = errors.New("session master key not configured")
)

const (
	saltSize    = 32
	nonceSize   = 12
	tagSize     = 16
	keySize     = 32
	kdfIters    = 100_000
	minTokenLen = saltSize + nonceSize + tagSize
)

// Envelope encrypts and decrypts session records with AES-256-GCM.
// Each token carries its own random salt; the per-token key is derived
// with PBKDF2-SHA256 so a leaked token never exposes the master key.
type Envelope struct {
	masterKey   []byte
	idleTimeout time.Duration
	maxAge      time.Duration
}

// NewEnvelope creates a session envelope from the configured master key.
// idleTimeout is the sliding expiry applied on every touch; maxAge is
// the absolute lifetime bound regardless of activity.
func NewEnvelope(masterKey string, idleTimeout, maxAge time.Duration) (*Envelope, error) {
	if masterKey == "" {
		return nil, ErrMasterKeyMissing
	}
	if idleTimeout <= 0 || maxAge <= 0 {
		return nil, errors.New("session timeouts must be positive")
	}
	return &Envelope{
		masterKey:   []byte(masterKey),
		idleTimeout: idleTimeout,
		maxAge:      maxAge,
	}, nil
}

// IdleTimeout returns the configured sliding expiry.
func (e *Envelope) IdleTimeout() time.Duration { return e.idleTimeout }

// MaxAge returns the configured absolute lifetime bound.
func (e *Envelope) MaxAge() time.Duration { return e.maxAge }

// Encrypt serializes the record and seals it into a token. The wire
// layout, base64-encoded, is salt || nonce || tag || ciphertext with
// the salt doubling as associated authenticated data.
func (e *Envelope) Encrypt(record *Record) (string, error) {
	plaintext, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal session record: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	aead, err := e.aead(salt)
	if err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, nonce, plaintext, salt)
	// Seal appends the tag after the ciphertext; the wire layout puts
	// the tag first.
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	token := make([]byte, 0, saltSize+nonceSize+len(sealed))
	token = append(token, salt...)
	token = append(token, nonce...)
	token = append(token, tag...)
	token = append(token, ciphertext...)

	return base64.StdEncoding.EncodeToString(token), nil
}

// Decrypt opens a token and parses the record inside. Any failure,
// structural or cryptographic, is reported as ErrInvalidSession.
func (e *Envelope) Decrypt(token string) (*Record, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode failed", ErrInvalidSession)
	}
	if len(data) < minTokenLen {
		return nil, fmt.Errorf("%w: token too short", ErrInvalidSession)
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]
	tag := data[saltSize+nonceSize : saltSize+nonceSize+tagSize]
	ciphertext := data[saltSize+nonceSize+tagSize:]

	aead, err := e.aead(salt)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, salt)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrInvalidSession)
	}

	var record Record
	if err := json.Unmarshal(plaintext, &record); err != nil {
		return nil, fmt.Errorf("%w: malformed record", ErrInvalidSession)
	}
	if record.ID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrInvalidSession)
	}
	return &record, nil
}

// Resume implements the per-request session lifecycle. An absent,
// invalid, idle-expired, or over-age token yields a freshly minted
// record; a valid one has its activity counters bumped. The second
// return reports whether the record is new. The caller always
// re-encrypts: rotation is mandatory so counters persist.
func (e *Envelope) Resume(token, fingerprint string) (*Record, bool) {
	now := time.Now()
	if token == "" {
		return newRecord(fingerprint, now, e.idleTimeout), true
	}
	record, err := e.Decrypt(token)
	if err != nil || record.Expired(now) || record.PastMaxAge(now, e.maxAge) {
		return newRecord(fingerprint, now, e.idleTimeout), true
	}

	record.LastAccessedAt = now
	record.ExpiresAt = now.Add(e.idleTimeout)
	record.RequestCount++
	record.LastRequestAt = now
	return record, false
}

// aead derives the per-token key and builds the GCM cipher for it.
func (e *Envelope) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(e.masterKey, salt, kdfIters, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM cipher: %w", err)
	}
	return aead, nil
}
