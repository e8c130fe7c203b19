// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

// Package session implements anonymous client sessions carried entirely
// in an encrypted token. The server keeps no session state between
// requests; the token is the storage.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Record is the session state round-tripped through the encrypted token.
// Opaque to clients.
type Record struct {
	// ID is the session's UUID, used as the rate-limit identity.
	ID string `json:"id"`

	// CreatedAt bounds the absolute session lifetime.
	CreatedAt time.Time `json:"createdAt"`

	// LastAccessedAt is bumped on every validated request.
	LastAccessedAt time.Time `json:"lastAccessedAt"`

	// ExpiresAt is the idle deadline: LastAccessedAt + idle timeout.
	ExpiresAt time.Time `json:"expiresAt"`

	// ClientFingerprint is the user agent and IP captured at creation.
	// Informational only; never used to reject requests.
	ClientFingerprint string `json:"clientFingerprint,omitempty"`

	// Preferences is an opaque bag carried for the client.
	Preferences map[string]string `json:"preferences,omitempty"`

	// RequestCount counts validated requests over the session lifetime.
	RequestCount int64 `json:"requestCount"`

	// LastRequestAt is the time of the most recent validated request.
	LastRequestAt time.Time `json:"lastRequestAt,omitempty"`
}

// Expired reports whether the record is past its idle deadline.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// PastMaxAge reports whether the record has exceeded the absolute
// lifetime bound, regardless of activity.
func (r *Record) PastMaxAge(now time.Time, maxAge time.Duration) bool {
	return now.Sub(r.CreatedAt) > maxAge
}

// newRecord mints a fresh session record. The minting request counts
// as the first one.
func newRecord(fingerprint string, now time.Time, idleTimeout time.Duration) *Record {
	return &Record{
		ID:                uuid.New().String(),
		CreatedAt:         now,
		LastAccessedAt:    now,
		ExpiresAt:         now.Add(idleTimeout),
		ClientFingerprint: fingerprint,
		RequestCount:      1,
		LastRequestAt:     now,
	}
}

// Fingerprint builds the informational client fingerprint stored at
// session creation.
func Fingerprint(userAgent, remoteIP string) string {
	return userAgent + "|" + remoteIP
}
