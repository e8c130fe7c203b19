// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// sensitiveParams are parameter names stripped before hashing so that
// credentials never influence (or leak through) cache keys. Compared
// case-insensitively.
var sensitiveParams = map[string]struct{}{
	"apikey":        {},
	"api_key":       {},
	"key":           {},
	"token":         {},
	"secret":        {},
	"authorization": {},
	"password":      {},
}

// IsSensitiveParam reports whether the parameter name is excluded from
// cache key derivation.
func IsSensitiveParam(name string) bool {
	_, ok := sensitiveParams[strings.ToLower(name)]
	return ok
}

// BuildKey derives the deterministic cache key for an endpoint and its
// parameters. Parameters are sorted by name (case-sensitive byte order)
// before hashing, so logically identical requests hash identically
// regardless of input order. Sensitive parameters are excluded entirely.
//
// The key is rendered "<endpoint>:<hex digest>" so that a literal
// "^endpoint:" regular expression invalidates everything for one endpoint.
func BuildKey(endpoint string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		if IsSensitiveParam(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	h.Write([]byte(endpoint))
	for _, name := range names {
		// NUL separators prevent ambiguity between adjacent pairs.
		h.Write([]byte{0})
		h.Write([]byte(name))
		h.Write([]byte{'='})
		h.Write([]byte(params[name]))
	}

	digest := hex.EncodeToString(h.Sum(nil))
	return endpoint + ":" + digest[:16]
}
