// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package transform

import (
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// CamelCase converts a snake_case field name to camelCase. Names
// without underscores pass through unchanged.
func CamelCase(name string) string {
	if !strings.Contains(name, "_") {
		return name
	}
	parts := strings.Split(name, "_")
	var sb strings.Builder
	first := true
	for _, part := range parts {
		if part == "" {
			continue
		}
		if first {
			sb.WriteString(part)
			first = false
			continue
		}
		sb.WriteString(strings.ToUpper(part[:1]))
		sb.WriteString(part[1:])
	}
	if sb.Len() == 0 {
		return name
	}
	return sb.String()
}

// normalizeValue recursively renames object keys from snake_case to
// camelCase. Arrays are walked; scalars pass through.
func normalizeValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for key, inner := range value {
			out[CamelCase(key)] = normalizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, inner := range value {
			out[i] = normalizeValue(inner)
		}
		return out
	default:
		return v
	}
}

// envelope is the normalized wrapper for list results.
type envelope struct {
	Items    []any    `json:"items"`
	Metadata metadata `json:"metadata"`
}

type metadata struct {
	Count         int    `json:"count"`
	TransformedAt string `json:"transformedAt"`
}

// listTransformer builds a transformer that extracts the named list
// field from the raw object (or accepts a bare top-level array),
// normalizes field names, and wraps the result in the items envelope.
func listTransformer(listField string) Func {
	return func(raw []byte, now time.Time) ([]byte, error) {
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("parse upstream body: %w", err)
		}

		var items []any
		switch value := parsed.(type) {
		case []any:
			items = value
		case map[string]any:
			list, ok := value[listField].([]any)
			if !ok {
				// Single-object payloads are wrapped as one item.
				items = []any{value}
				break
			}
			items = list
		default:
			return nil, fmt.Errorf("unexpected upstream payload shape %T", parsed)
		}

		normalized := make([]any, len(items))
		for i, item := range items {
			normalized[i] = normalizeValue(item)
		}

		return json.Marshal(envelope{
			Items: normalized,
			Metadata: metadata{
				Count:         len(normalized),
				TransformedAt: now.UTC().Format(time.RFC3339),
			},
		})
	}
}
