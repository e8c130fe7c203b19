// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package validation

import (
	"strings"
	"testing"

	"github.com/fairwaylabs/fairway/internal/models"
)

func TestValidateStruct_ProxyRequestBody(t *testing.T) {
	tests := []struct {
		name    string
		body    models.ProxyRequestBody
		wantErr bool
	}{
		{
			name: "valid body",
			body: models.ProxyRequestBody{
				Parameters:      map[string]string{"season": "2026"},
				Transformations: []string{"normalize"},
				OutputFormat:    "json",
			},
		},
		{
			name: "empty body is valid",
			body: models.ProxyRequestBody{},
		},
		{
			name: "unknown output format",
			body: models.ProxyRequestBody{
				OutputFormat: "xml",
			},
			wantErr: true,
		},
		{
			name: "oversized parameter value",
			body: models.ProxyRequestBody{
				Parameters: map[string]string{"q": strings.Repeat("x", 2000)},
			},
			wantErr: true,
		},
		{
			name: "too many transformations",
			body: models.ProxyRequestBody{
				Transformations: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.body)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateStruct_ErrorDetails(t *testing.T) {
	err := ValidateStruct(&models.InvalidateRequest{})
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if len(err.Errors()) != 1 {
		t.Fatalf("expected 1 field error, got %d", len(err.Errors()))
	}
	fe := err.Errors()[0]
	if fe.Field() != "Pattern" || fe.Tag() != "required" {
		t.Errorf("unexpected field error %q/%q", fe.Field(), fe.Tag())
	}
	if !strings.Contains(err.Error(), "Pattern is required") {
		t.Errorf("unexpected message %q", err.Error())
	}

	details := err.Details()
	fields, ok := details["fields"].([]map[string]any)
	if !ok || len(fields) != 1 {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestValidateEndpointName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"tournaments", true},
		{"betting-odds", true},
		{"player-stats", true},
		{"a", true},
		{"", false},
		{"-leading-dash", false},
		{"UPPER", false},
		{"path/traversal", false},
		{"dots..", false},
		{strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateEndpointName(tt.name); got != tt.valid {
				t.Errorf("ValidateEndpointName(%q) = %v, want %v", tt.name, got, tt.valid)
			}
		})
	}
}
