// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package transform

import (
	"bytes"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

var fixedNow = time.Date(2026, 4, 12, 18, 30, 0, 0, time.UTC)

func TestCamelCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"player_name", "playerName"},
		{"total_strokes_gained", "totalStrokesGained"},
		{"already", "already"},
		{"camelCase", "camelCase"},
		{"a_b_c", "aBC"},
		{"_leading", "leading"},
		{"trailing_", "trailing"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := CamelCase(tc.in); got != tc.want {
			t.Errorf("CamelCase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestListTransformer_WrapsAndRenames(t *testing.T) {
	raw := []byte(`{
		"tournaments": [
			{"tournament_id": 1, "start_date": "2026-04-09", "purse_amount": 20000000,
			 "venue": {"course_name": "Augusta National", "par_total": 72}}
		]
	}`)

	out, err := Builtin().Apply(EndpointTournaments, raw, fixedNow)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var got struct {
		Items []map[string]any `json:"items"`
		Meta  struct {
			Count         int    `json:"count"`
			TransformedAt string `json:"transformedAt"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if got.Meta.Count != 1 || len(got.Items) != 1 {
		t.Fatalf("expected 1 item, got %d (count %d)", len(got.Items), got.Meta.Count)
	}
	if got.Meta.TransformedAt != "2026-04-12T18:30:00Z" {
		t.Errorf("unexpected transformedAt %q", got.Meta.TransformedAt)
	}

	item := got.Items[0]
	for _, key := range []string{"tournamentId", "startDate", "purseAmount"} {
		if _, ok := item[key]; !ok {
			t.Errorf("expected camelCase key %q, have %v", key, item)
		}
	}
	if _, ok := item["tournament_id"]; ok {
		t.Error("snake_case key should be gone")
	}

	// Nested objects are renamed too.
	venue, ok := item["venue"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested venue object, got %T", item["venue"])
	}
	if _, ok := venue["courseName"]; !ok {
		t.Errorf("expected nested key renamed, have %v", venue)
	}
}

func TestListTransformer_TopLevelArray(t *testing.T) {
	raw := []byte(`[{"world_rank": 1, "player_name": "A"}, {"world_rank": 2, "player_name": "B"}]`)

	out, err := Builtin().Apply(EndpointRankings, raw, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	var got envelope
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if got.Metadata.Count != 2 {
		t.Errorf("expected count 2, got %d", got.Metadata.Count)
	}
}

func TestListTransformer_SingleObjectWrappedAsOneItem(t *testing.T) {
	raw := []byte(`{"player_id": 42, "scoring_average": 69.8}`)

	out, err := Builtin().Apply(EndpointPlayerStats, raw, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Items) != 1 {
		t.Fatalf("expected single wrapped item, got %d", len(got.Items))
	}
	if _, ok := got.Items[0]["scoringAverage"]; !ok {
		t.Errorf("expected renamed key, have %v", got.Items[0])
	}
}

func TestListTransformer_Deterministic(t *testing.T) {
	raw := []byte(`{"odds": [
		{"player_name": "X", "win_odds": 12.5, "book_maker": "acme", "each_way_terms": {"place_count": 5}},
		{"player_name": "Y", "win_odds": 4.0, "book_maker": "acme"}
	]}`)

	reg := Builtin()
	first, err := reg.Apply(EndpointBettingOdds, raw, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		next, err := reg.Apply(EndpointBettingOdds, raw, fixedNow)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, next) {
			t.Fatalf("iteration %d: output not byte-identical:\n%s\n%s", i, first, next)
		}
	}
}

func TestListTransformer_MalformedBody(t *testing.T) {
	if _, err := Builtin().Apply(EndpointScoring, []byte(`{not json`), fixedNow); err == nil {
		t.Error("expected error for malformed body")
	}
	if _, err := Builtin().Apply(EndpointScoring, []byte(`"just a string"`), fixedNow); err == nil {
		t.Error("expected error for scalar payload")
	}
}

func TestRegistry_DefaultIdentity(t *testing.T) {
	reg := NewRegistry()
	raw := []byte(`{"anything": true}`)

	fn, registered := reg.Lookup("unregistered")
	if registered {
		t.Error("expected no registered transformer")
	}
	out, err := fn(raw, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, raw) {
		t.Errorf("identity must not alter the body: %s", out)
	}
}

func TestBuiltin_CoversAllFeedEndpoints(t *testing.T) {
	reg := Builtin()
	for _, endpoint := range []string{
		EndpointTournaments, EndpointRankings, EndpointField,
		EndpointScoring, EndpointPlayerStats, EndpointBettingOdds,
	} {
		if _, ok := reg.Lookup(endpoint); !ok {
			t.Errorf("expected transformer registered for %q", endpoint)
		}
	}
}
