// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package transform

// Feed endpoints served by the proxy.
const (
	EndpointTournaments = "tournaments"
	EndpointRankings    = "rankings"
	EndpointField       = "field"
	EndpointScoring     = "scoring"
	EndpointPlayerStats = "player-stats"
	EndpointBettingOdds = "betting-odds"
)

// feedListFields maps each endpoint to the field the vendor nests its
// list under.
var feedListFields = map[string]string{
	EndpointTournaments: "tournaments",
	EndpointRankings:    "rankings",
	EndpointField:       "players",
	EndpointScoring:     "leaderboard",
	EndpointPlayerStats: "stats",
	EndpointBettingOdds: "odds",
}

// Builtin returns a registry pre-populated with the transformer for
// every feed endpoint.
func Builtin() *Registry {
	r := NewRegistry()
	for endpoint, listField := range feedListFields {
		r.Register(endpoint, listTransformer(listField))
	}
	return r
}
