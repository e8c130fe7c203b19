// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:           baseURL,
		APIKey:            "super-secret",
		MaxRetries:        2,
		BaseDelay:         5 * time.Millisecond,
		PerAttemptTimeout: time.Second,
	})
}

func TestClient_FetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tournaments":[]}`))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).Fetch(context.Background(), "tournaments", map[string]string{"season": "2026"}, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.Status)
	}
	if resp.ContentType != "application/json" {
		t.Errorf("unexpected content type %q", resp.ContentType)
	}
	if resp.Size != int64(len(resp.Body)) {
		t.Errorf("size %d does not match body length %d", resp.Size, len(resp.Body))
	}
}

func TestClient_URLCarriesSortedParamsAndKeyLast(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), "scoring", map[string]string{
		"round":      "4",
		"event":      "masters",
		"tournament": "123",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	want := "event=masters&round=4&tournament=123&key=super-secret"
	if gotQuery != want {
		t.Errorf("expected query %q, got %q", want, gotQuery)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).Fetch(context.Background(), "rankings", nil, nil)
	if err != nil {
		t.Fatalf("expected recovery after retries, got %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("unexpected body %q", resp.Body)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClient_Retries429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Fetch(context.Background(), "odds", nil, nil); err != nil {
		t.Fatalf("expected 429 to be retried, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestClient_ExhaustedRetriesReturnUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), "field", nil, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	// MaxRetries of 2 means 3 attempts total.
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
	if strings.Contains(err.Error(), "super-secret") {
		t.Error("error must not leak the API key")
	}
}

func TestClient_ClientErrorsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`not found`))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).Fetch(context.Background(), "unknown", nil, nil)
	if err != nil {
		t.Fatalf("expected 4xx to be returned, not retried: %v", err)
	}
	if resp.Status != http.StatusNotFound {
		t.Errorf("expected 404 passed through, got %d", resp.Status)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", calls.Load())
	}
}

func TestClient_ForwardsHeaders(t *testing.T) {
	var gotAccept, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotCustom = r.Header.Get("X-Feed-Variant")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), "e", nil, map[string]string{"X-Feed-Variant": "v2"})
	if err != nil {
		t.Fatal(err)
	}
	if gotAccept != "application/json" {
		t.Errorf("expected default Accept header, got %q", gotAccept)
	}
	if gotCustom != "v2" {
		t.Errorf("expected custom header forwarded, got %q", gotCustom)
	}
}

func TestClient_CancellationStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:    srv.URL,
		MaxRetries: 5,
		BaseDelay:  200 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.Fetch(ctx, "e", nil, nil)
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took too long: %v", elapsed)
	}
}

func TestClient_SanitizeURL(t *testing.T) {
	c := testClient("http://feed.example.com")
	sanitized := c.sanitizeURL(c.buildURL("scoring", map[string]string{"event": "1"}))
	if strings.Contains(sanitized, "super-secret") {
		t.Errorf("sanitized URL leaks the key: %q", sanitized)
	}
	if !strings.Contains(sanitized, "REDACTED") {
		t.Errorf("expected redaction marker, got %q", sanitized)
	}
}

func TestClient_Backoff(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://x", BaseDelay: 100 * time.Millisecond})
	for k := 0; k < 3; k++ {
		min := 100 * time.Millisecond << uint(k)
		max := min + 100*time.Millisecond
		for i := 0; i < 20; i++ {
			d := c.backoff(k)
			if d < min || d > max {
				t.Fatalf("attempt %d: backoff %v outside [%v, %v]", k, d, min, max)
			}
		}
	}
}
