// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeServer scripts ListenAndServe/Shutdown behavior.
type fakeServer struct {
	serveErr    error
	shutdownErr error
	shutdowns   atomic.Int32
	release     chan struct{}
}

func newFakeServer() *fakeServer {
	return &fakeServer{release: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	<-f.release
	return f.serveErr
}

func (f *fakeServer) Shutdown(_ context.Context) error {
	f.shutdowns.Add(1)
	close(f.release)
	return f.shutdownErr
}

func TestHTTPServerService_GracefulShutdown(t *testing.T) {
	srv := newFakeServer()
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled after drain, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("service did not stop")
	}
	if srv.shutdowns.Load() != 1 {
		t.Errorf("expected one Shutdown call, got %d", srv.shutdowns.Load())
	}
}

func TestHTTPServerService_ListenFailure(t *testing.T) {
	srv := newFakeServer()
	srv.serveErr = errors.New("bind: address already in use")
	close(srv.release)

	svc := NewHTTPServerService(srv, time.Second)
	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, srv.serveErr) {
		t.Errorf("expected listen failure surfaced, got %v", err)
	}
}

func TestMaintenanceService_TicksUntilCanceled(t *testing.T) {
	var ticks atomic.Int32
	svc := NewMaintenanceService("test-loop", 10*time.Millisecond, func(context.Context) {
		ticks.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(55 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("service did not stop")
	}
	if got := ticks.Load(); got < 3 {
		t.Errorf("expected at least 3 ticks, got %d", got)
	}
	if svc.String() != "test-loop" {
		t.Errorf("unexpected service name %q", svc.String())
	}
}
