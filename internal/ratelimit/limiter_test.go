package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestFixedEnforcesMinimumInterval(t *testing.T) {
	t.Parallel()

	// 10 RPS => consecutive waits on one domain spaced >= 100ms.
	l := NewFixed(10)
	ctx := context.Background()

	if err := l.Wait(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := l.Wait(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestFixedDomainsAreIndependent(t *testing.T) {
	t.Parallel()

	l := NewFixed(1) // 1s interval per domain
	ctx := context.Background()

	if err := l.Wait(ctx, "a.com"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := l.Wait(ctx, "b.com"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("domain b blocked by domain a")
	}
}

func TestFixedWaitTimeDoesNotConsume(t *testing.T) {
	t.Parallel()

	l := NewFixed(10)
	ctx := context.Background()
	if err := l.Wait(ctx, "c.com"); err != nil {
		t.Fatal(err)
	}
	first := l.WaitTime("c.com")
	second := l.WaitTime("c.com")
	if first <= 0 {
		t.Fatalf("expected positive wait after a request, got %v", first)
	}
	// Introspection must not consume tokens, so the delay cannot grow.
	if second > first {
		t.Fatalf("WaitTime consumed a token: first=%v second=%v", first, second)
	}
}

func TestFixedReset(t *testing.T) {
	t.Parallel()

	l := NewFixed(0.5)
	ctx := context.Background()
	if err := l.Wait(ctx, "d.com"); err != nil {
		t.Fatal(err)
	}
	l.Reset("d.com")
	start := time.Now()
	if err := l.Wait(ctx, "d.com"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("reset did not clear domain history")
	}
}

func TestDomainNormalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://Example.com/careers", "example.com"},
		{"http://www.foo.io:8080/jobs", "www.foo.io"},
		{"bare-host.com", "bare-host.com"},
		{"  Spaced.com ", "spaced.com"},
	}
	for _, tt := range tests {
		if got := Domain(tt.in); got != tt.want {
			t.Errorf("Domain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
