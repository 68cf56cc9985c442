package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestAdaptive() *Adaptive {
	return NewAdaptive(AdaptiveConfig{
		InitialRPS:    1.0,
		MinRPS:        0.25,
		MaxRPS:        4.0,
		SpeedupFactor: 1.5,
		BackoffFactor: 0.5,
	})
}

func TestAdaptiveBackoffOnRateLimit(t *testing.T) {
	t.Parallel()

	a := newTestAdaptive()
	before := a.Rate("slow.com")
	a.OnRateLimited("slow.com")
	after := a.Rate("slow.com")
	require.Less(t, after, before, "rate must strictly decrease after a 429")

	// Repeated pushback floors at MinRPS.
	for i := 0; i < 20; i++ {
		a.OnRateLimited("slow.com")
	}
	require.Equal(t, 0.25, a.Rate("slow.com"))
}

func TestAdaptiveSpeedupOnSuccess(t *testing.T) {
	t.Parallel()

	a := newTestAdaptive()
	before := a.Rate("fast.com")
	a.OnSuccess("fast.com")
	require.Greater(t, a.Rate("fast.com"), before, "rate must strictly increase after a success")

	// Repeated successes cap at MaxRPS.
	for i := 0; i < 20; i++ {
		a.OnSuccess("fast.com")
	}
	require.Equal(t, 4.0, a.Rate("fast.com"))
}

func TestAdaptiveServerErrorIsMilder(t *testing.T) {
	t.Parallel()

	a := newTestAdaptive()
	b := newTestAdaptive()
	a.OnServerError("x.com")
	b.OnRateLimited("x.com")
	require.Greater(t, a.Rate("x.com"), b.Rate("x.com"))
}

func TestAdaptiveWaitUsesCurrentRate(t *testing.T) {
	t.Parallel()

	a := NewAdaptive(AdaptiveConfig{
		InitialRPS:    20,
		MinRPS:        10,
		MaxRPS:        40,
		SpeedupFactor: 1.5,
		BackoffFactor: 0.5,
	})
	ctx := context.Background()
	require.NoError(t, a.Wait(ctx, "y.com"))

	// After backoff to 10 RPS the next wait should take ~100ms.
	a.OnRateLimited("y.com")
	start := time.Now()
	require.NoError(t, a.Wait(ctx, "y.com"))
	require.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestAdaptiveResetRestoresInitialRate(t *testing.T) {
	t.Parallel()

	a := newTestAdaptive()
	a.OnRateLimited("z.com")
	require.Less(t, a.Rate("z.com"), 1.0)
	a.Reset("z.com")
	require.Equal(t, 1.0, a.Rate("z.com"))
}
