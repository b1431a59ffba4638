package jerseyfolio

import (
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, max int, window time.Duration) (*LoginLimiter, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLoginLimiter(max, window)
	l.now = func() time.Time { return now }
	t.Cleanup(l.Stop)
	return l, &now
}

func TestLoginLimiterBlocksAfterMax(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Minute)
	ip := "203.0.113.10"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first attempt to be allowed")
	}
	if !limiter.Allow(ip) {
		t.Fatalf("expected second attempt to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected third attempt to be blocked")
	}
}

func TestLoginLimiterResetsAfterWindow(t *testing.T) {
	limiter, now := newTestLimiter(t, 1, time.Minute)
	ip := "203.0.113.20"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first attempt to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected second attempt to be blocked")
	}

	*now = now.Add(time.Minute + time.Second)
	if !limiter.Allow(ip) {
		t.Fatalf("expected attempt after window to be allowed")
	}
}

func TestLoginLimiterIsPerIP(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)

	if !limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first ip to be allowed")
	}
	if !limiter.Allow("203.0.113.31") {
		t.Fatalf("expected second ip to be allowed independently")
	}
	if limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first ip to be blocked after max")
	}
}

func TestLoginLimiterCheckDoesNotRecord(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	ip := "203.0.113.40"

	for i := 0; i < 3; i++ {
		if !limiter.Check(ip) {
			t.Fatalf("check %d: expected allowed without recorded failures", i)
		}
	}
	limiter.Record(ip)
	if limiter.Check(ip) {
		t.Fatalf("expected blocked after a recorded failure")
	}
}

func TestLoginLimiterPrune(t *testing.T) {
	limiter, now := newTestLimiter(t, 3, time.Minute)
	limiter.Record("203.0.113.50")
	*now = now.Add(2 * time.Minute)
	limiter.prune()

	limiter.mu.Lock()
	n := len(limiter.attempts)
	limiter.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected expired attempts to be pruned, got %d ips", n)
	}
}

func TestLoginLimiterStopIsIdempotent(t *testing.T) {
	limiter := NewLoginLimiter(1, time.Minute)
	limiter.Stop()
	limiter.Stop()
}
