package session

import (
	"testing"
	"time"
)

func TestShouldDispatchRespectsInterval(t *testing.T) {
	r := NewRegistry()
	s, _ := r.Register("")

	clock := time.Unix(1000, 0)
	l := NewRateLimiter(500 * time.Millisecond)
	l.now = func() time.Time { return clock }

	if !l.ShouldDispatch(s) {
		t.Fatal("first dispatch should pass")
	}
	if l.ShouldDispatch(s) {
		t.Fatal("immediate second dispatch should be gated")
	}

	clock = clock.Add(499 * time.Millisecond)
	if l.ShouldDispatch(s) {
		t.Fatal("dispatch inside the interval should be gated")
	}

	clock = clock.Add(time.Millisecond)
	if !l.ShouldDispatch(s) {
		t.Fatal("dispatch after the interval should pass")
	}
}

func TestDeniedDispatchLeavesTimestampUntouched(t *testing.T) {
	r := NewRegistry()
	s, _ := r.Register("")

	clock := time.Unix(1000, 0)
	l := NewRateLimiter(500 * time.Millisecond)
	l.now = func() time.Time { return clock }

	l.ShouldDispatch(s)
	stamped := s.lastDispatch

	clock = clock.Add(100 * time.Millisecond)
	l.ShouldDispatch(s)

	if !s.lastDispatch.Equal(stamped) {
		t.Fatalf("denied dispatch moved the timestamp: %v -> %v", stamped, s.lastDispatch)
	}
}

func TestRateLimiterPerSessionIndependence(t *testing.T) {
	r := NewRegistry()
	a, _ := r.Register("")
	b, _ := r.Register("")

	l := NewRateLimiter(500 * time.Millisecond)

	if !l.ShouldDispatch(a) {
		t.Fatal("first dispatch for a should pass")
	}
	if !l.ShouldDispatch(b) {
		t.Fatal("a's dispatch must not gate b")
	}
}

func TestNewRateLimiterDefault(t *testing.T) {
	l := NewRateLimiter(0)
	if l.interval != DefaultDispatchInterval {
		t.Fatalf("expected default interval, got %v", l.interval)
	}
}
