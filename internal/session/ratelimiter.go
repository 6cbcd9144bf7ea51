package session

import "time"

// DefaultDispatchInterval is the minimum spacing between two backend
// dispatches for one session. Recognition calls are costly and audio
// tends to arrive in small frequent chunks; the gate keeps a chatty
// client from hammering the backend.
const DefaultDispatchInterval = 500 * time.Millisecond

// RateLimiter gates backend dispatches per session. The timestamp it
// reads and writes lives on the session record and is only ever touched
// by the session's own worker, so the read-decide-update sequence needs
// no lock, only that it happens as one step here.
type RateLimiter struct {
	interval time.Duration
	now      func() time.Time
}

// NewRateLimiter creates a limiter with the given minimum interval.
// Non-positive intervals fall back to the default.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	if interval <= 0 {
		interval = DefaultDispatchInterval
	}
	return &RateLimiter{interval: interval, now: time.Now}
}

// ShouldDispatch reports whether a backend call is due for s. When it
// returns true it has already stamped the session with the dispatch
// time, so a second call straight after returns false.
func (l *RateLimiter) ShouldDispatch(s *Session) bool {
	now := l.now()
	if !s.lastDispatch.IsZero() && now.Sub(s.lastDispatch) < l.interval {
		return false
	}
	s.lastDispatch = now
	return true
}
