package transcribe

import (
	"context"
	"log"
	"time"
)

// DefaultBackendTimeout bounds one real recognition round trip.
const DefaultBackendTimeout = 5 * time.Second

// Service dispatches transcription requests across the real and
// simulated backends. The policy: real transcription is attempted only
// when asked for, bounded by a timeout, and any failure or empty result
// falls back to the simulated backend. A dead recognizer therefore
// degrades a call, it never drops one.
type Service struct {
	real      Backend
	simulated Backend
	timeout   time.Duration
}

// NewService builds the dispatcher. real may be nil when no recognizer
// is configured; simulated must not be.
func NewService(real Backend, simulated Backend, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultBackendTimeout
	}
	return &Service{real: real, simulated: simulated, timeout: timeout}
}

// Transcribe turns one audio chunk into transcript text. It never
// fails; the worst outcome is empty text.
func (s *Service) Transcribe(ctx context.Context, audio []byte, useReal bool) string {
	if useReal && s.real != nil {
		tctx, cancel := context.WithTimeout(ctx, s.timeout)
		text, err := s.real.Transcribe(tctx, audio)
		cancel()

		if err == nil && text != "" {
			return text
		}
		if err != nil {
			log.Printf("[recognizer] real transcription failed, falling back to simulation: %v", err)
		}
	}

	text, _ := s.simulated.Transcribe(ctx, audio)
	return text
}
