package session

import "time"

// State tracks the session lifecycle. Transitions are one-way:
// Connecting -> Active -> Disconnected.
type State string

const (
	StateConnecting   State = "connecting"
	StateActive       State = "active"
	StateDisconnected State = "disconnected"
)

// Session is the per-connection record owned by exactly one worker
// goroutine. Only registry table membership is shared state; the audio
// accumulator and dispatch timestamp are touched by the owning worker
// alone, so none of the methods below take a lock.
type Session struct {
	id           string
	state        State
	audio        []byte
	lastDispatch time.Time
	createdAt    time.Time
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Activate marks the session live after the connection handshake event
// has been delivered.
func (s *Session) Activate() {
	if s.state == StateConnecting {
		s.state = StateActive
	}
}

// Append adds a chunk to the audio accumulator.
func (s *Session) Append(chunk []byte) {
	s.audio = append(s.audio, chunk...)
}

// Flush returns the accumulated audio and resets the accumulator.
func (s *Session) Flush() []byte {
	audio := s.audio
	s.audio = nil
	return audio
}

// Buffered reports how many audio bytes are waiting for dispatch.
func (s *Session) Buffered() int { return len(s.audio) }
