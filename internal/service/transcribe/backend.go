package transcribe

import "context"

// Backend converts one chunk of caller audio into transcript text.
// Implementations may block for a network round trip; they must honor
// ctx cancellation.
type Backend interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}
