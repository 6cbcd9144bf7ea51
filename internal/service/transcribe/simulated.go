package transcribe

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// DefaultSilenceFraction is the share of simulated dispatches that
// return no text, modelling natural pauses in a call.
const DefaultSilenceFraction = 0.4

// Chunks shorter than this carry no usable signal.
const minAudioBytes = 50

var highIntensityUtterances = []string{
	"I need help immediately with my order!",
	"This is very urgent, please help me now!",
	"I'm extremely frustrated with this service!",
	"This is unacceptable, I want to speak to a manager!",
	"I've been waiting for hours, this is ridiculous!",
	"My order is completely wrong!",
	"This is the worst customer service ever!",
	"I demand to speak to someone right now!",
	"This is absolutely ridiculous!",
	"I'm never using this service again!",
}

var mediumIntensityUtterances = []string{
	"Hello, I'm calling about my order.",
	"I need help with my account.",
	"There's an issue with my payment.",
	"Can you help me with this problem?",
	"I have a question about my service.",
	"I'd like to check on my order status.",
	"Can you tell me about my account?",
	"I need to update my information.",
	"What are my payment options?",
	"How do I cancel my subscription?",
}

var lowIntensityUtterances = []string{
	"Hello, how are you today?",
	"I was wondering about my order.",
	"Could you please help me?",
	"I have a small question.",
	"Thank you for your time.",
	"Excuse me, I have a question.",
	"I'm calling about my account.",
	"Can you assist me please?",
	"I need some information.",
	"Thanks for your help.",
}

// Simulated is the demo/fallback backend. It derives a coarse loudness
// from the raw bytes and picks a canned utterance for that bucket. It
// never returns an error.
type Simulated struct {
	silenceFraction float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a simulated backend. silenceFraction is the
// probability in [0,1] that a dispatch yields empty text.
func NewSimulated(silenceFraction float64) *Simulated {
	return &Simulated{
		silenceFraction: silenceFraction,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Transcribe implements Backend. The returned error is always nil.
func (s *Simulated) Transcribe(_ context.Context, audio []byte) (string, error) {
	if len(audio) <= minAudioBytes {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rng.Float64() < s.silenceFraction {
		return "", nil
	}

	bucket := utterancesFor(meanByte(audio))
	return bucket[s.rng.Intn(len(bucket))], nil
}

func meanByte(audio []byte) float64 {
	if len(audio) == 0 {
		return 0
	}
	var sum int
	for _, b := range audio {
		sum += int(b)
	}
	return float64(sum) / float64(len(audio))
}

func utterancesFor(intensity float64) []string {
	switch {
	case intensity > 150:
		return highIntensityUtterances
	case intensity > 100:
		return mediumIntensityUtterances
	default:
		return lowIntensityUtterances
	}
}
