package transcribe

import (
	"bytes"
	"context"
	"testing"
)

func chunkOf(value byte, size int) []byte {
	return bytes.Repeat([]byte{value}, size)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func TestSimulatedIntensityBuckets(t *testing.T) {
	cases := []struct {
		intensity float64
		want      []string
	}{
		{200, highIntensityUtterances},
		{151, highIntensityUtterances},
		{120, mediumIntensityUtterances},
		{101, mediumIntensityUtterances},
		{100, lowIntensityUtterances},
		{30, lowIntensityUtterances},
	}

	for _, tc := range cases {
		got := utterancesFor(tc.intensity)
		if &got[0] != &tc.want[0] {
			t.Fatalf("intensity %.0f mapped to the wrong bucket", tc.intensity)
		}
	}
}

func TestSimulatedPicksFromMatchingBucket(t *testing.T) {
	s := NewSimulated(0) // no silence, always an utterance

	text, err := s.Transcribe(context.Background(), chunkOf(200, 1024))
	if err != nil {
		t.Fatalf("simulated backend must not fail: %v", err)
	}
	if !contains(highIntensityUtterances, text) {
		t.Fatalf("expected a high-intensity utterance, got %q", text)
	}

	text, _ = s.Transcribe(context.Background(), chunkOf(10, 1024))
	if !contains(lowIntensityUtterances, text) {
		t.Fatalf("expected a low-intensity utterance, got %q", text)
	}
}

func TestSimulatedSilenceFraction(t *testing.T) {
	s := NewSimulated(1) // every dispatch is a pause

	for i := 0; i < 20; i++ {
		text, err := s.Transcribe(context.Background(), chunkOf(120, 1024))
		if err != nil {
			t.Fatalf("simulated backend must not fail: %v", err)
		}
		if text != "" {
			t.Fatalf("expected silence, got %q", text)
		}
	}
}

func TestSimulatedIgnoresTinyChunks(t *testing.T) {
	s := NewSimulated(0)
	text, err := s.Transcribe(context.Background(), chunkOf(200, minAudioBytes))
	if err != nil {
		t.Fatalf("simulated backend must not fail: %v", err)
	}
	if text != "" {
		t.Fatalf("chunks at or below the floor should yield no text, got %q", text)
	}
}

func TestMeanByte(t *testing.T) {
	if got := meanByte(nil); got != 0 {
		t.Fatalf("mean of empty audio should be 0, got %f", got)
	}
	if got := meanByte([]byte{100, 200}); got != 150 {
		t.Fatalf("expected mean 150, got %f", got)
	}
}
