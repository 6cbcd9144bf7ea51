package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Converter turns caller-supplied audio into the 16 kHz mono 16-bit PCM
// the recognizer expects. The conversion itself is opaque to the rest
// of the pipeline.
type Converter interface {
	Convert(ctx context.Context, audio []byte, sourceFormat string) ([]byte, error)
}

// FFmpegConverter shells out to ffmpeg over stdin/stdout pipes.
type FFmpegConverter struct {
	path string
}

// NewFFmpegConverter creates a converter using the given ffmpeg binary,
// or the one on PATH when empty.
func NewFFmpegConverter(path string) *FFmpegConverter {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegConverter{path: path}
}

// Convert implements Converter.
func (c *FFmpegConverter) Convert(ctx context.Context, audio []byte, sourceFormat string) ([]byte, error) {
	if len(audio) == 0 {
		return nil, errors.New("no audio to convert")
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	if sourceFormat != "" {
		args = append(args, "-f", sourceFormat)
	}
	args = append(args,
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", "16000",
		"-ac", "1",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Stdin = bytes.NewReader(audio)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("ffmpeg conversion failed: %w: %s", err, detail)
		}
		return nil, fmt.Errorf("ffmpeg conversion failed: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, errors.New("ffmpeg produced no PCM output")
	}

	return stdout.Bytes(), nil
}
