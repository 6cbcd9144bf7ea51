package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// StreamingOptions configures the connection to the external
// recognition service.
type StreamingOptions struct {
	URL          string
	AppKey       string
	AccessKey    string
	Language     string
	SourceFormat string
}

// audioChunkBytes is 100 ms of 16 kHz 16-bit mono PCM.
const audioChunkBytes = 3200

// Streaming is the real recognition backend. Each Transcribe call
// converts the chunk to PCM, opens a websocket to the recognizer,
// streams the audio up and consumes partial/final result frames coming
// back, returning the first final transcript.
type Streaming struct {
	opts      StreamingOptions
	converter Converter
	dialer    *websocket.Dialer
}

// startFrame announces the audio parameters for the stream.
type startFrame struct {
	Type     string `json:"type"`
	Format   string `json:"format"`
	Rate     int    `json:"rate"`
	Bits     int    `json:"bits"`
	Channels int    `json:"channels"`
	Language string `json:"language,omitempty"`
}

// endFrame tells the recognizer no more audio is coming.
type endFrame struct {
	Type string `json:"type"`
}

type resultFrame struct {
	Type      string `json:"type,omitempty"`
	Text      string `json:"text"`
	IsPartial *bool  `json:"is_partial,omitempty"`
	Message   string `json:"message,omitempty"`
}

// NewStreaming creates the real backend.
func NewStreaming(opts StreamingOptions, converter Converter) *Streaming {
	return &Streaming{
		opts:      opts,
		converter: converter,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 30 * time.Second,
		},
	}
}

// Transcribe implements Backend.
func (b *Streaming) Transcribe(ctx context.Context, audio []byte) (string, error) {
	pcm, err := b.converter.Convert(ctx, audio, b.opts.SourceFormat)
	if err != nil {
		return "", fmt.Errorf("audio conversion failed: %w", err)
	}

	header := http.Header{}
	if b.opts.AppKey != "" {
		header.Set("X-Api-App-Key", b.opts.AppKey)
	}
	if b.opts.AccessKey != "" {
		header.Set("X-Api-Access-Key", b.opts.AccessKey)
	}

	conn, _, err := b.dialer.DialContext(ctx, b.opts.URL, header)
	if err != nil {
		return "", fmt.Errorf("failed to connect to recognizer: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unblock the reader if the caller gives up mid-stream.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	start := startFrame{
		Type:     "start",
		Format:   "pcm",
		Rate:     16000,
		Bits:     16,
		Channels: 1,
		Language: b.opts.Language,
	}
	if err := conn.WriteJSON(start); err != nil {
		return "", fmt.Errorf("failed to send start frame: %w", err)
	}

	// Receive concurrently so server feedback is consumed while audio
	// is still going up.
	resultCh := make(chan string, 1)
	errCh := make(chan error, 2)
	go func() {
		text, err := receiveFinalResult(conn)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- text
	}()

	go func() {
		errCh <- sendAudio(conn, pcm)
	}()

	for {
		select {
		case text := <-resultCh:
			return text, nil
		case err := <-errCh:
			if err != nil {
				return "", err
			}
			// Send side finished cleanly; keep waiting for the result.
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func sendAudio(conn *websocket.Conn, pcm []byte) error {
	for i := 0; i < len(pcm); i += audioChunkBytes {
		end := i + audioChunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[i:end]); err != nil {
			return fmt.Errorf("failed to send audio chunk: %w", err)
		}
	}
	if err := conn.WriteJSON(endFrame{Type: "end"}); err != nil {
		return fmt.Errorf("failed to send end frame: %w", err)
	}
	return nil
}

// receiveFinalResult reads result frames until the first final one. A
// stream that closes normally without a final result yields empty text,
// not an error.
func receiveFinalResult(conn *websocket.Conn) (string, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", nil
			}
			return "", fmt.Errorf("failed to read recognizer response: %w", err)
		}

		var frame resultFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("[recognizer] skipping undecodable frame: %v", err)
			continue
		}

		switch frame.Type {
		case "error":
			return "", fmt.Errorf("recognizer error: %s", frame.Message)
		case "result":
			if frame.IsPartial == nil || !*frame.IsPartial {
				return frame.Text, nil
			}
		case "":
			// Untyped frames count as results only when they carry the
			// is_partial marker; bare acks like {} are skipped.
			if frame.IsPartial != nil && !*frame.IsPartial {
				return frame.Text, nil
			}
		default:
			// Acks and other frame types are not results.
		}
	}
}
