package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/youpy/go-wav"
)

// callsim streams a WAV recording (or a synthetic tone) to a running
// backend the way the browser dashboard does, and prints every insight
// event it gets back.

type audioMessage struct {
	Type                 string `json:"type"`
	Data                 string `json:"data"`
	UseRealTranscription bool   `json:"use_real_transcription"`
}

type transcriptMessage struct {
	Type    string `json:"type"`
	Data    string `json:"data"`
	IsFinal bool   `json:"is_final"`
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	addr := flag.String("addr", "ws://localhost:8080/api/ws", "websocket endpoint of the backend")
	audioPath := flag.String("audio", "", "WAV file to stream; empty sends a synthetic tone")
	text := flag.String("text", "", "send this line as transcript_data instead of audio")
	session := flag.String("session", "", "session id, empty lets the server generate one")
	useReal := flag.Bool("real", false, "ask the server to use the real recognizer")
	chunk := flag.Duration("chunk", 250*time.Millisecond, "audio chunk duration")
	duration := flag.Duration("duration", 10*time.Second, "total streaming time for the synthetic tone")
	flag.Parse()

	url := *addr
	if *session != "" {
		url += "?session_id=" + *session
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", url, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go printEvents(conn, done)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	switch {
	case *text != "":
		sendTranscript(conn, *text)
	case *audioPath != "":
		streamWAV(conn, *audioPath, *chunk, *useReal, sig)
	default:
		streamTone(conn, *chunk, *duration, *useReal, sig)
	}

	// Let the last insight arrive before closing.
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func printEvents(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var event map[string]interface{}
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Printf("undecodable event: %s", payload)
			continue
		}
		switch event["type"] {
		case "connection_established":
			log.Printf("connected, client_id=%v", event["client_id"])
		case "live_insights":
			pretty, _ := json.MarshalIndent(event["insights"], "", "  ")
			log.Printf("transcript: %v\ninsights: %s", event["transcript"], pretty)
		case "error":
			log.Printf("server error: %v", event["message"])
		default:
			log.Printf("event: %s", payload)
		}
	}
}

func sendTranscript(conn *websocket.Conn, text string) {
	msg := transcriptMessage{Type: "transcript_data", Data: text, IsFinal: true}
	if err := conn.WriteJSON(msg); err != nil {
		log.Fatalf("failed to send transcript: %v", err)
	}
}

// streamWAV replays the PCM payload of a WAV file in real-time sized
// chunks.
func streamWAV(conn *websocket.Conn, path string, chunk time.Duration, useReal bool, sig <-chan os.Signal) {
	file, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open audio file: %v", err)
	}
	defer file.Close()

	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		log.Fatalf("failed to parse WAV header: %v", err)
	}

	pcm, err := io.ReadAll(reader)
	if err != nil {
		log.Fatalf("failed to read WAV samples: %v", err)
	}

	bytesPerSecond := int(format.SampleRate) * int(format.NumChannels) * int(format.BitsPerSample) / 8
	chunkBytes := bytesPerSecond * int(chunk) / int(time.Second)
	if chunkBytes <= 0 {
		chunkBytes = bytesPerSecond / 4
	}

	log.Printf("streaming %s: %d Hz, %d channel(s), %d bytes in %d-byte chunks",
		path, format.SampleRate, format.NumChannels, len(pcm), chunkBytes)

	ticker := time.NewTicker(chunk)
	defer ticker.Stop()

	for offset := 0; offset < len(pcm); offset += chunkBytes {
		end := offset + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if !sendAudioChunk(conn, pcm[offset:end], useReal) {
			return
		}
		select {
		case <-sig:
			log.Println("interrupted")
			return
		case <-ticker.C:
		}
	}
}

// streamTone sends a flat mid-loudness tone so the simulated backend
// has something to chew on without a recording at hand.
func streamTone(conn *websocket.Conn, chunk, duration time.Duration, useReal bool, sig <-chan os.Signal) {
	const sampleRate = 16000
	chunkBytes := 2 * sampleRate * int(chunk) / int(time.Second)
	payload := make([]byte, chunkBytes)
	for i := range payload {
		payload[i] = byte(120 + (i%16)*2)
	}

	log.Printf("streaming synthetic tone for %s in %d-byte chunks", duration, chunkBytes)

	ticker := time.NewTicker(chunk)
	defer ticker.Stop()
	deadline := time.Now().Add(duration)

	for time.Now().Before(deadline) {
		if !sendAudioChunk(conn, payload, useReal) {
			return
		}
		select {
		case <-sig:
			log.Println("interrupted")
			return
		case <-ticker.C:
		}
	}
}

func sendAudioChunk(conn *websocket.Conn, pcm []byte, useReal bool) bool {
	msg := audioMessage{
		Type:                 "audio_data",
		Data:                 base64.StdEncoding.EncodeToString(pcm),
		UseRealTranscription: useReal,
	}
	if err := conn.WriteJSON(msg); err != nil {
		fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
		return false
	}
	return true
}
