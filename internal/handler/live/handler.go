package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/callsight/backend/internal/analysis/insight"
	"github.com/zhouzirui/callsight/backend/internal/session"
)

// DefaultMalformedLimit is how many consecutive undecodable frames a
// session survives before being dropped. One bad frame is noise; a
// stream of them is a broken client.
const DefaultMalformedLimit = 25

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
)

// Transcriber is the slice of the transcription service the live
// pipeline needs.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, useReal bool) string
}

// Handler upgrades live-call connections and runs one worker per
// session.
type Handler struct {
	registry       *session.Registry
	limiter        *session.RateLimiter
	transcriber    Transcriber
	malformedLimit int
	upgrader       websocket.Upgrader
}

// New creates the live handler.
func New(registry *session.Registry, limiter *session.RateLimiter, transcriber Transcriber, malformedLimit int) *Handler {
	if malformedLimit <= 0 {
		malformedLimit = DefaultMalformedLimit
	}
	return &Handler{
		registry:       registry,
		limiter:        limiter,
		transcriber:    transcriber,
		malformedLimit: malformedLimit,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the live websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type                 string `json:"type"`
	Data                 string `json:"data"`
	UseRealTranscription bool   `json:"use_real_transcription"`
	IsFinal              bool   `json:"is_final"`
}

// handleWebSocket accepts one connection and drives its session to
// completion. The session id may be supplied by the caller via
// ?session_id=, otherwise the registry generates one.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, err := h.registry.Register(r.URL.Query().Get("session_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.registry.Release(sess.ID())
		log.Printf("[live] upgrade failed: %v", err)
		return
	}

	log.Printf("[live] new connection session=%s", sess.ID())

	w2 := &worker{
		handler: h,
		sess:    sess,
		conn:    conn,
		emitter: newEmitter(conn),
	}
	w2.run(r.Context())
}

// worker is the single goroutine that owns one session: it reads the
// inbound stream, mutates the session's buffer and timestamp, and is
// the only producer of that session's outbound events.
type worker struct {
	handler  *Handler
	sess     *session.Session
	conn     *websocket.Conn
	emitter  *emitter
	teardown sync.Once
}

func (w *worker) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer w.release(cancel)

	w.conn.SetReadDeadline(time.Now().Add(readTimeout))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go w.pingLoop(ctx)

	if err := w.emitter.Send(connectionEstablishedEvent{
		Type:     "connection_established",
		ClientID: w.sess.ID(),
		Message:  "Connected to live call insights",
	}); err != nil {
		log.Printf("[live] handshake send failed session=%s: %v", w.sess.ID(), err)
		return
	}
	w.sess.Activate()

	malformed := 0
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[live] read error session=%s: %v", w.sess.ID(), err)
			}
			return
		}
		w.conn.SetReadDeadline(time.Now().Add(readTimeout))

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			malformed++
			log.Printf("[live] dropping malformed message session=%s (%d consecutive): %v", w.sess.ID(), malformed, err)
			if malformed >= w.handler.malformedLimit {
				log.Printf("[live] malformed message storm, closing session=%s", w.sess.ID())
				return
			}
			continue
		}
		malformed = 0

		if err := w.handleMessage(ctx, &msg); err != nil {
			// Only transport failures bubble up this far.
			log.Printf("[live] send failed session=%s: %v", w.sess.ID(), err)
			return
		}
	}
}

// release tears the session down exactly once: cancel any in-flight
// backend call, drop the registry record, close the socket.
func (w *worker) release(cancel context.CancelFunc) {
	w.teardown.Do(func() {
		cancel()
		w.handler.registry.Release(w.sess.ID())
		w.conn.Close()
		log.Printf("[live] connection closed session=%s", w.sess.ID())
	})
}

func (w *worker) handleMessage(ctx context.Context, msg *inboundMessage) error {
	switch msg.Type {
	case "audio_data":
		return w.handleAudio(ctx, msg)
	case "transcript_data":
		return w.handleTranscript(msg)
	default:
		// Unknown types are discarded, the session stays open.
		return nil
	}
}

func (w *worker) handleAudio(ctx context.Context, msg *inboundMessage) error {
	chunk, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		log.Printf("[live] audio decode failed session=%s: %v", w.sess.ID(), err)
		return w.emitter.Send(errorEvent{
			Type:    "error",
			Message: "Audio processing error: invalid base64 payload",
		})
	}

	w.sess.Append(chunk)

	transcript := ""
	if w.handler.limiter.ShouldDispatch(w.sess) {
		transcript = w.handler.transcriber.Transcribe(ctx, w.sess.Flush(), msg.UseRealTranscription)
	}

	return w.sendInsights(transcript)
}

func (w *worker) handleTranscript(msg *inboundMessage) error {
	return w.sendInsights(msg.Data)
}

// sendInsights emits one live_insights event for the processed message.
// An empty transcript still produces an event with empty insights; it
// doubles as a keep-alive.
func (w *worker) sendInsights(transcript string) error {
	var insights any = struct{}{}
	if strings.TrimSpace(transcript) != "" {
		insights = insight.Analyze(transcript)
	}

	return w.emitter.Send(liveInsightsEvent{
		Type:       "live_insights",
		Transcript: transcript,
		Insights:   insights,
		Timestamp:  eventTimestamp(),
	})
}

func (w *worker) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.emitter.Ping(); err != nil {
				return
			}
		}
	}
}

func eventTimestamp() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
