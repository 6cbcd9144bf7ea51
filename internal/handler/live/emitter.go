package live

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

type connectionEstablishedEvent struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

type liveInsightsEvent struct {
	Type       string  `json:"type"`
	Transcript string  `json:"transcript"`
	Insights   any     `json:"insights"`
	Timestamp  float64 `json:"timestamp"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// emitter serializes all writes to one session's connection. The worker
// and the ping loop share the socket, and gorilla permits only one
// concurrent writer, so every write goes through the mutex. Events
// therefore leave in exactly the order Send is called.
type emitter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newEmitter(conn *websocket.Conn) *emitter {
	return &emitter{conn: conn}
}

// Send writes one event as one JSON message. A returned error means the
// transport is gone; the caller is expected to tear the session down,
// not retry.
func (e *emitter) Send(event any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return e.conn.WriteJSON(event)
}

// Ping sends a websocket ping control frame.
func (e *emitter) Ping() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return e.conn.WriteMessage(websocket.PingMessage, nil)
}
