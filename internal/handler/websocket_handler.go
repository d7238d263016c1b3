package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dandantas/tablescout/internal/broadcast"
	"github.com/dandantas/tablescout/internal/model"
	"github.com/gorilla/websocket"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// LiveHub is the part of the broadcaster the live channel drives
type LiveHub interface {
	Connect(transport broadcast.Transport) string
	Disconnect(connID string)
	Subscribe(connID, jobID string, snapshot broadcast.SnapshotFunc) error
	Send(connID string, msg model.Message) error
	StatsReporter
}

// StatsReporter exposes connection counts
type StatsReporter interface {
	Stats() broadcast.Stats
}

// WebSocketHandler serves the live channel
type WebSocketHandler struct {
	hub          LiveHub
	jobs         JobService
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
}

// NewWebSocketHandler creates a new live channel handler
func NewWebSocketHandler(hub LiveHub, jobs JobService, writeTimeout time.Duration) *WebSocketHandler {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &WebSocketHandler{
		hub:  hub,
		jobs: jobs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Same origin policy as the CORS middleware, which allows any origin by default
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
	}
}

// inbound is a message sent by an observer
type inbound struct {
	Type  model.MessageType `json:"type"`
	JobID string            `json:"job_id"`
}

// Serve handles GET /ws
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Failed to upgrade live connection", "error", err)
		return
	}

	transport := &wsTransport{conn: conn, writeTimeout: h.writeTimeout, done: make(chan struct{})}
	connID := h.hub.Connect(transport)
	defer h.hub.Disconnect(connID)

	go transport.pingLoop()
	h.readLoop(r.Context(), conn, connID)
}

// Stats handles GET /ws/stats
func (h *WebSocketHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Stats())
}

func (h *WebSocketHandler) readLoop(ctx context.Context, conn *websocket.Conn, connID string) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("Live connection read failed", "connection_id", connID, "error", err)
			}
			return
		}
		// Any inbound traffic counts as liveness
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(connID, model.NewErrorMessage("", "invalid message format"))
			continue
		}
		h.handle(ctx, connID, msg)
	}
}

func (h *WebSocketHandler) handle(ctx context.Context, connID string, msg inbound) {
	switch msg.Type {
	case model.MessageSubscribeJob:
		h.subscribe(ctx, connID, msg.JobID)
	case model.MessagePing:
		h.reply(connID, model.NewPong())
	default:
		h.reply(connID, model.NewErrorMessage(msg.JobID, "unknown message type"))
	}
}

func (h *WebSocketHandler) subscribe(ctx context.Context, connID, jobID string) {
	if jobID == "" {
		h.reply(connID, model.NewErrorMessage("", "job_id is required"))
		return
	}

	// Archived jobs are no longer in memory; their stored snapshot is final
	job, err := h.jobs.Job(ctx, jobID)
	if errors.Is(err, model.ErrJobNotFound) {
		h.reply(connID, model.NewErrorMessage(jobID, "job not found"))
		return
	}
	if err != nil {
		h.reply(connID, model.NewErrorMessage(jobID, "job lookup failed"))
		return
	}

	snapshot := func() (model.Message, bool) {
		if msg, ok := h.jobs.Snapshot(jobID); ok {
			return msg, true
		}
		return model.NewJobUpdate(job, model.EventNone, nil), true
	}
	if err := h.hub.Subscribe(connID, jobID, snapshot); err != nil {
		slog.Debug("Subscribe on closed connection", "connection_id", connID, "job_id", jobID)
	}
}

func (h *WebSocketHandler) reply(connID string, msg model.Message) {
	if err := h.hub.Send(connID, msg); err != nil {
		slog.Debug("Reply on closed connection", "connection_id", connID)
	}
}

// wsTransport adapts a websocket connection to the broadcaster. Send is
// only called by the connection's writer goroutine; control frames may be
// written concurrently.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	done         chan struct{}
	closeOnce    sync.Once
}

func (t *wsTransport) Send(msg model.Message) error {
	t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.conn.WriteJSON(msg)
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		deadline := time.Now().Add(time.Second)
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = t.conn.Close()
	})
	return err
}

func (t *wsTransport) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeTimeout)); err != nil {
				t.conn.Close()
				return
			}
		case <-t.done:
			return
		}
	}
}
