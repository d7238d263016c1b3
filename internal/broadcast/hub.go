package broadcast

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/dandantas/tablescout/internal/metrics"
	"github.com/dandantas/tablescout/internal/model"
	"github.com/google/uuid"
)

// DefaultQueueSize is the per-connection outbound queue capacity
const DefaultQueueSize = 64

var ErrUnknownConnection = errors.New("unknown connection")

// SnapshotFunc returns the current state of a job as a job_update, or false
// when there is nothing to send.
type SnapshotFunc func() (model.Message, bool)

// Hub owns the connection registry and the job subscription map. Publishing
// never blocks on a subscriber: each connection has its own bounded queue
// and writer goroutine, and a connection whose send fails is removed.
type Hub struct {
	mu          sync.RWMutex
	conns       map[string]*connection
	subscribers map[string]map[string]*connection // job id -> connection id -> connection
	queueSize   int
	closed      bool
	wg          sync.WaitGroup
}

// NewHub creates a new hub
func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		conns:       make(map[string]*connection),
		subscribers: make(map[string]map[string]*connection),
		queueSize:   queueSize,
	}
}

// Connect registers a transport and starts its writer
func (h *Hub) Connect(transport Transport) string {
	c := newConnection(uuid.New().String(), transport, h.queueSize)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		transport.Close()
		return c.id
	}
	h.conns[c.id] = c
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		c.writeLoop(h.prune)
	}()

	metrics.ConnectionOpened()
	slog.Info("Live connection registered", "connection_id", c.id)
	return c.id
}

// Disconnect removes a connection and all of its subscriptions. Unknown ids are ignored.
func (h *Hub) Disconnect(connID string) {
	if h.remove(connID) {
		slog.Info("Live connection removed", "connection_id", connID)
	}
}

// Subscribe attaches a connection to a job and queues a subscribed ack. When
// snapshot is non-nil its message is queued right after the ack, under the
// same lock that publishers take, so the subscriber never sees a state older
// than one it was already sent. Subscribing twice is harmless.
func (h *Hub) Subscribe(connID, jobID string, snapshot SnapshotFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, exists := h.conns[connID]
	if !exists {
		return ErrUnknownConnection
	}

	subs, exists := h.subscribers[jobID]
	if !exists {
		subs = make(map[string]*connection)
		h.subscribers[jobID] = subs
	}
	subs[connID] = c
	c.jobs[jobID] = struct{}{}

	h.deliver(c, model.NewSubscribed(jobID))
	if snapshot != nil {
		if msg, ok := snapshot(); ok {
			h.deliver(c, msg)
		}
	}

	slog.Debug("Connection subscribed to job", "connection_id", connID, "job_id", jobID)
	return nil
}

// Unsubscribe detaches a connection from a job
func (h *Hub) Unsubscribe(connID, jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, exists := h.subscribers[jobID]; exists {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(h.subscribers, jobID)
		}
	}
	if c, exists := h.conns[connID]; exists {
		delete(c.jobs, jobID)
	}
}

// Publish queues msg for every connection subscribed to jobID
func (h *Hub) Publish(jobID string, msg model.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.subscribers[jobID] {
		h.deliver(c, msg)
	}
}

// Broadcast queues msg for every connection regardless of subscriptions
func (h *Hub) Broadcast(msg model.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.conns {
		h.deliver(c, msg)
	}
}

// Send queues msg for a single connection
func (h *Hub) Send(connID string, msg model.Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, exists := h.conns[connID]
	if !exists {
		return ErrUnknownConnection
	}
	h.deliver(c, msg)
	return nil
}

// Stats describes the registry
type Stats struct {
	Connections   int            `json:"connections"`
	Jobs          int            `json:"jobs"`
	Subscriptions map[string]int `json:"subscriptions"`
}

// Stats returns connection and subscription counts
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make(map[string]int, len(h.subscribers))
	for jobID, conns := range h.subscribers {
		subs[jobID] = len(conns)
	}
	return Stats{
		Connections:   len(h.conns),
		Jobs:          len(h.subscribers),
		Subscriptions: subs,
	}
}

// Subscribers returns the number of connections subscribed to jobID
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[jobID])
}

// Close disconnects every connection and waits for their writers to exit
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.remove(id)
	}
	h.wg.Wait()
}

// deliver must be called with h.mu held
func (h *Hub) deliver(c *connection, msg model.Message) {
	if !c.enqueue(msg) {
		metrics.MessageDropped()
		slog.Warn("Connection queue full, dropped oldest message",
			"connection_id", c.id,
			"job_id", msg.JobID,
		)
	}
}

// prune is called by a writer whose transport failed
func (h *Hub) prune(c *connection, err error) {
	if h.remove(c.id) {
		metrics.ConnectionPruned()
		slog.Warn("Pruned live connection after send failure",
			"connection_id", c.id,
			"error", err,
		)
	}
}

func (h *Hub) remove(connID string) bool {
	h.mu.Lock()
	c, exists := h.conns[connID]
	if !exists {
		h.mu.Unlock()
		return false
	}
	delete(h.conns, connID)
	for jobID := range c.jobs {
		if subs, ok := h.subscribers[jobID]; ok {
			delete(subs, connID)
			if len(subs) == 0 {
				delete(h.subscribers, jobID)
			}
		}
	}
	h.mu.Unlock()

	c.close()
	metrics.ConnectionClosed()
	return true
}
