package broadcast

import (
	"sync"

	"github.com/dandantas/tablescout/internal/model"
)

// Transport writes messages to one live subscriber. Send may block; the hub
// calls it from a dedicated goroutine per connection.
type Transport interface {
	Send(msg model.Message) error
	Close() error
}

// connection owns a bounded outbound queue drained by a single writer goroutine
type connection struct {
	id        string
	transport Transport
	capacity  int

	mu      sync.Mutex
	queue   []model.Message
	jobs    map[string]struct{}
	notify  chan struct{}
	done    chan struct{}
	dropped int

	closeOnce sync.Once
}

func newConnection(id string, transport Transport, capacity int) *connection {
	if capacity <= 0 {
		capacity = 1
	}
	return &connection{
		id:        id,
		transport: transport,
		capacity:  capacity,
		queue:     make([]model.Message, 0, capacity),
		jobs:      make(map[string]struct{}),
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// enqueue never blocks. When the queue is full the oldest message is
// dropped and false is returned.
func (c *connection) enqueue(msg model.Message) bool {
	c.mu.Lock()
	kept := true
	if len(c.queue) >= c.capacity {
		c.queue = c.queue[1:]
		c.dropped++
		kept = false
	}
	c.queue = append(c.queue, msg)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return kept
}

// next pops the oldest queued message
func (c *connection) next() (model.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return model.Message{}, false
	}
	msg := c.queue[0]
	c.queue[0] = model.Message{}
	c.queue = c.queue[1:]
	return msg, true
}

// writeLoop drains the queue until the connection is closed or a send fails
func (c *connection) writeLoop(onFailure func(*connection, error)) {
	for {
		select {
		case <-c.done:
			return
		case <-c.notify:
		}

		for {
			select {
			case <-c.done:
				return
			default:
			}

			msg, ok := c.next()
			if !ok {
				break
			}
			if err := c.transport.Send(msg); err != nil {
				onFailure(c, err)
				return
			}
		}
	}
}

// close stops the writer and closes the transport. Safe to call more than once.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.transport.Close()
	})
}
