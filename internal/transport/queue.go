package transport

import (
	"errors"
	"sync"

	"scout-sync/internal/metrics"
)

var ErrQueueFull = errors.New("outbound queue full")

// outboundQueue is a bounded FIFO of messages waiting for the live channel.
// The writer peeks the head and acknowledges it only after a successful
// write, so a send that fails mid-flight is neither dropped nor duplicated.
type outboundQueue struct {
	mu       sync.Mutex
	messages []Message
	capacity int
	notify   chan struct{}
}

func newOutboundQueue(capacity int) *outboundQueue {
	return &outboundQueue{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

func (q *outboundQueue) Push(msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) >= q.capacity {
		return ErrQueueFull
	}
	q.messages = append(q.messages, msg)
	metrics.QueueDepth.Set(float64(len(q.messages)))
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Peek returns the head without removing it.
func (q *outboundQueue) Peek() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return Message{}, false
	}
	return q.messages[0], true
}

// Ack removes the head after a confirmed write.
func (q *outboundQueue) Ack() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) > 0 {
		q.messages = q.messages[1:]
	}
	metrics.QueueDepth.Set(float64(len(q.messages)))
}

func (q *outboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Notify signals when the queue may have work.
func (q *outboundQueue) Notify() <-chan struct{} {
	return q.notify
}
