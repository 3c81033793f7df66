package transport

import (
	"errors"
	"testing"
)

func TestQueueOrder(t *testing.T) {
	q := newOutboundQueue(8)

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Push(Message{Type: TypeNewMatch, RecordID: id}); err != nil {
			t.Fatal(err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("len = %d, want 3", q.Len())
	}

	for _, want := range []string{"a", "b", "c"} {
		msg, ok := q.Peek()
		if !ok {
			t.Fatal("queue unexpectedly empty")
		}
		if msg.RecordID != want {
			t.Fatalf("head = %s, want %s", msg.RecordID, want)
		}
		q.Ack()
	}
	if _, ok := q.Peek(); ok {
		t.Fatal("queue should be drained")
	}
}

func TestQueuePeekWithoutAckKeepsHead(t *testing.T) {
	q := newOutboundQueue(8)
	if err := q.Push(Message{RecordID: "a"}); err != nil {
		t.Fatal(err)
	}

	// A failed write peeks but never acks; the message must stay put.
	q.Peek()
	q.Peek()
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1", q.Len())
	}
}

func TestQueueFull(t *testing.T) {
	q := newOutboundQueue(1)
	if err := q.Push(Message{RecordID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := q.Push(Message{RecordID: "b"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}
