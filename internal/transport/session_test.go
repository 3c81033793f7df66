package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scout-sync/internal/config"
	"scout-sync/internal/constants"
	"scout-sync/internal/identity"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// wsServer is a fake live-channel endpoint. Every inbound frame lands on
// received; frames pushed to outbound are written to the client.
type wsServer struct {
	*httptest.Server
	received chan Message
	outbound chan Message
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ws := &wsServer{
		received: make(chan Message, 64),
		outbound: make(chan Message, 64),
	}

	ws.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for msg := range ws.outbound {
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			}
		}()

		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			ws.received <- msg
		}
	}))
	t.Cleanup(ws.Server.Close)
	return ws
}

func (ws *wsServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ws.URL, "http")
}

func newTestSession(t *testing.T, url string) (*Session, identity.DeviceIdentity) {
	t.Helper()
	device := identity.DeviceIdentity{ID: "device-under-test"}
	s := NewSession(&config.Config{LiveURL: url, ServerURL: "http://unused"}, device, zerolog.Nop())
	t.Cleanup(s.Stop)
	return s, device
}

func waitFor(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

// Messages sent while disconnected must survive intact and flush in original
// submission order once the channel comes up.
func TestOfflineQueueFlushesInOrder(t *testing.T) {
	server := newWSServer(t)
	session, _ := newTestSession(t, server.wsURL())

	for _, id := range []string{"rec-1", "rec-2", "rec-3"} {
		if err := session.Send(Message{Type: TypeNewMatch, Timestamp: time.Now(), RecordID: id}); err != nil {
			t.Fatal(err)
		}
	}

	if err := session.Start(t.Context()); err != nil {
		t.Fatal(err)
	}

	// The session pulls server state first thing after connecting.
	first := waitFor(t, server.received)
	if first.Type != TypeSyncRequest {
		t.Fatalf("first frame = %s, want sync_request", first.Type)
	}

	for _, want := range []string{"rec-1", "rec-2", "rec-3"} {
		msg := waitFor(t, server.received)
		if msg.Type != TypeNewMatch || msg.RecordID != want {
			t.Fatalf("got %s/%s, want new_match/%s", msg.Type, msg.RecordID, want)
		}
	}

	select {
	case msg := <-server.received:
		t.Fatalf("unexpected duplicate frame %s/%s", msg.Type, msg.RecordID)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestEchoSuppression(t *testing.T) {
	server := newWSServer(t)
	session, device := newTestSession(t, server.wsURL())

	dispatched := make(chan Message, 8)
	session.On(TypeNewMatch, func(msg Message) { dispatched <- msg })

	if err := session.Start(t.Context()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, server.received) // sync_request

	server.outbound <- Message{Type: TypeNewMatch, Timestamp: time.Now(), Origin: device.ID, RecordID: "echoed"}
	server.outbound <- Message{Type: TypeNewMatch, Timestamp: time.Now(), Origin: "other-device", RecordID: "novel"}

	msg := waitFor(t, dispatched)
	if msg.RecordID != "novel" {
		t.Fatalf("dispatched %s, want the non-echo frame", msg.RecordID)
	}
	select {
	case msg := <-dispatched:
		t.Fatalf("echoed frame %s must not be dispatched", msg.RecordID)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestUnknownMessageTypeIgnored(t *testing.T) {
	server := newWSServer(t)
	session, _ := newTestSession(t, server.wsURL())

	dispatched := make(chan Message, 8)
	session.On(TypeSyncCompleted, func(msg Message) { dispatched <- msg })

	if err := session.Start(t.Context()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, server.received)

	server.outbound <- Message{Type: "heartbeat_v2", Timestamp: time.Now(), Origin: "server"}
	server.outbound <- Message{Type: TypeSyncCompleted, Timestamp: time.Now(), Origin: "server", Teams: []string{"254"}}

	msg := waitFor(t, dispatched)
	if msg.Type != TypeSyncCompleted {
		t.Fatalf("dispatched %s, want sync_completed", msg.Type)
	}
}

func TestConnectHookFires(t *testing.T) {
	server := newWSServer(t)
	session, _ := newTestSession(t, server.wsURL())

	connected := make(chan struct{}, 1)
	session.OnConnect(func() { connected <- struct{}{} })

	if err := session.Start(t.Context()); err != nil {
		t.Fatal(err)
	}

	select {
	case <-connected:
	case <-time.After(3 * time.Second):
		t.Fatal("connect hook never fired")
	}
	if session.State() != StateConnected {
		t.Fatalf("state = %s, want connected", session.State())
	}
}

func TestSendWhileDisconnectedQueues(t *testing.T) {
	session, _ := newTestSession(t, "ws://127.0.0.1:1/ws")

	if err := session.Send(Message{Type: TypeNewMatch, RecordID: "rec-1"}); err != nil {
		t.Fatalf("send while disconnected must not fail: %v", err)
	}
	if session.QueueLen() != 1 {
		t.Fatalf("queue len = %d, want 1", session.QueueLen())
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	d := constants.ReconnectBaseDelay
	for i := 0; i < 20; i++ {
		d = nextDelay(d)
		if d > constants.ReconnectMaxDelay {
			t.Fatalf("delay %v exceeds cap %v", d, constants.ReconnectMaxDelay)
		}
	}
	if d != constants.ReconnectMaxDelay {
		t.Fatalf("delay should settle at the cap, got %v", d)
	}

	if got := nextDelay(constants.ReconnectBaseDelay); got != 2*constants.ReconnectBaseDelay {
		t.Fatalf("delay should double, got %v", got)
	}
}
