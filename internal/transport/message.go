package transport

import (
	"encoding/json"
	"time"

	"scout-sync/internal/domain"
)

type MessageType string

const (
	// TypeNewMatch broadcasts one freshly scouted record.
	TypeNewMatch MessageType = "new_match"
	// TypeDeleteMatch broadcasts an explicit record deletion.
	TypeDeleteMatch MessageType = "delete_match"
	// TypeSyncRequest asks the server to push its current state.
	TypeSyncRequest MessageType = "sync_request"
	// TypeSyncCompleted announces a finished server-side sync with the teams
	// it touched.
	TypeSyncCompleted MessageType = "sync_completed"
	// TypeConnected is the server's greeting after a successful handshake.
	TypeConnected MessageType = "connected"
)

// Message is the live-channel frame. Every frame carries a type and a
// timestamp; unknown types are ignored by receivers, never fatal.
type Message struct {
	Type      MessageType         `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Origin    string              `json:"origin,omitempty"`
	Match     *domain.MatchRecord `json:"match_data,omitempty"`
	RecordID  string              `json:"record_id,omitempty"`
	Teams     []string            `json:"teams,omitempty"`
}

func NewMatchMessage(origin string, rec *domain.MatchRecord) Message {
	return Message{Type: TypeNewMatch, Timestamp: time.Now().UTC(), Origin: origin, Match: rec}
}

func DeleteMatchMessage(origin, recordID string) Message {
	return Message{Type: TypeDeleteMatch, Timestamp: time.Now().UTC(), Origin: origin, RecordID: recordID}
}

func SyncRequestMessage(origin string) Message {
	return Message{Type: TypeSyncRequest, Timestamp: time.Now().UTC(), Origin: origin}
}

func decodeMessage(data []byte) (Message, error) {
	var msg Message
	err := json.Unmarshal(data, &msg)
	return msg, err
}

// Handler consumes one inbound message. Handlers run on the session's read
// loop; long work belongs in the handler's own goroutine.
type Handler func(Message)
