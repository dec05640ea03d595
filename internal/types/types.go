package types

import (
	"time"

	"acquifer-go/internal/imtcp"
	"acquifer-go/internal/metadata"
)

// Event is one acquired image announced by the instrument, with the metadata
// decoded from its filename.
type Event struct {
	Filename   string          `json:"filename" cbor:"filename"`
	Record     metadata.Record `json:"record" cbor:"record"`
	ReceivedAt time.Time       `json:"received_at" cbor:"received_at"`
}

// UIMessage is what the websocket clients receive.
type UIMessage struct {
	Type   string          `json:"type"`
	Event  *Event          `json:"event,omitempty"`
	Status *imtcp.Snapshot `json:"status,omitempty"`
}

func EventMessage(ev Event) UIMessage {
	return UIMessage{Type: "image", Event: &ev}
}

func StatusMessage(s imtcp.Snapshot) UIMessage {
	return UIMessage{Type: "status", Status: &s}
}
