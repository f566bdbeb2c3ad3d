package hub

import "github.com/gofiber/websocket/v2"

// MessageType selects the websocket frame a message is written as.
type MessageType int

const (
	JSONMessage   MessageType = iota // status snapshots and log entries
	BinaryMessage                    // JPEG preview frames
)

// Message is one broadcast payload. Data is shared by every client and
// must not be modified after broadcasting.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps raw bytes such as a JPEG frame.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

func (m Message) frameType() int {
	if m.Type == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
