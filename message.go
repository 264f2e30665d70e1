package go_bcapi

import "fmt"

// Message is one decoded BCAPI exchange unit: a kind tag, the sequence
// number correlating a reply to its request, and the raw payload bytes.
//
// The payload is always the uncompressed form; compression is a transport
// detail handled entirely by the frame codec. Sequence 0 marks an
// unsolicited push from the node rather than a reply.
type Message struct {
	Kind     uint8
	Sequence uint32
	Payload  []byte
}

// NewMessage creates a Message with the given kind, sequence and payload.
// The payload slice is used as-is; callers must not mutate it afterwards.
func NewMessage(kind uint8, sequence uint32, payload []byte) *Message {
	return &Message{
		Kind:     kind,
		Sequence: sequence,
		Payload:  payload,
	}
}

// PayloadStream returns a fresh Stream positioned at the start of the
// payload for field-by-field decoding.
func (m *Message) PayloadStream() *Stream {
	return NewStream(m.Payload)
}

// IsReply reports whether the message answers a client request. Unsolicited
// pushes carry sequence BCAPI_SEQUENCE_NONE.
func (m *Message) IsReply() bool {
	return m.Sequence != BCAPI_SEQUENCE_NONE
}

// String returns a short human-readable summary for logging.
func (m *Message) String() string {
	return fmt.Sprintf("%s(seq=%d, %d bytes)", getMessageKindName(m.Kind), m.Sequence, len(m.Payload))
}
