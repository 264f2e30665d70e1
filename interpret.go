package go_bcapi

import "fmt"

// Response interpretation
//
// A reply message decodes into exactly one of a closed set of typed
// results: a StateDocument for StateReply, a ConfigResult for ConfigAck,
// or a DeviceError for Error. Callers dispatch with a type switch; there
// is no generic payload accessor.

// Reply is a decoded response payload. The implementation set is closed:
// *StateDocument and *ConfigResult.
type Reply interface {
	replyMessageKind() uint8
}

func (d *StateDocument) replyMessageKind() uint8 { return BCAPI_MSG_STATE_REPLY }
func (r *ConfigResult) replyMessageKind() uint8  { return BCAPI_MSG_CONFIG_ACK }

// ConfigResult is the node's acknowledgment of a ConfigSet or Login
// request: a status, diagnostic text, and how many entries were applied.
// Logins report zero applied entries.
type ConfigResult struct {
	Status  uint16
	Message string
	Applied uint16
}

// Ok reports whether the node accepted the request.
func (r *ConfigResult) Ok() bool {
	return r.Status == BCAPI_STATUS_SUCCESS
}

// Err returns nil for an accepted request and the corresponding
// DeviceError otherwise.
func (r *ConfigResult) Err() error {
	if r.Ok() {
		return nil
	}
	return NewDeviceError(r.Status, r.Message)
}

// Interpret decodes a reply message into its typed form:
//
//	StateReply → *StateDocument
//	ConfigAck  → *ConfigResult (inspect Status; a rejection still decodes)
//	Error      → nil, *DeviceError
//
// Request kinds are not replies and yield a ProtocolError; a node echoing
// our own requests back means the stream is desynchronized.
func Interpret(msg *Message) (Reply, error) {
	if msg == nil {
		return nil, ErrInvalidArgument
	}
	switch msg.Kind {
	case BCAPI_MSG_STATE_REPLY:
		doc, err := DecodeStateDocument(msg.PayloadStream())
		if err != nil {
			return nil, NewFrameError(msg.Kind, "parsing", err)
		}
		return doc, nil
	case BCAPI_MSG_CONFIG_ACK:
		return decodeConfigResult(msg.PayloadStream())
	case BCAPI_MSG_ERROR:
		status, text, err := decodeErrorReply(msg.PayloadStream())
		if err != nil {
			return nil, NewFrameError(msg.Kind, "parsing", err)
		}
		return nil, NewDeviceError(status, text)
	default:
		return nil, NewProtocolError(
			fmt.Sprintf("%s is not a reply kind", getMessageKindName(msg.Kind)), int(msg.Kind), false)
	}
}

func decodeConfigResult(stream *Stream) (*ConfigResult, error) {
	r := &ConfigResult{}
	var err error
	if r.Status, err = stream.ReadUint16(); err != nil {
		return nil, NewFrameError(BCAPI_MSG_CONFIG_ACK, "parsing", err)
	}
	if r.Message, err = stream.ReadString16(); err != nil {
		return nil, NewFrameError(BCAPI_MSG_CONFIG_ACK, "parsing", err)
	}
	if r.Applied, err = stream.ReadUint16(); err != nil {
		return nil, NewFrameError(BCAPI_MSG_CONFIG_ACK, "parsing", err)
	}
	return r, nil
}

func decodeErrorReply(stream *Stream) (uint16, string, error) {
	status, err := stream.ReadUint16()
	if err != nil {
		return 0, "", err
	}
	text, err := stream.ReadString16()
	if err != nil {
		return 0, "", err
	}
	return status, text, nil
}

// Node-side reply builders, exposed for test harnesses that simulate the
// node end of a session.

// BuildStateReply encodes a document as a StateReply to the given request
// sequence.
func BuildStateReply(doc *StateDocument, sequence uint32) (*Message, error) {
	if doc == nil {
		return nil, ErrInvalidArgument
	}
	payload := NewStream(make([]byte, 0, 256))
	if err := doc.Encode(payload); err != nil {
		return nil, NewFrameError(BCAPI_MSG_STATE_REPLY, "encoding", err)
	}
	return NewMessage(BCAPI_MSG_STATE_REPLY, sequence, payload.Bytes()), nil
}

// BuildConfigAck encodes an acknowledgment to the given request sequence.
func BuildConfigAck(status uint16, text string, applied uint16, sequence uint32) (*Message, error) {
	payload := NewStream(make([]byte, 0, 16))
	if err := payload.WriteUint16(status); err != nil {
		return nil, err
	}
	if err := payload.WriteString16(text); err != nil {
		return nil, NewFrameError(BCAPI_MSG_CONFIG_ACK, "encoding", err)
	}
	if err := payload.WriteUint16(applied); err != nil {
		return nil, err
	}
	return NewMessage(BCAPI_MSG_CONFIG_ACK, sequence, payload.Bytes()), nil
}

// BuildErrorReply encodes an Error frame for the given request sequence.
func BuildErrorReply(status uint16, text string, sequence uint32) (*Message, error) {
	payload := NewStream(make([]byte, 0, 16))
	if err := payload.WriteUint16(status); err != nil {
		return nil, err
	}
	if err := payload.WriteString16(text); err != nil {
		return nil, NewFrameError(BCAPI_MSG_ERROR, "encoding", err)
	}
	return NewMessage(BCAPI_MSG_ERROR, sequence, payload.Bytes()), nil
}
