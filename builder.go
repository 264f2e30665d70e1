package go_bcapi

import "fmt"

// Message builders
//
// Each builder validates its inputs, encodes a complete payload, and
// returns a Message ready for framing. A builder either succeeds with a
// fully formed message or fails before anything touches the codec; there
// is no partial output.
//
// Built requests carry sequence BCAPI_SEQUENCE_NONE; the session stamps
// the real sequence number when it registers the in-flight call.

// BuildLogin constructs a Login request for the given identity.
//
// Payload: [role][version][serial] as 1-byte length-prefixed strings,
// the options mapping, then the 16-byte nonce and 32-byte credential
// digest. A fresh nonce is drawn for every call, so two logins with the
// same identity produce different payloads.
func BuildLogin(identity *LoginIdentity) (*Message, error) {
	if err := identity.validate(); err != nil {
		return nil, err
	}

	nonce, err := newLoginNonce()
	if err != nil {
		return nil, NewFrameError(BCAPI_MSG_LOGIN, "building", err)
	}
	digest, err := deriveLoginDigest(identity.Credential, identity.Role, nonce)
	if err != nil {
		return nil, NewFrameError(BCAPI_MSG_LOGIN, "building", err)
	}

	payload := NewStream(make([]byte, 0, 64))
	if err := payload.WriteLenPrefixedString(identity.Role); err != nil {
		return nil, NewFrameError(BCAPI_MSG_LOGIN, "encoding", err)
	}
	if err := payload.WriteLenPrefixedString(BCAPI_CLIENT_VERSION); err != nil {
		return nil, NewFrameError(BCAPI_MSG_LOGIN, "encoding", err)
	}
	if err := payload.WriteLenPrefixedString(identity.Serial); err != nil {
		return nil, NewFrameError(BCAPI_MSG_LOGIN, "encoding", err)
	}
	if err := payload.WriteMapping(identity.Options); err != nil {
		return nil, NewFrameError(BCAPI_MSG_LOGIN, "encoding", err)
	}
	if _, err := payload.Write(nonce); err != nil {
		return nil, NewFrameError(BCAPI_MSG_LOGIN, "encoding", err)
	}
	if _, err := payload.Write(digest[:]); err != nil {
		return nil, NewFrameError(BCAPI_MSG_LOGIN, "encoding", err)
	}

	return NewMessage(BCAPI_MSG_LOGIN, BCAPI_SEQUENCE_NONE, payload.Bytes()), nil
}

// LoginRequest is the decoded form of a Login payload, as a node sees it.
// Exposed for test harnesses that simulate the node.
type LoginRequest struct {
	Role    string
	Version string
	Serial  string
	Options map[string]string
	Nonce   []byte
	Digest  []byte
}

// DecodeLoginRequest parses a Login payload.
func DecodeLoginRequest(stream *Stream) (*LoginRequest, error) {
	req := &LoginRequest{}
	var err error
	if req.Role, err = stream.ReadLenPrefixedString(); err != nil {
		return nil, NewFrameError(BCAPI_MSG_LOGIN, "parsing", err)
	}
	if req.Version, err = stream.ReadLenPrefixedString(); err != nil {
		return nil, NewFrameError(BCAPI_MSG_LOGIN, "parsing", err)
	}
	if req.Serial, err = stream.ReadLenPrefixedString(); err != nil {
		return nil, NewFrameError(BCAPI_MSG_LOGIN, "parsing", err)
	}
	if req.Options, err = stream.ReadMapping(); err != nil {
		return nil, NewFrameError(BCAPI_MSG_LOGIN, "parsing", err)
	}
	req.Nonce = make([]byte, AUTH_NONCE_SIZE)
	n, err := stream.Read(req.Nonce)
	if err != nil || n != AUTH_NONCE_SIZE {
		return nil, NewFrameError(BCAPI_MSG_LOGIN, "parsing", fmt.Errorf("truncated nonce"))
	}
	req.Digest = make([]byte, AUTH_DIGEST_SIZE)
	n, err = stream.Read(req.Digest)
	if err != nil || n != AUTH_DIGEST_SIZE {
		return nil, NewFrameError(BCAPI_MSG_LOGIN, "parsing", fmt.Errorf("truncated digest"))
	}
	return req, nil
}

// BuildStateQuery constructs a full state query. The payload is empty;
// the node answers with its entire state tree.
func BuildStateQuery() *Message {
	return NewMessage(BCAPI_MSG_STATE_QUERY, BCAPI_SEQUENCE_NONE, nil)
}

// BuildStateQueryFiltered constructs a server-side filtered state query.
// An empty filter is legal and means "everything", matching the node's
// interpretation of a zero-count path list.
func BuildStateQueryFiltered(filter *FilterSpec) (*Message, error) {
	if filter == nil {
		return nil, fmt.Errorf("%w: nil filter", ErrInvalidArgument)
	}
	payload := NewStream(make([]byte, 0, 32))
	if err := filter.Encode(payload); err != nil {
		return nil, NewFrameError(BCAPI_MSG_STATE_QUERY_FILTERED, "encoding", err)
	}
	return NewMessage(BCAPI_MSG_STATE_QUERY_FILTERED, BCAPI_SEQUENCE_NONE, payload.Bytes()), nil
}

// ConfigSet is an ordered batch of configuration writes. Setting a path
// twice replaces the earlier value in place, so the node applies each
// path at most once.
type ConfigSet struct {
	entries []configEntry
}

type configEntry struct {
	path string
	node StateNode // Tag and value fields; Name unused
}

// NewConfigSet creates an empty configuration batch.
func NewConfigSet() *ConfigSet {
	return &ConfigSet{}
}

// Len returns the number of entries in the batch.
func (c *ConfigSet) Len() int {
	return len(c.entries)
}

// Paths returns the target paths in batch order.
func (c *ConfigSet) Paths() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.path
	}
	return out
}

// SetString queues a string write at path.
func (c *ConfigSet) SetString(path, value string) error {
	return c.set(path, StateNode{Tag: BCAPI_TAG_STRING, Str: value})
}

// SetInt queues a signed integer write at path.
func (c *ConfigSet) SetInt(path string, value int64) error {
	return c.set(path, StateNode{Tag: BCAPI_TAG_INT, Int: value})
}

// SetUint queues an unsigned integer write at path.
func (c *ConfigSet) SetUint(path string, value uint64) error {
	return c.set(path, StateNode{Tag: BCAPI_TAG_UINT, Uint: value})
}

// SetBool queues a boolean write at path.
func (c *ConfigSet) SetBool(path string, value bool) error {
	return c.set(path, StateNode{Tag: BCAPI_TAG_BOOL, Bool: value})
}

// SetFloat queues a float write at path.
func (c *ConfigSet) SetFloat(path string, value float64) error {
	return c.set(path, StateNode{Tag: BCAPI_TAG_FLOAT, Float: value})
}

// SetBytes queues a raw bytes write at path.
func (c *ConfigSet) SetBytes(path string, value []byte) error {
	return c.set(path, StateNode{Tag: BCAPI_TAG_BYTES, Bytes: value})
}

func (c *ConfigSet) set(path string, node StateNode) error {
	if _, err := splitPath(path); err != nil {
		return err
	}
	for i := range c.entries {
		if c.entries[i].path == path {
			c.entries[i].node = node
			return nil
		}
	}
	c.entries = append(c.entries, configEntry{path: path, node: node})
	return nil
}

// Encode serializes the batch as a ConfigSet payload:
// [count:uint16] then per entry [path_len:1][path][tag:1][value].
func (c *ConfigSet) Encode(stream *Stream) error {
	if len(c.entries) > 0xffff {
		return fmt.Errorf("config batch too large: %d entries", len(c.entries))
	}
	if err := stream.WriteUint16(uint16(len(c.entries))); err != nil {
		return err
	}
	for _, e := range c.entries {
		if err := stream.WriteLenPrefixedString(e.path); err != nil {
			return err
		}
		if err := stream.WriteByte(e.node.Tag); err != nil {
			return err
		}
		if err := encodeScalar(stream, &e.node); err != nil {
			return err
		}
	}
	return nil
}

// DecodeConfigSet parses a ConfigSet payload back into a batch.
func DecodeConfigSet(stream *Stream) (*ConfigSet, error) {
	count, err := stream.ReadUint16()
	if err != nil {
		return nil, NewFrameError(BCAPI_MSG_CONFIG_SET, "parsing", err)
	}
	c := NewConfigSet()
	for i := 0; i < int(count); i++ {
		path, err := stream.ReadLenPrefixedString()
		if err != nil {
			return nil, NewFrameError(BCAPI_MSG_CONFIG_SET, "parsing", err)
		}
		tag, err := stream.ReadByte()
		if err != nil {
			return nil, NewFrameError(BCAPI_MSG_CONFIG_SET, "parsing", err)
		}
		node := StateNode{Tag: tag}
		if err := decodeScalar(stream, &node); err != nil {
			return nil, NewFrameError(BCAPI_MSG_CONFIG_SET, "parsing", err)
		}
		if err := c.set(path, node); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// BuildConfigSet constructs a ConfigSet request. An empty batch is
// rejected; sending a configuration request that changes nothing is a
// caller bug.
func BuildConfigSet(set *ConfigSet) (*Message, error) {
	if set == nil || set.Len() == 0 {
		return nil, fmt.Errorf("%w: empty config batch", ErrInvalidArgument)
	}
	payload := NewStream(make([]byte, 0, 64))
	if err := set.Encode(payload); err != nil {
		return nil, NewFrameError(BCAPI_MSG_CONFIG_SET, "encoding", err)
	}
	return NewMessage(BCAPI_MSG_CONFIG_SET, BCAPI_SEQUENCE_NONE, payload.Bytes()), nil
}
