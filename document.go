package go_bcapi

import (
	"fmt"
	"sort"
	"strings"
)

// Nesting ceiling for decoded documents. Real node state is three or four
// levels deep; anything past this is malformed input.
const maxDocumentDepth = 32

// StateNode is one node of a state document tree: either a group holding
// child nodes or a leaf holding one typed scalar.
//
// Only the value field matching Tag is meaningful; the others stay zero.
type StateNode struct {
	Name     string
	Tag      uint8
	Children []*StateNode

	Str   string
	Int   int64
	Uint  uint64
	Bool  bool
	Float float64
	Bytes []byte
}

// StateDocument is the decoded form of a StateReply payload: a tree of
// named groups with typed leaf fields, addressed by dot-separated paths
// such as "system.version" or "gps.latitude".
//
// Documents are not safe for concurrent mutation; share them read-only.
type StateDocument struct {
	roots []*StateNode
}

// NewStateDocument creates an empty document.
func NewStateDocument() *StateDocument {
	return &StateDocument{}
}

// splitPath validates and splits a dot-separated state path.
// Segments must be non-empty, so leading, trailing and doubled dots are
// all rejected.
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segments, nil
}

// Lookup returns the node at the given dot-separated path.
// Returns ErrFieldNotFound if any segment is absent, and ErrTypeMismatch
// if an intermediate segment names a leaf instead of a group.
func (d *StateDocument) Lookup(path string) (*StateNode, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	nodes := d.roots
	var node *StateNode
	for i, seg := range segments {
		node = findNode(nodes, seg)
		if node == nil {
			return nil, fmt.Errorf("%w: %q", ErrFieldNotFound, path)
		}
		if i < len(segments)-1 {
			if node.Tag != BCAPI_TAG_GROUP {
				return nil, fmt.Errorf("%w: %q is not a group", ErrTypeMismatch, strings.Join(segments[:i+1], "."))
			}
			nodes = node.Children
		}
	}
	return node, nil
}

// Has reports whether a node exists at the given path.
func (d *StateDocument) Has(path string) bool {
	_, err := d.Lookup(path)
	return err == nil
}

// GetString returns the string value at path.
func (d *StateDocument) GetString(path string) (string, error) {
	node, err := d.Lookup(path)
	if err != nil {
		return "", err
	}
	if node.Tag != BCAPI_TAG_STRING {
		return "", typeMismatch(path, BCAPI_TAG_STRING, node.Tag)
	}
	return node.Str, nil
}

// GetInt returns the signed integer value at path.
func (d *StateDocument) GetInt(path string) (int64, error) {
	node, err := d.Lookup(path)
	if err != nil {
		return 0, err
	}
	if node.Tag != BCAPI_TAG_INT {
		return 0, typeMismatch(path, BCAPI_TAG_INT, node.Tag)
	}
	return node.Int, nil
}

// GetUint returns the unsigned integer value at path.
func (d *StateDocument) GetUint(path string) (uint64, error) {
	node, err := d.Lookup(path)
	if err != nil {
		return 0, err
	}
	if node.Tag != BCAPI_TAG_UINT {
		return 0, typeMismatch(path, BCAPI_TAG_UINT, node.Tag)
	}
	return node.Uint, nil
}

// GetBool returns the boolean value at path.
func (d *StateDocument) GetBool(path string) (bool, error) {
	node, err := d.Lookup(path)
	if err != nil {
		return false, err
	}
	if node.Tag != BCAPI_TAG_BOOL {
		return false, typeMismatch(path, BCAPI_TAG_BOOL, node.Tag)
	}
	return node.Bool, nil
}

// GetFloat returns the float value at path.
func (d *StateDocument) GetFloat(path string) (float64, error) {
	node, err := d.Lookup(path)
	if err != nil {
		return 0, err
	}
	if node.Tag != BCAPI_TAG_FLOAT {
		return 0, typeMismatch(path, BCAPI_TAG_FLOAT, node.Tag)
	}
	return node.Float, nil
}

// GetBytes returns the raw bytes value at path.
func (d *StateDocument) GetBytes(path string) ([]byte, error) {
	node, err := d.Lookup(path)
	if err != nil {
		return nil, err
	}
	if node.Tag != BCAPI_TAG_BYTES {
		return nil, typeMismatch(path, BCAPI_TAG_BYTES, node.Tag)
	}
	return node.Bytes, nil
}

func typeMismatch(path string, want, got uint8) error {
	return fmt.Errorf("%w: %q holds %s, want %s", ErrTypeMismatch, path, tagName(got), tagName(want))
}

func tagName(tag uint8) string {
	switch tag {
	case BCAPI_TAG_GROUP:
		return "group"
	case BCAPI_TAG_STRING:
		return "string"
	case BCAPI_TAG_INT:
		return "int"
	case BCAPI_TAG_UINT:
		return "uint"
	case BCAPI_TAG_BOOL:
		return "bool"
	case BCAPI_TAG_FLOAT:
		return "float"
	case BCAPI_TAG_BYTES:
		return "bytes"
	default:
		return fmt.Sprintf("tag %d", tag)
	}
}

// SetString stores a string value at path, creating intermediate groups
// as needed.
func (d *StateDocument) SetString(path, value string) error {
	node, err := d.ensureLeaf(path, BCAPI_TAG_STRING)
	if err != nil {
		return err
	}
	node.Str = value
	return nil
}

// SetInt stores a signed integer value at path, creating intermediate
// groups as needed.
func (d *StateDocument) SetInt(path string, value int64) error {
	node, err := d.ensureLeaf(path, BCAPI_TAG_INT)
	if err != nil {
		return err
	}
	node.Int = value
	return nil
}

// SetUint stores an unsigned integer value at path, creating intermediate
// groups as needed.
func (d *StateDocument) SetUint(path string, value uint64) error {
	node, err := d.ensureLeaf(path, BCAPI_TAG_UINT)
	if err != nil {
		return err
	}
	node.Uint = value
	return nil
}

// SetBool stores a boolean value at path, creating intermediate groups
// as needed.
func (d *StateDocument) SetBool(path string, value bool) error {
	node, err := d.ensureLeaf(path, BCAPI_TAG_BOOL)
	if err != nil {
		return err
	}
	node.Bool = value
	return nil
}

// SetFloat stores a float value at path, creating intermediate groups
// as needed.
func (d *StateDocument) SetFloat(path string, value float64) error {
	node, err := d.ensureLeaf(path, BCAPI_TAG_FLOAT)
	if err != nil {
		return err
	}
	node.Float = value
	return nil
}

// SetBytes stores a raw bytes value at path, creating intermediate groups
// as needed.
func (d *StateDocument) SetBytes(path string, value []byte) error {
	node, err := d.ensureLeaf(path, BCAPI_TAG_BYTES)
	if err != nil {
		return err
	}
	node.Bytes = value
	return nil
}

// ensureLeaf walks path creating missing groups, and returns the leaf
// node retagged to want. An existing leaf in an intermediate position is
// an error; a leaf at the final position is overwritten in place.
func (d *StateDocument) ensureLeaf(path string, want uint8) (*StateNode, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	nodes := &d.roots
	for i, seg := range segments {
		node := findNode(*nodes, seg)
		last := i == len(segments)-1
		if node == nil {
			node = &StateNode{Name: seg, Tag: BCAPI_TAG_GROUP}
			if last {
				node.Tag = want
			}
			*nodes = append(*nodes, node)
		}
		if last {
			if node.Tag == BCAPI_TAG_GROUP && len(node.Children) > 0 {
				return nil, fmt.Errorf("%w: %q is a group", ErrTypeMismatch, path)
			}
			*node = StateNode{Name: seg, Tag: want}
			return node, nil
		}
		if node.Tag != BCAPI_TAG_GROUP {
			return nil, fmt.Errorf("%w: %q is not a group", ErrTypeMismatch, strings.Join(segments[:i+1], "."))
		}
		nodes = &node.Children
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
}

func findNode(nodes []*StateNode, name string) *StateNode {
	for _, n := range nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// Clone returns a deep copy of the node and its subtree.
func (n *StateNode) Clone() *StateNode {
	c := *n
	if n.Bytes != nil {
		c.Bytes = make([]byte, len(n.Bytes))
		copy(c.Bytes, n.Bytes)
	}
	if n.Children != nil {
		c.Children = make([]*StateNode, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}

// Clone returns a deep copy of the document.
func (d *StateDocument) Clone() *StateDocument {
	c := NewStateDocument()
	c.roots = make([]*StateNode, len(d.roots))
	for i, n := range d.roots {
		c.roots[i] = n.Clone()
	}
	return c
}

// Walk visits every node depth-first in document order, passing the full
// dot path. Returning false from fn stops the walk.
func (d *StateDocument) Walk(fn func(path string, node *StateNode) bool) {
	walkNodes(d.roots, "", fn)
}

func walkNodes(nodes []*StateNode, prefix string, fn func(string, *StateNode) bool) bool {
	for _, n := range nodes {
		path := n.Name
		if prefix != "" {
			path = prefix + "." + n.Name
		}
		if !fn(path, n) {
			return false
		}
		if n.Tag == BCAPI_TAG_GROUP {
			if !walkNodes(n.Children, path, fn) {
				return false
			}
		}
	}
	return true
}

// LeafPaths returns the sorted dot paths of every leaf field.
func (d *StateDocument) LeafPaths() []string {
	var paths []string
	d.Walk(func(path string, node *StateNode) bool {
		if node.Tag != BCAPI_TAG_GROUP {
			paths = append(paths, path)
		}
		return true
	})
	sort.Strings(paths)
	return paths
}

// Len returns the number of leaf fields in the document.
func (d *StateDocument) Len() int {
	n := 0
	d.Walk(func(path string, node *StateNode) bool {
		if node.Tag != BCAPI_TAG_GROUP {
			n++
		}
		return true
	})
	return n
}

// Encode serializes the document as a sequence of TLV nodes.
//
// Node format: [tag:1][name_len:1][name][value], where a group value is
// [byte_length:uint32][child nodes...] and scalar values use the Stream
// encodings (String16 for strings, uint32-prefixed raw bytes, 8-byte
// integers and floats, 1-byte booleans).
func (d *StateDocument) Encode(stream *Stream) error {
	for _, n := range d.roots {
		if err := encodeNode(stream, n); err != nil {
			return err
		}
	}
	return nil
}

func encodeNode(stream *Stream, node *StateNode) error {
	if err := stream.WriteByte(node.Tag); err != nil {
		return err
	}
	if err := stream.WriteLenPrefixedString(node.Name); err != nil {
		return err
	}
	if node.Tag == BCAPI_TAG_GROUP {
		body := NewStream(make([]byte, 0))
		for _, child := range node.Children {
			if err := encodeNode(body, child); err != nil {
				return err
			}
		}
		if err := stream.WriteUint32(uint32(body.Len())); err != nil {
			return err
		}
		_, err := stream.Write(body.Bytes())
		return err
	}
	return encodeScalar(stream, node)
}

// encodeScalar writes the value portion of a scalar node. Shared by
// document encoding and ConfigSet entries, which carry the same typed
// values without the name.
func encodeScalar(stream *Stream, node *StateNode) error {
	switch node.Tag {
	case BCAPI_TAG_STRING:
		return stream.WriteString16(node.Str)
	case BCAPI_TAG_INT:
		return stream.WriteUint64(uint64(node.Int))
	case BCAPI_TAG_UINT:
		return stream.WriteUint64(node.Uint)
	case BCAPI_TAG_BOOL:
		b := byte(0)
		if node.Bool {
			b = 1
		}
		return stream.WriteByte(b)
	case BCAPI_TAG_FLOAT:
		return stream.WriteFloat64(node.Float)
	case BCAPI_TAG_BYTES:
		if err := stream.WriteUint32(uint32(len(node.Bytes))); err != nil {
			return err
		}
		_, err := stream.Write(node.Bytes)
		return err
	default:
		return fmt.Errorf("unknown node tag %d", node.Tag)
	}
}

// DecodeStateDocument reads TLV nodes from the stream until it is
// exhausted. Malformed input returns an error wrapping ErrFrameParsing.
func DecodeStateDocument(stream *Stream) (*StateDocument, error) {
	doc := NewStateDocument()
	for stream.Len() > 0 {
		node, err := decodeNode(stream, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFrameParsing, err)
		}
		doc.roots = append(doc.roots, node)
	}
	return doc, nil
}

func decodeNode(stream *Stream, depth int) (*StateNode, error) {
	if depth > maxDocumentDepth {
		return nil, fmt.Errorf("document nesting exceeds %d levels", maxDocumentDepth)
	}
	tag, err := stream.ReadByte()
	if err != nil {
		return nil, err
	}
	name, err := stream.ReadLenPrefixedString()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("node with empty name")
	}
	node := &StateNode{Name: name, Tag: tag}
	if tag == BCAPI_TAG_GROUP {
		byteLen, err := stream.ReadUint32()
		if err != nil {
			return nil, err
		}
		if int(byteLen) > stream.Len() {
			return nil, fmt.Errorf("group %q declares %d bytes, %d available", name, byteLen, stream.Len())
		}
		body := make([]byte, byteLen)
		if _, err := stream.Read(body); err != nil {
			return nil, err
		}
		bodyStream := NewStream(body)
		for bodyStream.Len() > 0 {
			child, err := decodeNode(bodyStream, depth+1)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
		}
		return node, nil
	}
	if err := decodeScalar(stream, node); err != nil {
		return nil, err
	}
	return node, nil
}

// decodeScalar reads the value portion of a scalar node whose Tag is
// already set. Shared by document decoding and ConfigSet entries.
func decodeScalar(stream *Stream, node *StateNode) error {
	var err error
	switch node.Tag {
	case BCAPI_TAG_STRING:
		node.Str, err = stream.ReadString16()
		if err != nil {
			return err
		}
	case BCAPI_TAG_INT:
		u, err := stream.ReadUint64()
		if err != nil {
			return err
		}
		node.Int = int64(u)
	case BCAPI_TAG_UINT:
		node.Uint, err = stream.ReadUint64()
		if err != nil {
			return err
		}
	case BCAPI_TAG_BOOL:
		b, err := stream.ReadByte()
		if err != nil {
			return err
		}
		node.Bool = b != 0
	case BCAPI_TAG_FLOAT:
		node.Float, err = stream.ReadFloat64()
		if err != nil {
			return err
		}
	case BCAPI_TAG_BYTES:
		byteLen, err := stream.ReadUint32()
		if err != nil {
			return err
		}
		if int(byteLen) > stream.Len() {
			return fmt.Errorf("bytes field %q declares %d bytes, %d available", node.Name, byteLen, stream.Len())
		}
		node.Bytes = make([]byte, byteLen)
		if _, err := stream.Read(node.Bytes); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown node tag %d for %q", node.Tag, node.Name)
	}
	return nil
}
