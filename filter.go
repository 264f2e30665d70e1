package go_bcapi

import (
	"fmt"
	"strings"
)

// FilterSpec is an ordered, deduplicated set of state paths selecting a
// subset of a node's state tree. A path selects the leaf it names, or an
// entire subtree when it names a group: "gps" selects every gps field,
// "gps.latitude" just the one.
//
// Filters drive StateQueryFiltered requests on firmware that supports
// them, and client-side pruning of full replies on firmware that does
// not. Both routes yield the same document.
type FilterSpec struct {
	paths []string
	seen  map[string]bool
}

// NewFilterSpec creates a filter from the given paths. Each path is
// validated; duplicates are dropped while preserving first-seen order.
func NewFilterSpec(paths ...string) (*FilterSpec, error) {
	f := &FilterSpec{seen: make(map[string]bool)}
	for _, p := range paths {
		if err := f.Add(p); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Add appends a path to the filter. Invalid paths return ErrInvalidPath;
// duplicates are silently ignored.
func (f *FilterSpec) Add(path string) error {
	if _, err := splitPath(path); err != nil {
		return err
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[path] {
		return nil
	}
	f.seen[path] = true
	f.paths = append(f.paths, path)
	return nil
}

// Paths returns the filter paths in insertion order. The returned slice
// is a copy.
func (f *FilterSpec) Paths() []string {
	out := make([]string, len(f.paths))
	copy(out, f.paths)
	return out
}

// Len returns the number of paths in the filter.
func (f *FilterSpec) Len() int {
	return len(f.paths)
}

// Empty reports whether the filter selects nothing. An empty filter is
// treated as "select everything" by Apply, matching the node's behavior
// for a StateQueryFiltered request with no paths.
func (f *FilterSpec) Empty() bool {
	return len(f.paths) == 0
}

// Matches reports whether the given document path is selected: either a
// filter entry names it exactly, or a filter entry names one of its
// ancestors.
func (f *FilterSpec) Matches(path string) bool {
	for _, p := range f.paths {
		if p == path || strings.HasPrefix(path, p+".") {
			return true
		}
	}
	return false
}

// Apply prunes a document down to the filtered subset. Group structure
// and document order are preserved; groups whose every descendant was
// pruned disappear entirely. The input document is not modified.
//
// An empty filter returns a full copy, so callers can apply a filter
// unconditionally whether or not the node already filtered server-side.
func (f *FilterSpec) Apply(doc *StateDocument) *StateDocument {
	if doc == nil {
		return NewStateDocument()
	}
	if f.Empty() {
		return doc.Clone()
	}
	out := NewStateDocument()
	out.roots = f.pruneNodes(doc.roots, "")
	return out
}

func (f *FilterSpec) pruneNodes(nodes []*StateNode, prefix string) []*StateNode {
	var kept []*StateNode
	for _, n := range nodes {
		path := n.Name
		if prefix != "" {
			path = prefix + "." + n.Name
		}
		if f.Matches(path) {
			// The node itself is selected; its whole subtree survives.
			kept = append(kept, n.Clone())
			continue
		}
		if n.Tag == BCAPI_TAG_GROUP {
			children := f.pruneNodes(n.Children, path)
			if len(children) > 0 {
				group := &StateNode{Name: n.Name, Tag: BCAPI_TAG_GROUP, Children: children}
				kept = append(kept, group)
			}
		}
	}
	return kept
}

// Missing returns the filter paths that selected nothing in the document,
// in filter order. Callers surface these instead of pretending the node
// reported empty values.
func (f *FilterSpec) Missing(doc *StateDocument) []string {
	var missing []string
	for _, p := range f.paths {
		if doc == nil || !doc.Has(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// Encode serializes the filter as a StateQueryFiltered payload:
// [count:uint16][path_len:1][path]... in filter order.
func (f *FilterSpec) Encode(stream *Stream) error {
	if len(f.paths) > 0xffff {
		return fmt.Errorf("filter too large: %d paths", len(f.paths))
	}
	if err := stream.WriteUint16(uint16(len(f.paths))); err != nil {
		return err
	}
	for _, p := range f.paths {
		if err := stream.WriteLenPrefixedString(p); err != nil {
			return err
		}
	}
	return nil
}

// DecodeFilterSpec reads a StateQueryFiltered payload back into a filter.
func DecodeFilterSpec(stream *Stream) (*FilterSpec, error) {
	count, err := stream.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameParsing, err)
	}
	f := &FilterSpec{seen: make(map[string]bool)}
	for i := 0; i < int(count); i++ {
		p, err := stream.ReadLenPrefixedString()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFrameParsing, err)
		}
		if err := f.Add(p); err != nil {
			return nil, err
		}
	}
	return f, nil
}
