package go_bcapi

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestFilterSpecDeduplication tests ordered, deduplicated path collection
func TestFilterSpecDeduplication(t *testing.T) {
	filter, err := NewFilterSpec("gps", "system.version", "gps")
	if err != nil {
		t.Fatalf("NewFilterSpec failed: %v", err)
	}

	want := []string{"gps", "system.version"}
	if diff := cmp.Diff(want, filter.Paths()); diff != "" {
		t.Errorf("Paths differs (-want +got):\n%s", diff)
	}
	if filter.Len() != 2 {
		t.Errorf("Len() = %d, want 2", filter.Len())
	}
}

// TestFilterSpecInvalidPath tests path validation
func TestFilterSpecInvalidPath(t *testing.T) {
	if _, err := NewFilterSpec("gps", ""); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("NewFilterSpec with empty path error = %v, want ErrInvalidPath", err)
	}

	filter, err := NewFilterSpec()
	if err != nil {
		t.Fatalf("NewFilterSpec failed: %v", err)
	}
	if err := filter.Add("a..b"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Add(a..b) error = %v, want ErrInvalidPath", err)
	}
	if !filter.Empty() {
		t.Error("filter should stay empty after rejected Add")
	}
}

// TestFilterSpecMatches tests path selection semantics
func TestFilterSpecMatches(t *testing.T) {
	filter, err := NewFilterSpec("gps", "system.version")
	if err != nil {
		t.Fatalf("NewFilterSpec failed: %v", err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{"gps", true},
		{"gps.latitude", true},
		{"gps.fix.quality", true},
		{"gpsx", false}, // sibling name sharing a prefix
		{"system.version", true},
		{"system.version.build", true},
		{"system", false}, // parent of a selected leaf is not itself selected
		{"system.name", false},
		{"radio", false},
	}
	for _, tt := range tests {
		if got := filter.Matches(tt.path); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

// TestFilterSpecApply tests client-side pruning of a full document
func TestFilterSpecApply(t *testing.T) {
	doc := telemetryDocument(t)
	filter, err := NewFilterSpec("gps", "system.version")
	if err != nil {
		t.Fatalf("NewFilterSpec failed: %v", err)
	}

	pruned := filter.Apply(doc)

	want := []string{
		"gps.enabled",
		"gps.latitude",
		"gps.longitude",
		"system.version",
	}
	if diff := cmp.Diff(want, pruned.LeafPaths()); diff != "" {
		t.Errorf("pruned leaves differ (-want +got):\n%s", diff)
	}

	// Values survive the pruning.
	if got, err := pruned.GetString("system.version"); err != nil || got != "1.2.3" {
		t.Errorf("pruned system.version = %q, %v, want 1.2.3", got, err)
	}

	// Unselected groups disappear entirely, not as empty shells.
	if pruned.Has("radio") {
		t.Error("pruned document still has the radio group")
	}
	if pruned.Has("system.name") {
		t.Error("pruned document still has system.name")
	}

	// The input document is untouched.
	if !doc.Has("radio.txpower") {
		t.Error("Apply modified its input document")
	}
}

// TestFilterSpecApplyEmpty tests that the empty filter means everything
func TestFilterSpecApplyEmpty(t *testing.T) {
	doc := telemetryDocument(t)
	filter, err := NewFilterSpec()
	if err != nil {
		t.Fatalf("NewFilterSpec failed: %v", err)
	}

	full := filter.Apply(doc)
	if diff := cmp.Diff(doc.LeafPaths(), full.LeafPaths()); diff != "" {
		t.Errorf("empty filter should keep every leaf (-want +got):\n%s", diff)
	}

	// The copy is deep: mutating it leaves the original alone.
	if err := full.SetString("system.name", "changed"); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}
	if got, _ := doc.GetString("system.name"); got != "rooftop-7" {
		t.Errorf("original system.name = %q after mutating copy, want rooftop-7", got)
	}
}

// TestFilterSpecApplyNilDocument tests the nil document edge
func TestFilterSpecApplyNilDocument(t *testing.T) {
	filter, err := NewFilterSpec("gps")
	if err != nil {
		t.Fatalf("NewFilterSpec failed: %v", err)
	}
	pruned := filter.Apply(nil)
	if pruned == nil || pruned.Len() != 0 {
		t.Errorf("Apply(nil) = %v, want empty document", pruned)
	}
}

// TestFilterSpecMissing tests detection of paths the node did not report
func TestFilterSpecMissing(t *testing.T) {
	doc := telemetryDocument(t)
	filter, err := NewFilterSpec("gps", "power.supply", "system.version", "battery")
	if err != nil {
		t.Fatalf("NewFilterSpec failed: %v", err)
	}

	want := []string{"power.supply", "battery"}
	if diff := cmp.Diff(want, filter.Missing(doc)); diff != "" {
		t.Errorf("Missing differs (-want +got):\n%s", diff)
	}

	complete, err := NewFilterSpec("gps")
	if err != nil {
		t.Fatalf("NewFilterSpec failed: %v", err)
	}
	if missing := complete.Missing(doc); missing != nil {
		t.Errorf("Missing = %v for fully satisfied filter, want nil", missing)
	}
}

// TestFilterSpecEncodeDecode tests the wire round trip
func TestFilterSpecEncodeDecode(t *testing.T) {
	filter, err := NewFilterSpec("gps.latitude", "gps.longitude", "system")
	if err != nil {
		t.Fatalf("NewFilterSpec failed: %v", err)
	}

	stream := NewStream(make([]byte, 0, 64))
	if err := filter.Encode(stream); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodeFilterSpec(stream)
	if err != nil {
		t.Fatalf("DecodeFilterSpec failed: %v", err)
	}
	if diff := cmp.Diff(filter.Paths(), decoded.Paths()); diff != "" {
		t.Errorf("decoded paths differ (-want +got):\n%s", diff)
	}
}
