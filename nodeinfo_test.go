package go_bcapi

import (
	"testing"
	"time"
)

// TestDescribeNode tests extraction from the system subtree
func TestDescribeNode(t *testing.T) {
	doc := telemetryDocument(t)

	info := DescribeNode(doc)
	if info.Name != "rooftop-7" {
		t.Errorf("Name = %q, want rooftop-7", info.Name)
	}
	if got := info.Version.String(); got != "1.2.3" {
		t.Errorf("Version = %q, want 1.2.3", got)
	}
	if info.Uptime != 24*time.Hour {
		t.Errorf("Uptime = %v, want 24h", info.Uptime)
	}
	if info.Serial != "" {
		t.Errorf("Serial = %q, want empty for a document without one", info.Serial)
	}

	if err := doc.SetString("system.serial", "BC-00471"); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}
	if info = DescribeNode(doc); info.Serial != "BC-00471" {
		t.Errorf("Serial = %q, want BC-00471", info.Serial)
	}
}

// TestDescribeNodeEmpty tests the nil and empty document edges
func TestDescribeNodeEmpty(t *testing.T) {
	var zero NodeInfo
	if got := DescribeNode(nil); got != zero {
		t.Errorf("DescribeNode(nil) = %+v, want zero", got)
	}
	if got := DescribeNode(NewStateDocument()); got != zero {
		t.Errorf("DescribeNode(empty) = %+v, want zero", got)
	}
}

// TestNodeInfoString tests the one-line summary
func TestNodeInfoString(t *testing.T) {
	info := NodeInfo{
		Name:    "rooftop-7",
		Serial:  "BC-00471",
		Version: parseVersion("1.2.3"),
		Uptime:  90 * time.Minute,
	}
	want := "rooftop-7 serial=BC-00471 firmware=1.2.3 up=1h30m0s"
	if got := info.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	if got := (NodeInfo{}).String(); got != "unknown" {
		t.Errorf("zero String() = %q, want unknown", got)
	}
}
