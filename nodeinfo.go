package go_bcapi

import (
	"fmt"
	"time"
)

// NodeInfo is the identity summary of one node, extracted from the
// well-known system subtree of a state document. Fields absent from
// the document are left at their zero values; old firmware omits some
// of them.
type NodeInfo struct {
	// Name is the operator-assigned node name.
	Name string

	// Serial is the factory serial number.
	Serial string

	// Version is the firmware version.
	Version Version

	// Uptime is how long the node has been running.
	Uptime time.Duration
}

// DescribeNode extracts the node identity summary from a state
// document. A nil document yields a zero NodeInfo.
func DescribeNode(doc *StateDocument) NodeInfo {
	var info NodeInfo
	if doc == nil {
		return info
	}
	if name, err := doc.GetString("system.name"); err == nil {
		info.Name = name
	}
	if serial, err := doc.GetString("system.serial"); err == nil {
		info.Serial = serial
	}
	if version, err := doc.GetString("system.version"); err == nil {
		info.Version = parseVersion(version)
	}
	if uptime, err := doc.GetUint("system.uptime"); err == nil {
		info.Uptime = time.Duration(uptime) * time.Second
	}
	return info
}

// String returns a one-line summary, skipping fields the node did not
// report.
func (info NodeInfo) String() string {
	name := info.Name
	if name == "" {
		name = "unknown"
	}
	s := name
	if info.Serial != "" {
		s += fmt.Sprintf(" serial=%s", info.Serial)
	}
	if v := info.Version.String(); v != "" {
		s += fmt.Sprintf(" firmware=%s", v)
	}
	if info.Uptime > 0 {
		s += fmt.Sprintf(" up=%v", info.Uptime)
	}
	return s
}
