package go_bcapi

import (
	"strconv"
	"strings"
)

// Version is a parsed node firmware version, as reported in the
// system.version state field.
type Version struct {
	major, minor, micro, qualifier uint16
	version                        string
}

// parseVersion parses a firmware version string into Version components.
// Handles the firmware version format: "major.minor.micro[.qualifier]"
//
// Examples:
//   - "1.2.0"  → Version{major: 1, minor: 2, micro: 0, qualifier: 0}
//   - "11.26.2" → Version{major: 11, minor: 26, micro: 2, qualifier: 0}
//
// Malformed version strings are handled gracefully:
//   - Invalid segments default to 0 (e.g., "1.2.beta" → Version{1, 2, 0, 0})
//   - Missing segments default to 0 (e.g., "1.2" → Version{1, 2, 0, 0})
//   - Logs warning for parsing failures to aid debugging
func parseVersion(str string) Version {
	v := Version{version: str}
	segments := strings.Split(str, ".")
	parseVersionComponents(&v, segments, str)
	return v
}

// parseVersionSegment parses a single version segment string into a uint16.
// Returns 0 and logs a warning if parsing fails.
func parseVersionSegment(segment, segmentName, fullVersion string) uint16 {
	i, err := strconv.Atoi(segment)
	if err != nil {
		Warning("Invalid %s version '%s' in firmware version '%s', defaulting to 0", segmentName, segment, fullVersion)
		return 0
	}
	return uint16(i)
}

// parseVersionComponents parses all version segments (major, minor, micro, qualifier).
// Updates the provided Version struct in place.
func parseVersionComponents(v *Version, segments []string, fullVersion string) {
	n := len(segments)

	if n > 0 {
		v.major = parseVersionSegment(segments[0], "major", fullVersion)
	}

	if n > 1 {
		v.minor = parseVersionSegment(segments[1], "minor", fullVersion)
	}

	if n > 2 {
		v.micro = parseVersionSegment(segments[2], "micro", fullVersion)
	}

	if n > 3 {
		v.qualifier = parseVersionSegment(segments[3], "qualifier", fullVersion)
	}
}

// String returns the original version string.
func (v Version) String() string {
	return v.version
}

func (v *Version) compare(other Version) int {
	if v.major != other.major {
		if v.major > other.major {
			return 1
		}
		return -1
	}
	if v.minor != other.minor {
		if v.minor > other.minor {
			return 1
		}
		return -1
	}
	if v.micro != other.micro {
		if v.micro > other.micro {
			return 1
		}
		return -1
	}
	if v.qualifier != other.qualifier {
		if v.qualifier > other.qualifier {
			return 1
		}
		return -1
	}
	return 0
}
