package go_bcapi

import "testing"

// TestIsValidIPv4 tests dotted-quad address detection
func TestIsValidIPv4(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"loopback", "127.0.0.1", true},
		{"private address", "10.2.0.1", true},
		{"broadcast", "255.255.255.255", true},
		{"hostname", "node.mesh.local", false},
		{"ipv6 literal", "::1", false},
		{"octet out of range", "256.1.1.1", false},
		{"missing octet", "10.0.0", false},
		{"empty", "", false},
		{"port suffix", "10.0.0.1:2300", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidIPv4(tt.input); got != tt.want {
				t.Errorf("IsValidIPv4(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestParseIntWithDefault tests integer parsing with fallback
func TestParseIntWithDefault(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		defaultValue int
		want         int
	}{
		{"zero", "0", 100, 0},
		{"positive", "2300", 100, 2300},
		{"negative", "-17", 100, -17},
		{"empty falls back", "", 42, 42},
		{"letters fall back", "abc", 42, 42},
		{"mixed falls back", "23x", 42, 42},
		{"float falls back", "2.5", 42, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseIntWithDefault(tt.input, tt.defaultValue); got != tt.want {
				t.Errorf("parseIntWithDefault(%q, %d) = %d, want %d", tt.input, tt.defaultValue, got, tt.want)
			}
		})
	}
}
