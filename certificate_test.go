package go_bcapi

import (
	"crypto/sha256"
	"errors"
	"strings"
	"testing"
)

// TestFingerprintSHA256 tests the openssl-style fingerprint format
func TestFingerprintSHA256(t *testing.T) {
	der := []byte("der encoded node certificate")
	got := FingerprintSHA256(der)

	if len(got) != sha256.Size*3-1 {
		t.Errorf("fingerprint length = %d, want %d", len(got), sha256.Size*3-1)
	}
	if strings.ToUpper(got) != got {
		t.Errorf("fingerprint is not upper-case: %q", got)
	}
	if strings.Count(got, ":") != sha256.Size-1 {
		t.Errorf("fingerprint has %d colons, want %d", strings.Count(got, ":"), sha256.Size-1)
	}

	pin, err := ParseFingerprint(got)
	if err != nil {
		t.Fatalf("ParseFingerprint(%q) error = %v", got, err)
	}
	if pin != sha256.Sum256(der) {
		t.Error("parsed pin does not match the digest")
	}
}

// TestParseFingerprint tests the tolerated input forms
func TestParseFingerprint(t *testing.T) {
	der := []byte("node cert")
	canonical := FingerprintSHA256(der)

	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"canonical", canonical, true},
		{"lower case no colons", strings.ToLower(strings.ReplaceAll(canonical, ":", "")), true},
		{"space separated", strings.ReplaceAll(canonical, ":", " "), true},
		{"too short", "AB:CD", false},
		{"not hex", strings.Repeat("ZZ", sha256.Size), false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pin, err := ParseFingerprint(tt.input)
			if tt.ok {
				if err != nil {
					t.Fatalf("ParseFingerprint(%q) error = %v", tt.input, err)
				}
				if pin != sha256.Sum256(der) {
					t.Error("pin does not match the digest")
				}
				return
			}
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("ParseFingerprint(%q) error = %v, want ErrInvalidArgument", tt.input, err)
			}
		})
	}
}

// TestPinServerCertificate tests the pinned verifier end to end
func TestPinServerCertificate(t *testing.T) {
	var tcp Tcp
	if err := tcp.PinServerCertificate("AB"); err == nil {
		t.Error("pinning without SetupTLS succeeded, want error")
	}

	if err := tcp.SetupTLS("", "", "", true); err != nil {
		t.Fatalf("SetupTLS() error = %v", err)
	}
	if err := tcp.PinServerCertificate("not a fingerprint"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("bad fingerprint error = %v, want ErrInvalidArgument", err)
	}

	nodeCert := []byte("der encoded node certificate")
	if err := tcp.PinServerCertificate(FingerprintSHA256(nodeCert)); err != nil {
		t.Fatalf("PinServerCertificate() error = %v", err)
	}
	if !tcp.tlsConfig.InsecureSkipVerify {
		t.Error("InsecureSkipVerify = false, want true when pinned")
	}
	verify := tcp.tlsConfig.VerifyPeerCertificate
	if verify == nil {
		t.Fatal("VerifyPeerCertificate not installed")
	}

	if err := verify([][]byte{nodeCert}, nil); err != nil {
		t.Errorf("matching certificate rejected: %v", err)
	}
	err := verify([][]byte{[]byte("an impostor certificate")}, nil)
	if err == nil {
		t.Error("mismatched certificate accepted")
	} else if !strings.Contains(err.Error(), "fingerprint mismatch") {
		t.Errorf("mismatch error = %v, want fingerprint mismatch", err)
	}
	if err := verify(nil, nil); err == nil {
		t.Error("empty certificate chain accepted")
	}
}
