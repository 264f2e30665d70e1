package go_bcapi

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"
)

// Node TLS certificates are almost always self-signed: each radio mints
// its own at first boot, so chain validation against a CA pool rarely
// works in the field. Pinning the certificate's SHA-256 fingerprint
// authenticates the node without shipping a CA file to every laptop,
// and survives firmware updates as long as the certificate does.

// FingerprintSHA256 returns the SHA-256 fingerprint of a DER-encoded
// certificate in colon-separated hex, the same form printed by
// `openssl x509 -fingerprint -sha256`.
func FingerprintSHA256(der []byte) string {
	return formatFingerprint(sha256.Sum256(der))
}

// ParseFingerprint parses a SHA-256 certificate fingerprint. Colons and
// spaces are ignored and hex case does not matter, so a fingerprint can
// be pasted straight out of openssl or a browser dialog.
func ParseFingerprint(s string) ([sha256.Size]byte, error) {
	var pin [sha256.Size]byte
	cleaned := strings.Map(func(r rune) rune {
		if r == ':' || r == ' ' {
			return -1
		}
		return r
	}, s)
	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return pin, fmt.Errorf("%w: fingerprint is not hex: %v", ErrInvalidArgument, err)
	}
	if len(raw) != sha256.Size {
		return pin, fmt.Errorf("%w: fingerprint is %d bytes, want %d", ErrInvalidArgument, len(raw), sha256.Size)
	}
	copy(pin[:], raw)
	return pin, nil
}

// PinServerCertificate restricts the TLS connection to a node
// presenting exactly the certificate with the given SHA-256
// fingerprint. The pin replaces chain and hostname verification, which
// is the usual arrangement for self-signed node certificates. SetupTLS
// must have been called first.
func (tcp *Tcp) PinServerCertificate(fingerprint string) error {
	if tcp.tlsConfig == nil {
		return fmt.Errorf("bcapi: certificate pinning requires TLS, call SetupTLS first")
	}
	pin, err := ParseFingerprint(fingerprint)
	if err != nil {
		return err
	}

	// InsecureSkipVerify only disables the default chain check; the
	// VerifyPeerCertificate hook below still runs on every handshake.
	tcp.tlsConfig.InsecureSkipVerify = true
	tcp.tlsConfig.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("bcapi: node presented no certificate")
		}
		sum := sha256.Sum256(rawCerts[0])
		if sum != pin {
			return fmt.Errorf("bcapi: node certificate fingerprint mismatch: got %s, pinned %s",
				FingerprintSHA256(rawCerts[0]), formatFingerprint(pin))
		}
		return nil
	}

	Info("Node certificate pinned to %s", formatFingerprint(pin))
	return nil
}

func formatFingerprint(sum [sha256.Size]byte) string {
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}
