package go_bcapi

import (
	"bytes"
	"testing"
)

// TestDeriveLoginDigestDeterministic tests that the same inputs always
// derive the same digest
func TestDeriveLoginDigestDeterministic(t *testing.T) {
	nonce := bytes.Repeat([]byte{0x42}, AUTH_NONCE_SIZE)

	first, err := deriveLoginDigest("secret", ROLE_ADMIN, nonce)
	if err != nil {
		t.Fatalf("deriveLoginDigest failed: %v", err)
	}
	second, err := deriveLoginDigest("secret", ROLE_ADMIN, nonce)
	if err != nil {
		t.Fatalf("deriveLoginDigest failed: %v", err)
	}

	if first != second {
		t.Error("identical inputs derived different digests")
	}
}

// TestDeriveLoginDigestInputs tests that every input influences the digest
func TestDeriveLoginDigestInputs(t *testing.T) {
	nonce := bytes.Repeat([]byte{0x01}, AUTH_NONCE_SIZE)
	otherNonce := bytes.Repeat([]byte{0x02}, AUTH_NONCE_SIZE)

	base, err := deriveLoginDigest("secret", ROLE_VIEW, nonce)
	if err != nil {
		t.Fatalf("deriveLoginDigest failed: %v", err)
	}

	changedCredential, _ := deriveLoginDigest("Secret", ROLE_VIEW, nonce)
	if base == changedCredential {
		t.Error("credential change did not change the digest")
	}

	changedRole, _ := deriveLoginDigest("secret", ROLE_ADMIN, nonce)
	if base == changedRole {
		t.Error("role change did not change the digest")
	}

	changedNonce, _ := deriveLoginDigest("secret", ROLE_VIEW, otherNonce)
	if base == changedNonce {
		t.Error("nonce change did not change the digest")
	}
}

// TestVerifyLoginDigest tests the node-side check
func TestVerifyLoginDigest(t *testing.T) {
	nonce := bytes.Repeat([]byte{0x77}, AUTH_NONCE_SIZE)
	digest, err := deriveLoginDigest("secret", ROLE_CO, nonce)
	if err != nil {
		t.Fatalf("deriveLoginDigest failed: %v", err)
	}

	if !VerifyLoginDigest("secret", ROLE_CO, nonce, digest[:]) {
		t.Error("valid digest did not verify")
	}
	if VerifyLoginDigest("other", ROLE_CO, nonce, digest[:]) {
		t.Error("digest verified under the wrong credential")
	}
	if VerifyLoginDigest("secret", ROLE_VIEW, nonce, digest[:]) {
		t.Error("digest verified under the wrong role")
	}

	tampered := make([]byte, AUTH_DIGEST_SIZE)
	copy(tampered, digest[:])
	tampered[0] ^= 0x80
	if VerifyLoginDigest("secret", ROLE_CO, nonce, tampered) {
		t.Error("tampered digest verified")
	}
}

// TestVerifyLoginDigestSizes tests length guards
func TestVerifyLoginDigestSizes(t *testing.T) {
	nonce := make([]byte, AUTH_NONCE_SIZE)
	digest := make([]byte, AUTH_DIGEST_SIZE)

	if VerifyLoginDigest("secret", ROLE_VIEW, nonce[:8], digest) {
		t.Error("short nonce accepted")
	}
	if VerifyLoginDigest("secret", ROLE_VIEW, nonce, digest[:16]) {
		t.Error("short digest accepted")
	}
	if VerifyLoginDigest("secret", ROLE_VIEW, nil, nil) {
		t.Error("nil nonce and digest accepted")
	}
}

// TestNewLoginNonce tests nonce generation
func TestNewLoginNonce(t *testing.T) {
	first, err := newLoginNonce()
	if err != nil {
		t.Fatalf("newLoginNonce failed: %v", err)
	}
	if len(first) != AUTH_NONCE_SIZE {
		t.Errorf("nonce length = %d, want %d", len(first), AUTH_NONCE_SIZE)
	}

	second, err := newLoginNonce()
	if err != nil {
		t.Fatalf("newLoginNonce failed: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Error("two nonces are identical")
	}
}

// TestLoginIdentityValidate tests the pre-flight identity checks
func TestLoginIdentityValidate(t *testing.T) {
	good := NewLoginIdentity(ROLE_ADMIN, "secret")
	if err := good.validate(); err != nil {
		t.Errorf("validate() = %v for a sound identity, want nil", err)
	}

	var nilIdentity *LoginIdentity
	if err := nilIdentity.validate(); err == nil {
		t.Error("validate() on nil identity should fail")
	}
}
