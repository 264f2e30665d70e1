// Login authentication for BCAPI sessions.
//
// A login proves possession of the role credential without placing it on
// the wire. The client generates a random 16-byte nonce and sends it with
// the HKDF-SHA256 digest of the credential, salted by the nonce and bound
// to the requested role through the HKDF info string. The node, which
// knows the credential for each role, repeats the derivation and compares.
//
// This keeps the credential out of packet captures even when TLS is
// terminated by an intermediate proxy, and the role binding prevents a
// digest captured for VIEW from being replayed for ADMIN.
package go_bcapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"go.step.sm/crypto/randutil"
	"golang.org/x/crypto/hkdf"
)

const (
	// Nonce and digest sizes in the Login payload.
	AUTH_NONCE_SIZE  = 16
	AUTH_DIGEST_SIZE = 32

	// HKDF info prefix; the requesting role is appended.
	authInfoPrefix = "bcapi-auth:"
)

// LoginIdentity carries everything the node needs to authenticate a
// session: the requested role, its credential, the client-reported device
// serial, and free-form login options.
type LoginIdentity struct {
	Role       string
	Credential string
	Serial     string
	Options    map[string]string
}

// NewLoginIdentity creates an identity for the given role and credential
// with no serial and no options.
func NewLoginIdentity(role, credential string) *LoginIdentity {
	return &LoginIdentity{
		Role:       role,
		Credential: credential,
		Options:    make(map[string]string),
	}
}

// validate checks the identity before it is encoded into a Login payload.
func (id *LoginIdentity) validate() error {
	if id == nil {
		return ErrInvalidArgument
	}
	if !IsValidRole(id.Role) {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, id.Role)
	}
	if id.Credential == "" {
		return fmt.Errorf("%w: empty credential", ErrInvalidArgument)
	}
	if len(id.Serial) > 255 {
		return fmt.Errorf("%w: serial longer than 255 bytes", ErrInvalidArgument)
	}
	return nil
}

// IsValidRole reports whether role is one of the three authorization
// roles the node firmware knows.
func IsValidRole(role string) bool {
	switch role {
	case ROLE_VIEW, ROLE_ADMIN, ROLE_CO:
		return true
	default:
		return false
	}
}

// newLoginNonce generates a fresh random nonce for one login attempt.
func newLoginNonce() ([]byte, error) {
	nonce, err := randutil.Salt(AUTH_NONCE_SIZE)
	if err != nil {
		return nil, fmt.Errorf("nonce generation failed: %w", err)
	}
	return nonce, nil
}

// deriveLoginDigest derives the 32-byte login digest using HKDF-SHA256
// with the credential as input keying material, the login nonce as salt,
// and the role bound through the info string.
func deriveLoginDigest(credential, role string, nonce []byte) ([AUTH_DIGEST_SIZE]byte, error) {
	var digest [AUTH_DIGEST_SIZE]byte

	reader := hkdf.New(sha256.New, []byte(credential), nonce, []byte(authInfoPrefix+role))

	_, err := io.ReadFull(reader, digest[:])
	if err != nil {
		return digest, fmt.Errorf("HKDF derivation failed: %w", err)
	}

	return digest, nil
}

// VerifyLoginDigest repeats the derivation node-side and compares in
// constant time. Exposed for test harnesses that simulate the node.
func VerifyLoginDigest(credential, role string, nonce, digest []byte) bool {
	if len(nonce) != AUTH_NONCE_SIZE || len(digest) != AUTH_DIGEST_SIZE {
		return false
	}
	want, err := deriveLoginDigest(credential, role, nonce)
	if err != nil {
		return false
	}
	return hmac.Equal(want[:], digest)
}
