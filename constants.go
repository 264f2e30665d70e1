package go_bcapi

// BCAPI Protocol Constants
//
// This file contains constants for the BreadCrumb control protocol (BCAPI),
// the TCP-based management protocol spoken by BreadCrumb mesh-radio nodes.
// Every exchange is a single framed message; requests carry a sequence
// number that the node echoes in its reply, so a session may keep several
// requests outstanding at once.
//
// Note: this library implements the management plane only. Mesh routing,
// peer discovery and the data plane are handled entirely by the node
// firmware and are not visible at this layer.

// BCAPI Client Constants
const (
	BCAPI_CLIENT_VERSION = "1.0"
	BCAPI_DEFAULT_PORT   = 2300
	// Maximum size of one frame body (flags + reserved + sequence + kind +
	// payload). Larger declared lengths are treated as stream corruption.
	BCAPI_MAX_FRAME_SIZE = 1 << 20
	// Conservative payload ceiling for outbound requests; state replies from
	// the node may be larger, up to BCAPI_MAX_FRAME_SIZE.
	BCAPI_SAFE_REQUEST_SIZE = 64 * 1024
	// Sequence number 0 is reserved for unsolicited pushes from the node.
	BCAPI_SEQUENCE_NONE uint32 = 0
)

// BCAPI Message Kind Constants
const (
	BCAPI_MSG_ANY                  uint8 = 0
	BCAPI_MSG_LOGIN                uint8 = 1
	BCAPI_MSG_STATE_QUERY          uint8 = 2
	BCAPI_MSG_STATE_QUERY_FILTERED uint8 = 3
	BCAPI_MSG_CONFIG_SET           uint8 = 4
	BCAPI_MSG_STATE_REPLY          uint8 = 5
	BCAPI_MSG_CONFIG_ACK           uint8 = 6
	BCAPI_MSG_ERROR                uint8 = 7
)

// Frame flag bits. The compression flag value matches the flag byte the
// node firmware writes (2 = deflate-compressed payload, 0 = none).
const (
	BCAPI_FLAG_DEFLATE uint8 = 0x02
)

// Authorization Role Constants
//
// A session authenticates under exactly one role. The node enforces what
// each role may do; the client only transports the role string.
//
//   - ROLE_VIEW:  read-only state queries
//   - ROLE_ADMIN: state queries and configuration changes
//   - ROLE_CO:    crypto officer; full control including key material
const (
	ROLE_VIEW  = "VIEW"
	ROLE_ADMIN = "ADMIN"
	ROLE_CO    = "CO"
)

// Result Status Constants
//
// Carried in ConfigAck and Error payloads. SUCCESS acknowledges the
// request identified by the echoed sequence number; everything else is an
// authoritative rejection by the node.
const (
	BCAPI_STATUS_SUCCESS         uint16 = 0
	BCAPI_STATUS_FAILURE         uint16 = 1
	BCAPI_STATUS_BAD_CREDENTIALS uint16 = 2
	BCAPI_STATUS_NOT_AUTHORIZED  uint16 = 3
	BCAPI_STATUS_BAD_REQUEST     uint16 = 4
	BCAPI_STATUS_UNSUPPORTED     uint16 = 5
)

// State Document Tag Constants
//
// Each node of a StateReply payload starts with one of these tag bytes.
// Group nodes nest; the scalar tags carry a single typed value.
const (
	BCAPI_TAG_GROUP  uint8 = 0x01
	BCAPI_TAG_STRING uint8 = 0x02
	BCAPI_TAG_INT    uint8 = 0x03
	BCAPI_TAG_UINT   uint8 = 0x04
	BCAPI_TAG_BOOL   uint8 = 0x05
	BCAPI_TAG_FLOAT  uint8 = 0x06
	BCAPI_TAG_BYTES  uint8 = 0x07
)

// Node capability flags, derived from the firmware version reported in the
// system.version state field.
const (
	DEVICE_CAN_FILTERED_QUERY uint32 = 1 << iota
	DEVICE_CAN_DEFLATE
)

// Authentication state of a session. Closed and Failed are terminal.
type AuthState int

const (
	AUTH_STATE_UNAUTHENTICATED AuthState = iota
	AUTH_STATE_AUTHENTICATING
	AUTH_STATE_AUTHENTICATED
	AUTH_STATE_FAILED
	AUTH_STATE_CLOSED
)

// String returns a human-readable name for the authentication state.
func (s AuthState) String() string {
	switch s {
	case AUTH_STATE_UNAUTHENTICATED:
		return "unauthenticated"
	case AUTH_STATE_AUTHENTICATING:
		return "authenticating"
	case AUTH_STATE_AUTHENTICATED:
		return "authenticated"
	case AUTH_STATE_FAILED:
		return "failed"
	case AUTH_STATE_CLOSED:
		return "closed"
	default:
		return "unknown"
	}
}

// Log level constants for LogInit.
const (
	DEBUG = iota
	INFO
	WARNING
	ERROR
	FATAL
)
