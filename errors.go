package go_bcapi

import (
	"errors"
	"fmt"
)

// Standard BCAPI Error Types
//
// These errors follow Go 1.13+ error wrapping conventions and can be
// checked using errors.Is() and errors.As(). All errors include context
// about the operation that failed and the underlying cause.
//
// Design rationale:
// - Use sentinel errors for common, expected error conditions
// - Use error types for errors that need additional context
// - All errors are safe for error wrapping with fmt.Errorf("%w", err)

// Sentinel errors for common BCAPI protocol violations and failures
var (
	// ErrConnectionClosed indicates the TCP connection to the node was closed.
	// This may occur due to network issues, node reboot, or explicit disconnect.
	ErrConnectionClosed = errors.New("bcapi: connection closed")

	// ErrFrameTooLarge indicates a frame exceeds the protocol size limit.
	// Frames declaring more than BCAPI_MAX_FRAME_SIZE bytes are never read;
	// the declared length is treated as stream corruption instead.
	ErrFrameTooLarge = errors.New("bcapi: frame exceeds size limit")

	// ErrAuthenticationFailed indicates the node rejected the login request.
	// Check the credential, role, and that the role is enabled on the node.
	ErrAuthenticationFailed = errors.New("bcapi: authentication failed")

	// ErrNotAuthenticated indicates a request was attempted before Authenticate
	// completed successfully. The node drops unauthenticated requests.
	ErrNotAuthenticated = errors.New("bcapi: session not authenticated")

	// ErrAlreadyAuthenticated indicates Authenticate was called twice with
	// different identity parameters on the same session. A session logs in
	// exactly once; open a new session to change role or credential.
	ErrAlreadyAuthenticated = errors.New("bcapi: session already authenticated")

	// ErrProtocolVersion indicates the node firmware speaks an unsupported
	// protocol revision. The client should refuse the session.
	ErrProtocolVersion = errors.New("bcapi: unsupported protocol version")

	// ErrTimeout indicates an operation exceeded its allowed time limit.
	// Operations respect context.Context deadlines when provided.
	ErrTimeout = errors.New("bcapi: operation timed out")

	// ErrFrameParsing indicates a failure to parse an incoming frame.
	// This typically indicates protocol violations or corrupted data.
	ErrFrameParsing = errors.New("bcapi: frame parsing failed")

	// ErrInvalidSequence indicates a reply carried a sequence number with no
	// matching in-flight request. Late replies after a timeout are dropped
	// silently; this error only surfaces for malformed correlation.
	ErrInvalidSequence = errors.New("bcapi: invalid sequence number")

	// ErrNotConnected indicates an operation requires an active connection but none exists.
	ErrNotConnected = errors.New("bcapi: not connected to node")

	// ErrAlreadyConnected indicates Connect() was called on an already-connected client.
	ErrAlreadyConnected = errors.New("bcapi: already connected")

	// ErrCircuitOpen indicates the circuit breaker is rejecting operations
	// because recent attempts kept failing. Wait for the reset timeout.
	ErrCircuitOpen = errors.New("bcapi: circuit breaker open")

	// ErrSessionClosed indicates an operation was attempted on a closed session.
	// All in-flight requests fail with this error when the session closes.
	ErrSessionClosed = errors.New("bcapi: session closed")

	// ErrSessionNotInitialized indicates an operation was attempted on an uninitialized session.
	// Sessions must be created using NewSession() to ensure proper initialization.
	// Zero-value Session{} instances are not safe to use.
	ErrSessionNotInitialized = errors.New("bcapi: session not initialized (use NewSession)")

	// ErrClientNotInitialized indicates an operation was attempted on an uninitialized client.
	// Clients must be created using NewClient() to ensure proper initialization.
	ErrClientNotInitialized = errors.New("bcapi: client not initialized (use NewClient)")

	// ErrClientClosed indicates an operation was attempted on a closed client.
	ErrClientClosed = errors.New("bcapi: client closed")

	// ErrBatcherClosed indicates a write was queued on a closed config
	// batcher. Entries accepted before Close are still flushed.
	ErrBatcherClosed = errors.New("bcapi: config batcher closed")

	// ErrBatcherNotInitialized indicates an operation was attempted on an
	// uninitialized batcher. Batchers must be created using NewConfigBatcher.
	ErrBatcherNotInitialized = errors.New("bcapi: config batcher not initialized (use NewConfigBatcher)")

	// ErrInvalidArgument indicates a nil or invalid argument was passed to a public API method.
	// All public methods validate their parameters and return this error for nil values.
	ErrInvalidArgument = errors.New("bcapi: invalid argument (nil or empty value)")

	// ErrInvalidPath indicates a malformed state path was supplied to a filter
	// or configuration request. Paths are dot-separated non-empty segments,
	// e.g. "system.version" or "gps.latitude".
	ErrInvalidPath = errors.New("bcapi: invalid state path")

	// ErrFieldNotFound indicates a requested field is absent from a state
	// document. Filtered queries report missing paths instead of inventing
	// empty values.
	ErrFieldNotFound = errors.New("bcapi: field not found in state document")

	// ErrTypeMismatch indicates a state field holds a different type than the
	// accessor requested. Values are never coerced across types.
	ErrTypeMismatch = errors.New("bcapi: state field type mismatch")
)

// FrameError represents an error related to BCAPI frame processing.
// It includes the message kind and additional context about what failed.
type FrameError struct {
	Kind      uint8  // BCAPI message kind constant
	Operation string // What operation failed (e.g., "parsing", "sending")
	Err       error  // Underlying error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("bcapi: %s frame %s failed: %v", getMessageKindName(e.Kind), e.Operation, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// NewFrameError creates a FrameError with the given parameters.
// Use this to wrap errors that occur during frame processing.
//
// Example:
//
//	if err := parseLogin(stream); err != nil {
//	    return NewFrameError(BCAPI_MSG_LOGIN, "parsing", err)
//	}
func NewFrameError(kind uint8, operation string, err error) error {
	return &FrameError{
		Kind:      kind,
		Operation: operation,
		Err:       err,
	}
}

// DeviceError represents an authoritative rejection sent by the node.
// It carries the status code from an Error or ConfigAck payload together
// with the node's human-readable message.
type DeviceError struct {
	Status  uint16 // BCAPI result status constant
	Message string // Diagnostic text from the node, may be empty
}

func (e *DeviceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("bcapi: node rejected request (%s): %s", getStatusName(e.Status), e.Message)
	}
	return fmt.Sprintf("bcapi: node rejected request (%s)", getStatusName(e.Status))
}

// NewDeviceError creates a DeviceError from a node status reply.
func NewDeviceError(status uint16, message string) error {
	return &DeviceError{
		Status:  status,
		Message: message,
	}
}

// ProtocolError represents a protocol-level error with detailed information.
// Use this for serious protocol violations that may indicate bugs or a
// desynchronized stream.
type ProtocolError struct {
	Message string // Human-readable error description
	Code    int    // Optional error code for programmatic handling
	Fatal   bool   // Whether this error should terminate the connection
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("bcapi protocol error (code %d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("bcapi protocol error: %s", e.Message)
}

// NewProtocolError creates a ProtocolError for serious protocol violations.
//
// Example:
//
//	if kind > BCAPI_MSG_ERROR {
//	    return NewProtocolError("unknown message kind", int(kind), false)
//	}
func NewProtocolError(message string, code int, fatal bool) error {
	return &ProtocolError{
		Message: message,
		Code:    code,
		Fatal:   fatal,
	}
}

// IsTemporary returns true if the error is temporary and the operation can be retried.
// This checks for specific error types that indicate transient failures.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}

	// Check for specific temporary errors
	if errors.Is(err, ErrTimeout) {
		return true
	}

	// A plain node FAILURE is worth retrying; the other statuses are
	// deterministic rejections.
	var de *DeviceError
	if errors.As(err, &de) {
		return de.Status == BCAPI_STATUS_FAILURE
	}

	// Check for network temporary errors
	type temporary interface {
		Temporary() bool
	}
	if te, ok := err.(temporary); ok {
		return te.Temporary()
	}

	return false
}

// IsFatal returns true if the error is fatal and the connection should be closed.
// Fatal errors indicate serious protocol violations or unrecoverable states.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	// Check for specific fatal errors
	if errors.Is(err, ErrProtocolVersion) ||
		errors.Is(err, ErrAuthenticationFailed) ||
		errors.Is(err, ErrConnectionClosed) ||
		errors.Is(err, ErrSessionClosed) {
		return true
	}

	// Check for ProtocolError with Fatal flag
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Fatal
	}

	return false
}
