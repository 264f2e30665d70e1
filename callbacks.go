// SessionCallbacks and ClientCallBacks struct definitions
package go_bcapi

// SessionCallbacks provides optional callback functions for session events.
// All callbacks run on the session's receive goroutine: they must return
// quickly and must not issue blocking session calls.
type SessionCallbacks struct {
	// OnUnsolicited receives node-initiated messages (sequence zero),
	// such as periodic state pushes, already interpreted.
	OnUnsolicited func(session *Session, reply Reply)

	// OnDisconnect fires once if the transport fails underneath the
	// session. It does not fire on a deliberate Close.
	OnDisconnect func(session *Session, err error)

	// OnProtocolError reports recoverable wire-level trouble: corrupt
	// frames the decoder skipped, unknown message kinds, or unsolicited
	// error reports from the node. The session keeps running.
	OnProtocolError func(session *Session, err error)
}

// ClientCallBacks provides optional callback functions for client events.
// Callbacks fire on the session's receive goroutine; the same
// no-blocking rule as SessionCallbacks applies.
type ClientCallBacks struct {
	// Opaque is caller data carried on the client, never touched by the
	// library.
	Opaque interface{}

	// OnDisconnect fires when the client's session is lost underneath it
	// (node reboot, link loss). It does not fire on a deliberate Close.
	OnDisconnect func(client *Client, reason string, err error)

	// OnUnsolicited receives node-initiated pushes when the session was
	// opened without its own OnUnsolicited hook.
	OnUnsolicited func(client *Client, reply Reply)
}
