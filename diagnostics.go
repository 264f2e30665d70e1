package go_bcapi

import (
	"fmt"
	"sync"
	"time"
)

// MessageStats tracks sent and received message counts by kind. It is
// the raw material for DiagnosticReport, which turns the counts into a
// readable verdict on where a silent node exchange went wrong.
//
// Recording is off until Enable is called, so an idle tracker costs one
// nil check per message. All methods are safe on a nil receiver.
type MessageStats struct {
	mu           sync.RWMutex
	sent         map[uint8]uint64    // count of sent messages by kind
	received     map[uint8]uint64    // count of received messages by kind
	lastSent     map[uint8]time.Time // timestamp of last sent message by kind
	lastReceived map[uint8]time.Time // timestamp of last received message by kind
	enabled      bool
	startTime    time.Time
}

// NewMessageStats creates a message statistics tracker. Tracking starts
// disabled.
func NewMessageStats() *MessageStats {
	return &MessageStats{
		sent:         make(map[uint8]uint64),
		received:     make(map[uint8]uint64),
		lastSent:     make(map[uint8]time.Time),
		lastReceived: make(map[uint8]time.Time),
		startTime:    time.Now(),
	}
}

// Enable turns recording on and restarts the tracking clock.
func (ms *MessageStats) Enable() {
	if ms == nil {
		return
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.enabled = true
	ms.startTime = time.Now()
}

// Disable turns recording off. Collected counts are kept.
func (ms *MessageStats) Disable() {
	if ms == nil {
		return
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.enabled = false
}

// IsEnabled reports whether recording is on.
func (ms *MessageStats) IsEnabled() bool {
	if ms == nil {
		return false
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.enabled
}

// RecordSent records one sent message of the given kind.
func (ms *MessageStats) RecordSent(kind uint8) {
	if ms == nil {
		return
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if !ms.enabled {
		return
	}
	ms.sent[kind]++
	ms.lastSent[kind] = time.Now()
}

// RecordReceived records one received message of the given kind.
func (ms *MessageStats) RecordReceived(kind uint8) {
	if ms == nil {
		return
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if !ms.enabled {
		return
	}
	ms.received[kind]++
	ms.lastReceived[kind] = time.Now()
}

// GetSentCount returns the number of sent messages of the given kind.
func (ms *MessageStats) GetSentCount(kind uint8) uint64 {
	if ms == nil {
		return 0
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.sent[kind]
}

// GetReceivedCount returns the number of received messages of the given kind.
func (ms *MessageStats) GetReceivedCount(kind uint8) uint64 {
	if ms == nil {
		return 0
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.received[kind]
}

// GetLastSent returns the timestamp of the last sent message of the
// given kind, and whether one was ever recorded.
func (ms *MessageStats) GetLastSent(kind uint8) (time.Time, bool) {
	if ms == nil {
		return time.Time{}, false
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	t, exists := ms.lastSent[kind]
	return t, exists
}

// GetLastReceived returns the timestamp of the last received message of
// the given kind, and whether one was ever recorded.
func (ms *MessageStats) GetLastReceived(kind uint8) (time.Time, bool) {
	if ms == nil {
		return time.Time{}, false
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	t, exists := ms.lastReceived[kind]
	return t, exists
}

// Reset clears all counts and restarts the tracking clock.
func (ms *MessageStats) Reset() {
	if ms == nil {
		return
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.sent = make(map[uint8]uint64)
	ms.received = make(map[uint8]uint64)
	ms.lastSent = make(map[uint8]time.Time)
	ms.lastReceived = make(map[uint8]time.Time)
	ms.startTime = time.Now()
}

// Summary returns a human-readable summary of the message counts,
// listing only kinds that actually appeared on the wire.
func (ms *MessageStats) Summary() string {
	if ms == nil {
		return "Message statistics tracking is disabled"
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if !ms.enabled {
		return "Message statistics tracking is disabled"
	}

	duration := time.Since(ms.startTime)

	summary := fmt.Sprintf("Message Statistics (tracking for %v):\n", duration)
	summary += fmt.Sprintf("  Total Messages: sent=%d, received=%d\n\n", ms.totalSent(), ms.totalReceived())

	summary += "Sent Messages:\n"
	for kind := uint8(BCAPI_MSG_LOGIN); kind <= BCAPI_MSG_ERROR; kind++ {
		count := ms.sent[kind]
		if count == 0 {
			continue
		}
		summary += fmt.Sprintf("  %s (kind %d): count=%d, last=%v\n",
			getMessageKindName(kind), kind, count, ms.lastSent[kind].Format(time.RFC3339))
	}

	summary += "\nReceived Messages:\n"
	for kind := uint8(BCAPI_MSG_LOGIN); kind <= BCAPI_MSG_ERROR; kind++ {
		count := ms.received[kind]
		if count == 0 {
			continue
		}
		summary += fmt.Sprintf("  %s (kind %d): count=%d, last=%v\n",
			getMessageKindName(kind), kind, count, ms.lastReceived[kind].Format(time.RFC3339))
	}

	return summary
}

// DiagnosticReport walks the recorded counts through the expected
// request flow, login first, and names the first place the exchange
// went quiet. This is the report to read when a node accepts the TCP
// connection but every query times out.
func (ms *MessageStats) DiagnosticReport() string {
	if ms == nil {
		return "Message statistics tracking is disabled. Enable with client.EnableMessageStats()"
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if !ms.enabled {
		return "Message statistics tracking is disabled. Enable with client.EnableMessageStats()"
	}

	duration := time.Since(ms.startTime)
	report := fmt.Sprintf("=== BCAPI Diagnostic Report (tracking for %v) ===\n\n", duration)

	// A node silently drops everything until a login succeeds, so a
	// missing login explains every downstream timeout.
	loginsSent := ms.sent[BCAPI_MSG_LOGIN]
	if loginsSent == 0 {
		report += "❌ ISSUE: No Login message sent\n"
		report += "   → The node drops queries until a Login succeeds\n\n"
	} else {
		report += fmt.Sprintf("✓ Login sent: %d time(s)\n", loginsSent)
		if lastSent, exists := ms.lastSent[BCAPI_MSG_LOGIN]; exists {
			report += fmt.Sprintf("  Last sent: %v (%v ago)\n", lastSent.Format(time.RFC3339), time.Since(lastSent))
		}
		report += "\n"
	}

	// The login verdict arrives as a ConfigAck.
	acksReceived := ms.received[BCAPI_MSG_CONFIG_ACK]
	if loginsSent > 0 && acksReceived == 0 {
		report += "❌ ISSUE: Login sent but no ConfigAck received\n"
		report += "   Possible causes:\n"
		report += "   1. Wrong management port (check bcapi.tcp.port)\n"
		report += "   2. Node requires TLS but bcapi.SSL is false\n"
		report += "   3. Node still booting, management interface not up yet\n"
		report += "   4. Node dropped the frame as corrupt (would show in node log)\n\n"
	} else if acksReceived > 0 {
		report += fmt.Sprintf("✓ ConfigAck received: %d time(s)\n", acksReceived)
		if lastRecv, exists := ms.lastReceived[BCAPI_MSG_CONFIG_ACK]; exists {
			report += fmt.Sprintf("  Last received: %v (%v ago)\n", lastRecv.Format(time.RFC3339), time.Since(lastRecv))
		}
		report += "\n"
	}

	queriesSent := ms.sent[BCAPI_MSG_STATE_QUERY] + ms.sent[BCAPI_MSG_STATE_QUERY_FILTERED]
	repliesReceived := ms.received[BCAPI_MSG_STATE_REPLY]
	if queriesSent > 0 {
		report += fmt.Sprintf("State queries: sent=%d, replies=%d\n", queriesSent, repliesReceived)
		if repliesReceived < queriesSent {
			report += "❌ WARNING: state queries outstanding - raise the request timeout or check the link\n"
		}
		report += "\n"
	}

	if errorsReceived := ms.received[BCAPI_MSG_ERROR]; errorsReceived > 0 {
		report += fmt.Sprintf("❌ %d Error message(s) received - the node rejected requests, see OnProtocolError\n\n", errorsReceived)
	}

	report += "Message Flow:\n"
	report += fmt.Sprintf("  Sent:     %d messages\n", ms.totalSent())
	report += fmt.Sprintf("  Received: %d messages\n", ms.totalReceived())

	if ms.totalSent() > 0 && ms.totalReceived() == 0 {
		report += "\n❌ WARNING: Messages sent but none received - wrong port, or the link is one-way\n"
	}

	return report
}

// totalSent returns the total number of sent messages. Called with mu
// held.
func (ms *MessageStats) totalSent() uint64 {
	var total uint64
	for _, count := range ms.sent {
		total += count
	}
	return total
}

// totalReceived returns the total number of received messages. Called
// with mu held.
func (ms *MessageStats) totalReceived() uint64 {
	var total uint64
	for _, count := range ms.received {
		total += count
	}
	return total
}

// ConnectionState is a snapshot of the client's connection for
// diagnostic purposes.
type ConnectionState struct {
	Connected     bool
	NodeVersion   string
	SessionActive bool
	SessionID     string
	AuthState     AuthState
	PendingCalls  int
	LastError     error
	LastErrorTime time.Time
}

// GetConnectionState returns the current connection state for
// diagnostic purposes.
func (c *Client) GetConnectionState() *ConnectionState {
	if err := c.ensureInitialized(); err != nil {
		return &ConnectionState{
			Connected:     false,
			LastError:     err,
			LastErrorTime: time.Now(),
		}
	}

	c.lock.Lock()
	session := c.session
	state := &ConnectionState{
		Connected: c.connected,
	}
	c.lock.Unlock()

	if session != nil && !session.IsClosed() {
		state.SessionActive = true
		state.SessionID = session.ID()
		state.AuthState = session.AuthState()
		state.PendingCalls = session.PendingCalls()
		state.NodeVersion = session.DeviceVersion().String()
	}

	return state
}

// GetMessageStats returns the client's message statistics tracker, or
// nil if EnableMessageStats was never called.
func (c *Client) GetMessageStats() *MessageStats {
	if err := c.ensureInitialized(); err != nil {
		return nil
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	return c.messageStats
}

// EnableMessageStats enables message statistics tracking. Enable it
// before OpenSession when troubleshooting a node exchange; sessions
// pick the tracker up when they are opened.
func (c *Client) EnableMessageStats() {
	if err := c.ensureInitialized(); err != nil {
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.messageStats == nil {
		c.messageStats = NewMessageStats()
	}
	c.messageStats.Enable()
	Debug("Message statistics tracking enabled")
}

// DisableMessageStats disables message statistics tracking.
func (c *Client) DisableMessageStats() {
	if err := c.ensureInitialized(); err != nil {
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.messageStats != nil {
		c.messageStats.Disable()
		Debug("Message statistics tracking disabled")
	}
}

// PrintDiagnostics logs a diagnostic report covering the connection
// state, the live session and the message flow. This is the first thing
// to run when a node connects but will not answer.
func (c *Client) PrintDiagnostics() {
	if err := c.ensureInitialized(); err != nil {
		Error("Cannot print diagnostics: %v", err)
		return
	}

	Info("=== BCAPI Client Diagnostics ===")

	state := c.GetConnectionState()
	Info("Connection State:")
	Info("  Connected: %v", state.Connected)
	if state.SessionActive {
		Info("  Session: %s (auth %s, %d pending calls)",
			state.SessionID, state.AuthState, state.PendingCalls)
		if state.NodeVersion != "" {
			Info("  Node Firmware: %s", state.NodeVersion)
		}
	}
	if state.LastError != nil {
		Error("  Last Error: %v (at %v)", state.LastError, state.LastErrorTime)
	}

	if session := c.CurrentSession(); session != nil {
		Info("  Link: %s", session.Throughput())
	}

	if stats := c.GetMessageStats(); stats.IsEnabled() {
		Info("\n%s", stats.DiagnosticReport())
	} else {
		Info("\nMessage statistics tracking is disabled")
		Info("Enable with client.EnableMessageStats() to track message flow")
	}
}
