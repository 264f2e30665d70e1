package go_bcapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// defaultRequestTimeout bounds Call.Await when the caller's context
	// carries no deadline.
	defaultRequestTimeout = 10 * time.Second

	// pumpPollInterval is the read deadline granularity of the receive
	// loop, so it notices Close between blocking reads.
	pumpPollInterval = 250 * time.Millisecond

	// compressionThreshold is the minimum request payload size before
	// deflate is attempted on a node that supports it.
	compressionThreshold = 512

	// pumpReadBufferSize is the transport read chunk size.
	pumpReadBufferSize = 32 * 1024
)

// Session drives the BCAPI request/reply exchange over a single transport
// connection. It stamps outgoing requests with unique sequence numbers,
// correlates replies back to their callers and tracks the authentication
// state machine. A session owns its transport exclusively: nothing else
// may read from or write to it while the session is open.
//
// Typical use:
//
//	session := NewSession(transport, SessionCallbacks{})
//	if err := session.Open(ctx); err != nil { ... }
//	defer session.Close()
//	if err := session.Authenticate(ctx, identity); err != nil { ... }
//	doc, err := session.QueryState(ctx)
type Session struct {
	transport Transport
	callbacks *SessionCallbacks

	id      string // trace id, carried in every log line
	created time.Time

	decoder *FrameDecoder

	// mu guards sequence, pending, authState, identity, fatalErr,
	// opened, deviceVersion and capabilities.
	mu        sync.RWMutex
	sequence  uint32
	pending   map[uint32]*Call
	authState AuthState
	identity  *LoginIdentity
	fatalErr  error
	opened    bool

	deviceVersion Version
	capabilities  uint32

	// authMu serializes Authenticate so the wire sees at most one login.
	authMu sync.Mutex

	requestTimeout time.Duration
	metrics        MetricsCollector
	stats          *MessageStats
	traffic        linkTraffic

	closeOnce sync.Once
}

// NewSession creates a session over the given transport. The transport
// may be connected already or connect lazily in Open. Callbacks are
// optional; a zero SessionCallbacks drops unsolicited messages.
func NewSession(transport Transport, callbacks SessionCallbacks) *Session {
	session := &Session{
		transport:      transport,
		callbacks:      &callbacks,
		id:             uuid.NewString(),
		created:        time.Now(),
		decoder:        NewFrameDecoder(),
		pending:        make(map[uint32]*Call),
		authState:      AUTH_STATE_UNAUTHENTICATED,
		requestTimeout: defaultRequestTimeout,
	}
	session.decoder.OnError = session.noteDecodeError

	Debug("Session %s created", session.id)
	return session
}

// ensureInitialized checks that the session was built with NewSession
// rather than a zero-value literal, which would panic on first use.
func (session *Session) ensureInitialized() error {
	if session.transport == nil || session.pending == nil || session.decoder == nil {
		return ErrSessionNotInitialized
	}
	return nil
}

// SetRequestTimeout changes the default per-request timeout applied by
// Call.Await when the caller's context has no deadline. Must be called
// before requests are issued.
func (session *Session) SetRequestTimeout(timeout time.Duration) {
	if timeout > 0 {
		session.requestTimeout = timeout
	}
}

// SetMetricsCollector attaches a metrics collector. Must be called
// before Open; a nil collector disables metrics.
func (session *Session) SetMetricsCollector(collector MetricsCollector) {
	session.metrics = collector
}

// SetMessageStats attaches a message statistics recorder, shared with
// the owning client when there is one. Must be called before Open; nil
// disables recording.
func (session *Session) SetMessageStats(stats *MessageStats) {
	session.stats = stats
}

// ID returns the session's trace identifier.
func (session *Session) ID() string {
	return session.id
}

// CreatedAt returns the session creation time.
func (session *Session) CreatedAt() time.Time {
	return session.created
}

// AuthState returns the current authentication state.
func (session *Session) AuthState() AuthState {
	session.mu.RLock()
	defer session.mu.RUnlock()
	return session.authState
}

// DeviceVersion returns the node firmware version learned from the last
// state document, or a zero Version before any state query succeeded.
func (session *Session) DeviceVersion() Version {
	session.mu.RLock()
	defer session.mu.RUnlock()
	return session.deviceVersion
}

// HasCapability reports whether the node is known to support the given
// DEVICE_CAN_* capability. Capabilities are derived from the firmware
// version, so this reports false until a state query has completed.
func (session *Session) HasCapability(capability uint32) bool {
	session.mu.RLock()
	defer session.mu.RUnlock()
	return session.capabilities&capability != 0
}

// PendingCalls returns the number of requests awaiting a reply.
func (session *Session) PendingCalls() int {
	session.mu.RLock()
	defer session.mu.RUnlock()
	return len(session.pending)
}

// Throughput returns the wire traffic totals since Open and the rates
// over the trailing ten seconds.
func (session *Session) Throughput() Throughput {
	return session.traffic.snapshot(time.Now())
}

// IsClosed reports whether the session has been closed or has failed.
func (session *Session) IsClosed() bool {
	return session.failed() != nil
}

// failed returns the fatal error that ended the session, or nil while
// the session is still usable.
func (session *Session) failed() error {
	session.mu.RLock()
	defer session.mu.RUnlock()
	return session.fatalErr
}

// Open readies the session for traffic: it connects the transport if it
// knows how to connect and is not yet connected, then starts the receive
// loop. Open is idempotent while the session is healthy. The context
// bounds only the opening itself, not the session lifetime.
func (session *Session) Open(ctx context.Context) error {
	if err := session.ensureInitialized(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("bcapi: opening session: %w", err)
	}

	session.mu.Lock()
	if session.fatalErr != nil {
		err := session.fatalErr
		session.mu.Unlock()
		return err
	}
	if session.opened {
		session.mu.Unlock()
		return nil
	}
	session.opened = true
	session.mu.Unlock()

	if dialer, ok := session.transport.(interface {
		Connect() error
		IsConnected() bool
	}); ok && !dialer.IsConnected() {
		if err := dialer.Connect(); err != nil {
			session.mu.Lock()
			session.opened = false
			session.mu.Unlock()
			session.countError("connect")
			return err
		}
	}

	if session.metrics != nil {
		session.metrics.SetConnectionState("connected")
	}

	go session.pump()

	Debug("Session %s open", session.id)
	return nil
}

// Close shuts the session down: the transport is closed and every
// outstanding call resolves with ErrSessionClosed. Closing an already
// closed or failed session is a no-op.
func (session *Session) Close() error {
	if err := session.ensureInitialized(); err != nil {
		return err
	}
	session.closeOnce.Do(func() {
		session.fail(ErrSessionClosed)
	})
	return nil
}

// Call tracks a single in-flight request until its reply arrives. Obtain
// one from SendRequest and wait on it with Await, or select on Done and
// read Reply afterwards.
type Call struct {
	// Kind is the message kind of the request.
	Kind uint8
	// Sequence is the sequence number stamped on the request.
	Sequence uint32

	session *Session
	sentAt  time.Time
	done    chan struct{}

	reply *Message
	err   error
}

// Done returns a channel that closes when the call has resolved.
func (call *Call) Done() <-chan struct{} {
	return call.done
}

// Reply returns the resolution of the call. It must only be called after
// Done is closed; before that the result is not yet meaningful.
func (call *Call) Reply() (*Message, error) {
	return call.reply, call.err
}

// resolve records the outcome. It must be called exactly once, and only
// after the call has been removed from the session's pending map.
func (call *Call) resolve(reply *Message, err error) {
	call.reply = reply
	call.err = err
	close(call.done)
}

// Await blocks until the reply arrives, the context ends, or the session
// closes. A context without a deadline gets the session's default request
// timeout. On timeout or cancellation the call is abandoned: the pending
// entry is removed so a late reply is silently discarded.
func (call *Call) Await(ctx context.Context) (*Message, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.session.requestTimeout)
		defer cancel()
	}

	select {
	case <-call.done:
		return call.reply, call.err
	case <-ctx.Done():
	}

	// The context fired, but the reply may have raced in. Whoever removes
	// the call from the pending map owns its resolution.
	if !call.session.unregister(call) {
		<-call.done
		return call.reply, call.err
	}

	var err error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		elapsed := time.Since(call.sentAt).Round(time.Millisecond)
		Warning("Session %s: no %s reply for sequence %d after %v",
			call.session.id, getMessageKindName(call.Kind), call.Sequence, elapsed)
		call.session.countError("timeout")
		err = fmt.Errorf("%w: no %s reply for sequence %d after %v",
			ErrTimeout, getMessageKindName(call.Kind), call.Sequence, elapsed)
	} else {
		err = fmt.Errorf("bcapi: awaiting %s reply for sequence %d: %w",
			getMessageKindName(call.Kind), call.Sequence, ctx.Err())
	}
	call.resolve(nil, err)
	return nil, err
}

// SendRequest stamps msg with a fresh sequence number, registers it for
// reply correlation and writes the encoded frame to the transport. The
// returned Call resolves when a reply carrying the same sequence arrives
// or the session closes. msg must not be reused for another request.
//
// Requests other than Login are rejected with ErrNotAuthenticated until
// Authenticate has succeeded.
func (session *Session) SendRequest(msg *Message) (*Call, error) {
	if err := session.ensureInitialized(); err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrInvalidArgument
	}

	call, err := session.registerCall(msg)
	if err != nil {
		return nil, err
	}

	frame, err := EncodeFrame(msg, session.shouldCompress(msg))
	if err != nil {
		session.unregister(call)
		return nil, err
	}
	if len(msg.Payload) > BCAPI_SAFE_REQUEST_SIZE {
		Warning("Session %s: %s request payload is %d bytes, above the safe request size %d",
			session.id, getMessageKindName(msg.Kind), len(msg.Payload), BCAPI_SAFE_REQUEST_SIZE)
	}

	Debug("Session %s: sending %s sequence=%d payload=%d bytes",
		session.id, getMessageKindName(msg.Kind), msg.Sequence, len(msg.Payload))

	written, err := session.transport.Write(frame.Bytes())
	ReleaseStream(frame)
	if err != nil {
		session.unregister(call)
		// A partial write leaves the stream at an unknown offset; the
		// connection cannot carry further frames.
		session.fail(fmt.Errorf("%w: writing %s frame: %v",
			ErrConnectionClosed, getMessageKindName(msg.Kind), err))
		return nil, fmt.Errorf("bcapi: writing %s frame: %w", getMessageKindName(msg.Kind), err)
	}

	session.traffic.recordSent(uint64(written), time.Now())
	session.stats.RecordSent(msg.Kind)
	if session.metrics != nil {
		session.metrics.IncrementMessageSent(msg.Kind)
		session.metrics.AddBytesSent(uint64(written))
	}
	return call, nil
}

// registerCall allocates the next free sequence number, stamps it on msg
// and inserts the call into the pending map, all under one lock so a
// sequence can never be issued twice while its first use is in flight.
func (session *Session) registerCall(msg *Message) (*Call, error) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.fatalErr != nil {
		return nil, session.fatalErr
	}
	if msg.Kind != BCAPI_MSG_LOGIN && session.authState != AUTH_STATE_AUTHENTICATED {
		return nil, ErrNotAuthenticated
	}

	seq := session.sequence
	for {
		seq++
		if seq == BCAPI_SEQUENCE_NONE {
			seq++
		}
		if _, busy := session.pending[seq]; !busy {
			break
		}
	}
	session.sequence = seq
	msg.Sequence = seq

	call := &Call{
		Kind:     msg.Kind,
		Sequence: seq,
		session:  session,
		sentAt:   time.Now(),
		done:     make(chan struct{}),
	}
	session.pending[seq] = call
	return call, nil
}

// unregister removes the call from the pending map. It reports whether
// the call was still pending; the caller that removed it owns its
// resolution.
func (session *Session) unregister(call *Call) bool {
	session.mu.Lock()
	defer session.mu.Unlock()
	if _, ok := session.pending[call.Sequence]; !ok {
		return false
	}
	delete(session.pending, call.Sequence)
	return true
}

// shouldCompress reports whether the request payload is worth deflating:
// the node must have advertised support and the payload must be large
// enough to plausibly win.
func (session *Session) shouldCompress(msg *Message) bool {
	return session.HasCapability(DEVICE_CAN_DEFLATE) && len(msg.Payload) >= compressionThreshold
}

// pump is the receive loop. It reads from the transport in short
// deadline slices, feeds the decoder and dispatches complete messages
// until the session closes or the transport fails.
func (session *Session) pump() {
	buf := make([]byte, pumpReadBufferSize)
	for {
		if session.failed() != nil {
			return
		}

		if err := session.transport.SetReadDeadline(time.Now().Add(pumpPollInterval)); err != nil {
			session.pumpFatal(err)
			return
		}

		n, err := session.transport.Read(buf)
		if n > 0 {
			session.traffic.recordReceived(uint64(n), time.Now())
			if session.metrics != nil {
				session.metrics.AddBytesReceived(uint64(n))
			}
			for _, msg := range session.decoder.Feed(buf[:n]) {
				session.dispatch(msg)
			}
		}
		if err != nil && !isReadTimeout(err) {
			session.pumpFatal(err)
			return
		}
	}
}

// pumpFatal converts a transport error observed by the receive loop into
// session failure, unless a shutdown is already in progress.
func (session *Session) pumpFatal(err error) {
	if session.failed() != nil {
		return
	}
	if errors.Is(err, io.EOF) {
		session.fail(fmt.Errorf("%w: node closed the connection", ErrConnectionClosed))
		return
	}
	session.fail(fmt.Errorf("%w: %v", ErrConnectionClosed, err))
}

// isReadTimeout reports whether a read failed only because the poll
// deadline expired.
func isReadTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// dispatch routes one decoded message: replies resolve their pending
// call, unsolicited messages go to the callback, and replies nobody is
// waiting for anymore are dropped.
func (session *Session) dispatch(msg *Message) {
	session.stats.RecordReceived(msg.Kind)
	if session.metrics != nil {
		session.metrics.IncrementMessageReceived(msg.Kind)
	}

	if msg.Sequence == BCAPI_SEQUENCE_NONE {
		session.dispatchUnsolicited(msg)
		return
	}

	session.mu.Lock()
	call, ok := session.pending[msg.Sequence]
	if ok {
		delete(session.pending, msg.Sequence)
	}
	session.mu.Unlock()

	if !ok {
		// Late reply to an abandoned call, or a sequence we never issued.
		Debug("Session %s: dropping stale %s reply sequence=%d",
			session.id, getMessageKindName(msg.Kind), msg.Sequence)
		session.countError("stale_reply")
		return
	}

	if session.metrics != nil {
		session.metrics.RecordMessageLatency(call.Kind, time.Since(call.sentAt))
	}
	Debug("Session %s: %s reply for sequence %d after %v",
		session.id, getMessageKindName(msg.Kind), msg.Sequence, time.Since(call.sentAt).Round(time.Millisecond))
	call.resolve(msg, nil)
}

// dispatchUnsolicited hands a node-initiated message to the registered
// callback. Unsolicited error reports surface through OnProtocolError
// instead, since they interpret as errors rather than replies.
func (session *Session) dispatchUnsolicited(msg *Message) {
	reply, err := Interpret(msg)
	if err != nil {
		Warning("Session %s: unsolicited %s: %v", session.id, getMessageKindName(msg.Kind), err)
		session.countError("unsolicited")
		session.noteProtocolError(err)
		return
	}

	if session.callbacks == nil || session.callbacks.OnUnsolicited == nil {
		Debug("Session %s: dropping unsolicited %s, no callback registered",
			session.id, getMessageKindName(msg.Kind))
		return
	}
	session.invokeCallback("unsolicited", func() {
		session.callbacks.OnUnsolicited(session, reply)
	})
}

// noteDecodeError is the frame decoder's error hook.
func (session *Session) noteDecodeError(err error) {
	session.countError("decode")
	session.noteProtocolError(err)
}

// noteProtocolError forwards a recoverable wire-level error to the
// OnProtocolError callback, if one is registered.
func (session *Session) noteProtocolError(err error) {
	if session.callbacks == nil || session.callbacks.OnProtocolError == nil {
		return
	}
	session.invokeCallback("protocol error", func() {
		session.callbacks.OnProtocolError(session, err)
	})
}

// invokeCallback runs a user callback with panic containment so a buggy
// hook cannot take down the receive loop.
func (session *Session) invokeCallback(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			Error("Panic in %s callback for session %s: %v", name, session.id, r)
		}
	}()
	fn()
}

// countError bumps the metrics error counter when a collector is set.
func (session *Session) countError(errorType string) {
	if session.metrics != nil {
		session.metrics.IncrementError(errorType)
	}
}

// fail marks the session dead with cause, closes the transport and
// resolves every pending call. Only the first cause sticks, so a user
// Close and a transport failure cannot both claim the session.
func (session *Session) fail(cause error) {
	session.mu.Lock()
	if session.fatalErr != nil {
		session.mu.Unlock()
		return
	}
	session.fatalErr = cause
	session.authState = AUTH_STATE_CLOSED
	calls := make([]*Call, 0, len(session.pending))
	for _, call := range session.pending {
		calls = append(calls, call)
	}
	session.pending = make(map[uint32]*Call)
	session.mu.Unlock()

	session.transport.Close()

	for _, call := range calls {
		call.resolve(nil, cause)
	}

	if session.metrics != nil {
		session.metrics.SetConnectionState("disconnected")
	}

	if errors.Is(cause, ErrSessionClosed) {
		Debug("Session %s closed after %v, %d calls abandoned",
			session.id, time.Since(session.created).Round(time.Millisecond), len(calls))
		return
	}

	Warning("Session %s lost: %v (%d calls failed)", session.id, cause, len(calls))
	session.countError("disconnect")
	if session.callbacks != nil && session.callbacks.OnDisconnect != nil {
		session.invokeCallback("disconnect", func() {
			session.callbacks.OnDisconnect(session, cause)
		})
	}
}

// Authenticate performs the login exchange for identity and waits for
// the node's verdict. A session authenticates at most once: repeating a
// successful call with the same identity returns nil without touching
// the wire, a different identity returns ErrAlreadyAuthenticated, and
// after any failed attempt the session stays in a terminal failed state.
//
// An authoritative rejection by the node carries a *DeviceError; a
// timeout carries ErrTimeout. Both also match ErrAuthenticationFailed.
func (session *Session) Authenticate(ctx context.Context, identity *LoginIdentity) error {
	if err := session.ensureInitialized(); err != nil {
		return err
	}
	if identity == nil {
		return ErrInvalidArgument
	}

	session.authMu.Lock()
	defer session.authMu.Unlock()

	session.mu.Lock()
	switch session.authState {
	case AUTH_STATE_AUTHENTICATED:
		previous := session.identity
		session.mu.Unlock()
		if previous != nil && previous.Role == identity.Role && previous.Serial == identity.Serial {
			return nil
		}
		return ErrAlreadyAuthenticated
	case AUTH_STATE_FAILED:
		session.mu.Unlock()
		return fmt.Errorf("%w: previous attempt failed, open a new session", ErrAuthenticationFailed)
	case AUTH_STATE_CLOSED:
		err := session.fatalErr
		session.mu.Unlock()
		return err
	}
	session.authState = AUTH_STATE_AUTHENTICATING
	session.mu.Unlock()

	Debug("Session %s: authenticating as role %s", session.id, identity.Role)
	err := session.login(ctx, identity)

	session.mu.Lock()
	if err != nil {
		if session.authState == AUTH_STATE_AUTHENTICATING {
			session.authState = AUTH_STATE_FAILED
		}
		session.mu.Unlock()
		session.countError("auth")
		Warning("Session %s: authentication failed: %v", session.id, err)
		return err
	}
	session.authState = AUTH_STATE_AUTHENTICATED
	session.identity = identity
	session.mu.Unlock()

	Info("Session %s authenticated as role %s", session.id, identity.Role)
	return nil
}

// login runs one login round trip. The node answers a Login request with
// a ConfigAck carrying the verdict, or with an Error message.
func (session *Session) login(ctx context.Context, identity *LoginIdentity) error {
	msg, err := BuildLogin(identity)
	if err != nil {
		return err
	}

	call, err := session.SendRequest(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	reply, err := call.Await(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	result, err := Interpret(reply)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	ack, ok := result.(*ConfigResult)
	if !ok {
		return fmt.Errorf("%w: unexpected %s reply to login",
			ErrAuthenticationFailed, getMessageKindName(reply.Kind))
	}
	if ack.Status != BCAPI_STATUS_SUCCESS {
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, NewDeviceError(ack.Status, ack.Message))
	}
	return nil
}

// QueryState asks the node for its full state document.
func (session *Session) QueryState(ctx context.Context) (*StateDocument, error) {
	return session.queryState(ctx, BuildStateQuery())
}

// QueryStateFiltered asks for the subtrees selected by filter. On nodes
// whose firmware predates server-side filtering the full document is
// fetched instead. In both cases the filter is applied locally, so the
// result is the same whichever path was taken. A nil or empty filter is
// equivalent to QueryState.
func (session *Session) QueryStateFiltered(ctx context.Context, filter *FilterSpec) (*StateDocument, error) {
	if filter == nil || filter.Empty() {
		return session.QueryState(ctx)
	}

	msg := BuildStateQuery()
	if session.HasCapability(DEVICE_CAN_FILTERED_QUERY) {
		var err error
		msg, err = BuildStateQueryFiltered(filter)
		if err != nil {
			return nil, err
		}
	}

	doc, err := session.queryState(ctx, msg)
	if err != nil {
		return nil, err
	}
	return filter.Apply(doc), nil
}

// queryState sends a prepared state query and decodes the reply.
func (session *Session) queryState(ctx context.Context, msg *Message) (*StateDocument, error) {
	call, err := session.SendRequest(msg)
	if err != nil {
		return nil, err
	}
	reply, err := call.Await(ctx)
	if err != nil {
		return nil, err
	}

	result, err := Interpret(reply)
	if err != nil {
		return nil, err
	}
	doc, ok := result.(*StateDocument)
	if !ok {
		return nil, NewProtocolError(
			fmt.Sprintf("unexpected %s reply to state query", getMessageKindName(reply.Kind)), 0, false)
	}

	session.noteDeviceVersion(doc)
	return doc, nil
}

// ApplyConfig sends a configuration change set and returns the node's
// verdict. The result is non-nil whenever the node acknowledged the
// request, even for rejections; callers that only care about success can
// use result.Err().
func (session *Session) ApplyConfig(ctx context.Context, set *ConfigSet) (*ConfigResult, error) {
	msg, err := BuildConfigSet(set)
	if err != nil {
		return nil, err
	}

	call, err := session.SendRequest(msg)
	if err != nil {
		return nil, err
	}
	reply, err := call.Await(ctx)
	if err != nil {
		return nil, err
	}

	result, err := Interpret(reply)
	if err != nil {
		return nil, err
	}
	ack, ok := result.(*ConfigResult)
	if !ok {
		return nil, NewProtocolError(
			fmt.Sprintf("unexpected %s reply to config set", getMessageKindName(reply.Kind)), 0, false)
	}

	if !ack.Ok() {
		Warning("Session %s: config change rejected: %v", session.id, ack.Err())
	} else {
		Debug("Session %s: %d config entries applied", session.id, ack.Applied)
	}
	return ack, nil
}

// noteDeviceVersion caches the firmware version reported in a state
// document and derives the capability bits gated on it. Server-side
// filtered queries arrived in firmware 1.1.0, deflate support in 1.2.0.
func (session *Session) noteDeviceVersion(doc *StateDocument) {
	str, err := doc.GetString("system.version")
	if err != nil {
		return
	}

	version := parseVersion(str)
	var caps uint32
	if version.compare(Version{major: 1, minor: 1}) >= 0 {
		caps |= DEVICE_CAN_FILTERED_QUERY
	}
	if version.compare(Version{major: 1, minor: 2}) >= 0 {
		caps |= DEVICE_CAN_DEFLATE
	}

	session.mu.Lock()
	changed := session.deviceVersion != version || session.capabilities != caps
	session.deviceVersion = version
	session.capabilities = caps
	session.mu.Unlock()

	if changed {
		Info("Session %s: node firmware %s, capabilities 0x%02x", session.id, version.String(), caps)
	}
}
