package go_bcapi

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

var defaultProperties = map[string]string{
	"bcapi.role":            ROLE_VIEW,
	"bcapi.credential":      "",
	"bcapi.serial":          "",
	"bcapi.requestTimeout":  "10s",
	"bcapi.bufferPool":      "false",
	"bcapi.SSL":             "false",
	"bcapi.SSL.certFile":    "",
	"bcapi.SSL.keyFile":     "",
	"bcapi.SSL.caFile":      "",
	"bcapi.SSL.insecure":    "false",
	"bcapi.SSL.fingerprint": "",
	"bcapi.tcp.host":        "127.0.0.1",
	"bcapi.tcp.port":        "2300",
}

var defaultConfigFile = "/.bcapi.conf"

// Client is the property-driven facade over one node connection. It owns
// the TCP/TLS transport, opens at most one session over it, and carries
// the optional circuit breaker and metrics plumbing. Programs that want
// direct control can skip the Client and drive a Session themselves.
type Client struct {
	callbacks     *ClientCallBacks
	properties    map[string]string
	tcp           Tcp
	session       *Session
	lastCallbacks *SessionCallbacks
	lock          sync.Mutex
	connected     bool
	shutdown      chan struct{}

	// Reconnection support. Disabled by default; the session itself never
	// retries, so a lost session stays lost unless this is enabled.
	reconnectEnabled    bool
	reconnectAttempts   int
	reconnectMaxRetries int
	reconnectBackoff    time.Duration
	reconnectMu         sync.Mutex

	// Metrics collection (optional production monitoring)
	metrics MetricsCollector // nil = metrics disabled

	// Message statistics for diagnostics (optional, see EnableMessageStats)
	messageStats *MessageStats // nil = stats never enabled

	// Circuit breaker protecting connect attempts against a node that is
	// rebooting or unreachable
	circuitBreaker *CircuitBreaker // nil = circuit breaking disabled
}

// NewClient creates a new node client with the specified callbacks
func NewClient(callbacks *ClientCallBacks) (c *Client) {
	c = new(Client)
	c.callbacks = callbacks
	LogInit(ERROR)
	c.setDefaultProperties()

	// 5 failures / 30 seconds reset covers a node reboot cycle
	c.circuitBreaker = NewCircuitBreaker(5, 30*time.Second)

	c.shutdown = make(chan struct{})
	c.tcp.Init()
	return
}

func (c *Client) setDefaultProperties() {
	// Create a copy of defaultProperties to avoid shared map reference
	c.properties = make(map[string]string, len(defaultProperties))
	for k, v := range defaultProperties {
		c.properties[k] = v
	}
	home := os.Getenv("BCAPI_HOME")
	if len(home) == 0 {
		home = ""
	}
	conf := os.Getenv("GO_BCAPI_CONF")
	if len(conf) == 0 {
		conf = defaultConfigFile
	}
	config := home + conf
	Debug("Loading config file %s", config)
	LoadConfig(config, c.SetProperty)
}

// ensureInitialized checks if the Client has been properly initialized.
// Returns ErrClientNotInitialized if the client was created with
// zero-value (Client{}) instead of using NewClient().
func (c *Client) ensureInitialized() error {
	if c.properties == nil {
		return ErrClientNotInitialized
	}
	if c.shutdown == nil {
		return ErrClientNotInitialized
	}
	return nil
}

// SetProperty sets a known configuration property. Unknown names are
// ignored so stale config files cannot inject keys. TCP-level properties
// are mirrored down to the transport; bcapi.bufferPool toggles the
// encode buffer pool immediately.
func (c *Client) SetProperty(name, value string) {
	// Silently return if not initialized (properties map is nil)
	if c.properties == nil {
		return
	}

	if _, ok := c.properties[name]; ok {
		c.properties[name] = value
		switch name {
		case "bcapi.tcp.host":
			c.tcp.SetProperty(TCP_PROP_ADDRESS, c.properties[name])
		case "bcapi.tcp.port":
			c.tcp.SetProperty(TCP_PROP_PORT, c.properties[name])
		case "bcapi.SSL":
			c.tcp.SetProperty(TCP_PROP_USE_TLS, c.properties[name])
		case "bcapi.SSL.certFile":
			c.tcp.SetProperty(TCP_PROP_TLS_CLIENT_CERTIFICATE, c.properties[name])
			// keyFile, caFile and insecure are read from client properties
			// during Connect when tcp.SetupTLS runs
		case "bcapi.bufferPool":
			if value == "true" {
				EnableBufferPool()
			} else {
				DisableBufferPool()
			}
		}
	}
}

// GetProperty returns the current value of a configuration property, or
// the empty string for unknown names.
func (c *Client) GetProperty(name string) string {
	if c.properties == nil {
		return ""
	}
	return c.properties[name]
}

// Connect establishes the TCP or TLS connection to the node's management
// port using the bcapi.tcp.* and bcapi.SSL.* properties. The connection
// carries no session yet; OpenSession starts one.
func (c *Client) Connect(ctx context.Context) error {
	// Ensure client was properly initialized with NewClient()
	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// Check context before starting
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before connect: %w", err)
	}

	select {
	case <-c.shutdown:
		return ErrClientClosed
	default:
	}

	c.lock.Lock()
	if c.connected {
		c.lock.Unlock()
		return ErrAlreadyConnected
	}
	c.lock.Unlock()

	host := c.properties["bcapi.tcp.host"]
	port := c.properties["bcapi.tcp.port"]
	if !IsValidIPv4(host) {
		Debug("Node host %q is not an IPv4 literal, resolving by name", host)
	}
	Info("Client connecting to node at %s:%s", host, port)

	if err := c.tcp.Init(net.JoinHostPort(host, port)); err != nil {
		return fmt.Errorf("failed to resolve node address: %w", err)
	}

	// Setup TLS if enabled
	if c.properties["bcapi.SSL"] == "true" {
		certFile := c.properties["bcapi.SSL.certFile"]
		keyFile := c.properties["bcapi.SSL.keyFile"]
		caFile := c.properties["bcapi.SSL.caFile"]
		insecure := c.properties["bcapi.SSL.insecure"] == "true"

		Debug("Configuring TLS: certFile=%s, keyFile=%s, caFile=%s, insecure=%v",
			certFile, keyFile, caFile, insecure)

		err := c.tcp.SetupTLS(certFile, keyFile, caFile, insecure)
		if err != nil {
			return fmt.Errorf("failed to setup TLS: %w", err)
		}

		if fingerprint := c.properties["bcapi.SSL.fingerprint"]; fingerprint != "" {
			if err := c.tcp.PinServerCertificate(fingerprint); err != nil {
				return fmt.Errorf("failed to pin node certificate: %w", err)
			}
		}

		Info("TLS configured successfully")
	}

	// Establish TCP/TLS connection, behind the circuit breaker so a node
	// that is down fails fast after a few attempts
	var err error
	if c.circuitBreaker != nil {
		err = c.circuitBreaker.Execute(c.tcp.Connect)
	} else {
		err = c.tcp.Connect()
	}
	if err != nil {
		c.trackError("network")
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.lock.Lock()
	c.connected = true
	c.lock.Unlock()

	// Update metrics connection state
	if c.metrics != nil {
		c.metrics.SetConnectionState("connected")
	}

	return nil
}

// OpenSession starts a session over the client's connection, connecting
// first if Connect has not been called. When the bcapi.credential
// property is non-empty the session is also authenticated under
// bcapi.role before OpenSession returns, so the returned session is
// ready for queries.
//
// A node connection carries exactly one session; OpenSession fails while
// a previous session is still live. The callbacks argument may be nil,
// in which case node pushes and disconnects forward to the
// ClientCallBacks given to NewClient.
func (c *Client) OpenSession(ctx context.Context, callbacks *SessionCallbacks) (*Session, error) {
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-c.shutdown:
		return nil, ErrClientClosed
	default:
	}

	c.lock.Lock()
	if c.session != nil && !c.session.IsClosed() {
		id := c.session.ID()
		c.lock.Unlock()
		return nil, fmt.Errorf("%w: session %s still open", ErrAlreadyConnected, id)
	}
	c.session = nil
	c.lastCallbacks = callbacks
	connected := c.connected
	c.lock.Unlock()

	if !connected {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	sessionCallbacks := SessionCallbacks{}
	if callbacks != nil {
		sessionCallbacks = *callbacks
	}
	c.hookSessionCallbacks(&sessionCallbacks)

	session := NewSession(&c.tcp, sessionCallbacks)
	if c.metrics != nil {
		session.SetMetricsCollector(c.metrics)
	}
	c.lock.Lock()
	session.SetMessageStats(c.messageStats)
	c.lock.Unlock()
	if timeout, err := time.ParseDuration(c.properties["bcapi.requestTimeout"]); err == nil {
		session.SetRequestTimeout(timeout)
	} else {
		Warning("Invalid bcapi.requestTimeout %q, keeping default", c.properties["bcapi.requestTimeout"])
	}

	if err := session.Open(ctx); err != nil {
		return nil, err
	}

	if credential := c.properties["bcapi.credential"]; credential != "" {
		identity := NewLoginIdentity(c.properties["bcapi.role"], credential)
		identity.Serial = c.properties["bcapi.serial"]
		if err := session.Authenticate(ctx, identity); err != nil {
			session.Close()
			return nil, err
		}
	}

	c.lock.Lock()
	c.session = session
	c.lock.Unlock()

	if c.metrics != nil {
		c.metrics.SetActiveSessions(1)
	}

	Debug("Session %s open on client %p", session.ID(), c)
	return session, nil
}

// hookSessionCallbacks chains the client's own bookkeeping in front of
// the caller's session hooks and wires ClientCallBacks forwarding.
func (c *Client) hookSessionCallbacks(callbacks *SessionCallbacks) {
	userOnDisconnect := callbacks.OnDisconnect
	callbacks.OnDisconnect = func(session *Session, err error) {
		c.noteSessionDown(session)
		if userOnDisconnect != nil {
			userOnDisconnect(session, err)
		}
		if c.callbacks != nil && c.callbacks.OnDisconnect != nil {
			c.callbacks.OnDisconnect(c, "session lost", err)
		}
		c.maybeReconnect()
	}

	if callbacks.OnUnsolicited == nil && c.callbacks != nil && c.callbacks.OnUnsolicited != nil {
		callbacks.OnUnsolicited = func(session *Session, reply Reply) {
			c.callbacks.OnUnsolicited(c, reply)
		}
	}
}

// noteSessionDown records the loss of the current session. The transport
// died underneath it, so the connection is gone too.
func (c *Client) noteSessionDown(session *Session) {
	c.lock.Lock()
	if c.session != session {
		// A stale callback from an already-replaced session; the live
		// connection is not affected.
		c.lock.Unlock()
		return
	}
	c.session = nil
	c.connected = false
	c.lock.Unlock()

	c.trackError("disconnect")
	if c.metrics != nil {
		c.metrics.SetConnectionState("disconnected")
		c.metrics.SetActiveSessions(0)
	}
}

// CurrentSession returns the live session, or nil when none is open.
// After an auto-reconnect this is how callers pick up the replacement
// session.
func (c *Client) CurrentSession() *Session {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.session != nil && c.session.IsClosed() {
		c.session = nil
	}
	return c.session
}

// Close shuts the client down: the session is closed, draining all
// in-flight requests, and the connection is dropped. A closed client
// cannot be reused.
func (c *Client) Close() error {
	// Ensure client was properly initialized with NewClient()
	if err := c.ensureInitialized(); err != nil {
		return err
	}

	Info("Closing client %p", c)

	// Signal shutdown to all operations
	select {
	case <-c.shutdown:
		// Already closed
		return ErrClientClosed
	default:
		close(c.shutdown)
	}

	c.lock.Lock()
	session := c.session
	c.session = nil
	c.connected = false
	c.lock.Unlock()

	if session != nil {
		if err := session.Close(); err != nil {
			Warning("Failed to close session during shutdown: %v", err)
		}
	}
	c.tcp.Disconnect()

	// Update metrics connection state
	if c.metrics != nil {
		c.metrics.SetConnectionState("disconnected")
		c.metrics.SetActiveSessions(0)
	}

	Info("Client %p closed successfully", c)
	return nil
}

// IsConnected reports whether the client currently holds a connection.
// This is the client's own bookkeeping; once a session is open the
// session owns the transport and nothing else may probe it.
func (c *Client) IsConnected() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.connected
}

// EnableAutoReconnect enables automatic reconnection with exponential
// backoff. When enabled, the client reacts to a lost session by dialing
// again, opening a fresh session, and re-authenticating from properties.
// In-flight requests of the lost session still fail; the replacement is
// available from CurrentSession.
//
// Parameters:
//   - maxRetries: Maximum reconnection attempts (0 = infinite retries)
//   - initialBackoff: Starting delay between attempts (doubles each time)
func (c *Client) EnableAutoReconnect(maxRetries int, initialBackoff time.Duration) {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()

	c.reconnectEnabled = true
	c.reconnectMaxRetries = maxRetries
	c.reconnectBackoff = initialBackoff
	c.reconnectAttempts = 0

	Debug("Auto-reconnect enabled: maxRetries=%d, initialBackoff=%v", maxRetries, initialBackoff)
}

// DisableAutoReconnect disables automatic reconnection.
func (c *Client) DisableAutoReconnect() {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()

	c.reconnectEnabled = false
	Debug("Auto-reconnect disabled")
}

// IsAutoReconnectEnabled returns whether auto-reconnect is currently enabled.
func (c *Client) IsAutoReconnectEnabled() bool {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()
	return c.reconnectEnabled
}

// ReconnectAttempts returns the current number of reconnection attempts.
func (c *Client) ReconnectAttempts() int {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()
	return c.reconnectAttempts
}

// maybeReconnect spawns the reconnect loop after a lost session if
// auto-reconnect is enabled. Runs from the dead session's disconnect
// callback, so the actual work happens on a fresh goroutine.
func (c *Client) maybeReconnect() {
	c.reconnectMu.Lock()
	shouldReconnect := c.reconnectEnabled
	c.reconnectMu.Unlock()

	if !shouldReconnect {
		return
	}
	select {
	case <-c.shutdown:
		return
	default:
	}

	go func() {
		Info("Connection lost, attempting auto-reconnect...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := c.autoReconnect(ctx); err != nil {
			Error("Auto-reconnect failed: %v", err)
		}
	}()
}

// autoReconnect attempts to re-establish the connection and session with
// exponential backoff. It returns nil once a replacement session is
// open, or an error when all retries are exhausted.
func (c *Client) autoReconnect(ctx context.Context) error {
	c.reconnectMu.Lock()
	if !c.reconnectEnabled {
		c.reconnectMu.Unlock()
		return fmt.Errorf("auto-reconnect is not enabled")
	}
	maxRetries := c.reconnectMaxRetries
	initialBackoff := c.reconnectBackoff
	c.reconnectMu.Unlock()

	Info("Starting auto-reconnect (maxRetries=%d, initialBackoff=%v)", maxRetries, initialBackoff)

	err := RetryWithBackoff(ctx, maxRetries, initialBackoff, func() error {
		c.reconnectMu.Lock()
		c.reconnectAttempts++
		attempt := c.reconnectAttempts
		c.reconnectMu.Unlock()

		Info("Reconnection attempt %d", attempt)

		select {
		case <-c.shutdown:
			return ErrClientClosed
		default:
		}

		c.lock.Lock()
		saved := c.lastCallbacks
		c.lock.Unlock()

		if _, openErr := c.OpenSession(ctx, saved); openErr != nil {
			Warning("Reconnection attempt %d failed: %v", attempt, openErr)
			return openErr
		}

		Info("Reconnection attempt %d succeeded!", attempt)

		// Reset attempt counter on success
		c.reconnectMu.Lock()
		c.reconnectAttempts = 0
		c.reconnectMu.Unlock()

		return nil
	})
	if err != nil {
		Error("Auto-reconnect failed after all retries: %v", err)
		return fmt.Errorf("auto-reconnect failed: %w", err)
	}

	return nil
}

// SetMetrics enables metrics collection with the provided collector.
// Pass nil to disable metrics collection. Sessions opened after this
// call report through the collector; the current session is unaffected.
func (c *Client) SetMetrics(metrics MetricsCollector) {
	// Silently return if not initialized
	if err := c.ensureInitialized(); err != nil {
		return
	}

	c.lock.Lock()
	c.metrics = metrics
	connected := c.connected
	hasSession := c.session != nil && !c.session.IsClosed()
	c.lock.Unlock()

	if metrics != nil {
		if hasSession {
			metrics.SetActiveSessions(1)
		} else {
			metrics.SetActiveSessions(0)
		}
		if connected {
			metrics.SetConnectionState("connected")
		} else {
			metrics.SetConnectionState("disconnected")
		}
	}
}

// GetMetrics returns the current metrics collector, or nil if disabled.
func (c *Client) GetMetrics() MetricsCollector {
	// Return nil if not initialized
	if err := c.ensureInitialized(); err != nil {
		return nil
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	return c.metrics
}

// GetCircuitBreakerState returns the current state of the circuit breaker.
// Returns CircuitClosed if circuit breaking is disabled.
func (c *Client) GetCircuitBreakerState() CircuitState {
	if err := c.ensureInitialized(); err != nil {
		return CircuitClosed
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.circuitBreaker == nil {
		return CircuitClosed
	}

	return c.circuitBreaker.State()
}

// ResetCircuitBreaker manually resets the circuit breaker to closed
// state, for manual recovery after fixing node connectivity.
func (c *Client) ResetCircuitBreaker() error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.circuitBreaker != nil {
		c.circuitBreaker.Reset()
	}

	return nil
}

// NodeVersion returns the firmware version the current session learned
// from the node's system.version state field. Returns a zero Version
// before the first state query completes or when no session is open.
func (c *Client) NodeVersion() Version {
	if session := c.CurrentSession(); session != nil {
		return session.DeviceVersion()
	}
	return Version{}
}

// SupportsFilteredQuery reports whether the node accepts server-side
// filtered state queries. Meaningful after the first state query on the
// current session.
func (c *Client) SupportsFilteredQuery() bool {
	if session := c.CurrentSession(); session != nil {
		return session.HasCapability(DEVICE_CAN_FILTERED_QUERY)
	}
	return false
}

// SupportsDeflate reports whether the node understands deflate-compressed
// request payloads. Meaningful after the first state query on the
// current session.
func (c *Client) SupportsDeflate() bool {
	if session := c.CurrentSession(); session != nil {
		return session.HasCapability(DEVICE_CAN_DEFLATE)
	}
	return false
}

// trackError records an error in metrics if enabled.
// This is a helper method for internal use.
func (c *Client) trackError(errorType string) {
	if c.metrics != nil {
		c.metrics.IncrementError(errorType)
	}
}
