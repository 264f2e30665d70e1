package go_bcapi

import (
	"net"
	"sync"
	"testing"

	"go.uber.org/goleak"
)

// testCredential is the credential the scripted node accepts.
const testCredential = "rooftop-admin-secret"

// fakeDevice simulates the node end of a session over an in-memory pipe.
// Incoming frames are decoded and handed to the handler, whose replies
// are framed and written back. Every decoded request is also recorded
// and pushed to the requests channel for tests that drive replies by
// hand.
type fakeDevice struct {
	t    *testing.T
	conn net.Conn
	wg   sync.WaitGroup

	handler func(*Message) []*Message

	// requests receives every decoded request in arrival order.
	requests chan *Message

	mu       sync.Mutex
	received []*Message
}

// newFakeDevice starts a scripted node and returns it together with the
// client end of the pipe, which satisfies Transport. A nil handler
// records requests without answering them.
func newFakeDevice(t *testing.T, handler func(*Message) []*Message) (*fakeDevice, net.Conn) {
	t.Helper()
	clientEnd, deviceEnd := net.Pipe()
	device := &fakeDevice{
		t:        t,
		conn:     deviceEnd,
		handler:  handler,
		requests: make(chan *Message, 16),
	}
	device.wg.Add(1)
	go device.serve()
	return device, clientEnd
}

func (d *fakeDevice) serve() {
	defer d.wg.Done()
	decoder := NewFrameDecoder()
	buf := make([]byte, 4096)
	for {
		n, err := d.conn.Read(buf)
		if n > 0 {
			for _, msg := range decoder.Feed(buf[:n]) {
				d.mu.Lock()
				d.received = append(d.received, msg)
				d.mu.Unlock()
				d.requests <- msg

				if d.handler == nil {
					continue
				}
				for _, reply := range d.handler(msg) {
					if reply == nil || !d.send(reply) {
						return
					}
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// send frames and writes one message to the client. Reports false once
// the pipe is gone.
func (d *fakeDevice) send(msg *Message) bool {
	frame, err := EncodeFrame(msg, false)
	if err != nil {
		d.t.Errorf("fake device: encoding %s: %v", getMessageKindName(msg.Kind), err)
		return false
	}
	_, err = d.conn.Write(frame.Bytes())
	return err == nil
}

// close shuts the device end of the pipe and waits for the serve loop.
func (d *fakeDevice) close() {
	d.conn.Close()
	d.wg.Wait()
}

// requestAt returns the i-th recorded request, or nil if fewer than i+1
// requests have arrived.
func (d *fakeDevice) requestAt(i int) *Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.received) {
		return nil
	}
	return d.received[i]
}

// receivedKinds returns the message kinds seen so far, in arrival order.
func (d *fakeDevice) receivedKinds() []uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	kinds := make([]uint8, len(d.received))
	for i, msg := range d.received {
		kinds[i] = msg.Kind
	}
	return kinds
}

// nodeHandler answers requests the way healthy node firmware would:
// logins are verified against credential, state queries return doc, and
// config sets are acknowledged with the decoded entry count.
func nodeHandler(t *testing.T, credential string, doc *StateDocument) func(*Message) []*Message {
	return func(msg *Message) []*Message {
		switch msg.Kind {
		case BCAPI_MSG_LOGIN:
			return []*Message{loginVerdict(t, credential, msg)}

		case BCAPI_MSG_STATE_QUERY, BCAPI_MSG_STATE_QUERY_FILTERED:
			reply, err := BuildStateReply(doc, msg.Sequence)
			if err != nil {
				t.Errorf("fake device: building state reply: %v", err)
				return nil
			}
			return []*Message{reply}

		case BCAPI_MSG_CONFIG_SET:
			set, err := DecodeConfigSet(msg.PayloadStream())
			if err != nil {
				reply, _ := BuildErrorReply(BCAPI_STATUS_BAD_REQUEST, "malformed config set", msg.Sequence)
				return []*Message{reply}
			}
			reply, err := BuildConfigAck(BCAPI_STATUS_SUCCESS, "applied", uint16(set.Len()), msg.Sequence)
			if err != nil {
				t.Errorf("fake device: building config ack: %v", err)
				return nil
			}
			return []*Message{reply}
		}
		return nil
	}
}

// loginVerdict checks the login digest and builds the matching ConfigAck.
func loginVerdict(t *testing.T, credential string, msg *Message) *Message {
	req, err := DecodeLoginRequest(msg.PayloadStream())
	if err != nil {
		reply, _ := BuildErrorReply(BCAPI_STATUS_BAD_REQUEST, "malformed login", msg.Sequence)
		return reply
	}
	if !VerifyLoginDigest(credential, req.Role, req.Nonce, req.Digest) {
		reply, _ := BuildConfigAck(BCAPI_STATUS_BAD_CREDENTIALS, "unknown role credential", 0, msg.Sequence)
		return reply
	}
	reply, err := BuildConfigAck(BCAPI_STATUS_SUCCESS, "", 0, msg.Sequence)
	if err != nil {
		t.Errorf("fake device: building login ack: %v", err)
	}
	return reply
}

// openTestSession opens a session against a scripted node. Teardown is
// registered with the test: the session closes before the device.
func openTestSession(t *testing.T, callbacks SessionCallbacks, handler func(*Message) []*Message) (*Session, *fakeDevice) {
	t.Helper()
	device, clientEnd := newFakeDevice(t, handler)
	session := NewSession(clientEnd, callbacks)
	if err := session.Open(nil); err != nil {
		device.close()
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		session.Close()
		device.close()
	})
	return session, device
}

// verifyNoLeaks fails the test if goroutines started during it survive
// teardown. Must be called before the session is opened.
func verifyNoLeaks(t *testing.T) {
	t.Helper()
	opt := goleak.IgnoreCurrent()
	t.Cleanup(func() {
		goleak.VerifyNone(t, opt)
	})
}
