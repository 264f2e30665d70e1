package go_bcapi

import (
	"fmt"
	"sync"
	"time"
)

const (
	// trafficWindow is the span of the trailing rate window.
	trafficWindow = 10 * time.Second

	// trafficBuckets is the number of one-second slots the window is
	// divided into.
	trafficBuckets = 10
)

// Throughput is a point-in-time summary of the wire traffic carried by
// one session. Totals count frame bytes since the session opened; the
// rates average the trailing ten-second window, so they decay to zero
// shortly after the link goes quiet.
//
// Field tooling uses the send rate to spot a config push saturating a
// slow mesh hop, and the receive rate to watch a node streaming large
// state documents.
type Throughput struct {
	// BytesSent is the total number of frame bytes written to the
	// transport, including frame headers.
	BytesSent uint64

	// BytesReceived is the total number of frame bytes read from the
	// transport, including bytes later discarded during resync.
	BytesReceived uint64

	// SendRate is the outbound rate over the trailing window, in bytes
	// per second.
	SendRate float64

	// ReceiveRate is the inbound rate over the trailing window, in bytes
	// per second.
	ReceiveRate float64
}

// String returns a human-readable representation of the throughput.
// Format: Throughput{sent: N B @ R B/s, received: N B @ R B/s}
func (t Throughput) String() string {
	return fmt.Sprintf("Throughput{sent: %d B @ %.1f B/s, received: %d B @ %.1f B/s}",
		t.BytesSent, t.SendRate, t.BytesReceived, t.ReceiveRate)
}

// linkTraffic accumulates the byte counts behind Throughput. Counts land
// in a ring of one-second buckets, so the trailing rate needs no
// per-frame timestamps. The zero value is ready to use; the sender and
// the receive loop record into it concurrently.
type linkTraffic struct {
	mu sync.Mutex

	totalSent     uint64
	totalReceived uint64

	sent     [trafficBuckets]uint64
	received [trafficBuckets]uint64
	slot     int       // ring index of the bucket covering current
	current  time.Time // start of the second the current bucket covers
}

// recordSent adds n outbound bytes observed at now.
func (lt *linkTraffic) recordSent(n uint64, now time.Time) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.rotate(now)
	lt.totalSent += n
	lt.sent[lt.slot] += n
}

// recordReceived adds n inbound bytes observed at now.
func (lt *linkTraffic) recordReceived(n uint64, now time.Time) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.rotate(now)
	lt.totalReceived += n
	lt.received[lt.slot] += n
}

// snapshot returns the totals and trailing-window rates as of now.
func (lt *linkTraffic) snapshot(now time.Time) Throughput {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.rotate(now)

	var sent, received uint64
	for i := 0; i < trafficBuckets; i++ {
		sent += lt.sent[i]
		received += lt.received[i]
	}
	seconds := trafficWindow.Seconds()
	return Throughput{
		BytesSent:     lt.totalSent,
		BytesReceived: lt.totalReceived,
		SendRate:      float64(sent) / seconds,
		ReceiveRate:   float64(received) / seconds,
	}
}

// rotate advances the ring to the bucket covering now, zeroing every
// bucket the window slid past. A clock that reads earlier than the
// current bucket keeps counting into it. Called with mu held.
func (lt *linkTraffic) rotate(now time.Time) {
	sec := now.Truncate(time.Second)
	if lt.current.IsZero() {
		lt.current = sec
		return
	}
	steps := int(sec.Sub(lt.current) / time.Second)
	if steps <= 0 {
		return
	}
	if steps > trafficBuckets {
		steps = trafficBuckets
	}
	for i := 0; i < steps; i++ {
		lt.slot = (lt.slot + 1) % trafficBuckets
		lt.sent[lt.slot] = 0
		lt.received[lt.slot] = 0
	}
	lt.current = sec
}
