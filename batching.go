package go_bcapi

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// defaultBatchFlushInterval is the worker flush period when the
	// caller does not pick one.
	defaultBatchFlushInterval = 100 * time.Millisecond

	// defaultBatchMaxPending is the queued entry count that triggers an
	// immediate flush when the caller does not pick one.
	defaultBatchMaxPending = 32
)

// ConfigBatcher coalesces individual configuration writes into batched
// ApplyConfig round trips. A control loop that adjusts a handful of
// settings per tick pays one request per flush instead of one per
// write, which matters on a mesh hop with tens of milliseconds of
// latency.
//
// Writes queue until the flush interval elapses, the pending count
// reaches the batch limit, Flush is called, or the batcher is closed.
// Batches flushed by the background worker report through the onFlush
// callback; synchronous Flush calls return the result directly.
type ConfigBatcher struct {
	session *Session
	onFlush func(*ConfigResult, error)

	flushInterval time.Duration
	maxPending    int

	// mu guards pending and closed.
	mu      sync.Mutex
	pending *ConfigSet
	closed  bool

	ticker *time.Ticker
	kick   chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewConfigBatcher creates a batcher over session and starts its flush
// worker. A non-positive flushInterval or maxPending selects the
// defaults, 100ms and 32 entries. onFlush may be nil, in which case
// worker flush failures are only logged.
//
// Close the batcher before closing the session, or queued writes are
// lost.
func NewConfigBatcher(session *Session, flushInterval time.Duration, maxPending int, onFlush func(*ConfigResult, error)) (*ConfigBatcher, error) {
	if session == nil {
		return nil, ErrInvalidArgument
	}
	if flushInterval <= 0 {
		flushInterval = defaultBatchFlushInterval
	}
	if maxPending <= 0 {
		maxPending = defaultBatchMaxPending
	}

	batcher := &ConfigBatcher{
		session:       session,
		onFlush:       onFlush,
		flushInterval: flushInterval,
		maxPending:    maxPending,
		pending:       NewConfigSet(),
		ticker:        time.NewTicker(flushInterval),
		kick:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}

	batcher.wg.Add(1)
	go batcher.flushWorker()

	Info("Config batcher started (interval=%v, maxPending=%d)", flushInterval, maxPending)
	return batcher, nil
}

// ensureInitialized checks that the batcher was built with
// NewConfigBatcher rather than a zero-value literal.
func (batcher *ConfigBatcher) ensureInitialized() error {
	if batcher.session == nil || batcher.done == nil {
		return ErrBatcherNotInitialized
	}
	return nil
}

// SetString queues a string write at path.
func (batcher *ConfigBatcher) SetString(path, value string) error {
	return batcher.queue(func(set *ConfigSet) error { return set.SetString(path, value) })
}

// SetInt queues a signed integer write at path.
func (batcher *ConfigBatcher) SetInt(path string, value int64) error {
	return batcher.queue(func(set *ConfigSet) error { return set.SetInt(path, value) })
}

// SetUint queues an unsigned integer write at path.
func (batcher *ConfigBatcher) SetUint(path string, value uint64) error {
	return batcher.queue(func(set *ConfigSet) error { return set.SetUint(path, value) })
}

// SetBool queues a boolean write at path.
func (batcher *ConfigBatcher) SetBool(path string, value bool) error {
	return batcher.queue(func(set *ConfigSet) error { return set.SetBool(path, value) })
}

// SetFloat queues a float write at path.
func (batcher *ConfigBatcher) SetFloat(path string, value float64) error {
	return batcher.queue(func(set *ConfigSet) error { return set.SetFloat(path, value) })
}

// SetBytes queues a raw bytes write at path.
func (batcher *ConfigBatcher) SetBytes(path string, value []byte) error {
	return batcher.queue(func(set *ConfigSet) error { return set.SetBytes(path, value) })
}

// queue adds one entry under the lock and kicks the worker when the
// batch is full.
func (batcher *ConfigBatcher) queue(add func(*ConfigSet) error) error {
	if err := batcher.ensureInitialized(); err != nil {
		return err
	}

	batcher.mu.Lock()
	if batcher.closed {
		batcher.mu.Unlock()
		return ErrBatcherClosed
	}
	if err := add(batcher.pending); err != nil {
		batcher.mu.Unlock()
		return err
	}
	full := batcher.pending.Len() >= batcher.maxPending
	batcher.mu.Unlock()

	if full {
		select {
		case batcher.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// Pending returns the number of queued writes not yet flushed.
func (batcher *ConfigBatcher) Pending() int {
	if batcher.ensureInitialized() != nil {
		return 0
	}
	batcher.mu.Lock()
	defer batcher.mu.Unlock()
	return batcher.pending.Len()
}

// Flush sends every queued write in one request and returns the node's
// verdict. A flush with nothing queued returns (nil, nil) without
// touching the wire. Flush may race with new writes and with the
// background worker; every entry is flushed exactly once.
func (batcher *ConfigBatcher) Flush(ctx context.Context) (*ConfigResult, error) {
	if err := batcher.ensureInitialized(); err != nil {
		return nil, err
	}

	batcher.mu.Lock()
	set := batcher.pending
	batcher.pending = NewConfigSet()
	batcher.mu.Unlock()

	if set.Len() == 0 {
		return nil, nil
	}

	Debug("Flushing config batch: %d entries", set.Len())
	return batcher.session.ApplyConfig(ctx, set)
}

// Close stops the worker and flushes the remaining writes. Entries
// accepted before Close still reach the node; writes after Close fail
// with ErrBatcherClosed. Close is idempotent.
func (batcher *ConfigBatcher) Close() error {
	if err := batcher.ensureInitialized(); err != nil {
		return err
	}

	batcher.mu.Lock()
	if batcher.closed {
		batcher.mu.Unlock()
		return nil
	}
	batcher.closed = true
	batcher.mu.Unlock()

	batcher.ticker.Stop()
	close(batcher.done)
	batcher.wg.Wait()

	result, err := batcher.Flush(context.Background())
	batcher.deliver(result, err)
	Info("Config batcher closed")
	if err != nil {
		return fmt.Errorf("bcapi: flushing config batch on close: %w", err)
	}
	return nil
}

// flushWorker drains the batch on every tick and whenever a queued
// write fills it.
func (batcher *ConfigBatcher) flushWorker() {
	defer batcher.wg.Done()

	for {
		select {
		case <-batcher.done:
			return
		case <-batcher.ticker.C:
			batcher.deliver(batcher.Flush(context.Background()))
		case <-batcher.kick:
			batcher.deliver(batcher.Flush(context.Background()))
		}
	}
}

// deliver hands a flush outcome to the onFlush callback. Empty flushes
// are not reported.
func (batcher *ConfigBatcher) deliver(result *ConfigResult, err error) {
	if result == nil && err == nil {
		return
	}
	if err != nil {
		Warning("Config batch flush failed: %v", err)
	}
	if batcher.onFlush != nil {
		batcher.onFlush(result, err)
	}
}
