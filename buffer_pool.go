package go_bcapi

import (
	"sync"
	"sync/atomic"
)

// bufferPool manages reusable byte slices to reduce GC pressure on the
// frame encode path. Uses sync.Pool with size-based buckets.
//
// Size classes follow typical BCAPI traffic:
//   - 512 bytes:  control requests (login, state query, small config sets)
//   - 4096 bytes: filtered queries and medium config sets
//   - 16384 bytes: large config sets
//   - 65536 bytes: the safe request size; anything bigger is allocated directly
type bufferPool struct {
	pool512 sync.Pool
	pool4K  sync.Pool
	pool16K sync.Pool
	pool64K sync.Pool
	enabled bool
	mu      sync.RWMutex

	// Pool effectiveness counters, read via GetBufferPoolStats.
	gets512       uint64
	gets4K        uint64
	gets16K       uint64
	gets64K       uint64
	getsOversized uint64
	puts512       uint64
	puts4K        uint64
	puts16K       uint64
	puts64K       uint64
}

// Global buffer pool instance
var globalBufferPool = &bufferPool{
	pool512: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, 0, 512)
			return &buf
		},
	},
	pool4K: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, 0, 4096)
			return &buf
		},
	},
	pool16K: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, 0, 16384)
			return &buf
		},
	},
	pool64K: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, 0, 65536)
			return &buf
		},
	},
	enabled: false, // opt in via EnableBufferPool or the client property
}

// EnableBufferPool enables buffer pooling for frame encode scratch
// buffers. Sessions release their encode buffers after each write, so
// with pooling enabled a steady request load reuses the same few slices.
func EnableBufferPool() {
	globalBufferPool.mu.Lock()
	globalBufferPool.enabled = true
	globalBufferPool.mu.Unlock()
}

// DisableBufferPool disables buffer pooling; encode buffers are then
// freshly allocated and left to the GC.
func DisableBufferPool() {
	globalBufferPool.mu.Lock()
	globalBufferPool.enabled = false
	globalBufferPool.mu.Unlock()
}

// IsBufferPoolEnabled returns whether buffer pooling is currently enabled.
func IsBufferPoolEnabled() bool {
	globalBufferPool.mu.RLock()
	defer globalBufferPool.mu.RUnlock()
	return globalBufferPool.enabled
}

// GetBuffer retrieves a zero-length buffer with capacity >= size from the
// smallest bucket that fits, or a fresh allocation when pooling is off or
// the size exceeds the largest bucket.
func (bp *bufferPool) GetBuffer(size int) []byte {
	bp.mu.RLock()
	enabled := bp.enabled
	bp.mu.RUnlock()

	if !enabled {
		return make([]byte, 0, size)
	}

	var bufPtr *[]byte
	switch {
	case size <= 512:
		atomic.AddUint64(&bp.gets512, 1)
		bufPtr = bp.pool512.Get().(*[]byte)
	case size <= 4096:
		atomic.AddUint64(&bp.gets4K, 1)
		bufPtr = bp.pool4K.Get().(*[]byte)
	case size <= 16384:
		atomic.AddUint64(&bp.gets16K, 1)
		bufPtr = bp.pool16K.Get().(*[]byte)
	case size <= 65536:
		atomic.AddUint64(&bp.gets64K, 1)
		bufPtr = bp.pool64K.Get().(*[]byte)
	default:
		atomic.AddUint64(&bp.getsOversized, 1)
		return make([]byte, 0, size)
	}

	return (*bufPtr)[:0]
}

// PutBuffer returns a buffer to its bucket. Buffers that grew past their
// original bucket capacity are dropped for the GC; pooling them would
// slowly replace every bucket entry with oversized slices.
func (bp *bufferPool) PutBuffer(buf []byte) {
	bp.mu.RLock()
	enabled := bp.enabled
	bp.mu.RUnlock()

	if !enabled {
		return
	}
	if buf == nil || cap(buf) > 65536 {
		return
	}

	buf = buf[:0]
	switch cap(buf) {
	case 512:
		atomic.AddUint64(&bp.puts512, 1)
		bp.pool512.Put(&buf)
	case 4096:
		atomic.AddUint64(&bp.puts4K, 1)
		bp.pool4K.Put(&buf)
	case 16384:
		atomic.AddUint64(&bp.puts16K, 1)
		bp.pool16K.Put(&buf)
	case 65536:
		atomic.AddUint64(&bp.puts64K, 1)
		bp.pool64K.Put(&buf)
	default:
		// Non-bucket capacity, let the GC have it.
	}
}

// BufferPoolStats reports buffer pool usage counters.
type BufferPoolStats struct {
	Gets512       uint64
	Gets4K        uint64
	Gets16K       uint64
	Gets64K       uint64
	GetsOversized uint64
	Puts512       uint64
	Puts4K        uint64
	Puts16K       uint64
	Puts64K       uint64
}

// GetBufferPoolStats returns current buffer pool statistics, or nil while
// pooling is disabled.
func GetBufferPoolStats() *BufferPoolStats {
	globalBufferPool.mu.RLock()
	defer globalBufferPool.mu.RUnlock()

	if !globalBufferPool.enabled {
		return nil
	}

	return &BufferPoolStats{
		Gets512:       atomic.LoadUint64(&globalBufferPool.gets512),
		Gets4K:        atomic.LoadUint64(&globalBufferPool.gets4K),
		Gets16K:       atomic.LoadUint64(&globalBufferPool.gets16K),
		Gets64K:       atomic.LoadUint64(&globalBufferPool.gets64K),
		GetsOversized: atomic.LoadUint64(&globalBufferPool.getsOversized),
		Puts512:       atomic.LoadUint64(&globalBufferPool.puts512),
		Puts4K:        atomic.LoadUint64(&globalBufferPool.puts4K),
		Puts16K:       atomic.LoadUint64(&globalBufferPool.puts16K),
		Puts64K:       atomic.LoadUint64(&globalBufferPool.puts64K),
	}
}

// NewStreamPooled creates a Stream backed by a pooled buffer. Pass the
// finished Stream to ReleaseStream to recycle it. With pooling disabled
// this is identical to NewStream.
func NewStreamPooled(size int) *Stream {
	return NewStream(globalBufferPool.GetBuffer(size))
}

// ReleaseStream returns a Stream's buffer to the pool. The Stream must
// not be used afterwards.
func ReleaseStream(s *Stream) {
	if s == nil || s.Buffer == nil {
		return
	}
	globalBufferPool.PutBuffer(s.Bytes())
}
