package camera

import "sync"

// Exchange is the publish double buffer of spec §4.D: two equal-sized
// buffers and a writer index toggled under a mutex. The capture worker
// writes the finished BGRA frame into buffer `writer`, then toggles the
// index; readers snapshot the current publish slot (1-writer) under the
// same mutex and copy out. The lock only ever serializes the index swap and
// a reader's copy — the buffer a writer is about to fill next is never the
// one a reader can observe, so reads are never stale or torn (spec §8).
type Exchange struct {
	mu      sync.Mutex
	buffers [2][]byte
	writer  int

	width, height, stride int
	published             bool
}

// NewExchange allocates both buffers at capacity bytes. Capacity should be
// the largest BGRA frame size the caller expects to publish (width *
// height * 4, using the aligned stride); Publish re-slices down to the
// frame actually written.
func NewExchange(capacity int) *Exchange {
	return &Exchange{
		buffers: [2][]byte{make([]byte, capacity), make([]byte, capacity)},
	}
}

// BeginWrite returns the current writer slot resized to size, for the
// capture worker to decode/convert directly into (no intermediate staging
// buffer, per spec §9's "hot path performs zero allocations" discipline).
// Only the capture worker goroutine calls BeginWrite; the writer index is
// otherwise read-only to every other goroutine, so reading e.writer here
// needs no lock (single-writer invariant) — only Commit's swap does.
func (e *Exchange) BeginWrite(size int) []byte {
	buf := e.buffers[e.writer]
	if cap(buf) < size {
		buf = make([]byte, size)
	} else {
		buf = buf[:size]
	}
	e.buffers[e.writer] = buf
	return buf
}

// Commit records the geometry of the slot just filled via BeginWrite and
// toggles the writer index, publishing it to readers.
func (e *Exchange) Commit(width, height, stride int) {
	e.mu.Lock()
	e.width, e.height, e.stride = width, height, stride
	e.published = true
	e.writer = 1 - e.writer
	e.mu.Unlock()
}

// Publish is BeginWrite+copy+Commit in one call, for callers (and tests)
// that already have a complete frame in hand rather than decoding in place.
func (e *Exchange) Publish(src []byte, width, height, stride int) {
	dst := e.BeginWrite(len(src))
	copy(dst, src)
	e.Commit(width, height, stride)
}

// Snapshot copies the currently published frame into dst and reports its
// geometry. It returns ok=false if nothing has been published yet.
func (e *Exchange) Snapshot(dst []byte) (width, height, stride int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.published {
		return 0, 0, 0, false
	}
	readIdx := 1 - e.writer
	src := e.buffers[readIdx]
	copy(dst, src)
	return e.width, e.height, e.stride, true
}

// View returns a direct reference to the currently published slot without
// copying, along with its geometry. It is used only by the capture worker
// to hand a zero-copy pointer to the frame callback (spec §4.E step 4); the
// returned slice is valid until the worker's next Publish targets the same
// slot, which cannot happen before the callback that received it returns
// (the worker is single-threaded and synchronous).
func (e *Exchange) View() (data []byte, width, height, stride int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.published {
		return nil, 0, 0, 0, false
	}
	readIdx := 1 - e.writer
	return e.buffers[readIdx], e.width, e.height, e.stride, true
}
