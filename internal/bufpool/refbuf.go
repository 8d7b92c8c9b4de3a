package bufpool

import "sync/atomic"

// RefBuf is an immutable, reference-counted byte buffer. One capture worker
// produces the bytes once; every frame-bus subscriber that receives the
// frame holds a reference and releases it when done, instead of copying the
// JPEG payload per subscriber.
type RefBuf struct {
	pool  *Pool
	bytes []byte
	refs  int32
}

// NewRefBuf wraps buf (as returned by Pool.Get, or any slice) with an
// initial reference count of 1. The owning pool may be nil, in which case
// Release simply drops the buffer for the GC to collect.
func NewRefBuf(pool *Pool, buf []byte) *RefBuf {
	return &RefBuf{pool: pool, bytes: buf, refs: 1}
}

// Bytes returns the underlying immutable slice. Callers must not mutate it.
func (r *RefBuf) Bytes() []byte {
	if r == nil {
		return nil
	}
	return r.bytes
}

// Retain increments the reference count. Call once per new owner (e.g. once
// per frame-bus subscriber a frame is handed to).
func (r *RefBuf) Retain() *RefBuf {
	if r == nil {
		return nil
	}
	atomic.AddInt32(&r.refs, 1)
	return r
}

// Release decrements the reference count and returns the backing buffer to
// the pool once the last reference is gone.
func (r *RefBuf) Release() {
	if r == nil {
		return
	}
	if atomic.AddInt32(&r.refs, -1) == 0 && r.pool != nil {
		r.pool.Put(r.bytes)
	}
}
