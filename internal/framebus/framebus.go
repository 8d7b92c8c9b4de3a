// Package framebus is the Frame Bus (C2): a publish/subscribe hub that
// fans a camera's or analysis instance's frames out to every
// subscriber without blocking the publisher on a slow reader.
//
// Bus.subs maps Key{FrameSource, Resolution} to its subscribers, per
// spec.md §4.2's FrameKey = (camera_id, resolution). Publish snapshots
// the subscriber list under a read lock, then delivers outside the
// lock so one slow subscriber never blocks another. Frames are
// refcounted via bufpool.RefBuf and are immutable after publish, so a
// frame is copied once into the pool rather than once per subscriber.
package framebus

import (
	"sync"

	"github.com/dmattli/go-exopticon/internal/bufpool"
	"github.com/dmattli/go-exopticon/internal/model"
)

// Frame is one published image: a shared, refcounted buffer plus the
// metadata every subscriber needs to interpret it.
type Frame struct {
	Source     model.FrameSource
	Resolution model.Resolution
	OffsetUS   int64
	Buf        *bufpool.RefBuf
}

// Subscriber receives frames from the bus. TryDeliver must not block;
// a subscriber backed by a channel should use a non-blocking send and
// report false (frame dropped) rather than stall the publisher.
type Subscriber interface {
	TryDeliver(f Frame) bool
}

// Key is the Frame Bus's routing key: a frame source plus the
// resolution a subscriber wants, mirroring the Rust original's
// FrameType{camera_id, resolution} (ws_camera_server.rs). Two sessions
// subscribed to the same camera at different resolutions are routed
// independently.
type Key struct {
	Source     model.FrameSource
	Resolution model.Resolution
}

// Bus fans frames from a Key out to its current subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[Key][]Subscriber
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[Key][]Subscriber)}
}

// Subscribe registers sub to receive frames published for key.
func (b *Bus) Subscribe(key Key, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[key] = append(b.subs[key], sub)
}

// Unsubscribe removes sub from key's subscriber list (identity
// comparison), mirroring Stream.RemoveSubscriber's swap-delete.
func (b *Bus) Unsubscribe(key Key, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[key]
	for i, existing := range list {
		if existing == sub {
			last := len(list) - 1
			list[i] = list[last]
			list[last] = nil
			b.subs[key] = list[:last]
			return
		}
	}
}

// SubscriberCount returns a snapshot count for key.
func (b *Bus) SubscriberCount(key Key) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[key])
}

// Publish delivers f to every current subscriber of Key{f.Source,
// f.Resolution}. Publish takes over the caller's reference to f.Buf:
// it takes one Retain per subscriber it actually delivers to and
// Releases the caller's reference when done, so the caller needs no
// extra Retain of its own. A subscriber whose TryDeliver returns false is considered to
// have dropped the frame, same as Stream.BroadcastMessage's handling
// of a busy TrySendMessage subscriber.
func (b *Bus) Publish(f Frame) (delivered, dropped int) {
	key := Key{Source: f.Source, Resolution: f.Resolution}
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[key]...)
	b.mu.RUnlock()

	defer f.Buf.Release()

	for _, sub := range subs {
		shared := f
		shared.Buf = f.Buf.Retain()
		if sub.TryDeliver(shared) {
			delivered++
		} else {
			dropped++
			shared.Buf.Release()
		}
	}
	return delivered, dropped
}
