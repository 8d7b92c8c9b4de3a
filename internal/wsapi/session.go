package wsapi

import (
	"log/slog"
	"sync"

	"github.com/dmattli/go-exopticon/internal/framebus"
)

const (
	minWindowSize = 1
	maxWindowSize = 10
)

// Session is one websocket connection's mutable state: which subjects
// it is subscribed to and its ACK-windowed flow control counters. All
// of that state is guarded by mu: offer runs on the frame-bus
// publisher's goroutine, MarkDrained on the write goroutine, and Ack,
// Subscribe and Unsubscribe on the connection's read loop.
//
// The flow-control fields implement a frame-count window with AIMD
// adaptation: shrink by half on saturation, grow by one frame of
// headroom otherwise.
type Session struct {
	log  *slog.Logger
	mode Mode
	bus  *framebus.Bus

	mu   sync.Mutex
	subs map[Subject]struct{}

	ready      bool
	windowSize uint
	liveFrames uint
}

// NewSession creates a Session ready to receive client commands. ready
// starts true and windowSize starts at the minimum, per the adaptive
// window's starting condition.
func NewSession(mode Mode, bus *framebus.Bus, log *slog.Logger) *Session {
	return &Session{
		log:        log,
		mode:       mode,
		bus:        bus,
		subs:       make(map[Subject]struct{}),
		ready:      true,
		windowSize: minWindowSize,
	}
}

// Deliver is a sink the Session registers against the frame bus as a
// framebus.Subscriber; send is the channel the write goroutine drains
// to push encoded frames to the transport.
type Deliver struct {
	session *Session
	send    chan framebus.Frame
}

func (d *Deliver) TryDeliver(f framebus.Frame) bool {
	return d.session.offer(f, d.send)
}

// offer implements the flow-control gate: a frame is transmitted only
// while ready && liveFrames < windowSize. Failing that, adjustWindow
// runs and the frame is dropped — lossy backpressure on live streams
// rather than blocking the bus on a slow subscriber.
func (s *Session) offer(f framebus.Frame, send chan framebus.Frame) bool {
	s.mu.Lock()
	if !s.ready || s.liveFrames >= s.windowSize {
		s.adjustWindowLocked()
		s.mu.Unlock()
		f.Buf.Release()
		return false
	}
	s.ready = false
	s.liveFrames++
	s.mu.Unlock()

	select {
	case send <- f:
		return true
	default:
		s.mu.Lock()
		s.liveFrames--
		s.ready = true
		s.mu.Unlock()
		f.Buf.Release()
		return false
	}
}

// MarkDrained signals that the transport buffer has drained and the
// session may accept another frame, set by the write goroutine after
// each successful write.
func (s *Session) MarkDrained() {
	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
}

// Ack processes a client Ack command: decrement liveFrames (saturating
// at 0, logging if already 0) and grow the window by one, capped at
// maxWindowSize, if there is now headroom.
func (s *Session) Ack() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveFrames == 0 {
		if s.log != nil {
			s.log.Error("ack received with no live frames outstanding")
		}
		return
	}
	s.liveFrames--
	if s.liveFrames < s.windowSize && s.windowSize < maxWindowSize {
		s.windowSize++
	}
}

// adjustWindowLocked halves the window when saturated, grows it by one
// when there is headroom, clamped to [1,10]. Caller must hold s.mu.
func (s *Session) adjustWindowLocked() {
	if s.liveFrames >= s.windowSize {
		s.windowSize /= 2
		if s.windowSize < minWindowSize {
			s.windowSize = minWindowSize
		}
		return
	}
	if s.windowSize < maxWindowSize {
		s.windowSize++
	}
}

// Subscribe records subject as subscribed and reports whether it was
// newly added. Idempotent at the subject level: re-subscribing to an
// already-subscribed subject is a no-op that returns false.
func (s *Session) Subscribe(subject Subject) (added bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[subject]; ok {
		return false
	}
	s.subs[subject] = struct{}{}
	return true
}

// Unsubscribe drops subject from this session's set and reports
// whether it had been subscribed.
func (s *Session) Unsubscribe(subject Subject) (removed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[subject]; !ok {
		return false
	}
	delete(s.subs, subject)
	return true
}

// Subjects returns a snapshot of currently subscribed subjects, used to
// unwind framebus subscriptions on disconnect.
func (s *Session) Subjects() []Subject {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Subject, 0, len(s.subs))
	for subj := range s.subs {
		out = append(out, subj)
	}
	return out
}

func subjectToKey(subj Subject) framebus.Key {
	return framebus.Key{Source: subj.Source, Resolution: subj.Resolution}
}
