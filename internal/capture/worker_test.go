package capture

import (
	"bytes"
	"testing"

	"github.com/dmattli/go-exopticon/internal/framebus"
	"github.com/dmattli/go-exopticon/internal/model"
)

type countingSub struct{ n int }

func (s *countingSub) TryDeliver(f framebus.Frame) bool {
	s.n++
	f.Buf.Release()
	return true
}

func TestHandleFramePublishesToBus(t *testing.T) {
	t.Parallel()
	bus := framebus.New()
	sub := &countingSub{}
	source := model.FrameSource{Kind: model.FrameSourceCamera, ID: 42}
	bus.Subscribe(framebus.Key{Source: source, Resolution: model.ResolutionHD}, sub)

	w := &Worker{camera: model.Camera{ID: 42}, bus: bus}
	w.handleFrame(&Frame{Resolution: uint8(model.ResolutionHD), OffsetUS: 5, JPEG: []byte{1, 2, 3}})

	if sub.n != 1 {
		t.Fatalf("expected 1 delivered frame, got %d", sub.n)
	}
}

func TestHandleFrameCopiesJPEGBytes(t *testing.T) {
	t.Parallel()
	bus := framebus.New()
	var captured []byte
	sub := &captureSub{fn: func(f framebus.Frame) { captured = append([]byte(nil), f.Buf.Bytes()...) }}
	source := model.FrameSource{Kind: model.FrameSourceCamera, ID: 7}
	bus.Subscribe(framebus.Key{Source: source, Resolution: model.ResolutionSD}, sub)

	w := &Worker{camera: model.Camera{ID: 7}, bus: bus}
	original := []byte{9, 9, 9}
	w.handleFrame(&Frame{JPEG: original})

	original[0] = 0 // mutate source buffer after publish
	if !bytes.Equal(captured, []byte{9, 9, 9}) {
		t.Fatalf("expected published frame to be an independent copy, got %v", captured)
	}
}

type captureSub struct{ fn func(framebus.Frame) }

func (s *captureSub) TryDeliver(f framebus.Frame) bool {
	s.fn(f)
	f.Buf.Release()
	return true
}

func TestRestartBackoffUsesFiveSecondDelay(t *testing.T) {
	t.Parallel()
	b := RestartBackoff()
	d := b.NextBackOff()
	if d != restartDelay {
		t.Fatalf("expected constant %s backoff, got %s", restartDelay, d)
	}
}

