package framebus

import (
	"testing"

	"github.com/dmattli/go-exopticon/internal/bufpool"
	"github.com/dmattli/go-exopticon/internal/model"
)

type recordingSub struct {
	accept bool
	got    []Frame
}

func (s *recordingSub) TryDeliver(f Frame) bool {
	if s.accept {
		s.got = append(s.got, f)
	}
	return s.accept
}

func testFrame(source model.FrameSource) Frame {
	return testFrameAt(source, model.ResolutionSD)
}

func testFrameAt(source model.FrameSource, resolution model.Resolution) Frame {
	buf := bufpool.NewRefBuf(nil, []byte{1, 2, 3})
	return Frame{Source: source, Resolution: resolution, Buf: buf}
}

func sdKey(source model.FrameSource) Key { return Key{Source: source, Resolution: model.ResolutionSD} }

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	t.Parallel()
	bus := New()
	source := model.FrameSource{Kind: model.FrameSourceCamera, ID: 1}

	a := &recordingSub{accept: true}
	b := &recordingSub{accept: true}
	bus.Subscribe(sdKey(source), a)
	bus.Subscribe(sdKey(source), b)

	delivered, dropped := bus.Publish(testFrame(source))
	if delivered != 2 || dropped != 0 {
		t.Fatalf("expected 2 delivered 0 dropped, got %d/%d", delivered, dropped)
	}
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("expected each subscriber to receive one frame")
	}
}

func TestPublishCountsDropsForBusySubscribers(t *testing.T) {
	t.Parallel()
	bus := New()
	source := model.FrameSource{Kind: model.FrameSourceCamera, ID: 2}

	busy := &recordingSub{accept: false}
	bus.Subscribe(sdKey(source), busy)

	delivered, dropped := bus.Publish(testFrame(source))
	if delivered != 0 || dropped != 1 {
		t.Fatalf("expected 0 delivered 1 dropped, got %d/%d", delivered, dropped)
	}
}

func TestPublishIgnoresUnrelatedSources(t *testing.T) {
	t.Parallel()
	bus := New()
	camera := model.FrameSource{Kind: model.FrameSourceCamera, ID: 3}
	other := model.FrameSource{Kind: model.FrameSourceCamera, ID: 4}

	sub := &recordingSub{accept: true}
	bus.Subscribe(sdKey(camera), sub)

	delivered, _ := bus.Publish(testFrame(other))
	if delivered != 0 {
		t.Fatalf("expected publish to a different source to reach 0 subscribers, got %d", delivered)
	}
}

// TestPublishIsolatesByResolution covers TESTABLE scenario 5
// ("broadcast fan-out"): a subscriber on (cam, HD) must receive
// nothing when a frame is published for (cam, SD).
func TestPublishIsolatesByResolution(t *testing.T) {
	t.Parallel()
	bus := New()
	camera := model.FrameSource{Kind: model.FrameSourceCamera, ID: 3}

	sdSubA := &recordingSub{accept: true}
	sdSubB := &recordingSub{accept: true}
	hdSub := &recordingSub{accept: true}
	bus.Subscribe(Key{Source: camera, Resolution: model.ResolutionSD}, sdSubA)
	bus.Subscribe(Key{Source: camera, Resolution: model.ResolutionSD}, sdSubB)
	bus.Subscribe(Key{Source: camera, Resolution: model.ResolutionHD}, hdSub)

	delivered, _ := bus.Publish(testFrameAt(camera, model.ResolutionSD))
	if delivered != 2 {
		t.Fatalf("expected 2 SD subscribers delivered, got %d", delivered)
	}
	if len(hdSub.got) != 0 {
		t.Fatalf("expected HD subscriber to receive nothing, got %d frames", len(hdSub.got))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	bus := New()
	source := model.FrameSource{Kind: model.FrameSourceCamera, ID: 5}

	sub := &recordingSub{accept: true}
	bus.Subscribe(sdKey(source), sub)
	bus.Unsubscribe(sdKey(source), sub)

	if bus.SubscriberCount(sdKey(source)) != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe")
	}
	delivered, _ := bus.Publish(testFrame(source))
	if delivered != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", delivered)
	}
}
