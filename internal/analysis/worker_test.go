package analysis

import (
	"log/slog"
	"testing"

	"github.com/dmattli/go-exopticon/internal/bufpool"
	"github.com/dmattli/go-exopticon/internal/framebus"
	"github.com/dmattli/go-exopticon/internal/model"
)

func testWorker(instance model.AnalysisInstance) *Worker {
	bus := framebus.New()
	obsOut := make(chan model.Observation, 8)
	return NewWorker(instance, model.AnalysisEngine{EntryPoint: "/nonexistent/engine"}, bus, nil, obsOut, slog.Default())
}

func testInstanceFrame(source model.FrameSource, jpeg []byte) framebus.Frame {
	return framebus.Frame{
		Source: source,
		Buf:    bufpool.NewRefBuf(nil, jpeg),
	}
}

func TestHandleFrameDropsWhenTokenBucketExhausted(t *testing.T) {
	t.Parallel()
	source := model.FrameSource{Kind: model.FrameSourceCamera, ID: 1}
	instance := model.AnalysisInstance{
		ID:     1,
		MaxFPS: 0,
		Subscriptions: []model.Subscription{
			{Source: source},
		},
	}
	w := testWorker(instance)
	bucket := NewTokenBucket(1)
	bucket.tokens = 0
	w.buckets[source] = bucket

	var buf pipeBuffer
	w.handleFrame(testInstanceFrame(source, []byte{1, 2, 3}), &buf)

	if buf.Len() != 0 {
		t.Fatalf("expected frame to be dropped by an exhausted token bucket, wrote %d bytes", buf.Len())
	}
}

func TestHandleFrameWritesFrameWhenAllowed(t *testing.T) {
	t.Parallel()
	source := model.FrameSource{Kind: model.FrameSourceCamera, ID: 1}
	instance := model.AnalysisInstance{
		ID:     1,
		MaxFPS: 30,
		Subscriptions: []model.Subscription{
			{Source: source},
		},
	}
	w := testWorker(instance)

	var buf pipeBuffer
	w.handleFrame(testInstanceFrame(source, []byte{1, 2, 3, 4}), &buf)

	if buf.Len() == 0 {
		t.Fatalf("expected frame to be written to the subprocess stdin")
	}
}

func TestInstanceCameraIDFallsBackToSubscription(t *testing.T) {
	t.Parallel()
	source := model.FrameSource{Kind: model.FrameSourceCamera, ID: 7}
	instance := model.AnalysisInstance{
		Subscriptions: []model.Subscription{{Source: source}},
	}
	w := testWorker(instance)

	id := w.instanceCameraID(model.Observation{})
	if id != 7 {
		t.Fatalf("expected camera id 7, got %d", id)
	}
}

func TestInstanceCameraIDPrefersAlreadyStampedValue(t *testing.T) {
	t.Parallel()
	source := model.FrameSource{Kind: model.FrameSourceCamera, ID: 7}
	instance := model.AnalysisInstance{
		Subscriptions: []model.Subscription{{Source: source}},
	}
	w := testWorker(instance)

	id := w.instanceCameraID(model.Observation{CameraID: 9})
	if id != 9 {
		t.Fatalf("expected stamped camera id 9 to be kept, got %d", id)
	}
}

// pipeBuffer is a minimal io.Writer double standing in for the
// subprocess's stdin pipe.
type pipeBuffer struct {
	data []byte
}

func (p *pipeBuffer) Write(b []byte) (int, error) {
	p.data = append(p.data, b...)
	return len(b), nil
}

func (p *pipeBuffer) Len() int { return len(p.data) }
