package analysis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"github.com/dmattli/go-exopticon/internal/db"
	"github.com/dmattli/go-exopticon/internal/framebus"
	"github.com/dmattli/go-exopticon/internal/model"
)

// observationBatchSize bounds how many observations accumulate before
// a persistence call, per spec.md §4.6 ("persist via CreateObservations
// (batched up to N per call)").
const observationBatchSize = 20

// inbound is the frame-bus subscriber a Worker registers once per
// subscription source; it tags delivered frames with their source so
// the worker's main loop can look up the right token bucket and mask
// set.
type inbound struct {
	source model.FrameSource
	key    framebus.Key
	ch     chan framebus.Frame
}

func (i *inbound) TryDeliver(f framebus.Frame) bool {
	select {
	case i.ch <- f:
		return true
	default:
		return false
	}
}

// subscriptionKey resolves the frame bus key for sub. Analysis
// instances always subscribe at SD resolution: model.Subscription
// carries only a FrameSource per spec.md §3's data model, and an
// engine doing detection has no documented need for a camera's native
// resolution feed.
func subscriptionKey(sub model.Subscription) framebus.Key {
	return framebus.Key{Source: sub.Source, Resolution: model.ResolutionSD}
}

// Worker runs one analysis engine subprocess, feeding it frames from
// its configured subscriptions and persisting the observations it
// emits.
type Worker struct {
	instance model.AnalysisInstance
	engine   model.AnalysisEngine
	bus      *framebus.Bus
	gw       *db.Gateway
	obsOut   chan<- model.Observation
	log      *slog.Logger

	buckets map[model.FrameSource]*TokenBucket
	masks   map[model.FrameSource][]model.Rect
}

// NewWorker constructs a Worker for one run of instance's subprocess.
func NewWorker(instance model.AnalysisInstance, engine model.AnalysisEngine, bus *framebus.Bus, gw *db.Gateway, obsOut chan<- model.Observation, log *slog.Logger) *Worker {
	buckets := make(map[model.FrameSource]*TokenBucket, len(instance.Subscriptions))
	masks := make(map[model.FrameSource][]model.Rect, len(instance.Subscriptions))
	for _, sub := range instance.Subscriptions {
		buckets[sub.Source] = NewTokenBucket(instance.MaxFPS)
		masks[sub.Source] = sub.Masks
	}
	return &Worker{
		instance: instance,
		engine:   engine,
		bus:      bus,
		gw:       gw,
		obsOut:   obsOut,
		log:      log.With("analysis_instance_id", instance.ID),
		buckets:  buckets,
		masks:    masks,
	}
}

// Run launches the engine subprocess and forwards frames to it until
// ctx is cancelled or the subprocess exits.
func (w *Worker) Run(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, w.engine.EntryPoint)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("analysis worker %d: stdin pipe: %w", w.instance.ID, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("analysis worker %d: stdout pipe: %w", w.instance.ID, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("analysis worker %d: start: %w", w.instance.ID, err)
	}

	in := make(chan framebus.Frame, 8)
	subs := make([]*inbound, 0, len(w.instance.Subscriptions))
	for _, sub := range w.instance.Subscriptions {
		s := &inbound{source: sub.Source, key: subscriptionKey(sub), ch: in}
		subs = append(subs, s)
		w.bus.Subscribe(s.key, s)
	}
	defer func() {
		for _, s := range subs {
			w.bus.Unsubscribe(s.key, s)
		}
	}()

	errCh := make(chan error, 2)
	go func() { errCh <- w.feedLoop(ctx, in, stdin) }()
	go func() { errCh <- w.observationLoop(ctx, stdout) }()

	select {
	case <-ctx.Done():
		cmd.Wait()
		return nil
	case err := <-errCh:
		waitErr := cmd.Wait()
		if err != nil && err != io.EOF {
			return err
		}
		return waitErr
	}
}

func (w *Worker) feedLoop(ctx context.Context, in <-chan framebus.Frame, stdin io.WriteCloser) error {
	defer stdin.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-in:
			w.handleFrame(f, stdin)
		}
	}
}

func (w *Worker) handleFrame(f framebus.Frame, stdin io.Writer) {
	defer f.Buf.Release()

	bucket := w.buckets[f.Source]
	if bucket != nil && !bucket.Allow() {
		return
	}

	jpeg := f.Buf.Bytes()
	if masks := w.masks[f.Source]; len(masks) > 0 {
		masked, err := ApplyMasks(jpeg, masks)
		if err != nil {
			w.log.Error("failed to apply masks", "error", err)
			return
		}
		jpeg = masked
	}

	if err := WriteFrame(stdin, jpeg); err != nil {
		w.log.Debug("failed to write frame to analysis engine", "error", err)
	}
}

func (w *Worker) observationLoop(ctx context.Context, stdout io.Reader) error {
	batch := make([]model.Observation, 0, observationBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		stamped, err := w.gw.InsertObservations(ctx, batch)
		if err != nil {
			w.log.Error("failed to persist observations", "error", err)
		} else {
			for _, o := range stamped {
				select {
				case w.obsOut <- o:
				case <-ctx.Done():
					return
				}
			}
		}
		batch = batch[:0]
	}

	for {
		obs, err := ReadObservation(stdout)
		if err != nil {
			flush()
			return err
		}
		obs.CameraID = w.instanceCameraID(obs)
		batch = append(batch, obs)
		if len(batch) >= observationBatchSize {
			flush()
		}
	}
}

// instanceCameraID resolves the owning camera id for an observation:
// the engine-stamped obs.CameraID if nonzero, otherwise the id of the
// instance's first camera subscription, otherwise 0. For an instance
// with several camera subscriptions the fallback always names the
// first one.
func (w *Worker) instanceCameraID(obs model.Observation) int32 {
	if obs.CameraID != 0 {
		return obs.CameraID
	}
	for _, sub := range w.instance.Subscriptions {
		if sub.Source.Kind == model.FrameSourceCamera {
			return sub.Source.ID
		}
	}
	return 0
}
