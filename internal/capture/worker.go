package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmattli/go-exopticon/internal/bufpool"
	"github.com/dmattli/go-exopticon/internal/db"
	"github.com/dmattli/go-exopticon/internal/framebus"
	"github.com/dmattli/go-exopticon/internal/model"
	"github.com/dmattli/go-exopticon/internal/observability"
)

// restartDelay is the fixed delay the supervisor waits before
// restarting a worker whose subprocess exited, grounded on
// capture_supervisor.rs's RestartCaptureWorker handler
// (ctx.notify_later(..., Duration::new(5, 0))).
const restartDelay = 5 * time.Second

// Worker owns one camera's exsnap subprocess for the lifetime of one
// run attempt. A new Worker is constructed for every (re)start; state
// that must survive a restart (the open video unit, if any) lives in
// the database, not in the Worker.
type Worker struct {
	camera      model.Camera
	storagePath string
	exsnapPath  string

	gw  *db.Gateway
	bus *framebus.Bus
	obs *observability.Manager
	log *slog.Logger

	openUnitID int32
	openFileID int32
}

// NewWorker constructs a Worker for one run of camera's capture
// subprocess.
func NewWorker(camera model.Camera, storagePath, exsnapPath string, gw *db.Gateway, bus *framebus.Bus, obs *observability.Manager, log *slog.Logger) *Worker {
	return &Worker{
		camera:      camera,
		storagePath: storagePath,
		exsnapPath:  exsnapPath,
		gw:          gw,
		bus:         bus,
		obs:         obs,
		log:         log.With("camera_id", camera.ID),
	}
}

// Run launches the subprocess and processes its stdout protocol until
// ctx is cancelled or the subprocess exits. It returns nil when ctx
// was cancelled (a clean supervised stop), and also when the
// subprocess closes stdout and exits with status 0; otherwise it
// returns the protocol or exit error. The supervisor restarts the
// worker after restartDelay whenever Run returns without ctx having
// been cancelled, nil or not.
func (w *Worker) Run(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, w.exsnapPath, "-rtsp", w.camera.RTSPURL, "-out", w.storagePath)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture worker %d: stdout pipe: %w", w.camera.ID, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("capture worker %d: start: %w", w.camera.ID, err)
	}

	w.obs.Emit(ctx, observability.NewEvent(observability.EventCaptureStart).WithCamera(w.camera.ID))

	reader := NewProtocolReader(stdout)
	runErr := w.readLoop(ctx, reader)

	waitErr := cmd.Wait()
	w.obs.Emit(ctx, observability.NewEvent(observability.EventCaptureStop).WithCamera(w.camera.ID))

	if ctx.Err() != nil {
		return nil
	}
	if runErr != nil {
		return runErr
	}
	return waitErr
}

func (w *Worker) readLoop(ctx context.Context, reader *ProtocolReader) error {
	for {
		rec, err := reader.ReadRecord()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("capture worker %d: protocol error: %w", w.camera.ID, err)
		}

		switch {
		case rec.BeginUnit != nil:
			if err := w.handleBeginUnit(ctx, rec.BeginUnit); err != nil {
				w.log.Error("failed to record begin unit", "error", err)
			}
		case rec.Frame != nil:
			w.handleFrame(rec.Frame)
		case rec.EndUnit != nil:
			if err := w.handleEndUnit(ctx, rec.EndUnit); err != nil {
				w.log.Error("failed to record end unit", "error", err)
			}
		case rec.Log != nil:
			w.obs.Emit(ctx, observability.NewEvent(observability.EventSubprocessLog).
				WithCamera(w.camera.ID).
				WithData("level", rec.Log.Level).
				WithData("message", rec.Log.Message))
		}
	}
}

func (w *Worker) handleBeginUnit(ctx context.Context, b *BeginUnit) error {
	unit, err := w.gw.CreateVideoUnit(ctx, w.camera.ID, int64(b.MonotonicIndex), time.UnixMicro(b.BeginTimeUS))
	if err != nil {
		return err
	}
	file, err := w.gw.CreateVideoFile(ctx, unit.ID, filepath.Base(b.Filename), model.SizeUnknown)
	if err != nil {
		return err
	}
	w.openUnitID = unit.ID
	w.openFileID = file.ID
	return nil
}

func (w *Worker) handleFrame(f *Frame) {
	pool := bufpool.Default()
	buf := pool.Get(len(f.JPEG))
	copy(buf, f.JPEG)
	ref := bufpool.NewRefBuf(pool, buf)

	source := model.FrameSource{Kind: model.FrameSourceCamera, ID: w.camera.ID}
	w.bus.Publish(framebus.Frame{
		Source:     source,
		Resolution: model.Resolution(f.Resolution),
		OffsetUS:   f.OffsetUS,
		Buf:        ref,
	})
}

func (w *Worker) handleEndUnit(ctx context.Context, e *EndUnit) error {
	if w.openUnitID == 0 {
		return errors.New("end unit received with no open video unit")
	}
	if err := w.gw.CloseVideoUnit(ctx, w.openUnitID, time.UnixMicro(e.EndTimeUS)); err != nil {
		return err
	}
	if err := w.gw.SetVideoFileSize(ctx, w.openFileID, int64(e.Size)); err != nil {
		return err
	}
	w.openUnitID, w.openFileID = 0, 0
	return nil
}

// RestartBackoff returns the fixed 5-second restart delay as a
// backoff.BackOff. The supervisor's restart loop does not use it; it
// waits on time.After(restartDelay), the same duration.
func RestartBackoff() backoff.BackOff {
	return backoff.NewConstantBackOff(restartDelay)
}
