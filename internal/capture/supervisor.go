package capture

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dmattli/go-exopticon/internal/db"
	"github.com/dmattli/go-exopticon/internal/framebus"
	"github.com/dmattli/go-exopticon/internal/model"
	"github.com/dmattli/go-exopticon/internal/observability"
)

// emptyFileSweepInterval is how often the supervisor scans for video
// files left at model.SizeUnknown by an unclean subprocess exit.
const emptyFileSweepInterval = 60 * time.Second

// emptyFileCutoff bounds the sweep to units old enough that their
// capture worker has certainly moved on; a unit begun moments ago is
// still legitimately open.
const emptyFileCutoff = 2 * time.Minute

// commandKind discriminates Supervisor's serialized command channel,
// translated from capture_supervisor.rs's StartCaptureWorker /
// StopCaptureWorker / RestartCaptureWorker actix messages into a
// single command struct a goroutine drains.
type commandKind uint8

const (
	cmdStart commandKind = iota
	cmdStop
	cmdRestart
	cmdSync
)

type supervisorCommand struct {
	kind    commandKind
	camera  model.Camera
	cameras []model.Camera
}

type workerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor owns one goroutine that serializes Start/Stop/Restart
// requests against a map of running camera workers, exactly the
// single-owner no-internal-locks discipline capture_supervisor.rs
// keeps by routing every mutation through the actor mailbox.
type Supervisor struct {
	storageRoot string
	exsnapPath  string
	gw          *db.Gateway
	bus         *framebus.Bus
	obs         *observability.Manager
	log         *slog.Logger

	commands chan supervisorCommand
}

// NewSupervisor creates a Supervisor. Call Run in its own goroutine to
// start processing commands.
func NewSupervisor(storageRoot, exsnapPath string, gw *db.Gateway, bus *framebus.Bus, obs *observability.Manager, log *slog.Logger) *Supervisor {
	return &Supervisor{
		storageRoot: storageRoot,
		exsnapPath:  exsnapPath,
		gw:          gw,
		bus:         bus,
		obs:         obs,
		log:         log,
		commands:    make(chan supervisorCommand),
	}
}

// Start requests a worker for camera be running. A no-op with a
// warning if one is already running, matching spec.md §4.4's
// "Start is rejected (no-op with warning) if a worker for id already
// exists."
func (s *Supervisor) Start(camera model.Camera) { s.commands <- supervisorCommand{kind: cmdStart, camera: camera} }

// Stop tears down camera's running worker, if any.
func (s *Supervisor) Stop(cameraID int32) {
	s.commands <- supervisorCommand{kind: cmdStop, camera: model.Camera{ID: cameraID}}
}

// Restart is Stop followed by Start after restartDelay, mirroring
// RestartCaptureWorker's notify_later.
func (s *Supervisor) Restart(camera model.Camera) {
	s.commands <- supervisorCommand{kind: cmdRestart, camera: camera}
}

// Sync reconciles the running worker set against desired: it starts a
// worker for every camera in desired with Enabled == true that isn't
// already running, and stops any running worker whose camera is no
// longer present in desired or has Enabled == false. This is what
// gives spec.md §4.4's "enabled=false detaches any running capture
// worker within one supervisor tick" a driver — the Root Supervisor
// calls Sync on a tick with the freshly fetched camera list.
func (s *Supervisor) Sync(cameras []model.Camera) {
	s.commands <- supervisorCommand{kind: cmdSync, cameras: cameras}
}

// Run processes commands and supervises running workers until ctx is
// cancelled. It also runs the empty-video-file reconciliation sweep on
// its own ticker.
func (s *Supervisor) Run(ctx context.Context) {
	workers := make(map[int32]*workerHandle)
	sweep := time.NewTicker(emptyFileSweepInterval)
	defer sweep.Stop()

	defer func() {
		for id, h := range workers {
			h.cancel()
			<-h.done
			delete(workers, id)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			s.sweepEmptyFiles(ctx)
		case cmd := <-s.commands:
			switch cmd.kind {
			case cmdStart:
				s.startWorker(ctx, workers, cmd.camera)
			case cmdStop:
				s.stopWorker(workers, cmd.camera.ID)
			case cmdRestart:
				s.stopWorker(workers, cmd.camera.ID)
				go func(cam model.Camera) {
					select {
					case <-ctx.Done():
					case <-time.After(restartDelay):
						s.Start(cam)
					}
				}(cmd.camera)
			case cmdSync:
				s.syncWorkers(ctx, workers, cmd.cameras)
			}
		}
	}
}

func (s *Supervisor) startWorker(ctx context.Context, workers map[int32]*workerHandle, camera model.Camera) {
	if _, exists := workers[camera.ID]; exists {
		s.log.Warn("start requested for camera that is already running", "camera_id", camera.ID)
		return
	}

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	workers[camera.ID] = &workerHandle{cancel: cancel, done: done}

	storagePath := filepath.Join(s.storageRoot, camera.Name)

	go func() {
		defer close(done)
		for {
			w := NewWorker(camera, storagePath, s.exsnapPath, s.gw, s.bus, s.obs, s.log)
			err := w.Run(workerCtx)
			if workerCtx.Err() != nil {
				return
			}
			if err != nil {
				s.log.Error("capture worker exited, restarting", "camera_id", camera.ID, "error", err)
			}
			select {
			case <-workerCtx.Done():
				return
			case <-time.After(restartDelay):
			}
		}
	}()
}

// syncWorkers diffs cameras' enabled set against the currently running
// workers: missing-or-disabled cameras are stopped, newly enabled ones
// are started. Ordering (stop before start) matters only in that it
// frees a camera's storage directory before a same-tick re-enable
// would reuse it.
func (s *Supervisor) syncWorkers(ctx context.Context, workers map[int32]*workerHandle, cameras []model.Camera) {
	desired := make(map[int32]model.Camera, len(cameras))
	for _, cam := range cameras {
		if cam.Enabled {
			desired[cam.ID] = cam
		}
	}
	for id := range workers {
		if _, ok := desired[id]; !ok {
			s.log.Info("camera no longer enabled, stopping capture worker", "camera_id", id)
			s.stopWorker(workers, id)
		}
	}
	for id, cam := range desired {
		if _, exists := workers[id]; !exists {
			s.startWorker(ctx, workers, cam)
		}
	}
}

func (s *Supervisor) stopWorker(workers map[int32]*workerHandle, cameraID int32) {
	h, ok := workers[cameraID]
	if !ok {
		return
	}
	h.cancel()
	delete(workers, cameraID)
}

// sweepEmptyFiles reconciles video files an unclean capture-subprocess
// exit left at model.SizeUnknown (spec.md §4.4, §9): for each, stat the
// file exopticon actually wrote and stamp its real size, closing the
// row. A file missing from disk entirely is logged and left for a
// later sweep rather than guessed at.
func (s *Supervisor) sweepEmptyFiles(ctx context.Context) {
	files, err := s.gw.FetchEmptyVideoFiles(ctx, time.Now().Add(-emptyFileCutoff))
	if err != nil {
		s.log.Error("empty video file sweep failed", "error", err)
		return
	}
	for _, f := range files {
		path := filepath.Join(s.storageRoot, f.CameraName, f.File.Filename)
		info, err := os.Stat(path)
		if err != nil {
			s.log.Warn("orphaned video file missing from disk, leaving size unresolved", "video_file_id", f.File.ID, "path", path, "error", err)
			continue
		}
		if err := s.gw.SetVideoFileSize(ctx, f.File.ID, info.Size()); err != nil {
			s.log.Error("failed to close orphaned video file", "video_file_id", f.File.ID, "error", err)
			continue
		}
		s.log.Info("closed orphaned video file left open by an unclean capture exit", "video_file_id", f.File.ID, "filename", f.File.Filename, "size", info.Size())
	}
}
