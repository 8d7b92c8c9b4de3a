// Package playback is the Playback Supervisor referenced by spec.md
// §4.3: on StartPlayback it spawns a decoder subprocess for a stored
// video file and republishes its frames on the Frame Bus under
// FrameSource::playback(id), the same subprocess-owning-goroutine
// shape internal/capture.Worker uses for live capture.
package playback

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/dmattli/go-exopticon/internal/bufpool"
	"github.com/dmattli/go-exopticon/internal/capture"
	"github.com/dmattli/go-exopticon/internal/db"
	"github.com/dmattli/go-exopticon/internal/framebus"
	"github.com/dmattli/go-exopticon/internal/model"
)

// idToSource derives a model.FrameSource from a client-provided
// playback id string. The playback id space is client-provided, so
// two clients choosing the same id collide on the same FrameSource;
// this is a documented caveat (spec.md §9), not a bug this package
// tries to paper over.
func idToSource(id string) model.FrameSource {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return model.FrameSource{Kind: model.FrameSourcePlayback, ID: int32(h.Sum32())}
}

// Supervisor owns one decoder subprocess per active playback id.
type Supervisor struct {
	decoderPath string
	gw          *db.Gateway
	bus         *framebus.Bus
	log         *slog.Logger

	mu       sync.Mutex
	sessions map[string]context.CancelFunc
}

// NewSupervisor creates a Supervisor. decoderPath is the executable
// spawned per playback session (e.g. an ffmpeg wrapper that emits the
// same tagged-frame stdout protocol as the capture subprocess).
func NewSupervisor(decoderPath string, gw *db.Gateway, bus *framebus.Bus, log *slog.Logger) *Supervisor {
	return &Supervisor{
		decoderPath: decoderPath,
		gw:          gw,
		bus:         bus,
		log:         log,
		sessions:    make(map[string]context.CancelFunc),
	}
}

// StartPlayback looks up the video unit's first file and spawns a
// decoder for it, publishing frames under FrameSource::playback(id).
// Implements wsapi.PlaybackController.
func (s *Supervisor) StartPlayback(ctx context.Context, id string, videoUnitID int32, offsetUS int64) error {
	file, err := s.gw.FetchFirstVideoFile(ctx, videoUnitID)
	if err != nil {
		return fmt.Errorf("playback %s: %w", id, err)
	}

	s.mu.Lock()
	if _, exists := s.sessions[id]; exists {
		s.mu.Unlock()
		s.log.Warn("start playback requested for an id already running", "playback_id", id)
		return nil
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	s.sessions[id] = cancel
	s.mu.Unlock()

	source := idToSource(id)
	go s.run(sessionCtx, id, source, file, offsetUS)
	return nil
}

// StopPlayback tears down id's decoder subprocess, if any. Implements
// wsapi.PlaybackController.
func (s *Supervisor) StopPlayback(id string) {
	s.mu.Lock()
	cancel, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *Supervisor) run(ctx context.Context, id string, source model.FrameSource, file model.VideoFile, offsetUS int64) {
	defer func() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
	}()

	cmd := exec.CommandContext(ctx, s.decoderPath, "-in", file.Filename, "-offset-us", fmt.Sprint(offsetUS))
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.log.Error("playback decoder stdout pipe failed", "playback_id", id, "error", err)
		return
	}
	if err := cmd.Start(); err != nil {
		s.log.Error("playback decoder failed to start", "playback_id", id, "error", err)
		return
	}

	reader := capture.NewProtocolReader(stdout)
	for {
		rec, err := reader.ReadRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.log.Error("playback decoder protocol error", "playback_id", id, "error", err)
			break
		}
		if rec.Frame != nil {
			s.publishFrame(source, rec.Frame)
		}
	}

	_ = cmd.Wait()
}

func (s *Supervisor) publishFrame(source model.FrameSource, f *capture.Frame) {
	pool := bufpool.Default()
	buf := pool.Get(len(f.JPEG))
	copy(buf, f.JPEG)
	ref := bufpool.NewRefBuf(pool, buf)

	s.bus.Publish(framebus.Frame{
		Source:     source,
		Resolution: model.Resolution(f.Resolution),
		OffsetUS:   f.OffsetUS,
		Buf:        ref,
	})
}
