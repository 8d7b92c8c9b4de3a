package analysis

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmattli/go-exopticon/internal/db"
	"github.com/dmattli/go-exopticon/internal/framebus"
	"github.com/dmattli/go-exopticon/internal/model"
)

// restartDelay is how long the supervisor waits before respawning an
// analysis engine subprocess that exited, mirroring the capture
// supervisor's restartDelay (itself grounded on
// capture_supervisor.rs's RestartCaptureWorker).
const restartDelay = 5 * time.Second

type commandKind uint8

const (
	cmdStart commandKind = iota
	cmdStop
	cmdRestart
)

type supervisorCommand struct {
	kind     commandKind
	instance model.AnalysisInstance
	engine   model.AnalysisEngine
}

type workerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor reconciles running analysis-engine subprocesses against
// Start/Stop/Restart requests, one goroutine owning the worker map, the
// same discipline internal/capture.Supervisor uses for camera workers.
type Supervisor struct {
	bus    *framebus.Bus
	gw     *db.Gateway
	obsOut chan<- model.Observation
	log    *slog.Logger

	commands chan supervisorCommand
}

// NewSupervisor creates a Supervisor. Call Run in its own goroutine.
// obsOut receives every observation a running instance persists, for
// the alert engine to consume.
func NewSupervisor(bus *framebus.Bus, gw *db.Gateway, obsOut chan<- model.Observation, log *slog.Logger) *Supervisor {
	return &Supervisor{
		bus:      bus,
		gw:       gw,
		obsOut:   obsOut,
		log:      log,
		commands: make(chan supervisorCommand),
	}
}

// Start requests instance's engine subprocess be running. A no-op with
// a warning if one is already running for this instance id.
func (s *Supervisor) Start(instance model.AnalysisInstance, engine model.AnalysisEngine) {
	s.commands <- supervisorCommand{kind: cmdStart, instance: instance, engine: engine}
}

// Stop tears down instanceID's running worker, if any.
func (s *Supervisor) Stop(instanceID int32) {
	s.commands <- supervisorCommand{kind: cmdStop, instance: model.AnalysisInstance{ID: instanceID}}
}

// Restart is Stop followed by Start after restartDelay.
func (s *Supervisor) Restart(instance model.AnalysisInstance, engine model.AnalysisEngine) {
	s.commands <- supervisorCommand{kind: cmdRestart, instance: instance, engine: engine}
}

// Run processes commands until ctx is cancelled, then tears down every
// running worker.
func (s *Supervisor) Run(ctx context.Context) {
	workers := make(map[int32]*workerHandle)

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
		case cmd := <-s.commands:
			switch cmd.kind {
			case cmdStart:
				s.startWorker(ctx, workers, cmd.instance, cmd.engine)
			case cmdStop:
				s.stopWorker(workers, cmd.instance.ID)
			case cmdRestart:
				s.stopWorker(workers, cmd.instance.ID)
				go func(instance model.AnalysisInstance, engine model.AnalysisEngine) {
					select {
					case <-ctx.Done():
					case <-time.After(restartDelay):
						s.Start(instance, engine)
					}
				}(cmd.instance, cmd.engine)
			}
		}
	}
}

func (s *Supervisor) startWorker(ctx context.Context, workers map[int32]*workerHandle, instance model.AnalysisInstance, engine model.AnalysisEngine) {
	if _, exists := workers[instance.ID]; exists {
		s.log.Warn("start requested for analysis instance that is already running", "analysis_instance_id", instance.ID)
		return
	}

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	workers[instance.ID] = &workerHandle{cancel: cancel, done: done}

	go func() {
		defer close(done)
		for {
			w := NewWorker(instance, engine, s.bus, s.gw, s.obsOut, s.log)
			err := w.Run(workerCtx)
			if workerCtx.Err() != nil {
				return
			}
			if err != nil {
				s.log.Error("analysis worker exited, restarting", "analysis_instance_id", instance.ID, "error", err)
			}
			select {
			case <-workerCtx.Done():
				return
			case <-time.After(restartDelay):
			}
		}
	}()
}

func (s *Supervisor) stopWorker(workers map[int32]*workerHandle, instanceID int32) {
	h, ok := workers[instanceID]
	if !ok {
		return
	}
	h.cancel()
	delete(workers, instanceID)
}
