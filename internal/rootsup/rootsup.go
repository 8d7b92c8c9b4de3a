// Package rootsup is the Root Supervisor (C9): on startup it starts
// the Capture Supervisor per enabled camera and the Storage Reaper per
// camera group (mode Run only), then reconciles the Analysis
// Supervisor, Alert Engine, and Notifier Supervisor from persisted
// state — always, in both Run and Standby modes, per spec.md §4.9.
package rootsup

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmattli/go-exopticon/internal/alert"
	"github.com/dmattli/go-exopticon/internal/analysis"
	"github.com/dmattli/go-exopticon/internal/capture"
	"github.com/dmattli/go-exopticon/internal/db"
	"github.com/dmattli/go-exopticon/internal/framebus"
	"github.com/dmattli/go-exopticon/internal/model"
	"github.com/dmattli/go-exopticon/internal/notifier"
	"github.com/dmattli/go-exopticon/internal/observability"
	"github.com/dmattli/go-exopticon/internal/playback"
	"github.com/dmattli/go-exopticon/internal/reaper"
)

// captureReconcileInterval bounds how long a camera's enabled flag can
// take to detach its capture worker, per spec.md §4.4's "within one
// supervisor tick" and TESTABLE scenario 6.
const captureReconcileInterval = 5 * time.Second

// Mode selects whether the Root Supervisor starts capture and
// reaping, matching spec.md §4.9's Run/Standby distinction.
type Mode int

const (
	// ModeRun starts C4 per enabled camera and C5 per group.
	ModeRun Mode = iota
	// ModeStandby skips starting C4 and C5; C6/C7/C8 still reconcile.
	ModeStandby
)

// obsChannelBuffer sizes the channel carrying observations from C6 to
// C7; a slow Alert Engine tick backpressures analysis persistence
// rather than dropping observations silently.
const obsChannelBuffer = 256

// Config bundles everything the Root Supervisor needs to bootstrap the
// rest of the control plane.
type Config struct {
	Mode                Mode
	StorageRoot         string
	ExsnapPath          string
	DecoderPath         string
	NotifierConcurrency int
}

// Supervisor owns the long-lived child supervisors and the bus that
// connects capture to analysis.
type Supervisor struct {
	cfg Config
	gw  *db.Gateway
	bus *framebus.Bus
	obs *observability.Manager
	log *slog.Logger

	captureSup  *capture.Supervisor
	analysisSup *analysis.Supervisor
	alertEngine *alert.Engine
	notifierSup *notifier.Supervisor
	playbackSup *playback.Supervisor

	reapers []*reaperHandle
}

// Bus returns the shared Frame Bus, for the websocket listener to
// subscribe connections against.
func (s *Supervisor) Bus() *framebus.Bus { return s.bus }

// Playback returns the Playback Supervisor, implementing
// wsapi.PlaybackController for the websocket listener.
func (s *Supervisor) Playback() *playback.Supervisor { return s.playbackSup }

type reaperHandle struct {
	groupID int32
	cancel  context.CancelFunc
}

// New wires up every child supervisor but does not start any
// goroutines; call Run to start everything and block until ctx is
// cancelled.
func New(cfg Config, gw *db.Gateway, log *slog.Logger) *Supervisor {
	bus := framebus.New()
	obsMgr := observability.NewManager(4, log)
	obsCh := make(chan model.Observation, obsChannelBuffer)

	notifierSup := notifier.NewSupervisor(gw, notifier.NewTelegramWorker, cfg.NotifierConcurrency, log.With("component", "notifier_supervisor"))
	alertEngine := alert.NewEngine(nil, obsCh, notifierSup, log.With("component", "alert_engine"))

	return &Supervisor{
		cfg:         cfg,
		gw:          gw,
		bus:         bus,
		obs:         obsMgr,
		log:         log,
		captureSup:  capture.NewSupervisor(cfg.StorageRoot, cfg.ExsnapPath, gw, bus, obsMgr, log.With("component", "capture_supervisor")),
		analysisSup: analysis.NewSupervisor(bus, gw, obsCh, log.With("component", "analysis_supervisor")),
		alertEngine: alertEngine,
		notifierSup: notifierSup,
		playbackSup: playback.NewSupervisor(cfg.DecoderPath, gw, bus, log.With("component", "playback_supervisor")),
	}
}

// Run starts every child supervisor's goroutine, performs the initial
// reconciliation against persisted state, and blocks until ctx is
// cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	go s.captureSup.Run(ctx)
	go s.analysisSup.Run(ctx)
	go s.alertEngine.Run(ctx)

	if err := s.reconcile(ctx); err != nil {
		return err
	}

	if s.cfg.Mode == ModeRun {
		go s.runCaptureReconcileLoop(ctx)
	}

	<-ctx.Done()
	s.notifierSup.Close()
	return nil
}

// runCaptureReconcileLoop periodically re-fetches persisted cameras and
// diffs them against the Capture Supervisor's running workers, so a
// camera flipped to enabled=false has its worker stopped without
// waiting for a process restart. Ticks only in ModeRun: Standby never
// starts capture workers in the first place.
func (s *Supervisor) runCaptureReconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(captureReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcileCapture(ctx)
		}
	}
}

func (s *Supervisor) reconcileCapture(ctx context.Context) {
	groups, err := s.gw.FetchAllCameraGroupAndCameras(ctx)
	if err != nil {
		s.log.Error("capture reconcile failed to fetch camera groups", "error", err)
		return
	}
	var cameras []model.Camera
	for _, g := range groups {
		cameras = append(cameras, g.Cameras...)
	}
	s.captureSup.Sync(cameras)
}

// reconcile fetches persisted configuration and starts workers for it,
// per spec.md §4.9: camera groups/cameras for C4+C5 (mode Run only),
// analysis instances for C6, alert rules for C7, notifiers for C8.
func (s *Supervisor) reconcile(ctx context.Context) error {
	if s.cfg.Mode == ModeRun {
		if err := s.startCaptureAndReaping(ctx); err != nil {
			return err
		}
	}

	if err := s.syncAnalysisInstances(ctx); err != nil {
		return err
	}
	if err := s.syncAlertRules(ctx); err != nil {
		return err
	}
	return s.notifierSup.SyncNotifiers(ctx)
}

func (s *Supervisor) startCaptureAndReaping(ctx context.Context) error {
	groups, err := s.gw.FetchAllCameraGroupAndCameras(ctx)
	if err != nil {
		return err
	}

	for _, g := range groups {
		for _, cam := range g.Cameras {
			if !cam.Enabled {
				continue
			}
			s.captureSup.Start(cam)
		}

		reaperCtx, cancel := context.WithCancel(ctx)
		r := reaper.New(g.Group.ID, s.gw, s.log.With("component", "storage_reaper", "group_id", g.Group.ID))
		go r.Run(reaperCtx)
		s.reapers = append(s.reapers, &reaperHandle{groupID: g.Group.ID, cancel: cancel})
	}
	return nil
}

// syncAnalysisInstances asks the Analysis Supervisor to start a worker
// for every enabled analysis instance whose engine is known. It runs
// once, from the startup reconciliation, and only starts workers: it
// does not stop workers for instances that are disabled or removed.
func (s *Supervisor) syncAnalysisInstances(ctx context.Context) error {
	engines, err := s.gw.FetchAllAnalysisEngines(ctx)
	if err != nil {
		return err
	}
	engineByID := make(map[int32]model.AnalysisEngine, len(engines))
	for _, e := range engines {
		engineByID[e.ID] = e
	}

	instances, err := s.gw.FetchAllAnalysisInstances(ctx)
	if err != nil {
		return err
	}
	for _, inst := range instances {
		if !inst.Enabled {
			continue
		}
		engine, ok := engineByID[inst.EngineID]
		if !ok {
			s.log.Warn("analysis instance references unknown engine, skipping", "analysis_instance_id", inst.ID, "engine_id", inst.EngineID)
			continue
		}
		s.analysisSup.Start(inst, engine)
	}
	return nil
}

func (s *Supervisor) syncAlertRules(ctx context.Context) error {
	rules, err := s.gw.FetchAllAlertRules(ctx)
	if err != nil {
		return err
	}
	s.alertEngine.SetRules(rules)
	return nil
}
