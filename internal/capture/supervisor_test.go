package capture

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dmattli/go-exopticon/internal/framebus"
	"github.com/dmattli/go-exopticon/internal/model"
	"github.com/dmattli/go-exopticon/internal/observability"
)

func testSupervisor() *Supervisor {
	return NewSupervisor(
		"/tmp/exopticon-test",
		"/nonexistent/exsnap",
		nil,
		framebus.New(),
		observability.NewManager(1, slog.Default()),
		slog.Default(),
	)
}

func TestStartWorkerRegistersHandle(t *testing.T) {
	t.Parallel()
	s := testSupervisor()
	workers := make(map[int32]*workerHandle)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.startWorker(ctx, workers, model.Camera{ID: 1, Name: "front"})
	if _, ok := workers[1]; !ok {
		t.Fatalf("expected camera 1 to have a registered worker handle")
	}
}

func TestStartWorkerIsNoOpWhenAlreadyRunning(t *testing.T) {
	t.Parallel()
	s := testSupervisor()
	workers := make(map[int32]*workerHandle)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.startWorker(ctx, workers, model.Camera{ID: 2, Name: "back"})
	first := workers[2]
	s.startWorker(ctx, workers, model.Camera{ID: 2, Name: "back"})
	if workers[2] != first {
		t.Fatalf("expected second start for a running camera to be a no-op")
	}
}

func TestStopWorkerCancelsAndRemovesHandle(t *testing.T) {
	t.Parallel()
	s := testSupervisor()
	workers := make(map[int32]*workerHandle)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.startWorker(ctx, workers, model.Camera{ID: 3, Name: "side"})
	h := workers[3]

	s.stopWorker(workers, 3)

	if _, ok := workers[3]; ok {
		t.Fatalf("expected camera 3 to be removed from the worker map")
	}
	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatalf("expected worker goroutine to exit after Stop")
	}
}

func TestStopWorkerIsNoOpForUnknownCamera(t *testing.T) {
	t.Parallel()
	s := testSupervisor()
	workers := make(map[int32]*workerHandle)
	s.stopWorker(workers, 999) // must not panic
}

// TestSyncWorkersStopsDisabledCamera covers TESTABLE scenario 6
// ("graceful disable"): a camera whose Enabled flips to false has its
// worker stopped on the next sync, without an explicit Stop call.
func TestSyncWorkersStopsDisabledCamera(t *testing.T) {
	t.Parallel()
	s := testSupervisor()
	workers := make(map[int32]*workerHandle)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.startWorker(ctx, workers, model.Camera{ID: 4, Name: "disabled-later", Enabled: true})
	if _, ok := workers[4]; !ok {
		t.Fatalf("expected camera 4 to be running before sync")
	}

	s.syncWorkers(ctx, workers, []model.Camera{{ID: 4, Name: "disabled-later", Enabled: false}})

	if _, ok := workers[4]; ok {
		t.Fatalf("expected sync to stop the now-disabled camera's worker")
	}
}

// TestSyncWorkersStopsCameraNoLongerPresent covers a camera removed
// from the persisted set entirely, not just disabled.
func TestSyncWorkersStopsCameraNoLongerPresent(t *testing.T) {
	t.Parallel()
	s := testSupervisor()
	workers := make(map[int32]*workerHandle)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.startWorker(ctx, workers, model.Camera{ID: 5, Name: "removed", Enabled: true})
	s.syncWorkers(ctx, workers, nil)

	if _, ok := workers[5]; ok {
		t.Fatalf("expected sync to stop a worker whose camera is absent from the desired set")
	}
}

func TestSyncWorkersStartsNewlyEnabledCamera(t *testing.T) {
	t.Parallel()
	s := testSupervisor()
	workers := make(map[int32]*workerHandle)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.syncWorkers(ctx, workers, []model.Camera{{ID: 6, Name: "new", Enabled: true}})

	if _, ok := workers[6]; !ok {
		t.Fatalf("expected sync to start a worker for a newly enabled camera")
	}
}
