package analysis

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dmattli/go-exopticon/internal/framebus"
	"github.com/dmattli/go-exopticon/internal/model"
)

func testAnalysisSupervisor() *Supervisor {
	return NewSupervisor(
		framebus.New(),
		nil,
		make(chan model.Observation, 8),
		slog.Default(),
	)
}

func testEngine() model.AnalysisEngine {
	return model.AnalysisEngine{ID: 1, EntryPoint: "/nonexistent/engine"}
}

func TestAnalysisStartWorkerRegistersHandle(t *testing.T) {
	t.Parallel()
	s := testAnalysisSupervisor()
	workers := make(map[int32]*workerHandle)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.startWorker(ctx, workers, model.AnalysisInstance{ID: 1}, testEngine())
	if _, ok := workers[1]; !ok {
		t.Fatalf("expected instance 1 to have a registered worker handle")
	}
}

func TestAnalysisStartWorkerIsNoOpWhenAlreadyRunning(t *testing.T) {
	t.Parallel()
	s := testAnalysisSupervisor()
	workers := make(map[int32]*workerHandle)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.startWorker(ctx, workers, model.AnalysisInstance{ID: 2}, testEngine())
	first := workers[2]
	s.startWorker(ctx, workers, model.AnalysisInstance{ID: 2}, testEngine())
	if workers[2] != first {
		t.Fatalf("expected second start for a running instance to be a no-op")
	}
}

func TestAnalysisStopWorkerCancelsAndRemovesHandle(t *testing.T) {
	t.Parallel()
	s := testAnalysisSupervisor()
	workers := make(map[int32]*workerHandle)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.startWorker(ctx, workers, model.AnalysisInstance{ID: 3}, testEngine())
	h := workers[3]

	s.stopWorker(workers, 3)

	if _, ok := workers[3]; ok {
		t.Fatalf("expected instance 3 to be removed from the worker map")
	}
	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatalf("expected worker goroutine to exit after Stop")
	}
}

func TestAnalysisStopWorkerIsNoOpForUnknownInstance(t *testing.T) {
	t.Parallel()
	s := testAnalysisSupervisor()
	workers := make(map[int32]*workerHandle)
	s.stopWorker(workers, 999) // must not panic
}
