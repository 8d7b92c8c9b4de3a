// Package notifier is the Notifier Supervisor (C8): one worker per
// configured Notifier row, dispatching alert notifications through a
// bounded-concurrency execution pool, the same `chan struct{}`
// semaphore pattern the teacher's hooks.HookManager uses to cap
// concurrent hook execution.
package notifier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dmattli/go-exopticon/internal/alert"
	"github.com/dmattli/go-exopticon/internal/db"
	"github.com/dmattli/go-exopticon/internal/model"
)

// Worker encapsulates one notifier's delivery protocol.
type Worker interface {
	Send(ctx context.Context, n alert.Notification) error
}

// WorkerFactory builds the Worker for a given Notifier row. Supervisor
// calls this once per row on every SyncNotifiers.
type WorkerFactory func(model.Notifier) Worker

// Supervisor owns the notifier_id → Worker map and a bounded execution
// pool for in-flight deliveries.
type Supervisor struct {
	gw      *db.Gateway
	factory WorkerFactory
	log     *slog.Logger

	pool *executionPool

	mu      sync.RWMutex
	workers map[int32]Worker
}

// NewSupervisor creates a Supervisor. concurrency bounds the number of
// SendNotification calls in flight at once.
func NewSupervisor(gw *db.Gateway, factory WorkerFactory, concurrency int, log *slog.Logger) *Supervisor {
	return &Supervisor{
		gw:      gw,
		factory: factory,
		log:     log,
		pool:    newExecutionPool(concurrency),
		workers: make(map[int32]Worker),
	}
}

// SyncNotifiers clears and rebuilds the worker map from the persisted
// notifier list, under a critical section, mirroring
// notifier_supervisor.rs's SyncNotifiers.
func (s *Supervisor) SyncNotifiers(ctx context.Context) error {
	rows, err := s.gw.FetchAllNotifiers(ctx)
	if err != nil {
		return err
	}

	workers := make(map[int32]Worker, len(rows))
	for _, row := range rows {
		workers[row.ID] = s.factory(row)
	}

	s.mu.Lock()
	s.workers = workers
	s.mu.Unlock()

	s.log.Info("notifiers synced", "count", len(workers))
	return nil
}

// SendNotification forwards n to notifier_id's worker if one exists;
// otherwise it is dropped with a warning. Delivery runs asynchronously
// under the execution pool's concurrency bound; failures are logged
// and do not propagate to the caller, per spec.md §4.8.
func (s *Supervisor) SendNotification(n alert.Notification) {
	s.mu.RLock()
	w, ok := s.workers[n.NotifierID]
	s.mu.RUnlock()

	if !ok {
		s.log.Warn("no worker registered for notifier, dropping notification", "notifier_id", n.NotifierID)
		return
	}

	s.pool.execute(w, n, s.log)
}

// Close waits for in-flight deliveries to drain.
func (s *Supervisor) Close() { s.pool.close() }

// executionPool bounds concurrent Worker.Send calls, the same
// semaphore-channel idiom as internal/rtmp/server/hooks.executionPool.
type executionPool struct {
	slots chan struct{}
}

func newExecutionPool(size int) *executionPool {
	if size <= 0 {
		size = 10
	}
	return &executionPool{slots: make(chan struct{}, size)}
}

func (ep *executionPool) execute(w Worker, n alert.Notification, log *slog.Logger) {
	go func() {
		ep.slots <- struct{}{}
		defer func() { <-ep.slots }()

		if err := w.Send(context.Background(), n); err != nil {
			log.Error("notification delivery failed", "notifier_id", n.NotifierID, "error", err)
		}
	}()
}

func (ep *executionPool) close() {
	for i := 0; i < cap(ep.slots); i++ {
		ep.slots <- struct{}{}
	}
}
