package notifier

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dmattli/go-exopticon/internal/alert"
	"github.com/dmattli/go-exopticon/internal/model"
)

type recordingWorker struct {
	mu   sync.Mutex
	got  []alert.Notification
	fail bool
}

func (w *recordingWorker) Send(ctx context.Context, n alert.Notification) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errSendFailed
	}
	w.got = append(w.got, n)
	return nil
}

var errSendFailed = &sendFailedError{}

type sendFailedError struct{}

func (e *sendFailedError) Error() string { return "send failed" }

func TestSendNotificationDropsWhenNoWorkerRegistered(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(nil, func(model.Notifier) Worker { return &recordingWorker{} }, 4, slog.Default())

	s.SendNotification(alert.Notification{NotifierID: 1})
	// No panic, no registered worker: this is a best-effort assertion
	// that dropping is silent aside from the warning log.
}

func TestSendNotificationDispatchesToRegisteredWorker(t *testing.T) {
	t.Parallel()
	w := &recordingWorker{}
	s := NewSupervisor(nil, func(model.Notifier) Worker { return w }, 4, slog.Default())
	s.mu.Lock()
	s.workers[1] = w
	s.mu.Unlock()

	s.SendNotification(alert.Notification{NotifierID: 1, Message: "hello"})

	deadline := time.After(time.Second)
	for {
		w.mu.Lock()
		n := len(w.got)
		w.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected worker to receive the notification")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestExecutionPoolBoundsConcurrency(t *testing.T) {
	t.Parallel()
	const size = 2
	pool := newExecutionPool(size)

	var mu sync.Mutex
	active, maxActive := 0, 0
	block := make(chan struct{})

	w := workerFunc(func(ctx context.Context, n alert.Notification) error {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		<-block

		mu.Lock()
		active--
		mu.Unlock()
		return nil
	})

	for i := 0; i < 5; i++ {
		pool.execute(w, alert.Notification{}, slog.Default())
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	got := maxActive
	mu.Unlock()
	close(block)

	if got > size {
		t.Fatalf("expected at most %d concurrent sends, observed %d", size, got)
	}
}

type workerFunc func(ctx context.Context, n alert.Notification) error

func (f workerFunc) Send(ctx context.Context, n alert.Notification) error { return f(ctx, n) }
