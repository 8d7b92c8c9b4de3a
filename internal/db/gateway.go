// Package db is the Persistence Gateway (C1): the sole owner of the
// connection pool, serializing all access behind a channel of typed
// requests drained by a bounded worker pool. No other package imports
// pgx directly, the same "single owner, no internal locks" discipline
// the teacher applies to registry.Stream and conn.Session, just
// implemented with a pool instead of a goroutine-per-connection.
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// request is the gateway's internal unit of work: run fn against a pool
// connection and deliver its error (or the fn's zero-copy result via
// closure capture) to the caller.
type request struct {
	fn   func(ctx context.Context, pool *pgxpool.Pool) error
	done chan error
}

// Gateway serializes database access through a fixed number of workers
// pulling from requests, so callers never hold a raw *pgxpool.Pool.
type Gateway struct {
	pool     *pgxpool.Pool
	log      *slog.Logger
	requests chan request
	cancel   context.CancelFunc
}

// Open connects to databaseURL and starts workerCount workers draining
// the request channel. Callers must call Close when done.
func Open(ctx context.Context, databaseURL string, workerCount int, log *slog.Logger) (*Gateway, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db.Open: %w", err)
	}
	if workerCount <= 0 {
		workerCount = 1
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		pool:     pool,
		log:      log,
		requests: make(chan request),
		cancel:   cancel,
	}
	for i := 0; i < workerCount; i++ {
		go g.worker(workerCtx, i)
	}
	return g, nil
}

func (g *Gateway) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-g.requests:
			req.done <- req.fn(ctx, g.pool)
		}
	}
}

// submit enqueues fn and blocks until it has run, returning its error.
// It respects ctx cancellation both while queueing and while waiting
// for the result.
func (g *Gateway) submit(ctx context.Context, fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case g.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new work and releases the pool. It cancels the
// context that in-flight requests run under, so a request still
// running when Close is called is aborted rather than finished.
func (g *Gateway) Close() {
	g.cancel()
	g.pool.Close()
}
