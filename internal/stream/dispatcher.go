package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher runs each worker as an independent long-lived task. A worker
// that stops for any reason other than cancellation (including a panic in a
// handler that escaped the per-entry guard) is restarted after a fixed
// backoff rather than taking the process down.
type Dispatcher struct {
	workers []*Worker
	backoff time.Duration
	logger  *slog.Logger
}

func NewDispatcher(logger *slog.Logger, backoff time.Duration, workers ...*Worker) *Dispatcher {
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &Dispatcher{workers: workers, backoff: backoff, logger: logger}
}

// Run blocks until ctx is cancelled and every worker has drained its current
// batch and returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			d.supervise(ctx, w)
		}(w)
	}
	wg.Wait()
	return ctx.Err()
}

func (d *Dispatcher) supervise(ctx context.Context, w *Worker) {
	for {
		err := runGuarded(ctx, w)
		if ctx.Err() != nil {
			return
		}
		d.logger.Error("worker stopped unexpectedly, restarting",
			"topic", w.cfg.Topic.Key, "group", w.cfg.Group, "error", err, "backoff", d.backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.backoff):
		}
	}
}

func runGuarded(ctx context.Context, w *Worker) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("worker panic: %v", p)
		}
	}()
	return w.Run(ctx)
}
