package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type failureRecorder interface {
	BackgroundFailure(task string)
}

// Dispatcher runs best-effort tasks off the request path. A task's error is
// logged and counted; it never reaches the caller that scheduled it.
type Dispatcher struct {
	wg      sync.WaitGroup
	timeout time.Duration
	metrics failureRecorder
}

func NewDispatcher(timeout time.Duration, metrics failureRecorder) *Dispatcher {
	return &Dispatcher{timeout: timeout, metrics: metrics}
}

// Go schedules fn. The task context keeps ctx's values but not its
// cancellation, so a finished request does not abort the task.
func (d *Dispatcher) Go(ctx context.Context, task string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := fn(taskCtx); err != nil {
			slog.Warn("background task failed", "task", task, "err", err)
			if d.metrics != nil {
				d.metrics.BackgroundFailure(task)
			}
		}
	}()
}

// Wait blocks until every scheduled task has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
