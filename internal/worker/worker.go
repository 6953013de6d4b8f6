// Package worker runs per-conversation job loops. Each chat gets its own
// queue so one slow completion never blocks another chat, while a shared
// semaphore bounds how many jobs run at once across all chats.
package worker

import (
	"context"
	"fmt"
	"log/slog"
)

type StartOptions[J any] struct {
	Ctx    context.Context
	Sem    chan struct{}
	Jobs   <-chan J
	Logger *slog.Logger
	Handle func(context.Context, J)
}

// Start launches the loop for one queue. It exits when the context is
// cancelled or the jobs channel closes. A panicking handler kills the job,
// not the loop.
func Start[J any](opts StartOptions[J]) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		for {
			select {
			case <-opts.Ctx.Done():
				return
			case job, ok := <-opts.Jobs:
				if !ok {
					return
				}
				select {
				case opts.Sem <- struct{}{}:
				case <-opts.Ctx.Done():
					return
				}
				runJob(opts, logger, job)
			}
		}
	}()
}

func runJob[J any](opts StartOptions[J], logger *slog.Logger, job J) {
	defer func() { <-opts.Sem }()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker job panicked", "error", fmt.Sprintf("%v", r))
		}
	}()
	opts.Handle(opts.Ctx, job)
}

// Enqueue places job on jobs unless either context ends first.
func Enqueue[J any](ctx, workersCtx context.Context, jobs chan<- J, job J) error {
	if ctx == nil {
		ctx = workersCtx
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-workersCtx.Done():
		return workersCtx.Err()
	case jobs <- job:
		return nil
	}
}
