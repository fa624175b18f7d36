package scheduler

import (
	"context"

	"github.com/corerun/taskrunner/internal/taskstate"
	"golang.org/x/sync/errgroup"
)

// TaskResult is the outcome of running a single task through a
// RunFunc, keyed back to the task it came from.
type TaskResult struct {
	Task taskstate.Task
	Err  error
}

// RunFunc executes a single task and returns its outcome. Errors
// returned here are surfaced in the batch's results but never abort
// sibling tasks in the same batch — each task in a batch is
// independent by construction.
type RunFunc func(ctx context.Context, task taskstate.Task) error

// RunBatch executes every task in a batch concurrently, bounded by
// maxParallel in-flight tasks at a time. A single task erroring does
// not cancel the others; ctx cancellation does. Results are returned
// in the same order as batch.
func RunBatch(ctx context.Context, batch []taskstate.Task, maxParallel int, run RunFunc) []TaskResult {
	if maxParallel <= 0 {
		maxParallel = 1
	}

	results := make([]TaskResult, len(batch))
	if len(batch) == 0 {
		return results
	}

	if len(batch) == 1 {
		results[0] = TaskResult{Task: batch[0], Err: run(ctx, batch[0])}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for i, task := range batch {
		i, task := i, task
		g.Go(func() error {
			results[i] = TaskResult{Task: task, Err: run(gctx, task)}
			return nil
		})
	}

	// Errors are recorded per-task in results, not propagated through
	// the group: one task's failure must not cancel its siblings.
	_ = g.Wait()
	return results
}
