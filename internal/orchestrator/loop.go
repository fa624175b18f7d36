package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corerun/taskrunner/internal/scheduler"
	"github.com/corerun/taskrunner/internal/store"
	"github.com/corerun/taskrunner/internal/taskstate"
)

// Loop drives a task queue to completion. Each batch the scheduler
// produces is drained fully — ticking every ready task one step at a
// time — before the next batch starts, so a dependent never runs ahead
// of a dependency that is still mid-pipeline.
type Loop struct {
	Deps  Deps
	Store *store.TaskStore
}

// NewLoop returns a Loop ready to run against store, using deps for
// every task's step execution.
func NewLoop(deps Deps, taskStore *store.TaskStore) *Loop {
	return &Loop{Deps: deps, Store: taskStore}
}

// Run batches the queue once up front, then drains each batch in order,
// ticking its ready tasks with bounded parallelism until none remain
// ready (either every task in the batch reached done, or the rest are
// permanently stuck behind a waiting_human dependency). Returns when
// every batch has been drained or ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.recoverCrashedTasks(); err != nil {
		return fmt.Errorf("recovering crashed tasks: %w", err)
	}

	queue, err := l.Store.Load()
	if err != nil {
		return fmt.Errorf("loading task queue: %w", err)
	}
	if len(queue.Tasks) == 0 {
		return nil
	}

	batches, err := scheduler.Batch(queue.Tasks)
	if err != nil {
		return fmt.Errorf("computing phase order: %w", err)
	}

	for i, batch := range batches {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ids := taskIDs(batch)
		printPhaseHeader(i+1, batch)

		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			current, err := l.Store.Load()
			if err != nil {
				return fmt.Errorf("loading task queue: %w", err)
			}

			ready := readyInBatch(current.Tasks, ids)
			if len(ready) == 0 {
				break
			}

			results := scheduler.RunBatch(ctx, ready, l.Deps.Cfg.Run.MaxParallelTasks, l.tick)
			printPhaseResults(i+1, results)
		}

		final, err := l.Store.Load()
		if err != nil {
			return fmt.Errorf("loading task queue: %w", err)
		}
		printOverallProgress(i+1, len(batches), final.Tasks)
	}

	return nil
}

// tick claims task (marking it running so a crash mid-step is visible
// to the next recovery pass), runs its current step, and folds the
// resulting event back through the FSM. Matches scheduler.RunFunc.
func (l *Loop) tick(ctx context.Context, task taskstate.Task) error {
	if err := l.Store.UpdateTask(task.ID, func(t taskstate.Task) taskstate.Task {
		t.Lifecycle = taskstate.LifecycleRunning
		return t
	}); err != nil {
		return err
	}

	event := RunTask(ctx, l.Deps, task)

	return l.Store.UpdateTask(task.ID, func(t taskstate.Task) taskstate.Task {
		next := taskstate.Reduce(t, event, l.Deps.Cfg.Run.Caps)
		if next.Lifecycle == taskstate.LifecycleWaitingHuman && next.BlockedIntent != nil && next.BlockedAt == "" {
			next.BlockedAt = nowISO()
		}
		return next
	})
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// recoverCrashedTasks demotes any task left in the running lifecycle by
// a previous process that died between claiming a task and folding its
// result — there is no event to reduce, so the only safe move is to
// hand it back to the ready pool for this run to retry.
func (l *Loop) recoverCrashedTasks() error {
	return l.Store.Mutate(func(q store.TaskQueue) (store.TaskQueue, error) {
		for i, t := range q.Tasks {
			if t.Lifecycle == taskstate.LifecycleRunning {
				slog.Warn("recovering task stuck in running state from a previous crash", "task_id", t.ID)
				t.Lifecycle = taskstate.LifecycleReady
				q.Tasks[i] = t
			}
		}
		return q, nil
	})
}

func taskIDs(tasks []taskstate.Task) map[string]bool {
	out := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		out[t.ID] = true
	}
	return out
}

func doneSet(tasks []taskstate.Task) map[string]bool {
	done := map[string]bool{}
	for _, t := range tasks {
		if t.Lifecycle == taskstate.LifecycleDone {
			done[t.ID] = true
		}
	}
	return done
}

// readyInBatch returns the subset of tasks that belong to ids, are in
// the ready lifecycle, and have every dependency already done.
func readyInBatch(tasks []taskstate.Task, ids map[string]bool) []taskstate.Task {
	done := doneSet(tasks)
	var out []taskstate.Task
	for _, t := range tasks {
		if !ids[t.ID] || t.Lifecycle != taskstate.LifecycleReady {
			continue
		}
		if !taskstate.DependenciesSatisfied(t.Deps, done) {
			continue
		}
		out = append(out, t)
	}
	return out
}
