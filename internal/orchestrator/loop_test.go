package orchestrator

import (
	"testing"

	"github.com/corerun/taskrunner/internal/taskstate"
	"github.com/stretchr/testify/assert"
)

func mkTask(id string, lifecycle taskstate.Lifecycle, deps ...string) taskstate.Task {
	t := taskstate.NewTask(id)
	t.Lifecycle = lifecycle
	t.Deps = deps
	return t
}

func TestTaskIDsCollectsAllIDs(t *testing.T) {
	tasks := []taskstate.Task{mkTask("a", taskstate.LifecycleReady), mkTask("b", taskstate.LifecycleDone)}
	ids := taskIDs(tasks)
	assert.Len(t, ids, 2)
	assert.True(t, ids["a"])
	assert.True(t, ids["b"])
}

func TestDoneSetOnlyIncludesDoneTasks(t *testing.T) {
	tasks := []taskstate.Task{
		mkTask("a", taskstate.LifecycleDone),
		mkTask("b", taskstate.LifecycleReady),
		mkTask("c", taskstate.LifecycleWaitingHuman),
	}
	done := doneSet(tasks)
	assert.True(t, done["a"])
	assert.False(t, done["b"])
	assert.False(t, done["c"])
}

func TestReadyInBatchExcludesTasksOutsideTheBatch(t *testing.T) {
	tasks := []taskstate.Task{
		mkTask("a", taskstate.LifecycleReady),
		mkTask("b", taskstate.LifecycleReady),
	}
	ids := map[string]bool{"a": true}

	ready := readyInBatch(tasks, ids)
	assert.Len(t, ready, 1)
	assert.Equal(t, "a", ready[0].ID)
}

func TestReadyInBatchExcludesNonReadyLifecycles(t *testing.T) {
	tasks := []taskstate.Task{
		mkTask("a", taskstate.LifecycleRunning),
		mkTask("b", taskstate.LifecycleWaitingHuman),
		mkTask("c", taskstate.LifecycleDone),
	}
	ids := taskIDs(tasks)

	assert.Empty(t, readyInBatch(tasks, ids))
}

func TestReadyInBatchWaitsOnUnsatisfiedDependencies(t *testing.T) {
	tasks := []taskstate.Task{
		mkTask("a", taskstate.LifecycleReady),
		mkTask("b", taskstate.LifecycleReady, "a"),
	}
	ids := taskIDs(tasks)

	ready := readyInBatch(tasks, ids)
	assert.Len(t, ready, 1)
	assert.Equal(t, "a", ready[0].ID)
}

func TestReadyInBatchReleasesTaskOnceDependencyIsDone(t *testing.T) {
	tasks := []taskstate.Task{
		mkTask("a", taskstate.LifecycleDone),
		mkTask("b", taskstate.LifecycleReady, "a"),
	}
	ids := taskIDs(tasks)

	ready := readyInBatch(tasks, ids)
	assert.Len(t, ready, 1)
	assert.Equal(t, "b", ready[0].ID)
}
