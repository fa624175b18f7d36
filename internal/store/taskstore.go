package store

import (
	"fmt"
	"time"

	"github.com/corerun/taskrunner/internal/taskstate"
)

// TaskQueue is the persisted document holding every task known to a run.
type TaskQueue struct {
	Tasks []taskstate.Task `yaml:"tasks"`
}

// TaskStore serializes all reads/mutations of a single queue document
// behind the exclusive file lock at Path, so concurrent orchestrator
// processes never interleave a load-mutate-save cycle.
type TaskStore struct {
	Path        string
	LockTimeout time.Duration
}

// NewTaskStore returns a store bound to path using the default lock
// timeout.
func NewTaskStore(path string) *TaskStore {
	return &TaskStore{Path: path, LockTimeout: DefaultLockTimeout}
}

// Load reads the current queue without taking the exclusive lock; callers
// that only read (e.g. status reporting) should prefer this over Mutate.
func (s *TaskStore) Load() (TaskQueue, error) {
	var q TaskQueue
	if err := ReadYAML(s.Path, &q); err != nil {
		return TaskQueue{}, err
	}
	return q, nil
}

// Mutate loads the queue under an exclusive lock, applies fn, and writes
// the result back before releasing the lock. fn returning an error aborts
// the write.
func (s *TaskStore) Mutate(fn func(TaskQueue) (TaskQueue, error)) error {
	return WithLock(s.Path, s.LockTimeout, func() error {
		var q TaskQueue
		if err := ReadYAML(s.Path, &q); err != nil {
			return err
		}
		next, err := fn(q)
		if err != nil {
			return fmt.Errorf("mutating task queue: %w", err)
		}
		return WriteYAML(s.Path, next)
	})
}

// UpdateTask loads the queue under lock, replaces the task matching id
// via fn, and writes the queue back. Returns an error if id is not found.
func (s *TaskStore) UpdateTask(id string, fn func(taskstate.Task) taskstate.Task) error {
	return s.Mutate(func(q TaskQueue) (TaskQueue, error) {
		found := false
		for i, task := range q.Tasks {
			if task.ID == id {
				q.Tasks[i] = fn(task)
				found = true
				break
			}
		}
		if !found {
			return q, fmt.Errorf("task %s not found", id)
		}
		return q, nil
	})
}
