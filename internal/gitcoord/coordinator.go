// Package gitcoord serializes git operations across parallel phases: git
// is not safe to run concurrently against the same working tree, so
// every git invocation in the orchestrator runs through a single
// Coordinator's lock.
package gitcoord

import (
	"log/slog"
	"sync"
)

// Coordinator serializes git operations. Unlike the implementation it's
// grounded on, it is constructor-injected rather than a package-global
// singleton (see DESIGN.md and spec's Design Notes preference).
type Coordinator struct {
	mu sync.Mutex
}

// New returns a ready Coordinator.
func New() *Coordinator {
	return &Coordinator{}
}

// Execute runs fn under the coordinator's lock, logging
// acquire/complete/release at debug level and propagating fn's error.
func Execute[T any](c *Coordinator, name string, fn func() (T, error)) (T, error) {
	slog.Debug("waiting for git lock", "operation", name)
	c.mu.Lock()
	defer c.mu.Unlock()
	slog.Debug("acquired git lock", "operation", name)

	result, err := fn()
	if err != nil {
		slog.Error("git operation failed", "operation", name, "error", err)
		return result, err
	}
	slog.Debug("completed git operation", "operation", name)
	return result, nil
}
