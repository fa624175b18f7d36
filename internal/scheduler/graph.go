// Package scheduler computes the phase execution order for a task graph
// and runs each phase's ready tasks with bounded parallelism.
//
// Grounded on the dependency resolver in the system this spec replaces:
// three-color DFS for cycle detection and Kahn's algorithm for
// topological batching, adapted to taskstate.Task's Deps field.
package scheduler

import (
	"fmt"
	"sort"

	"github.com/corerun/taskrunner/internal/taskstate"
)

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

// CycleError reports a circular dependency, carrying the cycle as an
// ordered list of task IDs (first and last entries equal).
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	path := ""
	for i, id := range e.Cycle {
		if i > 0 {
			path += " -> "
		}
		path += id
	}
	return fmt.Sprintf("circular dependency detected: %s", path)
}

// CheckCycles detects a circular dependency among tasks, returning the
// first cycle found as a path of task IDs, or nil if the graph is
// acyclic. Dependents graph edges run dep -> dependent, matching the
// direction a topological sort walks them.
func CheckCycles(tasks []taskstate.Task) []string {
	graph := make(map[string][]string, len(tasks))
	state := make(map[string]visitState, len(tasks))
	for _, t := range tasks {
		if _, ok := state[t.ID]; !ok {
			state[t.ID] = unvisited
		}
		for _, dep := range t.Deps {
			graph[dep] = append(graph[dep], t.ID)
		}
	}

	var cycle []string
	var dfs func(node string, path []string) bool
	dfs = func(node string, path []string) bool {
		switch state[node] {
		case visiting:
			start := indexOf(path, node)
			cycle = append(append([]string{}, path[start:]...), node)
			return true
		case visited:
			return false
		}

		state[node] = visiting
		path = append(path, node)

		for _, next := range graph[node] {
			if dfs(next, append([]string{}, path...)) {
				return true
			}
		}

		state[node] = visited
		return false
	}

	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if state[id] == unvisited {
			if dfs(id, nil) {
				return cycle
			}
		}
	}
	return nil
}

// Batch returns tasks grouped into ordered batches, where every task in
// a batch depends only on tasks in earlier batches and can therefore
// run concurrently with the rest of its batch. Returns a *CycleError if
// the dependency graph is circular, or an error if a task depends on an
// unknown ID.
func Batch(tasks []taskstate.Task) ([][]taskstate.Task, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	byID := make(map[string]taskstate.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	for _, t := range tasks {
		for _, dep := range t.Deps {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("task %q depends on unknown task %q", t.ID, dep)
			}
		}
	}

	if cycle := CheckCycles(tasks); cycle != nil {
		return nil, &CycleError{Cycle: cycle}
	}

	inDegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		inDegree[t.ID] = len(t.Deps)
		for _, dep := range t.Deps {
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var batches [][]taskstate.Task
	scheduled := 0
	for len(queue) > 0 {
		batchIDs := queue
		sort.Strings(batchIDs)
		queue = nil

		batch := make([]taskstate.Task, 0, len(batchIDs))
		for _, id := range batchIDs {
			batch = append(batch, byID[id])
		}
		batches = append(batches, batch)
		scheduled += len(batch)

		var next []string
		for _, id := range batchIDs {
			for _, dependent := range dependents[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		queue = next
	}

	if scheduled != len(tasks) {
		var missing []string
		for _, t := range tasks {
			if inDegree[t.ID] > 0 {
				missing = append(missing, t.ID)
			}
		}
		return nil, fmt.Errorf("failed to schedule all tasks, missing: %v", missing)
	}

	return batches, nil
}

func indexOf(path []string, node string) int {
	for i, p := range path {
		if p == node {
			return i
		}
	}
	return 0
}
