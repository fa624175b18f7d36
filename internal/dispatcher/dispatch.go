package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/corerun/taskrunner/internal/config"
)

// Spec is everything the dispatcher needs to run one worker invocation.
type Spec struct {
	Worker       config.WorkerConfig
	Prompt       string
	ProjectDir   string
	RunDir       string
	ProgressPath string
	RunID        string
}

// Dispatch runs a worker, branching on Worker.Variant rather than
// relying on polymorphic dispatch — the dispatcher decides the
// transport, not the caller. Grounded on the original run_worker.
func Dispatch(ctx context.Context, spec Spec) (Result, error) {
	switch spec.Worker.Variant {
	case config.WorkerVariantCodexSubprocess:
		return RunSubprocess(ctx, spec.Worker, spec.Prompt, spec.ProjectDir, spec.RunDir, spec.ProgressPath, spec.RunID, ReadProgressHeartbeat)
	case config.WorkerVariantOllamaHTTP:
		return RunHTTPStream(ctx, spec.Worker, spec.Prompt, spec.RunDir, spec.RunID)
	default:
		return Result{}, fmt.Errorf("unknown worker variant %q", spec.Worker.Variant)
	}
}

// progressFile is the on-disk shape a worker writes to report liveness
// and (eventually) a structured result.
type progressFile struct {
	RunID     string `json:"run_id"`
	Heartbeat string `json:"heartbeat"`
	Timestamp string `json:"timestamp"`
}

// ReadProgressHeartbeat reads a worker's progress JSON file and returns
// its heartbeat timestamp, rejecting heartbeats stamped for a different
// run id. Falls back to the progress file's own mtime when neither
// heartbeat nor timestamp fields are present, matching the original
// _heartbeat_from_progress.
func ReadProgressHeartbeat(progressPath, expectedRunID string) (time.Time, bool) {
	data, err := os.ReadFile(progressPath)
	if err != nil {
		return time.Time{}, false
	}

	var p progressFile
	if err := json.Unmarshal(data, &p); err != nil {
		return time.Time{}, false
	}
	if expectedRunID != "" && p.RunID != "" && p.RunID != expectedRunID {
		return time.Time{}, false
	}

	if ts, ok := parseISO(p.Heartbeat); ok {
		return ts, true
	}
	if ts, ok := parseISO(p.Timestamp); ok {
		return ts, true
	}

	if info, err := os.Stat(progressPath); err == nil {
		return info.ModTime().UTC(), true
	}
	return time.Time{}, false
}

func parseISO(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
