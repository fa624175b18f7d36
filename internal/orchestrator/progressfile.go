package orchestrator

import (
	"encoding/json"
	"os"
)

// agenticProgress is the structured-output shape a codex-subprocess
// worker writes alongside its heartbeat (spec's agentic worker
// contract): run_id/task_id/phase tie it to this invocation,
// actions/claims/next_steps narrate what it did, and the human_* fields
// ask the orchestrator to stop and hand the task to a person.
type agenticProgress struct {
	RunID               string   `json:"run_id"`
	TaskID              string   `json:"task_id"`
	Phase               string   `json:"phase"`
	Actions             []string `json:"actions"`
	Claims              []string `json:"claims"`
	NextSteps           []string `json:"next_steps"`
	HumanBlockingIssues []string `json:"human_blocking_issues"`
	HumanNextSteps      []string `json:"human_next_steps"`
	Heartbeat           string   `json:"heartbeat"`
}

// readAgenticProgress reads a worker's progress file, returning ok=false
// if it is missing, unparseable, or stamped for a different run.
func readAgenticProgress(path, expectedRunID string) (agenticProgress, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return agenticProgress{}, false
	}
	var p agenticProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return agenticProgress{}, false
	}
	if expectedRunID != "" && p.RunID != "" && p.RunID != expectedRunID {
		return agenticProgress{}, false
	}
	return p, true
}
