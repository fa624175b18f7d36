package config

import (
	"time"

	"github.com/corerun/taskrunner/internal/taskstate"
)

// Config is the top-level orchestrator configuration.
type Config struct {
	Models   ModelsConfig   `json:"models"`
	Worker   WorkerConfig   `json:"worker"`
	Run      RunConfig      `json:"run"`
	Git      GitConfig      `json:"git"`
	Notify   NotifyConfig   `json:"notify"`
}

// ModelsConfig names the LLM model refs used by the primary/secondary
// review pipeline.
type ModelsConfig struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// WorkerVariant tags which transport a worker uses. The dispatcher
// branches on this tag rather than relying on polymorphic dispatch.
type WorkerVariant string

const (
	WorkerVariantCodexSubprocess WorkerVariant = "codex-subprocess"
	WorkerVariantOllamaHTTP      WorkerVariant = "ollama-http"
)

// WorkerConfig describes how to invoke a worker for a given variant.
type WorkerConfig struct {
	Variant            WorkerVariant `json:"variant"`
	Command            string        `json:"command"`             // for codex-subprocess: command template
	Endpoint           string        `json:"endpoint"`            // for ollama-http: base URL
	Model              string        `json:"model"`               // for ollama-http: model name
	TimeoutSeconds     int           `json:"timeout_seconds"`
	HeartbeatSeconds   int           `json:"heartbeat_seconds"`
	HeartbeatGraceSecs int           `json:"heartbeat_grace_seconds"`
}

// ParseTimeout returns the worker timeout as a time.Duration, defaulting
// to 30 minutes when unset.
func (w WorkerConfig) ParseTimeout() time.Duration {
	if w.TimeoutSeconds <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// PollInterval is clamped to max(5, min(heartbeat_seconds/2, 30))
// seconds.
func (w WorkerConfig) PollInterval() time.Duration {
	hb := w.HeartbeatSeconds
	if hb <= 0 {
		hb = 60
	}
	poll := hb / 2
	if poll > 30 {
		poll = 30
	}
	if poll < 5 {
		poll = 5
	}
	return time.Duration(poll) * time.Second
}

// HeartbeatGrace returns the configured grace window before a quiet
// worker is considered stalled.
func (w WorkerConfig) HeartbeatGrace() time.Duration {
	if w.HeartbeatGraceSecs <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(w.HeartbeatGraceSecs) * time.Second
}

// RunConfig holds engine-level run settings: parallelism and attempt caps.
type RunConfig struct {
	MaxParallelTasks int             `json:"max_parallel_tasks"`
	TaskTimeout      string          `json:"task_timeout"`
	SourceRoot       string          `json:"source_root"`
	ShiftMinutes     int             `json:"shift_minutes"`
	Caps             taskstate.Caps  `json:"caps"`
}

// ParseTaskTimeout returns the task timeout as a time.Duration.
func (r RunConfig) ParseTaskTimeout() time.Duration {
	d, err := time.ParseDuration(r.TaskTimeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// StaleRunGrace returns the larger of the worker heartbeat grace and
// the configured shift length (open question decision, see DESIGN.md).
// The orchestrator's crash recovery does not consult it: at startup it
// demotes every task left in "running" back to "ready" regardless of age.
func (r RunConfig) StaleRunGrace(heartbeatGrace time.Duration) time.Duration {
	shift := time.Duration(r.ShiftMinutes) * time.Minute
	if shift > heartbeatGrace {
		return shift
	}
	return heartbeatGrace
}

// GitConfig controls commit/push behavior.
type GitConfig struct {
	AutoPush      bool   `json:"auto_push"`
	CommitAuthor  string `json:"commit_author"`
	RemoteName    string `json:"remote_name"`
}

// NotifyConfig holds optional outbound notification settings for events
// such as a task flipping to waiting_human.
type NotifyConfig struct {
	TeamsWebhookURL string   `json:"teams_webhook_url"`
	Events          []string `json:"events"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Models: ModelsConfig{
			Primary:   "anthropic/claude-sonnet-4-20250514",
			Secondary: "openai/o3",
		},
		Worker: WorkerConfig{
			Variant:            WorkerVariantCodexSubprocess,
			Command:            "codex exec --full-auto - < {prompt_file}",
			TimeoutSeconds:     1800,
			HeartbeatSeconds:   60,
			HeartbeatGraceSecs: 120,
		},
		Run: RunConfig{
			MaxParallelTasks: 4,
			TaskTimeout:      "30m",
			SourceRoot:       "src",
			ShiftMinutes:     480,
			Caps:             taskstate.DefaultCaps(),
		},
		Git: GitConfig{
			RemoteName: "origin",
		},
	}
}
