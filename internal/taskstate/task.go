// Package taskstate defines the task/event data model and the pure FSM
// reducer that drives a task through its lifecycle.
package taskstate

// Lifecycle is the coarse-grained state of a task.
type Lifecycle string

const (
	LifecycleReady        Lifecycle = "ready"
	LifecycleRunning      Lifecycle = "running"
	LifecycleWaitingHuman Lifecycle = "waiting_human"
	LifecycleDone         Lifecycle = "done"
	LifecycleCancelled    Lifecycle = "cancelled"
)

// Step is the point in the plan/implement/verify/review/commit pipeline
// a task is currently working through.
type Step string

const (
	StepResumePrompt Step = "resume_prompt"
	StepPlanImpl     Step = "plan_impl"
	StepImplement    Step = "implement"
	StepVerify       Step = "verify"
	StepReview       Step = "review"
	StepCommit       Step = "commit"
)

// PromptMode qualifies *why* a worker is being invoked at a given step,
// so the prompt template (out of scope here) can select the right framing.
type PromptMode string

const (
	PromptModeImplement      PromptMode = "implement"
	PromptModeFixTests       PromptMode = "fix_tests"
	PromptModeAddressReview  PromptMode = "address_review"
	PromptModeExpandAllowlist PromptMode = "expand_allowlist"
)

// Verification is the last recorded test-run outcome, persisted on the task.
type Verification struct {
	Command    string `yaml:"command" json:"command"`
	ExitCode   int    `yaml:"exit_code" json:"exit_code"`
	LogPath    string `yaml:"log_path" json:"log_path"`
	LogTail    string `yaml:"log_tail" json:"log_tail"`
	CapturedAt string `yaml:"captured_at" json:"captured_at"`
}

// BlockedIntent is the (step, prompt mode) pair a task was working toward
// when it was blocked, so a resume can restore it exactly.
type BlockedIntent struct {
	Step       Step       `yaml:"step" json:"step"`
	PromptMode PromptMode `yaml:"prompt_mode,omitempty" json:"prompt_mode,omitempty"`
}

// Task is one unit of work in the plan/implement/verify/review/commit
// pipeline. Field-for-field grounded on the original TaskState model.
type Task struct {
	ID                 string   `yaml:"id" json:"id"`
	Type               string   `yaml:"type" json:"type"`
	PhaseID            string   `yaml:"phase_id,omitempty" json:"phase_id,omitempty"`
	Title              string   `yaml:"title,omitempty" json:"title,omitempty"`
	Description        string   `yaml:"description,omitempty" json:"description,omitempty"`
	Priority           int      `yaml:"priority" json:"priority"`
	Deps               []string `yaml:"deps,omitempty" json:"deps,omitempty"`
	AcceptanceCriteria []string `yaml:"acceptance_criteria,omitempty" json:"acceptance_criteria,omitempty"`
	TestCommand        string   `yaml:"test_command,omitempty" json:"test_command,omitempty"`
	Branch             string   `yaml:"branch,omitempty" json:"branch,omitempty"`

	Lifecycle  Lifecycle  `yaml:"lifecycle" json:"lifecycle"`
	Step       Step       `yaml:"step" json:"step"`
	PromptMode PromptMode `yaml:"prompt_mode,omitempty" json:"prompt_mode,omitempty"`

	ImplPlanPath     string        `yaml:"impl_plan_path,omitempty" json:"impl_plan_path,omitempty"`
	ImplPlanHash     string        `yaml:"impl_plan_hash,omitempty" json:"impl_plan_hash,omitempty"`
	LastVerification *Verification `yaml:"last_verification,omitempty" json:"last_verification,omitempty"`
	LastReviewPath   string        `yaml:"last_review_path,omitempty" json:"last_review_path,omitempty"`
	ReviewBlockers   []string      `yaml:"review_blockers,omitempty" json:"review_blockers,omitempty"`
	ReviewBlockerFiles []string    `yaml:"review_blocker_files,omitempty" json:"review_blocker_files,omitempty"`

	BlockReason        string   `yaml:"block_reason,omitempty" json:"block_reason,omitempty"`
	HumanBlockingIssues []string `yaml:"human_blocking_issues,omitempty" json:"human_blocking_issues,omitempty"`
	HumanNextSteps      []string `yaml:"human_next_steps,omitempty" json:"human_next_steps,omitempty"`

	WorkerAttempts             int `yaml:"worker_attempts" json:"worker_attempts"`
	PlanAttempts               int `yaml:"plan_attempts" json:"plan_attempts"`
	NoProgressAttempts         int `yaml:"no_progress_attempts" json:"no_progress_attempts"`
	TestFailAttempts           int `yaml:"test_fail_attempts" json:"test_fail_attempts"`
	ReviewGenAttempts          int `yaml:"review_gen_attempts" json:"review_gen_attempts"`
	ReviewFixAttempts          int `yaml:"review_fix_attempts" json:"review_fix_attempts"`
	AllowlistExpansionAttempts int `yaml:"allowlist_expansion_attempts" json:"allowlist_expansion_attempts"`

	LastRunID    string   `yaml:"last_run_id,omitempty" json:"last_run_id,omitempty"`
	LastErrorType string  `yaml:"last_error_type,omitempty" json:"last_error_type,omitempty"`
	LastError    string   `yaml:"last_error,omitempty" json:"last_error,omitempty"`
	Context      []string `yaml:"context,omitempty" json:"context,omitempty"`

	LastChangedFiles    []string `yaml:"last_changed_files,omitempty" json:"last_changed_files,omitempty"`
	PlanExpansionRequest []string `yaml:"plan_expansion_request,omitempty" json:"plan_expansion_request,omitempty"`

	BlockedIntent       *BlockedIntent `yaml:"blocked_intent,omitempty" json:"blocked_intent,omitempty"`
	BlockedAt           string         `yaml:"blocked_at,omitempty" json:"blocked_at,omitempty"`
	AutoResumeAttempts  int            `yaml:"auto_resume_attempts" json:"auto_resume_attempts"`
	ManualResumeAttempts int           `yaml:"manual_resume_attempts" json:"manual_resume_attempts"`
}

// NewTask returns a task at its initial ready/plan_impl state.
func NewTask(id string) Task {
	return Task{
		ID:        id,
		Type:      "implement",
		Lifecycle: LifecycleReady,
		Step:      StepPlanImpl,
	}
}

// LegacyStatus collapses lifecycle/step into the single-word status the
// older board views and logs expect.
func (t Task) LegacyStatus() string {
	switch t.Lifecycle {
	case LifecycleDone:
		return "done"
	case LifecycleWaitingHuman:
		return "blocked"
	case LifecycleCancelled:
		return "cancelled"
	}
	if t.Step == StepImplement {
		return "implementing"
	}
	return string(t.Step)
}

// DependenciesSatisfied reports whether every dependency id in deps
// appears in the done set.
func DependenciesSatisfied(deps []string, done map[string]bool) bool {
	for _, d := range deps {
		if !done[d] {
			return false
		}
	}
	return true
}
