package taskstate

// Event is the closed set of outcomes the FSM reducer accepts. Each
// concrete type carries exactly the fields its producer (dispatcher,
// verifier, reviewer, git coordinator) observed.
type Event interface {
	eventType() string
}

// WorkerSucceeded reports a worker run that completed without error.
// Interpretation of the outcome (plan validity, whether changes landed)
// is carried in the fields below rather than inferred by the reducer.
type WorkerSucceeded struct {
	Step             Step
	RunID            string
	ChangedFiles     []string
	IntroducedChanges []string
	RepoDirty        bool
	PlanValid        *bool
	PlanIssue        string
	ImplPlanPath     string
	ImplPlanHash     string
}

func (WorkerSucceeded) eventType() string { return "worker_succeeded" }

// WorkerFailed reports a worker process that exited with an error,
// timed out, or went quiet past the heartbeat grace window.
type WorkerFailed struct {
	Step              Step
	RunID             string
	ErrorType         string
	ErrorDetail       string
	StderrTail        string
	TimedOut          bool
	NoHeartbeat       bool
	ChangedFiles      []string
	IntroducedChanges []string
}

func (WorkerFailed) eventType() string { return "worker_failed" }

// ProgressHumanBlockers reports that a worker's structured output asked
// for human help rather than proceeding.
type ProgressHumanBlockers struct {
	RunID     string
	Issues    []string
	NextSteps []string
}

func (ProgressHumanBlockers) eventType() string { return "progress_human_blockers" }

// AllowlistViolation reports that a worker changed files outside the
// plan's declared allowlist.
type AllowlistViolation struct {
	RunID             string
	Step              Step
	DisallowedPaths   []string
	ChangedFiles      []string
	IntroducedChanges []string
}

func (AllowlistViolation) eventType() string { return "allowlist_violation" }

// NoIntroducedChanges reports that a worker finished but the pre/post
// snapshot diff shows no introduced changes for this run.
type NoIntroducedChanges struct {
	RunID        string
	Step         Step
	RepoDirty    bool
	ChangedFiles []string
}

func (NoIntroducedChanges) eventType() string { return "no_introduced_changes" }

// VerificationResult reports the outcome of running the task's test
// command. FailingPaths is the full failing-path set; ExpansionPaths is
// the subset outside the current allowlist (see DESIGN.md).
type VerificationResult struct {
	RunID                  string
	Passed                 bool
	Command                string
	ExitCode               int
	LogPath                string
	LogTail                string
	CapturedAt             string
	FailingPaths           []string
	ExpansionPaths         []string
	NeedsAllowlistExpansion bool
	ErrorType              string
}

func (VerificationResult) eventType() string { return "verification_result" }

// ReviewIssue is one item raised by a review pass.
type ReviewIssue struct {
	Severity string
	Summary  string
}

// ReviewResult reports the outcome of a review pass over the task's diff.
type ReviewResult struct {
	RunID                    string
	Valid                    bool
	BlockingSeveritiesPresent bool
	Issues                   []ReviewIssue
	Files                    []string
	ReviewPath               string
	ReviewIssue              string
}

func (ReviewResult) eventType() string { return "review_result" }

// CommitResult reports the outcome of committing (and optionally
// pushing) a task's changes.
type CommitResult struct {
	RunID     string
	Committed bool
	Pushed    bool
	Error     string
	RepoClean bool
	Skipped   bool
}

func (CommitResult) eventType() string { return "commit_result" }

// ResumePromptResult reports the outcome of dispatching a human-supplied
// free-text instruction to a blocked task.
type ResumePromptResult struct {
	RunID       string
	Succeeded   bool
	ErrorDetail string
}

func (ResumePromptResult) eventType() string { return "resume_prompt_result" }
