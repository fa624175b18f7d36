package taskstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestReducePlanValidAdvancesToImplement(t *testing.T) {
	task := NewTask("t1")
	caps := DefaultCaps()

	got := Reduce(task, WorkerSucceeded{
		Step:         StepPlanImpl,
		RunID:        "run-1",
		PlanValid:    boolPtr(true),
		ImplPlanPath: "plans/t1.md",
		ImplPlanHash: "abc123",
	}, caps)

	require.Equal(t, LifecycleReady, got.Lifecycle)
	assert.Equal(t, StepImplement, got.Step)
	assert.Equal(t, PromptModeImplement, got.PromptMode)
	assert.Equal(t, "plans/t1.md", got.ImplPlanPath)
	assert.Equal(t, 0, got.PlanAttempts)
}

func TestReducePlanInvalidExhaustsToWaitingHuman(t *testing.T) {
	task := NewTask("t1")
	caps := DefaultCaps()
	caps.PlanAttempts = 2

	event := WorkerSucceeded{Step: StepPlanImpl, RunID: "run-1", PlanValid: boolPtr(false), PlanIssue: "missing files_to_change"}

	task = Reduce(task, event, caps)
	require.Equal(t, LifecycleReady, task.Lifecycle)
	require.Equal(t, 1, task.PlanAttempts)

	task = Reduce(task, event, caps)
	require.Equal(t, LifecycleWaitingHuman, task.Lifecycle)
	assert.Equal(t, "PLAN_INVALID", task.BlockReason)
	assert.Equal(t, 2, task.PlanAttempts)

	require.NotNil(t, task.BlockedIntent)
	assert.Equal(t, StepPlanImpl, task.BlockedIntent.Step)
}

func TestReduceImplementNoIntroducedChangesFallsThrough(t *testing.T) {
	task := NewTask("t1")
	task.Step = StepImplement
	caps := DefaultCaps()

	got := Reduce(task, WorkerSucceeded{Step: StepImplement, RunID: "run-2"}, caps)

	// no IntroducedChanges -> falls through to the generic "advance to
	// the event's own step" branch, not straight to verify.
	assert.Equal(t, StepImplement, got.Step)
	assert.Equal(t, LifecycleReady, got.Lifecycle)
}

func TestReduceImplementWithIntroducedChangesGoesToVerify(t *testing.T) {
	task := NewTask("t1")
	task.Step = StepImplement
	caps := DefaultCaps()

	got := Reduce(task, WorkerSucceeded{
		Step:              StepImplement,
		RunID:             "run-2",
		IntroducedChanges: []string{"a.go"},
	}, caps)

	assert.Equal(t, StepVerify, got.Step)
	assert.Equal(t, LifecycleReady, got.Lifecycle)
	assert.Equal(t, 0, got.NoProgressAttempts)
}

func TestReduceNoIntroducedChangesRepoDirtyStillAdvances(t *testing.T) {
	task := NewTask("t1")
	task.Step = StepImplement
	caps := DefaultCaps()

	got := Reduce(task, NoIntroducedChanges{Step: StepImplement, RunID: "run-3", RepoDirty: true}, caps)

	assert.Equal(t, StepVerify, got.Step)
	assert.Equal(t, LifecycleReady, got.Lifecycle)
}

func TestReduceNoIntroducedChangesExhaustsNoProgress(t *testing.T) {
	task := NewTask("t1")
	task.Step = StepImplement
	caps := DefaultCaps()
	caps.NoProgressAttempts = 1

	got := Reduce(task, NoIntroducedChanges{Step: StepImplement, RunID: "run-3", RepoDirty: false}, caps)

	require.Equal(t, LifecycleWaitingHuman, got.Lifecycle)
	assert.Equal(t, "NO_PROGRESS", got.BlockReason)
}

func TestReduceAllowlistViolationRequestsExpansion(t *testing.T) {
	task := NewTask("t1")
	caps := DefaultCaps()

	got := Reduce(task, AllowlistViolation{
		RunID:           "run-4",
		Step:            StepImplement,
		DisallowedPaths: []string{"other/file.go"},
	}, caps)

	assert.Equal(t, StepPlanImpl, got.Step)
	assert.Equal(t, PromptModeExpandAllowlist, got.PromptMode)
	assert.Equal(t, 1, got.AllowlistExpansionAttempts)
}

func TestReduceVerificationFailedNeedsAllowlistExpansion(t *testing.T) {
	task := NewTask("t1")
	task.Step = StepVerify
	caps := DefaultCaps()

	got := Reduce(task, VerificationResult{
		RunID:                   "run-5",
		Passed:                  false,
		NeedsAllowlistExpansion: true,
		FailingPaths:            []string{"outside/pkg.go"},
	}, caps)

	assert.Equal(t, StepPlanImpl, got.Step)
	assert.Equal(t, PromptModeExpandAllowlist, got.PromptMode)
	assert.Equal(t, []string{"outside/pkg.go"}, got.PlanExpansionRequest)
}

func TestReduceVerificationFailedGoesToFixTests(t *testing.T) {
	task := NewTask("t1")
	task.Step = StepVerify
	caps := DefaultCaps()

	got := Reduce(task, VerificationResult{RunID: "run-5", Passed: false}, caps)

	assert.Equal(t, StepImplement, got.Step)
	assert.Equal(t, PromptModeFixTests, got.PromptMode)
	assert.Equal(t, 1, got.TestFailAttempts)
}

func TestReduceVerificationPassedGoesToReview(t *testing.T) {
	task := NewTask("t1")
	task.Step = StepVerify
	task.TestFailAttempts = 2
	caps := DefaultCaps()

	got := Reduce(task, VerificationResult{RunID: "run-5", Passed: true, Command: "pytest", ExitCode: 0}, caps)

	assert.Equal(t, StepReview, got.Step)
	assert.Equal(t, 0, got.TestFailAttempts)
	require.NotNil(t, got.LastVerification)
	assert.Equal(t, "pytest", got.LastVerification.Command)
}

func TestReduceReviewBlockingGoesToAddressReview(t *testing.T) {
	task := NewTask("t1")
	task.Step = StepReview
	caps := DefaultCaps()

	got := Reduce(task, ReviewResult{
		RunID:                     "run-6",
		Valid:                     true,
		BlockingSeveritiesPresent: true,
		Issues:                    []ReviewIssue{{Severity: "high", Summary: "missing error check"}},
		Files:                     []string{"a.go"},
	}, caps)

	assert.Equal(t, StepImplement, got.Step)
	assert.Equal(t, PromptModeAddressReview, got.PromptMode)
	assert.Equal(t, []string{"HIGH: missing error check"}, got.ReviewBlockers)
}

func TestReduceReviewCleanGoesToCommit(t *testing.T) {
	task := NewTask("t1")
	task.Step = StepReview
	caps := DefaultCaps()

	got := Reduce(task, ReviewResult{RunID: "run-6", Valid: true, BlockingSeveritiesPresent: false}, caps)

	assert.Equal(t, StepCommit, got.Step)
}

func TestReduceCommitResultDone(t *testing.T) {
	task := NewTask("t1")
	task.Step = StepCommit
	caps := DefaultCaps()

	got := Reduce(task, CommitResult{RunID: "run-7", RepoClean: true}, caps)

	assert.Equal(t, LifecycleDone, got.Lifecycle)
}

func TestReduceCommitResultFailureWaits(t *testing.T) {
	task := NewTask("t1")
	task.Step = StepCommit
	caps := DefaultCaps()

	got := Reduce(task, CommitResult{RunID: "run-7", Error: "push rejected"}, caps)

	assert.Equal(t, LifecycleWaitingHuman, got.Lifecycle)
	assert.Equal(t, "GIT_PUSH_FAILED", got.BlockReason)
}

func TestReduceProgressHumanBlockers(t *testing.T) {
	task := NewTask("t1")
	caps := DefaultCaps()

	got := Reduce(task, ProgressHumanBlockers{
		RunID:     "run-8",
		Issues:    []string{"need API key"},
		NextSteps: []string{"set OPENAI_API_KEY"},
	}, caps)

	require.Equal(t, LifecycleWaitingHuman, got.Lifecycle)
	assert.Equal(t, "HUMAN_REQUIRED", got.BlockReason)
	assert.Equal(t, []string{"need API key"}, got.HumanBlockingIssues)
}

func TestReduceWorkerFailedExhaustionSnapshotsBlockedIntent(t *testing.T) {
	task := NewTask("t1")
	task.Step = StepImplement
	task.PromptMode = PromptModeFixTests
	caps := DefaultCaps()
	caps.WorkerAttempts = 1

	got := Reduce(task, WorkerFailed{Step: StepImplement, RunID: "run-9", ErrorType: "timeout", ErrorDetail: "worker timed out"}, caps)

	require.Equal(t, LifecycleWaitingHuman, got.Lifecycle)
	require.NotNil(t, got.BlockedIntent)
	assert.Equal(t, StepImplement, got.BlockedIntent.Step)
	assert.Equal(t, PromptModeFixTests, got.BlockedIntent.PromptMode)
	assert.Empty(t, got.PromptMode)
}

func TestReduceResumePromptResultRestoresBlockedIntent(t *testing.T) {
	task := NewTask("t1")
	task.Step = StepImplement
	task.PromptMode = PromptModeFixTests
	caps := DefaultCaps()
	caps.WorkerAttempts = 1

	blocked := Reduce(task, WorkerFailed{Step: StepImplement, RunID: "run-9", ErrorType: "timeout", ErrorDetail: "worker timed out"}, caps)
	require.Equal(t, LifecycleWaitingHuman, blocked.Lifecycle)

	resumed := Reduce(blocked, ResumePromptResult{RunID: "run-10", Succeeded: true}, caps)

	assert.Equal(t, LifecycleReady, resumed.Lifecycle)
	assert.Equal(t, StepImplement, resumed.Step)
	assert.Equal(t, PromptModeFixTests, resumed.PromptMode)
	assert.Nil(t, resumed.BlockedIntent)
}

func TestReduceResumePromptResultFailureKeepsOriginalBlockedIntent(t *testing.T) {
	task := NewTask("t1")
	task.Step = StepImplement
	task.PromptMode = PromptModeFixTests
	caps := DefaultCaps()
	caps.WorkerAttempts = 1

	blocked := Reduce(task, WorkerFailed{Step: StepImplement, RunID: "run-9", ErrorType: "timeout", ErrorDetail: "worker timed out"}, caps)
	require.NotNil(t, blocked.BlockedIntent)

	stillBlocked := Reduce(blocked, ResumePromptResult{RunID: "run-10", Succeeded: false, ErrorDetail: "prompt rejected"}, caps)

	require.Equal(t, LifecycleWaitingHuman, stillBlocked.Lifecycle)
	require.NotNil(t, stillBlocked.BlockedIntent)
	assert.Equal(t, StepImplement, stillBlocked.BlockedIntent.Step)
	assert.Equal(t, PromptModeFixTests, stillBlocked.BlockedIntent.PromptMode)
}

func TestResumeFromIntentRestoresStepAndMode(t *testing.T) {
	task := NewTask("t1")
	task = Block(task, "WORKER_FAILED", "timeout", "worker timed out", "2026-07-31T00:00:00Z")
	require.Equal(t, LifecycleWaitingHuman, task.Lifecycle)
	require.NotNil(t, task.BlockedIntent)

	resumed := ResumeFromIntent(task, true)

	assert.Equal(t, LifecycleReady, resumed.Lifecycle)
	assert.Equal(t, StepPlanImpl, resumed.Step)
	assert.Nil(t, resumed.BlockedIntent)
	assert.Equal(t, 1, resumed.ManualResumeAttempts)
}
