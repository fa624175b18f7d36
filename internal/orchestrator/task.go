// Package orchestrator drives a task queue through its pipeline: it
// recovers crashed runs, batches tasks into dependency-respecting
// phases, and dispatches each ready task's current step to a worker,
// the verifier, the reviewer, or the git coordinator, folding whatever
// it observes back through the FSM.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/corerun/taskrunner/internal/config"
	"github.com/corerun/taskrunner/internal/dispatcher"
	"github.com/corerun/taskrunner/internal/gitcoord"
	"github.com/corerun/taskrunner/internal/interpret"
	"github.com/corerun/taskrunner/internal/llm"
	"github.com/corerun/taskrunner/internal/review"
	"github.com/corerun/taskrunner/internal/taskstate"
	"github.com/corerun/taskrunner/internal/verify"
)

// Deps bundles everything RunTask needs to execute one task's current
// step. It is constructor-injected rather than a package-global so the
// loop (and its tests) can swap in fakes.
type Deps struct {
	Cfg        config.Config
	GitCoord   *gitcoord.Coordinator
	ProjectDir string
	StateDir   string
}

func (d Deps) runsDir() string  { return filepath.Join(d.StateDir, "runs") }
func (d Deps) plansDir() string { return filepath.Join(d.StateDir, "plans") }

func newRunID() string { return uuid.NewString() }

// RunTask executes task's current step to completion (or failure) and
// returns the taskstate.Event describing what happened. It never
// mutates task itself; the caller folds the event through
// taskstate.Reduce and persists the result.
func RunTask(ctx context.Context, d Deps, task taskstate.Task) taskstate.Event {
	switch task.Step {
	case taskstate.StepPlanImpl:
		return runPlanImpl(ctx, d, task)
	case taskstate.StepImplement:
		return runImplement(ctx, d, task)
	case taskstate.StepVerify:
		return runVerify(ctx, d, task)
	case taskstate.StepReview:
		return runReview(ctx, d, task)
	case taskstate.StepCommit:
		return runCommit(ctx, d, task)
	case taskstate.StepResumePrompt:
		return runResumePrompt(ctx, d, task)
	default:
		return taskstate.WorkerFailed{
			Step:        task.Step,
			ErrorType:   "unknown_step",
			ErrorDetail: fmt.Sprintf("task %s has unrecognized step %q", task.ID, task.Step),
		}
	}
}

// dispatchWorker snapshots the repo, runs spec through the dispatcher,
// and returns the result alongside the pre/post dirty-path snapshots so
// callers can derive introduced changes.
func dispatchWorker(ctx context.Context, d Deps, task taskstate.Task, runID, prompt string) (dispatcher.Result, []string, []string, error) {
	pre, err := snapshotDirty(d.ProjectDir)
	if err != nil {
		pre = map[string]bool{}
	}

	runDir := filepath.Join(d.runsDir(), runID)
	spec := dispatcher.Spec{
		Worker:       d.Cfg.Worker,
		Prompt:       prompt,
		ProjectDir:   d.ProjectDir,
		RunDir:       runDir,
		ProgressPath: filepath.Join(runDir, "progress.json"),
		RunID:        runID,
	}

	res, err := dispatcher.Dispatch(ctx, spec)

	post, snapErr := snapshotDirty(d.ProjectDir)
	if snapErr != nil {
		post = pre
	}

	return res, sortedKeys(post), introducedSince(pre, post), err
}

// workerFailure maps a dispatcher outcome to a WorkerFailed event, or
// returns ok=false if the worker actually succeeded.
func workerFailure(step taskstate.Step, runID string, res dispatcher.Result, dispatchErr error, changedFiles, introduced []string) (taskstate.WorkerFailed, bool) {
	if dispatchErr != nil {
		return taskstate.WorkerFailed{
			Step: step, RunID: runID,
			ErrorType: "dispatch_error", ErrorDetail: dispatchErr.Error(),
			ChangedFiles: changedFiles, IntroducedChanges: introduced,
		}, true
	}
	if res.TimedOut {
		return taskstate.WorkerFailed{
			Step: step, RunID: runID,
			ErrorType: "worker_timeout", ErrorDetail: "worker exceeded its timeout", TimedOut: true,
			StderrTail: res.StderrTail, ChangedFiles: changedFiles, IntroducedChanges: introduced,
		}, true
	}
	if res.NoHeartbeat {
		return taskstate.WorkerFailed{
			Step: step, RunID: runID,
			ErrorType: "no_heartbeat", ErrorDetail: "worker stopped reporting heartbeats", NoHeartbeat: true,
			StderrTail: res.StderrTail, ChangedFiles: changedFiles, IntroducedChanges: introduced,
		}, true
	}
	if res.ExitCode != 0 {
		return taskstate.WorkerFailed{
			Step: step, RunID: runID,
			ErrorType: "worker_exit_nonzero", ErrorDetail: fmt.Sprintf("worker exited %d", res.ExitCode),
			StderrTail: res.StderrTail, ChangedFiles: changedFiles, IntroducedChanges: introduced,
		}, true
	}
	return taskstate.WorkerFailed{}, false
}

func runPlanImpl(ctx context.Context, d Deps, task taskstate.Task) taskstate.Event {
	runID := newRunID()
	prompt := buildPrompt(task, nil, task.ReviewBlockers, "")

	res, changedFiles, introduced, err := dispatchWorker(ctx, d, task, runID, prompt)
	if progress, ok := readAgenticProgress(filepath.Join(d.runsDir(), runID, "progress.json"), runID); ok && len(progress.HumanBlockingIssues) > 0 {
		return taskstate.ProgressHumanBlockers{RunID: runID, Issues: progress.HumanBlockingIssues, NextSteps: progress.HumanNextSteps}
	}
	if failed, isFailure := workerFailure(task.Step, runID, res, err, changedFiles, introduced); isFailure {
		return failed
	}

	raw, readErr := os.ReadFile(res.StdoutPath)
	if readErr != nil {
		f := false
		return taskstate.WorkerSucceeded{Step: task.Step, RunID: runID, ChangedFiles: changedFiles, IntroducedChanges: introduced, PlanValid: &f, PlanIssue: "could not read worker output: " + readErr.Error()}
	}

	plan, parseErr := llm.ParseJSON[interpret.ImplementationPlan](string(raw))
	if parseErr != nil {
		f := false
		return taskstate.WorkerSucceeded{Step: task.Step, RunID: runID, ChangedFiles: changedFiles, IntroducedChanges: introduced, PlanValid: &f, PlanIssue: parseErr.Error()}
	}

	docsOnly := interpret.IsDocsOnlyPhase(task.Title + " " + task.Description)
	if validErr := interpret.ValidatePlan(plan, task.PhaseID, docsOnly, task.PlanExpansionRequest); validErr != nil {
		f := false
		return taskstate.WorkerSucceeded{Step: task.Step, RunID: runID, ChangedFiles: changedFiles, IntroducedChanges: introduced, PlanValid: &f, PlanIssue: validErr.Error()}
	}

	planPath := filepath.Join(d.plansDir(), task.PhaseID+".json")
	planBytes, _ := json.MarshalIndent(plan, "", "  ")
	if err := os.MkdirAll(filepath.Dir(planPath), 0755); err != nil {
		f := false
		return taskstate.WorkerSucceeded{Step: task.Step, RunID: runID, PlanValid: &f, PlanIssue: "writing plan: " + err.Error()}
	}
	if err := os.WriteFile(planPath, planBytes, 0644); err != nil {
		f := false
		return taskstate.WorkerSucceeded{Step: task.Step, RunID: runID, PlanValid: &f, PlanIssue: "writing plan: " + err.Error()}
	}
	hash := sha256.Sum256(planBytes)

	ok := true
	return taskstate.WorkerSucceeded{
		Step: task.Step, RunID: runID, ChangedFiles: changedFiles, IntroducedChanges: introduced,
		PlanValid: &ok, ImplPlanPath: planPath, ImplPlanHash: fmt.Sprintf("%x", hash),
	}
}

func loadPlan(path string) (*interpret.ImplementationPlan, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var plan interpret.ImplementationPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// runImplement dispatches the implement step. The two worker variants
// hand back changes differently: a codex-subprocess worker has direct
// write access to the project directory, so its introduced changes show
// up in a pre/post git-status diff around the run; an ollama-http
// worker can only return response text, so its unified diff has to be
// applied by the orchestrator before any snapshot means anything.
func runImplement(ctx context.Context, d Deps, task taskstate.Task) taskstate.Event {
	plan, _ := loadPlan(task.ImplPlanPath)

	failingLog := ""
	if task.LastVerification != nil {
		failingLog = task.LastVerification.LogTail
	}

	runID := newRunID()
	prompt := buildPrompt(task, plan, task.ReviewBlockers, failingLog)

	if d.Cfg.Worker.Variant == config.WorkerVariantOllamaHTTP {
		return runImplementNonAgentic(ctx, d, task, plan, runID, prompt)
	}
	return runImplementAgentic(ctx, d, task, plan, runID, prompt)
}

func runImplementAgentic(ctx context.Context, d Deps, task taskstate.Task, plan *interpret.ImplementationPlan, runID, prompt string) taskstate.Event {
	res, changedFiles, introduced, err := dispatchWorker(ctx, d, task, runID, prompt)
	if progress, ok := readAgenticProgress(filepath.Join(d.runsDir(), runID, "progress.json"), runID); ok && len(progress.HumanBlockingIssues) > 0 {
		return taskstate.ProgressHumanBlockers{RunID: runID, Issues: progress.HumanBlockingIssues, NextSteps: progress.HumanNextSteps}
	}
	if failed, isFailure := workerFailure(task.Step, runID, res, err, changedFiles, introduced); isFailure {
		return failed
	}

	if len(introduced) == 0 {
		return taskstate.NoIntroducedChanges{RunID: runID, Step: task.Step, RepoDirty: len(changedFiles) > 0, ChangedFiles: changedFiles}
	}

	if plan != nil {
		allowed := verify.BuildAllowedFiles(plan.FilesToChange, plan.NewFiles)
		if disallowed := verify.DisallowedPaths(d.ProjectDir, introduced, allowed); len(disallowed) > 0 {
			return taskstate.AllowlistViolation{RunID: runID, Step: task.Step, DisallowedPaths: disallowed, ChangedFiles: changedFiles, IntroducedChanges: introduced}
		}
	}

	return taskstate.WorkerSucceeded{Step: task.Step, RunID: runID, ChangedFiles: changedFiles, IntroducedChanges: introduced}
}

func runImplementNonAgentic(ctx context.Context, d Deps, task taskstate.Task, plan *interpret.ImplementationPlan, runID, prompt string) taskstate.Event {
	runDir := filepath.Join(d.runsDir(), runID)
	res, err := dispatcher.Dispatch(ctx, dispatcher.Spec{
		Worker: d.Cfg.Worker, Prompt: prompt, ProjectDir: d.ProjectDir,
		RunDir: runDir, ProgressPath: filepath.Join(runDir, "progress.json"), RunID: runID,
	})
	if failed, isFailure := workerFailure(task.Step, runID, res, err, nil, nil); isFailure {
		return failed
	}

	patch, readErr := os.ReadFile(res.StdoutPath)
	if readErr != nil || len(patch) == 0 {
		return taskstate.NoIntroducedChanges{RunID: runID, Step: task.Step}
	}

	paths := interpret.ExtractPatchPaths(string(patch))
	if len(paths) == 0 {
		return taskstate.NoIntroducedChanges{RunID: runID, Step: task.Step}
	}

	if plan != nil {
		allowed := verify.BuildAllowedFiles(plan.FilesToChange, plan.NewFiles)
		if disallowed := verify.DisallowedPaths(d.ProjectDir, paths, allowed); len(disallowed) > 0 {
			return taskstate.AllowlistViolation{RunID: runID, Step: task.Step, DisallowedPaths: disallowed, IntroducedChanges: paths}
		}
	}

	pre, _ := snapshotDirty(d.ProjectDir)
	if ok, detail := gitcoord.ApplyPatch(d.GitCoord, d.ProjectDir, string(patch), runDir); !ok {
		return taskstate.WorkerFailed{Step: task.Step, RunID: runID, ErrorType: "patch_apply_failed", ErrorDetail: detail}
	}
	post, _ := snapshotDirty(d.ProjectDir)
	introduced := introducedSince(pre, post)

	if len(introduced) == 0 {
		return taskstate.NoIntroducedChanges{RunID: runID, Step: task.Step, RepoDirty: len(post) > 0, ChangedFiles: sortedKeys(post)}
	}

	return taskstate.WorkerSucceeded{Step: task.Step, RunID: runID, ChangedFiles: sortedKeys(post), IntroducedChanges: introduced}
}

func runVerify(ctx context.Context, d Deps, task taskstate.Task) taskstate.Event {
	runID := newRunID()
	plan, _ := loadPlan(task.ImplPlanPath)

	var allowed []string
	if plan != nil {
		allowed = verify.BuildAllowedFiles(plan.FilesToChange, plan.NewFiles)
	}

	runDir := filepath.Join(d.runsDir(), runID)
	req := verify.Request{
		ProjectDir:     d.ProjectDir,
		RunDir:         runDir,
		LogPath:        filepath.Join(runDir, "verify.log"),
		RunID:          runID,
		TestCommand:    task.TestCommand,
		AllowedFiles:   allowed,
		TimeoutSeconds: int(d.Cfg.Run.ParseTaskTimeout().Seconds()),
	}

	result, err := verify.Run(ctx, req)
	if err != nil {
		return taskstate.VerificationResult{RunID: runID, Passed: false, ErrorType: "verify_run_error", LogTail: err.Error()}
	}
	return result
}

func runReview(ctx context.Context, d Deps, task taskstate.Task) taskstate.Event {
	generate := func(genCtx context.Context, model, prompt string) (string, error) {
		cfg := d.Cfg
		cfg.Worker.Model = model
		runID := newRunID()
		runDir := filepath.Join(d.runsDir(), runID)
		res, err := dispatcher.Dispatch(genCtx, dispatcher.Spec{
			Worker: cfg.Worker, Prompt: prompt, ProjectDir: d.ProjectDir,
			RunDir: runDir, ProgressPath: filepath.Join(runDir, "progress.json"), RunID: runID,
		})
		if err != nil {
			return "", err
		}
		if res.TimedOut || res.NoHeartbeat || res.ExitCode != 0 {
			return "", fmt.Errorf("review generation failed: exit=%d timed_out=%v no_heartbeat=%v", res.ExitCode, res.TimedOut, res.NoHeartbeat)
		}
		raw, err := os.ReadFile(res.StdoutPath)
		return string(raw), err
	}

	pipeline := review.New(generate, review.Config{Primary: d.Cfg.Models.Primary, Secondary: d.Cfg.Models.Secondary, MaxCycles: 1})

	diff, _ := gitcoord.Diff(d.GitCoord, d.ProjectDir)
	contextData := map[string]string{"task": task.Title + "\n\n" + task.Description, "diff": diff}

	runID := newRunID()
	artifact, _, err := pipeline.Run(ctx, buildPrompt(task, nil, nil, ""), contextData)
	if err != nil {
		return taskstate.WorkerFailed{Step: task.Step, RunID: runID, ErrorType: "review_dispatch_error", ErrorDetail: err.Error()}
	}

	simple, parseErr := llm.ParseJSON[interpret.SimpleReviewArtifact](artifact)
	if parseErr != nil {
		return taskstate.ReviewResult{RunID: runID, Valid: false, ReviewIssue: parseErr.Error()}
	}
	if validErr := interpret.ValidateSimpleReview(simple); validErr != nil {
		return taskstate.ReviewResult{RunID: runID, Valid: false, ReviewIssue: validErr.Error()}
	}

	reviewPath := filepath.Join(d.StateDir, "reviews", task.PhaseID+".json")
	if data, err := json.MarshalIndent(simple, "", "  "); err == nil {
		if err := os.MkdirAll(filepath.Dir(reviewPath), 0755); err == nil {
			_ = os.WriteFile(reviewPath, data, 0644)
		}
	}

	var issues []taskstate.ReviewIssue
	blocking := false
	for _, issue := range simple.Issues {
		issues = append(issues, taskstate.ReviewIssue{Severity: string(issue.Severity), Summary: issue.Text})
		if issue.Severity.Blocking() {
			blocking = true
		}
	}

	return taskstate.ReviewResult{
		RunID: runID, Valid: true, BlockingSeveritiesPresent: blocking, Issues: issues, ReviewPath: reviewPath,
	}
}

func runCommit(_ context.Context, d Deps, task taskstate.Task) taskstate.Event {
	runID := newRunID()
	if !gitcoord.HasChanges(d.GitCoord, d.ProjectDir) {
		return taskstate.CommitResult{RunID: runID, RepoClean: true}
	}

	message := fmt.Sprintf("%s: %s", task.ID, task.Title)
	if err := gitcoord.Commit(d.GitCoord, d.ProjectDir, message); err != nil {
		return taskstate.CommitResult{RunID: runID, Error: err.Error()}
	}

	if !d.Cfg.Git.AutoPush {
		return taskstate.CommitResult{RunID: runID, Committed: true, Pushed: true}
	}

	branch := task.Branch
	if branch == "" {
		branch = "HEAD"
	}
	if err := gitcoord.Push(d.GitCoord, d.ProjectDir, d.Cfg.Git.RemoteName, branch); err != nil {
		return taskstate.CommitResult{RunID: runID, Committed: true, Error: err.Error()}
	}
	return taskstate.CommitResult{RunID: runID, Committed: true, Pushed: true}
}

func runResumePrompt(ctx context.Context, d Deps, task taskstate.Task) taskstate.Event {
	runID := newRunID()
	prompt := buildPrompt(task, nil, nil, "")

	res, _, _, err := dispatchWorker(ctx, d, task, runID, prompt)
	if failed, isFailure := workerFailure(task.Step, runID, res, err, nil, nil); isFailure {
		return taskstate.ResumePromptResult{RunID: runID, Succeeded: false, ErrorDetail: failed.ErrorDetail}
	}
	return taskstate.ResumePromptResult{RunID: runID, Succeeded: true}
}
