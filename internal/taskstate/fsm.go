package taskstate

// ErrorTypeBlockingIssues is recorded when a worker explicitly asked for
// human help rather than failing outright.
const ErrorTypeBlockingIssues = "blocking_issues_reported"

func setReady(t *Task) {
	t.Lifecycle = LifecycleReady
}

func setWaiting(t *Task, reason, errorType, errorDetail string) {
	if t.BlockedIntent == nil {
		t.BlockedIntent = &BlockedIntent{Step: t.Step, PromptMode: t.PromptMode}
	}
	t.Lifecycle = LifecycleWaitingHuman
	t.BlockReason = reason
	t.LastErrorType = errorType
	t.LastError = errorDetail
	t.PromptMode = ""
}

func clearBlocking(t *Task) {
	t.BlockReason = ""
	t.HumanBlockingIssues = nil
	t.HumanNextSteps = nil
}

func setStep(t *Task, step Step, mode PromptMode) {
	t.Step = step
	t.PromptMode = mode
}

func recordRunID(t *Task, runID string) {
	t.LastRunID = runID
}

// Reduce is the pure FSM step: given a task and an observed event, it
// returns the task's next state. It never performs I/O and never
// mutates its argument's backing slices beyond what the caller passed
// in by value.
func Reduce(task Task, event Event, caps Caps) Task {
	t := task

	switch e := event.(type) {

	case ProgressHumanBlockers:
		recordRunID(&t, e.RunID)
		t.HumanBlockingIssues = append([]string(nil), e.Issues...)
		t.HumanNextSteps = append([]string(nil), e.NextSteps...)
		summary := joinNonEmpty(e.Issues, "; ")
		if summary == "" {
			summary = "Human intervention required"
		}
		setWaiting(&t, "HUMAN_REQUIRED", ErrorTypeBlockingIssues, summary)
		return t

	case AllowlistViolation:
		recordRunID(&t, e.RunID)
		t.LastChangedFiles = append([]string(nil), e.ChangedFiles...)
		t.PlanExpansionRequest = append([]string(nil), e.DisallowedPaths...)
		t.AllowlistExpansionAttempts++
		t.LastErrorType = "allowlist_violation"
		t.LastError = "Changes outside allowed files"
		if t.AllowlistExpansionAttempts >= caps.AllowlistExpansionAttempts {
			setWaiting(&t, "ALLOWLIST_EXPANSION_EXHAUSTED", "allowlist_violation", t.LastError)
			return t
		}
		clearBlocking(&t)
		setStep(&t, StepPlanImpl, PromptModeExpandAllowlist)
		setReady(&t)
		return t

	case WorkerFailed:
		recordRunID(&t, e.RunID)
		t.LastChangedFiles = append([]string(nil), e.ChangedFiles...)
		t.LastErrorType = e.ErrorType
		t.LastError = e.ErrorDetail
		if e.Step == StepReview {
			t.ReviewGenAttempts++
			if t.ReviewGenAttempts >= caps.ReviewGenAttempts {
				setWaiting(&t, "REVIEW_INVALID", e.ErrorType, e.ErrorDetail)
				return t
			}
			setStep(&t, StepReview, t.PromptMode)
		} else {
			t.WorkerAttempts++
			if t.WorkerAttempts >= caps.WorkerAttempts {
				setWaiting(&t, "WORKER_FAILED", e.ErrorType, e.ErrorDetail)
				return t
			}
			setStep(&t, e.Step, t.PromptMode)
		}
		clearBlocking(&t)
		setReady(&t)
		return t

	case WorkerSucceeded:
		recordRunID(&t, e.RunID)
		t.LastChangedFiles = append([]string(nil), e.ChangedFiles...)
		t.WorkerAttempts = 0

		switch e.Step {
		case StepPlanImpl:
			if e.PlanValid != nil && *e.PlanValid {
				t.PlanAttempts = 0
				t.AllowlistExpansionAttempts = 0
				t.PlanExpansionRequest = nil
				t.ImplPlanPath = e.ImplPlanPath
				t.ImplPlanHash = e.ImplPlanHash
				t.LastError = ""
				t.LastErrorType = ""
				clearBlocking(&t)
				setStep(&t, StepImplement, PromptModeImplement)
				setReady(&t)
				return t
			}

			t.PlanAttempts++
			issue := e.PlanIssue
			if issue == "" {
				issue = "Implementation plan invalid"
			}
			t.LastError = issue
			t.LastErrorType = "plan_invalid"
			if t.PlanAttempts >= caps.PlanAttempts {
				setWaiting(&t, "PLAN_INVALID", "plan_invalid", issue)
				return t
			}
			mode := PromptMode("")
			if len(t.PlanExpansionRequest) > 0 {
				mode = PromptModeExpandAllowlist
			}
			setStep(&t, StepPlanImpl, mode)
			clearBlocking(&t)
			setReady(&t)
			return t

		case StepImplement:
			if len(e.IntroducedChanges) > 0 {
				t.NoProgressAttempts = 0
				t.LastError = ""
				t.LastErrorType = ""
				clearBlocking(&t)
				setStep(&t, StepVerify, "")
				setReady(&t)
				return t
			}
		}

		setStep(&t, e.Step, t.PromptMode)
		setReady(&t)
		return t

	case NoIntroducedChanges:
		recordRunID(&t, e.RunID)
		t.LastChangedFiles = append([]string(nil), e.ChangedFiles...)
		if e.RepoDirty {
			t.NoProgressAttempts = 0
			t.LastError = ""
			t.LastErrorType = ""
			clearBlocking(&t)
			setStep(&t, StepVerify, "")
			setReady(&t)
			return t
		}

		t.NoProgressAttempts++
		t.LastError = "No changes detected"
		t.LastErrorType = "no_progress"
		if t.NoProgressAttempts >= caps.NoProgressAttempts {
			setWaiting(&t, "NO_PROGRESS", "no_progress", t.LastError)
			return t
		}
		setStep(&t, StepImplement, PromptModeImplement)
		clearBlocking(&t)
		setReady(&t)
		return t

	case VerificationResult:
		recordRunID(&t, e.RunID)
		t.LastVerification = &Verification{
			Command:    e.Command,
			ExitCode:   e.ExitCode,
			LogPath:    e.LogPath,
			LogTail:    e.LogTail,
			CapturedAt: e.CapturedAt,
		}
		if e.Passed {
			t.TestFailAttempts = 0
			t.LastError = ""
			t.LastErrorType = ""
			clearBlocking(&t)
			setStep(&t, StepReview, "")
			setReady(&t)
			return t
		}

		t.LastErrorType = e.ErrorType
		if t.LastErrorType == "" {
			t.LastErrorType = "tests_failed"
		}
		t.LastError = "Verification failed"

		if e.NeedsAllowlistExpansion {
			t.PlanExpansionRequest = append([]string(nil), e.FailingPaths...)
			t.AllowlistExpansionAttempts++
			if t.AllowlistExpansionAttempts >= caps.AllowlistExpansionAttempts {
				setWaiting(&t, "ALLOWLIST_EXPANSION_EXHAUSTED", t.LastErrorType, t.LastError)
				return t
			}
			clearBlocking(&t)
			setStep(&t, StepPlanImpl, PromptModeExpandAllowlist)
			setReady(&t)
			return t
		}

		t.TestFailAttempts++
		if t.TestFailAttempts >= caps.TestFailAttempts {
			setWaiting(&t, "TESTS_STUCK", t.LastErrorType, t.LastError)
			return t
		}
		clearBlocking(&t)
		setStep(&t, StepImplement, PromptModeFixTests)
		setReady(&t)
		return t

	case ReviewResult:
		recordRunID(&t, e.RunID)
		if e.ReviewPath != "" {
			t.LastReviewPath = e.ReviewPath
		}
		if !e.Valid {
			t.ReviewGenAttempts++
			t.LastError = e.ReviewIssue
			if t.LastError == "" {
				t.LastError = "Review output invalid"
			}
			t.LastErrorType = "review_invalid"
			if t.ReviewGenAttempts >= caps.ReviewGenAttempts {
				setWaiting(&t, "REVIEW_INVALID", t.LastErrorType, t.LastError)
				return t
			}
			clearBlocking(&t)
			setStep(&t, StepReview, "")
			setReady(&t)
			return t
		}

		if e.BlockingSeveritiesPresent {
			t.ReviewFixAttempts++
			t.LastError = "Review blockers found"
			t.LastErrorType = "review_blockers"
			blockers := make([]string, 0, len(e.Issues))
			for _, issue := range e.Issues {
				text := issue.Summary
				blockers = append(blockers, upper(issue.Severity)+": "+text)
			}
			t.ReviewBlockers = blockers
			t.ReviewBlockerFiles = append([]string(nil), e.Files...)
			if t.ReviewFixAttempts >= caps.ReviewFixAttempts {
				setWaiting(&t, "REVIEW_STUCK", t.LastErrorType, t.LastError)
				return t
			}
			clearBlocking(&t)
			setStep(&t, StepImplement, PromptModeAddressReview)
			setReady(&t)
			return t
		}

		t.ReviewFixAttempts = 0
		t.ReviewBlockers = nil
		t.ReviewBlockerFiles = nil
		t.LastError = ""
		t.LastErrorType = ""
		clearBlocking(&t)
		setStep(&t, StepCommit, "")
		setReady(&t)
		return t

	case CommitResult:
		recordRunID(&t, e.RunID)
		if e.RepoClean || e.Pushed {
			t.Lifecycle = LifecycleDone
			t.LastError = ""
			t.LastErrorType = ""
			t.BlockReason = ""
			t.PromptMode = ""
			return t
		}
		errMsg := e.Error
		if errMsg == "" {
			errMsg = "Commit or push failed"
		}
		setWaiting(&t, "GIT_PUSH_FAILED", "git_push_failed", errMsg)
		return t

	case ResumePromptResult:
		recordRunID(&t, e.RunID)
		if e.Succeeded {
			t.LastError = ""
			t.LastErrorType = ""
			if t.BlockedIntent != nil {
				setStep(&t, t.BlockedIntent.Step, t.BlockedIntent.PromptMode)
			}
			t.BlockedIntent = nil
			t.BlockedAt = ""
			clearBlocking(&t)
			setReady(&t)
			return t
		}
		errMsg := e.ErrorDetail
		if errMsg == "" {
			errMsg = "Resume prompt failed"
		}
		setWaiting(&t, "RESUME_PROMPT_FAILED", "resume_prompt_failed", errMsg)
		return t
	}

	return t
}

func joinNonEmpty(parts []string, sep string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		out += p
	}
	return out
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
