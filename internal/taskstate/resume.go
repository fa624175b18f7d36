package taskstate

// Block moves a ready/running task into waiting_human, snapshotting its
// current (step, prompt mode) as BlockedIntent so a later resume can
// restore exactly where it left off.
func Block(task Task, reason, errorType, errorDetail, blockedAt string) Task {
	t := task
	t.BlockedIntent = &BlockedIntent{Step: t.Step, PromptMode: t.PromptMode}
	t.BlockedAt = blockedAt
	setWaiting(&t, reason, errorType, errorDetail)
	return t
}

// ResumeFromIntent restores a blocked task's step and prompt mode from
// its snapshot and marks it ready to run again. manual distinguishes an
// operator-issued resume from an automatic retry, each tallied in its
// own counter; the counters are only incremented, and no cap is checked
// against them.
func ResumeFromIntent(task Task, manual bool) Task {
	t := task
	if t.BlockedIntent != nil {
		setStep(&t, t.BlockedIntent.Step, t.BlockedIntent.PromptMode)
	}
	t.BlockedIntent = nil
	t.BlockedAt = ""
	if manual {
		t.ManualResumeAttempts++
	} else {
		t.AutoResumeAttempts++
	}
	clearBlocking(&t)
	setReady(&t)
	return t
}
