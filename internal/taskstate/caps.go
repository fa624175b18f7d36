package taskstate

// Caps bounds how many times each independent attempt dimension may be
// retried before a task flips to waiting_human. Each counter is reset
// only by its own dimension's success, never by unrelated progress.
type Caps struct {
	WorkerAttempts             int
	PlanAttempts               int
	NoProgressAttempts         int
	TestFailAttempts           int
	ReviewGenAttempts          int
	ReviewFixAttempts          int
	AllowlistExpansionAttempts int
}

// DefaultCaps are the retry ceilings used when a repo's config doesn't
// override them.
func DefaultCaps() Caps {
	return Caps{
		WorkerAttempts:             5,
		PlanAttempts:               3,
		NoProgressAttempts:         3,
		TestFailAttempts:           3,
		ReviewGenAttempts:          3,
		ReviewFixAttempts:          3,
		AllowlistExpansionAttempts: 3,
	}
}
