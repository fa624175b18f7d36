package orchestrator

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/corerun/taskrunner/internal/scheduler"
	"github.com/corerun/taskrunner/internal/taskstate"
)

// printPhaseHeader prints a styled header for the batch about to run.
func printPhaseHeader(batchNum int, batch []taskstate.Task) {
	style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

	pending := 0
	for _, t := range batch {
		if t.Lifecycle != taskstate.LifecycleDone {
			pending++
		}
	}

	header := fmt.Sprintf("▶ Batch %d — %d task(s), %d pending", batchNum, len(batch), pending)
	fmt.Fprintf(os.Stderr, "\n%s\n", style.Render(header))
}

// printPhaseResults prints one line per tick result.
func printPhaseResults(batchNum int, results []scheduler.TaskResult) {
	successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	waitStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	for _, r := range results {
		switch {
		case r.Err != nil:
			msg := fmt.Sprintf("  ✗ %s — %s (%s)", r.Task.ID, r.Task.Title, r.Err)
			fmt.Fprintln(os.Stderr, failStyle.Render(msg))
		case r.Task.Lifecycle == taskstate.LifecycleWaitingHuman:
			msg := fmt.Sprintf("  ⚠ %s — %s (%s)", r.Task.ID, r.Task.Title, r.Task.BlockReason)
			fmt.Fprintln(os.Stderr, waitStyle.Render(msg))
		case r.Task.Lifecycle == taskstate.LifecycleDone:
			msg := fmt.Sprintf("  ✓ %s — %s", r.Task.ID, r.Task.Title)
			fmt.Fprintln(os.Stderr, successStyle.Render(msg))
		default:
			fmt.Fprintf(os.Stderr, "  • %s — %s (%s)\n", r.Task.ID, r.Task.Title, r.Task.Step)
		}
	}
}

// printOverallProgress prints the overall completion summary after a
// batch drains.
func printOverallProgress(completedBatches, totalBatches int, tasks []taskstate.Task) {
	style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))

	var done, blocked, inFlight int
	for _, t := range tasks {
		switch t.Lifecycle {
		case taskstate.LifecycleDone:
			done++
		case taskstate.LifecycleWaitingHuman:
			blocked++
		default:
			inFlight++
		}
	}

	total := len(tasks)
	pct := 0
	if total > 0 {
		pct = done * 100 / total
	}

	progress := fmt.Sprintf(
		"Progress: batch %d/%d | %d/%d tasks done (%d%%) | %d in flight, %d waiting on a human",
		completedBatches, totalBatches, done, total, pct, inFlight, blocked,
	)
	fmt.Fprintf(os.Stderr, "\n%s\n", style.Render(progress))
}
