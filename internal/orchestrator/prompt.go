package orchestrator

import (
	"fmt"
	"strings"

	"github.com/corerun/taskrunner/internal/interpret"
	"github.com/corerun/taskrunner/internal/taskstate"
)

// buildPrompt assembles the worker prompt for task's current step. The
// actual prompt-text templating system is a separate external concern;
// this builds the minimal context a worker needs to act, the way
// loop.go's callers expect it framed.
func buildPrompt(task taskstate.Task, plan *interpret.ImplementationPlan, reviewBlockers []string, failingLog string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task %s: %s\n\n%s\n", task.ID, task.Title, task.Description)
	if len(task.AcceptanceCriteria) > 0 {
		sb.WriteString("\nAcceptance criteria:\n")
		for _, c := range task.AcceptanceCriteria {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}

	switch task.Step {
	case taskstate.StepPlanImpl:
		sb.WriteString("\nProduce an implementation plan as JSON matching: {phase_id, spec_summary, technical_approach, steps, files_to_change, new_files}.\n")
		if task.PromptMode == taskstate.PromptModeExpandAllowlist && len(task.PlanExpansionRequest) > 0 {
			fmt.Fprintf(&sb, "\nThe previous attempt touched files outside its allowlist; your plan's files_to_change/new_files must cover: %s\n", strings.Join(task.PlanExpansionRequest, ", "))
		}

	case taskstate.StepImplement:
		if plan != nil {
			sb.WriteString("\nImplement the following plan, returning your changes as a unified diff:\n")
			if plan.TechnicalApproach != "" {
				fmt.Fprintf(&sb, "\nApproach: %s\n", plan.TechnicalApproach)
			}
			for _, s := range plan.Steps {
				fmt.Fprintf(&sb, "- %s\n", s)
			}
			fmt.Fprintf(&sb, "\nYou may only change: %s\n", strings.Join(append(append([]string{}, plan.FilesToChange...), plan.NewFiles...), ", "))
		}
		switch task.PromptMode {
		case taskstate.PromptModeFixTests:
			fmt.Fprintf(&sb, "\nThe test suite is failing. Fix it. Relevant log excerpt:\n%s\n", failingLog)
		case taskstate.PromptModeAddressReview:
			sb.WriteString("\nAddress the following review blockers:\n")
			for _, b := range reviewBlockers {
				fmt.Fprintf(&sb, "- %s\n", b)
			}
		}

	case taskstate.StepReview:
		sb.WriteString("\nReview the task's diff for correctness, completeness against acceptance criteria, and safety. Return JSON matching: {mergeable, issues: [{severity, text}]}.\n")

	case taskstate.StepResumePrompt:
		sb.WriteString("\nA human has supplied the following guidance to unblock this task:\n")
		for _, s := range task.HumanNextSteps {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
	}

	return sb.String()
}
