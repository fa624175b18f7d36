// Package interpret validates worker-produced artifacts against their
// step-specific schema before the orchestrator trusts them: an
// implementation plan, a review (full or simple mode), and a unified
// diff's changed-path set.
package interpret

import (
	"fmt"
	"strings"
)

// ImplementationPlan is the worker-produced contract for a phase. Its
// FilesToChange and NewFiles lists together form the allowlist for the
// subsequent implement step.
type ImplementationPlan struct {
	PhaseID           string   `json:"phase_id"`
	SpecSummary       []string `json:"spec_summary"`
	TechnicalApproach string   `json:"technical_approach,omitempty"`
	Steps             []string `json:"steps,omitempty"`
	FilesToChange     []string `json:"files_to_change"`
	NewFiles          []string `json:"new_files,omitempty"`
}

// docsOnlyKeywords are matched case-insensitively against a phase's
// name/description to exempt it from the non-empty files_to_change
// requirement.
var docsOnlyKeywords = []string{"docs", "documentation", "readme"}

// IsDocsOnlyPhase reports whether phaseNameOrDescription indicates a
// documentation-only phase, exempting it from ValidatePlan's
// non-empty-files requirement.
func IsDocsOnlyPhase(phaseNameOrDescription string) bool {
	lower := strings.ToLower(phaseNameOrDescription)
	for _, kw := range docsOnlyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ValidatePlan checks an implementation plan against its step-specific
// schema: phase id must match, spec summary must be non-empty, either
// technical approach text or a steps list must be present, and
// files_to_change must be non-empty unless the phase is docs-only. If
// expansionRequest is non-empty (a prior verification asked for more
// paths), every requested path must appear in the plan's allowlist.
func ValidatePlan(plan ImplementationPlan, expectedPhaseID string, docsOnly bool, expansionRequest []string) error {
	if plan.PhaseID != expectedPhaseID {
		return fmt.Errorf("plan phase id %q does not match expected %q", plan.PhaseID, expectedPhaseID)
	}
	if len(plan.SpecSummary) == 0 {
		return fmt.Errorf("plan spec_summary must be a non-empty list")
	}
	if strings.TrimSpace(plan.TechnicalApproach) == "" && len(plan.Steps) == 0 {
		return fmt.Errorf("plan must provide technical_approach text or a steps list")
	}
	if len(plan.FilesToChange) == 0 && !docsOnly {
		return fmt.Errorf("plan files_to_change must be non-empty for a non-docs-only phase")
	}

	if len(expansionRequest) > 0 {
		allowed := make(map[string]bool, len(plan.FilesToChange)+len(plan.NewFiles))
		for _, f := range plan.FilesToChange {
			allowed[f] = true
		}
		for _, f := range plan.NewFiles {
			allowed[f] = true
		}
		var missing []string
		for _, want := range expansionRequest {
			if !allowed[want] {
				missing = append(missing, want)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("plan does not cover requested expansion paths: %s", strings.Join(missing, ", "))
		}
	}

	return nil
}
