package interpret

import (
	"fmt"
	"strings"
)

// Severity is a review issue's severity. Only critical/high severities
// block a phase's commit step.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

func (s Severity) valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Blocking reports whether this severity alone should block a commit.
func (s Severity) Blocking() bool {
	return s == SeverityCritical || s == SeverityHigh
}

// ReviewIssue is a single finding in a full-mode review.
type ReviewIssue struct {
	Severity     Severity `json:"severity"`
	Summary      string   `json:"summary"`
	Rationale    string   `json:"rationale"`
	Files        []string `json:"files"`
	SuggestedFix string   `json:"suggested_fix"`
	Evidence     []string `json:"evidence,omitempty"`
}

// ReviewArtifact is the full-mode review output.
type ReviewArtifact struct {
	PhaseID   string        `json:"phase_id"`
	Mergeable bool          `json:"mergeable"`
	Issues    []ReviewIssue `json:"issues"`
}

const minEvidenceItems = 1

// ValidateReview checks a full-mode review artifact: phase id matches,
// every issue has a valid severity and non-empty summary/rationale/
// files/suggested-fix, each has at least one evidence item, and — if
// PRD content was unavailable this run — a critical/high issue must
// explicitly flag that. Evidence items are only counted; their content
// is not checked for a file reference.
func ValidateReview(review ReviewArtifact, expectedPhaseID string, prdUnavailable bool) error {
	if review.PhaseID != expectedPhaseID {
		return fmt.Errorf("review phase id %q does not match expected %q", review.PhaseID, expectedPhaseID)
	}

	flaggedMissingPRD := false
	for i, issue := range review.Issues {
		if !issue.Severity.valid() {
			return fmt.Errorf("review issue %d has invalid severity %q", i, issue.Severity)
		}
		if issue.Summary == "" || issue.Rationale == "" || issue.SuggestedFix == "" {
			return fmt.Errorf("review issue %d missing required summary/rationale/suggested_fix", i)
		}
		if len(issue.Files) == 0 {
			return fmt.Errorf("review issue %d must reference at least one file", i)
		}
		if len(issue.Evidence) < minEvidenceItems {
			return fmt.Errorf("review issue %d must include at least %d evidence item(s)", i, minEvidenceItems)
		}
		if issue.Severity.Blocking() && strings.Contains(strings.ToLower(issue.Summary+" "+issue.Rationale), "prd") {
			flaggedMissingPRD = true
		}
	}

	if prdUnavailable && !flaggedMissingPRD {
		return fmt.Errorf("PRD content was unavailable this run but no critical/high issue flags it")
	}

	return nil
}

// SimpleReviewIssue is the terse finding shape used by simple-mode review.
type SimpleReviewIssue struct {
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

// SimpleReviewArtifact is the simple-mode review output: only a
// mergeable flag and a list of terse issues.
type SimpleReviewArtifact struct {
	Mergeable bool                `json:"mergeable"`
	Issues    []SimpleReviewIssue `json:"issues"`
}

// ValidateSimpleReview checks a simple-mode review artifact.
func ValidateSimpleReview(review SimpleReviewArtifact) error {
	for i, issue := range review.Issues {
		if !issue.Severity.valid() {
			return fmt.Errorf("review issue %d has invalid severity %q", i, issue.Severity)
		}
		if issue.Text == "" {
			return fmt.Errorf("review issue %d has empty text", i)
		}
	}
	return nil
}

// HasBlockingIssues reports whether any issue's severity blocks commit.
func HasBlockingIssues(issues []ReviewIssue) bool {
	for _, issue := range issues {
		if issue.Severity.Blocking() {
			return true
		}
	}
	return false
}
