package interpret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePlanRequiresMatchingPhaseID(t *testing.T) {
	plan := ImplementationPlan{PhaseID: "phase-2", SpecSummary: []string{"x"}, TechnicalApproach: "do it", FilesToChange: []string{"a.go"}}
	err := ValidatePlan(plan, "phase-1", false, nil)
	require.Error(t, err)
}

func TestValidatePlanAllowsEmptyFilesForDocsOnly(t *testing.T) {
	plan := ImplementationPlan{PhaseID: "phase-1", SpecSummary: []string{"x"}, TechnicalApproach: "write docs"}
	err := ValidatePlan(plan, "phase-1", true, nil)
	require.NoError(t, err)
}

func TestValidatePlanRejectsEmptyFilesForNonDocsPhase(t *testing.T) {
	plan := ImplementationPlan{PhaseID: "phase-1", SpecSummary: []string{"x"}, TechnicalApproach: "do it"}
	err := ValidatePlan(plan, "phase-1", false, nil)
	require.Error(t, err)
}

func TestValidatePlanRequiresExpansionPathsCovered(t *testing.T) {
	plan := ImplementationPlan{
		PhaseID:       "phase-1",
		SpecSummary:   []string{"x"},
		Steps:         []string{"step"},
		FilesToChange: []string{"a.go"},
	}
	err := ValidatePlan(plan, "phase-1", false, []string{"b.go"})
	require.Error(t, err)

	plan.NewFiles = []string{"b.go"}
	require.NoError(t, ValidatePlan(plan, "phase-1", false, []string{"b.go"}))
}

func TestIsDocsOnlyPhase(t *testing.T) {
	assert.True(t, IsDocsOnlyPhase("Update README"))
	assert.True(t, IsDocsOnlyPhase("Documentation pass"))
	assert.False(t, IsDocsOnlyPhase("Implement the worker dispatcher"))
}

func TestValidateReviewRequiresEvidenceAndFiles(t *testing.T) {
	review := ReviewArtifact{
		PhaseID: "phase-1",
		Issues: []ReviewIssue{
			{Severity: SeverityHigh, Summary: "bug", Rationale: "because", SuggestedFix: "fix it"},
		},
	}
	err := ValidateReview(review, "phase-1", false)
	require.Error(t, err)

	review.Issues[0].Files = []string{"a.go"}
	review.Issues[0].Evidence = []string{"a.go:10"}
	require.NoError(t, ValidateReview(review, "phase-1", false))
}

func TestValidateReviewRequiresPRDFlagWhenUnavailable(t *testing.T) {
	review := ReviewArtifact{
		PhaseID: "phase-1",
		Issues: []ReviewIssue{
			{Severity: SeverityCritical, Summary: "missing context", Rationale: "PRD was unavailable this run", SuggestedFix: "rerun", Files: []string{"a.go"}, Evidence: []string{"a.go:1"}},
		},
	}
	require.NoError(t, ValidateReview(review, "phase-1", true))

	review.Issues[0].Rationale = "unrelated reason"
	require.Error(t, ValidateReview(review, "phase-1", true))
}

func TestValidateSimpleReview(t *testing.T) {
	ok := SimpleReviewArtifact{Mergeable: true, Issues: []SimpleReviewIssue{{Severity: SeverityLow, Text: "nit"}}}
	require.NoError(t, ValidateSimpleReview(ok))

	bad := SimpleReviewArtifact{Issues: []SimpleReviewIssue{{Severity: "bogus", Text: "x"}}}
	require.Error(t, ValidateSimpleReview(bad))
}

func TestHasBlockingIssues(t *testing.T) {
	assert.True(t, HasBlockingIssues([]ReviewIssue{{Severity: SeverityCritical}}))
	assert.False(t, HasBlockingIssues([]ReviewIssue{{Severity: SeverityLow}, {Severity: SeverityMedium}}))
}

func TestExtractPatchPaths(t *testing.T) {
	patch := `diff --git a/src/foo.go b/src/foo.go
index 1111111..2222222 100644
--- a/src/foo.go
+++ b/src/foo.go
@@ -1 +1,2 @@
 package foo
+// added
diff --git a/new/bar.go b/new/bar.go
new file mode 100644
--- /dev/null
+++ b/new/bar.go
@@ -0,0 +1 @@
+package bar
`
	paths := ExtractPatchPaths(patch)
	assert.ElementsMatch(t, []string{"src/foo.go", "new/bar.go"}, paths)
}
