// Package review adapts the multi-model generate -> critique -> refine
// algorithm into the task pipeline's review step: the primary model
// proposes a review verdict, the secondary model critiques it, and the
// primary model reconciles the two into the artifact the FSM consumes.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// GenerateFunc dispatches a single prompt to a named model and returns
// its raw text response. The orchestrator wires this to the worker
// dispatcher, substituting model into the resolved worker config.
type GenerateFunc func(ctx context.Context, model, prompt string) (string, error)

// Config selects the models and cycle count for a Pipeline.
type Config struct {
	Primary   string
	Secondary string
	MaxCycles int // default 1, max 2
}

// Pipeline runs the generate/critique/refine cycle.
type Pipeline struct {
	generate  GenerateFunc
	primary   string
	secondary string
	maxCycles int
}

// New returns a Pipeline that dispatches through generate.
func New(generate GenerateFunc, cfg Config) *Pipeline {
	maxCycles := cfg.MaxCycles
	if maxCycles <= 0 {
		maxCycles = 1
	}
	if maxCycles > 2 {
		maxCycles = 2
	}
	return &Pipeline{
		generate:  generate,
		primary:   cfg.Primary,
		secondary: cfg.Secondary,
		maxCycles: maxCycles,
	}
}

// Stats captures metrics from a Review run.
type Stats struct {
	// SecondaryCritiqueItems is the number of distinct findings the
	// secondary model raised.
	SecondaryCritiqueItems int
	// RefinementChangePct is the percentage of lines changed between the
	// pre-review and post-review artifact.
	RefinementChangePct float64
}

// noToolsInstruction asks the worker to return the artifact as plain
// response text rather than editing files — the pipeline only trusts
// what comes back in the response.
const noToolsInstruction = "\n\nReturn ALL output directly in your response text. Do not write, create, or modify any files — your response text IS the deliverable."

// Run executes the review pipeline: primary generates (or refines on
// cycle > 0), secondary critiques, primary reconciles. Returns the
// final artifact text plus aggregate stats.
func (p *Pipeline) Run(ctx context.Context, prompt string, contextData map[string]string) (string, Stats, error) {
	var artifact string
	var stats Stats

	for cycle := 0; cycle < p.maxCycles; cycle++ {
		slog.Info("review pipeline cycle", "cycle", cycle+1, "max_cycles", p.maxCycles)

		currentPrompt := withContext(prompt, contextData)
		if cycle > 0 && artifact != "" {
			currentPrompt = fmt.Sprintf(
				"Here is the current version of the artifact:\n\n%s\n\nRefine and improve it based on any issues you identify.\n\nOriginal instructions:\n%s",
				artifact, currentPrompt,
			)
		}

		generated, err := p.generate(ctx, p.primary, currentPrompt+noToolsInstruction)
		if err != nil {
			return "", stats, fmt.Errorf("primary generation (cycle %d): %w", cycle+1, err)
		}
		artifact = generated
		preReviewArtifact := artifact

		critiquePrompt := critiquePrompt(artifact, contextData)
		critique, err := p.generate(ctx, p.secondary, critiquePrompt+noToolsInstruction)
		if err != nil {
			slog.Warn("secondary critique failed, continuing with primary output", "error", err)
			continue
		}
		stats.SecondaryCritiqueItems += countCritiqueItems(critique)

		refined, err := p.generate(ctx, p.primary, refinePrompt(artifact, critique, contextData))
		if err != nil {
			return "", stats, fmt.Errorf("primary refinement (cycle %d): %w", cycle+1, err)
		}
		artifact = refined
		stats.RefinementChangePct = lineDiffRatio(preReviewArtifact, artifact)
	}

	return artifact, stats, nil
}

func withContext(prompt string, contextData map[string]string) string {
	if len(contextData) == 0 {
		return prompt
	}
	var sb strings.Builder
	sb.WriteString(prompt)
	for k, v := range contextData {
		fmt.Fprintf(&sb, "\n\n## %s\n\n%s", k, v)
	}
	return sb.String()
}

func critiquePrompt(artifact string, contextData map[string]string) string {
	base := fmt.Sprintf(
		"Critically review the following artifact. Identify gaps, errors, inconsistencies, missing considerations, and areas for improvement. Be specific and actionable.\n\n---\n\n%s",
		artifact,
	)
	return withContext(base, contextData)
}

func refinePrompt(artifact, critique string, contextData map[string]string) string {
	base := fmt.Sprintf(
		"Here is an artifact that has been critically reviewed. Incorporate all valid feedback and produce the final, improved version.\n\n## Original Artifact\n\n%s\n\n## Review Feedback\n\n%s",
		artifact, critique,
	)
	if len(contextData) == 0 {
		return base
	}
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\n## Upstream Context\n\nUse this context to validate the review feedback — reject suggestions that contradict requirements or established constraints.\n")
	for k, v := range contextData {
		fmt.Fprintf(&sb, "\n### %s\n\n%s\n", k, v)
	}
	return sb.String()
}

// countCritiqueItems estimates the number of distinct findings in a
// critique by counting structural markers LLMs commonly use to
// enumerate issues: bullets, numbered items, and ### headings.
func countCritiqueItems(critique string) int {
	count := 0
	for _, line := range strings.Split(critique, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "### "):
			count++
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			count++
		case len(trimmed) >= 3 && trimmed[0] >= '0' && trimmed[0] <= '9' && strings.Contains(trimmed[:3], "."):
			count++
		}
	}
	return count
}

// lineDiffRatio computes the percentage of lines that differ between
// two texts by position.
func lineDiffRatio(before, after string) float64 {
	bLines := strings.Split(before, "\n")
	aLines := strings.Split(after, "\n")

	maxLen := len(bLines)
	if len(aLines) > maxLen {
		maxLen = len(aLines)
	}
	if maxLen == 0 {
		return 0
	}

	minLen := len(bLines)
	if len(aLines) < minLen {
		minLen = len(aLines)
	}
	matched := 0
	for i := 0; i < minLen; i++ {
		if bLines[i] == aLines[i] {
			matched++
		}
	}

	changed := maxLen - matched
	pct := float64(changed) / float64(maxLen) * 100
	return math.Round(pct*10) / 10
}
