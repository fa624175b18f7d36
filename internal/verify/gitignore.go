package verify

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// allowedGitignoreAdditions is the open-question decision recorded in
// DESIGN.md: a worker may add exactly these patterns to .gitignore
// without tripping the allowlist, and may only ever add, never remove,
// existing lines.
var allowedGitignoreAdditions = []string{".taskrunner/", "*.lock"}

// IsOnlyAllowedGitignoreAddition reports whether the working tree's
// .gitignore differs from HEAD's only by appending one of
// allowedGitignoreAdditions.
func IsOnlyAllowedGitignoreAddition(projectDir string) bool {
	head, err := gitShow(projectDir, "HEAD:.gitignore")
	if err != nil {
		head = ""
	}
	current, err := readFile(projectDir, ".gitignore")
	if err != nil {
		return false
	}

	headLines := lineSet(head)
	currentLines := splitLines(current)

	for _, line := range currentLines {
		if headLines[line] {
			continue
		}
		if line == "" {
			continue
		}
		if !containsString(allowedGitignoreAdditions, line) {
			return false
		}
	}

	// Every line present in HEAD must still be present (additive only).
	for line := range headLines {
		if line == "" {
			continue
		}
		found := false
		for _, c := range currentLines {
			if c == line {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func gitShow(dir, ref string) (string, error) {
	cmd := exec.Command("git", "show", ref)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func readFile(dir, relPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, relPath))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func lineSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, l := range splitLines(text) {
		set[l] = true
	}
	return set
}

func splitLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		out = append(out, strings.TrimRight(l, "\r"))
	}
	return out
}
