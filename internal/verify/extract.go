package verify

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var pathTokenRE = regexp.MustCompile(`[A-Za-z0-9_./\\-]+\.[A-Za-z0-9_]+`)

// failedLineRE matches pytest's stable "FAILED path::test" markers.
var failedLineRE = regexp.MustCompile(`^FAILED\s+([^\s:]+\.py)(?:::|\s|$)`)

// tracebackFileRE matches a Python traceback's `File "path", line N` frames.
var tracebackFileRE = regexp.MustCompile(`File "([^"]+\.py)", line \d+`)

// importRE matches simple "from pkg.mod import x" / "import pkg.mod"
// statements in a failing test file, used only to infer the source
// module under test when no traceback names one directly.
var importRE = regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import|^\s*import\s+([\w.]+)`)

// ExtractFailedTestFiles scans pytest output for "FAILED path::test"
// markers and returns the repo-relative test file paths, filtered to
// files that actually exist under projectDir.
func ExtractFailedTestFiles(logText, projectDir string) []string {
	seen := map[string]bool{}
	var out []string
	for _, line := range strings.Split(logText, "\n") {
		m := failedLineRE.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		p := strings.TrimPrefix(strings.TrimSpace(m[1]), "./")
		if seen[p] {
			continue
		}
		if !fileExists(projectDir, p) {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// ExtractTracebackRepoPaths scans a log for `File "path", line N` frames
// and returns the repo-relative paths that resolve under projectDir.
func ExtractTracebackRepoPaths(logText, projectDir string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range tracebackFileRE.FindAllStringSubmatch(logText, -1) {
		p := normalizeRepoPath(m[1], projectDir)
		if p == "" || seen[p] {
			continue
		}
		if !fileExists(projectDir, p) {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// InferSuspectSourceFiles reads each failed test file's import
// statements and guesses which source module(s) under the source root
// they exercise, used only when no traceback names a source file
// directly (open question #2, see DESIGN.md: limited to a single source
// root). The root is always "src/"; it is not read from configuration.
func InferSuspectSourceFiles(failedTestFiles []string, projectDir string) []string {
	seen := map[string]bool{}
	var out []string
	for _, testFile := range failedTestFiles {
		data, err := os.ReadFile(filepath.Join(projectDir, testFile))
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			m := importRE.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			module := m[1]
			if module == "" {
				module = m[2]
			}
			candidate := "src/" + strings.ReplaceAll(module, ".", "/") + ".py"
			if seen[candidate] {
				continue
			}
			if !fileExists(projectDir, candidate) {
				continue
			}
			seen[candidate] = true
			out = append(out, candidate)
		}
	}
	return out
}

// extractPathsFromLog pulls plausible file-path tokens out of free-form
// log text (used for non-pytest commands), resolving absolute paths
// relative to projectDir and keeping only tokens that exist on disk.
func extractPathsFromLog(logText, projectDir string) []string {
	if logText == "" {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, token := range pathTokenRE.FindAllString(logText, -1) {
		cleaned := strings.Trim(token, "\"'<>[](){};,:")
		if idx := strings.Index(cleaned, "::"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.ReplaceAll(cleaned, "\\", "/")
		if cleaned == "" {
			continue
		}
		p := normalizeRepoPath(cleaned, projectDir)
		if p == "" || seen[p] {
			continue
		}
		if !fileExists(projectDir, p) {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func filterRepoFilePaths(paths []string, projectDir string) []string {
	seen := map[string]bool{}
	var out []string
	for _, raw := range paths {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		p := normalizeRepoPath(s, projectDir)
		if p == "" || seen[p] {
			continue
		}
		if !fileExists(projectDir, p) {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func normalizeRepoPath(raw, projectDir string) string {
	raw = strings.TrimPrefix(raw, "./")
	if filepath.IsAbs(raw) {
		abs, err := filepath.Abs(projectDir)
		if err != nil {
			return ""
		}
		rel, err := filepath.Rel(abs, raw)
		if err != nil || strings.HasPrefix(rel, "..") {
			return ""
		}
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(raw)
}

func fileExists(projectDir, relPath string) bool {
	_, err := os.Stat(filepath.Join(projectDir, relPath))
	return err == nil
}
