package verify

import (
	"os"
	"path/filepath"
	"strings"
)

// BuildAllowedFiles unions a plan's files_to_change and new_files, and
// always includes README.md — matching the original build_allowed_files.
func BuildAllowedFiles(filesToChange, newFiles []string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(list []string) {
		for _, item := range list {
			p := strings.TrimSpace(item)
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	add(filesToChange)
	add(newFiles)
	if !seen["README.md"] {
		out = append(out, "README.md")
	}
	return out
}

// PathIsAllowed reports whether path matches one of allowedPatterns:
// glob patterns (containing *?[), directory prefixes, or exact file
// matches. Grounded on the original _path_is_allowed.
func PathIsAllowed(projectDir, path string, allowedPatterns []string) bool {
	for _, pattern := range allowedPatterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		if strings.ContainsAny(pattern, "*?[") {
			if ok, _ := filepath.Match(pattern, path); ok {
				return true
			}
			continue
		}

		normalized := strings.TrimRight(pattern, "/")
		candidate := filepath.Join(projectDir, normalized)
		isDir := strings.HasSuffix(pattern, "/")
		if !isDir {
			if info, err := os.Stat(candidate); err == nil && info.IsDir() {
				isDir = true
			}
		}
		if isDir {
			prefix := normalized + "/"
			if path == normalized || strings.HasPrefix(path, prefix) {
				return true
			}
		}

		if path == normalized {
			return true
		}
	}
	return false
}

// DisallowedPaths returns the subset of paths not matched by
// allowedPatterns, with the single exception that a lone .gitignore
// addition is tolerated when it is purely additive (see
// IsOnlyAllowedGitignoreAddition).
func DisallowedPaths(projectDir string, paths, allowedPatterns []string) []string {
	var disallowed []string
	for _, p := range paths {
		if !PathIsAllowed(projectDir, p, allowedPatterns) {
			disallowed = append(disallowed, p)
		}
	}
	if containsString(disallowed, ".gitignore") && IsOnlyAllowedGitignoreAddition(projectDir) {
		disallowed = removeString(disallowed, ".gitignore")
	}
	return disallowed
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	var out []string
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
