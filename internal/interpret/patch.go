package interpret

import (
	"strings"
)

// ExtractPatchPaths pulls the repo-relative changed paths out of a
// unified diff, reading `diff --git a/x b/y` headers and `+++ b/...`
// hunk markers (skipping the `/dev/null` sentinel used for deletions).
func ExtractPatchPaths(patchText string) []string {
	seen := map[string]bool{}
	var out []string

	add := func(p string) {
		p = strings.TrimPrefix(p, "b/")
		p = strings.TrimPrefix(p, "a/")
		if p == "" || p == "/dev/null" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}

	for _, line := range strings.Split(patchText, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			fields := strings.Fields(line)
			if len(fields) >= 4 {
				add(fields[3])
			}
		case strings.HasPrefix(line, "+++ "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "+++ "))
			if path != "/dev/null" {
				add(path)
			}
		}
	}

	return out
}
