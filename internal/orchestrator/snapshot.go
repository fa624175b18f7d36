package orchestrator

import (
	"os/exec"
	"sort"
	"strings"
)

// stateDirName is the on-disk directory the store/verify packages use
// for run artifacts and locks; it is never treated as part of a task's
// introduced changes.
const stateDirName = ".taskrunner"

// snapshotDirty returns the set of changed/untracked repo-relative
// paths, excluding the state directory. Taking one snapshot before a
// worker runs and one after lets RunTask derive IntroducedChanges by
// set difference rather than trusting the worker's own report.
func snapshotDirty(repoDir string) (map[string]bool, error) {
	out, err := exec.Command("git", "-C", repoDir, "status", "--porcelain").Output()
	if err != nil {
		return nil, err
	}

	paths := map[string]bool{}
	for _, line := range strings.Split(string(out), "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		if arrow := strings.Index(path, " -> "); arrow >= 0 {
			path = path[arrow+4:]
		}
		path = strings.Trim(path, `"`)
		if path == "" || strings.HasPrefix(path, stateDirName+"/") {
			continue
		}
		paths[path] = true
	}
	return paths, nil
}

// introducedSince returns the paths present in post but not in pre,
// sorted for deterministic event construction.
func introducedSince(pre, post map[string]bool) []string {
	var out []string
	for p := range post {
		if !pre[p] {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// sortedKeys returns the paths of a dirty-set snapshot, sorted.
func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
