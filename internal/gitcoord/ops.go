package gitcoord

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Diff returns the working tree's diff against HEAD, falling back to a
// plain `git diff` for a repo with no commits yet.
func Diff(c *Coordinator, repoDir string) (string, error) {
	return Execute(c, "diff", func() (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		out, err := exec.CommandContext(ctx, "git", "-C", repoDir, "diff", "HEAD").Output()
		if err != nil {
			out2, err2 := exec.CommandContext(ctx, "git", "-C", repoDir, "diff").Output()
			if err2 != nil {
				return "", fmt.Errorf("git diff: %w", err)
			}
			return string(out2), nil
		}
		return string(out), nil
	})
}

// HasChanges reports whether the working directory has uncommitted
// changes.
func HasChanges(c *Coordinator, repoDir string) bool {
	result, _ := Execute(c, "status", func() (bool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		out, err := exec.CommandContext(ctx, "git", "-C", repoDir, "status", "--porcelain").Output()
		if err != nil {
			slog.Warn("git status failed, assuming no changes", "error", err)
			return false, nil
		}
		return strings.TrimSpace(string(out)) != "", nil
	})
	return result
}

// Commit stages all changes and commits with message.
func Commit(c *Coordinator, repoDir, message string) error {
	_, err := Execute(c, "commit", func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		add := exec.CommandContext(ctx, "git", "-C", repoDir, "add", "-A")
		if out, err := add.CombinedOutput(); err != nil {
			return struct{}{}, fmt.Errorf("git add: %s: %w", string(out), err)
		}

		commit := exec.CommandContext(ctx, "git", "-C", repoDir, "commit", "-m", message)
		if out, err := commit.CombinedOutput(); err != nil {
			return struct{}{}, fmt.Errorf("git commit: %s: %w", string(out), err)
		}
		return struct{}{}, nil
	})
	return err
}

// Push pushes the current branch to remoteName.
func Push(c *Coordinator, repoDir, remoteName, branch string) error {
	_, err := Execute(c, "push", func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		cmd := exec.CommandContext(ctx, "git", "-C", repoDir, "push", remoteName, branch)
		if out, err := cmd.CombinedOutput(); err != nil {
			return struct{}{}, fmt.Errorf("git push: %s: %w", string(out), err)
		}
		return struct{}{}, nil
	})
	return err
}

// ApplyPatch applies a unified diff to repoDir via `git apply`, first
// snapshotting it to runDir/generated.patch when runDir is non-empty.
// Grounded on the original apply_patch_with_git.
func ApplyPatch(c *Coordinator, repoDir, patchText, runDir string) (bool, string) {
	if strings.TrimSpace(patchText) == "" {
		return true, ""
	}

	if runDir != "" {
		if err := os.MkdirAll(runDir, 0755); err == nil {
			_ = os.WriteFile(filepath.Join(runDir, "generated.patch"), []byte(patchText), 0644)
		}
	}

	ok, err := Execute(c, "apply", func() (bool, error) {
		cmd := exec.Command("git", "-C", repoDir, "apply", "--whitespace=nowarn", "--recount", "-")
		cmd.Stdin = strings.NewReader(patchText)
		out, runErr := cmd.CombinedOutput()
		if runErr != nil {
			detail := strings.TrimSpace(string(out))
			if detail == "" {
				detail = runErr.Error()
			}
			return false, fmt.Errorf("%s", detail)
		}
		return true, nil
	})
	if !ok {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		return false, msg
	}
	return true, ""
}
