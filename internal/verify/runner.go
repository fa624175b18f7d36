// Package verify runs a task's test command and turns the raw log
// output into a structured VerificationResult, including which source
// files look implicated and whether fixing them would require
// expanding the task's file allowlist.
package verify

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/corerun/taskrunner/internal/taskstate"
)

// excludePrefixes are noise/internal directories never reported as
// failing or suspect source paths.
var excludePrefixes = []string{
	".git/", ".taskrunner/", ".venv/", "venv/", "__pycache__/",
	".pytest_cache/", ".mypy_cache/", ".ruff_cache/", ".tox/", ".nox/",
}

// Request bundles everything a verification run needs.
type Request struct {
	ProjectDir     string
	RunDir         string
	LogPath        string
	RunID          string
	TestCommand    string
	AllowedFiles   []string
	TimeoutSeconds int
}

// IsPytestCommand detects pytest invocations behind common wrappers
// (poetry/uv/pipenv/hatch run, python -m pytest, bare pytest).
func IsPytestCommand(command string) bool {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return false
	}
	if strings.HasPrefix(cmd, "pytest") {
		return true
	}
	if strings.HasPrefix(cmd, "python") && strings.Contains(cmd, " -m pytest") {
		return true
	}
	tokens := strings.Fields(cmd)
	for i, tok := range tokens {
		if tok == "pytest" {
			return true
		}
		if tok == "-m" && i+1 < len(tokens) && tokens[i+1] == "pytest" {
			return true
		}
	}
	return false
}

// addPytestFlags injects the diagnostic flags always wanted on a
// pytest invocation, without duplicating them.
func addPytestFlags(command string) string {
	if !IsPytestCommand(command) {
		return command
	}
	out := command
	if !strings.Contains(out, "--tb=") {
		out += " --tb=long"
	}
	if !strings.Contains(out, "--disable-warnings") {
		out += " --disable-warnings"
	}
	fields := strings.Fields(out)
	hasQ := false
	for _, f := range fields {
		if f == "-q" {
			hasQ = true
			break
		}
	}
	if !hasQ {
		out += " -q"
	}
	return out
}

// Run executes req.TestCommand, bounded by req.TimeoutSeconds, and
// builds the full VerificationResult: command/exit-code metadata, a
// bounded log tail, and failing-path extraction unioned from three
// signals (FAILED markers, traceback references, import inference).
func Run(ctx context.Context, req Request) (taskstate.VerificationResult, error) {
	if req.TestCommand == "" {
		return taskstate.VerificationResult{
			RunID:      req.RunID,
			Passed:     true,
			Command:    "",
			ExitCode:   0,
			LogTail:    "No test command configured",
			CapturedAt: nowISO(),
		}, nil
	}

	command := req.TestCommand
	if IsPytestCommand(command) {
		command = addPytestFlags(command)
	}

	runResult, err := runCommand(ctx, command, req.ProjectDir, req.LogPath, req.TimeoutSeconds)
	if err != nil {
		return taskstate.VerificationResult{}, err
	}

	logTail := readTail(req.LogPath, 4000)
	excerptText, _ := readWindow(req.LogPath, 120_000)

	isPytest := IsPytestCommand(req.TestCommand)

	failedTestFiles := []string{}
	if isPytest {
		failedTestFiles = ExtractFailedTestFiles(excerptText, req.ProjectDir)
	}
	traceFiles := ExtractTracebackRepoPaths(excerptText, req.ProjectDir)

	srcInTraces := false
	for _, p := range traceFiles {
		if strings.HasPrefix(p, "src/") {
			srcInTraces = true
			break
		}
	}
	var suspectSourceFiles []string
	if !srcInTraces && len(failedTestFiles) > 0 {
		suspectSourceFiles = InferSuspectSourceFiles(failedTestFiles, req.ProjectDir)
	}

	var candidatePaths []string
	if !isPytest {
		for _, p := range filterRepoFilePaths(extractPathsFromLog(excerptText, req.ProjectDir), req.ProjectDir) {
			if (strings.HasPrefix(p, "src/") || strings.HasPrefix(p, "tests/")) && strings.HasSuffix(p, ".py") {
				candidatePaths = append(candidatePaths, p)
			}
		}
	}

	failingPaths := dedupSortFiltered(union(failedTestFiles, traceFiles, suspectSourceFiles, candidatePaths))

	meaningfulAllowlist := meaningfulEntries(req.AllowedFiles)
	var expansionPaths []string
	needsExpansion := false
	if len(meaningfulAllowlist) > 0 {
		for _, p := range failingPaths {
			if !PathIsAllowed(req.ProjectDir, p, req.AllowedFiles) {
				expansionPaths = append(expansionPaths, p)
			}
		}
		needsExpansion = len(expansionPaths) > 0
	}

	timedOut := runResult.timedOut
	passed := runResult.exitCode == 0 && !timedOut
	errorType := ""
	if timedOut {
		errorType = "test_timeout"
	}

	return taskstate.VerificationResult{
		RunID:                  req.RunID,
		Passed:                 passed,
		Command:                command,
		ExitCode:               runResult.exitCode,
		LogPath:                req.LogPath,
		LogTail:                logTail,
		CapturedAt:             nowISO(),
		FailingPaths:           failingPaths,
		ExpansionPaths:         expansionPaths,
		NeedsAllowlistExpansion: needsExpansion,
		ErrorType:              errorType,
	}, nil
}

func meaningfulEntries(files []string) []string {
	var out []string
	for _, f := range files {
		if f != "" && f != "README.md" {
			out = append(out, f)
		}
	}
	return out
}

func union(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range lists {
		for _, v := range l {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

func dedupSortFiltered(paths []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range paths {
		if p == "" || seen[p] || hasExcludedPrefix(p) {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sortStrings(out)
	return out
}

func hasExcludedPrefix(p string) bool {
	for _, prefix := range excludePrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

type commandResult struct {
	exitCode int
	timedOut bool
}

// runCommand runs command via the shell, streaming combined
// stdout/stderr to logPath, bounded by timeoutSeconds. Grounded on the
// original _run_command.
func runCommand(ctx context.Context, command, dir, logPath string, timeoutSeconds int) (commandResult, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return commandResult{}, fmt.Errorf("creating log dir: %w", err)
	}

	if timeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
		defer cancel()
	}

	f, err := os.Create(logPath)
	if err != nil {
		return commandResult{}, fmt.Errorf("creating log file: %w", err)
	}
	defer f.Close()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdout = f
	cmd.Stderr = f

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		fmt.Fprintf(f, "\n[runner] Command timed out after %ds\n", timeoutSeconds)
		return commandResult{exitCode: 124, timedOut: true}, nil
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}
	return commandResult{exitCode: exitCode}, nil
}

func readTail(path string, maxChars int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	s := string(data)
	if len(s) <= maxChars {
		return s
	}
	return s[len(s)-maxChars:]
}

// readWindow reads up to maxChars of a (possibly large) log file and
// reports whether it was truncated. A file over the bound yields its
// first and last halves joined by a truncation marker.
func readWindow(path string, maxChars int) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	if info.Size() <= int64(maxChars) {
		data, _ := os.ReadFile(path)
		return string(data), false
	}

	head := make([]byte, maxChars/2)
	hn, _ := f.ReadAt(head, 0)
	tail := make([]byte, maxChars-len(head))
	tn, _ := f.ReadAt(tail, info.Size()-int64(len(tail)))
	return string(head[:hn]) + "\n... [log truncated] ...\n" + string(tail[:tn]), true
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
