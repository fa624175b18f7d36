package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAgenticProgressParsesMatchingRunID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"run_id": "run-1",
		"task_id": "task-1",
		"phase": "implement",
		"human_blocking_issues": ["needs a credential"]
	}`), 0644))

	p, ok := readAgenticProgress(path, "run-1")
	require.True(t, ok)
	assert.Equal(t, "run-1", p.RunID)
	assert.Equal(t, []string{"needs a credential"}, p.HumanBlockingIssues)
}

func TestReadAgenticProgressRejectsMismatchedRunID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"run_id": "run-2"}`), 0644))

	_, ok := readAgenticProgress(path, "run-1")
	assert.False(t, ok)
}

func TestReadAgenticProgressMissingFile(t *testing.T) {
	_, ok := readAgenticProgress(filepath.Join(t.TempDir(), "missing.json"), "run-1")
	assert.False(t, ok)
}

func TestReadAgenticProgressInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, ok := readAgenticProgress(path, "run-1")
	assert.False(t, ok)
}
