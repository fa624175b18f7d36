package orchestrator

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		require.NoError(t, cmd.Run(), "git %v", args)
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0644))
	run("add", "-A")
	run("commit", "-q", "-m", "initial")
	return dir
}

func TestSnapshotDirtyIgnoresStateDir(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, stateDirName), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, stateDirName, "tasks.yaml"), []byte("tasks: []\n"), 0644))

	dirty, err := snapshotDirty(dir)
	require.NoError(t, err)
	assert.Empty(t, dirty)
}

func TestSnapshotDirtyTracksUntrackedAndModified(t *testing.T) {
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.go"), []byte("package x\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("changed\n"), 0644))

	dirty, err := snapshotDirty(dir)
	require.NoError(t, err)
	assert.True(t, dirty["new.go"])
	assert.True(t, dirty["README.md"])
}

func TestIntroducedSinceReturnsOnlyNewPaths(t *testing.T) {
	pre := map[string]bool{"a.go": true}
	post := map[string]bool{"a.go": true, "b.go": true, "c.go": true}

	got := introducedSince(pre, post)
	assert.Equal(t, []string{"b.go", "c.go"}, got)
}

func TestIntroducedSinceEmptyWhenNothingNew(t *testing.T) {
	pre := map[string]bool{"a.go": true}
	post := map[string]bool{"a.go": true}

	assert.Empty(t, introducedSince(pre, post))
}

func TestSortedKeysIsDeterministic(t *testing.T) {
	set := map[string]bool{"z.go": true, "a.go": true, "m.go": true}
	assert.Equal(t, []string{"a.go", "m.go", "z.go"}, sortedKeys(set))
}
