package gitcoord

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
	require.NoError(t, writeFile(dir, "README.md", "hello\n"))
	run("add", "-A")
	run("commit", "-q", "-m", "initial")
	return dir
}

func writeFile(dir, rel, content string) error {
	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(content), 0644)
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

func TestHasChangesReflectsWorkingTree(t *testing.T) {
	dir := initRepo(t)
	c := New()

	assert.False(t, HasChanges(c, dir))

	require.NoError(t, writeFile(dir, "a.txt", "x"))
	assert.True(t, HasChanges(c, dir))
}

func TestCommitStagesAndCommits(t *testing.T) {
	dir := initRepo(t)
	c := New()
	require.NoError(t, writeFile(dir, "a.txt", "x"))

	require.NoError(t, Commit(c, dir, "add a.txt"))
	assert.False(t, HasChanges(c, dir))
}

func TestApplyPatchWritesSnapshotAndApplies(t *testing.T) {
	dir := initRepo(t)
	c := New()
	runDir := t.TempDir()

	patch := `--- a/README.md
+++ b/README.md
@@ -1 +1,2 @@
 hello
+world
`
	ok, detail := ApplyPatch(c, dir, patch, runDir)
	require.True(t, ok, detail)

	data, err := readFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, data, "world")

	snapshot, err := readFile(filepath.Join(runDir, "generated.patch"))
	require.NoError(t, err)
	assert.Equal(t, patch, snapshot)
}

func TestApplyPatchEmptyIsNoop(t *testing.T) {
	dir := initRepo(t)
	c := New()
	ok, detail := ApplyPatch(c, dir, "   \n", "")
	assert.True(t, ok)
	assert.Empty(t, detail)
}
