package dispatcher

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corerun/taskrunner/internal/config"
)

func TestRunSubprocessCapturesOutputAndExitCode(t *testing.T) {
	dir := t.TempDir()
	cfg := config.WorkerConfig{
		Command:          "/bin/sh -c 'cat > /dev/null; echo hello' -",
		TimeoutSeconds:   10,
		HeartbeatSeconds: 10,
	}

	res, err := RunSubprocess(context.Background(), cfg, "a prompt", dir, dir, filepath.Join(dir, "progress.json"), "run-1", nil)
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
	out, _ := os.ReadFile(res.StdoutPath)
	assert.Contains(t, string(out), "hello")
}

func TestRunSubprocessRejectsCommandWithoutStdinOrPlaceholder(t *testing.T) {
	dir := t.TempDir()
	cfg := config.WorkerConfig{Command: "/bin/true", TimeoutSeconds: 5, HeartbeatSeconds: 10}

	_, err := RunSubprocess(context.Background(), cfg, "prompt", dir, dir, filepath.Join(dir, "progress.json"), "run-1", nil)
	assert.Error(t, err)
}

func TestRunSubprocessTimesOut(t *testing.T) {
	dir := t.TempDir()
	cfg := config.WorkerConfig{
		Command:          "/bin/sh -c 'cat > /dev/null; sleep 5' -",
		TimeoutSeconds:   1,
		HeartbeatSeconds: 10,
	}

	res, err := RunSubprocess(context.Background(), cfg, "prompt", dir, dir, filepath.Join(dir, "progress.json"), "run-1", nil)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
}

func TestRunHTTPStreamAccumulatesChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		writer := bufio.NewWriter(w)
		chunks := []generateChunk{
			{Response: "hel"},
			{Response: "lo"},
			{Response: "", Done: true},
		}
		for _, c := range chunks {
			data, _ := json.Marshal(c)
			writer.Write(data)
			writer.WriteString("\n")
			writer.Flush()
			flusher.Flush()
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := config.WorkerConfig{Endpoint: srv.URL, Model: "llama3", TimeoutSeconds: 5}

	res, err := RunHTTPStream(context.Background(), cfg, "say hello", dir, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)

	out, _ := os.ReadFile(res.StdoutPath)
	assert.Equal(t, "hello", string(out))
}

func TestRunHTTPStreamReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := config.WorkerConfig{Endpoint: srv.URL, Model: "llama3", TimeoutSeconds: 5}

	res, err := RunHTTPStream(context.Background(), cfg, "say hello", dir, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
}

func TestDispatchBranchesOnVariant(t *testing.T) {
	dir := t.TempDir()
	spec := Spec{
		Worker:     config.WorkerConfig{Variant: "bogus"},
		Prompt:     "x",
		ProjectDir: dir,
		RunDir:     dir,
	}
	_, err := Dispatch(context.Background(), spec)
	assert.Error(t, err)
}

func TestReadProgressHeartbeatRejectsWrongRunID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")
	now := time.Now().UTC().Format(time.RFC3339)
	data, _ := json.Marshal(progressFile{RunID: "other-run", Heartbeat: now})
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, ok := ReadProgressHeartbeat(path, "expected-run")
	assert.False(t, ok)
}

func TestReadProgressHeartbeatAcceptsMatchingRunID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")
	now := time.Now().UTC().Format(time.RFC3339)
	data, _ := json.Marshal(progressFile{RunID: "run-1", Heartbeat: now})
	require.NoError(t, os.WriteFile(path, data, 0644))

	ts, ok := ReadProgressHeartbeat(path, "run-1")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().UTC(), ts, 2*time.Second)
}
