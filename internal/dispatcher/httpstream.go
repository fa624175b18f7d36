package dispatcher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/corerun/taskrunner/internal/config"
)

// generateRequest is the body posted to an Ollama-style /api/generate
// endpoint.
type generateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	Stream  bool             `json:"stream"`
	Options *generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumCtx      *int     `json:"num_ctx,omitempty"`
}

// generateChunk is one line of the newline-delimited JSON response body.
type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// RunHTTPStream dispatches an ollama-http-variant worker: it POSTs the
// prompt, reads newline-delimited JSON chunks until done:true or the
// overall timeout elapses, and accumulates the response text into the
// stdout log. Grounded on the original _run_ollama_generate.
func RunHTTPStream(ctx context.Context, cfg config.WorkerConfig, prompt, runDir, runID string) (Result, error) {
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return Result{}, fmt.Errorf("creating run dir: %w", err)
	}

	promptPath := filepath.Join(runDir, "prompt.txt")
	if err := os.WriteFile(promptPath, []byte(prompt), 0644); err != nil {
		return Result{}, fmt.Errorf("writing prompt file: %w", err)
	}

	stdoutPath := filepath.Join(runDir, "stdout.log")
	stderrPath := filepath.Join(runDir, "stderr.log")

	startWall := time.Now().UTC()
	timeout := cfg.ParseTimeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqBody := generateRequest{Model: cfg.Model, Prompt: prompt, Stream: true}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, fmt.Errorf("encoding request: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/") + "/api/generate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var responseText strings.Builder
	var stderrText strings.Builder
	var timedOut bool

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			timedOut = true
		}
		stderrText.WriteString(err.Error())
	} else {
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			stderrText.WriteString(fmt.Sprintf("worker endpoint returned status %d", resp.StatusCode))
		} else {
			scanner := bufio.NewScanner(resp.Body)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(bytes.TrimSpace(line)) == 0 {
					continue
				}
				var chunk generateChunk
				if err := json.Unmarshal(line, &chunk); err != nil {
					continue
				}
				responseText.WriteString(chunk.Response)
				if chunk.Done {
					break
				}
			}
			if err := scanner.Err(); err != nil {
				if ctx.Err() != nil {
					timedOut = true
				}
				stderrText.WriteString(err.Error())
			}
		}
	}

	if err := os.WriteFile(stdoutPath, []byte(responseText.String()), 0644); err != nil {
		return Result{}, fmt.Errorf("writing stdout log: %w", err)
	}
	if err := os.WriteFile(stderrPath, []byte(stderrText.String()), 0644); err != nil {
		return Result{}, fmt.Errorf("writing stderr log: %w", err)
	}

	exitCode := 0
	if timedOut {
		exitCode = 124
	} else if stderrText.Len() > 0 {
		exitCode = 1
	}

	return Result{
		Command:        fmt.Sprintf("POST %s", endpoint),
		PromptPath:     promptPath,
		StdoutPath:     stdoutPath,
		StderrPath:     stderrPath,
		StartTime:      startWall,
		EndTime:        time.Now().UTC(),
		RuntimeSeconds: int(time.Since(startWall).Seconds()),
		ExitCode:       exitCode,
		TimedOut:       timedOut,
		StderrTail:     stderrText.String(),
	}, nil
}
