package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	shellwords "github.com/mattn/go-shellwords"

	"github.com/stxue1/wdltest"
)

// ResultTag marks an ExecutionResult whose engine invocation did not
// produce a comparable result. A tagged result never matches the
// expected outcome.
type ResultTag string

const (
	TagNone            ResultTag = ""
	TagTimeout         ResultTag = "timeout"
	TagMalformedOutput ResultTag = "malformed-output"
	TagStartError      ResultTag = "start-error"
	TagCancelled       ResultTag = "cancelled"
)

// ExecutionResult holds what one engine invocation actually did. It is
// owned by the run that produced it and not persisted beyond the report.
type ExecutionResult struct {
	RunID    string
	ExitCode int
	Outputs  wdltest.Values
	Stdout   []byte
	Stderr   []byte
	Elapsed  time.Duration
	Tag      ResultTag
	Err      error // underlying cause for tagged results
}

// EngineRunner invokes the engine under test for a single case. Each
// invocation is independent; implementations must be safe for use from
// concurrent workers.
type EngineRunner interface {
	Run(ctx context.Context, c TestCase) ExecutionResult
}

// LocalEngine runs the engine under test as a local subprocess:
// argv = Command + [WDL path, inputs path], cwd = a fresh scratch
// directory per case so parallel engines writing files don't collide.
type LocalEngine struct {
	Command []string // engine argv prefix, e.g. ["miniwdl", "run"]
	WorkDir string   // scratch root; per-case directories are created under it
}

// NewLocalEngine parses an engine command line ("miniwdl run --no-color")
// into argv and prepares the scratch root.
func NewLocalEngine(cmdline, workDir string) (*LocalEngine, error) {
	words, err := shellwords.Parse(cmdline)
	if err != nil {
		return nil, fmt.Errorf("parse engine command %q: %w", cmdline, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty engine command")
	}
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "wdltest")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, err
	}
	return &LocalEngine{Command: words, WorkDir: workDir}, nil
}

// Run executes the engine against one test case. The caller bounds the
// invocation through ctx; on expiry the process is killed and the result
// is tagged TIMEOUT (deadline) or CANCELLED (run-level stop).
func (e *LocalEngine) Run(ctx context.Context, c TestCase) ExecutionResult {
	runID := uuid.New().String()
	result := ExecutionResult{RunID: runID, ExitCode: -1}

	scratch := filepath.Join(e.WorkDir, runID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		result.Tag = TagStartError
		result.Err = err
		return result
	}

	inputs := c.Inputs
	if len(inputs) == 0 {
		inputs = []byte("{}")
	}
	inputsPath := filepath.Join(scratch, "inputs.json")
	if err := os.WriteFile(inputsPath, inputs, 0o644); err != nil {
		result.Tag = TagStartError
		result.Err = err
		return result
	}

	doc, err := filepath.Abs(c.Doc)
	if err != nil {
		result.Tag = TagStartError
		result.Err = err
		return result
	}

	args := append(append([]string{}, e.Command[1:]...), doc, inputsPath)
	cmd := exec.Command(e.Command[0], args...)
	cmd.Dir = scratch
	cmdOut := &bytes.Buffer{}
	cmdErr := &bytes.Buffer{}
	cmd.Stdout = cmdOut
	cmd.Stderr = cmdErr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		result.Tag = TagStartError
		result.Err = err
		return result
	}

	retChan := make(chan error, 1)
	go func() {
		retChan <- cmd.Wait()
		close(retChan)
	}()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-retChan
		result.Elapsed = time.Since(start)
		result.Stdout = cmdOut.Bytes()
		result.Stderr = cmdErr.Bytes()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.Tag = TagTimeout
		} else {
			result.Tag = TagCancelled
		}
		result.Err = ctx.Err()
		return result
	case err := <-retChan:
		result.Elapsed = time.Since(start)
		result.Stdout = cmdOut.Bytes()
		result.Stderr = cmdErr.Bytes()
		if err != nil {
			var exit *exec.ExitError
			if !errors.As(err, &exit) {
				result.Tag = TagStartError
				result.Err = err
				return result
			}
		}
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	// Outputs are only comparable on a clean exit; a failing engine run
	// is a failure in its own right, not malformed output.
	if result.ExitCode == 0 && c.Output != nil {
		outputs, err := wdltest.ParseOutputs(result.Stdout)
		if err != nil {
			result.Tag = TagMalformedOutput
			result.Err = err
			return result
		}
		result.Outputs = outputs
	}
	return result
}
