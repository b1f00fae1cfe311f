package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stxue1/wdltest"

	. "github.com/otiai10/mint"
)

// fakeRunner is an in-process EngineRunner with canned results per case.
type fakeRunner struct {
	mu         sync.Mutex
	invoked    []string
	results    map[string]ExecutionResult
	abortAfter int    // trigger abort on the n-th invocation when > 0
	abort      func() // called once when abortAfter is reached
}

func (f *fakeRunner) Run(ctx context.Context, c TestCase) ExecutionResult {
	f.mu.Lock()
	f.invoked = append(f.invoked, c.Name)
	n := len(f.invoked)
	f.mu.Unlock()
	if f.abortAfter > 0 && n == f.abortAfter {
		f.abort()
		<-ctx.Done()
		return ExecutionResult{Tag: TagCancelled, Err: ctx.Err()}
	}
	if result, got := f.results[c.Name]; got {
		return result
	}
	return ExecutionResult{ExitCode: 0}
}

func (f *fakeRunner) invocations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.invoked...)
}

// makeSuite lays out fixture files for one version and returns testsDir.
func makeSuite(t *testing.T, version string, sidecars map[string]string) string {
	t.Helper()
	testsDir := t.TempDir()
	dir := filepath.Join(testsDir, version)
	err := os.MkdirAll(dir, 0o755)
	Expect(t, err).ToBe(nil)
	for name, sidecar := range sidecars {
		base := name[:len(name)-len(".wdl")]
		err := os.WriteFile(filepath.Join(dir, name), []byte("version 1.1\n"), 0o644)
		Expect(t, err).ToBe(nil)
		err = os.WriteFile(filepath.Join(dir, base+".json"), []byte(sidecar), 0o644)
		Expect(t, err).ToBe(nil)
	}
	return testsDir
}

func outcomeOf(report *RunReport, version, name string) Outcome {
	for _, record := range report.Records {
		if record.Version == version && record.Name == name {
			return record.Outcome
		}
	}
	return ""
}

func TestHarness_Run(t *testing.T) {
	testsDir := makeSuite(t, "wdl-1.1", map[string]string{
		"hello.wdl":         `{"inputs": {}, "outputs": {"wf.x": 1}}`,
		"serde_pair.wdl":    `{"inputs": {}, "outputs": {"wf.p": {"left": 1, "right": "a"}}}`,
		"test_gpu_task.wdl": `{"inputs": {}}`,
		"fixed.wdl":         `{"inputs": {}, "outputs": {"wf.y": 2}}`,
		"broken.wdl":        `{"inputs": {}}`,
	})
	exclusions, err := ParseExclusions([]byte(`
wdl-1.1:
  xfail:
    - serde_pair.wdl: "expected output in the spec example is wrong"
    - fixed.wdl: "tracked issue, silently fixed upstream"
    - gone.wdl: "this fixture no longer exists"
  skip:
    - test_gpu_task.wdl: "requires GPU hardware"
`))
	Expect(t, err).ToBe(nil)

	runner := &fakeRunner{results: map[string]ExecutionResult{
		"hello.wdl": {ExitCode: 0, Outputs: wdltest.Values{"wf.x": float64(1)}},
		// fails as the xfail entry expects
		"serde_pair.wdl": {ExitCode: 0, Outputs: wdltest.Values{"wf.p": wdltest.Values{"left": float64(1), "right": "b"}}},
		// unexpectedly matches its declared output
		"fixed.wdl":  {ExitCode: 0, Outputs: wdltest.Values{"wf.y": float64(2)}},
		"broken.wdl": {ExitCode: 1},
	}}

	h, err := NewHarness(HarnessConfig{
		TestsDir:   testsDir,
		Exclusions: exclusions,
		Runner:     runner,
		Receiver:   nullReceiver{},
		Flags:      HarnessFlags{MaxParallelLimit: 4},
	})
	Expect(t, err).ToBe(nil)

	report := h.Run(context.Background())

	Expect(t, outcomeOf(report, "wdl-1.1", "hello.wdl")).ToBe(OutcomePass)
	Expect(t, outcomeOf(report, "wdl-1.1", "serde_pair.wdl")).ToBe(OutcomeExpectedFail)
	Expect(t, outcomeOf(report, "wdl-1.1", "fixed.wdl")).ToBe(OutcomeUnexpectedPass)
	Expect(t, outcomeOf(report, "wdl-1.1", "broken.wdl")).ToBe(OutcomeUnexpectedFail)
	Expect(t, outcomeOf(report, "wdl-1.1", "test_gpu_task.wdl")).ToBe(OutcomeSkipped)

	// the exclusion reason is carried verbatim into the record
	for _, record := range report.Records {
		if record.Name == "serde_pair.wdl" {
			Expect(t, record.Reason).ToBe("expected output in the spec example is wrong")
		}
	}

	// skipped cases never reach the engine
	for _, name := range runner.invocations() {
		Expect(t, name == "test_gpu_task.wdl").ToBe(false)
	}

	// the stale xfail entry surfaces as a warning, not an error
	Expect(t, len(report.Warnings)).ToBe(1)

	tally := report.Versions["wdl-1.1"]
	Expect(t, tally.Total).ToBe(5)
	Expect(t, tally.Passed).ToBe(1)
	Expect(t, tally.ExpectedFail).ToBe(1)
	Expect(t, tally.UnexpectedFail).ToBe(1)
	Expect(t, tally.UnexpectedPass).ToBe(1)
	Expect(t, tally.Skipped).ToBe(1)
	Expect(t, report.Success).ToBe(false)
}

func TestHarness_allPassing(t *testing.T) {
	testsDir := makeSuite(t, "wdl-1.1", map[string]string{
		"a.wdl": `{"inputs": {}}`,
		"b.wdl": `{"inputs": {}}`,
	})
	h, err := NewHarness(HarnessConfig{
		TestsDir: testsDir,
		Runner:   &fakeRunner{},
		Receiver: nullReceiver{},
	})
	Expect(t, err).ToBe(nil)

	report := h.Run(context.Background())
	Expect(t, report.Success).ToBe(true)
	Expect(t, report.Versions["wdl-1.1"].Passed).ToBe(2)
}

func TestHarness_cancellation(t *testing.T) {
	sidecars := map[string]string{}
	for i := 0; i < 10; i++ {
		sidecars[fmt.Sprintf("case_%02d.wdl", i)] = `{"inputs": {}}`
	}
	testsDir := makeSuite(t, "wdl-1.1", sidecars)

	var h *Harness
	runner := &fakeRunner{
		abortAfter: 8,
		abort: func() {
			h.Signals() <- SignalAbort
		},
	}
	h, err := NewHarness(HarnessConfig{
		TestsDir: testsDir,
		Runner:   runner,
		Receiver: nullReceiver{},
		Flags:    HarnessFlags{MaxParallelLimit: 1},
	})
	Expect(t, err).ToBe(nil)

	report := h.Run(context.Background())

	// 7 completed before the abort, the in-flight case plus the two never
	// dispatched report CANCELLED, and nothing is dropped
	tally := report.Versions["wdl-1.1"]
	Expect(t, tally.Total).ToBe(10)
	Expect(t, tally.Passed).ToBe(7)
	Expect(t, tally.Cancelled).ToBe(3)
	Expect(t, report.Success).ToBe(false)
}

func TestHarness_discoveryFailureIsPerVersion(t *testing.T) {
	testsDir := makeSuite(t, "wdl-1.1", map[string]string{
		"good.wdl": `{"inputs": {}}`,
	})
	// wdl-1.2 has a fixture without its sidecar
	dir := filepath.Join(testsDir, "wdl-1.2")
	err := os.MkdirAll(dir, 0o755)
	Expect(t, err).ToBe(nil)
	err = os.WriteFile(filepath.Join(dir, "orphan.wdl"), []byte("version 1.2\n"), 0o644)
	Expect(t, err).ToBe(nil)

	h, err := NewHarness(HarnessConfig{
		TestsDir: testsDir,
		Runner:   &fakeRunner{},
		Receiver: nullReceiver{},
	})
	Expect(t, err).ToBe(nil)

	report := h.Run(context.Background())

	// the broken version is reported, the healthy one still ran
	Expect(t, len(report.DiscoveryFailures)).ToBe(1)
	Expect(t, report.Versions["wdl-1.1"].Passed).ToBe(1)
	Expect(t, report.Success).ToBe(true)
}

func TestHarness_onlyFilter(t *testing.T) {
	testsDir := makeSuite(t, "wdl-1.1", map[string]string{
		"a.wdl": `{"inputs": {}}`,
		"b.wdl": `{"inputs": {}}`,
		"c.wdl": `{"inputs": {}}`,
	})
	runner := &fakeRunner{}
	h, err := NewHarness(HarnessConfig{
		TestsDir: testsDir,
		Runner:   runner,
		Receiver: nullReceiver{},
		Flags:    HarnessFlags{OnlyNames: []string{"b.wdl"}},
	})
	Expect(t, err).ToBe(nil)

	report := h.Run(context.Background())
	Expect(t, report.Versions["wdl-1.1"].Total).ToBe(1)
	Expect(t, runner.invocations()).ToBe([]string{"b.wdl"})
}

// nullReceiver drops all messages; tests assert on the report instead.
type nullReceiver struct{}

func (nullReceiver) SendMsg(Message) {}
