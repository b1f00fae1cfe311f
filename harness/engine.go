package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Harness drives a conformance run: it enumerates the cases of each
// requested spec version, looks up their dispositions, dispatches
// non-skipped cases to a bounded pool of engine workers and accumulates
// the classified outcomes into a report.
type Harness struct {
	exclusions Exclusions
	runner     EngineRunner
	testsDir   string
	versions   []string
	recv       MessageReceiver
	report     *Report
	signals    chan Signal

	RunID string
	Flags HarnessFlags
}

// HarnessConfig collects everything a run needs. Zero values fall back
// to defaults in initConfig.
type HarnessConfig struct {
	RunID      string
	TestsDir   string
	Versions   []string // empty means every version directory under TestsDir
	Exclusions Exclusions
	Runner     EngineRunner
	Receiver   MessageReceiver
	Flags      HarnessFlags
}

func initConfig(c *HarnessConfig) {
	if c.RunID == "" {
		c.RunID = uuid.New().String()
	}
	if c.Receiver == nil {
		c.Receiver = DefaultMsgReceiver{}
	}
	if c.Exclusions == nil {
		c.Exclusions = Exclusions{}
	}
	if c.Flags.MaxParallelLimit < 1 {
		c.Flags.MaxParallelLimit = 1
	}
	if c.Flags.CaseTimeLimit <= 0 {
		c.Flags.CaseTimeLimit = DefaultCaseTimeLimit
	}
}

// NewHarness ...
func NewHarness(c HarnessConfig) (*Harness, error) {
	initConfig(&c)
	if c.Runner == nil {
		return nil, fmt.Errorf("harness needs an engine runner")
	}
	if c.TestsDir == "" {
		return nil, fmt.Errorf("harness needs a tests directory")
	}
	return &Harness{
		exclusions: c.Exclusions,
		runner:     c.Runner,
		testsDir:   c.TestsDir,
		versions:   c.Versions,
		recv:       c.Receiver,
		report:     NewReport(c.RunID),
		signals:    make(chan Signal, 1),
		RunID:      c.RunID,
		Flags:      c.Flags,
	}, nil
}

// Signals returns the control channel of the run. Sending SignalAbort
// stops dispatching new cases and terminates in-flight engines.
func (h *Harness) Signals() chan<- Signal {
	return h.signals
}

// Run executes the whole conformance run and always returns a finalized
// report, complete even when the run was cancelled mid-flight.
func (h *Harness) Run(ctx context.Context) *RunReport {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if h.Flags.TotalTimeLimit > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, h.Flags.TotalTimeLimit)
		defer tcancel()
	}
	go func() {
		select {
		case sig := <-h.signals:
			if sig == SignalAbort {
				cancel()
			}
		case <-runCtx.Done():
		}
	}()

	h.send(Message{Class: RunMsg, Status: StatusStart, Info: fmt.Sprintf("run %s", h.RunID)})

	versions := h.versions
	if len(versions) == 0 {
		found, err := Versions(h.testsDir)
		if err != nil {
			h.send(Message{Class: RunMsg, Status: StatusError, Error: err})
			h.report.DiscoveryFailed(discoveryErrorf("all", "%v", err))
			return h.report.Finalize()
		}
		versions = found
	}

	for _, version := range versions {
		h.runVersion(runCtx, version)
	}

	report := h.report.Finalize()
	h.send(Message{Class: RunMsg, Status: StatusFinish, Info: fmt.Sprintf("success=%v", report.Success)})
	return report
}

func (h *Harness) runVersion(ctx context.Context, version string) {
	h.send(Message{Class: VersionMsg, Status: StatusStart, Version: version})

	cases, err := Discover(h.testsDir, version)
	if err != nil {
		h.send(Message{Class: VersionMsg, Status: StatusError, Version: version, Error: err})
		if derr, ok := err.(*DiscoveryError); ok {
			h.report.DiscoveryFailed(derr)
		} else {
			h.report.DiscoveryFailed(discoveryErrorf(version, "%v", err))
		}
		return
	}
	cases = h.filterCases(cases)

	for _, name := range h.exclusions.Stale(version, cases) {
		h.report.Warn("%s: exclusion entry %q matches no fixture (stale)", version, name)
		h.send(Message{Class: VersionMsg, Status: StatusWarn, Version: version,
			Info: fmt.Sprintf("stale exclusion entry %q", name)})
	}

	var wg sync.WaitGroup
	pool := make(chan struct{}, h.Flags.MaxParallelLimit)
	for _, c := range cases {
		disposition := h.exclusions.Lookup(version, c.Name)
		if disposition.Kind == DispositionSkip {
			// the engine is never invoked for skipped cases
			h.report.Record(CaseRecord{
				Version: version,
				Name:    c.Name,
				Outcome: OutcomeSkipped,
				Reason:  disposition.Reason,
			})
			h.send(Message{Class: CaseMsg, Status: StatusSkip, Version: version, Name: c.Name,
				Outcome: OutcomeSkipped, Info: disposition.Reason})
			continue
		}
		if ctx.Err() != nil {
			// cancelled before dispatch: still reported, never dropped
			h.recordCancelled(c, disposition)
			continue
		}
		wg.Add(1)
		go func(c TestCase, disposition Disposition) {
			defer wg.Done()
			pool <- struct{}{}
			defer func() { <-pool }()
			if ctx.Err() != nil {
				h.recordCancelled(c, disposition)
				return
			}
			h.runCase(ctx, c, disposition)
		}(c, disposition)
	}
	wg.Wait()

	h.send(Message{Class: VersionMsg, Status: StatusFinish, Version: version,
		Info: fmt.Sprintf("%d cases", len(cases))})
}

func (h *Harness) runCase(ctx context.Context, c TestCase, disposition Disposition) {
	h.send(Message{Class: CaseMsg, Status: StatusStart, Version: c.Version, Name: c.Name})

	caseCtx, cancel := context.WithTimeout(ctx, h.Flags.CaseTimeLimit)
	defer cancel()
	result := h.runner.Run(caseCtx, c)
	if ctx.Err() != nil {
		// run-level stop wins over whatever the case was doing
		result.Tag = TagCancelled
	}
	outcome := Classify(c, result, disposition)

	record := CaseRecord{
		Version: c.Version,
		Name:    c.Name,
		Outcome: outcome,
		Reason:  disposition.Reason,
		Time:    result.Elapsed.Seconds(),
		Detail:  describe(c, result),
	}
	h.report.Record(record)

	status := StatusFinish
	switch outcome {
	case OutcomeCancelled:
		status = StatusCancel
	case OutcomeUnexpectedFail, OutcomeUnexpectedPass:
		status = StatusError
	}
	h.send(Message{Class: CaseMsg, Status: status, Version: c.Version, Name: c.Name,
		Outcome: outcome, Info: record.Detail, Error: result.Err})
}

func (h *Harness) recordCancelled(c TestCase, disposition Disposition) {
	h.report.Record(CaseRecord{
		Version: c.Version,
		Name:    c.Name,
		Outcome: OutcomeCancelled,
		Reason:  disposition.Reason,
	})
	h.send(Message{Class: CaseMsg, Status: StatusCancel, Version: c.Version, Name: c.Name,
		Outcome: OutcomeCancelled})
}

func (h *Harness) filterCases(cases []TestCase) []TestCase {
	if len(h.Flags.OnlyNames) == 0 {
		return cases
	}
	var out []TestCase
	for _, c := range cases {
		for _, name := range h.Flags.OnlyNames {
			if c.Name == name {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// describe produces the short mismatch note carried by a case record.
func describe(c TestCase, result ExecutionResult) string {
	switch result.Tag {
	case TagTimeout:
		return "engine timed out"
	case TagMalformedOutput:
		return fmt.Sprintf("malformed engine output: %v", result.Err)
	case TagStartError:
		return fmt.Sprintf("engine failed to start: %v", result.Err)
	case TagCancelled:
		return ""
	}
	if result.ExitCode != c.ExitCode {
		return fmt.Sprintf("exit code %d, expected %d", result.ExitCode, c.ExitCode)
	}
	if !Matches(c, result) {
		return "outputs differ from expected"
	}
	return ""
}

func (h *Harness) send(m Message) {
	m.TimeStamp = time.Now()
	h.recv.SendMsg(m)
}
