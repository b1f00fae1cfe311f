package harness

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	. "github.com/otiai10/mint"
)

func TestReport_Finalize(t *testing.T) {
	report := NewReport("test-run")
	report.Record(CaseRecord{Version: "wdl-1.1", Name: "b.wdl", Outcome: OutcomePass})
	report.Record(CaseRecord{Version: "wdl-1.1", Name: "a.wdl", Outcome: OutcomeExpectedFail, Reason: "known bug"})
	report.Record(CaseRecord{Version: "wdl-1.1", Name: "c.wdl", Outcome: OutcomeSkipped, Reason: "requires GPU"})
	report.Record(CaseRecord{Version: "wdl-1.2", Name: "d.wdl", Outcome: OutcomePass})
	report.Warn("wdl-1.1: exclusion entry %q matches no fixture (stale)", "gone.wdl")

	final := report.Finalize()
	Expect(t, final.RunID).ToBe("test-run")
	Expect(t, final.Success).ToBe(true)
	Expect(t, len(final.Warnings)).ToBe(1)

	t11 := final.Versions["wdl-1.1"]
	Expect(t, t11.Passed).ToBe(1)
	Expect(t, t11.ExpectedFail).ToBe(1)
	Expect(t, t11.Skipped).ToBe(1)
	Expect(t, t11.Total).ToBe(3)
	Expect(t, final.Versions["wdl-1.2"].Passed).ToBe(1)

	// records come back sorted by (version, name) so reports diff cleanly
	Expect(t, final.Records[0].Name).ToBe("a.wdl")
	Expect(t, final.Records[1].Name).ToBe("b.wdl")
	Expect(t, final.Records[2].Name).ToBe("c.wdl")
	Expect(t, final.Records[3].Version).ToBe("wdl-1.2")

	// the report is frozen once finalized
	report.Record(CaseRecord{Version: "wdl-1.2", Name: "e.wdl", Outcome: OutcomePass})
	Expect(t, report.Finalize().Versions["wdl-1.2"].Total).ToBe(1)
}

func TestReport_successRule(t *testing.T) {
	for _, c := range []struct {
		outcome Outcome
		success bool
	}{
		{OutcomePass, true},
		{OutcomeExpectedFail, true},
		{OutcomeSkipped, true},
		{OutcomeUnexpectedFail, false},
		{OutcomeUnexpectedPass, false},
		{OutcomeCancelled, false},
	} {
		report := NewReport("r")
		report.Record(CaseRecord{Version: "wdl-1.1", Name: "x.wdl", Outcome: c.outcome})
		Expect(t, report.Finalize().Success).ToBe(c.success)
	}
}

func TestReport_concurrentRecord(t *testing.T) {
	report := NewReport("r")
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			report.Record(CaseRecord{
				Version: "wdl-1.1",
				Name:    fmt.Sprintf("case_%03d.wdl", i),
				Outcome: OutcomePass,
			})
		}(i)
	}
	wg.Wait()

	final := report.Finalize()
	Expect(t, final.Versions["wdl-1.1"].Passed).ToBe(100)
	Expect(t, final.Versions["wdl-1.1"].Total).ToBe(100)
	Expect(t, len(final.Records)).ToBe(100)
}

func TestRunReport_WriteText(t *testing.T) {
	report := NewReport("r")
	report.Record(CaseRecord{Version: "wdl-1.1", Name: "ok.wdl", Outcome: OutcomePass})
	report.Record(CaseRecord{Version: "wdl-1.1", Name: "fixed.wdl", Outcome: OutcomeUnexpectedPass, Reason: "tracked issue #12"})
	report.Record(CaseRecord{Version: "wdl-1.1", Name: "broken.wdl", Outcome: OutcomeUnexpectedFail, Detail: "exit code 1, expected 0"})

	var buf strings.Builder
	report.Finalize().WriteText(&buf)
	out := buf.String()

	Expect(t, strings.Contains(out, "1 unexpected failures")).ToBe(true)
	Expect(t, strings.Contains(out, "1 unexpected passes")).ToBe(true)
	// unexpected passes are called out as stale xfail entries
	Expect(t, strings.Contains(out, "UNEXPECTED PASS wdl-1.1 fixed.wdl: stale xfail entry (tracked issue #12)")).ToBe(true)
	Expect(t, strings.Contains(out, "FAIL wdl-1.1 broken.wdl: exit code 1, expected 0")).ToBe(true)
	Expect(t, strings.Contains(out, "failure")).ToBe(true)
}
