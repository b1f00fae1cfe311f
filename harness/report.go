package harness

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// CaseRecord is one classified test case of a run.
type CaseRecord struct {
	Version string  `json:"version"`
	Name    string  `json:"name"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"` // exclusion annotation, verbatim
	Time    float64 `json:"time"`             // engine wall time in seconds
	Detail  string  `json:"detail,omitempty"` // mismatch or error note
}

// VersionTally is the per-category count of one spec version.
type VersionTally struct {
	Passed         int `json:"passed"`
	ExpectedFail   int `json:"expected_fail"`
	UnexpectedFail int `json:"unexpected_fail"`
	UnexpectedPass int `json:"unexpected_pass"`
	Skipped        int `json:"skipped"`
	Cancelled      int `json:"cancelled"`
	Total          int `json:"total"`
}

// RunReport is the frozen result of a conformance run.
type RunReport struct {
	RunID             string                   `json:"run_id"`
	Date              string                   `json:"date"`
	Versions          map[string]*VersionTally `json:"versions"`
	Records           []CaseRecord             `json:"records"`
	Warnings          []string                 `json:"warnings,omitempty"`
	DiscoveryFailures []string                 `json:"discovery_failures,omitempty"`
	TotalTime         float64                  `json:"total_time"`
	Success           bool                     `json:"success"`
}

// Report accumulates case outcomes while a run is in flight. Records are
// append-only and serialized by a mutex so concurrent workers never lose
// updates. Finalize freezes the report; later records are dropped.
type Report struct {
	sync.RWMutex
	runID     string
	started   time.Time
	records   []CaseRecord
	warnings  []string
	discovery []string
	finalized bool
}

// NewReport ...
func NewReport(runID string) *Report {
	return &Report{runID: runID, started: time.Now()}
}

// Record appends one classified case. Safe for concurrent use.
func (r *Report) Record(record CaseRecord) {
	r.Lock()
	defer r.Unlock()
	if r.finalized {
		return
	}
	r.records = append(r.records, record)
}

// Warn notes a non-fatal problem, e.g. a stale exclusion entry.
func (r *Report) Warn(format string, args ...interface{}) {
	r.Lock()
	defer r.Unlock()
	if r.finalized {
		return
	}
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

// DiscoveryFailed marks a spec version whose fixtures could not be
// enumerated. The rest of the run continues without it.
func (r *Report) DiscoveryFailed(err *DiscoveryError) {
	r.Lock()
	defer r.Unlock()
	if r.finalized {
		return
	}
	r.discovery = append(r.discovery, err.Error())
}

// Foreach applies f to every record collected so far.
func (r *Report) Foreach(f func(record CaseRecord)) {
	r.RLock()
	defer r.RUnlock()
	for _, record := range r.records {
		f(record)
	}
}

// Finalize freezes the report and computes per-version tallies. The run
// is successful iff no case came out UNEXPECTED_FAIL, UNEXPECTED_PASS or
// CANCELLED; expected failures and skips do not count against success.
func (r *Report) Finalize() *RunReport {
	r.Lock()
	defer r.Unlock()
	r.finalized = true

	records := make([]CaseRecord, len(r.records))
	copy(records, r.records)
	sort.Slice(records, func(i, j int) bool {
		if records[i].Version != records[j].Version {
			return records[i].Version < records[j].Version
		}
		return records[i].Name < records[j].Name
	})

	report := &RunReport{
		RunID:             r.runID,
		Date:              r.started.Format(time.RFC3339),
		Versions:          map[string]*VersionTally{},
		Records:           records,
		Warnings:          append([]string{}, r.warnings...),
		DiscoveryFailures: append([]string{}, r.discovery...),
		TotalTime:         time.Since(r.started).Seconds(),
		Success:           true,
	}
	for _, record := range records {
		tally := report.Versions[record.Version]
		if tally == nil {
			tally = &VersionTally{}
			report.Versions[record.Version] = tally
		}
		tally.Total++
		switch record.Outcome {
		case OutcomePass:
			tally.Passed++
		case OutcomeExpectedFail:
			tally.ExpectedFail++
		case OutcomeUnexpectedFail:
			tally.UnexpectedFail++
			report.Success = false
		case OutcomeUnexpectedPass:
			tally.UnexpectedPass++
			report.Success = false
		case OutcomeSkipped:
			tally.Skipped++
		case OutcomeCancelled:
			tally.Cancelled++
			report.Success = false
		}
	}
	return report
}

// WriteText renders the human-readable summary. Unexpected passes are
// called out one by one: each is a stale xfail annotation whose entry
// should be removed.
func (report *RunReport) WriteText(w io.Writer) {
	versions := make([]string, 0, len(report.Versions))
	for v := range report.Versions {
		versions = append(versions, v)
	}
	sort.Strings(versions)

	for _, v := range versions {
		t := report.Versions[v]
		fmt.Fprintf(w, "%s: %d passed, %d expected failures, %d unexpected failures, %d unexpected passes, %d skipped",
			v, t.Passed, t.ExpectedFail, t.UnexpectedFail, t.UnexpectedPass, t.Skipped)
		if t.Cancelled > 0 {
			fmt.Fprintf(w, ", %d cancelled", t.Cancelled)
		}
		fmt.Fprintf(w, " (%d total)\n", t.Total)
	}
	for _, record := range report.Records {
		switch record.Outcome {
		case OutcomeUnexpectedFail:
			fmt.Fprintf(w, "FAIL %s %s", record.Version, record.Name)
			if record.Detail != "" {
				fmt.Fprintf(w, ": %s", record.Detail)
			}
			fmt.Fprintln(w)
		case OutcomeUnexpectedPass:
			fmt.Fprintf(w, "UNEXPECTED PASS %s %s: stale xfail entry", record.Version, record.Name)
			if record.Reason != "" {
				fmt.Fprintf(w, " (%s)", record.Reason)
			}
			fmt.Fprintln(w)
		}
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "WARN %s\n", warning)
	}
	for _, failure := range report.DiscoveryFailures {
		fmt.Fprintf(w, "ERROR %s\n", failure)
	}
	if report.Success && len(report.DiscoveryFailures) == 0 {
		fmt.Fprintln(w, "success")
	} else {
		fmt.Fprintln(w, "failure")
	}
}
