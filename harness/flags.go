package harness

import "time"

// HarnessFlags is a set of flags controlling a conformance run.
// The zero value of this set can be used as default.
type HarnessFlags struct {
	// Scheduling Related
	MaxParallelLimit int // Max test cases run in parallel, values < 1 mean serial

	// Runtime Related
	TotalTimeLimit time.Duration // The overall running time limit of whole run
	CaseTimeLimit  time.Duration // The separated running time limit of each engine invocation

	// Selection Related
	OnlyNames []string // Run only the named cases when non-empty
}

const DefaultCaseTimeLimit = 5 * time.Minute
