package harness

import "github.com/stxue1/wdltest"

// Outcome is the classified result of one test case: the combination of
// what the engine actually did and what the exclusions declared.
type Outcome string

const (
	OutcomePass           Outcome = "PASS"
	OutcomeExpectedFail   Outcome = "EXPECTED_FAIL"
	OutcomeUnexpectedFail Outcome = "UNEXPECTED_FAIL"
	OutcomeUnexpectedPass Outcome = "UNEXPECTED_PASS"
	OutcomeSkipped        Outcome = "SKIPPED"
	OutcomeCancelled      Outcome = "CANCELLED"
)

// Classify derives the outcome of one executed case.
//
//	SKIP                     -> SKIPPED (the engine is never invoked)
//	NORMAL + match           -> PASS
//	NORMAL + mismatch        -> UNEXPECTED_FAIL
//	XFAIL  + mismatch        -> EXPECTED_FAIL
//	XFAIL  + match           -> UNEXPECTED_PASS
//
// A result tagged CANCELLED short-circuits to the CANCELLED outcome;
// TIMEOUT, MALFORMED_OUTPUT and START_ERROR results never match.
func Classify(c TestCase, result ExecutionResult, disposition Disposition) Outcome {
	if disposition.Kind == DispositionSkip {
		return OutcomeSkipped
	}
	if result.Tag == TagCancelled {
		return OutcomeCancelled
	}
	match := Matches(c, result)
	if disposition.Kind == DispositionXFail {
		if match {
			return OutcomeUnexpectedPass
		}
		return OutcomeExpectedFail
	}
	if match {
		return OutcomePass
	}
	return OutcomeUnexpectedFail
}

// Matches reports whether the actual result meets the case's declared
// expectations: the exit code must equal the expected one, and when the
// sidecar declares output bindings they must be equal under WDL value
// equality (exact, or within the sidecar's float tolerance).
func Matches(c TestCase, result ExecutionResult) bool {
	if result.Tag != TagNone {
		return false
	}
	if result.ExitCode != c.ExitCode {
		return false
	}
	if c.Output != nil {
		return wdltest.EqualValues(result.Outputs, c.Output, c.Tolerance)
	}
	return true
}
