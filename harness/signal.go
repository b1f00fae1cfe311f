package harness

// Signal to guide a running harness
type Signal string

const (
	SignalAbort Signal = "abort"
)
