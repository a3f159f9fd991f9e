package lib

// RunMode indicates how the processes of a run talk to one another.
type RunMode int

const (
	// LocalMode runs every rank as a goroutine in a single process.
	LocalMode RunMode = iota
	// TCPMode runs one rank per process, connected over TCP.
	TCPMode
)

// CheckStrictness indicates how functions related to the "check" mode
// should behave when it encounters an error.
type CheckStrictness int

const (
	CrashOnError CheckStrictness = iota
	WarnOnError
)
