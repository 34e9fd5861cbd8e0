package pool

import "fmt"

// Code is the closed status vocabulary exposed at the package boundary. Every
// fallible operation resolves to exactly one of these.
type Code int

const (
	CodeOK Code = iota
	CodeAllocationFailed
	CodeNotFreed
	CodeCalledAgain
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeAllocationFailed:
		return "allocation-failed"
	case CodeNotFreed:
		return "not-freed"
	case CodeCalledAgain:
		return "called-again"
	default:
		return "unknown"
	}
}

// Status is the error type returned by every fallible Pool or registry
// operation. It carries one of the four Codes plus a human-readable detail;
// callers match on the sentinel values below with errors.Is, not on Code
// directly, since a finer-grained sentinel (ErrNoMemory) may share a Code
// with a coarser one (ErrAllocationFailed) without being the same failure.
type Status struct {
	code Code
	msg  string
}

// Code reports the closed status this error maps to.
func (s *Status) Code() Code { return s.code }

func (s *Status) Error() string { return fmt.Sprintf("pool: %s: %s", s.code, s.msg) }

func newStatus(c Code, msg string) *Status { return &Status{code: c, msg: msg} }

var (
	// ErrAllocationFailed covers host allocator failure and any step of
	// Open/Allocate that could not complete for want of memory it did not
	// already own.
	ErrAllocationFailed = newStatus(CodeAllocationFailed, "host allocator failed")

	// ErrNoMemory is the finer-grained form of ErrAllocationFailed returned
	// by Allocate when no gap is large enough for the request.
	ErrNoMemory = newStatus(CodeAllocationFailed, "no gap large enough to satisfy the request")

	// ErrNotFreed is returned by Close when a pool still has live
	// allocations or more than one gap, and by Release when the handle
	// does not name a live allocation.
	ErrNotFreed = newStatus(CodeNotFreed, "preconditions were not met")

	// ErrCalledAgain is returned when Init/Free are called out of the
	// sequence the registry requires (e.g. Free before Init, or Init
	// twice).
	ErrCalledAgain = newStatus(CodeCalledAgain, "operation called out of sequence")
)
