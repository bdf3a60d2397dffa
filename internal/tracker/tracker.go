// Package tracker implements allocation tracking and misuse diagnostics on
// top of a real allocator. It maintains a ledger of live allocations and a
// history of released identities, classifies every free/realloc against them,
// and produces a deterministic end-of-run report covering leaks, double
// frees, and invalid frees.
//
// The tracker assumes a single logical stream of calls; concurrent use from
// multiple goroutines is out of scope. Its own bookkeeping lives on the Go
// heap and never flows through the tracked allocator.
package tracker

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unsafe"

	"github.com/heaptrace/heaptrace/internal/heap"
)

var (
	// ErrAllocationFailed indicates the underlying allocator returned no
	// memory. No tracking state is mutated.
	ErrAllocationFailed = errors.New("allocation failed")

	// ErrResizeFailed indicates the underlying resize failed after the old
	// record was already removed from the ledger. The old block is no longer
	// tracked even though it may still be valid.
	ErrResizeFailed = errors.New("resize failed")
)

// Stats holds the process-wide aggregate counters. All fields are
// monotonically non-decreasing for the lifetime of a tracker.
type Stats struct {
	AllocCalls     uint64
	FreeCalls      uint64
	BytesAllocated uint64
	BytesFreed     uint64
	DoubleFrees    uint64
	InvalidFrees   uint64
}

// Tracker is one tracking session. All instrumented call sites in a process
// share a single session, injected as the Default singleton at the
// integration boundary; the core logic here is instance-based so it can be
// tested without global state.
type Tracker struct {
	heap    heap.Allocator
	ledger  *ledger
	history *history
	stats   Stats
	warn    io.Writer
	out     io.Writer

	// armed latches that a shutdown report is owed; reported latches that it
	// has been delivered. Set-once, read-many under the single-caller model.
	armed    bool
	reported bool

	// lostBytes accounts for blocks dropped from tracking by failed resizes,
	// keeping the ledger/counter invariant checkable in debug builds.
	lostBytes uintptr
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithWarnWriter redirects per-call diagnostics (default os.Stderr).
func WithWarnWriter(w io.Writer) Option {
	return func(t *Tracker) { t.warn = w }
}

// WithReportWriter redirects the shutdown report (default os.Stdout).
func WithReportWriter(w io.Writer) Option {
	return func(t *Tracker) { t.out = w }
}

// New creates a tracking session over the given underlying allocator.
func New(alloc heap.Allocator, opts ...Option) *Tracker {
	t := &Tracker{
		heap:    alloc,
		ledger:  newLedger(),
		history: newHistory(),
		warn:    os.Stderr,
		out:     os.Stdout,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// arm latches shutdown-report delivery. Every entry point calls this before
// any other bookkeeping so the report fires even if the session ends without
// further activity.
func (t *Tracker) arm() {
	if !t.armed {
		t.armed = true
	}
}

// recordAllocation registers a successful allocation in the ledger and bumps
// the aggregate counters.
func (t *Tracker) recordAllocation(ptr unsafe.Pointer, size uintptr, org Origin) {
	t.ledger.record(ptr, size, org)
	t.stats.AllocCalls++
	t.stats.BytesAllocated += uint64(size)
}

// Alloc allocates size bytes through the underlying allocator and records
// the returned identity. On failure it emits a diagnostic and returns
// ErrAllocationFailed without touching the ledger.
func (t *Tracker) Alloc(size uintptr, org Origin) (unsafe.Pointer, error) {
	t.arm()

	ptr := t.heap.Alloc(size)
	if ptr == nil {
		fmt.Fprintf(t.warn, "heaptrace: alloc(%d) failed at %s\n", size, org)
		return nil, fmt.Errorf("alloc(%d) at %s: %w", size, org, ErrAllocationFailed)
	}

	t.recordAllocation(ptr, size, org)
	debugVerify(t)

	return ptr, nil
}

// AllocZeroed allocates n*size zeroed bytes; the recorded size is n*size.
// A product that overflows uintptr fails like any other allocation failure.
func (t *Tracker) AllocZeroed(n, size uintptr, org Origin) (unsafe.Pointer, error) {
	t.arm()

	total := n * size
	if n != 0 && total/n != size {
		fmt.Fprintf(t.warn, "heaptrace: zero alloc(%d,%d) overflows at %s\n", n, size, org)
		return nil, fmt.Errorf("zero alloc(%d,%d) at %s: %w", n, size, org, ErrAllocationFailed)
	}

	ptr := t.heap.AllocZeroed(n, size)
	if ptr == nil {
		fmt.Fprintf(t.warn, "heaptrace: zero alloc(%d,%d) failed at %s\n", n, size, org)
		return nil, fmt.Errorf("zero alloc(%d,%d) at %s: %w", n, size, org, ErrAllocationFailed)
	}

	t.recordAllocation(ptr, total, org)
	debugVerify(t)

	return ptr, nil
}

// Realloc resizes an allocation. A nil pointer behaves exactly like Alloc; a
// zero newSize behaves exactly like Free and returns nil. A pointer not found
// in the ledger is classified against the history and the real resize is
// still forwarded: the tracker observes, it does not enforce, and it cannot
// account for the result either way.
func (t *Tracker) Realloc(ptr unsafe.Pointer, newSize uintptr, org Origin) (unsafe.Pointer, error) {
	t.arm()

	if ptr == nil {
		return t.Alloc(newSize, org)
	}

	if newSize == 0 {
		t.Free(ptr, org)
		return nil, nil
	}

	oldSize, found := t.ledger.take(ptr)
	if !found {
		t.classifySuspect(ptr, org, opRealloc)
		debugVerify(t)

		return t.heap.Realloc(ptr, newSize), nil
	}

	newPtr := t.heap.Realloc(ptr, newSize)
	if newPtr == nil {
		fmt.Fprintf(t.warn, "heaptrace: realloc(%p,%d) failed at %s\n", ptr, newSize, org)
		// The old record is already gone; its block is lost to tracking.
		t.lostBytes += oldSize
		debugVerify(t)

		return nil, fmt.Errorf("realloc(%p,%d) at %s: %w", ptr, newSize, org, ErrResizeFailed)
	}

	t.history.insert(ptr)
	t.stats.BytesFreed += uint64(oldSize)
	t.recordAllocation(newPtr, newSize, org)
	debugVerify(t)

	return newPtr, nil
}

// Free releases an allocation. The free-call counter is incremented before
// anything else; a nil pointer is then a no-op. A pointer not found in the
// ledger is classified against the history and the real free is suppressed.
func (t *Tracker) Free(ptr unsafe.Pointer, org Origin) {
	t.arm()
	t.stats.FreeCalls++

	if ptr == nil {
		return
	}

	size, found := t.ledger.take(ptr)
	if !found {
		t.classifySuspect(ptr, org, opFree)
		debugVerify(t)

		return
	}

	t.stats.BytesFreed += uint64(size)
	t.history.insert(ptr)
	t.heap.Free(ptr)
	debugVerify(t)
}

type suspectOp int

const (
	opFree suspectOp = iota
	opRealloc
)

// classifySuspect handles a pointer that is not in the ledger: an identity in
// the history is a double free, anything else was never obtained from the
// tracked allocator.
func (t *Tracker) classifySuspect(ptr unsafe.Pointer, org Origin, op suspectOp) {
	if t.history.contains(ptr) {
		t.stats.DoubleFrees++
		fmt.Fprintf(t.warn, "heaptrace WARNING: double free of pointer %p at %s\n", ptr, org)

		return
	}

	t.stats.InvalidFrees++

	verb := "free of"
	if op == opRealloc {
		verb = "realloc on"
	}

	fmt.Fprintf(t.warn, "heaptrace WARNING: %s untracked pointer %p at %s\n", verb, ptr, org)
}

// Finalize delivers the shutdown report exactly once. It is a no-op if no
// tracked operation ever ran, and on every call after the first.
func (t *Tracker) Finalize() {
	if !t.armed || t.reported {
		return
	}

	t.reported = true
	t.BuildReport().WriteText(t.out)
}

// Stats returns a copy of the aggregate counters.
func (t *Tracker) Stats() Stats {
	return t.stats
}

// Snapshot returns every live allocation record, most recently allocated
// first. Callers must not depend on any ordering beyond "every live record
// appears exactly once."
func (t *Tracker) Snapshot() []AllocationRecord {
	return t.ledger.snapshot()
}

// LiveBlocks returns the number of currently tracked allocations.
func (t *Tracker) LiveBlocks() int {
	return t.ledger.liveBlocks()
}

// ReleasedIdentities returns the number of distinct identities ever validly
// released in this session.
func (t *Tracker) ReleasedIdentities() int {
	return t.history.size()
}
