package tracker

import (
	"unsafe"

	"github.com/heaptrace/heaptrace/internal/heap"
)

// Default is the process-wide tracking session. Instrumented call sites go
// through the package-level wrappers below; everything else in this package
// is instance-based and ignores Default entirely.
var Default *Tracker

// Initialize installs the process-wide tracker.
func Initialize(alloc heap.Allocator, opts ...Option) {
	Default = New(alloc, opts...)
}

// Shutdown finalizes and discards the process-wide tracker.
func Shutdown() {
	if Default != nil {
		Default.Finalize()
		Default = nil
	}
}

// Alloc allocates through the process-wide tracker.
func Alloc(size uintptr, org Origin) (unsafe.Pointer, error) {
	if Default == nil {
		panic("tracker not initialized")
	}

	return Default.Alloc(size, org)
}

// AllocZeroed allocates zeroed memory through the process-wide tracker.
func AllocZeroed(n, size uintptr, org Origin) (unsafe.Pointer, error) {
	if Default == nil {
		panic("tracker not initialized")
	}

	return Default.AllocZeroed(n, size, org)
}

// Realloc resizes through the process-wide tracker.
func Realloc(ptr unsafe.Pointer, newSize uintptr, org Origin) (unsafe.Pointer, error) {
	if Default == nil {
		panic("tracker not initialized")
	}

	return Default.Realloc(ptr, newSize, org)
}

// Free releases through the process-wide tracker.
func Free(ptr unsafe.Pointer, org Origin) {
	if Default == nil {
		panic("tracker not initialized")
	}

	Default.Free(ptr, org)
}
