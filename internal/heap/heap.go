// Package heap provides the real allocators that back the tracking layer.
// Implementations hand out raw pointers into memory they own; callers treat
// the returned addresses as opaque identities. The tracker's own bookkeeping
// never flows through these allocators.
package heap

import "unsafe"

// Allocator is the underlying allocator contract. Alloc and AllocZeroed
// return nil on failure. Realloc follows the usual semantics: a nil pointer
// behaves like Alloc, a zero size behaves like Free and returns nil.
type Allocator interface {
	Alloc(size uintptr) unsafe.Pointer
	AllocZeroed(n, size uintptr) unsafe.Pointer
	Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer
	Free(ptr unsafe.Pointer)

	// SizeOf reports the usable size of a live allocation, false if the
	// pointer is unknown to this allocator.
	SizeOf(ptr unsafe.Pointer) (uintptr, bool)
}

// DefaultAlignment is the allocation granularity used by the slice-backed
// and arena allocators.
const DefaultAlignment = 8

// alignUp aligns a size up to the nearest multiple of alignment.
// Alignment must be a power of two.
func alignUp(size, alignment uintptr) uintptr {
	return (size + alignment - 1) &^ (alignment - 1)
}

// copyMemory copies size bytes from src to dst.
func copyMemory(dst, src unsafe.Pointer, size uintptr) {
	dstSlice := unsafe.Slice((*byte)(dst), size)
	srcSlice := unsafe.Slice((*byte)(src), size)
	copy(dstSlice, srcSlice)
}

// zeroMemory clears size bytes starting at ptr.
func zeroMemory(ptr unsafe.Pointer, size uintptr) {
	s := unsafe.Slice((*byte)(ptr), size)
	for i := range s {
		s[i] = 0
	}
}
