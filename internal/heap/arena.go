package heap

import (
	"fmt"
	"unsafe"
)

// ArenaAllocator is a bump allocator over a single fixed buffer. Free is a
// no-op; memory is reclaimed only by Reset, after which previously handed out
// addresses are reissued. That reuse makes the arena useful for exercising
// address-recycling behavior in the tracking layer.
type ArenaAllocator struct {
	buffer    []byte
	sizes     map[unsafe.Pointer]uintptr
	current   uintptr
	size      uintptr
	peakUsage uintptr
	alignment uintptr
}

// NewArenaAllocator creates an arena of the given size.
func NewArenaAllocator(size uintptr) (*ArenaAllocator, error) {
	if size == 0 {
		return nil, fmt.Errorf("arena size must be greater than 0")
	}

	return &ArenaAllocator{
		buffer:    make([]byte, size),
		sizes:     make(map[unsafe.Pointer]uintptr),
		size:      size,
		alignment: DefaultAlignment,
	}, nil
}

// Alloc bumps the arena cursor. Returns nil when the arena is exhausted.
func (aa *ArenaAllocator) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	alignedSize := alignUp(size, aa.alignment)
	if aa.current+alignedSize > aa.size {
		return nil // out of arena space
	}

	ptr := unsafe.Pointer(&aa.buffer[aa.current])
	aa.current += alignedSize
	aa.sizes[ptr] = alignedSize

	if aa.current > aa.peakUsage {
		aa.peakUsage = aa.current
	}

	return ptr
}

// AllocZeroed allocates n*size bytes and clears them. The clear matters after
// a Reset, when the region may hold stale bytes from the previous cycle.
// Returns nil if the product overflows.
func (aa *ArenaAllocator) AllocZeroed(n, size uintptr) unsafe.Pointer {
	total := n * size
	if n != 0 && total/n != size {
		return nil
	}

	ptr := aa.Alloc(total)
	if ptr == nil {
		return nil
	}

	zeroMemory(ptr, total)

	return ptr
}

// Realloc allocates a fresh region and copies over the prefix that fits. The
// old region is not reclaimed until Reset.
func (aa *ArenaAllocator) Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer {
	if ptr == nil {
		return aa.Alloc(newSize)
	}

	if newSize == 0 {
		aa.Free(ptr)
		return nil
	}

	newPtr := aa.Alloc(newSize)
	if newPtr == nil {
		return nil
	}

	if oldSize, ok := aa.sizes[ptr]; ok {
		copySize := oldSize
		if newSize < copySize {
			copySize = newSize
		}

		copyMemory(newPtr, ptr, copySize)
		delete(aa.sizes, ptr)
	}

	return newPtr
}

// Free is a no-op; individual arena allocations cannot be reclaimed.
func (aa *ArenaAllocator) Free(ptr unsafe.Pointer) {
	delete(aa.sizes, ptr)
}

// SizeOf reports the usable size of a live arena allocation.
func (aa *ArenaAllocator) SizeOf(ptr unsafe.Pointer) (uintptr, bool) {
	size, ok := aa.sizes[ptr]
	return size, ok
}

// Reset rewinds the arena cursor, allowing all memory to be reissued.
func (aa *ArenaAllocator) Reset() {
	aa.current = 0
	aa.sizes = make(map[unsafe.Pointer]uintptr)
}

// PeakUsage returns the high-water mark of arena usage in bytes.
func (aa *ArenaAllocator) PeakUsage() uintptr {
	return aa.peakUsage
}
