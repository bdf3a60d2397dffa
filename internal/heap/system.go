package heap

import "unsafe"

// SystemAllocator satisfies allocations with Go-managed byte slices. Each live
// allocation keeps its backing slice referenced in a map so the garbage
// collector cannot reclaim or move it while the raw pointer is outstanding;
// Free drops the reference.
type SystemAllocator struct {
	slices    map[unsafe.Pointer][]byte
	alignment uintptr
}

// NewSystemAllocator creates a slice-backed allocator.
func NewSystemAllocator() *SystemAllocator {
	return &SystemAllocator{
		slices:    make(map[unsafe.Pointer][]byte),
		alignment: DefaultAlignment,
	}
}

// Alloc allocates size bytes and returns a pointer to the first byte.
func (sa *SystemAllocator) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	alignedSize := alignUp(size, sa.alignment)
	if alignedSize < size {
		return nil // overflow
	}

	slice := make([]byte, alignedSize)
	ptr := unsafe.Pointer(&slice[0])
	sa.slices[ptr] = slice

	return ptr
}

// AllocZeroed allocates n*size bytes. Go slices are born zeroed, so no
// explicit clear is needed here. Returns nil if the product overflows.
func (sa *SystemAllocator) AllocZeroed(n, size uintptr) unsafe.Pointer {
	total := n * size
	if n != 0 && total/n != size {
		return nil
	}

	return sa.Alloc(total)
}

// Realloc resizes an allocation, preserving the prefix that fits.
func (sa *SystemAllocator) Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer {
	if ptr == nil {
		return sa.Alloc(newSize)
	}

	if newSize == 0 {
		sa.Free(ptr)
		return nil
	}

	newPtr := sa.Alloc(newSize)
	if newPtr == nil {
		return nil
	}

	if old, ok := sa.slices[ptr]; ok {
		copySize := uintptr(len(old))
		if newSize < copySize {
			copySize = newSize
		}

		copyMemory(newPtr, ptr, copySize)
		delete(sa.slices, ptr)
	}

	return newPtr
}

// Free releases an allocation. Unknown pointers are ignored.
func (sa *SystemAllocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	delete(sa.slices, ptr)
}

// SizeOf reports the usable (aligned) size of a live allocation.
func (sa *SystemAllocator) SizeOf(ptr unsafe.Pointer) (uintptr, bool) {
	slice, ok := sa.slices[ptr]
	if !ok {
		return 0, false
	}

	return uintptr(len(slice)), true
}

// LiveAllocations returns the number of allocations currently outstanding.
func (sa *SystemAllocator) LiveAllocations() int {
	return len(sa.slices)
}
