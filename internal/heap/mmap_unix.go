//go:build linux || darwin

package heap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const pageSize = 4096

// MmapAllocator satisfies allocations with anonymous memory mappings. Every
// allocation occupies a whole number of pages, so it is wasteful for small
// blocks but gives real OS-level allocation and release semantics: freed
// pages go back to the kernel and their addresses may genuinely be reissued.
type MmapAllocator struct {
	regions map[unsafe.Pointer][]byte
}

// NewMmapAllocator creates an mmap-backed allocator.
func NewMmapAllocator() (*MmapAllocator, error) {
	return &MmapAllocator{
		regions: make(map[unsafe.Pointer][]byte),
	}, nil
}

// Alloc maps enough anonymous pages to hold size bytes.
func (ma *MmapAllocator) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	length := alignUp(size, pageSize)
	if length < size {
		return nil // overflow
	}

	region, err := unix.Mmap(-1, 0, int(length),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil
	}

	ptr := unsafe.Pointer(&region[0])
	ma.regions[ptr] = region

	return ptr
}

// AllocZeroed allocates n*size bytes. Fresh anonymous mappings are
// zero-filled by the kernel. Returns nil if the product overflows.
func (ma *MmapAllocator) AllocZeroed(n, size uintptr) unsafe.Pointer {
	total := n * size
	if n != 0 && total/n != size {
		return nil
	}

	return ma.Alloc(total)
}

// Realloc maps a new region, copies the overlapping prefix, and unmaps the
// old region.
func (ma *MmapAllocator) Realloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer {
	if ptr == nil {
		return ma.Alloc(newSize)
	}

	if newSize == 0 {
		ma.Free(ptr)
		return nil
	}

	newPtr := ma.Alloc(newSize)
	if newPtr == nil {
		return nil
	}

	if old, ok := ma.regions[ptr]; ok {
		copySize := uintptr(len(old))
		if newSize < copySize {
			copySize = newSize
		}

		copyMemory(newPtr, ptr, copySize)
		delete(ma.regions, ptr)
		_ = unix.Munmap(old)
	}

	return newPtr
}

// Free unmaps an allocation. Unknown pointers are ignored.
func (ma *MmapAllocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	region, ok := ma.regions[ptr]
	if !ok {
		return
	}

	delete(ma.regions, ptr)
	_ = unix.Munmap(region)
}

// SizeOf reports the mapped size of a live allocation.
func (ma *MmapAllocator) SizeOf(ptr unsafe.Pointer) (uintptr, bool) {
	region, ok := ma.regions[ptr]
	if !ok {
		return 0, false
	}

	return uintptr(len(region)), true
}

// Close unmaps every outstanding region. Useful for tests and for tearing
// down a tracker session without leaking kernel mappings.
func (ma *MmapAllocator) Close() error {
	var firstErr error

	for ptr, region := range ma.regions {
		if err := unix.Munmap(region); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("munmap %p: %w", ptr, err)
		}

		delete(ma.regions, ptr)
	}

	return firstErr
}
