//go:build linux || darwin

package heap

import (
	"testing"
	"unsafe"
)

func TestMmapAllocator(t *testing.T) {
	alloc, err := NewMmapAllocator()
	if err != nil {
		t.Fatalf("Failed to create mmap allocator: %v", err)
	}
	defer alloc.Close()

	t.Run("BasicAllocation", func(t *testing.T) {
		ptr := alloc.Alloc(100)
		if ptr == nil {
			t.Fatal("Allocation failed")
		}

		data := unsafe.Slice((*byte)(ptr), 100)
		for i := range data {
			data[i] = byte(i)
		}

		for i := range data {
			if data[i] != byte(i) {
				t.Errorf("Data corruption at index %d", i)
			}
		}

		alloc.Free(ptr)
	})

	t.Run("PageGranularity", func(t *testing.T) {
		ptr := alloc.Alloc(1)
		if ptr == nil {
			t.Fatal("Allocation failed")
		}

		size, ok := alloc.SizeOf(ptr)
		if !ok {
			t.Fatal("SizeOf missed a live mapping")
		}

		if size != pageSize {
			t.Errorf("Expected one page (%d bytes), got %d", pageSize, size)
		}

		alloc.Free(ptr)
	})

	t.Run("ZeroFilled", func(t *testing.T) {
		ptr := alloc.AllocZeroed(512, 4)
		if ptr == nil {
			t.Fatal("Zeroed allocation failed")
		}

		data := unsafe.Slice((*byte)(ptr), 2048)
		for i, b := range data {
			if b != 0 {
				t.Fatalf("Byte %d not zero", i)
			}
		}

		alloc.Free(ptr)
	})

	t.Run("ReallocPreservesData", func(t *testing.T) {
		ptr := alloc.Alloc(256)
		if ptr == nil {
			t.Fatal("Allocation failed")
		}

		data := unsafe.Slice((*byte)(ptr), 256)
		for i := range data {
			data[i] = byte(i % 251)
		}

		grown := alloc.Realloc(ptr, 2*pageSize)
		if grown == nil {
			t.Fatal("Realloc failed")
		}

		grownData := unsafe.Slice((*byte)(grown), 256)
		for i := range grownData {
			if grownData[i] != byte(i%251) {
				t.Errorf("Data corruption after realloc at index %d", i)
			}
		}

		alloc.Free(grown)
	})

	t.Run("FreeUnknownIgnored", func(t *testing.T) {
		var local int

		alloc.Free(unsafe.Pointer(&local)) // must not panic or unmap anything
	})
}
