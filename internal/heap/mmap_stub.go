//go:build !(linux || darwin)

package heap

import "fmt"

// NewMmapAllocator is unavailable on platforms without anonymous mmap
// support. Callers should fall back to NewSystemAllocator.
func NewMmapAllocator() (*SystemAllocator, error) {
	return nil, fmt.Errorf("mmap allocator is not supported on this platform")
}
