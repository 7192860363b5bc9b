//go:build !linux && !darwin && !freebsd

package rawmem

// Mmap falls back to heap buffers where anonymous mappings are not wired up.
type Mmap struct{}

// Alloc returns make([]byte, n).
func (Mmap) Alloc(n int) ([]byte, error) { return Heap{}.Alloc(n) }

// Free is a no-op.
func (Mmap) Free([]byte) error { return nil }
