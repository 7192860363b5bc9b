package alloc

// Allocator defines the small-object allocation surface.
//
// Implementations:
//   - SmallObjAllocator: the single-threaded pooled allocator
//   - Locked: SmallObjAllocator behind a mutex
type Allocator interface {
	// Allocate returns a block of size bytes or an error wrapping ErrOutOfMemory.
	Allocate(size int) ([]byte, error)

	// TryAllocate returns a block of size bytes or nil.
	TryAllocate(size int) []byte

	// Deallocate releases p, which came from Allocate(size).
	Deallocate(p []byte, size int) error

	// DeallocateUnsized releases p when its size is not known.
	DeallocateUnsized(p []byte) error

	// TrimExcessMemory releases spare chunks and reports whether any were released.
	TrimExcessMemory() bool

	// MaxObjectSize returns the largest size served from pooled chunks.
	MaxObjectSize() int

	// Alignment returns the size-class granularity.
	Alignment() int
}

// GeneralAllocator serves requests above MaxObjectSize.
type GeneralAllocator interface {
	// Allocate returns size bytes or an error wrapping ErrOutOfMemory.
	Allocate(size int) ([]byte, error)

	// Deallocate releases p.
	Deallocate(p []byte)
}
