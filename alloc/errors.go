package alloc

import "errors"

var (
	// ErrOutOfMemory indicates that no block could be supplied, even after
	// trimming excess chunks and retrying once.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrBadConfig indicates an unusable page size, object size limit or alignment.
	ErrBadConfig = errors.New("alloc: bad configuration")

	// ErrBadSize indicates a negative allocation size.
	ErrBadSize = errors.New("alloc: bad size")

	// ErrNotOwned indicates a pointer that no chunk of the addressed size class owns.
	ErrNotOwned = errors.New("alloc: pointer not owned by size class")

	// ErrClosed indicates use of an allocator after Close.
	ErrClosed = errors.New("alloc: allocator closed")

	// ErrCorrupt indicates a damaged free list or cursor state. Fatal.
	ErrCorrupt = errors.New("alloc: free list corrupt")

	// ErrDoubleFree indicates a block released while already at the head of its
	// chunk's free list. Fatal.
	ErrDoubleFree = errors.New("alloc: double free")
)
