package alloc

import (
	"fmt"

	"github.com/joshuapare/smallobj/internal/buf"
	"github.com/joshuapare/smallobj/internal/rawmem"
)

// HeapAllocator is the default GeneralAllocator. Buffers come from the Go heap
// and are collected once the caller drops them; Deallocate only updates the
// accounting.
type HeapAllocator struct {
	// Limit caps live bytes when > 0. Requests beyond it fail with ErrOutOfMemory.
	Limit int

	live      int
	liveBytes int
	allocs    int
	deallocs  int
}

// Allocate returns make([]byte, size). Sizes above rawmem.MaxAlloc fail with
// ErrOutOfMemory.
func (h *HeapAllocator) Allocate(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadSize, size)
	}
	if size > rawmem.MaxAlloc {
		return nil, fmt.Errorf("%w: general allocator: %d bytes exceeds %d", ErrOutOfMemory, size, rawmem.MaxAlloc)
	}
	total, ok := buf.AddOverflowSafe(h.liveBytes, size)
	if h.Limit > 0 && (!ok || total > h.Limit) {
		return nil, fmt.Errorf("%w: general allocator: want %d bytes, %d of %d live",
			ErrOutOfMemory, size, h.liveBytes, h.Limit)
	}
	h.live++
	h.liveBytes += size
	h.allocs++
	return make([]byte, size), nil
}

// Deallocate credits p's capacity back against Limit.
func (h *HeapAllocator) Deallocate(p []byte) {
	if p == nil {
		return
	}
	h.live--
	h.liveBytes -= cap(p)
	h.deallocs++
}

// Live returns the number of outstanding allocations.
func (h *HeapAllocator) Live() int { return h.live }

// LiveBytes returns the number of outstanding bytes.
func (h *HeapAllocator) LiveBytes() int { return h.liveBytes }

// Allocs returns the number of successful Allocate calls.
func (h *HeapAllocator) Allocs() int { return h.allocs }

// Deallocs returns the number of Deallocate calls.
func (h *HeapAllocator) Deallocs() int { return h.deallocs }

// Compile-time interface check
var _ GeneralAllocator = (*HeapAllocator)(nil)
