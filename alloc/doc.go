// Package alloc provides a pooled allocator for small, same-sized, short-lived objects.
//
// # Overview
//
// General allocation pays per-call bookkeeping that dominates when objects are a few
// dozen bytes and come and go at high frequency. This package pools such objects into
// fixed-size blocks carved from chunk buffers, giving O(1) allocation and, for the
// usual LIFO or sequential release patterns, O(1) deallocation.
//
// # Components
//
// Three layers, bottom-up:
//
//   - chunk: one raw buffer split into up to 255 equal blocks. Free blocks form an
//     intrusive singly linked list: the first byte of each free block holds the index
//     of the next one. No bitmap, no side array.
//   - FixedAllocator: one size class. Owns an ordered list of chunks and decides
//     which chunk serves each request and when chunks are created or released.
//   - SmallObjAllocator: one FixedAllocator per size class up to MaxObjectSize,
//     routing by size and handing larger requests to a GeneralAllocator.
//
// # Usage Example
//
//	a, err := alloc.New(nil) // DefaultConfig: 4KB pages, ≤256B objects, 4B classes
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	p, err := a.Allocate(10) // len 10, cap 12 (class of 12-byte blocks)
//	if err != nil {
//	    return err
//	}
//	copy(p, "0123456789")
//
//	// Later, release with the original size...
//	err = a.Deallocate(p, 10)
//
//	// ...or without it, on the slow path.
//	err = a.DeallocateUnsized(p)
//
// # Size Classes
//
// With alignment A and maximum M the allocator holds ceil(M/A) classes; class i
// serves blocks of (i+1)*A bytes. A request of n bytes (0 counts as 1) uses class
// ceil(n/A)-1. Each chunk holds PageBytes/blockSize blocks, clamped to [8, 255]:
//
//	DefaultConfig (4096, 256, 4):
//	  class  0:   4B blocks, 255 per chunk
//	  class  2:  12B blocks, 255 per chunk
//	  class 15:  64B blocks,  64 per chunk
//	  class 63: 256B blocks,  16 per chunk
//
// # Chunk Lifecycle
//
// A size class keeps at most one fully-free chunk resident. When a second chunk
// drains, one of the two is released within the same Deallocate call. The spare
// absorbs churn at a chunk boundary; TrimExcessMemory releases it:
//
//	a.TrimExcessMemory() // true: spare chunks released, chunk lists shrunk
//	a.TrimExcessMemory() // false: nothing left to reclaim
//
// When a size class cannot create a chunk, Allocate trims every class and retries
// once before failing with ErrOutOfMemory.
//
// # Blocks
//
// Blocks are []byte with len equal to the requested size and cap equal to the
// block size, so append cannot run into the neighbouring block. A block is
// identified by the address of its first byte; pass back the slice Allocate
// returned (resliced from index 0 at most). Blocks must not hold the only
// reference to Go pointers: chunk buffers may live outside the Go heap
// (see rawmem.Mmap).
//
// # Errors
//
// Allocation failure is returned, never logged. Free-list corruption and double
// frees are detected in builds tagged smallobjdebug and panic with an error
// wrapping ErrCorrupt or ErrDoubleFree. IsCorrupt runs the full check on demand.
//
// # Thread Safety
//
// SmallObjAllocator and FixedAllocator are not thread-safe. Callers must hold an
// exclusive scope around every call, or use Locked.
//
// # Related Packages
//
//   - github.com/joshuapare/smallobj/internal/rawmem: chunk buffer sources (heap, mmap, budget)
//   - github.com/joshuapare/smallobj/internal/workload: allocation pattern driver
package alloc
