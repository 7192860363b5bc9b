package alloc

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/smallobj/internal/buf"
	"github.com/joshuapare/smallobj/internal/rawmem"
)

const (
	// minBlocksPerChunk keeps a chunk worth its fixed bookkeeping.
	minBlocksPerChunk = 8

	// maxBlocksPerChunk keeps every free-list index representable in one byte.
	maxBlocksPerChunk = 255
)

// chunk owns one raw buffer split into equal blocks.
//
// Free blocks form a singly linked list threaded through the buffer itself:
// the first byte of each free block holds the index of the next free block
// (the stealth index). No other free-list storage exists. The chunk does not
// remember its own block size or count; the owning FixedAllocator passes them
// in on every call.
type chunk struct {
	data      []byte
	base      uintptr // address of data[0]
	firstFree uint8   // head of the free list; stale once freeCount reaches 0
	freeCount uint8
}

// addrOf returns the address identifying a block. Slices with cap > 0 and
// len == 0 still resolve to their first byte.
func addrOf(p []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(p)))
}

// Init obtains blockSize*blockCount bytes from src and resets the free list.
func (c *chunk) Init(src rawmem.Source, blockSize, blockCount int) error {
	if blockSize <= 0 || blockCount <= 0 || blockCount > maxBlocksPerChunk {
		return fmt.Errorf("%w: chunk of %d blocks x %d bytes", ErrBadConfig, blockCount, blockSize)
	}
	n, ok := buf.MulOverflowSafe(blockSize, blockCount)
	if !ok {
		return fmt.Errorf("chunk of %d blocks x %d bytes overflows int", blockCount, blockSize)
	}
	data, err := src.Alloc(n)
	if err != nil {
		return fmt.Errorf("chunk of %d bytes: %w", n, err)
	}
	if len(data) < n {
		return fmt.Errorf("chunk of %d bytes: source returned %d", n, len(data))
	}
	c.data = data[:n:n]
	c.base = addrOf(c.data)
	c.Reset(blockSize, blockCount)
	return nil
}

// Reset marks every block free and rebuilds the list in address order.
// The last block links to blockCount, which is never followed because
// freeCount reaches zero first.
func (c *chunk) Reset(blockSize, blockCount int) {
	for i := range blockCount {
		c.data[i*blockSize] = byte(i + 1)
	}
	c.firstFree = 0
	c.freeCount = uint8(blockCount)
}

// Allocate pops the head of the free list. Returns nil when the chunk is full.
// The returned slice spans exactly one block (len == cap == blockSize).
func (c *chunk) Allocate(blockSize int) []byte {
	if c.freeCount == 0 {
		return nil
	}
	off := int(c.firstFree) * blockSize
	c.firstFree = c.data[off]
	c.freeCount--
	return c.data[off : off+blockSize : off+blockSize]
}

// Deallocate pushes p back on the free list. p must belong to this chunk.
func (c *chunk) Deallocate(p []byte, blockSize int) {
	delta := int(addrOf(p) - c.base)
	idx := delta / blockSize
	if debugChecks {
		if delta%blockSize != 0 {
			fatalf(ErrCorrupt, "address %#x is %d bytes into a %d-byte block", addrOf(p), delta%blockSize, blockSize)
		}
		if c.freeCount > 0 && int(c.firstFree) == idx {
			fatalf(ErrDoubleFree, "block %d of chunk %#x", idx, c.base)
		}
	}
	c.data[idx*blockSize] = c.firstFree
	c.firstFree = uint8(idx)
	c.freeCount++
}

// Release returns the buffer to src. The chunk is unusable afterwards.
func (c *chunk) Release(src rawmem.Source) error {
	data := c.data
	c.data = nil
	c.base = 0
	c.firstFree = 0
	c.freeCount = 0
	if data == nil {
		return nil
	}
	return src.Free(data)
}

// HasBlock reports whether p points into this chunk's buffer.
func (c *chunk) HasBlock(p []byte, chunkLength int) bool {
	return c.hasAddr(addrOf(p), chunkLength)
}

func (c *chunk) hasAddr(addr uintptr, chunkLength int) bool {
	return c.data != nil && buf.Contains(c.base, addr, chunkLength)
}

// IsFilled reports whether no block is free.
func (c *chunk) IsFilled() bool { return c.freeCount == 0 }

// HasAvailable reports whether all blockCount blocks are free.
func (c *chunk) HasAvailable(blockCount int) bool { return int(c.freeCount) == blockCount }

// IsCorrupt validates the free list. With checkIndexes it walks every link,
// rejecting out-of-range indexes and repeats (a cycle). Diagnostic only.
func (c *chunk) IsCorrupt(blockCount, blockSize int, checkIndexes bool) bool {
	if int(c.freeCount) > blockCount {
		return true
	}
	if c.freeCount == 0 {
		return false
	}
	if int(c.firstFree) >= blockCount {
		return true
	}
	if !checkIndexes {
		return false
	}

	var seen [4]uint64 // one bit per possible index
	idx := int(c.firstFree)
	for step := range int(c.freeCount) {
		if idx >= blockCount {
			return true
		}
		word, bit := idx/64, uint(idx%64)
		if seen[word]&(1<<bit) != 0 {
			return true
		}
		seen[word] |= 1 << bit
		if step+1 < int(c.freeCount) {
			idx = int(c.data[idx*blockSize])
		}
	}
	return false
}

// IsBlockAvailable reports whether p is currently on the free list.
func (c *chunk) IsBlockAvailable(p []byte, blockCount, blockSize int) bool {
	if c.freeCount == 0 {
		return false
	}
	addr := addrOf(p)
	if !c.hasAddr(addr, blockCount*blockSize) {
		return false
	}
	delta := int(addr - c.base)
	if delta%blockSize != 0 {
		return false
	}
	target := delta / blockSize

	idx := int(c.firstFree)
	for step := range int(c.freeCount) {
		if idx == target {
			return true
		}
		if step+1 < int(c.freeCount) {
			idx = int(c.data[idx*blockSize])
		}
	}
	return false
}
