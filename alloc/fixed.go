package alloc

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/smallobj/internal/logger"
	"github.com/joshuapare/smallobj/internal/rawmem"
)

// noChunk marks an unset cursor.
const noChunk = -1

// FixedAllocator serves blocks of a single size from a growable list of chunks.
//
// Three cursors cache chunk positions:
//   - allocCur: the chunk the last allocation came from
//   - deallocCur: the chunk the last deallocation went to; VicinityFind starts here
//   - emptyCur: the one fully-free chunk kept resident, or noChunk
//
// At most one chunk is ever fully free, and when one is, emptyCur names it.
// Keeping that single spare absorbs alloc/free churn at a chunk boundary without
// going back to the raw source each time; TrimEmptyChunk gives it back.
//
// Chunk order is creation order, not address order.
type FixedAllocator struct {
	src rawmem.Source
	log *slog.Logger

	blockSize  int
	blockCount int

	chunks     []chunk
	allocCur   int
	deallocCur int
	emptyCur   int

	chunksCreated  int
	chunksReleased int
	releaseErr     error
}

// ClassStats reports the state of one size class.
type ClassStats struct {
	BlockSize      int `json:"blockSize"`
	BlockCount     int `json:"blockCount"`
	Chunks         int `json:"chunks"`
	EmptyChunks    int `json:"emptyChunks"`
	BlocksInUse    int `json:"blocksInUse"`
	ChunksCreated  int `json:"chunksCreated"`
	ChunksReleased int `json:"chunksReleased"`
}

// NewFixed creates a FixedAllocator for blockSize-byte blocks drawing chunk
// buffers from src (nil = rawmem.Heap).
func NewFixed(src rawmem.Source, blockSize, pageBytes int) (*FixedAllocator, error) {
	if blockSize <= 0 || pageBytes <= 0 {
		return nil, fmt.Errorf("%w: block size %d, page bytes %d", ErrBadConfig, blockSize, pageBytes)
	}
	if src == nil {
		src = rawmem.Heap{}
	}
	fa := &FixedAllocator{}
	fa.Initialize(src, blockSize, pageBytes, nil)
	return fa, nil
}

// Initialize sets the block geometry. blockCount = pageBytes/blockSize clamped
// to [8, 255]. Must be called before any other method.
func (fa *FixedAllocator) Initialize(src rawmem.Source, blockSize, pageBytes int, log *slog.Logger) {
	if log == nil {
		log = logger.L
	}
	*fa = FixedAllocator{
		src:        src,
		log:        log,
		blockSize:  blockSize,
		blockCount: blockCountFor(blockSize, pageBytes),
		allocCur:   noChunk,
		deallocCur: noChunk,
		emptyCur:   noChunk,
	}
}

// Allocate returns one block (len == cap == BlockSize), creating a chunk when
// every existing one is full. The error wraps ErrOutOfMemory.
func (fa *FixedAllocator) Allocate() ([]byte, error) {
	if fa.allocCur == noChunk || fa.chunks[fa.allocCur].IsFilled() {
		if fa.emptyCur != noChunk {
			// The spare chunk is about to lose its first block.
			fa.allocCur = fa.emptyCur
			fa.emptyCur = noChunk
		} else {
			found := false
			for i := range fa.chunks {
				if !fa.chunks[i].IsFilled() {
					fa.allocCur = i
					found = true
					break
				}
			}
			if !found {
				if err := fa.MakeNewChunk(); err != nil {
					return nil, fmt.Errorf("%w: %d-byte class: %w", ErrOutOfMemory, fa.blockSize, err)
				}
			}
		}
	} else if fa.allocCur == fa.emptyCur {
		fa.emptyCur = noChunk
	}

	return fa.chunks[fa.allocCur].Allocate(fa.blockSize), nil
}

// Deallocate returns p to its chunk. hint is the index of the owning chunk
// when the caller already knows it (see HasBlock), or noChunk. A hint that
// does not own p is ignored.
// Reports false when no chunk of this class owns p.
func (fa *FixedAllocator) Deallocate(p []byte, hint int) bool {
	owner := hint
	if owner < 0 || owner >= len(fa.chunks) || !fa.chunks[owner].hasAddr(addrOf(p), fa.chunkLength()) {
		owner = fa.VicinityFind(p)
	}
	if owner == noChunk {
		return false
	}
	fa.deallocCur = owner
	fa.doDeallocate(p)
	return true
}

// doDeallocate frees p into chunks[deallocCur] and enforces the
// single-empty-chunk rule.
func (fa *FixedAllocator) doDeallocate(p []byte) {
	c := &fa.chunks[fa.deallocCur]
	c.Deallocate(p, fa.blockSize)
	if !c.HasAvailable(fa.blockCount) {
		return
	}

	if fa.emptyCur != noChunk && fa.emptyCur != fa.deallocCur {
		// Two empty chunks: move one of them to the tail and release it.
		last := len(fa.chunks) - 1
		if last == fa.deallocCur {
			fa.deallocCur = fa.emptyCur
		} else if last != fa.emptyCur {
			fa.chunks[fa.emptyCur], fa.chunks[last] = fa.chunks[last], fa.chunks[fa.emptyCur]
		}
		fa.popTail()
		if fa.allocCur == last || fa.chunks[fa.allocCur].IsFilled() {
			fa.allocCur = fa.deallocCur
		}
	}
	fa.emptyCur = fa.deallocCur
}

// VicinityFind locates the chunk owning p, scanning outward in both directions
// from deallocCur. Returns noChunk when no chunk owns p.
func (fa *FixedAllocator) VicinityFind(p []byte) int {
	n := len(fa.chunks)
	if n == 0 {
		return noChunk
	}
	addr := addrOf(p)
	length := fa.chunkLength()

	lo := fa.deallocCur
	if lo < 0 || lo >= n {
		lo = 0
	}
	hi := lo + 1
	for lo >= 0 || hi < n {
		if lo >= 0 {
			if fa.chunks[lo].hasAddr(addr, length) {
				return lo
			}
			lo--
		}
		if hi < n {
			if fa.chunks[hi].hasAddr(addr, length) {
				return hi
			}
			hi++
		}
	}
	return noChunk
}

// MakeNewChunk appends a fresh chunk and points allocCur at it.
// The chunk list grows (to 4, then doubling) before the chunk's buffer is
// requested, so a failed request leaves every existing chunk untouched.
func (fa *FixedAllocator) MakeNewChunk() error {
	if len(fa.chunks) == cap(fa.chunks) {
		newCap := 2 * cap(fa.chunks)
		if newCap == 0 {
			newCap = 4
		}
		grown := make([]chunk, len(fa.chunks), newCap)
		copy(grown, fa.chunks)
		fa.chunks = grown
	}

	var c chunk
	if err := c.Init(fa.src, fa.blockSize, fa.blockCount); err != nil {
		return err
	}
	fa.chunks = append(fa.chunks, c)
	fa.chunksCreated++

	fa.allocCur = len(fa.chunks) - 1
	fa.deallocCur = 0

	fa.log.Debug("chunk created",
		"blockSize", fa.blockSize,
		"blocks", fa.blockCount,
		"chunks", len(fa.chunks))
	return nil
}

// TrimEmptyChunk releases the spare empty chunk, if any.
func (fa *FixedAllocator) TrimEmptyChunk() bool {
	if fa.emptyCur == noChunk {
		return false
	}

	empty := fa.emptyCur
	last := len(fa.chunks) - 1
	if last != empty {
		fa.chunks[empty], fa.chunks[last] = fa.chunks[last], fa.chunks[empty]
	}
	fa.popTail()

	if len(fa.chunks) == 0 {
		fa.allocCur = noChunk
		fa.deallocCur = noChunk
	} else {
		switch fa.deallocCur {
		case empty:
			fa.deallocCur = 0
		case last:
			fa.deallocCur = empty
		}
		switch fa.allocCur {
		case empty:
			fa.allocCur = len(fa.chunks) - 1
		case last:
			fa.allocCur = empty
		}
	}
	fa.emptyCur = noChunk
	return true
}

// TrimChunkList shrinks the chunk list's capacity to its length.
// Reports false when there was nothing to shrink.
func (fa *FixedAllocator) TrimChunkList() bool {
	if len(fa.chunks) == cap(fa.chunks) {
		return false
	}
	if len(fa.chunks) == 0 {
		fa.chunks = nil
		return true
	}
	tight := make([]chunk, len(fa.chunks))
	copy(tight, fa.chunks)
	fa.chunks = tight
	return true
}

// popTail releases and removes the last chunk.
func (fa *FixedAllocator) popTail() {
	last := len(fa.chunks) - 1
	if err := fa.chunks[last].Release(fa.src); err != nil && fa.releaseErr == nil {
		fa.releaseErr = err
	}
	fa.chunks[last] = chunk{}
	fa.chunks = fa.chunks[:last]
	fa.chunksReleased++

	fa.log.Debug("chunk released",
		"blockSize", fa.blockSize,
		"chunks", len(fa.chunks))
}

// HasBlock returns the index of the chunk owning p by checking every chunk,
// or noChunk. The result is a valid hint for Deallocate.
func (fa *FixedAllocator) HasBlock(p []byte) int {
	addr := addrOf(p)
	length := fa.chunkLength()
	for i := range fa.chunks {
		if fa.chunks[i].hasAddr(addr, length) {
			return i
		}
	}
	return noChunk
}

// CountEmptyChunks returns the number of fully-free chunks (0 or 1 unless corrupt).
func (fa *FixedAllocator) CountEmptyChunks() int {
	n := 0
	for i := range fa.chunks {
		if fa.chunks[i].HasAvailable(fa.blockCount) {
			n++
		}
	}
	return n
}

// IsCorrupt checks cursor ranges, the single-empty-chunk rule and every free
// list. Diagnostic only; walks every chunk.
func (fa *FixedAllocator) IsCorrupt() bool {
	n := len(fa.chunks)
	if n == 0 {
		return fa.allocCur != noChunk || fa.deallocCur != noChunk || fa.emptyCur != noChunk
	}
	if fa.allocCur < 0 || fa.allocCur >= n || fa.deallocCur < 0 || fa.deallocCur >= n {
		return true
	}
	if fa.emptyCur < noChunk || fa.emptyCur >= n {
		return true
	}

	empties := 0
	for i := range fa.chunks {
		c := &fa.chunks[i]
		if c.data == nil || len(c.data) != fa.chunkLength() {
			return true
		}
		if c.IsCorrupt(fa.blockCount, fa.blockSize, true) {
			return true
		}
		if c.HasAvailable(fa.blockCount) {
			empties++
		}
	}
	if fa.emptyCur == noChunk {
		return empties != 0
	}
	return empties != 1 || !fa.chunks[fa.emptyCur].HasAvailable(fa.blockCount)
}

// IsBlockAvailable reports whether p is owned by this class and currently free.
func (fa *FixedAllocator) IsBlockAvailable(p []byte) bool {
	i := fa.HasBlock(p)
	if i == noChunk {
		return false
	}
	return fa.chunks[i].IsBlockAvailable(p, fa.blockCount, fa.blockSize)
}

// Release gives every chunk back to the source. The allocator is empty but
// reusable afterwards. Returns the first source error seen since the last Release.
func (fa *FixedAllocator) Release() error {
	for len(fa.chunks) > 0 {
		fa.popTail()
	}
	fa.chunks = nil
	fa.allocCur = noChunk
	fa.deallocCur = noChunk
	fa.emptyCur = noChunk

	err := fa.releaseErr
	fa.releaseErr = nil
	return err
}

// Stats returns a snapshot of this class.
func (fa *FixedAllocator) Stats() ClassStats {
	st := ClassStats{
		BlockSize:      fa.blockSize,
		BlockCount:     fa.blockCount,
		Chunks:         len(fa.chunks),
		ChunksCreated:  fa.chunksCreated,
		ChunksReleased: fa.chunksReleased,
	}
	for i := range fa.chunks {
		c := &fa.chunks[i]
		st.BlocksInUse += fa.blockCount - int(c.freeCount)
		if c.HasAvailable(fa.blockCount) {
			st.EmptyChunks++
		}
	}
	return st
}

// BlockSize returns the size of every block in this class.
func (fa *FixedAllocator) BlockSize() int { return fa.blockSize }

// BlockCount returns the number of blocks per chunk.
func (fa *FixedAllocator) BlockCount() int { return fa.blockCount }

// ChunkCount returns the number of resident chunks.
func (fa *FixedAllocator) ChunkCount() int { return len(fa.chunks) }

func (fa *FixedAllocator) chunkLength() int { return fa.blockSize * fa.blockCount }
