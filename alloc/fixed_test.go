package alloc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/smallobj/internal/rawmem"
)

func newTestFixed(t *testing.T, src rawmem.Source, blockSize, pageBytes int) *FixedAllocator {
	t.Helper()
	fa, err := NewFixed(src, blockSize, pageBytes)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fa.Release() })
	return fa
}

// allocN allocates n blocks, failing the test on error.
func allocN(t *testing.T, fa *FixedAllocator, n int) [][]byte {
	t.Helper()
	out := make([][]byte, n)
	for i := range out {
		p, err := fa.Allocate()
		require.NoError(t, err)
		require.Len(t, p, fa.BlockSize())
		out[i] = p
	}
	return out
}

// Test_Fixed_BlockCountClamp checks 8 <= blocks per chunk <= 255.
func Test_Fixed_BlockCountClamp(t *testing.T) {
	cases := []struct {
		blockSize, pageBytes, want int
	}{
		{1, 4096, 255},
		{12, 4096, 255},
		{16, 4096, 255},
		{17, 4096, 240},
		{64, 4096, 64},
		{256, 4096, 16},
		{1024, 4096, 8},
		{4096, 4096, 8},
		{100, 1, 8},
	}
	for _, c := range cases {
		fa := newTestFixed(t, nil, c.blockSize, c.pageBytes)
		require.Equal(t, c.want, fa.BlockCount(), "blockSize=%d pageBytes=%d", c.blockSize, c.pageBytes)
	}
}

// Test_Fixed_NewRejects checks geometry validation.
func Test_Fixed_NewRejects(t *testing.T) {
	_, err := NewFixed(nil, 0, 4096)
	require.ErrorIs(t, err, ErrBadConfig)
	_, err = NewFixed(nil, 8, 0)
	require.ErrorIs(t, err, ErrBadConfig)
}

// Test_Fixed_GrowsWhenFull checks a second chunk appears only when the first fills.
func Test_Fixed_GrowsWhenFull(t *testing.T) {
	fa := newTestFixed(t, nil, 256, 4096) // 16 blocks per chunk

	blocks := allocN(t, fa, 16)
	require.Equal(t, 1, fa.ChunkCount())

	blocks = append(blocks, allocN(t, fa, 1)...)
	require.Equal(t, 2, fa.ChunkCount())
	requireDisjoint(t, blocks)
	require.False(t, fa.IsCorrupt())
}

// Test_Fixed_ChunkListGrowth checks the list capacity goes 4, 8, 16.
func Test_Fixed_ChunkListGrowth(t *testing.T) {
	fa := newTestFixed(t, nil, 1024, 4096) // 8 blocks per chunk

	allocN(t, fa, 8)
	require.Equal(t, 4, cap(fa.chunks))

	allocN(t, fa, 8*4)
	require.Equal(t, 5, fa.ChunkCount())
	require.Equal(t, 8, cap(fa.chunks))

	allocN(t, fa, 8*4)
	require.Equal(t, 9, fa.ChunkCount())
	require.Equal(t, 16, cap(fa.chunks))
}

// Test_Fixed_FailedChunkLeavesOthersIntact checks a source failure is reported
// and existing chunks stay usable.
func Test_Fixed_FailedChunkLeavesOthersIntact(t *testing.T) {
	src := rawmem.NewBudget(nil, 4*4096)
	fa := newTestFixed(t, src, 256, 4096)

	blocks := allocN(t, fa, 4*16)
	for i, p := range blocks {
		stamp(p, byte(i))
	}

	p, err := fa.Allocate()
	require.Nil(t, p)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrOutOfMemory))
	require.True(t, errors.Is(err, rawmem.ErrExhausted))

	require.Equal(t, 4, fa.ChunkCount())
	require.Equal(t, 8, cap(fa.chunks), "list grew before the failed request")
	require.False(t, fa.IsCorrupt())
	for i, p := range blocks {
		requireStamped(t, p, byte(i))
	}

	// Freeing one block makes room without a new chunk.
	require.True(t, fa.Deallocate(blocks[5], noChunk))
	p, err = fa.Allocate()
	require.NoError(t, err)
	require.Equal(t, addrOf(blocks[5]), addrOf(p))
}

// Test_Fixed_Hysteresis checks a drained class keeps exactly one empty chunk.
func Test_Fixed_Hysteresis(t *testing.T) {
	fa := newTestFixed(t, nil, 256, 4096)
	blocks := allocN(t, fa, 3*16)
	require.Equal(t, 3, fa.ChunkCount())

	for _, p := range blocks {
		require.True(t, fa.Deallocate(p, noChunk))
		require.LessOrEqual(t, fa.CountEmptyChunks(), 1)
		require.False(t, fa.IsCorrupt())
	}
	require.Equal(t, 1, fa.ChunkCount())
	require.Equal(t, 1, fa.CountEmptyChunks())

	require.True(t, fa.TrimEmptyChunk())
	require.Zero(t, fa.ChunkCount())
	require.False(t, fa.TrimEmptyChunk())
	require.False(t, fa.IsCorrupt())
}

// Test_Fixed_SecondEmptyReleasedInSameCall checks there is never an observable
// state with two empty chunks.
func Test_Fixed_SecondEmptyReleasedInSameCall(t *testing.T) {
	src := rawmem.NewBudget(nil, 1<<20)
	fa := newTestFixed(t, src, 256, 4096)
	blocks := allocN(t, fa, 2*16)
	first, second := blocks[:16], blocks[16:]

	for _, p := range first {
		require.True(t, fa.Deallocate(p, noChunk))
	}
	require.Equal(t, 2, fa.ChunkCount())
	require.Equal(t, 1, fa.CountEmptyChunks())

	for _, p := range second[:15] {
		require.True(t, fa.Deallocate(p, noChunk))
	}
	require.Equal(t, 8192, src.Live())

	require.True(t, fa.Deallocate(second[15], noChunk))
	require.Equal(t, 1, fa.ChunkCount(), "second empty chunk must be released immediately")
	require.Equal(t, 1, fa.CountEmptyChunks())
	require.Equal(t, 4096, src.Live())
	require.Equal(t, 1, fa.Stats().ChunksReleased)
}

// Test_Fixed_EmptyChunkReusedFirst checks allocation prefers the spare chunk
// over creating a new one.
func Test_Fixed_EmptyChunkReusedFirst(t *testing.T) {
	fa := newTestFixed(t, nil, 256, 4096)
	blocks := allocN(t, fa, 16)
	for _, p := range blocks {
		fa.Deallocate(p, noChunk)
	}
	require.Equal(t, 1, fa.CountEmptyChunks())

	p, err := fa.Allocate()
	require.NoError(t, err)
	require.Equal(t, 0, fa.HasBlock(p))
	require.Zero(t, fa.CountEmptyChunks())
	require.Equal(t, 1, fa.Stats().ChunksCreated)
}

// Test_Fixed_VicinityFind checks every block resolves to its own chunk.
func Test_Fixed_VicinityFind(t *testing.T) {
	fa := newTestFixed(t, nil, 1024, 4096) // 8 blocks per chunk
	blocks := allocN(t, fa, 8*10)

	for i, p := range blocks {
		want := i / 8
		require.Equal(t, want, fa.HasBlock(p))
		for _, start := range []int{0, 4, 9} {
			fa.deallocCur = start
			require.Equal(t, want, fa.VicinityFind(p), "block %d from cursor %d", i, start)
		}
	}

	require.Equal(t, noChunk, fa.VicinityFind(make([]byte, 1024)))
	require.Equal(t, noChunk, fa.HasBlock(make([]byte, 1024)))
	require.False(t, fa.Deallocate(make([]byte, 1024), noChunk))
}

// Test_Fixed_DeallocateWithHint skips the search.
func Test_Fixed_DeallocateWithHint(t *testing.T) {
	fa := newTestFixed(t, nil, 1024, 4096)
	blocks := allocN(t, fa, 8*3)

	p := blocks[13]
	hint := fa.HasBlock(p)
	require.Equal(t, 1, hint)
	require.True(t, fa.Deallocate(p, hint))
	require.Equal(t, 1, fa.deallocCur)
	require.True(t, fa.IsBlockAvailable(p))
}

// Test_Fixed_DeallocateWrongHint falls back to the search when the hint names
// a chunk that does not own the block.
func Test_Fixed_DeallocateWrongHint(t *testing.T) {
	fa := newTestFixed(t, nil, 1024, 4096)
	blocks := allocN(t, fa, 8*3)

	p := blocks[20] // chunk 2
	require.True(t, fa.Deallocate(p, 0))
	require.Equal(t, 2, fa.deallocCur)
	require.True(t, fa.IsBlockAvailable(p))
	require.False(t, fa.IsCorrupt())
	for _, q := range blocks[:8] {
		require.False(t, fa.IsBlockAvailable(q), "chunk 0 must be untouched")
	}
}

// Test_Fixed_DeallocateStaleHint uses a hint taken before a trim moved the
// owning chunk.
func Test_Fixed_DeallocateStaleHint(t *testing.T) {
	fa := newTestFixed(t, nil, 1024, 4096)
	blocks := allocN(t, fa, 8*3)

	p := blocks[20]
	stale := fa.HasBlock(p)
	require.Equal(t, 2, stale)

	for _, q := range blocks[:8] {
		require.True(t, fa.Deallocate(q, noChunk))
	}
	require.True(t, fa.TrimEmptyChunk()) // old chunk 2 moves into slot 0
	require.Equal(t, 0, fa.HasBlock(p))

	require.True(t, fa.Deallocate(p, 1)) // slot 1 is in range but wrong
	require.True(t, fa.IsBlockAvailable(p))
	require.False(t, fa.IsCorrupt())
}

// Test_Fixed_TrimFixesCursors releases a spare chunk from the middle of the
// list and keeps every remaining block releasable.
func Test_Fixed_TrimFixesCursors(t *testing.T) {
	fa := newTestFixed(t, nil, 256, 4096)
	blocks := allocN(t, fa, 3*16)

	for _, p := range blocks[:16] {
		require.True(t, fa.Deallocate(p, noChunk))
	}
	require.Equal(t, 0, fa.emptyCur)

	require.True(t, fa.TrimEmptyChunk())
	require.Equal(t, 2, fa.ChunkCount())
	require.False(t, fa.IsCorrupt())

	for _, p := range blocks[16:] {
		require.True(t, fa.Deallocate(p, noChunk))
		require.False(t, fa.IsCorrupt())
	}
	require.Equal(t, 1, fa.ChunkCount())
}

// Test_Fixed_TrimChunkList shrinks capacity once.
func Test_Fixed_TrimChunkList(t *testing.T) {
	fa := newTestFixed(t, nil, 1024, 4096)
	blocks := allocN(t, fa, 8*5) // 5 chunks, capacity 8
	require.True(t, fa.TrimChunkList())
	require.Equal(t, 5, cap(fa.chunks))
	require.False(t, fa.TrimChunkList())

	for _, p := range blocks {
		require.True(t, fa.Deallocate(p, noChunk))
	}
	require.True(t, fa.TrimEmptyChunk())
	require.True(t, fa.TrimChunkList())
	require.Nil(t, fa.chunks)
	require.False(t, fa.TrimChunkList())
}

// Test_Fixed_Release returns every byte to the source.
func Test_Fixed_Release(t *testing.T) {
	src := rawmem.NewBudget(nil, 1<<20)
	fa := newTestFixed(t, src, 64, 4096)
	allocN(t, fa, 200)
	require.Positive(t, src.Live())

	require.NoError(t, fa.Release())
	require.Zero(t, src.Live())
	require.Zero(t, fa.ChunkCount())
	require.False(t, fa.IsCorrupt())

	// Still usable after Release.
	allocN(t, fa, 1)
	require.Equal(t, 1, fa.ChunkCount())
}

// Test_Fixed_IsCorruptDetectsBadCursor checks the cursor validation.
func Test_Fixed_IsCorruptDetectsBadCursor(t *testing.T) {
	fa := newTestFixed(t, nil, 64, 4096)
	allocN(t, fa, 3)
	require.False(t, fa.IsCorrupt())

	fa.emptyCur = 0 // chunk 0 is not empty
	require.True(t, fa.IsCorrupt())
	fa.emptyCur = noChunk

	fa.allocCur = 7
	require.True(t, fa.IsCorrupt())
}
