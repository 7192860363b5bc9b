package alloc

import (
	"fmt"
	"io"
)

// Stats is a snapshot of allocator state and counters.
type Stats struct {
	Config string `json:"config"`

	Chunks         int `json:"chunks"`         // Resident chunks across all classes
	EmptyChunks    int `json:"emptyChunks"`    // Resident fully-free chunks (≤ one per class)
	ChunkBytes     int `json:"chunkBytes"`     // Bytes held in resident chunks
	BlocksInUse    int `json:"blocksInUse"`    // Live pooled blocks
	BytesInUse     int `json:"bytesInUse"`     // Live pooled blocks × their block size
	ChunksCreated  int `json:"chunksCreated"`  // Chunks ever created
	ChunksReleased int `json:"chunksReleased"` // Chunks ever released

	Allocs           int `json:"allocs"`
	Deallocs         int `json:"deallocs"`
	FallbackAllocs   int `json:"fallbackAllocs"`
	FallbackDeallocs int `json:"fallbackDeallocs"`
	TrimRetries      int `json:"trimRetries"`
	Failures         int `json:"failures"`
	Trims            int `json:"trims"`

	// Classes lists only size classes that have ever created a chunk.
	Classes []ClassStats `json:"classes,omitempty"`
}

// Stats walks every size class. O(total chunks).
func (a *SmallObjAllocator) Stats() Stats {
	st := Stats{
		Config:           a.cfg.Name,
		Allocs:           a.stats.Allocs,
		Deallocs:         a.stats.Deallocs,
		FallbackAllocs:   a.stats.FallbackAllocs,
		FallbackDeallocs: a.stats.FallbackDeallocs,
		TrimRetries:      a.stats.TrimRetries,
		Failures:         a.stats.Failures,
		Trims:            a.stats.Trims,
	}
	for i := range a.classes {
		cs := a.classes[i].Stats()
		if cs.ChunksCreated == 0 {
			continue
		}
		st.Classes = append(st.Classes, cs)
		st.Chunks += cs.Chunks
		st.EmptyChunks += cs.EmptyChunks
		st.ChunkBytes += cs.Chunks * cs.BlockCount * cs.BlockSize
		st.BlocksInUse += cs.BlocksInUse
		st.BytesInUse += cs.BlocksInUse * cs.BlockSize
		st.ChunksCreated += cs.ChunksCreated
		st.ChunksReleased += cs.ChunksReleased
	}
	return st
}

// Efficiency returns BytesInUse/ChunkBytes as a percentage, or 0 with no chunks.
func (s Stats) Efficiency() float64 {
	if s.ChunkBytes == 0 {
		return 0
	}
	return float64(s.BytesInUse) / float64(s.ChunkBytes) * 100
}

// PrintStats writes a short plain-text report of s to w.
func (s Stats) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "Allocator %q\n", s.Config)
	fmt.Fprintf(w, "  chunks: %d resident (%d empty), %d created, %d released\n",
		s.Chunks, s.EmptyChunks, s.ChunksCreated, s.ChunksReleased)
	fmt.Fprintf(w, "  blocks: %d in use, %d/%d bytes (%.1f%%)\n",
		s.BlocksInUse, s.BytesInUse, s.ChunkBytes, s.Efficiency())
	fmt.Fprintf(w, "  calls:  %d alloc, %d dealloc, %d/%d fallback, %d trims, %d retries, %d failures\n",
		s.Allocs, s.Deallocs, s.FallbackAllocs, s.FallbackDeallocs, s.Trims, s.TrimRetries, s.Failures)
	for _, c := range s.Classes {
		fmt.Fprintf(w, "  %4dB x %3d: %d chunks, %d in use, %d created, %d released\n",
			c.BlockSize, c.BlockCount, c.Chunks, c.BlocksInUse, c.ChunksCreated, c.ChunksReleased)
	}
}
