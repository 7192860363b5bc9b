package alloc

import (
	"fmt"

	"github.com/joshuapare/smallobj/internal/buf"
)

// ClassInfo describes one size class as built by New.
type ClassInfo struct {
	Index      int `json:"index"`
	BlockSize  int `json:"blockSize"`
	BlockCount int `json:"blockCount"`
	ChunkBytes int `json:"chunkBytes"`
}

// String returns a human-readable description of the class.
func (ci ClassInfo) String() string {
	return fmt.Sprintf("class %d: %d x %dB = %dB/chunk", ci.Index, ci.BlockCount, ci.BlockSize, ci.ChunkBytes)
}

// blockCountFor returns how many blocks a chunk of the given class holds:
// pageBytes/blockSize clamped to [8, 255].
func blockCountFor(blockSize, pageBytes int) int {
	return buf.Clamp(pageBytes/blockSize, minBlocksPerChunk, maxBlocksPerChunk)
}

// classCount returns ceil(maxObjectSize / alignment).
func classCount(maxObjectSize, alignment int) int {
	return buf.CeilDiv(maxObjectSize, alignment)
}

// classIndex maps a request size (0 counts as 1) to its class.
//
//	alignment 4:  1..4 → 0, 5..8 → 1, 9..12 → 2, ...
func classIndex(size, alignment int) int {
	if size == 0 {
		size = 1
	}
	return buf.CeilDiv(size, alignment) - 1
}

// ClassTable returns the size classes a SmallObjAllocator built from cfg would
// own. A nil cfg means DefaultConfig.
func ClassTable(cfg *Config) ([]ClassInfo, error) {
	c := resolveConfig(cfg)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	n := classCount(c.MaxObjectSize, c.Alignment)
	table := make([]ClassInfo, n)
	for i := range n {
		bs := (i + 1) * c.Alignment
		bc := blockCountFor(bs, c.PageBytes)
		table[i] = ClassInfo{
			Index:      i,
			BlockSize:  bs,
			BlockCount: bc,
			ChunkBytes: bs * bc,
		}
	}
	return table, nil
}
