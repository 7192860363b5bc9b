// Package rawmem supplies the raw byte buffers that allocator chunks are carved from.
//
// A Source hands out buffers of an exact length and takes them back exactly once.
// Three implementations are provided:
//
//   - Heap: ordinary Go heap slices. Free is a no-op; the collector reclaims the
//     buffer once the owning chunk drops it.
//   - Mmap: anonymous private mappings outside the Go heap (unix only; falls back
//     to Heap elsewhere). Free unmaps the region.
//   - Budget: wraps another Source with a byte limit and live-byte accounting.
//     Useful for provoking and observing allocation failure.
//
// Sources are not safe for concurrent use unless stated otherwise; the allocator
// that owns them is single-threaded.
package rawmem

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joshuapare/smallobj/internal/buf"
)

// ErrExhausted is returned when a Source cannot supply the requested buffer.
var ErrExhausted = errors.New("rawmem: source exhausted")

// MaxAlloc is the largest buffer Heap hands out. The Go runtime aborts the
// process when make cannot be satisfied, so larger requests fail up front.
const MaxAlloc = 1 << 30

// Source provides raw buffers.
type Source interface {
	// Alloc returns a zeroed buffer of exactly n bytes.
	Alloc(n int) ([]byte, error)
	// Free returns a buffer previously obtained from Alloc.
	Free(b []byte) error
}

// Heap allocates buffers on the Go heap.
type Heap struct{}

// Alloc returns make([]byte, n), or ErrExhausted when n is negative or above
// MaxAlloc.
func (Heap) Alloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrExhausted, n)
	}
	if n > MaxAlloc {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrExhausted, n, MaxAlloc)
	}
	return make([]byte, n), nil
}

// Free is a no-op; the buffer is collected once unreferenced.
func (Heap) Free([]byte) error { return nil }

// Budget limits the number of live bytes handed out by an underlying Source.
type Budget struct {
	src   Source
	limit int

	live   int
	allocs int
	frees  int
}

// NewBudget wraps src so that at most limit bytes are live at any time.
// A nil src means Heap.
func NewBudget(src Source, limit int) *Budget {
	if src == nil {
		src = Heap{}
	}
	return &Budget{src: src, limit: limit}
}

// Alloc fails with ErrExhausted when n would push the live total over the limit.
func (b *Budget) Alloc(n int) ([]byte, error) {
	if total, ok := buf.AddOverflowSafe(b.live, n); n < 0 || !ok || total > b.limit {
		return nil, fmt.Errorf("%w: want %d bytes, %d of %d live", ErrExhausted, n, b.live, b.limit)
	}
	p, err := b.src.Alloc(n)
	if err != nil {
		return nil, err
	}
	b.live += n
	b.allocs++
	return p, nil
}

// Free releases p to the underlying source and credits its length back.
func (b *Budget) Free(p []byte) error {
	if err := b.src.Free(p); err != nil {
		return err
	}
	b.live -= len(p)
	b.frees++
	return nil
}

// SetLimit changes the byte limit. Live buffers are unaffected.
func (b *Budget) SetLimit(limit int) { b.limit = limit }

// Live returns the number of bytes currently handed out.
func (b *Budget) Live() int { return b.live }

// Limit returns the configured byte limit.
func (b *Budget) Limit() int { return b.limit }

// Allocs returns the number of successful Alloc calls.
func (b *Budget) Allocs() int { return b.allocs }

// Frees returns the number of successful Free calls.
func (b *Budget) Frees() int { return b.frees }

// ByName resolves a source name as used in configuration and CLI flags.
// Accepted names are "heap" (also the empty string) and "mmap".
func ByName(name string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "heap":
		return Heap{}, nil
	case "mmap":
		return Mmap{}, nil
	default:
		return nil, fmt.Errorf("rawmem: unknown source %q (want heap or mmap)", name)
	}
}
