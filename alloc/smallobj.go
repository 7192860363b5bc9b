package alloc

import (
	"errors"
	"fmt"
	"log/slog"
)

// SmallObjAllocator routes requests to one FixedAllocator per size class and
// hands anything above MaxObjectSize to a GeneralAllocator.
//
// Class i serves blocks of (i+1)*Alignment bytes; a request of n bytes goes to
// class ceil(max(n,1)/Alignment)-1. The allocator owns every class, chunk and
// chunk buffer; Close releases all of them.
//
// Not safe for concurrent use. Wrap it in Locked, or otherwise hold an exclusive
// scope across every call.
type SmallObjAllocator struct {
	cfg      Config
	classes  []FixedAllocator
	fallback GeneralAllocator
	log      *slog.Logger

	stats  allocatorStats
	closed bool
}

// allocatorStats holds facade-level counters.
type allocatorStats struct {
	Allocs           int // Allocate/TryAllocate calls that returned a block
	Deallocs         int // Blocks returned to a size class
	FallbackAllocs   int // Requests routed to the general allocator
	FallbackDeallocs int // Releases routed to the general allocator
	TrimRetries      int // Allocations retried after TrimExcessMemory reclaimed memory
	Failures         int // Allocations that failed after the retry
	Trims            int // TrimExcessMemory calls that reclaimed anything
}

// New builds ceil(MaxObjectSize/Alignment) size classes from cfg.
// A nil cfg means DefaultConfig. No chunk is created until first use.
func New(cfg *Config) (*SmallObjAllocator, error) {
	c := resolveConfig(cfg)
	if err := c.Validate(); err != nil {
		return nil, err
	}

	n := classCount(c.MaxObjectSize, c.Alignment)
	a := &SmallObjAllocator{
		cfg:      c,
		classes:  make([]FixedAllocator, n),
		fallback: c.Fallback,
		log:      c.Logger,
	}
	for i := range a.classes {
		a.classes[i].Initialize(c.Source, (i+1)*c.Alignment, c.PageBytes, c.Logger)
	}

	a.log.Debug("allocator created",
		"config", c.Name,
		"pageBytes", c.PageBytes,
		"maxObjectSize", c.MaxObjectSize,
		"alignment", c.Alignment,
		"classes", n)
	return a, nil
}

// Allocate returns size bytes (cap is the class block size). Sizes above
// MaxObjectSize are served by the general allocator. When a size class cannot
// grow, Allocate calls TrimExcessMemory and retries once, but only if the trim
// reclaimed something; a trim that frees nothing cannot make the retry succeed,
// so the request fails straight away. Failure returns an error wrapping
// ErrOutOfMemory.
func (a *SmallObjAllocator) Allocate(size int) ([]byte, error) {
	if a.closed {
		return nil, ErrClosed
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadSize, size)
	}

	if size > a.cfg.MaxObjectSize {
		p, err := a.fallback.Allocate(size)
		if err != nil {
			a.stats.Failures++
			return nil, err
		}
		a.stats.FallbackAllocs++
		return p, nil
	}

	fa := &a.classes[classIndex(size, a.cfg.Alignment)]
	p, err := fa.Allocate()
	if p == nil && a.TrimExcessMemory() {
		a.stats.TrimRetries++
		p, err = fa.Allocate()
	}
	if p == nil {
		a.stats.Failures++
		return nil, fmt.Errorf("allocate %d bytes: %w", size, err)
	}
	a.stats.Allocs++
	return p[:size], nil
}

// TryAllocate is Allocate returning nil instead of an error.
func (a *SmallObjAllocator) TryAllocate(size int) []byte {
	p, err := a.Allocate(size)
	if err != nil {
		return nil
	}
	return p
}

// Deallocate releases p, which must have come from Allocate(size) on this
// allocator. Returns ErrNotOwned when the size class does not own p; that is a
// caller error and the allocator state is unchanged.
func (a *SmallObjAllocator) Deallocate(p []byte, size int) error {
	if a.closed {
		return ErrClosed
	}
	if p == nil {
		return nil
	}
	if size < 0 {
		return fmt.Errorf("%w: %d", ErrBadSize, size)
	}

	if size > a.cfg.MaxObjectSize {
		a.fallback.Deallocate(p)
		a.stats.FallbackDeallocs++
		return nil
	}

	fa := &a.classes[classIndex(size, a.cfg.Alignment)]
	if !fa.Deallocate(p, noChunk) {
		if debugChecks {
			fatalf(ErrNotOwned, "%#x released as %d bytes", addrOf(p), size)
		}
		return fmt.Errorf("%w: %#x released as %d bytes", ErrNotOwned, addrOf(p), size)
	}
	a.stats.Deallocs++
	return nil
}

// DeallocateUnsized releases p without knowing its size by asking every size
// class whether it owns p. Pointers no class owns go to the general allocator.
// O(classes * chunks); prefer Deallocate when the size is known.
func (a *SmallObjAllocator) DeallocateUnsized(p []byte) error {
	if a.closed {
		return ErrClosed
	}
	if p == nil {
		return nil
	}

	for i := range a.classes {
		if hint := a.classes[i].HasBlock(p); hint != noChunk {
			a.classes[i].Deallocate(p, hint)
			a.stats.Deallocs++
			return nil
		}
	}
	a.fallback.Deallocate(p)
	a.stats.FallbackDeallocs++
	return nil
}

// TrimExcessMemory releases every size class's spare empty chunk and shrinks
// chunk lists to fit. Reports whether anything was reclaimed; a second call
// with no activity in between reports false.
func (a *SmallObjAllocator) TrimExcessMemory() bool {
	if a.closed {
		return false
	}
	chunks, lists := 0, 0
	for i := range a.classes {
		if a.classes[i].TrimEmptyChunk() {
			chunks++
		}
	}
	for i := range a.classes {
		if a.classes[i].TrimChunkList() {
			lists++
		}
	}
	if chunks+lists == 0 {
		return false
	}
	a.stats.Trims++
	a.log.Debug("trimmed excess memory", "chunks", chunks, "lists", lists)
	return true
}

// IsCorrupt checks every size class. Diagnostic only.
func (a *SmallObjAllocator) IsCorrupt() bool {
	for i := range a.classes {
		if a.classes[i].IsCorrupt() {
			return true
		}
	}
	return false
}

// Close releases every chunk back to the raw source. Blocks handed out earlier
// must not be used afterwards. Closing twice is a no-op.
func (a *SmallObjAllocator) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	for i := range a.classes {
		if err := a.classes[i].Release(); err != nil {
			errs = append(errs, fmt.Errorf("class %d: %w", i, err))
		}
	}
	a.log.Debug("allocator closed", "config", a.cfg.Name)
	return errors.Join(errs...)
}

// MaxObjectSize returns the largest size served from chunks.
func (a *SmallObjAllocator) MaxObjectSize() int { return a.cfg.MaxObjectSize }

// Alignment returns the size-class granularity.
func (a *SmallObjAllocator) Alignment() int { return a.cfg.Alignment }

// PageBytes returns the target chunk size.
func (a *SmallObjAllocator) PageBytes() int { return a.cfg.PageBytes }

// ClassCount returns the number of size classes.
func (a *SmallObjAllocator) ClassCount() int { return len(a.classes) }

// Class returns size class i, or nil when out of range.
func (a *SmallObjAllocator) Class(i int) *FixedAllocator {
	if i < 0 || i >= len(a.classes) {
		return nil
	}
	return &a.classes[i]
}

// ClassFor returns the size class serving size-byte requests, or nil when
// size is negative or above MaxObjectSize.
func (a *SmallObjAllocator) ClassFor(size int) *FixedAllocator {
	if size < 0 || size > a.cfg.MaxObjectSize {
		return nil
	}
	return &a.classes[classIndex(size, a.cfg.Alignment)]
}

// Compile-time interface check
var _ Allocator = (*SmallObjAllocator)(nil)
