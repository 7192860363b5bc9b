package alloc

import "sync"

// Locked serializes every call to a SmallObjAllocator with a mutex held for the
// whole call. It is the exclusive-access scope the allocator itself does not
// provide.
type Locked struct {
	mu sync.Mutex
	a  *SmallObjAllocator
}

// NewLocked builds a SmallObjAllocator from cfg and wraps it.
func NewLocked(cfg *Config) (*Locked, error) {
	a, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &Locked{a: a}, nil
}

// Wrap puts an existing allocator behind a mutex. The caller must stop using a
// directly.
func Wrap(a *SmallObjAllocator) *Locked {
	return &Locked{a: a}
}

// Allocate is SmallObjAllocator.Allocate under the lock.
func (l *Locked) Allocate(size int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Allocate(size)
}

// TryAllocate is SmallObjAllocator.TryAllocate under the lock.
func (l *Locked) TryAllocate(size int) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.TryAllocate(size)
}

// Deallocate is SmallObjAllocator.Deallocate under the lock.
func (l *Locked) Deallocate(p []byte, size int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Deallocate(p, size)
}

// DeallocateUnsized is SmallObjAllocator.DeallocateUnsized under the lock.
func (l *Locked) DeallocateUnsized(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.DeallocateUnsized(p)
}

// TrimExcessMemory is SmallObjAllocator.TrimExcessMemory under the lock.
// Suitable as a low-memory callback.
func (l *Locked) TrimExcessMemory() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.TrimExcessMemory()
}

// IsCorrupt is SmallObjAllocator.IsCorrupt under the lock.
func (l *Locked) IsCorrupt() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.IsCorrupt()
}

// Stats is SmallObjAllocator.Stats under the lock.
func (l *Locked) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Stats()
}

// Close is SmallObjAllocator.Close under the lock.
func (l *Locked) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Close()
}

// MaxObjectSize is immutable and needs no lock.
func (l *Locked) MaxObjectSize() int { return l.a.MaxObjectSize() }

// Alignment is immutable and needs no lock.
func (l *Locked) Alignment() int { return l.a.Alignment() }

// Compile-time interface check
var _ Allocator = (*Locked)(nil)
