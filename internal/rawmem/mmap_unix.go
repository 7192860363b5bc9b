//go:build linux || darwin || freebsd

package rawmem

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Mmap allocates buffers as anonymous private mappings outside the Go heap.
// Every buffer is rounded up to whole pages by the kernel; only n bytes are
// exposed.
type Mmap struct{}

// Alloc maps n zeroed bytes.
func (Mmap) Alloc(n int) ([]byte, error) {
	if n <= 0 {
		return []byte{}, nil
	}
	data, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %d bytes: %v", ErrExhausted, n, err)
	}
	return data, nil
}

// Free unmaps b. b must be the exact slice returned by Alloc.
func (Mmap) Free(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	err := unix.Munmap(b)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}
