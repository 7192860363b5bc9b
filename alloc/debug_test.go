//go:build smallobjdebug

package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Run with: go test -tags smallobjdebug ./alloc

func Test_Debug_DoubleFreePanics(t *testing.T) {
	a := newTestAllocator(t, nil)
	p, err := a.Allocate(16)
	require.NoError(t, err)
	_, err = a.Allocate(16) // keep the chunk from draining
	require.NoError(t, err)

	require.NoError(t, a.Deallocate(p, 16))
	requirePanicIs(t, ErrDoubleFree, func() {
		_ = a.Deallocate(p, 16)
	})
}

func Test_Debug_MisalignedPanics(t *testing.T) {
	a := newTestAllocator(t, nil)
	p, err := a.Allocate(16)
	require.NoError(t, err)
	requirePanicIs(t, ErrCorrupt, func() {
		_ = a.Deallocate(p[1:], 16)
	})
}

func Test_Debug_NotOwnedPanics(t *testing.T) {
	a := newTestAllocator(t, nil)
	p, err := a.Allocate(10)
	require.NoError(t, err)
	requirePanicIs(t, ErrNotOwned, func() {
		_ = a.Deallocate(p, 100)
	})
}
