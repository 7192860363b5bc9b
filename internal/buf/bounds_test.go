package buf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddOverflowSafe(t *testing.T) {
	if sum, ok := AddOverflowSafe(10, 5); !ok || sum != 15 {
		t.Fatalf("AddOverflowSafe(10,5)=%d,%v want 15,true", sum, ok)
	}
	if _, ok := AddOverflowSafe(math.MaxInt, 1); ok {
		t.Fatalf("expected overflow when adding to MaxInt")
	}
	if _, ok := AddOverflowSafe(math.MinInt, -1); ok {
		t.Fatalf("expected underflow when subtracting from MinInt")
	}
}

func TestMulOverflowSafe(t *testing.T) {
	got, ok := MulOverflowSafe(12, 255)
	require.True(t, ok)
	require.Equal(t, 3060, got)

	got, ok = MulOverflowSafe(0, math.MaxInt)
	require.True(t, ok)
	require.Zero(t, got)

	_, ok = MulOverflowSafe(math.MaxInt/2+1, 2)
	require.False(t, ok, "product above MaxInt must be rejected")

	_, ok = MulOverflowSafe(-1, 8)
	require.False(t, ok, "negative sizes are never valid")
}

func TestCeilDiv(t *testing.T) {
	cases := []struct {
		n, d, ceil int
	}{
		{0, 4, 0},
		{1, 4, 1},
		{4, 4, 1},
		{10, 4, 3},
		{256, 4, 64},
		{7, 6, 2},
	}
	for _, c := range cases {
		require.Equal(t, c.ceil, CeilDiv(c.n, c.d), "CeilDiv(%d,%d)", c.n, c.d)
	}
}

func TestClamp(t *testing.T) {
	require.Equal(t, 8, Clamp(1, 8, 255))
	require.Equal(t, 255, Clamp(4096, 8, 255))
	require.Equal(t, 100, Clamp(100, 8, 255))
}

func TestContains(t *testing.T) {
	base := uintptr(0x1000)
	require.True(t, Contains(base, base, 16))
	require.True(t, Contains(base, base+15, 16))
	require.False(t, Contains(base, base+16, 16))
	require.False(t, Contains(base, base-1, 16))
	require.False(t, Contains(base, base, 0))

	// base near the top of the address space must not wrap.
	top := ^uintptr(0) - 7
	require.True(t, Contains(top, top+7, 8))
	require.False(t, Contains(top, 0, 8))
}
