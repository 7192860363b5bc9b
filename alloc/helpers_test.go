package alloc

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// countingGeneral records every call routed to the general allocator.
type countingGeneral struct {
	allocs   int
	deallocs int
	live     map[uintptr]int
}

func newCountingGeneral() *countingGeneral {
	return &countingGeneral{live: make(map[uintptr]int)}
}

func (g *countingGeneral) Allocate(size int) ([]byte, error) {
	g.allocs++
	p := make([]byte, size)
	g.live[addrOf(p)] = size
	return p, nil
}

func (g *countingGeneral) Deallocate(p []byte) {
	g.deallocs++
	delete(g.live, addrOf(p))
}

// testConfig returns the reference layout (4096, 256, 4) with the given
// collaborators.
func testConfig(t testing.TB, g GeneralAllocator) *Config {
	t.Helper()
	return &Config{
		Name:          "test",
		PageBytes:     4096,
		MaxObjectSize: 256,
		Alignment:     4,
		Fallback:      g,
	}
}

// stamp fills p with tag.
func stamp(p []byte, tag byte) {
	for i := range p {
		p[i] = tag
	}
}

// requireStamped verifies p still holds tag everywhere.
func requireStamped(t testing.TB, p []byte, tag byte) {
	t.Helper()
	for i, v := range p {
		if v != tag {
			t.Fatalf("block %#x byte %d = %#x, want %#x (aliased?)", addrOf(p), i, v, tag)
		}
	}
}

// requireDisjoint verifies no two blocks overlap, using [addr, addr+cap).
func requireDisjoint(t testing.TB, blocks [][]byte) {
	t.Helper()
	type span struct{ lo, hi uintptr }
	spans := make([]span, 0, len(blocks))
	for _, b := range blocks {
		lo := addrOf(b)
		spans = append(spans, span{lo, lo + uintptr(cap(b))})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })
	for i := 1; i < len(spans); i++ {
		require.LessOrEqual(t, spans[i-1].hi, spans[i].lo,
			"blocks %#x and %#x overlap", spans[i-1].lo, spans[i].lo)
	}
}

// requirePanicIs runs fn and requires a panic whose value is an error wrapping target.
func requirePanicIs(t testing.TB, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected panic wrapping %v", target)
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.True(t, errors.Is(err, target), "panic %v does not wrap %v", err, target)
	}()
	fn()
}
