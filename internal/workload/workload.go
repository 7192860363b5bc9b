// Package workload drives an allocator through repeatable allocation patterns
// and checks that no two live blocks ever share memory.
//
// A Plan allocates Count blocks of Size bytes, stamps each with its own tag,
// then releases them in the order Pattern dictates. Every block's tag is checked
// before it is released. This is repeated Rounds times.
package workload

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"time"
	"unsafe"
)

// ErrAliased is returned when two live blocks overlap or a block's contents
// changed while it was live.
var ErrAliased = errors.New("workload: live blocks alias")

// Allocator is the part of alloc.Allocator a workload needs.
type Allocator interface {
	Allocate(size int) ([]byte, error)
	Deallocate(p []byte, size int) error
}

// Pattern is the release order within a round.
type Pattern int

const (
	LIFO   Pattern = iota // newest first
	FIFO                  // oldest first
	Random                // seeded shuffle
)

func (p Pattern) String() string {
	switch p {
	case LIFO:
		return "lifo"
	case FIFO:
		return "fifo"
	case Random:
		return "random"
	default:
		return fmt.Sprintf("Pattern(%d)", int(p))
	}
}

// ParsePattern accepts "lifo", "fifo" or "random" in any case.
func ParsePattern(s string) (Pattern, error) {
	switch strings.ToLower(s) {
	case "lifo":
		return LIFO, nil
	case "fifo":
		return FIFO, nil
	case "random":
		return Random, nil
	}
	return 0, fmt.Errorf("workload: unknown pattern %q (want lifo, fifo or random)", s)
}

// Plan describes one workload.
type Plan struct {
	Size    int     // bytes per block
	Count   int     // blocks live at the peak of each round
	Rounds  int     // repetitions
	Pattern Pattern // release order
	Seed    int64   // shuffle seed for Random
}

// Validate rejects plans that cannot run.
func (p Plan) Validate() error {
	switch {
	case p.Size < 0:
		return fmt.Errorf("workload: size %d", p.Size)
	case p.Count <= 0:
		return fmt.Errorf("workload: count %d", p.Count)
	case p.Rounds <= 0:
		return fmt.Errorf("workload: rounds %d", p.Rounds)
	case p.Pattern < LIFO || p.Pattern > Random:
		return fmt.Errorf("workload: %v", p.Pattern)
	}
	return nil
}

// Result summarizes a completed run.
type Result struct {
	Plan     Plan          `json:"-"`
	Allocs   int           `json:"allocs"`
	Deallocs int           `json:"deallocs"`
	Elapsed  time.Duration `json:"elapsedNs"`
}

// NsPerOp returns the mean time per Allocate or Deallocate call.
func (r Result) NsPerOp() float64 {
	ops := r.Allocs + r.Deallocs
	if ops == 0 {
		return 0
	}
	return float64(r.Elapsed.Nanoseconds()) / float64(ops)
}

type block struct {
	p   []byte
	tag byte
}

// Run executes plan against a. On failure every block still live is released
// before returning, and the Result reflects the work done so far.
func Run(a Allocator, plan Plan) (res Result, err error) {
	res = Result{Plan: plan}
	if err := plan.Validate(); err != nil {
		return res, err
	}

	rng := rand.New(rand.NewSource(plan.Seed))
	live := make([]block, 0, plan.Count)
	order := make([]int, plan.Count)

	release := func() {
		for _, b := range live {
			if a.Deallocate(b.p, plan.Size) == nil {
				res.Deallocs++
			}
		}
		live = live[:0]
	}

	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()

	for round := range plan.Rounds {
		for i := range plan.Count {
			p, err := a.Allocate(plan.Size)
			if err != nil {
				release()
				return res, fmt.Errorf("round %d block %d: %w", round, i, err)
			}
			res.Allocs++
			tag := byte(i%255 + 1)
			for j := range p {
				p[j] = tag
			}
			live = append(live, block{p: p, tag: tag})
		}

		if err := checkDisjoint(live); err != nil {
			release()
			return res, fmt.Errorf("round %d: %w", round, err)
		}

		for i := range order {
			order[i] = i
		}
		switch plan.Pattern {
		case LIFO:
			slices.Reverse(order)
		case Random:
			rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		for n, idx := range order {
			b := live[idx]
			for j, v := range b.p {
				if v != b.tag {
					live = pending(live, order[n:])
					release()
					return res, fmt.Errorf("round %d: %w: byte %d of block %d is %#x, want %#x",
						round, ErrAliased, j, idx, v, b.tag)
				}
			}
			if err = a.Deallocate(b.p, plan.Size); err != nil {
				live = pending(live, order[n+1:])
				release()
				return res, fmt.Errorf("round %d: release block %d: %w", round, idx, err)
			}
			res.Deallocs++
		}
		live = live[:0]
	}
	return res, nil
}

// pending keeps the blocks at the given indexes, in place.
func pending(live []block, idxs []int) []block {
	out := make([]block, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, live[i])
	}
	return append(live[:0], out...)
}

// checkDisjoint reports ErrAliased when any two blocks' [addr, addr+cap) spans
// overlap.
func checkDisjoint(live []block) error {
	type span struct{ lo, hi uintptr }
	spans := make([]span, 0, len(live))
	for _, b := range live {
		if cap(b.p) == 0 {
			continue
		}
		lo := uintptr(unsafe.Pointer(unsafe.SliceData(b.p)))
		spans = append(spans, span{lo, lo + uintptr(cap(b.p))})
	}
	slices.SortFunc(spans, func(x, y span) int {
		switch {
		case x.lo < y.lo:
			return -1
		case x.lo > y.lo:
			return 1
		}
		return 0
	})
	for i := 1; i < len(spans); i++ {
		if spans[i-1].hi > spans[i].lo {
			return fmt.Errorf("%w: %#x overlaps %#x", ErrAliased, spans[i-1].lo, spans[i].lo)
		}
	}
	return nil
}
