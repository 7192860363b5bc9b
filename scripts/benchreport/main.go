// Command benchreport turns `go test -bench` output for the alloc package into
// a markdown table comparing pooled allocation against plain heap allocation.
//
//	go test -bench . -benchmem ./alloc | go run ./scripts/benchreport
//
// Benchmarks pair up by name: BenchmarkSmallObj_<Op>[/<variant>] is compared
// with BenchmarkHeap_<Op>. A SmallObj benchmark with no Heap twin is reported
// on its own.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BenchmarkResult is one parsed benchmark line.
type BenchmarkResult struct {
	Name        string
	Impl        string // "SmallObj" or "Heap"
	Operation   string
	Variant     string
	Iterations  int
	NsPerOp     float64
	BytesPerOp  int64
	AllocsPerOp int64
}

// Comparison pairs a pooled benchmark with its heap baseline.
type Comparison struct {
	Operation string
	Variant   string
	Pooled    BenchmarkResult
	Heap      *BenchmarkResult
}

// Speedup returns heap ns/op over pooled ns/op, or 0 without a baseline.
func (c Comparison) Speedup() float64 {
	if c.Heap == nil || c.Pooled.NsPerOp == 0 {
		return 0
	}
	return c.Heap.NsPerOp / c.Pooled.NsPerOp
}

var (
	inputFile  = flag.String("input", "", "Input file with benchmark output (stdin if not specified)")
	outputFile = flag.String("output", "", "Output markdown file (stdout if not specified)")
	quiet      = flag.Bool("quiet", false, "Suppress progress output")
)

func main() {
	flag.Parse()

	in := io.Reader(os.Stdin)
	if *inputFile != "" {
		f, err := os.Open(*inputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening input file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	results := parseBenchmarks(in)
	comparisons := generateComparisons(results)
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Parsed %d benchmark results, %d comparisons\n", len(results), len(comparisons))
	}

	report := generateMarkdownReport(comparisons, time.Now())
	if *outputFile == "" {
		fmt.Fprint(os.Stdout, report)
		return
	}
	if err := os.WriteFile(*outputFile, []byte(report), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Report written to %s\n", *outputFile)
	}
}

// BenchmarkSmallObj_Batch/mmap-8    1234    956789 ns/op    0 B/op    0 allocs/op
var benchmarkRegex = regexp.MustCompile(
	`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+(\d+)\s+B/op)?(?:\s+(\d+)\s+allocs/op)?`,
)

func parseBenchmarks(r io.Reader) []BenchmarkResult {
	var results []BenchmarkResult
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		// go test -json wraps each line in an event
		var event struct{ Output string }
		if err := json.Unmarshal([]byte(line), &event); err == nil && event.Output != "" {
			line = event.Output
		}

		m := benchmarkRegex.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		impl, op, variant, ok := splitName(m[1])
		if !ok {
			continue
		}
		res := BenchmarkResult{Name: m[1], Impl: impl, Operation: op, Variant: variant}
		res.Iterations, _ = strconv.Atoi(m[2])
		res.NsPerOp, _ = strconv.ParseFloat(m[3], 64)
		if m[4] != "" {
			res.BytesPerOp, _ = strconv.ParseInt(m[4], 10, 64)
		}
		if m[5] != "" {
			res.AllocsPerOp, _ = strconv.ParseInt(m[5], 10, 64)
		}
		results = append(results, res)
	}
	return results
}

// splitName parses Benchmark<Impl>_<Op>[/<variant>][-<procs>].
func splitName(name string) (impl, op, variant string, ok bool) {
	name = strings.TrimPrefix(name, "Benchmark")
	if i := strings.LastIndex(name, "-"); i > 0 {
		if _, err := strconv.Atoi(name[i+1:]); err == nil {
			name = name[:i]
		}
	}
	head, variant, _ := strings.Cut(name, "/")
	impl, op, ok = strings.Cut(head, "_")
	if !ok || (impl != "SmallObj" && impl != "Heap") {
		return "", "", "", false
	}
	return impl, op, variant, true
}

func generateComparisons(results []BenchmarkResult) []Comparison {
	heap := make(map[string]BenchmarkResult)
	for _, r := range results {
		if r.Impl == "Heap" {
			heap[r.Operation] = r
		}
	}

	var comparisons []Comparison
	for _, r := range results {
		if r.Impl != "SmallObj" {
			continue
		}
		c := Comparison{Operation: r.Operation, Variant: r.Variant, Pooled: r}
		if h, ok := heap[r.Operation]; ok {
			c.Heap = &h
		}
		comparisons = append(comparisons, c)
	}

	sort.Slice(comparisons, func(i, j int) bool {
		if comparisons[i].Operation != comparisons[j].Operation {
			return comparisons[i].Operation < comparisons[j].Operation
		}
		return comparisons[i].Variant < comparisons[j].Variant
	})
	return comparisons
}

func generateMarkdownReport(comparisons []Comparison, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Allocator Benchmark Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", now.Format("2006-01-02 15:04:05"))

	faster, paired := 0, 0
	for _, c := range comparisons {
		if c.Heap == nil {
			continue
		}
		paired++
		if c.Speedup() > 1.0 {
			faster++
		}
	}
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- **Benchmarks**: %d (%d with a heap baseline)\n", len(comparisons), paired)
	fmt.Fprintf(&sb, "- **Pooled faster**: %d of %d\n\n", faster, paired)

	sb.WriteString("| Operation | Variant | pooled (ns/op) | heap (ns/op) | Speedup | Allocs |\n")
	sb.WriteString("|-----------|---------|----------------|--------------|---------|--------|\n")
	for _, c := range comparisons {
		variant := c.Variant
		if variant == "" {
			variant = "-"
		}
		if c.Heap == nil {
			fmt.Fprintf(&sb, "| %s | %s | %s | *N/A* | *pooled only* | %s |\n",
				c.Operation, variant, formatNumber(c.Pooled.NsPerOp), formatNumber(float64(c.Pooled.AllocsPerOp)))
			continue
		}
		indicator := "✓"
		if c.Speedup() < 1.0 {
			indicator = "✗"
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %.2fx %s | %s vs %s |\n",
			c.Operation, variant,
			formatNumber(c.Pooled.NsPerOp), formatNumber(c.Heap.NsPerOp),
			c.Speedup(), indicator,
			formatNumber(float64(c.Pooled.AllocsPerOp)), formatNumber(float64(c.Heap.AllocsPerOp)))
	}
	return sb.String()
}

func formatNumber(n float64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.2fM", n/1000000)
	} else if n >= 1000 {
		return fmt.Sprintf("%.1fK", n/1000)
	}
	return fmt.Sprintf("%.0f", n)
}
