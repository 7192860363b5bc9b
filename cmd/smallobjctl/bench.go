package main

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/smallobj/alloc"
	"github.com/joshuapare/smallobj/internal/logger"
	"github.com/joshuapare/smallobj/internal/rawmem"
	"github.com/joshuapare/smallobj/internal/workload"
)

var (
	benchSize    int
	benchCount   int
	benchRounds  int
	benchPattern string
	benchSeed    int64
	benchSource  string
	benchBudget  int
	benchTrim    bool
)

func init() {
	cmd := newBenchCmd()
	cmd.Flags().IntVar(&benchSize, "size", 24, "Bytes per block")
	cmd.Flags().IntVar(&benchCount, "count", 10000, "Blocks live at the peak of each round")
	cmd.Flags().IntVar(&benchRounds, "rounds", 10, "Number of rounds")
	cmd.Flags().StringVar(&benchPattern, "pattern", "lifo", "Release order: lifo, fifo, random")
	cmd.Flags().Int64Var(&benchSeed, "seed", 1, "Shuffle seed for --pattern random")
	cmd.Flags().StringVar(&benchSource, "source", "heap", "Chunk memory: heap, mmap")
	cmd.Flags().IntVar(&benchBudget, "budget", 0, "Cap on chunk bytes (0 = unlimited)")
	cmd.Flags().BoolVar(&benchTrim, "trim", false, "Call TrimExcessMemory after the run")
	rootCmd.AddCommand(cmd)
}

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Drive an allocation workload and report allocator statistics",
		Long: `The bench command allocates --count blocks of --size bytes, stamps each,
then releases them in --pattern order, for --rounds rounds. Every block is
verified before release and the allocator's free lists are checked at the end.

The layout comes from the default configuration overlaid with SMALLOBJ_*
environment variables.

Example:
  smallobjctl bench
  smallobjctl bench --size 100 --pattern random --seed 7
  smallobjctl bench --source mmap --budget 65536 --trim --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench()
		},
	}
	return cmd
}

// BenchReport is the bench command's JSON output.
type BenchReport struct {
	Size     int         `json:"size"`
	Count    int         `json:"count"`
	Rounds   int         `json:"rounds"`
	Pattern  string      `json:"pattern"`
	Source   string      `json:"source"`
	Allocs   int         `json:"allocs"`
	Deallocs int         `json:"deallocs"`
	NsPerOp  float64     `json:"nsPerOp"`
	Trimmed  bool        `json:"trimmed"`
	Stats    alloc.Stats `json:"stats"`
	SourceKB float64     `json:"sourceLiveKB"`
}

func runBench() error {
	src, err := rawmem.ByName(benchSource)
	if err != nil {
		return err
	}
	return runBenchOn(src)
}

// runBenchOn runs the workload with chunk memory from src.
func runBenchOn(src rawmem.Source) error {
	pattern, err := workload.ParsePattern(benchPattern)
	if err != nil {
		return err
	}
	budget := rawmem.NewBudget(src, benchBudget)
	if benchBudget <= 0 {
		budget.SetLimit(math.MaxInt)
	}

	cfg, err := alloc.ConfigFromEnv(alloc.DefaultConfig)
	if err != nil {
		return err
	}
	cfg.Source = budget

	a, err := alloc.New(&cfg)
	if err != nil {
		return err
	}
	logger.Debug("allocator configured",
		"pageBytes", cfg.PageBytes,
		"maxObjectSize", cfg.MaxObjectSize,
		"alignment", cfg.Alignment,
		"source", benchSource)

	plan := workload.Plan{
		Size:    benchSize,
		Count:   benchCount,
		Rounds:  benchRounds,
		Pattern: pattern,
		Seed:    benchSeed,
	}
	printVerbose("Running %d rounds of %d x %dB (%s) on %s\n",
		plan.Rounds, plan.Count, plan.Size, plan.Pattern, benchSource)

	report, elapsed, err := benchAllocator(a, budget, plan)
	if cerr := a.Close(); cerr != nil {
		logger.Error("allocator close failed", "err", cerr)
		if err == nil {
			err = fmt.Errorf("failed to close allocator: %w", cerr)
		}
	}
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(report)
	}
	printBenchReport(report, elapsed)
	return nil
}

// benchAllocator drives plan against a and collects the report. The caller
// closes a.
func benchAllocator(a *alloc.SmallObjAllocator, budget *rawmem.Budget, plan workload.Plan) (BenchReport, time.Duration, error) {
	res, err := workload.Run(a, plan)
	if err != nil {
		return BenchReport{}, 0, fmt.Errorf("workload failed: %w", err)
	}
	if a.IsCorrupt() {
		return BenchReport{}, 0, fmt.Errorf("free list check failed after workload: %w", alloc.ErrCorrupt)
	}

	trimmed := false
	if benchTrim {
		trimmed = a.TrimExcessMemory()
		if !trimmed {
			logger.Warn("trim reclaimed nothing")
		}
	}

	report := BenchReport{
		Size:     plan.Size,
		Count:    plan.Count,
		Rounds:   plan.Rounds,
		Pattern:  plan.Pattern.String(),
		Source:   benchSource,
		Allocs:   res.Allocs,
		Deallocs: res.Deallocs,
		NsPerOp:  res.NsPerOp(),
		Trimmed:  trimmed,
		Stats:    a.Stats(),
		SourceKB: float64(budget.Live()) / 1024,
	}
	logger.Info("workload complete",
		"allocs", res.Allocs,
		"deallocs", res.Deallocs,
		"nsPerOp", report.NsPerOp,
		"chunksCreated", report.Stats.ChunksCreated)
	return report, res.Elapsed, nil
}

func printBenchReport(r BenchReport, elapsed time.Duration) {
	st := r.Stats
	printInfo("\nWorkload: %d rounds x %d blocks of %dB, %s release, %s chunks\n",
		r.Rounds, r.Count, r.Size, r.Pattern, r.Source)
	printInfo("  Operations: %d alloc, %d dealloc in %v (%.1f ns/op)\n",
		r.Allocs, r.Deallocs, elapsed.Round(time.Microsecond), r.NsPerOp)
	printInfo("  Chunks:     %d created, %d released, %d resident (%d empty)\n",
		st.ChunksCreated, st.ChunksReleased, st.Chunks, st.EmptyChunks)
	printInfo("  Fallback:   %d alloc, %d dealloc\n", st.FallbackAllocs, st.FallbackDeallocs)
	printInfo("  Trims:      %d (%d retries), trimmed after run: %v\n", st.Trims, st.TrimRetries, r.Trimmed)
	printInfo("  Source:     %.1f KB live\n", r.SourceKB)
	printInfo("\nValidation:\n")
	printInfo("  ✓ No aliased blocks\n")
	printInfo("  ✓ Free lists intact\n")
}
