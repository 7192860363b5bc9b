package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/smallobj/alloc"
)

var (
	classesPage  int
	classesMax   int
	classesAlign int
)

func init() {
	cmd := newClassesCmd()
	cmd.Flags().IntVar(&classesPage, "page", alloc.DefaultConfig.PageBytes, "Target chunk size in bytes")
	cmd.Flags().IntVar(&classesMax, "max", alloc.DefaultConfig.MaxObjectSize, "Largest pooled object size")
	cmd.Flags().IntVar(&classesAlign, "align", alloc.DefaultConfig.Alignment, "Size-class granularity")
	rootCmd.AddCommand(cmd)
}

func newClassesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "Print the size-class table",
		Long: `The classes command prints every size class an allocator with the given
layout would own: block size, blocks per chunk and chunk size.

Example:
  smallobjctl classes
  smallobjctl classes --page 16384 --max 1024 --align 16
  smallobjctl classes --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses()
		},
	}
	return cmd
}

func runClasses() error {
	cfg := alloc.Config{PageBytes: classesPage, MaxObjectSize: classesMax, Alignment: classesAlign}
	table, err := alloc.ClassTable(&cfg)
	if err != nil {
		return fmt.Errorf("failed to build class table: %w", err)
	}

	if jsonOut {
		return printJSON(table)
	}

	printInfo("\nSize classes (page %d, max %d, align %d): %d\n",
		cfg.PageBytes, cfg.MaxObjectSize, cfg.Alignment, len(table))
	printInfo("  %5s  %6s  %6s  %8s\n", "class", "block", "blocks", "chunk")
	for _, c := range table {
		printInfo("  %5d  %6d  %6d  %8d\n", c.Index, c.BlockSize, c.BlockCount, c.ChunkBytes)
	}
	return nil
}
