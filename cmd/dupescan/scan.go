package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdoe/dupescan/internal/config"
	"github.com/jdoe/dupescan/internal/digest"
	"github.com/jdoe/dupescan/internal/format"
	"github.com/jdoe/dupescan/internal/pipeline"
	"github.com/jdoe/dupescan/internal/progress"
	"github.com/jdoe/dupescan/internal/report"
)

// scanOptions holds CLI flags for the scan command.
type scanOptions struct {
	minSizeStr      string
	excludes        []string
	gitignore       bool
	workers         int
	diskKind        string
	batchSize       int
	memoryEfficient bool
	metadataOnly    bool
	partialSize     int64
	chunkSize       int64
	cacheFile       string
	configFile      string
	formatStr       string
	noProgress      bool
	verbose         bool
	cancelAfter     time.Duration
}

func newScanCmd() *cobra.Command {
	opts := &scanOptions{
		minSizeStr: "1",
	}

	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scan directory trees for duplicate files and folders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runScan(args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.minSizeStr, "min-size", "m", opts.minSizeStr, "Minimum file size (e.g., 100, 1K, 10M, 1G)")
	cmd.Flags().StringSliceVarP(&opts.excludes, "exclude", "e", nil, "Glob patterns to exclude")
	cmd.Flags().BoolVar(&opts.gitignore, "gitignore", false, "Honor .gitignore files found during the walk")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Number of parallel workers (0 = auto-detect)")
	cmd.Flags().StringVar(&opts.diskKind, "disk-kind", "", "Disk type hint for worker auto-detection: unknown|ssd|hdd")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Process size buckets in batches of this many entries (0 = no batching)")
	cmd.Flags().BoolVar(&opts.memoryEfficient, "memory-efficient", false, "Bound peak memory at some throughput cost")
	cmd.Flags().BoolVar(&opts.metadataOnly, "metadata-only", false, "Match by name+size only, skip content hashing")
	cmd.Flags().Int64Var(&opts.partialSize, "partial-size", 0, "Override the partial-digest prefix size in bytes")
	cmd.Flags().Int64Var(&opts.chunkSize, "chunk-size", 0, "Override the full-digest read chunk size in bytes")
	cmd.Flags().StringVar(&opts.cacheFile, "cache-file", "", "Path to a digest cache file (enables caching across runs)")
	cmd.Flags().StringVar(&opts.configFile, "config", "", "Path to a TOML config file")
	cmd.Flags().StringVar(&opts.formatStr, "format", "text", "Output format: text|json")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show individual file discovery events")
	cmd.Flags().DurationVar(&opts.cancelAfter, "cancel-after", 0, "Cancel the scan after this duration (0 = never)")

	return cmd
}

func runScan(paths []string, opts *scanOptions) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}

	minSize, err := parseSize(opts.minSizeStr)
	if err != nil {
		return fmt.Errorf("invalid --min-size: %w", err)
	}
	if err := validateGlobPatterns(opts.excludes); err != nil {
		return fmt.Errorf("invalid --exclude: %w", err)
	}

	cfg.MinSizeBytes = minSize
	cfg.Excludes = opts.excludes
	cfg.Gitignore = opts.gitignore
	cfg.CacheFile = opts.cacheFile
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.diskKind != "" {
		cfg.DiskKind = config.DiskKind(opts.diskKind)
	}
	if opts.batchSize > 0 {
		cfg.BatchSize = opts.batchSize
	}
	cfg.MemoryEfficient = opts.memoryEfficient
	cfg.MetadataOnly = opts.metadataOnly
	if opts.partialSize > 0 {
		cfg.PartialSizeBytes = opts.partialSize
	}
	if opts.chunkSize > 0 {
		cfg.ChunkSizeBytes = opts.chunkSize
	}

	ctx := context.Background()
	if opts.cancelAfter > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.cancelAfter)
		defer cancel()
	}

	var sink progress.Sink = progress.NoopSink{}
	if !opts.noProgress && format.Kind(opts.formatStr) != format.JSON {
		sink = progress.NewTerminalSink(opts.verbose)
	}

	cache, err := digest.OpenCache(cfg.CacheFile)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() { _ = cache.Close() }()

	warnings := report.NewWarningCollector()

	rep, err := pipeline.Run(ctx, paths, cfg, sink, warnings, cache)
	if err != nil {
		return err
	}

	formatter := format.New(format.Kind(opts.formatStr))
	return formatter.Render(os.Stdout, rep)
}
