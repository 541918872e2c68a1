package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/jdoe/dupescan/internal/pipeline"
)

// parseSize parses a human-readable size string into bytes. Supports
// formats: "100", "1K", "1MB", "1GiB", etc.
func parseSize(s string) (int64, error) {
	bytes, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return int64(bytes), nil
}

// validateGlobPatterns checks that every pattern is syntactically valid.
func validateGlobPatterns(patterns []string) error {
	for _, pattern := range patterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// exitCodeFor maps a run error to the process exit code contract in
// spec.md §6: 1 for a fatal pipeline error, 130 for cancellation.
func exitCodeFor(err error) (int, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, pipeline.ErrCancelled) {
		return 130, true
	}
	if errors.Is(err, pipeline.ErrRootNotFound) || errors.Is(err, pipeline.ErrRootNotDirectory) || errors.Is(err, pipeline.ErrRootUnreadable) {
		return 1, true
	}
	return 0, false
}
