package pipeline

import (
	"context"
	"errors"
	"os"

	"github.com/jdoe/dupescan/internal/config"
	"github.com/jdoe/dupescan/internal/digest"
	"github.com/jdoe/dupescan/internal/model"
	"github.com/jdoe/dupescan/internal/progress"
	"github.com/jdoe/dupescan/internal/report"
	"github.com/jdoe/dupescan/internal/workerpool"
)

// processSizeBucket runs Stage 2 and Stage 3 for one size bucket of ≥2
// same-sized files, returning the FileGroups it formed and the members that
// turned out unique along the way.
func processSizeBucket(ctx context.Context, pool *workerpool.Pool, size int64, entries []model.FileEntry, cfg config.Config, warnings *report.WarningCollector) (groups []report.FileGroup, unique []model.FileEntry, hashedFiles, hashedBytes int64) {
	partialJobs := make([]workerpool.Job, len(entries))
	for i, e := range entries {
		partialJobs[i] = workerpool.Job{Entry: e, Kind: model.JobPartial}
	}

	partialResults := runBatched(ctx, pool, progress.PhaseStage2, partialJobs, cfg.BatchSize)

	partialGroups := make(map[model.PartialDigest][]model.FileEntry)
	for _, r := range partialResults {
		if r.Err != nil {
			warnings.Add(classifyDigestErr(r.Err), r.Job.Entry.Path)
			continue
		}
		hashedFiles++
		hashedBytes += minInt64(r.Job.Entry.Size, cfg.PartialSizeBytes)
		partialGroups[r.Partial] = append(partialGroups[r.Partial], r.Job.Entry)
	}

	for partial, members := range partialGroups {
		if len(members) < 2 {
			unique = append(unique, members...)
			continue
		}

		if size <= cfg.PartialSizeBytes {
			// The partial digest already covers the file's entire content;
			// promote the partition directly instead of re-reading in Stage 3.
			groups = append(groups, report.FileGroup{
				Digest:  model.FullDigest(partial),
				Size:    size,
				Members: model.NewSorted(pathsOf(members), func(s string) string { return s }),
			})
			continue
		}

		fullJobs := make([]workerpool.Job, len(members))
		for i, e := range members {
			fullJobs[i] = workerpool.Job{Entry: e, Kind: model.JobFull}
		}
		fullResults := runBatched(ctx, pool, progress.PhaseStage3, fullJobs, cfg.BatchSize)

		fullGroups := make(map[model.FullDigest][]model.FileEntry)
		for _, r := range fullResults {
			if r.Err != nil {
				warnings.Add(classifyDigestErr(r.Err), r.Job.Entry.Path)
				continue
			}
			hashedFiles++
			hashedBytes += r.Job.Entry.Size
			fullGroups[r.Full] = append(fullGroups[r.Full], r.Job.Entry)
		}

		for fullDigest, fmembers := range fullGroups {
			if len(fmembers) < 2 {
				unique = append(unique, fmembers...)
				continue
			}
			groups = append(groups, report.FileGroup{
				Digest:  fullDigest,
				Size:    size,
				Members: model.NewSorted(pathsOf(fmembers), func(s string) string { return s }),
			})
		}
	}

	return groups, unique, hashedFiles, hashedBytes
}

// runBatched submits jobs to pool in chunks of batchSize (0 or ≥len(jobs)
// means "all at once"), bounding how many job results are held in flight at
// a time for pathological inputs where many files share one size.
func runBatched(ctx context.Context, pool *workerpool.Pool, phase progress.Phase, jobs []workerpool.Job, batchSize int) []workerpool.Result {
	if batchSize <= 0 || batchSize >= len(jobs) {
		return pool.Run(ctx, phase, jobs)
	}
	results := make([]workerpool.Result, 0, len(jobs))
	for start := 0; start < len(jobs); start += batchSize {
		end := start + batchSize
		if end > len(jobs) {
			end = len(jobs)
		}
		results = append(results, pool.Run(ctx, phase, jobs[start:end])...)
	}
	return results
}

func classifyDigestErr(err error) report.WarningKind {
	switch {
	case errors.Is(err, digest.ErrVanished):
		return report.Vanished
	case os.IsPermission(err):
		return report.PermissionDenied
	default:
		return report.IoError
	}
}

func pathsOf(entries []model.FileEntry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
