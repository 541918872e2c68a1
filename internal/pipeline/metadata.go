package pipeline

import (
	"crypto/sha256"
	"encoding/binary"
	"path/filepath"
	"sort"

	"github.com/jdoe/dupescan/internal/model"
	"github.com/jdoe/dupescan/internal/progress"
	"github.com/jdoe/dupescan/internal/report"
	"github.com/jdoe/dupescan/internal/walker"
)

// runMetadataOnly implements the metadata_only fast mode (spec.md §4.4):
// duplicate groups are formed directly from (basename, size) keys, bypassing
// both digest stages entirely. The result is flagged confidence=metadata_only.
//
// FolderRollup does not run in this mode: it depends on FullDigest values
// that metadata_only never computes, so folder_groups is always empty here.
func runMetadataOnly(w *walker.Walker, fileCh <-chan model.FileEntry, workers int, sink progress.Sink, warnings *report.WarningCollector) (report.Report, error) {
	type key struct {
		base string
		size int64
	}

	groups := make(map[key][]model.FileEntry)
	var scanned, scannedBytes int64

	for entry := range fileCh {
		scanned++
		scannedBytes += entry.Size
		k := key{base: filepath.Base(entry.Path), size: entry.Size}
		groups[k] = append(groups[k], entry)
	}

	sink.OnEvent(progress.Event{Kind: progress.StageProgress, Phase: progress.PhaseStage1, Done: scanned, Total: scanned})
	_ = w // tree structure is unused in metadata_only mode: no rollup runs

	var fileGroups []report.FileGroup
	var unique []model.FileEntry

	for k, entries := range groups {
		if len(entries) < 2 {
			unique = append(unique, entries...)
			continue
		}
		fileGroups = append(fileGroups, report.FileGroup{
			Digest:  metadataDigest(k.base, k.size),
			Size:    k.size,
			Members: model.NewSorted(pathsOf(entries), func(s string) string { return s }),
		})
	}

	sort.Slice(fileGroups, func(i, j int) bool {
		if fileGroups[i].Size != fileGroups[j].Size {
			return fileGroups[i].Size > fileGroups[j].Size
		}
		return fileGroups[i].Members.First() < fileGroups[j].Members.First()
	})

	stats := report.Stats{
		FilesScanned:   scanned,
		BytesScanned:   scannedBytes,
		DuplicateFiles: countDuplicateFiles(fileGroups, nil),
		DuplicateBytes: countDuplicateBytes(fileGroups, nil),
		Workers:        workers,
		Confidence:     report.ConfidenceMetadataOnly,
	}

	rep := report.Report{
		FileGroups:  fileGroups,
		UniqueFiles: unique,
		Stats:       stats,
		Warnings:    warnings.Counts(),
	}
	sink.OnEvent(progress.Event{Kind: progress.Finished, Stats: stats})
	return rep, nil
}

// metadataDigest is a stand-in FileGroup.Digest for metadata_only groups,
// derived from the (basename, size) key rather than file content.
func metadataDigest(base string, size int64) model.FullDigest {
	h := sha256.New()
	h.Write([]byte(base))
	_ = binary.Write(h, binary.BigEndian, size)
	var out model.FullDigest
	copy(out[:], h.Sum(nil))
	return out
}
