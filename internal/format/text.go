package format

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/jdoe/dupescan/internal/report"
)

// textFormatter renders grouped, emoji-decorated sections, matching the
// teacher's cmd/dupedog verbose-print register (fmt.Fprintf/Fprintln to an
// io.Writer, one path per line).
type textFormatter struct{}

func (textFormatter) Render(w io.Writer, rep report.Report) error {
	if len(rep.FolderGroups) > 0 {
		fmt.Fprintln(w, "📁 Duplicate folders")
		for _, g := range rep.FolderGroups {
			fmt.Fprintf(w, "  %s  (%d files, %s)\n", humanize.Bytes(g.TotalBytes), g.FileCount, humanize.Bytes(g.TotalBytes))
			for _, p := range g.Members.Items() {
				fmt.Fprintf(w, "    %s\n", p)
			}
			fmt.Fprintln(w)
		}
	}

	if len(rep.FileGroups) > 0 {
		fmt.Fprintln(w, "📄 Duplicate files")
		for _, g := range rep.FileGroups {
			fmt.Fprintf(w, "  %s  (%d copies)\n", humanize.Bytes(uint64(g.Size)), g.Members.Len())
			for _, p := range g.Members.Items() {
				fmt.Fprintf(w, "    %s\n", p)
			}
			fmt.Fprintln(w)
		}
	}

	if rep.Stats.Confidence == report.ConfidenceMetadataOnly {
		fmt.Fprintln(w, "⚠ results are approximate (metadata-only mode: name+size matching, no content verification)")
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "📊 Summary")
	fmt.Fprintf(w, "  scanned:    %d files (%s)\n", rep.Stats.FilesScanned, humanize.Bytes(uint64(rep.Stats.BytesScanned)))
	fmt.Fprintf(w, "  hashed:     %d files (%s)\n", rep.Stats.FilesHashed, humanize.Bytes(uint64(rep.Stats.BytesHashed)))
	fmt.Fprintf(w, "  duplicates: %d files, %s reclaimable\n", rep.Stats.DuplicateFiles, humanize.Bytes(uint64(rep.Stats.DuplicateBytes)))
	fmt.Fprintf(w, "  unique:     %d files\n", len(rep.UniqueFiles))
	fmt.Fprintf(w, "  workers:    %d\n", rep.Stats.Workers)

	if total := totalWarnings(rep.Warnings); total > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "⚠ Processing warnings summary")
		for kind, count := range rep.Warnings {
			if count == 0 {
				continue
			}
			fmt.Fprintf(w, "  %s: %d\n", kind, count)
		}
	}

	return nil
}

func totalWarnings(warnings map[report.WarningKind]int) int {
	n := 0
	for _, c := range warnings {
		n += c
	}
	return n
}
