package format

import (
	"encoding/hex"
	"encoding/json"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/jdoe/dupescan/internal/report"
)

// jsonFormatter renders the schema named in spec.md §6. The shape is a
// stable public interface: field names and nesting must not change without
// a version bump elsewhere in the CLI.
type jsonFormatter struct{}

type jsonFile struct {
	Path          string `json:"path"`
	Size          int64  `json:"size"`
	SizeFormatted string `json:"size_formatted"`
}

type jsonFileGroup struct {
	Hash  string     `json:"hash"`
	Size  int64      `json:"size"`
	Count int        `json:"count"`
	Files []jsonFile `json:"files"`
}

type jsonFolderGroup struct {
	Hash       string   `json:"hash"`
	FileCount  uint32   `json:"file_count"`
	TotalBytes uint64   `json:"total_bytes"`
	Folders    []string `json:"folders"`
}

type jsonStatistics struct {
	FilesScanned   int64  `json:"files_scanned"`
	BytesScanned   int64  `json:"bytes_scanned"`
	FilesHashed    int64  `json:"files_hashed"`
	BytesHashed    int64  `json:"bytes_hashed"`
	DuplicateFiles int    `json:"duplicate_files"`
	DuplicateBytes int64  `json:"duplicate_bytes"`
	Workers        int    `json:"workers"`
	Confidence     string `json:"confidence"`
}

type jsonReport struct {
	DuplicateFiles   []jsonFileGroup   `json:"duplicate_files"`
	DuplicateFolders []jsonFolderGroup `json:"duplicate_folders"`
	UniqueFiles      []jsonFile        `json:"unique_files"`
	Statistics       jsonStatistics    `json:"statistics"`
	Warnings         map[string]int    `json:"warnings"`
}

func (jsonFormatter) Render(w io.Writer, rep report.Report) error {
	out := jsonReport{
		DuplicateFiles:   make([]jsonFileGroup, 0, len(rep.FileGroups)),
		DuplicateFolders: make([]jsonFolderGroup, 0, len(rep.FolderGroups)),
		UniqueFiles:      make([]jsonFile, 0, len(rep.UniqueFiles)),
		Warnings:         make(map[string]int, len(rep.Warnings)),
	}

	for _, g := range rep.FileGroups {
		files := make([]jsonFile, 0, g.Members.Len())
		for _, p := range g.Members.Items() {
			files = append(files, jsonFile{Path: p, Size: g.Size, SizeFormatted: humanize.Bytes(uint64(g.Size))})
		}
		out.DuplicateFiles = append(out.DuplicateFiles, jsonFileGroup{
			Hash:  hex.EncodeToString(g.Digest[:]),
			Size:  g.Size,
			Count: g.Members.Len(),
			Files: files,
		})
	}

	for _, g := range rep.FolderGroups {
		out.DuplicateFolders = append(out.DuplicateFolders, jsonFolderGroup{
			Hash:       hex.EncodeToString(g.Digest[:]),
			FileCount:  g.FileCount,
			TotalBytes: g.TotalBytes,
			Folders:    g.Members.Items(),
		})
	}

	for _, f := range rep.UniqueFiles {
		out.UniqueFiles = append(out.UniqueFiles, jsonFile{Path: f.Path, Size: f.Size, SizeFormatted: humanize.Bytes(uint64(f.Size))})
	}

	out.Statistics = jsonStatistics{
		FilesScanned:   rep.Stats.FilesScanned,
		BytesScanned:   rep.Stats.BytesScanned,
		FilesHashed:    rep.Stats.FilesHashed,
		BytesHashed:    rep.Stats.BytesHashed,
		DuplicateFiles: rep.Stats.DuplicateFiles,
		DuplicateBytes: rep.Stats.DuplicateBytes,
		Workers:        rep.Stats.Workers,
		Confidence:     string(rep.Stats.Confidence),
	}

	for kind, count := range rep.Warnings {
		out.Warnings[kind.String()] = count
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
