package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jdoe/dupescan/internal/model"
	"github.com/jdoe/dupescan/internal/report"
)

func sampleReport() report.Report {
	members := model.NewSorted([]string{"/t/a.txt", "/t/b.txt"}, func(s string) string { return s })
	return report.Report{
		FileGroups: []report.FileGroup{
			{Digest: model.FullDigest{1, 2, 3}, Size: 5, Members: members},
		},
		UniqueFiles: []model.FileEntry{{Path: "/t/c.txt", Size: 5}},
		Stats: report.Stats{
			FilesScanned:   3,
			BytesScanned:   15,
			FilesHashed:    2,
			DuplicateFiles: 2,
			DuplicateBytes: 5,
			Workers:        4,
			Confidence:     report.ConfidenceFull,
		},
		Warnings: map[report.WarningKind]int{report.PermissionDenied: 1},
	}
}

func TestTextFormatterContainsMembers(t *testing.T) {
	var buf bytes.Buffer
	if err := New(Text).Render(&buf, sampleReport()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "/t/a.txt") || !strings.Contains(out, "/t/b.txt") {
		t.Errorf("text output missing duplicate members: %s", out)
	}
	if !strings.Contains(out, "permission_denied") {
		t.Errorf("text output missing warning summary: %s", out)
	}
}

func TestJSONFormatterSchema(t *testing.T) {
	var buf bytes.Buffer
	if err := New(JSON).Render(&buf, sampleReport()); err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	for _, key := range []string{"duplicate_files", "duplicate_folders", "unique_files", "statistics", "warnings"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("JSON output missing top-level key %q", key)
		}
	}

	files, ok := decoded["duplicate_files"].([]any)
	if !ok || len(files) != 1 {
		t.Fatalf("duplicate_files = %v, want one entry", decoded["duplicate_files"])
	}
	group := files[0].(map[string]any)
	if group["count"] != float64(2) {
		t.Errorf("duplicate_files[0].count = %v, want 2", group["count"])
	}
}

func TestNewDefaultsToText(t *testing.T) {
	if _, ok := New("bogus").(textFormatter); !ok {
		t.Error("New(\"bogus\") should default to textFormatter")
	}
}
