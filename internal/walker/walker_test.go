package walker

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/jdoe/dupescan/internal/progress"
	"github.com/jdoe/dupescan/internal/report"
	"github.com/jdoe/dupescan/internal/testutil"
)

func collect(w *Walker) []string {
	var paths []string
	for entry := range w.Walk(context.Background()) {
		paths = append(paths, entry.Path)
	}
	sort.Strings(paths)
	return paths
}

func TestWalkFindsFilesInSubdirectories(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFileSize(t, filepath.Join(root, "file1.txt"), 100)
	testutil.WriteFileSize(t, filepath.Join(root, "file2.txt"), 200)
	testutil.WriteFileSize(t, filepath.Join(root, "subdir", "file3.txt"), 300)

	w := New([]string{root}, 0, nil, false, 2, progress.NoopSink{}, report.NewWarningCollector())
	paths := collect(w)

	if len(paths) != 3 {
		t.Fatalf("got %d files, want 3: %v", len(paths), paths)
	}
}

func TestWalkMinSizeFilter(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFileSize(t, filepath.Join(root, "small.txt"), 1)
	testutil.WriteFileSize(t, filepath.Join(root, "normal.txt"), 100)

	w := New([]string{root}, 50, nil, false, 2, progress.NoopSink{}, report.NewWarningCollector())
	paths := collect(w)

	if len(paths) != 1 || filepath.Base(paths[0]) != "normal.txt" {
		t.Fatalf("got %v, want [normal.txt]", paths)
	}
}

func TestWalkExcludeGlob(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFileSize(t, filepath.Join(root, "keep.txt"), 100)
	testutil.WriteFileSize(t, filepath.Join(root, "exclude.tmp"), 100)

	w := New([]string{root}, 0, []string{"*.tmp"}, false, 2, progress.NoopSink{}, report.NewWarningCollector())
	paths := collect(w)

	if len(paths) != 1 || filepath.Base(paths[0]) != "keep.txt" {
		t.Fatalf("got %v, want [keep.txt]", paths)
	}
}

func TestWalkGitignore(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFileSize(t, filepath.Join(root, "main.go"), 100)
	testutil.WriteFile(t, filepath.Join(root, ".gitignore"), "*.log\n")
	testutil.WriteFileSize(t, filepath.Join(root, "debug.log"), 50)

	w := New([]string{root}, 0, nil, true, 2, progress.NoopSink{}, report.NewWarningCollector())
	paths := collect(w)

	for _, p := range paths {
		if filepath.Ext(p) == ".log" {
			t.Errorf("gitignored file %s was walked", p)
		}
	}
}

func TestWalkBrokenSymlink(t *testing.T) {
	root := t.TempDir()
	testutil.Symlink(t, filepath.Join(root, "does-not-exist"), filepath.Join(root, "broken"))

	warnings := report.NewWarningCollector()
	w := New([]string{root}, 0, nil, false, 2, progress.NoopSink{}, warnings)
	paths := collect(w)

	if len(paths) != 0 {
		t.Fatalf("got %v, want no files", paths)
	}
	if warnings.Counts()[report.BrokenSymlink] != 1 {
		t.Errorf("BrokenSymlink count = %d, want 1", warnings.Counts()[report.BrokenSymlink])
	}
}

func TestWalkFileSymlinkResolved(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFileSize(t, filepath.Join(root, "target.txt"), 42)
	testutil.Symlink(t, filepath.Join(root, "target.txt"), filepath.Join(root, "link.txt"))

	w := New([]string{root}, 0, nil, false, 2, progress.NoopSink{}, report.NewWarningCollector())
	paths := collect(w)

	if len(paths) != 2 {
		t.Fatalf("got %v, want 2 entries (target + resolved symlink)", paths)
	}
}

func TestWalkPermissionDenied(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("skipping permission test when running as root")
	}

	root := t.TempDir()
	testutil.WriteFileSize(t, filepath.Join(root, "accessible.txt"), 100)

	unreadable := filepath.Join(root, "unreadable")
	if err := os.Mkdir(unreadable, 0o000); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chmod(unreadable, 0o755) }()

	warnings := report.NewWarningCollector()
	w := New([]string{root}, 0, nil, false, 2, progress.NoopSink{}, warnings)
	paths := collect(w)

	if len(paths) != 1 {
		t.Errorf("got %d files, want 1 (accessible.txt)", len(paths))
	}
	if warnings.Counts()[report.PermissionDenied] == 0 {
		t.Error("expected a PermissionDenied warning")
	}
}

func TestTreeExcludesMinSizeFilteredFiles(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFileSize(t, filepath.Join(root, "small.txt"), 1)
	testutil.WriteFileSize(t, filepath.Join(root, "normal.txt"), 100)

	w := New([]string{root}, 50, nil, false, 2, progress.NoopSink{}, report.NewWarningCollector())
	for range w.Walk(context.Background()) {
	}

	children := w.Tree().Children(root)
	for _, c := range children {
		if c.Name == "small.txt" {
			t.Errorf("min-size-filtered file %q was recorded in the Tree", c.Name)
		}
	}
	if len(children) != 1 || children[0].Name != "normal.txt" {
		t.Fatalf("root children = %v, want only [normal.txt]", children)
	}
}

func TestTreeRecordsChildren(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFileSize(t, filepath.Join(root, "a.txt"), 10)
	testutil.WriteFileSize(t, filepath.Join(root, "sub", "b.txt"), 20)

	w := New([]string{root}, 0, nil, false, 2, progress.NoopSink{}, report.NewWarningCollector())
	for range w.Walk(context.Background()) {
	}

	tree := w.Tree()
	children := tree.Children(root)
	if len(children) != 2 {
		t.Fatalf("root has %d children, want 2", len(children))
	}

	subChildren := tree.Children(filepath.Join(root, "sub"))
	if len(subChildren) != 1 || subChildren[0].Name != "b.txt" {
		t.Fatalf("sub has children %v, want [b.txt]", subChildren)
	}
}

func TestCapturingSinkSeesEvents(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFileSize(t, filepath.Join(root, "a.txt"), 10)

	sink := progress.NewCapturingSink()
	w := New([]string{root}, 0, nil, false, 2, sink, report.NewWarningCollector())
	for range w.Walk(context.Background()) {
	}

	var sawStarted, sawDiscovered bool
	for _, e := range sink.Snapshot() {
		switch e.Kind {
		case progress.Started:
			sawStarted = true
		case progress.FileDiscovered:
			sawDiscovered = true
		}
	}
	if !sawStarted || !sawDiscovered {
		t.Errorf("sawStarted=%v sawDiscovered=%v, want both true", sawStarted, sawDiscovered)
	}
}
