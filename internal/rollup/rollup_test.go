package rollup

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jdoe/dupescan/internal/model"
	"github.com/jdoe/dupescan/internal/progress"
	"github.com/jdoe/dupescan/internal/report"
	"github.com/jdoe/dupescan/internal/testutil"
	"github.com/jdoe/dupescan/internal/walker"
)

func walkAndSizes(t *testing.T, root string) (*walker.Tree, map[string]int64) {
	t.Helper()
	w := walker.New([]string{root}, 0, nil, false, 2, progress.NoopSink{}, report.NewWarningCollector())
	sizes := make(map[string]int64)
	for entry := range w.Walk(context.Background()) {
		sizes[entry.Path] = entry.Size
	}
	return w.Tree(), sizes
}

func TestBuildDetectsDuplicateFolders(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "A", "f.txt"), "hi")
	testutil.WriteFile(t, filepath.Join(root, "A", "g.txt"), "bye")
	testutil.WriteFile(t, filepath.Join(root, "B", "f.txt"), "hi")
	testutil.WriteFile(t, filepath.Join(root, "B", "g.txt"), "bye")

	tree, sizes := walkAndSizes(t, root)

	fullDigest := model.FullDigest{0xAA}
	groupA := filepath.Join(root, "A", "f.txt")
	groupB := filepath.Join(root, "B", "f.txt")
	gA := filepath.Join(root, "A", "g.txt")
	gB := filepath.Join(root, "B", "g.txt")
	fileGroups := []report.FileGroup{
		{Digest: fullDigest, Size: 2, Members: model.NewSorted([]string{groupA, groupB}, func(s string) string { return s })},
		{Digest: model.FullDigest{0xBB}, Size: 3, Members: model.NewSorted([]string{gA, gB}, func(s string) string { return s })},
	}

	_, folderGroups := Build(tree, fileGroups, sizes)
	if len(folderGroups) == 0 {
		t.Fatal("expected at least one folder group for identical subtrees A and B")
	}
}

func TestBuildSuppressesFileGroupsUnderFolderGroup(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "A", "f.txt"), "hi")
	testutil.WriteFile(t, filepath.Join(root, "A", "g.txt"), "bye")
	testutil.WriteFile(t, filepath.Join(root, "B", "f.txt"), "hi")
	testutil.WriteFile(t, filepath.Join(root, "B", "g.txt"), "bye")

	tree, sizes := walkAndSizes(t, root)

	fGroup := []string{filepath.Join(root, "A", "f.txt"), filepath.Join(root, "B", "f.txt")}
	gGroup := []string{filepath.Join(root, "A", "g.txt"), filepath.Join(root, "B", "g.txt")}
	fileGroups := []report.FileGroup{
		{Digest: model.FullDigest{1}, Size: 2, Members: model.NewSorted(fGroup, func(s string) string { return s })},
		{Digest: model.FullDigest{2}, Size: 3, Members: model.NewSorted(gGroup, func(s string) string { return s })},
	}

	filtered, folderGroups := Build(tree, fileGroups, sizes)
	if len(folderGroups) != 1 {
		t.Fatalf("got %d folder groups, want 1", len(folderGroups))
	}
	if len(filtered) != 0 {
		t.Fatalf("got %d surviving file groups, want 0 (all suppressed): %+v", len(filtered), filtered)
	}
}

func TestBuildNoFolderGroupForDifferentSubtrees(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "A", "f.txt"), "hi")
	testutil.WriteFile(t, filepath.Join(root, "B", "f.txt"), "bye")

	tree, sizes := walkAndSizes(t, root)

	_, folderGroups := Build(tree, nil, sizes)
	if len(folderGroups) != 0 {
		t.Fatalf("got %d folder groups, want 0: %+v", len(folderGroups), folderGroups)
	}
}
