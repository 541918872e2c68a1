package pipeline

import (
	"testing"
	"time"

	"github.com/jdoe/dupescan/internal/model"
)

func TestDiskBucketStoreAddAndLoad(t *testing.T) {
	store, err := newDiskBucketStore()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.close() }()

	now := time.Unix(1700000000, 0)
	entries := []model.FileEntry{
		{Path: "/a/one.txt", Size: 5, ModTime: now},
		{Path: "/a/two.txt", Size: 5, ModTime: now},
		{Path: "/a/three.txt", Size: 9, ModTime: now},
	}
	for _, e := range entries {
		if err := store.add(e); err != nil {
			t.Fatal(err)
		}
	}

	got5, err := store.load(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got5) != 2 {
		t.Fatalf("load(5) = %+v, want 2 entries", got5)
	}

	got9, err := store.load(9)
	if err != nil {
		t.Fatal(err)
	}
	if len(got9) != 1 || got9[0].Path != "/a/three.txt" {
		t.Fatalf("load(9) = %+v, want [/a/three.txt]", got9)
	}

	missing, err := store.load(42)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 0 {
		t.Fatalf("load(42) = %+v, want empty", missing)
	}
}

func TestDiskBucketStoreSizesAndCounts(t *testing.T) {
	store, err := newDiskBucketStore()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.close() }()

	if err := store.add(model.FileEntry{Path: "/x", Size: 1}); err != nil {
		t.Fatal(err)
	}
	if err := store.add(model.FileEntry{Path: "/y", Size: 1}); err != nil {
		t.Fatal(err)
	}
	if err := store.add(model.FileEntry{Path: "/z", Size: 2}); err != nil {
		t.Fatal(err)
	}

	sizes := store.sizes()
	if len(sizes) != 2 {
		t.Fatalf("sizes() = %v, want 2 distinct sizes", sizes)
	}
	if store.counts[1] != 2 || store.counts[2] != 1 {
		t.Fatalf("counts = %v, want {1:2, 2:1}", store.counts)
	}
}

func TestDiskBucketStorePreservesModTime(t *testing.T) {
	store, err := newDiskBucketStore()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.close() }()

	mtime := time.Unix(1234567890, 42).UTC()
	if err := store.add(model.FileEntry{Path: "/a", Size: 3, ModTime: mtime}); err != nil {
		t.Fatal(err)
	}

	got, err := store.load(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("load(3) = %+v, want 1 entry", got)
	}
	if !got[0].ModTime.Equal(mtime) {
		t.Errorf("ModTime = %v, want %v", got[0].ModTime, mtime)
	}
}
