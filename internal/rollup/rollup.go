// Package rollup implements FolderRollup (spec.md §4.5): it computes a
// DirectoryDigest bottom-up for every directory the Walker visited, groups
// directories whose complete recursive contents match, applies the
// containment rule to keep only maximal duplicate directories, and rewrites
// the file-group report accordingly.
//
// Grounded on meisterluk-dupfiles-go's hash_a_tree.go (bottom-up traversal
// folding sorted child tuples into a directory digest) and the
// twpayne-find-duplicates finder's group-by-digest-then-filter-singletons
// shape — neither is the teacher (dupedog never computed directory-level
// equivalence; it only ever replaced individual files), so this package has
// no teacher file to adapt line-by-line and is written fresh in their idiom.
package rollup

import (
	"crypto/sha256"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/jdoe/dupescan/internal/model"
	"github.com/jdoe/dupescan/internal/report"
	"github.com/jdoe/dupescan/internal/walker"
)

type childTuple struct {
	name   string
	kind   byte
	digest [32]byte
}

// Build computes DirectoryDigests from tree and rewrites fileGroups into a
// filtered file-group list plus a folder-group list, per spec.md §4.5.
// sizes maps every walked file path to its size, used to populate
// FolderGroup.TotalBytes.
func Build(tree *walker.Tree, fileGroups []report.FileGroup, sizes map[string]int64) ([]report.FileGroup, []report.FolderGroup) {
	fileDigest := make(map[string]model.FullDigest, len(sizes))
	for _, g := range fileGroups {
		for _, p := range g.Members.Items() {
			fileDigest[p] = g.Digest
		}
	}

	dirDigest := make(map[string]model.DirectoryDigest)
	fileCount := make(map[string]uint32)
	totalBytes := make(map[string]uint64)

	var walkDir func(dir string) (model.DirectoryDigest, uint32, uint64)
	walkDir = func(dir string) (model.DirectoryDigest, uint32, uint64) {
		if d, ok := dirDigest[dir]; ok {
			return d, fileCount[dir], totalBytes[dir]
		}

		children := tree.Children(dir)
		tuples := make([]childTuple, 0, len(children))
		var fc uint32
		var tb uint64

		for _, c := range children {
			switch c.Kind {
			case walker.ChildFile:
				fc++
				tb += uint64(sizes[c.Path])
				d, ok := fileDigest[c.Path]
				if !ok {
					d = model.FullDigest(sentinelDigest(c.Path))
				}
				tuples = append(tuples, childTuple{name: c.Name, kind: 0, digest: d})
			case walker.ChildDir:
				dd, subFc, subTb := walkDir(c.Path)
				fc += subFc
				tb += subTb
				tuples = append(tuples, childTuple{name: c.Name, kind: 1, digest: dd})
			}
		}

		sort.Slice(tuples, func(i, j int) bool { return tuples[i].name < tuples[j].name })

		d := combine(tuples)
		dirDigest[dir] = d
		fileCount[dir] = fc
		totalBytes[dir] = tb
		return d, fc, tb
	}

	for _, dir := range tree.Dirs() {
		walkDir(dir)
	}

	byDigest := make(map[model.DirectoryDigest][]string)
	for dir, d := range dirDigest {
		if fileCount[dir] == 0 {
			continue // empty directories never form a FolderGroup
		}
		byDigest[d] = append(byDigest[d], dir)
	}

	var candidates []string
	candidateSet := make(map[string]bool)
	for _, dirs := range byDigest {
		if len(dirs) < 2 {
			continue
		}
		candidates = append(candidates, dirs...)
		for _, d := range dirs {
			candidateSet[d] = true
		}
	}

	// Containment rule (spec.md §4.5 step 3): retain only maximal duplicate
	// directories. A candidate is suppressed if any of its proper ancestors
	// is also a candidate, regardless of which group the ancestor belongs to.
	suppressed := make(map[string]bool)
	for _, dir := range candidates {
		for anc := filepath.Dir(dir); anc != "." && anc != string(filepath.Separator) && anc != ""; {
			if candidateSet[anc] {
				suppressed[dir] = true
				break
			}
			parent := filepath.Dir(anc)
			if parent == anc {
				break
			}
			anc = parent
		}
	}

	var folderGroups []report.FolderGroup
	for digest, dirs := range byDigest {
		if len(dirs) < 2 {
			continue
		}
		var survivors []string
		for _, d := range dirs {
			if !suppressed[d] {
				survivors = append(survivors, d)
			}
		}
		if len(survivors) < 2 {
			continue
		}
		folderGroups = append(folderGroups, report.FolderGroup{
			Digest:     digest,
			Members:    model.NewSorted(survivors, func(s string) string { return s }),
			FileCount:  fileCount[dirs[0]],
			TotalBytes: totalBytes[dirs[0]],
		})
	}

	sort.Slice(folderGroups, func(i, j int) bool {
		if folderGroups[i].TotalBytes != folderGroups[j].TotalBytes {
			return folderGroups[i].TotalBytes > folderGroups[j].TotalBytes
		}
		return folderGroups[i].Members.First() < folderGroups[j].Members.First()
	})

	// Cross-group containment (spec.md §4.5 step 4): any file beneath a
	// reported folder member is suppressed from file_groups, even if it
	// belongs to a different FolderGroup than the one containing its parent.
	var coveringDirs []string
	for _, fg := range folderGroups {
		coveringDirs = append(coveringDirs, fg.Members.Items()...)
	}

	filteredGroups := make([]report.FileGroup, 0, len(fileGroups))
	for _, g := range fileGroups {
		var survivors []string
		for _, p := range g.Members.Items() {
			if !underAny(p, coveringDirs) {
				survivors = append(survivors, p)
			}
		}
		if len(survivors) < 2 {
			continue
		}
		filteredGroups = append(filteredGroups, report.FileGroup{
			Digest:  g.Digest,
			Size:    g.Size,
			Members: model.NewSorted(survivors, func(s string) string { return s }),
		})
	}

	return filteredGroups, folderGroups
}

func underAny(path string, dirs []string) bool {
	for _, dir := range dirs {
		if strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func combine(tuples []childTuple) model.DirectoryDigest {
	h := xxh3.New()
	for _, t := range tuples {
		_, _ = h.WriteString(t.name)
		_, _ = h.Write([]byte{t.kind})
		_, _ = h.Write(t.digest[:])
		_, _ = h.Write([]byte{0})
	}
	sum := h.Sum128()
	b := sum.Bytes()
	return model.DirectoryDigest(sha256.Sum256(b[:]))
}

// sentinelDigest stands in for a file's FullDigest when the file never
// reached Stage 3 (e.g. it was unique and Stage 3 was never entered for its
// partition). Derived from the path so it cannot accidentally collide with
// a real content digest or with another file's sentinel.
func sentinelDigest(path string) [32]byte {
	return sha256.Sum256(append([]byte("dupescan:sentinel:"), path...))
}
