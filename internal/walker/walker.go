// Package walker streams regular files from one or more root directories
// (spec.md §4.1), tolerating per-entry errors, and records the directory
// tree structure (parent → direct children) that FolderRollup later needs
// to compute DirectoryDigest values.
//
// # Concurrency model
//
// Grounded on the teacher's internal/scanner: one goroutine is spawned per
// directory discovered (fan-out), bounded by a weighted semaphore, feeding
// a single buffered result channel (fan-in) that the Pipeline drains
// lazily. Where the teacher collected results into a slice internally and
// returned it synchronously, this walker streams — the spec requires a
// "lazy sequence", not an in-memory list, and the whole point of the
// downstream Pipeline's backpressure (§4.4) is to never force the walker
// to buffer the entire tree.
package walker

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/semaphore"

	"github.com/jdoe/dupescan/internal/model"
	"github.com/jdoe/dupescan/internal/progress"
	"github.com/jdoe/dupescan/internal/report"
)

// resultBufferCapacity smooths producer/consumer rate differences, same
// role as the teacher's 1000-deep resultCh.
const resultBufferCapacity = 1000

// ChildKind distinguishes a directory's file children from its subdirectory
// children in the recorded Tree.
type ChildKind int

const (
	ChildFile ChildKind = iota
	ChildDir
)

// Child is one direct child of a directory, as observed by the walk.
type Child struct {
	Name string
	Path string
	Kind ChildKind
}

// Tree records, for every directory visited, its direct children — the
// input FolderRollup needs to compute DirectoryDigest bottom-up. Safe for
// concurrent writes from walker goroutines; read-only once the walk
// finishes.
type Tree struct {
	mu       sync.Mutex
	children map[string][]Child
}

func newTree() *Tree {
	return &Tree{children: make(map[string][]Child)}
}

func (t *Tree) record(dir string, kids []Child) {
	sort.Slice(kids, func(i, j int) bool { return kids[i].Name < kids[j].Name })
	t.mu.Lock()
	t.children[dir] = kids
	t.mu.Unlock()
}

// Children returns the sorted direct children of dir, or nil if dir was
// never visited (e.g. it was excluded, or turned out not to be a
// directory).
func (t *Tree) Children(dir string) []Child {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.children[dir]
}

// Dirs returns every directory path the walk recorded, including roots.
func (t *Tree) Dirs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.children))
	for d := range t.children {
		out = append(out, d)
	}
	return out
}

// Walker streams regular-file paths and sizes from a set of roots.
//
// Designed for single use: create with New, call Walk once.
type Walker struct {
	roots     []string
	minSize   int64
	excludes  []string
	gitignore bool
	workers   int64
	sink      progress.Sink
	warnings  *report.WarningCollector

	tree *Tree
}

// New creates a Walker.
//
// minSize filters out files smaller than minSize bytes — such files are
// treated as though they don't exist at all, including for folder-digest
// purposes, same as excludes. workers bounds concurrent directory reads.
func New(roots []string, minSize int64, excludes []string, gitignoreAware bool, workers int, sink progress.Sink, warnings *report.WarningCollector) *Walker {
	if workers < 1 {
		workers = 1
	}
	return &Walker{
		roots:     roots,
		minSize:   minSize,
		excludes:  excludes,
		gitignore: gitignoreAware,
		workers:   int64(workers),
		sink:      sink,
		warnings:  warnings,
	}
}

// Walk streams every matching regular file reachable from the configured
// roots. The returned channel closes once the walk completes; Tree should
// only be read after that point.
func (w *Walker) Walk(ctx context.Context) <-chan model.FileEntry {
	out := make(chan model.FileEntry, resultBufferCapacity)
	w.tree = newTree()

	sem := semaphore.NewWeighted(w.workers)
	var wg sync.WaitGroup

	w.sink.OnEvent(progress.Event{Kind: progress.Started, Root: firstOrEmpty(w.roots)})

	for _, root := range w.roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			w.warnings.Add(report.IoError, root)
			continue
		}
		wg.Add(1)
		go w.walkDir(ctx, absRoot, nil, sem, &wg, out)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// Tree returns the directory structure recorded during the last Walk.
func (w *Walker) Tree() *Tree { return w.tree }

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

// walkDir processes one directory: lists it, records its children in the
// Tree, emits matching files, and recursively spawns a goroutine per
// subdirectory. ignores is the chain of gitignore matchers inherited from
// ancestor directories (nil unless gitignore-awareness is enabled).
func (w *Walker) walkDir(ctx context.Context, dir string, ignores []*ignoreLayer, sem *semaphore.Weighted, wg *sync.WaitGroup, out chan<- model.FileEntry) {
	defer wg.Done()

	if ctx.Err() != nil {
		return
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return
	}
	entries, err := os.ReadDir(dir)
	sem.Release(1)
	if err != nil {
		w.warnings.Add(classifyDirError(err), dir)
		return
	}

	if w.gitignore {
		if layer := loadIgnoreLayer(dir); layer != nil {
			ignores = append(ignores, layer)
		}
	}

	var kids []Child
	var subdirs []string

	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())

		if w.isExcluded(dir, full, entry.Name()) || matchesIgnoreChain(ignores, dir, full, entry.IsDir()) {
			continue
		}

		if entry.IsDir() {
			kids = append(kids, Child{Name: entry.Name(), Path: full, Kind: ChildDir})
			subdirs = append(subdirs, full)
			continue
		}

		file, warn := w.resolveFile(full, entry)
		if warn != nil {
			w.warnings.Add(warn.Kind, full)
			continue
		}
		if file == nil {
			continue // not a regular file, skipped silently per spec.md §4.1
		}

		if file.Size < w.minSize {
			continue // filtered out entirely, same as an exclude match: never recorded in the Tree
		}

		kids = append(kids, Child{Name: entry.Name(), Path: full, Kind: ChildFile})

		out <- *file
		w.sink.OnEvent(progress.Event{Kind: progress.FileDiscovered, Path: file.Path, Size: file.Size})
	}

	w.tree.record(dir, kids)

	for _, sub := range subdirs {
		wg.Add(1)
		go w.walkDir(ctx, sub, ignores, sem, wg, out)
	}
}

type dirWarning struct {
	Kind report.WarningKind
}

// resolveFile turns a directory entry into a FileEntry, following file
// symlinks to their target per spec.md §4.1 ("file symlinks are resolved
// to their target's size and content only if the target exists and is a
// regular file"). Directory symlinks are never followed. Special files
// (devices, FIFOs, sockets) are skipped silently by returning (nil, nil).
func (w *Walker) resolveFile(path string, entry fs.DirEntry) (*model.FileEntry, *dirWarning) {
	mode := entry.Type()

	if mode&os.ModeSymlink != 0 {
		target, err := os.Stat(path) // follows the link
		if err != nil {
			return nil, &dirWarning{Kind: report.BrokenSymlink}
		}
		if target.IsDir() {
			return nil, nil // directory symlinks are never followed
		}
		if !target.Mode().IsRegular() {
			return nil, nil
		}
		return &model.FileEntry{Path: path, Size: target.Size(), ModTime: target.ModTime()}, nil
	}

	if !mode.IsRegular() {
		return nil, nil
	}

	info, err := entry.Info()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &dirWarning{Kind: report.Vanished}
		}
		return nil, &dirWarning{Kind: report.IoError}
	}
	return &model.FileEntry{Path: path, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// isExcluded reports whether full (a child of dir) matches any configured
// exclude glob, matched with doublestar against both its path relative to
// the scan root containing it (so "**"-style patterns work) and its
// basename.
func (w *Walker) isExcluded(dir, full, name string) bool {
	if len(w.excludes) == 0 {
		return false
	}
	rel := name
	for _, root := range w.roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if r, err := filepath.Rel(absRoot, full); err == nil && filepath.IsLocal(r) {
			rel = r
			break
		}
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.excludes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func classifyDirError(err error) report.WarningKind {
	if os.IsPermission(err) {
		return report.PermissionDenied
	}
	if os.IsNotExist(err) {
		return report.Vanished
	}
	return report.IoError
}

// ignoreLayer is one directory's compiled .gitignore, scoped to matching
// paths relative to that directory.
type ignoreLayer struct {
	dir     string
	matcher *ignore.GitIgnore
}

func loadIgnoreLayer(dir string) *ignoreLayer {
	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	m, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return &ignoreLayer{dir: dir, matcher: m}
}

func matchesIgnoreChain(chain []*ignoreLayer, dir, full string, isDir bool) bool {
	for _, layer := range chain {
		rel, err := filepath.Rel(layer.dir, full)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if isDir {
			rel += "/"
		}
		if layer.matcher.MatchesPath(rel) {
			return true
		}
	}
	_ = dir
	return false
}
